package board

import "taskboard-cli/internal/model"

// Drag holds at most one task being moved between lanes. It is owned by the
// UI loop and is not safe for concurrent use.
type Drag struct {
	source *model.Task
}

// Start replaces any previous drag source.
func (d *Drag) Start(task model.Task) {
	t := task
	d.source = &t
}

func (d *Drag) Active() (model.Task, bool) {
	if d.source == nil {
		return model.Task{}, false
	}
	return *d.source, true
}

func (d *Drag) Cancel() {
	d.source = nil
}

// Drop releases the dragged task on target. With no source it does nothing.
// The slot is cleared whatever the outcome, including denials.
func (d *Drag) Drop(role model.Role, target model.Status) (Move, error) {
	src := d.source
	d.source = nil
	if src == nil {
		return Move{}, nil
	}
	return Transition(role, *src, target)
}
