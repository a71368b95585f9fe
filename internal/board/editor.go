package board

import (
	"strings"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/perm"
)

type Mode int

const (
	ModeDisplay Mode = iota
	ModeEdit
)

// Edit is a validated save: the full task to PUT plus the owner to send.
// OwnerID is nil when the owner must be omitted from the request.
type Edit struct {
	Task    model.Task
	OwnerID *int64
}

// Editor is the local edit state of one task card. Nothing leaves the editor
// until Save.
type Editor struct {
	task model.Task
	mode Mode

	Title       string
	Description string
	// Owner is the chosen owner, nil until the actor picks one.
	Owner *int64
}

func NewEditor(task model.Task) *Editor {
	return &Editor{task: task}
}

func (e *Editor) Task() model.Task { return e.task }

func (e *Editor) Mode() Mode { return e.mode }

// Begin enters edit mode seeded from the task. Editing requires ManageTasks.
func (e *Editor) Begin(caps perm.Capabilities) bool {
	if !caps.ManageTasks {
		return false
	}
	e.mode = ModeEdit
	e.Title = e.task.Title
	e.Description = e.task.Description
	e.Owner = nil
	return true
}

// Cancel discards edits.
func (e *Editor) Cancel() {
	e.mode = ModeDisplay
	e.Title, e.Description, e.Owner = "", "", nil
}

// ChooseOwner records an owner pick. Ignored unless the actor may assign.
func (e *Editor) ChooseOwner(caps perm.Capabilities, id int64) {
	if !caps.AssignOwner {
		return
	}
	e.Owner = &id
}

// Save validates the edit. An empty (after trimming) title is a silent
// no-op: ok is false and the editor stays in edit mode. The owner is included
// only when the actor may assign and picked one, even if it is the current
// owner.
func (e *Editor) Save(caps perm.Capabilities) (Edit, bool) {
	if e.mode != ModeEdit || !model.ValidTitle(e.Title) {
		return Edit{}, false
	}
	t := e.task
	t.Title = strings.TrimSpace(e.Title)
	t.Description = e.Description
	var owner *int64
	if caps.AssignOwner && e.Owner != nil {
		id := *e.Owner
		owner = &id
	}
	e.task = t
	e.mode = ModeDisplay
	e.Owner = nil
	return Edit{Task: t, OwnerID: owner}, true
}

// Refresh replaces the displayed task (after a re-fetch) without touching an
// edit in progress.
func (e *Editor) Refresh(task model.Task) {
	e.task = task
}
