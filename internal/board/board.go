// Package board projects the task list onto the four fixed kanban lanes and
// decides which status moves are allowed.
package board

import (
	"sort"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/perm"
)

type Lane struct {
	Status model.Status
	Label  string
	Tasks  []model.Task
	// Droppable is false when the actor may not move tasks into this lane.
	Droppable bool
}

// Build partitions tasks into lanes in status order. Tasks keep the order the
// server returned them in. Tasks with an unknown status are not shown.
func Build(tasks []model.Task, role model.Role) []Lane {
	lanes := make([]Lane, len(model.Statuses))
	idx := map[model.Status]int{}
	for i, st := range model.Statuses {
		lanes[i] = Lane{
			Status:    st,
			Label:     st.Label(),
			Droppable: perm.CanSetStatus(role, st),
		}
		idx[st] = i
	}
	for _, t := range tasks {
		i, ok := idx[t.Status]
		if !ok {
			continue
		}
		lanes[i].Tasks = append(lanes[i].Tasks, t)
	}
	return lanes
}

// LaneIndex returns the lane position of status, or -1.
func LaneIndex(status model.Status) int {
	for i, st := range model.Statuses {
		if st == status {
			return i
		}
	}
	return -1
}

// Counts returns the number of tasks per status.
func Counts(tasks []model.Task) map[model.Status]int {
	out := map[model.Status]int{}
	for _, t := range tasks {
		if t.Status.Valid() {
			out[t.Status]++
		}
	}
	return out
}

// Move is the result of a status transition.
type Move struct {
	Task    model.Task
	From    model.Status
	Changed bool
}

// Transition applies target to task if role allows it. It is the single guard
// shared by drag-and-drop and the status selector. Moving to the current
// status is a no-op (Changed=false).
func Transition(role model.Role, task model.Task, target model.Status) (Move, error) {
	if !target.Valid() {
		return Move{}, ErrInvalidStatus
	}
	from := task.Status
	if from == target {
		return Move{Task: task, From: from, Changed: false}, nil
	}
	if !perm.CanSetStatus(role, target) {
		return Move{Task: task, From: from}, DeniedError{Role: role, TaskID: task.ID, Target: target}
	}
	task.Status = target
	return Move{Task: task, From: from, Changed: true}, nil
}

// StatusOptions lists the statuses role may pick, in lane order.
func StatusOptions(role model.Role) []model.Status {
	out := make([]model.Status, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		if perm.CanSetStatus(role, st) {
			out = append(out, st)
		}
	}
	return out
}

// Find returns the task with id.
func Find(tasks []model.Task, id int64) (model.Task, error) {
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, NotFoundError{Kind: "task", ID: id}
}

// SortedByID returns a copy of tasks ordered by id.
func SortedByID(tasks []model.Task) []model.Task {
	out := append([]model.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
