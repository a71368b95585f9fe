// Package cache holds the client's in-memory copies of server collections.
// Every successful mutation is followed by a full re-fetch: the server is the
// only source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/perm"
	"taskboard-cli/internal/session"
)

type TaskAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, in model.TaskInput) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Draft is a new task as typed by the user.
type Draft struct {
	Title       string
	Description string
	// OwnerID is sent only when the actor may assign owners.
	OwnerID *int64
}

type UpdateOptions struct {
	OwnerID *int64
}

// Tasks is safe for concurrent use.
type Tasks struct {
	api  TaskAPI
	sess *session.Session
	log  *log.Logger

	mu      sync.Mutex
	tasks   []model.Task
	loaded  bool
	seq     uint64
	applied uint64
	hooks   []func()
}

func NewTasks(client TaskAPI, sess *session.Session, logger *log.Logger) *Tasks {
	t := &Tasks{api: client, sess: sess, log: debuglog.Or(logger)}
	sess.OnEnd(func(session.Reason) { t.reset() })
	return t
}

func (t *Tasks) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks = nil
	t.loaded = false
}

// OnMutate registers fn to run after every successful create, update or delete.
func (t *Tasks) OnMutate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Snapshot returns a copy of the current collection.
func (t *Tasks) Snapshot() []model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Task(nil), t.tasks...)
}

func (t *Tasks) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

func (t *Tasks) Get(id int64) (model.Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range t.tasks {
		if it.ID == id {
			return it, true
		}
	}
	return model.Task{}, false
}

// Fetch replaces the whole collection with the server's. A response is only
// applied if no newer fetch has been applied and the session has not changed
// since the request went out; otherwise it is dropped.
func (t *Tasks) Fetch(ctx context.Context) ([]model.Task, error) {
	if !t.sess.Active() {
		return nil, ErrNotLoggedIn
	}
	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.mu.Unlock()
	epoch := t.sess.Epoch()

	list, err := t.api.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq <= t.applied || epoch != t.sess.Epoch() {
		t.log.Printf("tasks: dropping stale fetch seq=%d applied=%d", seq, t.applied)
		return append([]model.Task(nil), t.tasks...), nil
	}
	t.tasks = list
	t.applied = seq
	t.loaded = true
	return append([]model.Task(nil), list...), nil
}

// Add creates a task in the pending lane and re-fetches.
func (t *Tasks) Add(ctx context.Context, d Draft) (model.Task, error) {
	if !model.ValidTitle(d.Title) {
		return model.Task{}, ErrEmptyTitle
	}
	role := t.sess.Role()
	caps := perm.For(role)
	if !caps.ManageTasks {
		return model.Task{}, perm.Deny(role, "create tasks")
	}
	in := model.TaskInput{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Status:      model.StatusPending,
	}
	if caps.AssignOwner && d.OwnerID != nil {
		id := *d.OwnerID
		in.OwnerID = &id
	}
	created, err := t.api.CreateTask(ctx, in)
	if err != nil {
		return model.Task{}, err
	}
	return created, t.afterMutation(ctx, "create")
}

// Update PUTs the full task. Field edits and owner changes need ManageTasks;
// status moves go through the same guard as the board.
func (t *Tasks) Update(ctx context.Context, task model.Task, opts UpdateOptions) (model.Task, error) {
	if !model.ValidTitle(task.Title) {
		return model.Task{}, ErrEmptyTitle
	}
	role := t.sess.Role()
	caps := perm.For(role)

	prev, known := t.Get(task.ID)
	if !known {
		prev = task
	}
	fieldsChanged := !known || prev.Title != task.Title || prev.Description != task.Description
	if (fieldsChanged || opts.OwnerID != nil) && !caps.ManageTasks {
		return model.Task{}, perm.Deny(role, "edit tasks")
	}
	from := prev
	if !known {
		from.Status = ""
	}
	if from.Status != task.Status {
		if _, err := board.Transition(role, from, task.Status); err != nil {
			return model.Task{}, err
		}
	}

	in := task.Input()
	if caps.AssignOwner && opts.OwnerID != nil {
		id := *opts.OwnerID
		in.OwnerID = &id
	}
	updated, err := t.api.UpdateTask(ctx, task.ID, in)
	if err != nil {
		return model.Task{}, err
	}
	return updated, t.afterMutation(ctx, "update")
}

// Move is the status-only update used by drag-and-drop and the status picker.
// A move onto the current status sends nothing.
func (t *Tasks) Move(ctx context.Context, id int64, target model.Status) (board.Move, error) {
	task, ok := t.Get(id)
	if !ok {
		return board.Move{}, board.NotFoundError{Kind: "task", ID: id}
	}
	mv, err := board.Transition(t.sess.Role(), task, target)
	if err != nil || !mv.Changed {
		return mv, err
	}
	return t.Apply(ctx, mv)
}

// Apply sends a Move produced by board.Transition or board.Drag.
func (t *Tasks) Apply(ctx context.Context, mv board.Move) (board.Move, error) {
	if !mv.Changed {
		return mv, nil
	}
	updated, err := t.api.UpdateTask(ctx, mv.Task.ID, mv.Task.Input())
	if err != nil {
		return board.Move{}, err
	}
	mv.Task = updated
	return mv, t.afterMutation(ctx, "move")
}

// Delete removes a task. Nothing is sent unless confirmed.
func (t *Tasks) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	role := t.sess.Role()
	if !perm.For(role).ManageTasks {
		return perm.Deny(role, "delete tasks")
	}
	if err := t.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	return t.afterMutation(ctx, "delete")
}

func (t *Tasks) afterMutation(ctx context.Context, op string) error {
	t.mu.Lock()
	hooks := append([]func(){}, t.hooks...)
	t.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	if _, err := t.Fetch(ctx); err != nil {
		t.log.Printf("tasks: refresh after %s: %v", op, err)
		if errors.Is(err, ErrNotLoggedIn) {
			return err
		}
		return fmt.Errorf("%s succeeded but refresh failed: %w", op, err)
	}
	return nil
}
