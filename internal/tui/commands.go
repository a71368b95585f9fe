package tui

import (
	"errors"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/auth"
	"taskboard-cli/internal/board"
	"taskboard-cli/internal/cache"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"
	"taskboard-cli/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

const flashDuration = 700 * time.Millisecond

type restoreMsg struct {
	user model.User
	err  error
}

type loginMsg struct {
	user model.User
	err  error
}

type tasksMsg struct{ err error }

type usersMsg struct{ err error }

// taskMutationMsg reports a create/update/move/delete. taskID is the task
// to select afterwards (0 keeps the current selection).
type taskMutationMsg struct {
	op     string
	taskID int64
	err    error
}

type userMutationMsg struct {
	op  string
	err error
}

type inboxMsg struct{ snap notify.Snapshot }

type inboxOpenMsg struct {
	taskID *int64
	err    error
}

type inboxActionMsg struct{ err error }

type sessionEndedMsg struct{ reason session.Reason }

type flashDoneMsg struct{ seq int }

func (m appModel) restoreCmd() tea.Cmd {
	a, ctx := m.auth, m.ctx
	return func() tea.Msg {
		u, err := a.Restore(ctx)
		return restoreMsg{user: u, err: err}
	}
}

func (m appModel) loginCmd(username, password string) tea.Cmd {
	a, ctx := m.auth, m.ctx
	return func() tea.Msg {
		u, err := a.Login(ctx, username, password)
		return loginMsg{user: u, err: err}
	}
}

func (m appModel) fetchTasksCmd() tea.Cmd {
	tasks, ctx := m.tasks, m.ctx
	return func() tea.Msg {
		_, err := tasks.Fetch(ctx)
		return tasksMsg{err: err}
	}
}

func (m appModel) fetchUsersCmd() tea.Cmd {
	users, ctx := m.users, m.ctx
	return func() tea.Msg {
		_, err := users.Fetch(ctx)
		return usersMsg{err: err}
	}
}

func (m appModel) applyMoveCmd(mv board.Move) tea.Cmd {
	tasks, ctx := m.tasks, m.ctx
	return func() tea.Msg {
		_, err := tasks.Apply(ctx, mv)
		return taskMutationMsg{op: "move", taskID: mv.Task.ID, err: err}
	}
}

func (m appModel) setStatusCmd(id int64, st model.Status) tea.Cmd {
	tasks, ctx := m.tasks, m.ctx
	return func() tea.Msg {
		_, err := tasks.Move(ctx, id, st)
		return taskMutationMsg{op: "move", taskID: id, err: err}
	}
}

func (m appModel) createTaskCmd(d cache.Draft) tea.Cmd {
	tasks, ctx := m.tasks, m.ctx
	return func() tea.Msg {
		created, err := tasks.Add(ctx, d)
		return taskMutationMsg{op: "create", taskID: created.ID, err: err}
	}
}

func (m appModel) updateTaskCmd(e board.Edit) tea.Cmd {
	tasks, ctx := m.tasks, m.ctx
	return func() tea.Msg {
		_, err := tasks.Update(ctx, e.Task, cache.UpdateOptions{OwnerID: e.OwnerID})
		return taskMutationMsg{op: "update", taskID: e.Task.ID, err: err}
	}
}

func (m appModel) deleteTaskCmd(id int64) tea.Cmd {
	tasks, ctx := m.tasks, m.ctx
	return func() tea.Msg {
		err := tasks.Delete(ctx, id, true)
		return taskMutationMsg{op: "delete", err: err}
	}
}

func (m appModel) createUserCmd(in model.UserInput) tea.Cmd {
	users, ctx := m.users, m.ctx
	return func() tea.Msg {
		_, err := users.Create(ctx, in)
		return userMutationMsg{op: "create", err: err}
	}
}

func (m appModel) updateUserCmd(target model.User, in model.UserInput) tea.Cmd {
	users, ctx := m.users, m.ctx
	return func() tea.Msg {
		_, err := users.Update(ctx, target, in)
		return userMutationMsg{op: "update", err: err}
	}
}

func (m appModel) deleteUserCmd(id int64) tea.Cmd {
	users, ctx := m.users, m.ctx
	return func() tea.Msg {
		err := users.Delete(ctx, id, true)
		return userMutationMsg{op: "delete", err: err}
	}
}

func (m appModel) refreshInboxCmd() tea.Cmd {
	p, ctx := m.notify, m.ctx
	return func() tea.Msg {
		return inboxActionMsg{err: p.Refresh(ctx)}
	}
}

func (m appModel) markReadCmd(id int64) tea.Cmd {
	p, ctx := m.notify, m.ctx
	return func() tea.Msg {
		return inboxActionMsg{err: p.MarkRead(ctx, id)}
	}
}

func (m appModel) markAllReadCmd() tea.Cmd {
	p, ctx := m.notify, m.ctx
	return func() tea.Msg {
		return inboxActionMsg{err: p.MarkAllRead(ctx)}
	}
}

func (m appModel) openNotificationCmd(n model.Notification) tea.Cmd {
	p, ctx := m.notify, m.ctx
	return func() tea.Msg {
		id, err := p.Open(ctx, n)
		return inboxOpenMsg{taskID: id, err: err}
	}
}

// waitForInbox delivers the poller's next snapshot. It is re-armed after
// every inboxMsg so exactly one receiver is pending.
func waitForInbox(p *notify.Poller) tea.Cmd {
	return func() tea.Msg {
		return inboxMsg{snap: <-p.Updates()}
	}
}

func waitForSessionEnd(ch <-chan session.Reason) tea.Cmd {
	return func() tea.Msg {
		return sessionEndedMsg{reason: <-ch}
	}
}

func flashCmd(seq int) tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashDoneMsg{seq: seq}
	})
}

// sessionLost reports whether err means the server rejected the token.
func sessionLost(err error) bool {
	return errors.Is(err, api.ErrUnauthorized) ||
		errors.Is(err, cache.ErrSessionExpired) ||
		errors.Is(err, auth.ErrNoSession)
}
