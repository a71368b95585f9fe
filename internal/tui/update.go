package tui

import (
	"errors"
	"fmt"

	"taskboard-cli/internal/auth"
	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/perm"
	"taskboard-cli/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const sessionExpiredText = "Session expired, please log in again."

func (m appModel) Init() tea.Cmd {
	return tea.Batch(
		m.restoreCmd(),
		waitForInbox(m.notify),
		waitForSessionEnd(m.ended),
		textinput.Blink,
	)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.userList.SetSize(m.width, m.bodyHeight())
		if m.modal == modalNotifications {
			m.setInboxItems()
		}
		return m, nil

	case restoreMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, auth.ErrNoSession) {
				m.login.err = describe(msg.err)
			}
			return m, nil
		}
		return m.startSession(msg.user)

	case loginMsg:
		m.login.busy = false
		if msg.err != nil {
			m.login.err = describe(msg.err)
			return m, nil
		}
		return m.startSession(msg.user)

	case tasksMsg:
		m.loading = false
		if msg.err != nil {
			return m.handleErr(msg.err)
		}
		m.rebuildLanes()
		return m, nil

	case usersMsg:
		m.loading = false
		if msg.err != nil {
			return m.handleErr(msg.err)
		}
		m.setUserItems()
		return m, nil

	case taskMutationMsg:
		if msg.err != nil {
			var denied board.DeniedError
			if errors.As(msg.err, &denied) {
				return m.flashDenied(denied.TaskID, msg.err)
			}
			// Whatever the server said, the board shows the server's state.
			m.rebuildLanes()
			return m.handleErr(msg.err)
		}
		if msg.taskID != 0 {
			m.sel.taskID = msg.taskID
		}
		m.rebuildLanes()
		m.minibufferText = ""
		if msg.op == "delete" && m.view == viewDetail {
			m.view = viewBoard
		}
		return m, nil

	case userMutationMsg:
		if msg.err != nil {
			if sessionLost(msg.err) {
				return m.handleErr(msg.err)
			}
			if m.modal == modalUserForm {
				m.userForm.err = describe(msg.err)
				m.minibufferText = ""
				return m, nil
			}
			return m.handleErr(msg.err)
		}
		if m.modal == modalUserForm {
			m.modal = modalNone
		}
		m.minibufferText = ""
		m.setUserItems()
		return m, nil

	case inboxMsg:
		m.inbox = msg.snap
		m.setInboxItems()
		return m, waitForInbox(m.notify)

	case inboxActionMsg:
		if msg.err != nil {
			return m.handleErr(msg.err)
		}
		return m, nil

	case inboxOpenMsg:
		if msg.err != nil {
			return m.handleErr(msg.err)
		}
		m.modal = modalNone
		if msg.taskID == nil {
			return m, nil
		}
		if _, ok := m.tasks.Get(*msg.taskID); !ok {
			m.showError(fmt.Sprintf("task #%d no longer exists", *msg.taskID))
			return m, nil
		}
		m.openDetail(*msg.taskID)
		return m, nil

	case sessionEndedMsg:
		// A new login may already have happened by the time this arrives.
		if !m.auth.Session().Active() && m.view != viewLogin {
			text := ""
			if msg.reason == session.ReasonUnauthorized {
				text = sessionExpiredText
			}
			m.endSession(text)
		}
		return m, waitForSessionEnd(m.ended)

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flashTaskID = 0
		}
		return m, nil

	case tea.MouseMsg:
		if m.view == viewBoard && m.modal == modalNone {
			return m.updateBoardMouse(msg)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		return m.updateKey(msg)
	}

	return m.updateInputs(msg)
}

// updateInputs forwards non-key messages (cursor blink) to the focused input.
func (m appModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.view == viewLogin && m.login.focus == 0:
		m.login.username, cmd = m.login.username.Update(msg)
	case m.view == viewLogin:
		m.login.password, cmd = m.login.password.Update(msg)
	case m.modal == modalTaskForm && m.taskForm.focus == taskFocusTitle:
		m.taskForm.title, cmd = m.taskForm.title.Update(msg)
	case m.modal == modalTaskForm && m.taskForm.focus == taskFocusDescription:
		m.taskForm.desc, cmd = m.taskForm.desc.Update(msg)
	}
	return m, cmd
}

func (m appModel) startSession(u model.User) (tea.Model, tea.Cmd) {
	m.beginSession(u)
	m.loading = true
	m.notify.Start(m.ctx)
	cmds := []tea.Cmd{m.fetchTasksCmd()}
	if m.caps.ManageUsers {
		cmds = append(cmds, m.fetchUsersCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m appModel) quit() (tea.Model, tea.Cmd) {
	if m.view != viewLogin {
		m.saveState()
	}
	m.notify.Stop()
	return m, tea.Quit
}

// handleErr shows err in the minibuffer, or returns to the login view when
// the server no longer accepts the session.
func (m appModel) handleErr(err error) (tea.Model, tea.Cmd) {
	m.loading = false
	if sessionLost(err) {
		if !m.auth.Session().Active() {
			m.endSession(sessionExpiredText)
		}
		return m, nil
	}
	m.showError(describe(err))
	return m, nil
}

// flashDenied briefly paints the card red and explains why. Nothing was sent.
func (m appModel) flashDenied(taskID int64, err error) (tea.Model, tea.Cmd) {
	m.flashSeq++
	m.flashTaskID = taskID
	m.showError(err.Error())
	return m, flashCmd(m.flashSeq)
}

func describe(err error) string {
	if err == nil {
		return ""
	}
	var pe perm.Error
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return err.Error()
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == viewLogin {
		return m.updateLoginKey(msg)
	}
	m.minibufferText = ""
	if m.modal != modalNone {
		return m.updateModalKey(msg)
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "N":
		return m, m.openInbox()
	case "L":
		m.notify.Stop()
		m.auth.Logout(m.ctx)
		m.endSession("")
		return m, nil
	case "u":
		if !m.caps.ManageUsers {
			m.showError(perm.Deny(m.user.Role, "manage users").Error())
			return m, nil
		}
		m.drag.Cancel()
		m.view = viewUsers
		m.setUserItems()
		m.loading = true
		return m, m.fetchUsersCmd()
	case "r":
		m.loading = true
		if m.view == viewUsers {
			return m, m.fetchUsersCmd()
		}
		return m, m.fetchTasksCmd()
	}

	switch m.view {
	case viewDetail:
		return m.updateDetailKey(msg)
	case viewUsers:
		return m.updateUsersKey(msg)
	}
	return m.updateBoardKey(msg)
}

func (m appModel) updateLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		return m, m.focusLoginField(1 - m.login.focus)
	case "enter":
		if m.login.busy {
			return m, nil
		}
		if m.login.focus == 0 && m.login.password.Value() == "" {
			return m, m.focusLoginField(1)
		}
		m.login.busy = true
		m.login.err = ""
		return m, m.loginCmd(m.login.username.Value(), m.login.password.Value())
	}
	var cmd tea.Cmd
	if m.login.focus == 0 {
		m.login.username, cmd = m.login.username.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}

func (m *appModel) focusLoginField(i int) tea.Cmd {
	m.login.focus = i
	if i == 0 {
		m.login.password.Blur()
		return m.login.username.Focus()
	}
	m.login.username.Blur()
	return m.login.password.Focus()
}

func (m appModel) updateBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	_, dragging := m.drag.Active()

	switch msg.String() {
	case "left", "h":
		m.moveSelection(-1, 0)
	case "right", "l":
		m.moveSelection(1, 0)
	case "up", "k":
		m.moveSelection(0, -1)
	case "down", "j":
		m.moveSelection(0, 1)
	case " ", "space":
		return m.grabOrDrop()
	case "esc":
		if dragging {
			m.drag.Cancel()
			m.showMinibuffer("Move cancelled")
		}
	case "enter":
		if t, ok := m.selectedTask(); ok && !dragging {
			m.openDetail(t.ID)
		}
	case "n":
		if !m.caps.ManageTasks {
			m.showError(perm.Deny(m.user.Role, "create tasks").Error())
			return m, nil
		}
		return m, m.openTaskForm(nil)
	case "e":
		if t, ok := m.selectedTask(); ok {
			m.openDetail(t.ID)
			return m, m.openTaskForm(&t)
		}
	case "s":
		if t, ok := m.selectedTask(); ok {
			m.openStatusPicker(t)
		}
	case "d", "delete":
		if t, ok := m.selectedTask(); ok {
			if !m.caps.ManageTasks {
				m.showError(perm.Deny(m.user.Role, "delete tasks").Error())
				return m, nil
			}
			m.openConfirm(modalConfirmDeleteTask, t.ID)
		}
	}
	return m, nil
}

func (m *appModel) moveSelection(dLane, dIndex int) {
	if dLane != 0 {
		next := m.sel.lane + dLane
		if next < 0 || next >= len(m.lanes) {
			return
		}
		m.sel.lane = next
	}
	m.sel.index += dIndex
	m.clampSelection()
}

func (m appModel) grabOrDrop() (tea.Model, tea.Cmd) {
	if _, active := m.drag.Active(); !active {
		t, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		m.drag.Start(t)
		m.showMinibuffer(fmt.Sprintf("Moving #%d: pick a lane with h/l, space to drop, esc to cancel", t.ID))
		return m, nil
	}
	return m.dropOn(m.sel.lane)
}

// dropOn releases the dragged card on lane li. Denied moves flash the card
// and send nothing; a drop on the card's own lane does nothing.
func (m appModel) dropOn(li int) (tea.Model, tea.Cmd) {
	src, ok := m.drag.Active()
	if !ok || li < 0 || li >= len(m.lanes) {
		m.drag.Cancel()
		return m, nil
	}
	mv, err := m.drag.Drop(m.user.Role, m.lanes[li].Status)
	if err != nil {
		var denied board.DeniedError
		if errors.As(err, &denied) {
			return m.flashDenied(src.ID, err)
		}
		m.showError(describe(err))
		return m, nil
	}
	if !mv.Changed {
		m.minibufferText = ""
		return m, nil
	}
	m.sel.taskID = src.ID
	m.showMinibuffer(fmt.Sprintf("Moving #%d to %s…", src.ID, m.lanes[li].Label))
	return m, m.applyMoveCmd(mv)
}

func (m appModel) updateBoardMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.moveSelection(0, -1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.moveSelection(0, 1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		lane, idx, ok := m.cardAt(msg.X, msg.Y)
		if lane < 0 {
			return m, nil
		}
		m.sel.lane = lane
		if !ok {
			m.clampSelection()
			return m, nil
		}
		m.sel.index = idx
		m.clampSelection()
		if t, ok := m.selectedTask(); ok {
			m.drag.Start(t)
		}
	case msg.Action == tea.MouseActionRelease:
		if _, ok := m.drag.Active(); !ok {
			return m, nil
		}
		lane := m.laneAt(msg.X)
		if lane < 0 {
			m.drag.Cancel()
			return m, nil
		}
		m.sel.lane = lane
		return m.dropOn(lane)
	}
	return m, nil
}

func (m *appModel) openDetail(id int64) {
	m.drag.Cancel()
	m.detailID = id
	m.detailScroll = 0
	m.view = viewDetail
	m.modal = modalNone
	m.sel.taskID = id
	m.rebuildLanes()
}

func (m appModel) updateDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t, ok := m.detailTask()
	switch msg.String() {
	case "esc", "backspace", "b":
		m.view = viewBoard
		return m, nil
	case "j", "down":
		m.detailScroll++
		return m, nil
	case "k", "up":
		if m.detailScroll > 0 {
			m.detailScroll--
		}
		return m, nil
	}
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "e":
		return m, m.openTaskForm(&t)
	case "s":
		m.openStatusPicker(t)
	case "d", "delete":
		if !m.caps.ManageTasks {
			m.showError(perm.Deny(m.user.Role, "delete tasks").Error())
			return m, nil
		}
		m.openConfirm(modalConfirmDeleteTask, t.ID)
	}
	return m, nil
}
