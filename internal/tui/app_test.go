package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/apitest"
	"taskboard-cli/internal/auth"
	"taskboard-cli/internal/cache"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"
	"taskboard-cli/internal/session"
	"taskboard-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel(t *testing.T) (appModel, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	sess := session.New(nil, nil)
	client := api.New(sess, api.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	poller := notify.New(client, sess, notify.Options{Interval: time.Hour, Grace: time.Hour})
	t.Cleanup(poller.Stop)

	m := newAppModel(context.Background(), Options{
		Auth:   auth.NewService(client, nil),
		Tasks:  cache.NewTasks(client, sess, nil),
		Users:  cache.NewUsers(client, sess, nil),
		Notify: poller,
		Store:  store.Store{},
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 36})
	return m, srv
}

// loggedIn logs username in the way the login view does and loads the board.
func loggedIn(t *testing.T, m appModel, username string) appModel {
	t.Helper()
	u, err := m.auth.Login(m.ctx, username, username)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	m, _ = update(t, m, loginMsg{user: u})
	m, _ = update(t, m, m.fetchTasksCmd()())
	if m.caps.ManageUsers {
		m, _ = update(t, m, m.fetchUsersCmd()())
	}
	return m
}

func update(t *testing.T, m appModel, msg tea.Msg) (appModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(appModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m appModel, keys ...string) (appModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = update(t, m, key(k))
	}
	return m, cmd
}

func laneHas(m appModel, lane int, id int64) bool {
	for _, t := range m.lanes[lane].Tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func TestLogin_EnterSubmitsAndOpensBoard(t *testing.T) {
	m, srv := newTestModel(t)
	task := srv.AddTask(model.Task{Title: "Alpha"})

	m.login.username.SetValue("gerente")
	m.login.password.SetValue("gerente")
	m, cmd := press(t, m, "enter")
	if !m.login.busy || cmd == nil {
		t.Fatalf("expected login to be in flight")
	}
	m, cmd = update(t, m, cmd())
	if m.view != viewBoard || m.user.Username != "gerente" {
		t.Fatalf("expected board for gerente, got view=%v user=%+v", m.view, m.user)
	}
	if cmd == nil {
		t.Fatalf("expected fetch commands after login")
	}
	m, _ = update(t, m, m.fetchTasksCmd()())
	if !laneHas(m, 0, task.ID) {
		t.Fatalf("expected task in pending lane, lanes=%+v", m.lanes)
	}
}

func TestLogin_ErrorStaysOnLoginView(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, loginMsg{err: auth.ErrInvalidCredentials})
	if m.view != viewLogin {
		t.Fatalf("expected login view")
	}
	if !strings.Contains(m.View(), "incorrect username or password") {
		t.Fatalf("expected error in view:\n%s", m.View())
	}
}

func TestBoard_ViewOnlyDropOnDoneFlashesAndSendsNothing(t *testing.T) {
	m, srv := newTestModel(t)
	task := srv.AddTask(model.Task{Title: "Review me", Status: model.StatusInReview})
	m = loggedIn(t, m, "viewer")
	srv.ResetCalls()

	m, _ = press(t, m, "l", "l")
	if got, ok := m.selectedTask(); !ok || got.ID != task.ID {
		t.Fatalf("expected review card selected, got %+v", got)
	}
	m, _ = press(t, m, "space", "l")
	m, cmd := press(t, m, "space")

	if cmd == nil {
		t.Fatalf("expected flash timer")
	}
	if m.flashTaskID != task.ID {
		t.Fatalf("expected card %d to flash, got %d", task.ID, m.flashTaskID)
	}
	if !strings.Contains(m.minibufferText, "view-only users cannot complete tasks") {
		t.Fatalf("unexpected message %q", m.minibufferText)
	}
	if srv.Mutations() != 0 {
		t.Fatalf("expected no requests, got %d", srv.Mutations())
	}
	if !laneHas(m, 2, task.ID) {
		t.Fatalf("expected card to stay in review")
	}
	if _, active := m.drag.Active(); active {
		t.Fatalf("expected drag slot cleared after denial")
	}

	m, _ = update(t, m, flashDoneMsg{seq: m.flashSeq})
	if m.flashTaskID != 0 {
		t.Fatalf("expected flash to end")
	}
}

func TestBoard_KeyboardDragMovesTask(t *testing.T) {
	m, srv := newTestModel(t)
	task := srv.AddTask(model.Task{Title: "Start me"})
	m = loggedIn(t, m, "admin")

	m, _ = press(t, m, "space", "l")
	m, cmd := press(t, m, "space")
	if cmd == nil {
		t.Fatalf("expected move command")
	}
	m, _ = update(t, m, cmd())

	if got, _ := srv.Task(task.ID); got.Status != model.StatusInProgress {
		t.Fatalf("expected server status in progress, got %s", got.Status)
	}
	if !laneHas(m, 1, task.ID) || laneHas(m, 0, task.ID) {
		t.Fatalf("expected card in In Progress only, lanes=%+v", m.lanes)
	}
	if m.sel.lane != 1 || m.sel.taskID != task.ID {
		t.Fatalf("expected selection to follow the card, got %+v", m.sel)
	}
}

func TestBoard_DropOnSameLaneSendsNothing(t *testing.T) {
	m, srv := newTestModel(t)
	srv.AddTask(model.Task{Title: "Stay"})
	m = loggedIn(t, m, "admin")
	srv.ResetCalls()

	m, cmd := press(t, m, "space", "space")
	if cmd != nil {
		t.Fatalf("expected no command for a same-lane drop")
	}
	if srv.Mutations() != 0 {
		t.Fatalf("expected no requests")
	}
	if _, active := m.drag.Active(); active {
		t.Fatalf("expected drag cleared")
	}
}

func TestBoard_MouseDragMovesTask(t *testing.T) {
	m, srv := newTestModel(t)
	task := srv.AddTask(model.Task{Title: "Drag me"})
	m = loggedIn(t, m, "gerente")

	lane, idx, ok := m.cardAt(2, boardTop+laneHeaderLines)
	if !ok || lane != 0 || idx != 0 {
		t.Fatalf("cardAt = %d, %d, %v", lane, idx, ok)
	}

	m, _ = update(t, m, tea.MouseMsg{X: 2, Y: boardTop + laneHeaderLines, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if src, active := m.drag.Active(); !active || src.ID != task.ID {
		t.Fatalf("expected press to grab the card")
	}
	doneX := 3*(m.laneWidth()+laneGap) + 1
	m, cmd := update(t, m, tea.MouseMsg{X: doneX, Y: 10, Action: tea.MouseActionRelease})
	if cmd == nil {
		t.Fatalf("expected move command")
	}
	m, _ = update(t, m, cmd())
	if !laneHas(m, 3, task.ID) {
		t.Fatalf("expected card in Done, lanes=%+v", m.lanes)
	}
}

func TestBoard_StatusPickerHidesDoneForViewOnly(t *testing.T) {
	m, srv := newTestModel(t)
	srv.AddTask(model.Task{Title: "Alpha"})
	m = loggedIn(t, m, "viewer")

	m, _ = press(t, m, "s")
	if m.modal != modalPickStatus {
		t.Fatalf("expected status picker")
	}
	for _, it := range m.picker.Items() {
		if it.(pickItem).value == string(model.StatusDone) {
			t.Fatalf("expected no Done option for view-only")
		}
	}
	if len(m.picker.Items()) != 3 {
		t.Fatalf("expected 3 options, got %d", len(m.picker.Items()))
	}
}

func TestBoard_ViewOnlyCannotOpenNewTaskForm(t *testing.T) {
	m, _ := newTestModel(t)
	m = loggedIn(t, m, "viewer")

	m, _ = press(t, m, "n")
	if m.modal != modalNone {
		t.Fatalf("expected no form for view-only")
	}
	if !strings.Contains(m.minibufferText, "permission denied") {
		t.Fatalf("unexpected message %q", m.minibufferText)
	}
}

func TestTaskForm_EmptyTitleSendsNothingThenCreates(t *testing.T) {
	m, srv := newTestModel(t)
	m = loggedIn(t, m, "admin")
	srv.ResetCalls()

	m, _ = press(t, m, "n")
	if m.modal != modalTaskForm {
		t.Fatalf("expected task form")
	}
	m.minibufferText, m.minibufferErr = "", false
	m.taskForm.title.SetValue("   ")
	m, _ = press(t, m, "ctrl+s")
	if m.modal != modalTaskForm || srv.Mutations() != 0 {
		t.Fatalf("expected blank title to be a no-op, modal=%v mutations=%d", m.modal, srv.Mutations())
	}
	if m.minibufferText != "" || m.minibufferErr {
		t.Fatalf("expected blank title to be ignored silently, minibuffer=%q", m.minibufferText)
	}
	if m.taskForm.focus != taskFocusTitle {
		t.Fatalf("expected focus back on the title, got %d", m.taskForm.focus)
	}

	m.taskForm.title.SetValue("Write docs")
	m, cmd := press(t, m, "ctrl+s")
	if m.modal != modalNone || cmd == nil {
		t.Fatalf("expected form to close with a create command")
	}
	m, _ = update(t, m, cmd())
	if len(m.lanes[0].Tasks) != 1 || m.lanes[0].Tasks[0].Title != "Write docs" {
		t.Fatalf("expected new card in Pending, got %+v", m.lanes[0].Tasks)
	}
}

func TestTaskForm_EditSavesTitle(t *testing.T) {
	m, srv := newTestModel(t)
	task := srv.AddTask(model.Task{Title: "Old", Description: "keep"})
	m = loggedIn(t, m, "gerente")

	m, _ = press(t, m, "e")
	if m.modal != modalTaskForm || m.view != viewDetail {
		t.Fatalf("expected edit form over detail view")
	}
	m.minibufferText, m.minibufferErr = "", false
	m.taskForm.title.SetValue("  ")
	m, _ = press(t, m, "ctrl+s")
	if m.modal != modalTaskForm || m.minibufferText != "" || srv.Mutations() != 0 {
		t.Fatalf("expected blank edit title to be ignored silently, modal=%v minibuffer=%q", m.modal, m.minibufferText)
	}

	m.taskForm.title.SetValue("New")
	m, cmd := press(t, m, "ctrl+s")
	m, _ = update(t, m, cmd())

	got, _ := srv.Task(task.ID)
	if got.Title != "New" || got.Description != "keep" {
		t.Fatalf("unexpected server task %+v", got)
	}
	if !strings.Contains(m.View(), "New") {
		t.Fatalf("expected detail to show new title")
	}
}

func TestDeleteTask_RequiresConfirmation(t *testing.T) {
	m, srv := newTestModel(t)
	task := srv.AddTask(model.Task{Title: "Doomed"})
	m = loggedIn(t, m, "admin")
	srv.ResetCalls()

	m, cmd := press(t, m, "d", "enter")
	if cmd != nil || srv.Mutations() != 0 {
		t.Fatalf("expected cancel to be the default focus")
	}
	m, cmd = press(t, m, "d", "y")
	if cmd == nil {
		t.Fatalf("expected delete command")
	}
	m, _ = update(t, m, cmd())
	if _, ok := srv.Task(task.ID); ok {
		t.Fatalf("expected task deleted on server")
	}
	if len(m.lanes[0].Tasks) != 0 {
		t.Fatalf("expected empty board")
	}
}

func TestInbox_OpenMarksReadAndShowsTask(t *testing.T) {
	m, srv := newTestModel(t)
	task := srv.AddTask(model.Task{Title: "Linked"})
	id := task.ID
	srv.AddNotification(model.Notification{Title: "Task assigned", Message: "to you", TaskID: &id})
	m = loggedIn(t, m, "admin")

	if err := m.notify.Refresh(m.ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	m, _ = update(t, m, inboxMsg{snap: m.notify.Snapshot()})
	if !strings.Contains(m.renderHeader(), "1") {
		t.Fatalf("expected unread badge in header: %q", m.renderHeader())
	}

	m, cmd := press(t, m, "N")
	if m.modal != modalNotifications || cmd == nil {
		t.Fatalf("expected inbox with a refresh command")
	}
	m, cmd = press(t, m, "enter")
	if cmd == nil {
		t.Fatalf("expected open command")
	}
	m, _ = update(t, m, cmd())
	if m.view != viewDetail || m.detailID != task.ID {
		t.Fatalf("expected detail of task %d, got view=%v id=%d", task.ID, m.view, m.detailID)
	}
	if m.notify.Snapshot().Unread != 0 {
		t.Fatalf("expected notification marked read")
	}
}

func TestSessionExpiry_ReturnsToLogin(t *testing.T) {
	m, srv := newTestModel(t)
	srv.AddTask(model.Task{Title: "Secret"})
	m = loggedIn(t, m, "admin")

	srv.Revoke(m.auth.Session().Token())
	m, _ = update(t, m, m.fetchTasksCmd()())

	if m.view != viewLogin {
		t.Fatalf("expected login view after 401")
	}
	if m.login.err != sessionExpiredText {
		t.Fatalf("unexpected login message %q", m.login.err)
	}
	for _, l := range m.lanes {
		if len(l.Tasks) != 0 {
			t.Fatalf("expected board cleared")
		}
	}
}

func TestLogout_ClearsBoard(t *testing.T) {
	m, srv := newTestModel(t)
	srv.AddTask(model.Task{Title: "Alpha"})
	m = loggedIn(t, m, "admin")

	m, _ = press(t, m, "L")
	if m.view != viewLogin || m.auth.Session().Active() {
		t.Fatalf("expected logged out")
	}
	if strings.Contains(m.View(), "Alpha") {
		t.Fatalf("expected no tasks after logout")
	}
}

func TestUsers_ManagerCannotEditAdmin(t *testing.T) {
	m, srv := newTestModel(t)
	m = loggedIn(t, m, "gerente")

	m, cmd := press(t, m, "u")
	if m.view != viewUsers {
		t.Fatalf("expected users view")
	}
	m, _ = update(t, m, cmd())
	for i, it := range m.userList.Items() {
		if it.(pickItem).title == "admin" {
			m.userList.Select(i)
		}
	}
	srv.ResetCalls()
	m, _ = press(t, m, "e")
	if m.modal != modalNone {
		t.Fatalf("expected no edit form for an administrator")
	}
	if !strings.Contains(m.minibufferText, "managers cannot edit administrators") {
		t.Fatalf("unexpected message %q", m.minibufferText)
	}
	m, _ = press(t, m, "n")
	if m.modal != modalNone || !strings.Contains(m.minibufferText, "permission denied") {
		t.Fatalf("expected managers to be unable to create users")
	}
	if srv.Mutations() != 0 {
		t.Fatalf("expected no requests")
	}
}

func TestUsers_AdminCreatesUser(t *testing.T) {
	m, srv := newTestModel(t)
	m = loggedIn(t, m, "admin")

	m, _ = press(t, m, "u", "n")
	if m.modal != modalUserForm {
		t.Fatalf("expected user form")
	}
	m.userForm.username.SetValue("bob")
	m.userForm.email.SetValue("bob@example.com")
	m, cmd := press(t, m, "ctrl+s")
	m, _ = update(t, m, cmd())
	if m.modal != modalUserForm || !strings.Contains(m.userForm.err, "password is required") {
		t.Fatalf("expected validation error in form, got %q", m.userForm.err)
	}

	m.userForm.password.SetValue("pw")
	m, cmd = press(t, m, "ctrl+s")
	m, _ = update(t, m, cmd())
	if m.modal != modalNone {
		t.Fatalf("expected form closed, err=%q", m.userForm.err)
	}
	bob, ok := srv.UserByName("bob")
	if !ok || bob.Role != model.RoleViewOnly {
		t.Fatalf("expected view-only bob on server, got %+v", bob)
	}
}
