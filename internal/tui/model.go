package tui

import (
	"context"
	"log"

	"taskboard-cli/internal/auth"
	"taskboard-cli/internal/board"
	"taskboard-cli/internal/cache"
	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"
	"taskboard-cli/internal/perm"
	"taskboard-cli/internal/session"
	"taskboard-cli/internal/store"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
)

type view int

const (
	viewLogin view = iota
	viewBoard
	viewDetail
	viewUsers
)

type modalKind int

const (
	modalNone modalKind = iota
	modalTaskForm
	modalPickStatus
	modalPickOwner
	modalConfirmDeleteTask
	modalNotifications
	modalUserForm
	modalConfirmDeleteUser
)

// Task form focus order.
const (
	taskFocusTitle = iota
	taskFocusDescription
	taskFocusOwner
	taskFocusSave
	taskFocusCancel
	taskFocusCount
)

// User form focus order.
const (
	userFocusUsername = iota
	userFocusEmail
	userFocusPassword
	userFocusRole
	userFocusSave
	userFocusCancel
	userFocusCount
)

type loginForm struct {
	username textinput.Model
	password textinput.Model
	focus    int
	err      string
	busy     bool
}

// taskForm backs both "new task" and "edit task". editor is nil when creating.
type taskForm struct {
	editor *board.Editor
	title  textinput.Model
	desc   textarea.Model
	owner  *int64
	focus  int
}

type userForm struct {
	target   *model.User
	username textinput.Model
	email    textinput.Model
	password textinput.Model
	roles    []model.Role
	role     int
	focus    int
	err      string
}

// boardSel is the focused lane and card. taskID keeps the selection on the
// same card across re-fetches.
type boardSel struct {
	lane   int
	index  int
	taskID int64
}

type appModel struct {
	ctx context.Context

	auth   *auth.Service
	tasks  *cache.Tasks
	users  *cache.Users
	notify *notify.Poller
	store  store.Store
	log    *log.Logger

	// ended receives session end reasons from the session's OnEnd hook.
	ended chan session.Reason

	width  int
	height int

	view view
	user model.User
	caps perm.Capabilities

	login loginForm

	lanes   []board.Lane
	sel     boardSel
	drag    board.Drag
	loading bool

	detailID     int64
	detailScroll int

	modal        modalKind
	taskForm     taskForm
	picker       list.Model
	confirmFocus confirmModalFocus
	// targetID is the task or user the open modal acts on.
	targetID int64

	userList list.Model
	userForm userForm

	inbox     notify.Snapshot
	inboxList list.Model

	flashTaskID int64
	flashSeq    int

	minibufferText string
	minibufferErr  bool

	restoreLane string
	restoreTab  string
}

func newAppModel(ctx context.Context, opts Options) appModel {
	if ctx == nil {
		ctx = context.Background()
	}
	m := appModel{
		ctx:    ctx,
		auth:   opts.Auth,
		tasks:  opts.Tasks,
		users:  opts.Users,
		notify: opts.Notify,
		store:  opts.Store,
		log:    debuglog.Or(opts.Logger),
		ended:  make(chan session.Reason, 1),
		view:   viewLogin,
		login: loginForm{
			username: newInput("username", 128),
			password: newPasswordInput("password"),
		},
		picker:    newList(nil, false),
		userList:  newList(nil, true),
		inboxList: newList(nil, true),
		lanes:     board.Build(nil, ""),
	}
	m.login.username.Focus()

	ended := m.ended
	m.auth.Session().OnEnd(func(r session.Reason) {
		select {
		case ended <- r:
		default:
		}
	})
	// Task changes often produce notifications for someone; pull early.
	m.tasks.OnMutate(m.notify.Hint)

	if st, err := m.store.LoadTUIState(ctx); err == nil {
		m.restoreLane = st.SelectedLane
		m.restoreTab = st.Tab
	} else {
		m.log.Printf("tui: load state: %v", err)
	}
	return m
}

// beginSession switches to the board for u, as after a login or restore.
func (m *appModel) beginSession(u model.User) {
	m.user = u
	m.caps = perm.For(u.Role)
	m.view = viewBoard
	m.modal = modalNone
	m.login.busy = false
	m.login.err = ""
	m.login.password.SetValue("")
	m.drag.Cancel()
	if m.restoreLane != "" {
		if st, ok := model.ParseStatus(m.restoreLane); ok {
			m.sel = boardSel{lane: board.LaneIndex(st)}
		}
		m.restoreLane = ""
	}
	m.rebuildLanes()
	if m.restoreTab == "users" && m.caps.ManageUsers {
		m.view = viewUsers
	}
	m.restoreTab = ""
}

// endSession drops everything tied to the previous user and shows the login
// view with msg.
func (m *appModel) endSession(msg string) {
	m.user = model.User{}
	m.caps = perm.Capabilities{}
	m.view = viewLogin
	m.modal = modalNone
	m.drag.Cancel()
	m.lanes = board.Build(nil, "")
	m.sel = boardSel{}
	m.detailID = 0
	m.inbox = notify.Snapshot{}
	m.inboxList.SetItems(nil)
	m.userList.SetItems(nil)
	m.flashTaskID = 0
	m.login.busy = false
	m.login.err = msg
	m.login.password.SetValue("")
	m.login.focus = 0
	m.login.username.Focus()
	m.login.password.Blur()
}

// rebuildLanes re-projects the task cache onto the lanes and keeps the
// selection on the same card when it still exists.
func (m *appModel) rebuildLanes() {
	m.lanes = board.Build(m.tasks.Snapshot(), m.user.Role)
	if m.sel.taskID != 0 {
		for li, lane := range m.lanes {
			for ti, t := range lane.Tasks {
				if t.ID == m.sel.taskID {
					m.sel = boardSel{lane: li, index: ti, taskID: t.ID}
					return
				}
			}
		}
	}
	m.clampSelection()
}

func (m *appModel) clampSelection() {
	if m.sel.lane < 0 {
		m.sel.lane = 0
	}
	if m.sel.lane >= len(m.lanes) {
		m.sel.lane = len(m.lanes) - 1
	}
	n := len(m.lanes[m.sel.lane].Tasks)
	if m.sel.index >= n {
		m.sel.index = n - 1
	}
	if m.sel.index < 0 {
		m.sel.index = 0
	}
	m.sel.taskID = 0
	if n > 0 {
		m.sel.taskID = m.lanes[m.sel.lane].Tasks[m.sel.index].ID
	}
}

func (m appModel) selectedTask() (model.Task, bool) {
	if m.sel.lane < 0 || m.sel.lane >= len(m.lanes) {
		return model.Task{}, false
	}
	lane := m.lanes[m.sel.lane]
	if m.sel.index < 0 || m.sel.index >= len(lane.Tasks) {
		return model.Task{}, false
	}
	return lane.Tasks[m.sel.index], true
}

func (m *appModel) showMinibuffer(text string) {
	m.minibufferText = text
	m.minibufferErr = false
}

func (m *appModel) showError(text string) {
	m.minibufferText = text
	m.minibufferErr = true
}

func (m appModel) saveState() {
	st := &store.TUIState{Tab: "board"}
	if m.view == viewUsers {
		st.Tab = "users"
	}
	if m.sel.lane >= 0 && m.sel.lane < len(m.lanes) {
		st.SelectedLane = string(m.lanes[m.sel.lane].Status)
	}
	if err := m.store.SaveTUIState(m.ctx, st); err != nil {
		m.log.Printf("tui: save state: %v", err)
	}
}
