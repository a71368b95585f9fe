package tui

import (
	"fmt"
	"strings"
	"time"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/cache"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"
	"taskboard-cli/internal/perm"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func newDescriptionArea(width int) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Description (markdown)"
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 4000
	ta.SetWidth(width)
	ta.SetHeight(6)
	return ta
}

// openTaskForm opens the new-task form, or the edit form when task is set.
func (m *appModel) openTaskForm(task *model.Task) tea.Cmd {
	bodyW := modalBodyWidth(m.width)
	f := taskForm{
		title: newInput("Title", 200),
		desc:  newDescriptionArea(bodyW),
	}
	f.title.Width = bodyW - 4
	if task != nil {
		ed := board.NewEditor(*task)
		if !ed.Begin(m.caps) {
			m.showError(perm.Deny(m.user.Role, "edit tasks").Error())
			return nil
		}
		f.editor = ed
		f.title.SetValue(ed.Title)
		f.desc.SetValue(ed.Description)
		m.targetID = task.ID
	}
	m.taskForm = f
	m.modal = modalTaskForm
	return m.focusTaskField(taskFocusTitle)
}

func (m *appModel) focusTaskField(i int) tea.Cmd {
	if i == taskFocusOwner && !m.caps.AssignOwner {
		if i > m.taskForm.focus {
			i++
		} else {
			i--
		}
	}
	i = (i + taskFocusCount) % taskFocusCount
	m.taskForm.focus = i
	m.taskForm.title.Blur()
	m.taskForm.desc.Blur()
	switch i {
	case taskFocusTitle:
		return m.taskForm.title.Focus()
	case taskFocusDescription:
		return m.taskForm.desc.Focus()
	}
	return nil
}

func (m *appModel) saveTaskForm() tea.Cmd {
	f := &m.taskForm
	title := f.title.Value()
	if f.editor == nil {
		if !model.ValidTitle(title) {
			return m.focusTaskField(taskFocusTitle)
		}
		d := cache.Draft{Title: title, Description: f.desc.Value()}
		if m.caps.AssignOwner && f.owner != nil {
			d.OwnerID = f.owner
		}
		m.modal = modalNone
		m.showMinibuffer("Creating task…")
		return m.createTaskCmd(d)
	}

	f.editor.Title = title
	f.editor.Description = f.desc.Value()
	if f.owner != nil {
		f.editor.ChooseOwner(m.caps, *f.owner)
	}
	edit, ok := f.editor.Save(m.caps)
	if !ok {
		// Blank titles are dropped without a message.
		return m.focusTaskField(taskFocusTitle)
	}
	m.modal = modalNone
	m.showMinibuffer(fmt.Sprintf("Saving #%d…", edit.Task.ID))
	return m.updateTaskCmd(edit)
}

func (m *appModel) closeTaskForm() {
	if m.taskForm.editor != nil {
		m.taskForm.editor.Cancel()
	}
	m.modal = modalNone
}

func (m *appModel) openStatusPicker(t model.Task) {
	items := []list.Item{}
	sel := 0
	for i, st := range board.StatusOptions(m.user.Role) {
		desc := ""
		if st == t.Status {
			desc = "current"
			sel = i
		}
		items = append(items, pickItem{title: st.Label(), desc: desc, value: string(st)})
	}
	m.picker = newList(items, false)
	m.sizePicker()
	m.picker.Select(sel)
	m.targetID = t.ID
	m.modal = modalPickStatus
}

func (m *appModel) openOwnerPicker() tea.Cmd {
	users := m.users.Snapshot()
	if len(users) == 0 {
		m.showMinibuffer("Loading users…")
		return m.fetchUsersCmd()
	}
	items := make([]list.Item, 0, len(users))
	sel := 0
	current := m.taskForm.owner
	if current == nil && m.taskForm.editor != nil {
		id := m.taskForm.editor.Task().OwnerID
		current = &id
	}
	for i, u := range users {
		if current != nil && u.ID == *current {
			sel = i
		}
		items = append(items, pickItem{title: u.Username, desc: u.Role.Label(), id: u.ID})
	}
	m.picker = newList(items, false)
	m.sizePicker()
	m.picker.Select(sel)
	m.modal = modalPickOwner
	return nil
}

func (m *appModel) sizePicker() {
	h := len(m.picker.Items()) + 1
	if limit := m.height - 12; h > limit {
		h = limit
	}
	if h < 3 {
		h = 3
	}
	m.picker.SetSize(modalBodyWidth(m.width), h)
}

func (m *appModel) openInbox() tea.Cmd {
	m.setInboxItems()
	m.modal = modalNotifications
	// Opening the panel always pulls fresh data.
	return m.refreshInboxCmd()
}

func (m *appModel) setInboxItems() {
	prev := m.inboxList.Index()
	now := time.Now()
	items := make([]list.Item, 0, len(m.inbox.Items))
	for _, n := range m.inbox.Items {
		title := "  " + n.Title
		if !n.Read {
			title = "● " + n.Title
		}
		desc := n.Message
		var at time.Time
		if n.CreatedAt != nil {
			at = n.CreatedAt.Time
		}
		if age := notify.Age(at, now); age != "" {
			desc += " · " + age
		}
		items = append(items, pickItem{title: title, desc: desc, id: n.ID})
	}
	m.inboxList.SetItems(items)
	h := m.height - 10
	if h < 4 {
		h = 4
	}
	m.inboxList.SetSize(modalBodyWidth(m.width), h)
	if prev >= 0 && prev < len(items) {
		m.inboxList.Select(prev)
	}
}

func (m appModel) selectedNotification() (model.Notification, bool) {
	it, ok := selectedPick(m.inboxList)
	if !ok {
		return model.Notification{}, false
	}
	for _, n := range m.inbox.Items {
		if n.ID == it.id {
			return n, true
		}
	}
	return model.Notification{}, false
}

func (m *appModel) openConfirm(kind modalKind, id int64) {
	m.modal = kind
	m.targetID = id
	m.confirmFocus = confirmFocusCancel
}

func (m appModel) renderModal() string {
	bodyW := modalBodyWidth(m.width)
	switch m.modal {
	case modalTaskForm:
		return m.renderTaskForm(bodyW)
	case modalPickStatus:
		return renderModalBox(m.width, fmt.Sprintf("Move #%d to…", m.targetID),
			m.picker.View()+"\n\n"+styleMuted().Render("enter: select  esc: cancel"))
	case modalPickOwner:
		return renderModalBox(m.width, "Owner",
			m.picker.View()+"\n\n"+styleMuted().Render("enter: select  esc: back"))
	case modalConfirmDeleteTask:
		title := fmt.Sprintf("#%d", m.targetID)
		if t, ok := m.tasks.Get(m.targetID); ok {
			title = fmt.Sprintf("%q (#%d)", t.Title, t.ID)
		}
		return renderConfirmModal(m.width, "Delete task", "Delete "+title+"? This cannot be undone.",
			"Delete", "Cancel", m.confirmFocus)
	case modalConfirmDeleteUser:
		name := fmt.Sprintf("user %d", m.targetID)
		if u, ok := m.users.Get(m.targetID); ok {
			name = u.Username
		}
		return renderConfirmModal(m.width, "Delete user", "Delete "+name+"? This cannot be undone.",
			"Delete", "Cancel", m.confirmFocus)
	case modalNotifications:
		return m.renderInbox()
	case modalUserForm:
		return m.renderUserForm(bodyW)
	}
	return ""
}

func fieldLabel(s string, focused bool) string {
	if focused {
		return lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render(s)
	}
	return styleMuted().Render(s)
}

func (m appModel) renderTaskForm(bodyW int) string {
	f := m.taskForm
	title := "New task"
	if f.editor != nil {
		title = fmt.Sprintf("Edit #%d", f.editor.Task().ID)
	}
	lines := []string{
		fieldLabel("Title", f.focus == taskFocusTitle),
		renderInputLine(bodyW, f.title.View()),
		"",
		fieldLabel("Description", f.focus == taskFocusDescription),
		f.desc.View(),
	}
	if m.caps.AssignOwner {
		owner := "unchanged"
		if f.editor == nil {
			owner = "me"
		}
		if f.owner != nil {
			owner = fmt.Sprintf("user %d", *f.owner)
			if u, ok := m.users.Get(*f.owner); ok {
				owner = u.Username
			}
		}
		lines = append(lines, "", fieldLabel("Owner", f.focus == taskFocusOwner)+"  "+owner+styleMuted().Render("  (enter to pick)"))
	}

	focused := -1
	switch f.focus {
	case taskFocusSave:
		focused = 0
	case taskFocusCancel:
		focused = 1
	}
	lines = append(lines,
		"",
		renderButtons([]string{"Save", "Cancel"}, focused),
		"",
		styleMuted().Render("tab: next field  ctrl+s: save  esc: cancel"),
	)
	return renderModalBox(m.width, title, strings.Join(lines, "\n"))
}

func (m appModel) renderInbox() string {
	title := "Notifications"
	if b := notify.Badge(m.inbox.Unread); b != "" {
		title += " (" + b + " unread)"
	}
	var body string
	if len(m.inbox.Items) == 0 {
		body = styleMuted().Render("No notifications.")
	} else {
		body = m.inboxList.View()
	}
	if m.inbox.Err != nil {
		body += "\n" + styleError().Render(describe(m.inbox.Err))
	}
	help := styleMuted().Render("enter: open  m: mark read  a: mark all read  r: refresh  esc: close")
	return renderModalBox(m.width, title, body+"\n\n"+help)
}

// updateModalKey routes keys while a modal is open.
func (m appModel) updateModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalTaskForm:
		return m.updateTaskFormKey(msg)
	case modalPickStatus, modalPickOwner:
		return m.updatePickerKey(msg)
	case modalConfirmDeleteTask, modalConfirmDeleteUser:
		return m.updateConfirmKey(msg)
	case modalNotifications:
		return m.updateInboxKey(msg)
	case modalUserForm:
		return m.updateUserFormKey(msg)
	}
	return m, nil
}

func (m appModel) updateTaskFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeTaskForm()
		return m, nil
	case "tab":
		return m, m.focusTaskField(m.taskForm.focus + 1)
	case "shift+tab":
		return m, m.focusTaskField(m.taskForm.focus - 1)
	case "ctrl+s":
		return m, m.saveTaskForm()
	case "enter":
		switch m.taskForm.focus {
		case taskFocusTitle:
			return m, m.focusTaskField(taskFocusDescription)
		case taskFocusOwner:
			return m, m.openOwnerPicker()
		case taskFocusSave:
			return m, m.saveTaskForm()
		case taskFocusCancel:
			m.closeTaskForm()
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.taskForm.focus {
	case taskFocusTitle:
		m.taskForm.title, cmd = m.taskForm.title.Update(msg)
	case taskFocusDescription:
		m.taskForm.desc, cmd = m.taskForm.desc.Update(msg)
	}
	return m, cmd
}

func (m appModel) updatePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		if m.modal == modalPickOwner {
			m.modal = modalTaskForm
		} else {
			m.modal = modalNone
		}
		return m, nil
	case "enter":
		it, ok := selectedPick(m.picker)
		if !ok {
			return m, nil
		}
		if m.modal == modalPickOwner {
			id := it.id
			m.taskForm.owner = &id
			m.modal = modalTaskForm
			return m, nil
		}
		m.modal = modalNone
		st, _ := model.ParseStatus(it.value)
		t, ok := m.tasks.Get(m.targetID)
		if !ok {
			return m, nil
		}
		mv, err := board.Transition(m.user.Role, t, st)
		if err != nil {
			return m.flashDenied(t.ID, err)
		}
		if !mv.Changed {
			return m, nil
		}
		m.showMinibuffer(fmt.Sprintf("Moving #%d to %s…", t.ID, st.Label()))
		return m, m.setStatusCmd(t.ID, st)
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m appModel) updateConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n", "q":
		m.modal = modalNone
		return m, nil
	case "tab", "shift+tab", "left", "right", "h", "l":
		m.confirmFocus = m.confirmFocus.toggle()
		return m, nil
	case "y":
		m.confirmFocus = confirmFocusConfirm
	case "enter":
	default:
		return m, nil
	}
	kind := m.modal
	m.modal = modalNone
	if m.confirmFocus != confirmFocusConfirm {
		return m, nil
	}
	if kind == modalConfirmDeleteUser {
		m.showMinibuffer("Deleting user…")
		return m, m.deleteUserCmd(m.targetID)
	}
	m.showMinibuffer(fmt.Sprintf("Deleting #%d…", m.targetID))
	return m, m.deleteTaskCmd(m.targetID)
}

func (m appModel) updateInboxKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "N":
		m.modal = modalNone
		return m, nil
	case "r":
		return m, m.refreshInboxCmd()
	case "a":
		return m, m.markAllReadCmd()
	case "m", " ", "space":
		if n, ok := m.selectedNotification(); ok && !n.Read {
			return m, m.markReadCmd(n.ID)
		}
		return m, nil
	case "enter":
		if n, ok := m.selectedNotification(); ok {
			return m, m.openNotificationCmd(n)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.inboxList, cmd = m.inboxList.Update(msg)
	return m, cmd
}
