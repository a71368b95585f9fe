package tui

import (
	"fmt"
	"strings"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/perm"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *appModel) setUserItems() {
	prev := m.userList.Index()
	users := m.users.Snapshot()
	items := make([]list.Item, 0, len(users))
	for _, u := range users {
		desc := u.Role.Label()
		if u.Email != "" {
			desc = u.Email + " · " + desc
		}
		if !perm.CanEditUser(m.user.Role, u.Role) {
			desc += " · read-only"
		}
		items = append(items, pickItem{title: u.Username, desc: desc, id: u.ID})
	}
	m.userList.SetItems(items)
	m.userList.SetSize(m.width, m.bodyHeight())
	if prev >= 0 && prev < len(items) {
		m.userList.Select(prev)
	}
}

func (m appModel) selectedUser() (model.User, bool) {
	it, ok := selectedPick(m.userList)
	if !ok {
		return model.User{}, false
	}
	return m.users.Get(it.id)
}

// grantableRoles lists the roles the current user may assign.
func (m appModel) grantableRoles() []model.Role {
	var out []model.Role
	for _, r := range model.Roles {
		if perm.CanGrantRole(m.user.Role, r) {
			out = append(out, r)
		}
	}
	return out
}

// openUserForm opens the create form, or the edit form for target.
func (m *appModel) openUserForm(target *model.User) tea.Cmd {
	bodyW := modalBodyWidth(m.width)
	f := userForm{
		username: newInput("username", 64),
		email:    newInput("email", 254),
		password: newPasswordInput("password"),
		roles:    m.grantableRoles(),
	}
	f.username.Width = bodyW - 4
	f.email.Width = bodyW - 4
	f.password.Width = bodyW - 4
	f.role = len(f.roles) - 1
	if target != nil {
		t := *target
		f.target = &t
		f.username.SetValue(t.Username)
		f.email.SetValue(t.Email)
		f.password.Placeholder = "leave empty to keep"
		for i, r := range f.roles {
			if r == t.Role {
				f.role = i
			}
		}
	}
	m.userForm = f
	m.modal = modalUserForm
	return m.focusUserField(userFocusUsername)
}

func (m *appModel) focusUserField(i int) tea.Cmd {
	i = (i + userFocusCount) % userFocusCount
	f := &m.userForm
	f.focus = i
	f.username.Blur()
	f.email.Blur()
	f.password.Blur()
	switch i {
	case userFocusUsername:
		return f.username.Focus()
	case userFocusEmail:
		return f.email.Focus()
	case userFocusPassword:
		return f.password.Focus()
	}
	return nil
}

func (m *appModel) saveUserForm() tea.Cmd {
	f := &m.userForm
	if len(f.roles) == 0 {
		f.err = perm.Deny(m.user.Role, "manage users").Error()
		return nil
	}
	in := model.UserInput{
		Username: strings.TrimSpace(f.username.Value()),
		Email:    strings.TrimSpace(f.email.Value()),
		Password: f.password.Value(),
		Role:     f.roles[f.role],
	}
	f.err = ""
	if f.target == nil {
		m.showMinibuffer("Creating user…")
		return m.createUserCmd(in)
	}
	m.showMinibuffer(fmt.Sprintf("Saving %s…", f.target.Username))
	return m.updateUserCmd(*f.target, in)
}

func (m appModel) renderUserForm(bodyW int) string {
	f := m.userForm
	title := "New user"
	if f.target != nil {
		title = "Edit " + f.target.Username
	}
	role := "(none)"
	if len(f.roles) > 0 {
		var parts []string
		for i, r := range f.roles {
			if i == f.role {
				parts = append(parts, "["+r.Label()+"]")
			} else {
				parts = append(parts, r.Label())
			}
		}
		role = strings.Join(parts, " ")
	}

	focused := -1
	switch f.focus {
	case userFocusSave:
		focused = 0
	case userFocusCancel:
		focused = 1
	}
	lines := []string{
		fieldLabel("Username", f.focus == userFocusUsername),
		renderInputLine(bodyW, f.username.View()),
		fieldLabel("Email", f.focus == userFocusEmail),
		renderInputLine(bodyW, f.email.View()),
		fieldLabel("Password", f.focus == userFocusPassword),
		renderInputLine(bodyW, f.password.View()),
		"",
		fieldLabel("Role", f.focus == userFocusRole) + "  " + role,
		"",
		renderButtons([]string{"Save", "Cancel"}, focused),
	}
	if f.err != "" {
		lines = append(lines, "", styleError().Width(bodyW).Render(f.err))
	}
	lines = append(lines, "", styleMuted().Render("tab: next field  ←/→: role  ctrl+s: save  esc: cancel"))
	return renderModalBox(m.width, title, strings.Join(lines, "\n"))
}

func (m appModel) updateUserFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.userForm
	switch msg.String() {
	case "esc":
		m.modal = modalNone
		return m, nil
	case "tab", "down":
		return m, m.focusUserField(f.focus + 1)
	case "shift+tab", "up":
		return m, m.focusUserField(f.focus - 1)
	case "ctrl+s":
		return m, m.saveUserForm()
	case "left", "right":
		if f.focus == userFocusRole && len(f.roles) > 0 {
			d := 1
			if msg.String() == "left" {
				d = -1
			}
			f.role = (f.role + d + len(f.roles)) % len(f.roles)
			return m, nil
		}
	case "enter":
		switch f.focus {
		case userFocusSave:
			return m, m.saveUserForm()
		case userFocusCancel:
			m.modal = modalNone
			return m, nil
		default:
			return m, m.focusUserField(f.focus + 1)
		}
	}

	var cmd tea.Cmd
	switch f.focus {
	case userFocusUsername:
		f.username, cmd = f.username.Update(msg)
	case userFocusEmail:
		f.email, cmd = f.email.Update(msg)
	case userFocusPassword:
		f.password, cmd = f.password.Update(msg)
	}
	return m, cmd
}

func (m appModel) updateUsersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "b", "esc":
		m.view = viewBoard
		return m, nil
	case "n":
		if !m.caps.CreateUsers {
			m.showError(perm.Deny(m.user.Role, "create users").Error())
			return m, nil
		}
		return m, m.openUserForm(nil)
	case "e", "enter":
		u, ok := m.selectedUser()
		if !ok {
			return m, nil
		}
		if !perm.CanEditUser(m.user.Role, u.Role) {
			m.showError(perm.Error{Role: m.user.Role, Reason: "managers cannot edit administrators"}.Error())
			return m, nil
		}
		return m, m.openUserForm(&u)
	case "d", "delete":
		u, ok := m.selectedUser()
		if !ok {
			return m, nil
		}
		if !m.caps.DeleteUsers {
			m.showError(perm.Deny(m.user.Role, "delete users").Error())
			return m, nil
		}
		if u.ID == m.user.ID {
			m.showError("you cannot delete your own account")
			return m, nil
		}
		m.openConfirm(modalConfirmDeleteUser, u.ID)
		return m, nil
	}
	var cmd tea.Cmd
	m.userList, cmd = m.userList.Update(msg)
	return m, cmd
}
