package perm

import (
	"fmt"

	"taskboard-cli/internal/model"
)

// Capabilities is the fixed permission set derived from a role.
// There are no per-user overrides.
type Capabilities struct {
	ManageTasks   bool `json:"manageTasks"`
	AssignOwner   bool `json:"assignOwner"`
	ManageUsers   bool `json:"manageUsers"`
	DeleteUsers   bool `json:"deleteUsers"`
	CreateUsers   bool `json:"createUsers"`
	CompleteTasks bool `json:"completeTasks"`
}

// For maps a role to its capabilities. Unknown roles get the view-only set.
//
// Rules:
//   - admin: everything.
//   - gerencial: manage/assign tasks, manage non-admin users, complete tasks;
//     cannot create or delete users.
//   - visualizacao: read plus status moves short of done.
func For(role model.Role) Capabilities {
	switch role {
	case model.RoleAdmin:
		return Capabilities{
			ManageTasks:   true,
			AssignOwner:   true,
			ManageUsers:   true,
			DeleteUsers:   true,
			CreateUsers:   true,
			CompleteTasks: true,
		}
	case model.RoleManagerial:
		return Capabilities{
			ManageTasks:   true,
			AssignOwner:   true,
			ManageUsers:   true,
			CompleteTasks: true,
		}
	default:
		return Capabilities{}
	}
}

// CanSetStatus reports whether role may move a task into status.
func CanSetStatus(role model.Role, status model.Status) bool {
	if !status.Valid() {
		return false
	}
	if status == model.StatusDone {
		return For(role).CompleteTasks
	}
	return true
}

// CanEditUser reports whether actor may edit an account with role target.
// Managers can edit users, but never administrators.
func CanEditUser(actor, target model.Role) bool {
	if !For(actor).ManageUsers {
		return false
	}
	if actor == model.RoleManagerial && target == model.RoleAdmin {
		return false
	}
	return true
}

// CanGrantRole reports whether actor may give an account the role next.
func CanGrantRole(actor, next model.Role) bool {
	if !For(actor).ManageUsers {
		return false
	}
	return actor == model.RoleAdmin || next != model.RoleAdmin
}

// Error is a client-side permission denial. No request is sent when it is returned.
type Error struct {
	Role   model.Role
	Action string
	Reason string
}

func (e Error) Error() string {
	if e.Reason != "" {
		return "permission denied: " + e.Reason
	}
	return fmt.Sprintf("permission denied: role %s cannot %s", roleOrUnknown(e.Role), e.Action)
}

func Deny(role model.Role, action string) error {
	return Error{Role: role, Action: action}
}

func roleOrUnknown(r model.Role) string {
	if r == "" {
		return "(none)"
	}
	return string(r)
}
