package model

import (
	"strings"
)

// Status is a task's kanban lane. Values are the server's wire values.
type Status string

const (
	StatusPending    Status = "pendente"
	StatusInProgress Status = "em_andamento"
	StatusInReview   Status = "em_revisao"
	StatusDone       Status = "concluida"
)

// Statuses lists every status in lane order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusInReview, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusInReview:
		return "In Review"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// ParseStatus accepts a wire value or an English alias (pending, in_progress,
// in-review, done, ...).
func ParseStatus(s string) (Status, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("-", "_", " ", "_").Replace(k)
	switch k {
	case string(StatusPending), "pending", "todo":
		return StatusPending, true
	case string(StatusInProgress), "in_progress", "doing":
		return StatusInProgress, true
	case string(StatusInReview), "in_review", "review":
		return StatusInReview, true
	case string(StatusDone), "done", "completed":
		return StatusDone, true
	}
	return "", false
}

// Role determines a user's fixed capability set.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManagerial Role = "gerencial"
	RoleViewOnly   Role = "visualizacao"
)

var Roles = []Role{RoleAdmin, RoleManagerial, RoleViewOnly}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManagerial, RoleViewOnly:
		return true
	}
	return false
}

func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleManagerial:
		return "Manager"
	case RoleViewOnly:
		return "View only"
	}
	return string(r)
}

func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleAdmin), "administrator":
		return RoleAdmin, true
	case string(RoleManagerial), "managerial", "manager":
		return RoleManagerial, true
	case string(RoleViewOnly), "view-only", "view_only", "viewer":
		return RoleViewOnly, true
	}
	return "", false
}

type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"titulo"`
	Description   string     `json:"descricao"`
	Status        Status     `json:"status"`
	OwnerID       int64      `json:"owner_id"`
	OwnerUsername string     `json:"owner_username,omitempty"`
	CreatedAt     *Timestamp `json:"created_at,omitempty"`
}

// TaskInput is the body of POST /tasks/ and PUT /tasks/{id}.
// OwnerID is only sent when explicitly chosen by an actor allowed to assign.
type TaskInput struct {
	Title       string `json:"titulo"`
	Description string `json:"descricao"`
	Status      Status `json:"status"`
	OwnerID     *int64 `json:"owner_id,omitempty"`
}

// Input returns the task's fields as an update body, without an owner.
func (t Task) Input() TaskInput {
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
	}
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// UserInput is the body of POST /users/ and PUT /users/{id}. Password is write-only.
type UserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

type Notification struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	TaskID    *int64     `json:"task_id,omitempty"`
	TaskTitle *string    `json:"task_title,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
}

// ValidTitle reports whether a task title is non-empty after trimming.
func ValidTitle(s string) bool {
	return strings.TrimSpace(s) != ""
}
