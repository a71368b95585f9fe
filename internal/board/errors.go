package board

import (
	"errors"
	"fmt"

	"taskboard-cli/internal/model"
)

var ErrInvalidStatus = errors.New("invalid status")

// DeniedError is a status move the actor's role does not allow. It is decided
// locally; the task keeps its status and nothing is sent to the server.
type DeniedError struct {
	Role   model.Role
	TaskID int64
	Target model.Status
}

func (e DeniedError) Error() string {
	if e.Target == model.StatusDone {
		return "view-only users cannot complete tasks"
	}
	return fmt.Sprintf("role %s cannot move tasks to %s", e.Role, e.Target.Label())
}

type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}
