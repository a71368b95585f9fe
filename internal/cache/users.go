package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/perm"
	"taskboard-cli/internal/session"
)

type UserAPI interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, in model.UserInput) (model.User, error)
	UpdateUser(ctx context.Context, id int64, in model.UserInput) (model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

var errManagerEditsAdmin = perm.Error{Reason: "managers cannot edit administrators"}

// Users is the user list, available to roles with ManageUsers.
type Users struct {
	api  UserAPI
	sess *session.Session
	log  *log.Logger

	mu      sync.Mutex
	users   []model.User
	seq     uint64
	applied uint64
}

func NewUsers(client UserAPI, sess *session.Session, logger *log.Logger) *Users {
	u := &Users{api: client, sess: sess, log: debuglog.Or(logger)}
	sess.OnEnd(func(session.Reason) {
		u.mu.Lock()
		u.users = nil
		u.mu.Unlock()
	})
	return u
}

func (u *Users) Snapshot() []model.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]model.User(nil), u.users...)
}

func (u *Users) Get(id int64) (model.User, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, it := range u.users {
		if it.ID == id {
			return it, true
		}
	}
	return model.User{}, false
}

// Fetch loads the user list. A 401 surfaces as ErrSessionExpired.
func (u *Users) Fetch(ctx context.Context) ([]model.User, error) {
	if !u.sess.Active() {
		return nil, ErrNotLoggedIn
	}
	role := u.sess.Role()
	if !perm.For(role).ManageUsers {
		return nil, perm.Deny(role, "list users")
	}
	u.mu.Lock()
	u.seq++
	seq := u.seq
	u.mu.Unlock()
	epoch := u.sess.Epoch()

	list, err := u.api.ListUsers(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if seq <= u.applied || epoch != u.sess.Epoch() {
		return append([]model.User(nil), u.users...), nil
	}
	u.users = list
	u.applied = seq
	return append([]model.User(nil), list...), nil
}

func validateUserInput(in model.UserInput, creating bool) error {
	if strings.TrimSpace(in.Username) == "" {
		return errors.New("username is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return errors.New("email is required")
	}
	if creating && in.Password == "" {
		return errors.New("password is required")
	}
	if !in.Role.Valid() {
		return fmt.Errorf("invalid role %q", in.Role)
	}
	return nil
}

// Create adds an account. Admin only.
func (u *Users) Create(ctx context.Context, in model.UserInput) (model.User, error) {
	role := u.sess.Role()
	if !perm.For(role).CreateUsers {
		return model.User{}, perm.Deny(role, "create users")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateUserInput(in, true); err != nil {
		return model.User{}, err
	}
	created, err := u.api.CreateUser(ctx, in)
	if err != nil {
		return model.User{}, err
	}
	return created, u.refresh(ctx, "create")
}

// Update edits target. Managers may not edit administrators nor grant the
// admin role. An empty password is left out of the request.
func (u *Users) Update(ctx context.Context, target model.User, in model.UserInput) (model.User, error) {
	role := u.sess.Role()
	if !perm.For(role).ManageUsers {
		return model.User{}, perm.Deny(role, "edit users")
	}
	if !perm.CanEditUser(role, target.Role) {
		return model.User{}, errManagerEditsAdmin
	}
	if !perm.CanGrantRole(role, in.Role) {
		return model.User{}, perm.Error{Role: role, Reason: "managers cannot grant the admin role"}
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateUserInput(in, false); err != nil {
		return model.User{}, err
	}
	updated, err := u.api.UpdateUser(ctx, target.ID, in)
	if err != nil {
		return model.User{}, err
	}
	return updated, u.refresh(ctx, "update")
}

// Delete removes an account. Admin only, and only when confirmed.
func (u *Users) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	role := u.sess.Role()
	if !perm.For(role).DeleteUsers {
		return perm.Deny(role, "delete users")
	}
	if err := u.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	return u.refresh(ctx, "delete")
}

func (u *Users) refresh(ctx context.Context, op string) error {
	if _, err := u.Fetch(ctx); err != nil {
		u.log.Printf("users: refresh after %s: %v", op, err)
		return fmt.Errorf("%s succeeded but refresh failed: %w", op, err)
	}
	return nil
}
