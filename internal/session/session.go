// Package session owns the authenticated identity: the bearer token, the
// user profile and an epoch counter that changes on every login and logout.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/perm"
)

type Reason int

const (
	ReasonLogout Reason = iota
	ReasonUnauthorized
)

func (r Reason) String() string {
	switch r {
	case ReasonLogout:
		return "logout"
	case ReasonUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// TokenStore persists the bearer token across restarts.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

var ErrEmptyToken = errors.New("empty token")

// Session is safe for concurrent use. Begin and End are the only ways to
// change it.
type Session struct {
	mu     sync.RWMutex
	token  string
	user   model.User
	active bool
	epoch  uint64

	nextListener int
	listeners    map[int]func(Reason)

	store TokenStore
	log   *log.Logger
}

// New returns an empty session. store may be nil (nothing is persisted).
func New(store TokenStore, logger *log.Logger) *Session {
	return &Session{
		store:     store,
		listeners: map[int]func(Reason){},
		log:       debuglog.Or(logger),
	}
}

// Begin installs token and user, persists the token and bumps the epoch.
// A persistence failure is logged but does not prevent the session.
func (s *Session) Begin(ctx context.Context, token string, user model.User) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	s.token = token
	s.user = user
	s.active = true
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.log.Printf("session begin user=%q role=%s epoch=%d", user.Username, user.Role, epoch)
	if s.store != nil {
		if err := s.store.SaveToken(ctx, token); err != nil {
			s.log.Printf("session: save token: %v", err)
		}
	}
	return nil
}

// End clears the session, removes the persisted token and notifies OnEnd
// listeners. Listeners only run when a session was actually active.
func (s *Session) End(ctx context.Context, reason Reason) {
	s.mu.Lock()
	wasActive := s.active
	s.token = ""
	s.user = model.User{}
	s.active = false
	if wasActive {
		s.epoch++
	}
	epoch := s.epoch
	fns := make([]func(Reason), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearToken(ctx); err != nil {
			s.log.Printf("session: clear token: %v", err)
		}
	}
	if !wasActive {
		return
	}
	s.log.Printf("session end reason=%s epoch=%d", reason, epoch)
	for _, fn := range fns {
		fn(reason)
	}
}

// OnEnd registers fn to run after each End of an active session.
// The returned func unregisters it.
func (s *Session) OnEnd(fn func(Reason)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the current profile; ok is false when logged out.
func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.active
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Role is the current user's role, or "" when logged out.
func (s *Session) Role() model.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Role
}

func (s *Session) Capabilities() perm.Capabilities {
	return perm.For(s.Role())
}

// Epoch identifies the current login. Results fetched under an older epoch
// must be discarded.
func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// StoredToken returns the token persisted by a previous run.
func (s *Session) StoredToken(ctx context.Context) (string, error) {
	if s.store == nil {
		return "", nil
	}
	return s.store.LoadToken(ctx)
}
