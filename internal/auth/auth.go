// Package auth turns credentials or a stored token into a session.
package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrConnection         = errors.New("could not reach server")
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrNoSession means there was no usable stored token.
	ErrNoSession = errors.New("not logged in")
)

type Service struct {
	api  *api.Client
	sess *session.Session
	log  *log.Logger
	now  func() time.Time
}

func NewService(client *api.Client, logger *log.Logger) *Service {
	return &Service{
		api:  client,
		sess: client.Session(),
		log:  debuglog.Or(logger),
		now:  time.Now,
	}
}

func (s *Service) Session() *session.Session { return s.sess }

// Login exchanges credentials for a token and begins a session. Any failure
// leaves the session logged out.
func (s *Service) Login(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, ErrMissingCredentials
	}
	tok, err := s.api.Token(ctx, username, password)
	if err != nil {
		if api.IsNetwork(err) {
			return model.User{}, ErrConnection
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.User{}, err
		}
		s.log.Printf("auth: login %q rejected: %v", username, err)
		return model.User{}, ErrInvalidCredentials
	}
	user, err := s.profile(ctx, tok.AccessToken, username)
	if err != nil {
		return model.User{}, err
	}
	if err := s.sess.Begin(ctx, tok.AccessToken, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// profile fetches /users/me/. When that fails for a reason other than a
// rejected token, the profile falls back to the login name with the role the
// token claims, or view-only.
func (s *Service) profile(ctx context.Context, token, username string) (model.User, error) {
	user, err := s.api.Me(ctx, token)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return model.User{}, ErrInvalidCredentials
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.User{}, err
	}
	s.log.Printf("auth: profile fetch failed, using fallback: %v", err)
	fallback := model.User{Username: username, Role: model.RoleViewOnly}
	if c, cerr := session.PeekClaims(token); cerr == nil {
		if c.Subject != "" {
			fallback.Username = c.Subject
		}
		if c.Role != "" {
			fallback.Role = c.Role
		}
	}
	return fallback, nil
}

// Logout ends the session and forgets the stored token.
func (s *Service) Logout(ctx context.Context) {
	s.sess.End(ctx, session.ReasonLogout)
}

// Restore resumes the session from the stored token. Expired or rejected
// tokens are cleared and ErrNoSession is returned.
func (s *Service) Restore(ctx context.Context) (model.User, error) {
	if u, ok := s.sess.User(); ok {
		return u, nil
	}
	tok, err := s.sess.StoredToken(ctx)
	if err != nil {
		return model.User{}, err
	}
	if tok == "" {
		return model.User{}, ErrNoSession
	}
	// Tokens are opaque to the client; only a readable, expired exp claim
	// is rejected locally. Anything else is left to the server.
	if c, err := session.PeekClaims(tok); err == nil && c.Expired(s.now()) {
		s.log.Printf("auth: stored token expired at %s", c.ExpiresAt.Format(time.RFC3339))
		s.sess.End(ctx, session.ReasonUnauthorized)
		return model.User{}, ErrNoSession
	}
	user, err := s.api.Me(ctx, tok)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrUnauthorized):
		s.sess.End(ctx, session.ReasonUnauthorized)
		return model.User{}, ErrNoSession
	case api.IsNetwork(err):
		return model.User{}, ErrConnection
	default:
		return model.User{}, err
	}
	if err := s.sess.Begin(ctx, tok, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}
