package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/apitest"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/session"
	"taskboard-cli/internal/store"
)

func newService(t *testing.T) (*Service, *apitest.Server, store.Store) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	st := store.Store{Dir: t.TempDir()}
	sess := session.New(st, nil)
	client := api.New(sess, api.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	return NewService(client, nil), srv, st
}

func TestLogin_BeginsSessionAndPersistsToken(t *testing.T) {
	t.Parallel()

	svc, _, st := newService(t)
	ctx := context.Background()

	u, err := svc.Login(ctx, "gerente", "gerente")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Role != model.RoleManagerial {
		t.Fatalf("expected gerencial profile, got %+v", u)
	}
	tok, _ := st.LoadToken(ctx)
	if tok == "" || tok != svc.Session().Token() {
		t.Fatalf("expected token persisted, got %q", tok)
	}
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()

	svc, _, st := newService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "admin", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, " ", "x"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if svc.Session().Active() {
		t.Fatalf("expected no session after failures")
	}
	if tok, _ := st.LoadToken(ctx); tok != "" {
		t.Fatalf("expected nothing persisted, got %q", tok)
	}
}

func TestLogin_ConnectionFailure(t *testing.T) {
	t.Parallel()

	srv := apitest.New()
	base := srv.URL
	srv.Close()
	client := api.New(session.New(nil, nil), api.Options{BaseURL: base, Timeout: time.Second})
	svc := NewService(client, nil)

	if _, err := svc.Login(context.Background(), "admin", "admin"); !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestLogin_ProfileFallbackUsesClaims(t *testing.T) {
	t.Parallel()

	svc, srv, _ := newService(t)
	srv.SetMeFails(true)

	u, err := svc.Login(context.Background(), "admin", "admin")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Username != "admin" || u.Role != model.RoleAdmin {
		t.Fatalf("expected fallback profile from token claims, got %+v", u)
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	t.Parallel()

	svc, _, st := newService(t)
	ctx := context.Background()
	if _, err := svc.Login(ctx, "admin", "admin"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	svc.Logout(ctx)
	if svc.Session().Active() {
		t.Fatalf("expected logged out")
	}
	if tok, _ := st.LoadToken(ctx); tok != "" {
		t.Fatalf("expected persisted token cleared, got %q", tok)
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("valid stored token", func(t *testing.T) {
		svc, srv, st := newService(t)
		_ = st.SaveToken(ctx, srv.IssueToken("viewer", time.Hour))
		u, err := svc.Restore(ctx)
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if u.Username != "viewer" || !svc.Session().Active() {
			t.Fatalf("expected restored viewer session, got %+v", u)
		}
	})

	t.Run("no token", func(t *testing.T) {
		svc, _, _ := newService(t)
		if _, err := svc.Restore(ctx); !errors.Is(err, ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("expired token is cleared without a request", func(t *testing.T) {
		svc, srv, st := newService(t)
		_ = st.SaveToken(ctx, srv.IssueToken("viewer", -time.Minute))
		if _, err := svc.Restore(ctx); !errors.Is(err, ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
		if srv.Count("", "") != 0 {
			t.Fatalf("expected no requests, got %d", srv.Count("", ""))
		}
		if tok, _ := st.LoadToken(ctx); tok != "" {
			t.Fatalf("expected expired token cleared")
		}
	})

	t.Run("opaque token is checked by the server", func(t *testing.T) {
		svc, srv, st := newService(t)
		srv.SetHook(func(w http.ResponseWriter, r *http.Request) bool {
			if r.URL.Path != "/users/me/" {
				return false
			}
			if r.Header.Get("Authorization") != "Bearer opaque-abc123" {
				http.Error(w, `{"detail":"Could not validate credentials"}`, http.StatusUnauthorized)
				return true
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":7,"username":"carol","email":"carol@example.com","role":"gerencial"}`))
			return true
		})
		_ = st.SaveToken(ctx, "opaque-abc123")

		u, err := svc.Restore(ctx)
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if u.Username != "carol" || !svc.Session().Active() {
			t.Fatalf("expected restored carol session, got %+v", u)
		}
		if srv.Count(http.MethodGet, "/users/me/") != 1 {
			t.Fatalf("expected the profile to be fetched once")
		}
		if got, _ := st.LoadToken(ctx); got != "opaque-abc123" {
			t.Fatalf("expected opaque token kept, got %q", got)
		}
	})

	t.Run("opaque token rejected by the server is cleared", func(t *testing.T) {
		svc, _, st := newService(t)
		_ = st.SaveToken(ctx, "not-a-jwt")
		if _, err := svc.Restore(ctx); !errors.Is(err, ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
		if got, _ := st.LoadToken(ctx); got != "" {
			t.Fatalf("expected rejected token cleared, got %q", got)
		}
	})

	t.Run("revoked token is cleared", func(t *testing.T) {
		svc, srv, st := newService(t)
		tok := srv.IssueToken("admin", time.Hour)
		srv.Revoke(tok)
		_ = st.SaveToken(ctx, tok)
		if _, err := svc.Restore(ctx); !errors.Is(err, ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
		if got, _ := st.LoadToken(ctx); got != "" {
			t.Fatalf("expected revoked token cleared")
		}
	})
}
