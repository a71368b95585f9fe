package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/apitest"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/session"
)

type env struct {
	srv  *apitest.Server
	sess *session.Session
	p    *Poller
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	sess := session.New(nil, nil)
	client := api.New(sess, api.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	ctx := context.Background()
	tok, err := client.Token(ctx, "admin", "admin")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	me, _ := client.Me(ctx, tok.AccessToken)
	if err := sess.Begin(ctx, tok.AccessToken, me); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	p := New(client, sess, opts)
	t.Cleanup(p.Stop)
	srv.ResetCalls()
	return &env{srv: srv, sess: sess, p: p}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func taskRef(id int64) *int64 { return &id }

func TestRefresh_LoadsListAndCount(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{})
	e.srv.AddNotification(model.Notification{Title: "a", Message: "m"})
	e.srv.AddNotification(model.Notification{Title: "b", Message: "m", Read: true})

	if err := e.p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := <-e.p.Updates()
	if len(snap.Items) != 2 || snap.Unread != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMarkAllRead_ZeroesCountAndFlagsAll(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{})
	for i := 0; i < 5; i++ {
		e.srv.AddNotification(model.Notification{Title: "n", Message: "m", Read: i%2 == 0})
	}
	ctx := context.Background()
	_ = e.p.Refresh(ctx)
	if e.p.Snapshot().Unread != 2 {
		t.Fatalf("expected 2 unread before, got %d", e.p.Snapshot().Unread)
	}
	e.srv.ResetCalls()

	if err := e.p.MarkAllRead(ctx); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	snap := e.p.Snapshot()
	if snap.Unread != 0 || len(snap.Items) != 5 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	for _, n := range snap.Items {
		if !n.Read {
			t.Fatalf("expected all read, got %+v", n)
		}
	}
	if e.srv.Count(http.MethodGet, "") != 0 {
		t.Fatalf("expected local patch without re-fetch")
	}
}

func TestMarkRead_FloorsAtZero(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{})
	n := e.srv.AddNotification(model.Notification{Title: "a", Message: "m"})
	ctx := context.Background()
	_ = e.p.Refresh(ctx)

	if err := e.p.MarkRead(ctx, n.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := e.p.MarkRead(ctx, n.ID); err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	snap := e.p.Snapshot()
	if snap.Unread != 0 || !snap.Items[0].Read {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMarkRead_FailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{})
	e.srv.AddNotification(model.Notification{Title: "a", Message: "m"})
	ctx := context.Background()
	_ = e.p.Refresh(ctx)

	err := e.p.MarkRead(ctx, 424242)
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if e.p.Snapshot().Unread != 1 {
		t.Fatalf("expected unread untouched")
	}
}

func TestOpen_ReturnsTaskAndMarksRead(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{})
	n := e.srv.AddNotification(model.Notification{Title: "Task assigned", Message: "m", TaskID: taskRef(42)})
	plain := e.srv.AddNotification(model.Notification{Title: "hello", Message: "m", Read: true})
	ctx := context.Background()
	_ = e.p.Refresh(ctx)
	e.srv.ResetCalls()

	id, err := e.p.Open(ctx, n)
	if err != nil || id == nil || *id != 42 {
		t.Fatalf("expected task 42, got %v %v", id, err)
	}
	if e.srv.Count(http.MethodPut, "") != 1 {
		t.Fatalf("expected one mark-read PUT")
	}

	id, err = e.p.Open(ctx, plain)
	if err != nil || id != nil {
		t.Fatalf("expected no task for plain notification, got %v %v", id, err)
	}
	if e.srv.Count(http.MethodPut, "") != 1 {
		t.Fatalf("expected already-read notification to skip PUT")
	}
}

func TestHint_CoalescesIntoOneRefresh(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{Grace: 50 * time.Millisecond})
	for i := 0; i < 5; i++ {
		e.p.Hint()
	}
	waitFor(t, "hinted refresh", func() bool {
		return e.srv.Count(http.MethodGet, "/notifications/unread-count") >= 1
	})
	time.Sleep(150 * time.Millisecond)
	if n := e.srv.Count(http.MethodGet, "/notifications/"); n != 1 {
		t.Fatalf("expected exactly one list fetch, got %d", n)
	}
}

func TestRun_PollsUntilSessionEnds(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{Interval: 20 * time.Millisecond})
	e.srv.AddNotification(model.Notification{Title: "a", Message: "m"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.p.Run(ctx) }()

	waitFor(t, "several polls", func() bool {
		return e.srv.Count(http.MethodGet, "/notifications/unread-count") >= 3
	})

	e.sess.End(context.Background(), session.ReasonLogout)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected poller to stop after logout")
	}
	if snap := e.p.Snapshot(); len(snap.Items) != 0 || snap.Unread != 0 {
		t.Fatalf("expected notifications cleared on logout, got %+v", snap)
	}
	before := e.srv.Count("", "")
	time.Sleep(60 * time.Millisecond)
	if e.srv.Count("", "") != before {
		t.Fatalf("expected no requests after logout")
	}
}

func TestRefresh_ConcurrentWithSessionEnd(t *testing.T) {
	t.Parallel()

	e := newEnv(t, Options{Interval: time.Millisecond, Grace: time.Millisecond})
	e.srv.SetHook(func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path != "/notifications/unread-count" {
			return false
		}
		time.Sleep(2 * time.Millisecond)
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
		return true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.p.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = e.p.Refresh(ctx)
				e.p.Hint()
				_ = e.p.Snapshot()
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	e.sess.End(context.Background(), session.ReasonLogout)
	wg.Wait()

	if err := e.p.Refresh(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn after logout, got %v", err)
	}
	if snap := e.p.Snapshot(); len(snap.Items) != 0 || snap.Unread != 0 {
		t.Fatalf("expected cleared snapshot, got %+v", snap)
	}
}

func TestAgeAndBadge(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{ago: 10 * time.Second, want: "now"},
		{ago: 5 * time.Minute, want: "5 min ago"},
		{ago: 3 * time.Hour, want: "3h ago"},
		{ago: 2 * 24 * time.Hour, want: "2d ago"},
		{ago: -time.Hour, want: "now"},
		{ago: time.Minute, want: "1 min ago"},
		{ago: 59*time.Minute + 59*time.Second, want: "59 min ago"},
		{ago: 23 * time.Hour, want: "23h ago"},
		{ago: 6*24*time.Hour + 23*time.Hour, want: "6d ago"},
	}
	for _, tc := range tests {
		if got := Age(now.Add(-tc.ago), now); got != tc.want {
			t.Fatalf("Age(-%v) = %q; want %q", tc.ago, got, tc.want)
		}
	}
	old := now.Add(-10 * 24 * time.Hour)
	if got := Age(old, now); got != old.Local().Format("2006-01-02") {
		t.Fatalf("expected a date for old entries, got %q", got)
	}
	if Age(time.Time{}, now) != "" {
		t.Fatalf("expected empty age for zero time")
	}

	if Badge(0) != "" || Badge(7) != "7" || Badge(120) != "99+" {
		t.Fatalf("unexpected badges %q %q %q", Badge(0), Badge(7), Badge(120))
	}
}
