// Package notify keeps the notification list and unread count fresh by
// polling; the server has no push channel.
package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/session"
)

var ErrNotLoggedIn = errors.New("not logged in")

type Fetcher interface {
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Snapshot is the state handed to the host view after every change.
type Snapshot struct {
	Items  []model.Notification
	Unread int
	// Err is the last fetch error, if the most recent refresh failed.
	Err error
	At  time.Time
}

type Options struct {
	Interval time.Duration
	Grace    time.Duration
	Logger   *log.Logger
}

// Poller is safe for concurrent use. Its lifetime is tied to the session:
// ending the session stops polling and clears the list.
type Poller struct {
	api      Fetcher
	sess     *session.Session
	log      *log.Logger
	interval time.Duration
	grace    time.Duration

	mu      sync.Mutex
	items   []model.Notification
	unread  int
	lastErr error
	at      time.Time
	cancel  context.CancelFunc
	runCtx  context.Context
	hint    *time.Timer
	updates chan Snapshot
}

func New(api Fetcher, sess *session.Session, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	p := &Poller{
		api:      api,
		sess:     sess,
		log:      debuglog.Or(opts.Logger),
		interval: opts.Interval,
		grace:    opts.Grace,
		updates:  make(chan Snapshot, 1),
	}
	sess.OnEnd(func(session.Reason) {
		p.Stop()
		p.mu.Lock()
		p.items, p.unread, p.lastErr = nil, 0, nil
		p.mu.Unlock()
		p.publish()
	})
	return p
}

// Updates delivers the latest snapshot. Only the newest pending snapshot is
// kept; a slow reader never blocks the poller.
func (p *Poller) Updates() <-chan Snapshot { return p.updates }

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() Snapshot {
	return Snapshot{
		Items:  append([]model.Notification(nil), p.items...),
		Unread: p.unread,
		Err:    p.lastErr,
		At:     p.at,
	}
}

func (p *Poller) publish() {
	snap := p.Snapshot()
	for {
		select {
		case p.updates <- snap:
			return
		default:
		}
		select {
		case <-p.updates:
		default:
		}
	}
}

// Run fetches immediately and then every interval until ctx is canceled,
// Stop is called or the session ends.
func (p *Poller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.runCtx = ctx
	p.mu.Unlock()
	defer cancel()

	_ = p.Refresh(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.sess.Active() {
				return ErrNotLoggedIn
			}
			_ = p.Refresh(ctx)
		}
	}
}

// Start runs the poller on its own goroutine.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Printf("notify: poller stopped: %v", err)
		}
	}()
}

// Stop cancels polling and any pending hint.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.runCtx = nil
	if p.hint != nil {
		p.hint.Stop()
		p.hint = nil
	}
}

// Refresh fetches the list and the unread count. Each half is applied on its
// own success; results from a previous session are dropped.
func (p *Poller) Refresh(ctx context.Context) error {
	if !p.sess.Active() {
		return ErrNotLoggedIn
	}
	epoch := p.sess.Epoch()
	items, listErr := p.api.ListNotifications(ctx)
	count, countErr := p.api.UnreadCount(ctx)

	p.mu.Lock()
	if epoch != p.sess.Epoch() {
		p.mu.Unlock()
		return nil
	}
	if listErr == nil {
		p.items = items
	}
	if countErr == nil {
		p.unread = count
	}
	err := errors.Join(listErr, countErr)
	p.lastErr = err
	p.at = time.Now()
	p.mu.Unlock()

	if err != nil {
		p.log.Printf("notify: refresh: %v", err)
	}
	p.publish()
	return err
}

// Hint schedules one extra refresh after the grace period, giving the server
// time to create notifications for a change the user just made. Hints that
// arrive before the timer fires push it back and share one refresh.
func (p *Poller) Hint() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hint != nil {
		p.hint.Reset(p.grace)
		return
	}
	p.hint = time.AfterFunc(p.grace, func() {
		p.mu.Lock()
		p.hint = nil
		ctx := p.runCtx
		p.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		_ = p.Refresh(ctx)
	})
}

// MarkRead marks one notification read and patches local state without a
// re-fetch. The unread count never goes below zero.
func (p *Poller) MarkRead(ctx context.Context, id int64) error {
	if err := p.api.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	p.mu.Lock()
	for i := range p.items {
		if p.items[i].ID == id {
			p.items[i].Read = true
		}
	}
	p.unread = max(0, p.unread-1)
	p.mu.Unlock()
	p.publish()
	return nil
}

func (p *Poller) MarkAllRead(ctx context.Context) error {
	if err := p.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	for i := range p.items {
		p.items[i].Read = true
	}
	p.unread = 0
	p.mu.Unlock()
	p.publish()
	return nil
}

// Open marks n read when needed and returns the task it points at, if any.
func (p *Poller) Open(ctx context.Context, n model.Notification) (*int64, error) {
	if !n.Read {
		if err := p.MarkRead(ctx, n.ID); err != nil {
			return nil, err
		}
	}
	if n.TaskID == nil {
		return nil, nil
	}
	id := *n.TaskID
	return &id, nil
}
