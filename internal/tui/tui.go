// Package tui is the interactive kanban board: login, the four-lane board
// with keyboard and mouse drag-and-drop, task details, the notification
// inbox and user administration.
package tui

import (
	"context"
	"errors"
	"log"

	"taskboard-cli/internal/auth"
	"taskboard-cli/internal/cache"
	"taskboard-cli/internal/notify"
	"taskboard-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	Auth   *auth.Service
	Tasks  *cache.Tasks
	Users  *cache.Users
	Notify *notify.Poller
	Store  store.Store
	Theme  string // light, dark or auto
	Logger *log.Logger
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Auth == nil || opts.Tasks == nil || opts.Users == nil || opts.Notify == nil {
		return errors.New("tui: missing dependency")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	applyColorProfilePreference()
	applyThemePreference(opts.Theme)

	m := newAppModel(ctx, opts)
	defer opts.Notify.Stop()

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
