package cli

import (
	"context"
	"os"
	"os/signal"
	"time"

	"taskboard-cli/internal/format"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"

	"github.com/spf13/cobra"
)

func newNotificationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "inbox"},
		Short:   "Notification commands",
	}

	cmd.AddCommand(newNotificationsListCmd(app))
	cmd.AddCommand(newNotificationsCountCmd(app))
	cmd.AddCommand(newNotificationsReadCmd(app))
	cmd.AddCommand(newNotificationsReadAllCmd(app))
	cmd.AddCommand(newNotificationsWatchCmd(app))

	return cmd
}

func newNotificationsListCmd(app *App) *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := rt.client.ListNotifications(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := notificationList{}
			for _, n := range items {
				if unread && n.Read {
					continue
				}
				out = append(out, n)
			}
			return writeData(cmd, app, out)
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread notifications")
	return cmd
}

func newNotificationsCountCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the unread notification count",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := rt.client.UnreadCount(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"unread": n, "badge": notify.Badge(n)})
		},
	}
}

func newNotificationsReadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark one notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("notification", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := rt.client.MarkNotificationRead(ctx, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"id": id, "read": true})
		},
	}
}

func newNotificationsReadAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := rt.client.MarkAllNotificationsRead(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"unread": 0})
		},
	}
}

type watchEvent struct {
	At     time.Time            `json:"at"`
	Unread int                  `json:"unread"`
	Items  []model.Notification `json:"items"`
	Error  string               `json:"error,omitempty"`
}

func newNotificationsWatchCmd(app *App) *cobra.Command {
	var limit int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll notifications and print one JSON line per refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if interval <= 0 {
				interval = rt.cfg.PollInterval
			}
			p := notify.New(rt.client, rt.auth.Session(), notify.Options{
				Interval: interval,
				Grace:    rt.cfg.RefreshGrace,
				Logger:   rt.log,
			})
			p.Start(ctx)
			defer p.Stop()

			return watch(ctx, cmd, p, rt, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many refreshes (0 = until interrupted)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (default from config)")
	return cmd
}

func watch(ctx context.Context, cmd *cobra.Command, p *notify.Poller, rt *runtime, limit int) error {
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-p.Updates():
			if !rt.auth.Session().Active() {
				return writeErr(cmd, errNotLoggedIn)
			}
			ev := watchEvent{At: snap.At, Unread: snap.Unread, Items: snap.Items}
			if snap.Err != nil {
				ev.Error = describe(snap.Err)
			}
			if ev.Items == nil {
				ev.Items = []model.Notification{}
			}
			if err := format.WriteJSON(cmd.OutOrStdout(), ev, false); err != nil {
				return err
			}
			seen++
			if limit > 0 && seen >= limit {
				return nil
			}
		}
	}
}
