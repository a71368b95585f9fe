package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/auth"
	"taskboard-cli/internal/cache"
	"taskboard-cli/internal/config"
	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/format"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"
	"taskboard-cli/internal/session"
	"taskboard-cli/internal/store"
	"taskboard-cli/internal/tui"

	"github.com/spf13/cobra"
)

type App struct {
	BaseURL    string
	DebugLog   string
	PrettyJSON bool
	Format     string

	rt *runtime
}

// runtime is everything a command needs once configuration is resolved.
type runtime struct {
	cfg    *config.Config
	log    *log.Logger
	closer io.Closer
	store  store.Store
	client *api.Client
	auth   *auth.Service
	tasks  *cache.Tasks
	users  *cache.Users
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Kanban task board client (TUI + CLI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive board
  taskboard

  # Scriptable commands
  taskboard login -u alice
  taskboard tasks list --format table
  taskboard tasks move 12 in_review

  # Direct task lookup (shortcut for: taskboard tasks show 12)
  taskboard task-12
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}


	cmd.PersistentFlags().StringVar(&app.BaseURL, "base-url", "", "API base URL (overrides config and TASKBOARD_BASE_URL)")
	cmd.PersistentFlags().StringVar(&app.DebugLog, "debug-log", "", "Append request and state logs to this file")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TASKBOARD_FORMAT", "json"), "Output format (json|table)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newNotificationsCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	closeAfterRun(cmd, app)
	return cmd
}

// closeAfterRun releases the runtime when each command returns. Cobra skips
// post-run hooks after a failed RunE, so the close is deferred inside it.
func closeAfterRun(c *cobra.Command, app *App) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			defer app.close()
			return run(cmd, args)
		}
	}
	for _, sub := range c.Commands() {
		closeAfterRun(sub, app)
	}
}

// open resolves configuration and wires the client stack. It is idempotent
// within one command invocation.
func (app *App) open() (*runtime, error) {
	if app.rt != nil {
		return app.rt, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(app.BaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(app.DebugLog); v != "" {
		cfg.DebugLog = v
	}

	logger, closer, err := debuglog.Open(cfg.DebugLog)
	if err != nil {
		return nil, err
	}
	st := store.Store{Dir: cfg.StateDir}
	sess := session.New(st, logger)
	client := api.New(sess, api.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	app.rt = &runtime{
		cfg:    cfg,
		log:    logger,
		closer: closer,
		store:  st,
		client: client,
		auth:   auth.NewService(client, logger),
		tasks:  cache.NewTasks(client, sess, logger),
		users:  cache.NewUsers(client, sess, logger),
	}
	return app.rt, nil
}

func (app *App) close() {
	if app.rt != nil && app.rt.closer != nil {
		_ = app.rt.closer.Close()
	}
	app.rt = nil
}

// loggedIn opens the runtime and restores the stored session.
func (app *App) loggedIn(ctx context.Context) (*runtime, model.User, error) {
	rt, err := app.open()
	if err != nil {
		return nil, model.User{}, err
	}
	u, err := rt.auth.Restore(ctx)
	if errors.Is(err, auth.ErrNoSession) {
		return nil, model.User{}, errNotLoggedIn
	}
	if err != nil {
		return nil, model.User{}, err
	}
	return rt, u, nil
}

func runTUI(cmd *cobra.Command, app *App) error {
	rt, err := app.open()
	if err != nil {
		return writeErr(cmd, err)
	}
	poller := notify.New(rt.client, rt.auth.Session(), notify.Options{
		Interval: rt.cfg.PollInterval,
		Grace:    rt.cfg.RefreshGrace,
		Logger:   rt.log,
	})
	return tui.Run(cmd.Context(), tui.Options{
		Auth:   rt.auth,
		Tasks:  rt.tasks,
		Users:  rt.users,
		Notify: poller,
		Store:  rt.store,
		Theme:  rt.cfg.Theme,
		Logger: rt.log,
	})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

// writeData writes data in an envelope for JSON output, or data alone for
// table output.
func writeData(cmd *cobra.Command, app *App, data any, hints ...string) error {
	if app.Format == "table" {
		return writeOut(cmd, app, data)
	}
	env := map[string]any{"data": data}
	if len(hints) > 0 {
		env["_hints"] = hints
	}
	return writeOut(cmd, app, env)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), describe(err))
	return err
}
