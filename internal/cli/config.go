package cli

import (
	"os"
	"path/filepath"

	"taskboard-cli/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigInitCmd(app))
	return cmd
}

type configView struct {
	BaseURL        string `json:"baseUrl"`
	PollInterval   string `json:"pollInterval"`
	RefreshGrace   string `json:"refreshGrace"`
	RequestTimeout string `json:"requestTimeout"`
	StateDir       string `json:"stateDir"`
	DebugLog       string `json:"debugLog,omitempty"`
	Theme          string `json:"theme"`
	GlobalFile     string `json:"globalFile,omitempty"`
}

func (c configView) Header() []string { return []string{"Key", "Value"} }

func (c configView) Rows() [][]string {
	return [][]string{
		{"base_url", c.BaseURL},
		{"poll_interval", c.PollInterval},
		{"refresh_grace", c.RefreshGrace},
		{"request_timeout", c.RequestTimeout},
		{"state_dir", c.StateDir},
		{"debug_log", c.DebugLog},
		{"theme", c.Theme},
	}
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open()
			if err != nil {
				return writeErr(cmd, err)
			}
			c := rt.cfg
			global, _ := config.GlobalPath()
			return writeData(cmd, app, configView{
				BaseURL:        c.BaseURL,
				PollInterval:   c.PollInterval.String(),
				RefreshGrace:   c.RefreshGrace.String(),
				RequestTimeout: c.RequestTimeout.String(),
				StateDir:       c.StateDir,
				DebugLog:       c.DebugLog,
				Theme:          c.Theme,
				GlobalFile:     global,
			})
		},
	}
}

func newConfigInitCmd(app *App) *cobra.Command {
	var project bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GlobalPath()
			if err != nil {
				return writeErr(cmd, err)
			}
			if project {
				cwd, err := os.Getwd()
				if err != nil {
					return writeErr(cmd, err)
				}
				path = filepath.Join(cwd, ".taskboard", "config.yaml")
			}
			cfg := config.Default()
			if app.BaseURL != "" {
				cfg.BaseURL = app.BaseURL
			}
			if err := config.Write(path, cfg, force); err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"path": path}, "taskboard config show")
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Write ./.taskboard/config.yaml instead of the global file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
