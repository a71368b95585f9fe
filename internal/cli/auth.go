package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"taskboard-cli/internal/perm"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(app *App) *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session token",
		Example: strings.TrimSpace(`
  taskboard login -u alice
  printf '%s\n' "$PW" | taskboard login -u alice --password-stdin
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open()
			if err != nil {
				return writeErr(cmd, err)
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if strings.TrimSpace(username) == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
				if username, err = readLine(in); err != nil {
					return writeErr(cmd, err)
				}
			}
			password, err := readPassword(cmd, in, passwordStdin)
			if err != nil {
				return writeErr(cmd, err)
			}

			u, err := rt.auth.Login(cmd.Context(), username, password)
			if err != nil {
				return writeErr(cmd, err)
			}
			rt.log.Printf("cli: logged in as %s (%s)", u.Username, u.Role)
			return writeData(cmd, app, u, "taskboard tasks board --format table")
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", envOr("TASKBOARD_USERNAME", ""), "Username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

// readPassword prompts without echo on a terminal, otherwise reads one line.
func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			return string(b), err
		}
	}
	return readLine(in)
}

func readLine(in *bufio.Reader) (string, error) {
	s, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open()
			if err != nil {
				return writeErr(cmd, err)
			}
			rt.auth.Logout(cmd.Context())
			return writeData(cmd, app, map[string]any{"loggedOut": true})
		},
	}
}

type whoami struct {
	ID           int64             `json:"id"`
	Username     string            `json:"username"`
	Email        string            `json:"email,omitempty"`
	Role         string            `json:"role"`
	Capabilities perm.Capabilities `json:"capabilities"`
	BaseURL      string            `json:"baseUrl"`
}

func (w whoami) Header() []string { return []string{"Field", "Value"} }

func (w whoami) Rows() [][]string {
	return [][]string{
		{"Username", w.Username},
		{"Email", w.Email},
		{"Role", w.Role},
		{"Server", w.BaseURL},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and what their role allows",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, u, err := app.loggedIn(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, whoami{
				ID:           u.ID,
				Username:     u.Username,
				Email:        u.Email,
				Role:         string(u.Role),
				Capabilities: perm.For(u.Role),
				BaseURL:      rt.client.BaseURL(),
			})
		},
	}
}
