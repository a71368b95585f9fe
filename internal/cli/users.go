package cli

import (
	"bufio"
	"strings"

	"taskboard-cli/internal/model"

	"github.com/spf13/cobra"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "User administration (admin and gerencial)",
	}

	cmd.AddCommand(newUsersListCmd(app))
	cmd.AddCommand(newUsersCreateCmd(app))
	cmd.AddCommand(newUsersEditCmd(app))
	cmd.AddCommand(newUsersDeleteCmd(app))

	return cmd
}

func newUsersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			users, err := rt.users.Fetch(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, userList(users))
		},
	}
}

func parseRoleFlag(s string) (model.Role, error) {
	r, ok := model.ParseRole(s)
	if !ok {
		return "", errUsage("invalid --role %q (admin|gerencial|visualizacao)", s)
	}
	return r, nil
}

func newUsersCreateCmd(app *App) *cobra.Command {
	var in model.UserInput
	var role string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := parseRoleFlag(role)
			if err != nil {
				return writeErr(cmd, err)
			}
			in.Role = r
			if passwordStdin {
				if in.Password, err = readLine(bufio.NewReader(cmd.InOrStdin())); err != nil {
					return writeErr(cmd, err)
				}
			}
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			created, err := rt.users.Create(ctx, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, created)
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (required unless --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&role, "role", string(model.RoleViewOnly), "Role (admin|gerencial|visualizacao)")
	return cmd
}

func newUsersEditCmd(app *App) *cobra.Command {
	var username string
	var email string
	var password string
	var role string

	cmd := &cobra.Command{
		Use:   "edit <user-id>",
		Short: "Edit a user; an omitted password is left unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("user", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := rt.users.Fetch(ctx); err != nil {
				return writeErr(cmd, err)
			}
			target, ok := rt.users.Get(id)
			if !ok {
				return writeErr(cmd, errUsage("user not found: %d", id))
			}

			in := model.UserInput{Username: target.Username, Email: target.Email, Role: target.Role}
			flags := cmd.Flags()
			if flags.Changed("username") {
				in.Username = strings.TrimSpace(username)
			}
			if flags.Changed("email") {
				in.Email = strings.TrimSpace(email)
			}
			if flags.Changed("password") {
				in.Password = password
			}
			if flags.Changed("role") {
				if in.Role, err = parseRoleFlag(role); err != nil {
					return writeErr(cmd, err)
				}
			}

			updated, err := rt.users.Update(ctx, target, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, updated)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "New username")
	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().StringVar(&password, "password", "", "New password")
	cmd.Flags().StringVar(&role, "role", "", "New role")
	return cmd
}

func newUsersDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user (admin only, requires --yes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("user", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := rt.users.Delete(ctx, id, yes); err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"id": id, "deleted": true})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}
