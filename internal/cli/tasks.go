package cli

import (
	"context"
	"strconv"
	"strings"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/cache"
	"taskboard-cli/internal/model"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Task commands",
	}

	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksBoardCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksEditCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))

	return cmd
}

// loadTasks restores the session and fetches the full task list.
func loadTasks(ctx context.Context, app *App) (*runtime, model.User, []model.Task, error) {
	rt, u, err := app.loggedIn(ctx)
	if err != nil {
		return nil, model.User{}, nil, err
	}
	tasks, err := rt.tasks.Fetch(ctx)
	if err != nil {
		return nil, model.User{}, nil, err
	}
	return rt, u, tasks, nil
}

func newTasksListCmd(app *App) *cobra.Command {
	var status string
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, tasks, err := loadTasks(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			var want model.Status
			if strings.TrimSpace(status) != "" {
				st, ok := model.ParseStatus(status)
				if !ok {
					return writeErr(cmd, errUsage("invalid --status %q (pending|in_progress|in_review|done)", status))
				}
				want = st
			}
			out := taskList{}
			for _, t := range board.SortedByID(tasks) {
				if want != "" && t.Status != want {
					continue
				}
				if owner != "" && t.OwnerUsername != owner && strconv.FormatInt(t.OwnerID, 10) != owner {
					continue
				}
				out = append(out, t)
			}
			return writeData(cmd, app, out)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only tasks with this status")
	cmd.Flags().StringVar(&owner, "owner", "", "Only tasks owned by this username or user id")
	return cmd
}

func newTasksBoardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show tasks grouped into the four status lanes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, u, tasks, err := loadTasks(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, newBoardView(board.Build(tasks, u.Role)))
		},
	}
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			_, _, tasks, err := loadTasks(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := board.Find(tasks, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, taskDetail(t))
		},
	}
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var title string
	var description string
	var owner string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task in the Pending lane",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			d := cache.Draft{Title: title, Description: description}
			if strings.TrimSpace(owner) != "" {
				id, err := resolveUser(ctx, rt, owner)
				if err != nil {
					return writeErr(cmd, err)
				}
				d.OwnerID = &id
			}
			created, err := rt.tasks.Add(ctx, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, taskDetail(created), "taskboard tasks show "+strconv.FormatInt(created.ID, 10))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "Task description (markdown)")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner username or user id (admin/gerencial only)")
	return cmd
}

func newTasksEditCmd(app *App) *cobra.Command {
	var title string
	var description string
	var status string
	var owner string

	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Edit a task's title, description, status or owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, _, tasks, err := loadTasks(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := board.Find(tasks, id)
			if err != nil {
				return writeErr(cmd, err)
			}

			flags := cmd.Flags()
			if flags.Changed("title") {
				t.Title = strings.TrimSpace(title)
			}
			if flags.Changed("description") {
				t.Description = description
			}
			if flags.Changed("status") {
				st, ok := model.ParseStatus(status)
				if !ok {
					return writeErr(cmd, errUsage("invalid --status %q", status))
				}
				t.Status = st
			}
			var opts cache.UpdateOptions
			if flags.Changed("owner") {
				oid, err := resolveUser(ctx, rt, owner)
				if err != nil {
					return writeErr(cmd, err)
				}
				opts.OwnerID = &oid
			}

			updated, err := rt.tasks.Update(ctx, t, opts)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, taskDetail(updated))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVar(&owner, "owner", "", "New owner username or user id")
	return cmd
}

func newTasksMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <status>",
		Short: "Move a task to another lane (pending|in_progress|in_review|done)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			st, ok := model.ParseStatus(args[1])
			if !ok {
				return writeErr(cmd, errUsage("invalid status %q", args[1]))
			}
			rt, _, _, err := loadTasks(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			mv, err := rt.tasks.Move(ctx, id, st)
			if err != nil {
				return writeErr(cmd, err)
			}
			if app.Format == "table" {
				return writeOut(cmd, app, taskDetail(mv.Task))
			}
			return writeOut(cmd, app, map[string]any{
				"data": mv.Task,
				"meta": map[string]any{"from": mv.From, "changed": mv.Changed},
			})
		},
	}
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task (requires --yes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, _, err := app.loggedIn(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := rt.tasks.Delete(ctx, id, yes); err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"id": id, "deleted": true})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

// resolveUser accepts a numeric id or a username. Usernames need the user
// list, which only admin and gerencial can read.
func resolveUser(ctx context.Context, rt *runtime, s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	users, err := rt.users.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		if u.Username == s {
			return u.ID, nil
		}
	}
	return 0, errUsage("unknown user %q", s)
}
