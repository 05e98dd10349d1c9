package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"focustimer/backend/internal/model"
	"focustimer/backend/internal/notify"
)

func newTasksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the task list",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pending tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Tasks []model.Task `json:"tasks"`
			}
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/tasks", nil, &resp); err != nil {
				return err
			}
			if len(resp.Tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
				return nil
			}
			for _, task := range resp.Tasks {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", task.ID, task.Date, task.Text)
			}
			return nil
		},
	}

	var date string
	add := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Task model.Task `json:"task"`
			}
			body := map[string]string{"text": strings.Join(args, " "), "date": date}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/tasks", body, &resp); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", resp.Task.ID)
			return nil
		},
	}
	add.Flags().StringVar(&date, "date", "", "Day the task is planned for (YYYY-MM-DD)")

	remove := &cobra.Command{
		Use:   "rm <task-id>",
		Short: "Remove a pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().do(cmd.Context(), http.MethodDelete, "/api/tasks/"+url.PathEscape(args[0]), nil, nil)
		},
	}

	done := &cobra.Command{
		Use:   "done",
		Short: "List completed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Tasks []model.CompletedTask `json:"tasks"`
			}
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/tasks/completed", nil, &resp); err != nil {
				return err
			}
			for _, task := range resp.Tasks {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", task.CompletedAt.Local().Format("2006-01-02 15:04"), task.Text)
			}
			return nil
		},
	}

	cmd.AddCommand(list, add, remove, done)
	return cmd
}

func newNotificationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Show visible notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Notifications []notify.Notification `json:"notifications"`
			}
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/notifications", nil, &resp); err != nil {
				return err
			}
			for _, n := range resp.Notifications {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", n.Tag, n.Title, n.Body)
			}
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print timer events as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := opts.client().stream(cmd.Context(), "/api/events")
			if err != nil {
				return err
			}
			defer body.Close()

			event := ""
			scanner := bufio.NewScanner(body)
			for scanner.Scan() {
				line := scanner.Text()
				switch {
				case strings.HasPrefix(line, "event:"):
					event = strings.TrimPrefix(line, "event:")
				case strings.HasPrefix(line, "data:"):
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", event, strings.TrimPrefix(line, "data:"))
				}
			}
			if err := scanner.Err(); err != nil && cmd.Context().Err() == nil {
				return fmt.Errorf("read event stream: %w", err)
			}
			return nil
		},
	}
}
