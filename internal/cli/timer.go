package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"focustimer/backend/internal/timer"
)

type stateResponse struct {
	State timer.View `json:"state"`
}

type simpleTimerCommand struct {
	use   string
	short string
	path  string
}

var simpleTimerCommands = []simpleTimerCommand{
	{use: "stop", short: "Cancel the running session", path: "/api/timer/stop"},
	{use: "complete", short: "Finish the session and its task", path: "/api/timer/complete"},
	{use: "pause", short: "Pause the running session", path: "/api/timer/pause"},
	{use: "resume", short: "Resume a paused session", path: "/api/timer/resume"},
	{use: "start-now", short: "Skip the delay or break and focus now", path: "/api/timer/start-now"},
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the timer state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp stateResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/timer/state", nil, &resp); err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), resp.State)
			return nil
		},
	}
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	var seconds int
	cmd := &cobra.Command{
		Use:   "start [task-id]",
		Short: "Start a focus session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"focusDurationSeconds": seconds}
			if len(args) == 1 {
				body["taskId"] = args[0]
			}
			return postState(cmd, opts, "/api/timer/start", body)
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 0, "Focus length in seconds (0 uses the configured length)")
	return cmd
}

func newDelayCmd(opts *rootOptions) *cobra.Command {
	var seconds int
	cmd := &cobra.Command{
		Use:   "delay",
		Short: "Start a delay before focusing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return postState(cmd, opts, "/api/timer/delay", map[string]int{"delayDurationSeconds": seconds})
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 0, "Delay length in seconds (0 uses the configured length)")
	return cmd
}

func newSimpleTimerCmd(opts *rootOptions, simple simpleTimerCommand) *cobra.Command {
	return &cobra.Command{
		Use:   simple.use,
		Short: simple.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return postState(cmd, opts, simple.path, nil)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var focus, brk, delay int
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Change the focus, break and delay lengths for the next phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]int{
				"focusDurationSeconds": focus,
				"breakDurationSeconds": brk,
				"delayDurationSeconds": delay,
			}
			var resp stateResponse
			if err := opts.client().do(cmd.Context(), http.MethodPut, "/api/timer/config", body, &resp); err != nil {
				return err
			}
			d := resp.State.Durations
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "focus %s, break %s, delay %s\n",
				formatRemaining(d.FocusSeconds), formatRemaining(d.BreakSeconds), formatRemaining(d.DelaySeconds))
			return nil
		},
	}
	cmd.Flags().IntVar(&focus, "focus", 0, "Focus length in seconds")
	cmd.Flags().IntVar(&brk, "break", 0, "Break length in seconds")
	cmd.Flags().IntVar(&delay, "delay", 0, "Delay length in seconds")
	return cmd
}

func postState(cmd *cobra.Command, opts *rootOptions, path string, body any) error {
	var resp stateResponse
	if err := opts.client().do(cmd.Context(), http.MethodPost, path, body, &resp); err != nil {
		return err
	}
	printState(cmd.OutOrStdout(), resp.State)
	return nil
}
