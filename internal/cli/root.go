package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"focustimer/backend/internal/model"
	"focustimer/backend/internal/timer"
)

type rootOptions struct {
	server string
}

func (o *rootOptions) client() *Client {
	return NewClient(o.server)
}

// NewRootCmd builds the focusctl command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "focusctl",
		Short:         "Control a focustimer server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "focustimer server URL")

	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newDelayCmd(opts))
	for _, simple := range simpleTimerCommands {
		root.AddCommand(newSimpleTimerCmd(opts, simple))
	}
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newTasksCmd(opts))
	root.AddCommand(newNotificationsCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	return root
}

func printState(out io.Writer, state timer.View) {
	if state.Status == model.StatusIdle {
		_, _ = fmt.Fprintln(out, "idle")
		return
	}

	line := fmt.Sprintf("%s %s %s", state.Status, state.Phase, formatRemaining(state.RemainingSeconds))
	if state.TaskName != "" {
		line += " " + state.TaskName
	}
	if state.ChainNumber > 0 {
		line += fmt.Sprintf(" (chain %d)", state.ChainNumber)
	}
	if state.Overdue {
		line += " overdue"
	}
	_, _ = fmt.Fprintln(out, line)
}

func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), seconds%60)
}
