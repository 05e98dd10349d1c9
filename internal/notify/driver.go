package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"focustimer/backend/internal/clock"
	"focustimer/backend/internal/model"
)

const DefaultIcon = "/icons/focus-timer.png"

var (
	completionVibration = []int{200, 100, 200}
	overdueVibration    = []int{300, 100, 300, 100, 300}
)

// Driver turns timer status into notifications. It keeps one live handle per
// tag; platform failures are logged and swallowed.
type Driver struct {
	platform Platform
	signer   *ActionSigner
	clock    clock.Clock
	icon     string

	mu      sync.Mutex
	live    map[string]Notification
	lastErr error
}

func NewDriver(platform Platform, signer *ActionSigner, c clock.Clock) *Driver {
	if c == nil {
		c = clock.System{}
	}
	return &Driver{
		platform: platform,
		signer:   signer,
		clock:    c,
		icon:     DefaultIcon,
		live:     make(map[string]Notification),
	}
}

// RenderProgress replaces the live status notification.
func (d *Driver) RenderProgress(status Status) {
	remaining := formatClock(status.RemainingSeconds)
	progress := model.ProgressPercent(status.TotalSeconds, status.RemainingSeconds)

	n := Notification{
		Tag:                TagProgress,
		Icon:               d.icon,
		Progress:           progress,
		Silent:             true,
		RequireInteraction: true,
		Phase:              status.Phase,
		Run:                status.Run,
	}
	switch status.Phase {
	case model.PhaseBreak:
		n.Title = "Break time"
		n.Body = fmt.Sprintf("%s left in your break", remaining)
		n.Actions = d.buttons(TagProgress, status.Run, ActionStartNow, ActionCancel)
	case model.PhaseDelay:
		n.Title = "Starting soon"
		n.Body = fmt.Sprintf("Focus starts in %s", remaining)
		n.Actions = d.buttons(TagProgress, status.Run, ActionStartNow, ActionCancel)
	default:
		n.Title = "Focus session"
		if status.TaskName != "" {
			n.Title = "Focusing: " + status.TaskName
		}
		n.Body = fmt.Sprintf("%s remaining · %d%%", remaining, progress)
		if status.ChainNumber > 0 {
			n.Body += fmt.Sprintf(" · chain %d", status.ChainNumber)
		}
		n.Actions = d.buttons(TagProgress, status.Run, ActionComplete, ActionPause)
	}
	d.show(n, status.Run)
}

// RenderCompletion swaps the status notification for a one-shot alert.
func (d *Driver) RenderCompletion(status Status, kind CompletionKind) {
	d.Clear(TagProgress)

	n := Notification{
		Tag:                TagCompletion,
		Icon:               d.icon,
		Progress:           100,
		RequireInteraction: true,
		Vibrate:            completionVibration,
		Phase:              status.Phase,
		Run:                status.Run,
	}
	switch kind {
	case CompletionBreak:
		n.Title = "Break over"
		n.Body = "Back to focus."
		n.Actions = d.buttons(TagCompletion, status.Run, ActionPause, ActionCancel)
	case CompletionDelay:
		n.Title = "You're overdue"
		n.Body = "Your planned focus start has passed."
		n.Vibrate = overdueVibration
		n.Actions = d.buttons(TagCompletion, status.Run, ActionStartNow, ActionCancel)
	case CompletionManual:
		n.Title = "Task complete"
		n.Body = "Nicely done."
		if status.TaskName != "" {
			n.Body = status.TaskName + " is done."
		}
		n.Silent = true
		n.RequireInteraction = false
		n.Vibrate = nil
	default:
		n.Title = "Focus complete!"
		n.Body = "Time for a break."
		if status.TaskName != "" {
			n.Body = fmt.Sprintf("Nice work on %s. Time for a break.", status.TaskName)
		}
		if status.ChainNumber > 1 {
			n.Body += fmt.Sprintf(" That's %d in a row.", status.ChainNumber)
		}
		n.Actions = d.buttons(TagCompletion, status.Run, ActionComplete, ActionCancel)
	}
	d.show(n, status.Run)
}

// Clear removes the notification under tag. Clearing an absent tag is a no-op.
func (d *Driver) Clear(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.live[tag]; !ok {
		return
	}
	delete(d.live, tag)
	if err := d.platform.Close(tag); err != nil {
		d.failLocked(&Error{Op: "close", Tag: tag, Err: err})
	}
}

func (d *Driver) ClearAll() {
	d.Clear(TagProgress)
	d.Clear(TagCompletion)
}

func (d *Driver) Live(tag string) (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.live[tag]
	return n, ok
}

func (d *Driver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Driver) show(n Notification, run uint64) {
	n.ShownAt = d.clock.Now()
	n.Token = d.sign("", n.Tag, run)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.platform.Show(n); err != nil {
		delete(d.live, n.Tag)
		d.failLocked(&Error{Op: "show", Tag: n.Tag, Err: err})
		return
	}
	d.live[n.Tag] = n
	d.lastErr = nil
}

func (d *Driver) failLocked(err error) {
	d.lastErr = err
	log.Printf("notify: %v", err)
}

func (d *Driver) buttons(tag string, run uint64, actions ...Action) []ActionButton {
	buttons := make([]ActionButton, 0, len(actions))
	for _, action := range actions {
		buttons = append(buttons, ActionButton{
			Action: action,
			Title:  actionTitle(action),
			Token:  d.sign(action, tag, run),
		})
	}
	return buttons
}

func (d *Driver) sign(action Action, tag string, run uint64) string {
	if d.signer == nil {
		return ""
	}
	token, err := d.signer.Sign(action, tag, run)
	if err != nil {
		log.Printf("notify: %v", err)
		return ""
	}
	return token
}

func actionTitle(action Action) string {
	switch action {
	case ActionComplete:
		return "Complete"
	case ActionPause:
		return "Pause"
	case ActionStartNow:
		return "Start now"
	case ActionCancel:
		return "Stop"
	default:
		return string(action)
	}
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes, seconds%60)
}
