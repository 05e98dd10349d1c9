package notify

import (
	"time"

	"focustimer/backend/internal/model"
)

// Tags double as dedup keys: at most one notification per tag is visible.
const (
	TagProgress   = "focus-timer"
	TagCompletion = "focus-complete"
)

type Action string

const (
	ActionComplete Action = "complete"
	ActionPause    Action = "pause"
	ActionStartNow Action = "start-now"
	ActionCancel   Action = "cancel"
)

type ActionButton struct {
	Action Action `json:"action"`
	Title  string `json:"title"`
	Token  string `json:"token,omitempty"`
}

type Notification struct {
	Tag                string         `json:"tag"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon,omitempty"`
	Actions            []ActionButton `json:"actions,omitempty"`
	Token              string         `json:"token,omitempty"`
	Progress           int            `json:"progress"`
	Silent             bool           `json:"silent"`
	RequireInteraction bool           `json:"requireInteraction"`
	Vibrate            []int          `json:"vibrate,omitempty"`
	Phase              model.Phase    `json:"phase,omitempty"`
	Run                uint64         `json:"run,omitempty"`
	ShownAt            time.Time      `json:"shownAt"`
}

type CompletionKind string

const (
	CompletionFocus  CompletionKind = "focus"
	CompletionBreak  CompletionKind = "break"
	CompletionDelay  CompletionKind = "delay"
	CompletionManual CompletionKind = "manual"
)

// CompletionKindFor picks the end-of-phase copy for a naturally expired phase.
func CompletionKindFor(phase model.Phase) CompletionKind {
	switch phase {
	case model.PhaseBreak:
		return CompletionBreak
	case model.PhaseDelay:
		return CompletionDelay
	default:
		return CompletionFocus
	}
}

// Status is what the driver needs to draw a timer notification.
type Status struct {
	Run              uint64
	Phase            model.Phase
	TaskName         string
	ChainNumber      int
	TotalSeconds     int
	RemainingSeconds int
}

// CommandFor maps a notification action to its command. The empty action is
// a click on the notification body.
func CommandFor(action Action) (model.Command, bool) {
	switch action {
	case "":
		return model.CommandFocusWindow, true
	case ActionComplete:
		return model.CommandComplete, true
	case ActionPause:
		return model.CommandPause, true
	case ActionStartNow:
		return model.CommandStartNow, true
	case ActionCancel:
		return model.CommandStop, true
	default:
		return "", false
	}
}
