package model

import (
	"math"
	"time"
)

type Phase string

const (
	PhaseFocus Phase = "focus"
	PhaseBreak Phase = "break"
	PhaseDelay Phase = "delay"
)

const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusPaused  = "paused"
)

const (
	DefaultFocusDurationSeconds = 25 * 60
	DefaultBreakDurationSeconds = 5 * 60
	DefaultDelayDurationSeconds = 5 * 60
)

func (p Phase) Valid() bool {
	return p == PhaseFocus || p == PhaseBreak || p == PhaseDelay
}

// Durations are the configured phase lengths applied when a phase starts.
type Durations struct {
	FocusSeconds int `json:"focusSeconds"`
	BreakSeconds int `json:"breakSeconds"`
	DelaySeconds int `json:"delaySeconds"`
}

func DefaultDurations() Durations {
	return Durations{
		FocusSeconds: DefaultFocusDurationSeconds,
		BreakSeconds: DefaultBreakDurationSeconds,
		DelaySeconds: DefaultDelayDurationSeconds,
	}
}

// Session is one continuous countdown. Remaining time is never stored; it is
// derived from StartedAt and TotalSeconds. Generation changes with every
// phase; Run changes only when a user starts a new series of phases.
type Session struct {
	Generation   uint64    `json:"generation"`
	Run          uint64    `json:"run"`
	TaskID       string    `json:"taskId,omitempty"`
	TaskName     string    `json:"taskName,omitempty"`
	Phase        Phase     `json:"phase"`
	TotalSeconds int       `json:"totalSeconds"`
	StartedAt    time.Time `json:"startedAt"`
	ChainNumber  int       `json:"chainNumber"`
}

func (s Session) RemainingSeconds(now time.Time) int {
	return RemainingSeconds(s.StartedAt, s.TotalSeconds, now)
}

// RemainingSeconds is the single countdown formula used by every context:
// max(0, total - whole seconds elapsed since startedAt).
func RemainingSeconds(startedAt time.Time, totalSeconds int, now time.Time) int {
	elapsed := int(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := totalSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ProgressPercent returns round((total-remaining)/total*100), clamped to 0..100.
func ProgressPercent(totalSeconds, remainingSeconds int) int {
	if totalSeconds <= 0 {
		return 100
	}
	progress := math.Round(float64(totalSeconds-remainingSeconds) / float64(totalSeconds) * 100)
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return int(progress)
}

// TimerSnapshot is the persisted form of a live session. It is absent, not
// zero-valued, when nothing is running.
type TimerSnapshot struct {
	TaskID           string     `json:"taskId,omitempty"`
	TaskName         string     `json:"taskName,omitempty"`
	Phase            Phase      `json:"phase"`
	RemainingSeconds int        `json:"remainingSeconds"`
	TotalSeconds     int        `json:"totalSeconds"`
	ChainNumber      int        `json:"chainNumber"`
	Overdue          bool       `json:"overdue,omitempty"`
	Durations        Durations  `json:"durations"`
	SavedAt          *time.Time `json:"savedAt,omitempty"`
}
