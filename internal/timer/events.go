package timer

import (
	"time"

	"focustimer/backend/internal/model"
)

// EventType names a TimerState transition observed by the owner of the timer.
type EventType string

const (
	EventStarted      EventType = "started"
	EventRestored     EventType = "restored"
	EventPhaseChanged EventType = "phase_changed"
	EventPhaseExpired EventType = "phase_expired"
	EventTick         EventType = "tick"
	EventPaused       EventType = "paused"
	EventStopped      EventType = "stopped"
	EventCompleted    EventType = "completed"
)

// Event describes one transition. Session is the session the event is about:
// the new session for started/restored/phase_changed/tick, the ended one for
// expired/paused/stopped/completed.
type Event struct {
	Type      EventType
	Session   model.Session
	Phase     model.Phase
	Remaining int
	Reason    string
	// Overdue marks a restored delay that already expired before the save.
	Overdue bool
	At      time.Time
}

// InvariantError reports a state the timer refuses to hold, such as a
// negative duration. The timer resets to idle when it raises one.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "timer invariant violated: " + e.Reason
}
