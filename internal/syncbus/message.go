package syncbus

import (
	"time"

	"focustimer/backend/internal/model"
)

// Kind tags a foreground-to-background message.
type Kind string

const (
	KindStart       Kind = "start"
	KindDelayStart  Kind = "delay_start"
	KindSync        Kind = "sync"
	KindUpdateState Kind = "update_state"
	KindStop        Kind = "stop"
	KindComplete    Kind = "complete"
	// KindExpired reports a phase the foreground saw run out first. The
	// background renders its completion unless it already fired it.
	KindExpired Kind = "expired"
)

// Payload carries the remainder measured at send time. Receivers re-derive
// their start instant from it instead of trusting the sender's clock.
// Generation orders messages: stop and complete name the generation they end.
type Payload struct {
	Generation       uint64      `json:"generation"`
	Run              uint64      `json:"run"`
	RemainingSeconds int         `json:"remainingSeconds"`
	TotalSeconds     int         `json:"totalSeconds"`
	Phase            model.Phase `json:"phase"`
	TaskName         string      `json:"taskName,omitempty"`
	ChainNumber      int         `json:"chainNumber"`
}

type SyncMessage struct {
	Kind    Kind      `json:"kind"`
	Payload Payload   `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// ClientKind tags a background-to-foreground message.
type ClientKind string

const (
	ClientTimeUp      ClientKind = "time_up"
	ClientCommand     ClientKind = "command"
	ClientFocusWindow ClientKind = "focus_window"
)

type ClientMessage struct {
	Kind       ClientKind    `json:"kind"`
	Generation uint64        `json:"generation,omitempty"`
	IsDelay    bool          `json:"isDelay,omitempty"`
	IsBreak    bool          `json:"isBreak,omitempty"`
	Command    model.Command `json:"command,omitempty"`
	SentAt     time.Time     `json:"sentAt"`
}

// PayloadFor measures session at now.
func PayloadFor(session model.Session, now time.Time) Payload {
	return Payload{
		Generation:       session.Generation,
		Run:              session.Run,
		RemainingSeconds: session.RemainingSeconds(now),
		TotalSeconds:     session.TotalSeconds,
		Phase:            session.Phase,
		TaskName:         session.TaskName,
		ChainNumber:      session.ChainNumber,
	}
}
