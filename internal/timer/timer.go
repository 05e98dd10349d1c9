package timer

import (
	"sync"
	"time"

	"focustimer/backend/internal/clock"
	"focustimer/backend/internal/model"
)

// View is a point-in-time read of the timer.
type View struct {
	Status           string          `json:"status"`
	Phase            model.Phase     `json:"phase,omitempty"`
	TaskID           string          `json:"taskId,omitempty"`
	TaskName         string          `json:"taskName,omitempty"`
	RemainingSeconds int             `json:"remainingSeconds"`
	TotalSeconds     int             `json:"totalSeconds"`
	ChainNumber      int             `json:"chainNumber"`
	Generation       uint64          `json:"generation"`
	Run              uint64          `json:"run,omitempty"`
	Overdue          bool            `json:"overdue"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	Durations        model.Durations `json:"durations"`
	Now              time.Time       `json:"now"`
}

type pausedSession struct {
	generation uint64
	run        uint64
	phase      model.Phase
	taskID     string
	taskName   string
	remaining  int
	chain      int
}

// Timer is the authoritative countdown state machine. It holds at most one
// live session; every phase start bumps the generation.
type Timer struct {
	mu            sync.Mutex
	clock         clock.Clock
	durations     model.Durations
	session       *model.Session
	paused        *pausedSession
	generation    uint64
	overdue       bool
	lastRemaining int
}

func New(c clock.Clock, durations model.Durations) *Timer {
	if c == nil {
		c = clock.System{}
	}
	defaults := model.DefaultDurations()
	if durations.FocusSeconds <= 0 {
		durations.FocusSeconds = defaults.FocusSeconds
	}
	if durations.BreakSeconds <= 0 {
		durations.BreakSeconds = defaults.BreakSeconds
	}
	if durations.DelaySeconds <= 0 {
		durations.DelaySeconds = defaults.DelaySeconds
	}
	return &Timer{clock: c, durations: durations, lastRemaining: -1}
}

// Start begins a focus phase for taskID, replacing any live session.
// focusSeconds of zero uses the configured focus length.
func (t *Timer) Start(taskID, taskName string, focusSeconds int) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()

	if focusSeconds < 0 {
		return t.failLocked(now, "negative focus duration")
	}
	total := focusSeconds
	if total == 0 {
		total = t.durations.FocusSeconds
	}

	chain := 0
	if t.session != nil && taskID != "" && t.session.TaskID == taskID {
		chain = t.session.ChainNumber
	}
	t.paused = nil
	session := t.beginLocked(model.PhaseFocus, taskID, taskName, total, chain, now, false)
	return []Event{{Type: EventStarted, Session: session, Phase: session.Phase, Remaining: total, At: now}}, nil
}

// DelayStart begins a standalone delay phase with no task.
func (t *Timer) DelayStart(delaySeconds int) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()

	if delaySeconds < 0 {
		return t.failLocked(now, "negative delay duration")
	}
	total := delaySeconds
	if total == 0 {
		total = t.durations.DelaySeconds
	}

	t.paused = nil
	session := t.beginLocked(model.PhaseDelay, "", "", total, 0, now, false)
	return []Event{{Type: EventStarted, Session: session, Phase: session.Phase, Remaining: total, At: now}}, nil
}

// StartNow moves a delay or break straight into focus.
func (t *Timer) StartNow() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil || t.session.Phase == model.PhaseFocus {
		return nil
	}
	now := t.clock.Now()
	prev := *t.session
	next := t.beginLocked(model.PhaseFocus, prev.TaskID, prev.TaskName, t.durations.FocusSeconds, prev.ChainNumber, now, true)
	return []Event{{Type: EventPhaseChanged, Session: next, Phase: prev.Phase, Remaining: next.TotalSeconds, At: now}}
}

// Stop cancels the session. Calling it while idle is a no-op.
func (t *Timer) Stop() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()

	if t.session == nil && t.paused == nil {
		return nil
	}
	var ended model.Session
	if t.session != nil {
		ended = *t.session
	} else {
		ended = t.pausedAsSession()
	}
	t.clearLocked()
	return []Event{{Type: EventStopped, Session: ended, Phase: ended.Phase, At: now}}
}

// Complete ends the session because its task is finished. It is reported
// separately from natural expiry.
func (t *Timer) Complete() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()

	var ended model.Session
	switch {
	case t.session != nil:
		ended = *t.session
	case t.paused != nil:
		ended = t.pausedAsSession()
	default:
		return nil
	}
	remaining := 0
	if t.session != nil {
		remaining = t.session.RemainingSeconds(now)
	}
	t.clearLocked()
	return []Event{{Type: EventCompleted, Session: ended, Phase: ended.Phase, Remaining: remaining, At: now}}
}

// Pause ends the live session but keeps its remainder for Resume.
func (t *Timer) Pause() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	now := t.clock.Now()
	ended := *t.session
	remaining := ended.RemainingSeconds(now)
	t.session = nil
	t.overdue = false
	t.paused = &pausedSession{
		generation: ended.Generation,
		run:        ended.Run,
		phase:      ended.Phase,
		taskID:     ended.TaskID,
		taskName:   ended.TaskName,
		remaining:  remaining,
		chain:      ended.ChainNumber,
	}
	return []Event{{Type: EventPaused, Session: ended, Phase: ended.Phase, Remaining: remaining, At: now}}
}

// Resume restarts a paused remainder as a fresh session.
func (t *Timer) Resume() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused == nil || t.session != nil {
		return nil
	}
	now := t.clock.Now()
	p := t.paused
	t.paused = nil
	total := p.remaining
	if total <= 0 {
		total = t.durationForLocked(p.phase)
	}
	session := t.beginLocked(p.phase, p.taskID, p.taskName, total, p.chain, now, false)
	return []Event{{Type: EventStarted, Session: session, Phase: session.Phase, Remaining: total, At: now}}
}

// UpdateConfig changes the lengths used by the next focus and break phases.
// Zero keeps the current value. The live phase is never truncated.
func (t *Timer) UpdateConfig(focusSeconds, breakSeconds int) (model.Durations, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if focusSeconds < 0 || breakSeconds < 0 {
		return t.durations, &InvariantError{Reason: "durations must not be negative"}
	}
	if focusSeconds > 0 {
		t.durations.FocusSeconds = focusSeconds
	}
	if breakSeconds > 0 {
		t.durations.BreakSeconds = breakSeconds
	}
	return t.durations, nil
}

// SetDelayDuration changes the default delay length.
func (t *Timer) SetDelayDuration(delaySeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if delaySeconds > 0 {
		t.durations.DelaySeconds = delaySeconds
	}
}

// Tick recomputes the remainder. Only the first tick observing
// remaining <= 0 for a session performs the transition.
func (t *Timer) Tick() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	now := t.clock.Now()
	if t.session.TotalSeconds <= 0 {
		events, _ := t.failLocked(now, "active session without duration")
		return events
	}

	remaining := t.session.RemainingSeconds(now)
	if remaining > 0 {
		if remaining == t.lastRemaining {
			return nil
		}
		t.lastRemaining = remaining
		return []Event{{Type: EventTick, Session: *t.session, Phase: t.session.Phase, Remaining: remaining, At: now}}
	}
	return t.expireLocked(now)
}

// Expire applies an expiry reported by another context. It only acts when
// generation names the live session; anything else is stale.
func (t *Timer) Expire(generation uint64) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil || t.session.Generation != generation {
		return nil
	}
	return t.expireLocked(t.clock.Now())
}

// Restore resumes a persisted snapshot. When SavedAt is known the time
// spent while nothing was running is deducted. A delay saved as overdue
// comes back overdue and does not expire a second time.
func (t *Timer) Restore(snapshot model.TimerSnapshot) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()

	t.applyDurationsLocked(snapshot.Durations)
	if !snapshot.Phase.Valid() {
		return t.failLocked(now, "snapshot has unknown phase "+string(snapshot.Phase))
	}
	if snapshot.TotalSeconds <= 0 || snapshot.RemainingSeconds < 0 {
		return t.failLocked(now, "snapshot has invalid durations")
	}

	remaining := snapshot.RemainingSeconds
	if remaining > snapshot.TotalSeconds {
		remaining = snapshot.TotalSeconds
	}
	if snapshot.SavedAt != nil {
		remaining = model.RemainingSeconds(*snapshot.SavedAt, remaining, now)
	}

	elapsed := time.Duration(snapshot.TotalSeconds-remaining) * time.Second
	t.paused = nil
	session := t.beginLocked(snapshot.Phase, snapshot.TaskID, snapshot.TaskName, snapshot.TotalSeconds, snapshot.ChainNumber, now.Add(-elapsed), false)
	t.overdue = snapshot.Overdue && snapshot.Phase == model.PhaseDelay
	return []Event{{Type: EventRestored, Session: session, Phase: session.Phase, Remaining: remaining, Overdue: t.overdue, At: now}}, nil
}

// Snapshot returns the persisted form of the live session, or nil.
func (t *Timer) Snapshot() *model.TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	now := t.clock.Now()
	return &model.TimerSnapshot{
		TaskID:           t.session.TaskID,
		TaskName:         t.session.TaskName,
		Phase:            t.session.Phase,
		RemainingSeconds: t.session.RemainingSeconds(now),
		TotalSeconds:     t.session.TotalSeconds,
		ChainNumber:      t.session.ChainNumber,
		Overdue:          t.overdue,
		Durations:        t.durations,
		SavedAt:          &now,
	}
}

// Session returns a copy of the live session.
func (t *Timer) Session() (model.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return model.Session{}, false
	}
	return *t.session, true
}

func (t *Timer) Durations() model.Durations {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durations
}

func (t *Timer) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()

	view := View{
		Status:     model.StatusIdle,
		Generation: t.generation,
		Durations:  t.durations,
		Now:        now,
	}
	switch {
	case t.session != nil:
		startedAt := t.session.StartedAt
		view.Status = model.StatusRunning
		view.Phase = t.session.Phase
		view.TaskID = t.session.TaskID
		view.TaskName = t.session.TaskName
		view.RemainingSeconds = t.session.RemainingSeconds(now)
		view.TotalSeconds = t.session.TotalSeconds
		view.ChainNumber = t.session.ChainNumber
		view.Generation = t.session.Generation
		view.Run = t.session.Run
		view.Overdue = t.overdue
		view.StartedAt = &startedAt
	case t.paused != nil:
		view.Status = model.StatusPaused
		view.Phase = t.paused.phase
		view.TaskID = t.paused.taskID
		view.TaskName = t.paused.taskName
		view.RemainingSeconds = t.paused.remaining
		view.ChainNumber = t.paused.chain
	}
	return view
}

func (t *Timer) expireLocked(now time.Time) []Event {
	ended := *t.session
	switch ended.Phase {
	case model.PhaseDelay:
		if t.overdue {
			return nil
		}
		t.overdue = true
		return []Event{{Type: EventPhaseExpired, Session: ended, Phase: ended.Phase, At: now}}
	case model.PhaseFocus:
		if t.durations.BreakSeconds <= 0 {
			events, _ := t.failLocked(now, "break duration must be positive")
			return events
		}
		next := t.beginLocked(model.PhaseBreak, ended.TaskID, ended.TaskName, t.durations.BreakSeconds, ended.ChainNumber+1, now, true)
		return []Event{
			{Type: EventPhaseExpired, Session: ended, Phase: ended.Phase, At: now},
			{Type: EventPhaseChanged, Session: next, Phase: ended.Phase, Remaining: next.TotalSeconds, At: now},
		}
	case model.PhaseBreak:
		if t.durations.FocusSeconds <= 0 {
			events, _ := t.failLocked(now, "focus duration must be positive")
			return events
		}
		next := t.beginLocked(model.PhaseFocus, ended.TaskID, ended.TaskName, t.durations.FocusSeconds, ended.ChainNumber, now, true)
		return []Event{
			{Type: EventPhaseExpired, Session: ended, Phase: ended.Phase, At: now},
			{Type: EventPhaseChanged, Session: next, Phase: ended.Phase, Remaining: next.TotalSeconds, At: now},
		}
	default:
		events, _ := t.failLocked(now, "unknown phase "+string(ended.Phase))
		return events
	}
}

func (t *Timer) beginLocked(phase model.Phase, taskID, taskName string, total, chain int, startedAt time.Time, continueRun bool) model.Session {
	t.generation++
	run := t.generation
	if continueRun && t.session != nil {
		run = t.session.Run
	}
	t.session = &model.Session{
		Generation:   t.generation,
		Run:          run,
		TaskID:       taskID,
		TaskName:     taskName,
		Phase:        phase,
		TotalSeconds: total,
		StartedAt:    startedAt,
		ChainNumber:  chain,
	}
	t.overdue = false
	t.lastRemaining = -1
	return *t.session
}

// failLocked resets to idle and reports why. A stopped event is returned
// when a session was dropped so observers can tear down their side.
func (t *Timer) failLocked(now time.Time, reason string) ([]Event, error) {
	err := &InvariantError{Reason: reason}
	if t.session == nil && t.paused == nil {
		return nil, err
	}
	var ended model.Session
	if t.session != nil {
		ended = *t.session
	} else {
		ended = t.pausedAsSession()
	}
	t.clearLocked()
	return []Event{{Type: EventStopped, Session: ended, Phase: ended.Phase, Reason: reason, At: now}}, err
}

func (t *Timer) clearLocked() {
	t.session = nil
	t.paused = nil
	t.overdue = false
	t.lastRemaining = -1
}

func (t *Timer) pausedAsSession() model.Session {
	return model.Session{
		Generation:  t.paused.generation,
		Run:         t.paused.run,
		TaskID:      t.paused.taskID,
		TaskName:    t.paused.taskName,
		Phase:       t.paused.phase,
		ChainNumber: t.paused.chain,
	}
}

func (t *Timer) durationForLocked(phase model.Phase) int {
	switch phase {
	case model.PhaseBreak:
		return t.durations.BreakSeconds
	case model.PhaseDelay:
		return t.durations.DelaySeconds
	default:
		return t.durations.FocusSeconds
	}
}

func (t *Timer) applyDurationsLocked(d model.Durations) {
	if d.FocusSeconds > 0 {
		t.durations.FocusSeconds = d.FocusSeconds
	}
	if d.BreakSeconds > 0 {
		t.durations.BreakSeconds = d.BreakSeconds
	}
	if d.DelaySeconds > 0 {
		t.durations.DelaySeconds = d.DelaySeconds
	}
}
