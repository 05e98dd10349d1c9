package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"focustimer/backend/internal/clock"
	"focustimer/backend/internal/config"
	apperrors "focustimer/backend/internal/errors"
	"focustimer/backend/internal/model"
	"focustimer/backend/internal/persistence"
	"focustimer/backend/internal/stream"
	"focustimer/backend/internal/syncbus"
	"focustimer/backend/internal/timer"
)

type Options struct {
	TickInterval time.Duration
	SyncInterval time.Duration
	SettingsPath string
	AppURL       string
}

// CommandInput carries the arguments of a timer command. Fields a command
// does not use are ignored.
type CommandInput struct {
	TaskID       string `json:"taskId"`
	FocusSeconds int    `json:"focusDurationSeconds"`
	BreakSeconds int    `json:"breakDurationSeconds"`
	DelaySeconds int    `json:"delayDurationSeconds"`
}

// FocusService is the foreground context: it owns the live timer, the task
// lists and the notices, and mirrors every transition to the background
// over the sync channel.
type FocusService struct {
	clock   clock.Clock
	timer   *timer.Timer
	bus     *syncbus.Channel
	store   *persistence.Adapter
	hub     *stream.Hub
	options Options

	inbox      <-chan syncbus.ClientMessage
	disconnect func()

	// opMu orders each timer transition together with the messages, events
	// and save it produces.
	opMu sync.Mutex

	mu        sync.Mutex
	tasks     []model.Task
	completed []model.CompletedTask
	notices   []model.Notice
	visible   bool
}

func NewFocusService(
	c clock.Clock,
	t *timer.Timer,
	bus *syncbus.Channel,
	store *persistence.Adapter,
	hub *stream.Hub,
	options Options,
) *FocusService {
	if c == nil {
		c = clock.System{}
	}
	if options.TickInterval <= 0 {
		options.TickInterval = 100 * time.Millisecond
	}
	if options.SyncInterval <= 0 {
		options.SyncInterval = 30 * time.Second
	}

	inbox, disconnect := bus.Connect(16)
	s := &FocusService{
		clock:      c,
		timer:      t,
		bus:        bus,
		store:      store,
		hub:        hub,
		options:    options,
		inbox:      inbox,
		disconnect: disconnect,
		tasks:      []model.Task{},
		completed:  []model.CompletedTask{},
		notices:    []model.Notice{},
		visible:    true,
	}
	store.OnError(func(err *persistence.Error) {
		s.addNotice("persistence", "Your changes could not be saved. They are kept until the next successful save.")
	})
	return s
}

// Load restores tasks and any interrupted session. Storage failures leave
// the service empty and usable.
func (s *FocusService) Load(ctx context.Context) {
	state, err := s.store.Load(ctx)
	if err != nil {
		s.addNotice("persistence", "Saved tasks could not be loaded. Starting with an empty list.")
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	s.tasks = state.Tasks
	s.completed = state.Completed
	s.mu.Unlock()

	if state.Timer == nil {
		return
	}
	events, restoreErr := s.timer.Restore(*state.Timer)
	if restoreErr != nil {
		log.Printf("service: discard saved timer: %v", restoreErr)
		s.scheduleSave()
		return
	}
	s.apply(events)
}

// Run drives the foreground tick, the periodic resync and messages from the
// background until ctx ends.
func (s *FocusService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.options.TickInterval)
	defer ticker.Stop()
	resync := time.NewTicker(s.options.SyncInterval)
	defer resync.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		case <-resync.C:
			s.opMu.Lock()
			s.resync(syncbus.KindUpdateState)
			s.opMu.Unlock()
		case msg, ok := <-s.inbox:
			if !ok {
				return nil
			}
			s.HandleClientMessage(msg)
		}
	}
}

// Close flushes pending state and detaches from the sync channel.
func (s *FocusService) Close(ctx context.Context) error {
	s.disconnect()
	return s.store.Close(ctx)
}

func (s *FocusService) HandleClientMessage(msg syncbus.ClientMessage) {
	switch msg.Kind {
	case syncbus.ClientTimeUp:
		s.opMu.Lock()
		s.apply(s.timer.Expire(msg.Generation))
		s.opMu.Unlock()
	case syncbus.ClientCommand:
		if _, apiErr := s.Dispatch(msg.Command, CommandInput{}); apiErr != nil {
			log.Printf("service: notification command %s: %v", msg.Command, apiErr)
		}
	case syncbus.ClientFocusWindow:
		s.hub.Publish(stream.Event{Type: stream.EventFocusWindow, Data: map[string]any{
			"url": s.options.AppURL,
		}, At: s.clock.Now()})
	default:
		log.Printf("service: unknown client message %q", msg.Kind)
	}
}

// Dispatch runs a command by name. In-page requests and notification
// actions share this path.
func (s *FocusService) Dispatch(command model.Command, input CommandInput) (*timer.View, *apperrors.APIError) {
	switch command {
	case model.CommandStart:
		return s.Start(input.TaskID, input.FocusSeconds)
	case model.CommandDelayStart:
		return s.DelayStart(input.DelaySeconds)
	case model.CommandStop:
		return s.Stop()
	case model.CommandComplete:
		return s.Complete()
	case model.CommandUpdateConfig:
		return s.UpdateConfig(input.FocusSeconds, input.BreakSeconds, input.DelaySeconds)
	case model.CommandPause:
		return s.Pause()
	case model.CommandResume:
		return s.Resume()
	case model.CommandStartNow:
		return s.StartNow()
	case model.CommandFocusWindow:
		s.HandleClientMessage(syncbus.ClientMessage{Kind: syncbus.ClientFocusWindow})
		return s.State(), nil
	default:
		return nil, apperrors.BadRequest("unknown_command", "unknown command "+string(command))
	}
}

func (s *FocusService) State() *timer.View {
	view := s.timer.View()
	return &view
}

func (s *FocusService) Start(taskID string, focusSeconds int) (*timer.View, *apperrors.APIError) {
	taskName := ""
	if taskID != "" {
		task, ok := s.findTask(taskID)
		if !ok {
			return nil, apperrors.NotFound("task_not_found", "task not found")
		}
		taskName = task.Text
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	events, err := s.timer.Start(taskID, taskName, focusSeconds)
	s.apply(events)
	if err != nil {
		return nil, invariantError(err)
	}
	return s.State(), nil
}

func (s *FocusService) DelayStart(delaySeconds int) (*timer.View, *apperrors.APIError) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	events, err := s.timer.DelayStart(delaySeconds)
	s.apply(events)
	if err != nil {
		return nil, invariantError(err)
	}
	return s.State(), nil
}

func (s *FocusService) Stop() (*timer.View, *apperrors.APIError) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.apply(s.timer.Stop())
	return s.State(), nil
}

// Complete ends the session because its task is done and moves that task
// to the completed list.
func (s *FocusService) Complete() (*timer.View, *apperrors.APIError) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	events := s.timer.Complete()
	for _, event := range events {
		if event.Type == timer.EventCompleted && event.Session.TaskID != "" {
			s.markCompleted(event.Session.TaskID, event.At)
		}
	}
	s.apply(events)
	return s.State(), nil
}

func (s *FocusService) Pause() (*timer.View, *apperrors.APIError) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.apply(s.timer.Pause())
	return s.State(), nil
}

func (s *FocusService) Resume() (*timer.View, *apperrors.APIError) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.apply(s.timer.Resume())
	return s.State(), nil
}

func (s *FocusService) StartNow() (*timer.View, *apperrors.APIError) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.apply(s.timer.StartNow())
	return s.State(), nil
}

// UpdateConfig changes the lengths of future phases and writes them to the
// settings file. The running phase keeps its length.
func (s *FocusService) UpdateConfig(focusSeconds, breakSeconds, delaySeconds int) (*timer.View, *apperrors.APIError) {
	if delaySeconds < 0 {
		return nil, apperrors.InvalidDuration("durations must not be negative")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	durations, err := s.timer.UpdateConfig(focusSeconds, breakSeconds)
	if err != nil {
		return nil, invariantError(err)
	}
	if delaySeconds > 0 {
		s.timer.SetDelayDuration(delaySeconds)
		durations = s.timer.Durations()
	}

	if err := config.SaveSettings(s.options.SettingsPath, durations); err != nil {
		log.Printf("service: save settings: %v", err)
		s.addNotice("settings", "Timer settings could not be saved and will reset on restart.")
	}
	s.publishState()
	s.scheduleSave()
	return s.State(), nil
}

// SetVisible suspends or resumes the foreground tick. Becoming visible
// catches up on missed expiries and resyncs the background.
func (s *FocusService) SetVisible(visible bool) *timer.View {
	s.mu.Lock()
	was := s.visible
	s.visible = visible
	s.mu.Unlock()

	if visible && !was {
		s.opMu.Lock()
		s.apply(s.timer.Tick())
		s.resync(syncbus.KindSync)
		s.opMu.Unlock()
	}
	return s.State()
}

func (s *FocusService) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *FocusService) tick() {
	if !s.Visible() {
		return
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.apply(s.timer.Tick())
}

// resync pushes the live session to the background. An overdue delay has
// nothing left to count, so it is not resent.
func (s *FocusService) resync(kind syncbus.Kind) {
	session, ok := s.timer.Session()
	if !ok {
		return
	}
	now := s.clock.Now()
	payload := syncbus.PayloadFor(session, now)
	if payload.RemainingSeconds <= 0 {
		return
	}
	s.bus.Send(syncbus.SyncMessage{Kind: kind, Payload: payload, SentAt: now})
}

// apply mirrors timer events to the background and the UI. Callers hold
// opMu. Every expiry reaches the UI as a single timeUp, whichever context
// saw it first, and the background is told so it can show the completion.
func (s *FocusService) apply(events []timer.Event) {
	changed := false
	for _, event := range events {
		switch event.Type {
		case timer.EventTick:
			s.hub.Publish(stream.Event{Type: stream.EventTick, Data: map[string]any{
				"remainingSeconds": event.Remaining,
				"phase":            event.Phase,
			}, At: event.At})
			continue
		case timer.EventStarted:
			kind := syncbus.KindStart
			if event.Session.Phase == model.PhaseDelay {
				kind = syncbus.KindDelayStart
			}
			s.send(kind, syncbus.PayloadFor(event.Session, event.At), event.At)
		case timer.EventRestored:
			if !event.Overdue {
				s.send(syncbus.KindSync, syncbus.PayloadFor(event.Session, event.At), event.At)
			}
		case timer.EventPhaseChanged:
			s.send(syncbus.KindUpdateState, syncbus.PayloadFor(event.Session, event.At), event.At)
		case timer.EventPhaseExpired:
			s.send(syncbus.KindExpired, syncbus.PayloadFor(event.Session, event.At), event.At)
			s.hub.Publish(stream.Event{Type: stream.EventPhaseExpired, Data: map[string]any{
				"phase": event.Phase,
			}, At: event.At})
			s.hub.Publish(stream.Event{Type: stream.EventTimeUp, Data: map[string]any{
				"isDelay": event.Phase == model.PhaseDelay,
				"isBreak": event.Phase == model.PhaseBreak,
			}, At: event.At})
		case timer.EventPaused, timer.EventStopped:
			if event.Reason != "" {
				log.Printf("service: timer reset: %s", event.Reason)
			}
			s.send(syncbus.KindStop, syncbus.Payload{
				Generation: event.Session.Generation,
				Run:        event.Session.Run,
				Phase:      event.Session.Phase,
			}, event.At)
		case timer.EventCompleted:
			s.send(syncbus.KindComplete, syncbus.Payload{
				Generation:       event.Session.Generation,
				Run:              event.Session.Run,
				RemainingSeconds: event.Remaining,
				TotalSeconds:     event.Session.TotalSeconds,
				Phase:            event.Session.Phase,
				TaskName:         event.Session.TaskName,
				ChainNumber:      event.Session.ChainNumber,
			}, event.At)
		}
		changed = true
	}

	if changed {
		s.publishState()
		s.scheduleSave()
	}
}

func (s *FocusService) send(kind syncbus.Kind, payload syncbus.Payload, at time.Time) {
	s.bus.Send(syncbus.SyncMessage{Kind: kind, Payload: payload, SentAt: at})
}

func (s *FocusService) publishState() {
	s.hub.Publish(stream.Event{Type: stream.EventState, Data: s.timer.View(), At: s.clock.Now()})
}

// scheduleSave queues the current tasks and timer for storage. Callers hold
// opMu so the two halves describe the same moment.
func (s *FocusService) scheduleSave() {
	s.mu.Lock()
	state := persistence.State{Tasks: s.tasks, Completed: s.completed}
	s.mu.Unlock()
	state.Timer = s.timer.Snapshot()
	s.store.Save(state)
}

func invariantError(err error) *apperrors.APIError {
	var invariant *timer.InvariantError
	if errors.As(err, &invariant) {
		return apperrors.InvalidDuration(invariant.Reason)
	}
	return apperrors.Internal("timer command failed")
}
