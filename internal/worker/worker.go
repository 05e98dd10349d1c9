package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"focustimer/backend/internal/clock"
	"focustimer/backend/internal/model"
	"focustimer/backend/internal/notify"
	"focustimer/backend/internal/syncbus"
)

var (
	ErrStaleAction   = errors.New("notification action belongs to a session that is no longer running")
	ErrUnknownAction = errors.New("unknown notification action")
)

// Config contains runtime options for the background worker.
type Config struct {
	TickInterval time.Duration
	AppURL       string
}

// Status is the background context's own reading of the countdown.
type Status struct {
	Generation       uint64      `json:"generation"`
	Run              uint64      `json:"run"`
	Phase            model.Phase `json:"phase"`
	TaskName         string      `json:"taskName,omitempty"`
	RemainingSeconds int         `json:"remainingSeconds"`
	TotalSeconds     int         `json:"totalSeconds"`
	Fired            bool        `json:"fired"`
}

type session struct {
	generation uint64
	run        uint64
	phase      model.Phase
	taskName   string
	chain      int
	startedAt  time.Time
	total      int
	phaseTotal int
	fired      bool
}

func (s *session) notifyStatus(remaining int) notify.Status {
	return notify.Status{
		Run:              s.run,
		Phase:            s.phase,
		TaskName:         s.taskName,
		ChainNumber:      s.chain,
		TotalSeconds:     s.phaseTotal,
		RemainingSeconds: remaining,
	}
}

type tickerAction int

const (
	tickerKeep tickerAction = iota
	tickerRestart
	tickerStop
)

type renderJob struct {
	progress bool
	fn       func()
}

// Worker keeps counting and notifying while the foreground is suspended. It
// shares nothing with the foreground except the sync channel.
type Worker struct {
	clock   clock.Clock
	bus     *syncbus.Channel
	driver  *notify.Driver
	signer  *notify.ActionSigner
	options Config

	mu      sync.Mutex
	session *session
	// latest is the newest generation seen, ended the newest one stopped or
	// completed, fired the newest one whose completion was rendered.
	latest uint64
	ended  uint64
	fired  uint64

	renderMu sync.Mutex
	pending  []renderJob
	wake     chan struct{}
}

func New(c clock.Clock, bus *syncbus.Channel, driver *notify.Driver, signer *notify.ActionSigner, options Config) *Worker {
	if c == nil {
		c = clock.System{}
	}
	if options.TickInterval <= 0 {
		options.TickInterval = time.Second
	}
	return &Worker{
		clock:   c,
		bus:     bus,
		driver:  driver,
		signer:  signer,
		options: options,
		wake:    make(chan struct{}, 1),
	}
}

// Run consumes sync messages and drives the 1s redraw ticker until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		w.renderLoop(ctx)
	}()
	defer func() { <-renderDone }()

	var ticker *time.Ticker
	var tickC <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopTicker()

	inbox := w.bus.Background()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-inbox:
			switch w.handle(msg) {
			case tickerRestart:
				stopTicker()
				ticker = time.NewTicker(w.options.TickInterval)
				tickC = ticker.C
			case tickerStop:
				stopTicker()
			}
		case <-tickC:
			if !w.tick() {
				stopTicker()
			}
		}
	}
}

// handle applies one sync message. Session-carrying messages replace the
// local session wholesale, re-deriving its start from the payload remainder.
// Messages for a generation older than one already seen are dropped.
func (w *Worker) handle(msg syncbus.SyncMessage) tickerAction {
	now := w.clock.Now()

	switch msg.Kind {
	case syncbus.KindStart, syncbus.KindDelayStart, syncbus.KindSync, syncbus.KindUpdateState:
		p := msg.Payload
		if !p.Phase.Valid() || p.RemainingSeconds < 0 {
			log.Printf("worker: ignoring %s with invalid payload %+v", msg.Kind, p)
			return tickerKeep
		}
		next := &session{
			generation: p.Generation,
			run:        p.Run,
			phase:      p.Phase,
			taskName:   p.TaskName,
			chain:      p.ChainNumber,
			startedAt:  now,
			total:      p.RemainingSeconds,
			phaseTotal: p.TotalSeconds,
		}
		if next.phaseTotal < next.total {
			next.phaseTotal = next.total
		}

		w.mu.Lock()
		if next.generation < w.latest || next.generation <= w.ended {
			w.mu.Unlock()
			log.Printf("worker: ignoring stale %s for generation %d", msg.Kind, next.generation)
			return tickerKeep
		}
		w.latest = next.generation
		next.fired = next.generation <= w.fired
		w.session = next
		w.mu.Unlock()

		if msg.Kind == syncbus.KindStart || msg.Kind == syncbus.KindDelayStart {
			w.enqueue(renderJob{fn: func() { w.driver.Clear(notify.TagCompletion) }})
		}
		if next.fired {
			return tickerStop
		}
		if next.total > 0 {
			status := next.notifyStatus(next.total)
			w.enqueue(renderJob{progress: true, fn: func() { w.driver.RenderProgress(status) }})
		}
		return tickerRestart

	case syncbus.KindStop:
		if !w.end(msg) {
			return tickerKeep
		}
		w.enqueue(renderJob{fn: w.driver.ClearAll})
		return tickerStop

	case syncbus.KindComplete:
		if !w.end(msg) {
			return tickerKeep
		}
		status := notify.Status{
			Run:         msg.Payload.Run,
			Phase:       msg.Payload.Phase,
			TaskName:    msg.Payload.TaskName,
			ChainNumber: msg.Payload.ChainNumber,
		}
		w.enqueue(renderJob{fn: func() { w.driver.RenderCompletion(status, notify.CompletionManual) }})
		return tickerStop

	case syncbus.KindExpired:
		p := msg.Payload
		w.mu.Lock()
		if p.Generation <= w.fired || p.Generation <= w.ended {
			w.mu.Unlock()
			return tickerKeep
		}
		w.fired = p.Generation
		if p.Generation > w.latest {
			w.latest = p.Generation
		}
		action := tickerKeep
		if w.session != nil && w.session.generation == p.Generation {
			w.session.fired = true
			action = tickerStop
		}
		w.mu.Unlock()

		status := notify.Status{
			Run:          p.Run,
			Phase:        p.Phase,
			TaskName:     p.TaskName,
			ChainNumber:  p.ChainNumber,
			TotalSeconds: p.TotalSeconds,
		}
		w.enqueue(renderJob{fn: func() { w.driver.RenderCompletion(status, notify.CompletionKindFor(status.Phase)) }})
		return action

	default:
		log.Printf("worker: unknown message kind %q", msg.Kind)
		return tickerKeep
	}
}

// tick redraws progress and detects the deadline. It reports whether the
// ticker should keep running. Rendering is queued, never awaited.
func (w *Worker) tick() bool {
	w.mu.Lock()
	s := w.session
	if s == nil || s.fired {
		w.mu.Unlock()
		return false
	}
	remaining := model.RemainingSeconds(s.startedAt, s.total, w.clock.Now())
	status := s.notifyStatus(remaining)
	if remaining > 0 {
		w.mu.Unlock()
		w.enqueue(renderJob{progress: true, fn: func() { w.driver.RenderProgress(status) }})
		return true
	}
	if s.generation <= w.fired {
		s.fired = true
		w.mu.Unlock()
		return false
	}
	s.fired = true
	w.fired = s.generation
	generation, phase := s.generation, s.phase
	w.mu.Unlock()

	w.enqueue(renderJob{fn: func() { w.driver.RenderCompletion(status, notify.CompletionKindFor(phase)) }})
	w.bus.Broadcast(syncbus.ClientMessage{
		Kind:       syncbus.ClientTimeUp,
		Generation: generation,
		IsDelay:    phase == model.PhaseDelay,
		IsBreak:    phase == model.PhaseBreak,
		SentAt:     w.clock.Now(),
	})
	return false
}

// end drops the session for a stop or complete. It reports false when the
// message names a generation older than the newest one seen.
func (w *Worker) end(msg syncbus.SyncMessage) bool {
	generation := msg.Payload.Generation
	w.mu.Lock()
	defer w.mu.Unlock()
	if generation < w.latest {
		log.Printf("worker: ignoring stale %s for generation %d", msg.Kind, generation)
		return false
	}
	w.latest = generation
	w.ended = generation
	w.session = nil
	return true
}

// HandleClick resolves a notification click into a command for the
// foreground contexts.
func (w *Worker) HandleClick(token string) (model.Command, error) {
	claims, err := w.signer.Parse(token)
	if err != nil {
		return "", err
	}
	command, ok := notify.CommandFor(claims.Action)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, claims.Action)
	}

	if command == model.CommandFocusWindow {
		delivered := w.bus.Broadcast(syncbus.ClientMessage{
			Kind:    syncbus.ClientFocusWindow,
			Command: command,
			SentAt:  w.clock.Now(),
		})
		if delivered == 0 {
			log.Printf("worker: no foreground connected, open %s", w.options.AppURL)
		}
		return command, nil
	}

	w.mu.Lock()
	live := w.session != nil && w.session.run == claims.Run
	w.mu.Unlock()
	if !live {
		return "", ErrStaleAction
	}

	w.enqueue(renderJob{fn: func() { w.driver.Clear(claims.Tag) }})
	w.bus.Broadcast(syncbus.ClientMessage{
		Kind:    syncbus.ClientCommand,
		Command: command,
		SentAt:  w.clock.Now(),
	})
	return command, nil
}

func (w *Worker) Status() (Status, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	if s == nil {
		return Status{}, false
	}
	return Status{
		Generation:       s.generation,
		Run:              s.run,
		Phase:            s.phase,
		TaskName:         s.taskName,
		RemainingSeconds: model.RemainingSeconds(s.startedAt, s.total, w.clock.Now()),
		TotalSeconds:     s.phaseTotal,
		Fired:            s.fired,
	}, true
}

// enqueue appends a render; consecutive progress renders collapse into the
// newest one.
func (w *Worker) enqueue(job renderJob) {
	w.renderMu.Lock()
	if n := len(w.pending); job.progress && n > 0 && w.pending[n-1].progress {
		w.pending[n-1] = job
	} else {
		w.pending = append(w.pending, job)
	}
	w.renderMu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drainRenders()
			return
		case <-w.wake:
			w.drainRenders()
		}
	}
}

func (w *Worker) drainRenders() {
	w.renderMu.Lock()
	jobs := w.pending
	w.pending = nil
	w.renderMu.Unlock()

	for _, job := range jobs {
		job.fn()
	}
}
