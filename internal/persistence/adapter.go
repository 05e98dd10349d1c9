package persistence

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"focustimer/backend/internal/model"
)

const DefaultDebounce = 500 * time.Millisecond

// State is everything that survives a restart. A nil Timer means there is
// no session to resume.
type State struct {
	Tasks     []model.Task
	Completed []model.CompletedTask
	Timer     *model.TimerSnapshot
}

type Store interface {
	SaveState(ctx context.Context, state State) error
	LoadState(ctx context.Context) (State, error)
}

// Error reports a failed load or save. It is recoverable: callers keep
// running with in-memory state.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Adapter debounces writes to a Store so bursts of mutations cost one save.
type Adapter struct {
	store    Store
	debounce time.Duration
	onError  func(*Error)

	mu      sync.Mutex
	pending *State
	timer   *time.Timer
	closed  bool

	writeMu sync.Mutex
}

func NewAdapter(store Store, debounce time.Duration) *Adapter {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Adapter{store: store, debounce: debounce}
}

// OnError registers a callback for failures of background saves.
func (a *Adapter) OnError(fn func(*Error)) {
	a.mu.Lock()
	a.onError = fn
	a.mu.Unlock()
}

// Save schedules state to be written once writes go quiet. Only the newest
// state is kept.
func (a *Adapter) Save(state State) {
	copied := cloneState(state)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = &copied
	if a.timer == nil {
		a.timer = time.AfterFunc(a.debounce, a.flushPending)
		return
	}
	a.timer.Reset(a.debounce)
}

// Flush writes the pending state now, if there is one.
func (a *Adapter) Flush(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	state := a.pending
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
	}
	onError := a.onError
	a.mu.Unlock()

	if state == nil {
		return nil
	}
	if err := a.store.SaveState(ctx, *state); err != nil {
		perr := &Error{Op: "save", Err: err}
		log.Printf("persistence: %v", perr)
		if onError != nil {
			onError(perr)
		}
		return perr
	}
	return nil
}

// Load reads the stored state. On failure it returns empty collections
// together with a *Error.
func (a *Adapter) Load(ctx context.Context) (State, error) {
	state, err := a.store.LoadState(ctx)
	if err != nil {
		perr := &Error{Op: "load", Err: err}
		log.Printf("persistence: %v", perr)
		return State{Tasks: []model.Task{}, Completed: []model.CompletedTask{}}, perr
	}
	if state.Tasks == nil {
		state.Tasks = []model.Task{}
	}
	if state.Completed == nil {
		state.Completed = []model.CompletedTask{}
	}
	return state, nil
}

// Close flushes pending state and rejects later saves.
func (a *Adapter) Close(ctx context.Context) error {
	err := a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return err
}

func (a *Adapter) flushPending() {
	_ = a.Flush(context.Background())
}

func cloneState(state State) State {
	copied := State{
		Tasks:     append([]model.Task(nil), state.Tasks...),
		Completed: append([]model.CompletedTask(nil), state.Completed...),
	}
	if state.Timer != nil {
		snapshot := *state.Timer
		copied.Timer = &snapshot
	}
	return copied
}
