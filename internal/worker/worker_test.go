package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"focustimer/backend/internal/clock"
	"focustimer/backend/internal/model"
	"focustimer/backend/internal/notify"
	"focustimer/backend/internal/persistence"
	"focustimer/backend/internal/service"
	"focustimer/backend/internal/stream"
	"focustimer/backend/internal/syncbus"
	"focustimer/backend/internal/timer"
)

type fixture struct {
	clock  *clock.Manual
	bus    *syncbus.Channel
	center *notify.Center
	signer *notify.ActionSigner
	worker *Worker
}

func newFixture() *fixture {
	c := clock.NewManual(time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
	bus := syncbus.New(8)
	center := notify.NewCenter()
	signer := notify.NewActionSigner("worker-secret", time.Hour, c)
	driver := notify.NewDriver(center, signer, c)
	return &fixture{
		clock:  c,
		bus:    bus,
		center: center,
		signer: signer,
		worker: New(c, bus, driver, signer, Config{TickInterval: time.Second, AppURL: "http://localhost:8080"}),
	}
}

func startMessage(generation, run uint64, phase model.Phase, remaining int) syncbus.SyncMessage {
	return syncbus.SyncMessage{
		Kind: syncbus.KindStart,
		Payload: syncbus.Payload{
			Generation:       generation,
			Run:              run,
			RemainingSeconds: remaining,
			TotalSeconds:     remaining,
			Phase:            phase,
			TaskName:         "Write report",
			ChainNumber:      1,
		},
	}
}

func TestStartRendersProgress(t *testing.T) {
	f := newFixture()

	if action := f.worker.handle(startMessage(1, 1, model.PhaseFocus, 1500)); action != tickerRestart {
		t.Fatalf("expected ticker restart, got %v", action)
	}
	f.worker.drainRenders()

	n, ok := f.center.Get(notify.TagProgress)
	if !ok {
		t.Fatal("expected progress notification after start")
	}
	if n.Title != "Focusing: Write report" || n.Progress != 0 {
		t.Fatalf("unexpected progress notification %+v", n)
	}
}

func TestTickFiresCompletionOnce(t *testing.T) {
	f := newFixture()
	updates, cancel := f.bus.Connect(4)
	defer cancel()

	f.worker.handle(startMessage(3, 3, model.PhaseFocus, 2))
	f.clock.Advance(time.Second)
	if !f.worker.tick() {
		t.Fatal("expected ticker to keep running with time left")
	}
	f.clock.Advance(time.Second)
	if f.worker.tick() {
		t.Fatal("expected ticker to stop at zero")
	}
	f.clock.Advance(time.Second)
	if f.worker.tick() {
		t.Fatal("expected fired session to stay stopped")
	}
	f.worker.drainRenders()

	select {
	case msg := <-updates:
		if msg.Kind != syncbus.ClientTimeUp || msg.Generation != 3 || msg.IsBreak || msg.IsDelay {
			t.Fatalf("unexpected time up message %+v", msg)
		}
	default:
		t.Fatal("expected a time up broadcast")
	}
	select {
	case msg := <-updates:
		t.Fatalf("expected exactly one broadcast, got another %+v", msg)
	default:
	}

	if _, ok := f.center.Get(notify.TagProgress); ok {
		t.Fatal("expected progress notification to be cleared on completion")
	}
	n, ok := f.center.Get(notify.TagCompletion)
	if !ok || n.Title != "Focus complete!" {
		t.Fatalf("expected focus completion notification, got %+v", n)
	}
}

func TestResendOfFiredGenerationDoesNotRefire(t *testing.T) {
	f := newFixture()
	updates, cancel := f.bus.Connect(4)
	defer cancel()

	f.worker.handle(startMessage(5, 5, model.PhaseDelay, 1))
	f.clock.Advance(time.Second)
	f.worker.tick()
	<-updates

	msg := startMessage(5, 5, model.PhaseDelay, 0)
	msg.Kind = syncbus.KindUpdateState
	if action := f.worker.handle(msg); action != tickerStop {
		t.Fatalf("expected fired generation to keep the ticker stopped, got %v", action)
	}
	f.worker.tick()

	select {
	case extra := <-updates:
		t.Fatalf("expected no second time up, got %+v", extra)
	default:
	}
}

func TestStopClearsNotifications(t *testing.T) {
	f := newFixture()
	f.worker.handle(startMessage(1, 1, model.PhaseFocus, 60))
	f.worker.drainRenders()

	for i := 0; i < 2; i++ {
		stop := syncbus.SyncMessage{Kind: syncbus.KindStop, Payload: syncbus.Payload{Generation: 1}}
		if action := f.worker.handle(stop); action != tickerStop {
			t.Fatalf("expected ticker stop, got %v", action)
		}
		f.worker.drainRenders()
	}
	if len(f.center.Visible()) != 0 {
		t.Fatalf("expected no visible notifications, got %+v", f.center.Visible())
	}
	if _, ok := f.worker.Status(); ok {
		t.Fatal("expected no background session after stop")
	}
}

func TestCompleteShowsManualNotice(t *testing.T) {
	f := newFixture()
	f.worker.handle(startMessage(1, 1, model.PhaseFocus, 60))
	f.worker.handle(syncbus.SyncMessage{
		Kind:    syncbus.KindComplete,
		Payload: syncbus.Payload{Generation: 1, Phase: model.PhaseFocus, TaskName: "Write report"},
	})
	f.worker.drainRenders()

	n, ok := f.center.Get(notify.TagCompletion)
	if !ok || n.Title != "Task complete" || !n.Silent {
		t.Fatalf("expected silent manual completion, got %+v", n)
	}
	if _, ok := f.center.Get(notify.TagProgress); ok {
		t.Fatal("expected progress to be cleared")
	}
}

func TestProgressRendersCoalesce(t *testing.T) {
	f := newFixture()
	f.worker.handle(startMessage(1, 1, model.PhaseFocus, 100))
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Second)
		f.worker.tick()
	}

	f.worker.renderMu.Lock()
	pending := len(f.worker.pending)
	f.worker.renderMu.Unlock()
	// The completion clear from the start and one collapsed progress render.
	if pending != 2 {
		t.Fatalf("expected 2 pending renders, got %d", pending)
	}

	f.worker.drainRenders()
	n, _ := f.center.Get(notify.TagProgress)
	if n.Progress != 5 {
		t.Fatalf("expected newest progress of 5%%, got %d", n.Progress)
	}
}

func TestClickRoutesCommand(t *testing.T) {
	f := newFixture()
	updates, cancel := f.bus.Connect(4)
	defer cancel()

	f.worker.handle(startMessage(2, 2, model.PhaseFocus, 600))
	token, err := f.signer.Sign(notify.ActionPause, notify.TagProgress, 2)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	command, err := f.worker.HandleClick(token)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if command != model.CommandPause {
		t.Fatalf("expected pause, got %s", command)
	}
	msg := <-updates
	if msg.Kind != syncbus.ClientCommand || msg.Command != model.CommandPause {
		t.Fatalf("unexpected client message %+v", msg)
	}
}

func TestClickFromPreviousRunIsStale(t *testing.T) {
	f := newFixture()
	updates, cancel := f.bus.Connect(4)
	defer cancel()

	token, _ := f.signer.Sign(notify.ActionComplete, notify.TagCompletion, 2)
	f.worker.handle(startMessage(4, 4, model.PhaseFocus, 600))

	if _, err := f.worker.HandleClick(token); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("expected ErrStaleAction, got %v", err)
	}
	select {
	case msg := <-updates:
		t.Fatalf("expected no broadcast, got %+v", msg)
	default:
	}
}

func TestBodyClickFocusesWindow(t *testing.T) {
	f := newFixture()
	updates, cancel := f.bus.Connect(4)
	defer cancel()

	token, _ := f.signer.Sign("", notify.TagProgress, 0)
	command, err := f.worker.HandleClick(token)
	if err != nil || command != model.CommandFocusWindow {
		t.Fatalf("expected focus window, got %s / %v", command, err)
	}
	if msg := <-updates; msg.Kind != syncbus.ClientFocusWindow {
		t.Fatalf("unexpected client message %+v", msg)
	}
}

func TestInvalidClickToken(t *testing.T) {
	f := newFixture()
	if _, err := f.worker.HandleClick("not-a-token"); !errors.Is(err, notify.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestBackgroundMatchesForeground(t *testing.T) {
	for _, total := range []int{1, 59, 61, 300, 1500} {
		f := newFixture()
		fg := timer.New(f.clock, model.Durations{})
		if _, err := fg.Start("t1", "Write report", total); err != nil {
			t.Fatalf("start: %v", err)
		}
		session, _ := fg.Session()
		f.worker.handle(syncbus.SyncMessage{Kind: syncbus.KindStart, Payload: syncbus.PayloadFor(session, f.clock.Now())})

		for _, step := range []time.Duration{0, 400 * time.Millisecond, 600 * time.Millisecond, 1500 * time.Millisecond, 37 * time.Second} {
			f.clock.Advance(step)
			bg, _ := f.worker.Status()
			if got, want := bg.RemainingSeconds, session.RemainingSeconds(f.clock.Now()); got != want {
				t.Fatalf("total %d: background %d != foreground %d", total, got, want)
			}
		}
	}
}

func TestLateMessagesDoNotReviveSession(t *testing.T) {
	f := newFixture()
	f.worker.handle(startMessage(5, 5, model.PhaseFocus, 600))
	f.worker.handle(syncbus.SyncMessage{Kind: syncbus.KindStop, Payload: syncbus.Payload{Generation: 5}})
	f.worker.drainRenders()

	late := startMessage(5, 5, model.PhaseFocus, 590)
	late.Kind = syncbus.KindUpdateState
	if action := f.worker.handle(late); action != tickerKeep {
		t.Fatalf("expected late update to be ignored, got %v", action)
	}
	f.worker.drainRenders()
	if _, ok := f.worker.Status(); ok {
		t.Fatal("expected no session after a late update for a stopped generation")
	}
	if _, ok := f.center.Get(notify.TagProgress); ok {
		t.Fatal("expected no progress notification for a stopped timer")
	}

	f.worker.handle(startMessage(7, 7, model.PhaseFocus, 600))
	older := startMessage(6, 6, model.PhaseFocus, 300)
	older.Kind = syncbus.KindUpdateState
	f.worker.handle(older)
	if status, _ := f.worker.Status(); status.Generation != 7 {
		t.Fatalf("expected generation 7 to survive a late generation 6, got %d", status.Generation)
	}

	if action := f.worker.handle(syncbus.SyncMessage{Kind: syncbus.KindStop, Payload: syncbus.Payload{Generation: 6}}); action != tickerKeep {
		t.Fatalf("expected a stop for an older generation to be ignored, got %v", action)
	}
	if _, ok := f.worker.Status(); !ok {
		t.Fatal("expected generation 7 to keep running")
	}
}

func TestExpiredFromForegroundRendersOnce(t *testing.T) {
	f := newFixture()
	updates, cancel := f.bus.Connect(4)
	defer cancel()

	f.worker.handle(startMessage(3, 3, model.PhaseFocus, 60))
	expired := syncbus.SyncMessage{Kind: syncbus.KindExpired, Payload: syncbus.Payload{
		Generation:   3,
		Run:          3,
		Phase:        model.PhaseFocus,
		TaskName:     "Write report",
		TotalSeconds: 60,
	}}
	if action := f.worker.handle(expired); action != tickerStop {
		t.Fatalf("expected ticker stop once the live phase expired, got %v", action)
	}
	f.worker.drainRenders()
	n, ok := f.center.Get(notify.TagCompletion)
	if !ok || n.Title != "Focus complete!" {
		t.Fatalf("expected focus completion, got %+v", n)
	}

	f.center.Close(notify.TagCompletion)
	f.worker.handle(expired)
	f.clock.Advance(2 * time.Minute)
	f.worker.tick()
	f.worker.drainRenders()
	if _, ok := f.center.Get(notify.TagCompletion); ok {
		t.Fatal("expected the completion to be rendered only once")
	}
	select {
	case msg := <-updates:
		t.Fatalf("expected no time up from the background, got %+v", msg)
	default:
	}
}

type discardStore struct{}

func (discardStore) SaveState(context.Context, persistence.State) error { return nil }

func (discardStore) LoadState(context.Context) (persistence.State, error) {
	return persistence.State{}, nil
}

func newFocusService(t *testing.T, f *fixture) (*service.FocusService, <-chan stream.Event) {
	t.Helper()
	hub := stream.NewHub()
	_, events, cancel := hub.Subscribe(256)
	t.Cleanup(cancel)
	svc := service.NewFocusService(f.clock, timer.New(f.clock, model.Durations{}), f.bus, persistence.NewAdapter(discardStore{}, time.Hour), hub, service.Options{
		SettingsPath: filepath.Join(t.TempDir(), "settings.yaml"),
	})
	return svc, events
}

func (f *fixture) pump() {
	for {
		select {
		case msg := <-f.bus.Background():
			f.worker.handle(msg)
		default:
			f.worker.drainRenders()
			return
		}
	}
}

func TestVisibleExpiryStillNotifies(t *testing.T) {
	f := newFixture()
	svc, events := newFocusService(t, f)
	updates, cancel := f.bus.Connect(4)
	defer cancel()
	pageTick := func() {
		svc.SetVisible(false)
		svc.SetVisible(true)
	}

	svc.Start("", 60)
	f.pump()

	// A resync at a fractional offset leaves the background deadline behind
	// the page's by most of a second.
	f.clock.Advance(29700 * time.Millisecond)
	pageTick()
	f.pump()

	f.clock.Advance(30 * time.Second)
	f.worker.tick()
	f.clock.Advance(300 * time.Millisecond)
	pageTick()
	f.pump()
	f.clock.Advance(700 * time.Millisecond)
	f.worker.tick()
	f.worker.drainRenders()

	if state := svc.State(); state.Phase != model.PhaseBreak {
		t.Fatalf("expected break after the page saw expiry, got %+v", state)
	}
	n, ok := f.center.Get(notify.TagCompletion)
	if !ok || n.Title != "Focus complete!" {
		t.Fatalf("expected focus completion notification, got %+v", n)
	}
	if progress, ok := f.center.Get(notify.TagProgress); !ok || progress.Phase != model.PhaseBreak {
		t.Fatalf("expected break progress alongside the completion, got %+v", progress)
	}

	timeUps := 0
	for drained := false; !drained; {
		select {
		case event := <-events:
			if event.Type == stream.EventTimeUp {
				timeUps++
			}
		default:
			drained = true
		}
	}
	if timeUps != 1 {
		t.Fatalf("expected exactly one timeUp event, got %d", timeUps)
	}
	select {
	case msg := <-updates:
		t.Fatalf("expected the background not to fire a phase the page already ended, got %+v", msg)
	default:
	}
}

func TestConcurrentCommandsKeepBackgroundInStep(t *testing.T) {
	f := newFixture()
	f.bus = syncbus.New(4096)
	f.worker = New(f.clock, f.bus, notify.NewDriver(f.center, f.signer, f.clock), f.signer, Config{})
	svc, _ := newFocusService(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				switch (i + j) % 4 {
				case 0:
					svc.Start("", 600)
				case 1:
					svc.Stop()
				case 2:
					svc.DelayStart(120)
				default:
					svc.SetVisible(false)
					svc.SetVisible(true)
				}
			}
		}(i)
	}
	wg.Wait()
	f.pump()

	state := svc.State()
	status, running := f.worker.Status()
	if state.Status == model.StatusIdle {
		if running {
			t.Fatalf("expected no background session for an idle timer, got %+v", status)
		}
		return
	}
	if !running || status.Generation != state.Generation {
		t.Fatalf("expected background at generation %d, got %+v (running=%v)", state.Generation, status, running)
	}
}
