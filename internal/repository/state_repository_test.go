package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"focustimer/backend/internal/db"
	"focustimer/backend/internal/model"
	"focustimer/backend/internal/persistence"
)

func newTestRepository(t *testing.T) *StateRepository {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	migrations, err := db.Migrations("")
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if err := db.RunMigrations(database, migrations); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewStateRepository(database)
}

func TestStateRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	savedAt := start.Add(10 * time.Minute)
	state := persistence.State{
		Tasks: []model.Task{
			{ID: "b", Text: "Second by id, first by position", Date: "2026-05-10", StartAt: &start, EndAt: &end},
			{ID: "a", Text: "Plain task"},
		},
		Completed: []model.CompletedTask{
			{Task: model.Task{ID: "c", Text: "Done"}, CompletedAt: end},
		},
		Timer: &model.TimerSnapshot{
			TaskID:           "b",
			TaskName:         "Second by id, first by position",
			Phase:            model.PhaseFocus,
			RemainingSeconds: 900,
			TotalSeconds:     1500,
			ChainNumber:      2,
			Durations:        model.Durations{FocusSeconds: 1500, BreakSeconds: 300, DelaySeconds: 300},
			SavedAt:          &savedAt,
		},
	}

	if err := repo.SaveState(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := repo.LoadState(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(loaded.Tasks) != 2 || loaded.Tasks[0].ID != "b" || loaded.Tasks[1].ID != "a" {
		t.Fatalf("expected tasks in saved order, got %+v", loaded.Tasks)
	}
	first := loaded.Tasks[0]
	if first.Date != "2026-05-10" || first.StartAt == nil || !first.StartAt.Equal(start) || !first.EndAt.Equal(end) {
		t.Fatalf("unexpected first task %+v", first)
	}
	if loaded.Tasks[1].StartAt != nil || loaded.Tasks[1].Date != "" {
		t.Fatalf("expected optional columns to load empty, got %+v", loaded.Tasks[1])
	}
	if len(loaded.Completed) != 1 || !loaded.Completed[0].CompletedAt.Equal(end) {
		t.Fatalf("unexpected completed tasks %+v", loaded.Completed)
	}

	snapshot := loaded.Timer
	if snapshot == nil {
		t.Fatal("expected timer snapshot")
	}
	if snapshot.Phase != model.PhaseFocus || snapshot.RemainingSeconds != 900 || snapshot.ChainNumber != 2 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.Durations.BreakSeconds != 300 || snapshot.SavedAt == nil || !snapshot.SavedAt.Equal(savedAt) {
		t.Fatalf("unexpected snapshot extras %+v", snapshot)
	}
}

func TestSaveReplacesPreviousState(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := persistence.State{
		Tasks: []model.Task{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
		Timer: &model.TimerSnapshot{Phase: model.PhaseDelay, RemainingSeconds: 0, TotalSeconds: 300, Overdue: true},
	}
	if err := repo.SaveState(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if snapshot, err := repo.GetSnapshot(ctx); err != nil || !snapshot.Overdue {
		t.Fatalf("expected overdue delay snapshot, got %+v / %v", snapshot, err)
	}
	if err := repo.SaveState(ctx, persistence.State{Tasks: []model.Task{{ID: "b", Text: "B"}}}); err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, err := repo.LoadState(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].ID != "b" {
		t.Fatalf("expected only task b, got %+v", loaded.Tasks)
	}
	if loaded.Timer != nil {
		t.Fatalf("expected snapshot to be removed, got %+v", loaded.Timer)
	}
	if _, err := repo.GetSnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadEmptyDatabase(t *testing.T) {
	repo := newTestRepository(t)

	loaded, err := repo.LoadState(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Tasks == nil || len(loaded.Tasks) != 0 || len(loaded.Completed) != 0 || loaded.Timer != nil {
		t.Fatalf("expected empty state, got %+v", loaded)
	}
}

func TestRejectedSnapshotRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.SaveState(ctx, persistence.State{Tasks: []model.Task{{ID: "a", Text: "A"}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	bad := persistence.State{
		Tasks: []model.Task{{ID: "z", Text: "Z"}},
		Timer: &model.TimerSnapshot{Phase: model.Phase("lunch"), RemainingSeconds: 1, TotalSeconds: 1},
	}
	if err := repo.SaveState(ctx, bad); err == nil {
		t.Fatal("expected unknown phase to be rejected")
	}

	loaded, _ := repo.LoadState(ctx)
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].ID != "a" {
		t.Fatalf("expected failed save to roll back, got %+v", loaded.Tasks)
	}
}
