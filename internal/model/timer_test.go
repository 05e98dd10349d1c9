package model

import (
	"testing"
	"time"
)

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		elapsed time.Duration
		total   int
		want    int
	}{
		{"at start", 0, 1500, 1500},
		{"partial second floors", 1500 * time.Millisecond, 1500, 1499},
		{"exact deadline", 1500 * time.Second, 1500, 0},
		{"past deadline clamps", 2 * time.Hour, 1500, 0},
		{"clock behind start", -3 * time.Second, 60, 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RemainingSeconds(start, tc.total, start.Add(tc.elapsed))
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		total, remaining, want int
	}{
		{1500, 1500, 0},
		{1500, 750, 50},
		{300, 299, 0},
		{300, 1, 100},
		{3, 1, 67},
		{0, 0, 100},
	}
	for _, tc := range cases {
		if got := ProgressPercent(tc.total, tc.remaining); got != tc.want {
			t.Fatalf("ProgressPercent(%d, %d): expected %d, got %d", tc.total, tc.remaining, tc.want, got)
		}
	}
}

func TestPhaseValid(t *testing.T) {
	for _, p := range []Phase{PhaseFocus, PhaseBreak, PhaseDelay} {
		if !p.Valid() {
			t.Fatalf("expected %q to be valid", p)
		}
	}
	if Phase("long_break").Valid() {
		t.Fatal("expected unknown phase to be invalid")
	}
}
