package timectrl

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestFixedModeStepsByInterval(t *testing.T) {
	c := NewFrameClock(250*time.Millisecond, Fixed)
	var ticks []Tick
	c.AddListener(func(tk Tick) { ticks = append(ticks, tk) })

	for i := 0; i < 4; i++ {
		c.Step()
	}
	if got := c.Elapsed(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("Elapsed() = %v, want 1.0", got)
	}
	if len(ticks) != 4 || ticks[3].Frame != 4 || math.Abs(ticks[3].Delta-0.25) > 1e-9 {
		t.Fatalf("ticks: got %+v", ticks)
	}
}

func TestRealTimeModeFollowsWallClock(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c := NewFrameClock(time.Second/60, RealTime, WithNow(func() time.Time { return now }))

	now = start.Add(1500 * time.Millisecond)
	if tk := c.Step(); math.Abs(tk.Elapsed-1.5) > 1e-9 {
		t.Fatalf("Elapsed = %v, want 1.5", tk.Elapsed)
	}

	// A clock stepping backwards never rewinds session time.
	now = start.Add(time.Second)
	if tk := c.Step(); math.Abs(tk.Elapsed-1.5) > 1e-9 || tk.Delta != 0 {
		t.Fatalf("after wall clock regression: got %+v", tk)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := NewFrameClock(2*time.Millisecond, Fixed)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx); err == nil {
		t.Fatalf("Run returned nil, want context error")
	}
	if c.Frame() == 0 {
		t.Fatalf("Run never stepped the clock")
	}
}

func TestRateToInterval(t *testing.T) {
	if got := RateToInterval(50); got != 20*time.Millisecond {
		t.Fatalf("RateToInterval(50) = %v, want 20ms", got)
	}
	if got := RateToInterval(0); got != time.Second/60 {
		t.Fatalf("RateToInterval(0) = %v, want 1/60 s", got)
	}
}
