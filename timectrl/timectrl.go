package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock exposes elapsed session time in seconds.
type Clock interface {
	Elapsed() float64
}

// Mode describes how the FrameClock advances session time.
type Mode int

const (
	// RealTime reports wall-clock time since the session started.
	RealTime Mode = iota
	// Fixed advances by exactly one tick per frame, regardless of how long
	// the frame took. Useful for replays and tests.
	Fixed
)

// Tick describes one frame.
type Tick struct {
	Frame   uint64
	Elapsed float64 // seconds since session start
	Delta   float64 // seconds since the previous frame
}

// FrameClock drives the frame loop at a fixed rate and notifies registered
// listeners with the elapsed session time.
type FrameClock struct {
	mu       sync.RWMutex
	start    time.Time
	interval time.Duration
	mode     Mode
	now      func() time.Time

	frame     uint64
	elapsed   time.Duration
	listeners []func(Tick)
}

// Option customises a FrameClock.
type Option func(*FrameClock)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(c *FrameClock) {
		if now != nil {
			c.now = now
		}
	}
}

// NewFrameClock builds a clock ticking every interval. The session starts
// when the clock is created.
func NewFrameClock(interval time.Duration, mode Mode, opts ...Option) *FrameClock {
	if interval <= 0 {
		interval = time.Second / 60
	}
	c := &FrameClock{interval: interval, mode: mode, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.start = c.now()
	return c
}

// RateToInterval converts frames per second into a tick interval.
func RateToInterval(fps float64) time.Duration {
	if fps <= 0 {
		return time.Second / 60
	}
	return time.Duration(float64(time.Second) / fps)
}

// Interval returns the tick interval.
func (c *FrameClock) Interval() time.Duration {
	return c.interval
}

// Start returns the wall time the session began.
func (c *FrameClock) Start() time.Time {
	return c.start
}

// Elapsed returns the session time of the latest frame in seconds.
func (c *FrameClock) Elapsed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.elapsed.Seconds()
}

// Frame returns the number of frames stepped.
func (c *FrameClock) Frame() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// AddListener registers a callback invoked on every tick, on the clock's
// goroutine.
func (c *FrameClock) AddListener(fn func(Tick)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Step advances one frame and notifies listeners.
func (c *FrameClock) Step() Tick {
	c.mu.Lock()
	prev := c.elapsed
	switch c.mode {
	case Fixed:
		c.elapsed += c.interval
	default:
		if e := c.now().Sub(c.start); e > c.elapsed {
			c.elapsed = e
		}
	}
	c.frame++
	tick := Tick{Frame: c.frame, Elapsed: c.elapsed.Seconds(), Delta: (c.elapsed - prev).Seconds()}
	listeners := append([]func(Tick){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(tick)
	}
	return tick
}

// Run steps the clock every interval until ctx ends.
func (c *FrameClock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Step()
		}
	}
}
