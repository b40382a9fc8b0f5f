package keyer

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock supplies a wrap-around millisecond counter.
// It wraps at 2^32 ms; the core only ever compares values through
// unsigned differences so the wrap is harmless.
type Clock interface {
	NowMS() uint32
}

// SystemClock derives milliseconds from the Go monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock counting from now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowMS() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// TickCounter is a millisecond counter advanced by a separate ticker goroutine.
//
// Reads and increments are atomic, so a poller on another goroutine can never
// observe a torn value.
type TickCounter struct {
	ticks atomic.Uint32
}

// NowMS returns the current tick count.
func (t *TickCounter) NowMS() uint32 {
	return t.ticks.Load()
}

// Advance adds ms milliseconds to the counter.
func (t *TickCounter) Advance(ms uint32) {
	t.ticks.Add(ms)
}

// Set forces the counter to a value. Used to start close to the wrap point.
func (t *TickCounter) Set(ms uint32) {
	t.ticks.Store(ms)
}

// Run increments the counter once per millisecond until ctx is canceled.
// Missed ticks are made up from the elapsed wall time so the count does not drift.
func (t *TickCounter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n := now.Sub(last).Milliseconds()
			if n <= 0 {
				continue
			}
			last = last.Add(time.Duration(n) * time.Millisecond)
			t.ticks.Add(uint32(n))
		}
	}
}

// reached reports whether deadline is at or before now, tolerating wraparound
// as long as the two are less than 2^31 ms apart.
func reached(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}
