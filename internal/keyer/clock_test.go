package keyer

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"
)

func TestReached_Wraparound(t *testing.T) {
	tests := []struct {
		now, deadline uint32
		want          bool
	}{
		{100, 100, true},
		{99, 100, false},
		{101, 100, true},
		{5, math.MaxUint32 - 5, true},  // deadline before the wrap, now after it
		{math.MaxUint32 - 5, 5, false}, // deadline after the wrap
		{math.MaxUint32, math.MaxUint32, true},
	}
	for _, tt := range tests {
		if got := reached(tt.now, tt.deadline); got != tt.want {
			t.Errorf("reached(%d, %d) = %v, want %v", tt.now, tt.deadline, got, tt.want)
		}
	}
}

func TestTickCounter_ConcurrentAdvance(t *testing.T) {
	var tc TickCounter
	tc.Set(math.MaxUint32 - 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tc.Advance(1)
				_ = tc.NowMS()
			}
		}()
	}
	wg.Wait()

	if got, want := tc.NowMS(), uint32(789); got != want {
		t.Fatalf("NowMS() = %d, want %d", got, want)
	}
}

func TestTickCounter_RunCountsMilliseconds(t *testing.T) {
	var tc TickCounter
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tc.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	// Generous bounds: scheduling jitter only ever delays ticks.
	if got := tc.NowMS(); got < 20 || got > 200 {
		t.Fatalf("NowMS() after ~50ms = %d", got)
	}
}

func TestSystemClock_Monotonic(t *testing.T) {
	c := NewSystemClock()
	a := c.NowMS()
	time.Sleep(5 * time.Millisecond)
	if b := c.NowMS(); b-a < 5 {
		t.Fatalf("clock advanced %dms, want >= 5", b-a)
	}
}
