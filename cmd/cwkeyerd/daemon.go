package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// One goroutine owns the keyer core and the DaemonState.
//
//   - A poll ticker drives keyer.Core.Poll at poll_hz while the keyer is busy
//     and at idle_poll_hz while it rests.
//   - Input events are stamped, reduced, and their commands executed at once;
//     paddle commands poll the core immediately.
//   - Core outputs come back as observation events and are reduced like
//     everything else. Broadcasts go to the websocket broadcaster.
//   - A housekeeping Tick drives button hold detection and the save debounce.
//
// ============================================================================

// daemonConfig is the loop's own configuration.
type daemonConfig struct {
	PollHz     int
	IdlePollHz int

	Reducer ReducerConfig

	// Decoded, if non-nil, receives decoded text as it arrives.
	Decoded io.Writer
}

// daemon holds the loop's queues. It is only used from runDaemon's goroutine.
type daemon struct {
	host   *keyerHost
	store  settingsSaver
	state  *DaemonState
	cfg    daemonConfig
	logger *slog.Logger

	broadcasts chan<- StateBroadcast

	eventQueue []Event
	cmdQueue   []Command
}

func (d *daemon) enqueueEvent(ev Event) {
	d.eventQueue = append(d.eventQueue, ev)
}

// flushEvents reduces all queued events, enqueuing commands and publishing broadcasts.
func (d *daemon) flushEvents() {
	for len(d.eventQueue) > 0 {
		ev := d.eventQueue[0]
		d.eventQueue = d.eventQueue[1:]

		rr := Reduce(d.state, ev, d.cfg.Reducer)
		if rr.State != nil {
			d.state = rr.State
		}
		d.cmdQueue = append(d.cmdQueue, rr.Commands...)
		for _, b := range rr.Broadcasts {
			d.publish(b)
		}
	}
}

// flushCommands executes all queued commands. Observations are reduced
// promptly so follow-up commands see a coherent state.
func (d *daemon) flushCommands() {
	for len(d.cmdQueue) > 0 {
		cmd := d.cmdQueue[0]
		d.cmdQueue = d.cmdQueue[1:]

		runEffect(d.host, d.store, cmd, d.logger, d.enqueueEvent)
		d.flushEvents()
	}
}

func (d *daemon) flush() {
	d.flushEvents()
	d.flushCommands()
}

func (d *daemon) publish(b StateBroadcast) {
	if bd, ok := b.(BroadcastDecoded); ok && d.cfg.Decoded != nil {
		if _, err := io.WriteString(d.cfg.Decoded, bd.Text); err != nil {
			d.logger.Debug("decoded output write failed", "error", err)
		}
	}

	if d.broadcasts == nil {
		return
	}
	select {
	case d.broadcasts <- b:
	default:
		d.logger.Warn("broadcast queue full, dropping state broadcast", "type", fmt.Sprintf("%T", b))
	}
}

// runDaemon is the main daemon loop.
//
// d must come from newDaemon so the core's observations reach the queue.
// Exits when ctx is canceled or the events channel is closed, with the key
// line forced up.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	d *daemon,
) {
	if d.state == nil {
		d.logger.Error("daemon state is nil")
		return
	}
	defer func() {
		d.host.release()
		d.flush()
	}()

	fast := time.Second / time.Duration(d.cfg.PollHz)
	idle := time.Second / time.Duration(d.cfg.IdlePollHz)
	pollInterval := idle
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	houseTicker := time.NewTicker(time.Second / housekeepingHz)
	defer houseTicker.Stop()

	setRate := func(busy bool) {
		want := idle
		if busy {
			want = fast
		}
		if want != pollInterval {
			pollInterval = want
			pollTicker.Reset(pollInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				d.logger.Info("daemon stopping (events channel closed)")
				return
			}
			d.enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			d.flush()
			setRate(d.host.busy())

		case <-pollTicker.C:
			busy := d.host.poll()
			d.flush()
			setRate(busy)

		case now := <-houseTicker.C:
			d.enqueueEvent(Tick{Now: now})
			d.flush()
		}
	}
}

// newDaemon wires a keyer host to a daemon so that everything the core does
// is queued for the reducer.
func newDaemon(
	build func(emit func(Event)) *keyerHost,
	store settingsSaver,
	state *DaemonState,
	cfg daemonConfig,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) *daemon {
	d := &daemon{
		store:      store,
		state:      state,
		cfg:        cfg,
		logger:     logger,
		broadcasts: broadcasts,
	}
	d.host = build(d.enqueueEvent)
	return d
}
