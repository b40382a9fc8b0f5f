package main

import (
	"time"

	"cwkeyer/internal/keyer"
)

// This file implements the reducer:
//
//   - Events: inputs to the reducer (user input, time ticks, keyer observations, command failures)
//   - Commands: side effects requested by the reducer (keyer core calls, settings writes)
//   - Broadcasts: state changes for websocket clients
//   - Reduce(): computes next state + commands + broadcasts, without performing I/O
//
// The keyer core itself is not reducer state. It runs in the daemon loop at
// poll rate and its outputs come back here as observation events.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent wraps a payload event with the time the daemon received it.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop at the housekeeping cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// KeyObserved is emitted when the core moves the key line.
type KeyObserved struct {
	Down bool
	At   time.Time
}

func (KeyObserved) eventMarker() {}

// GlyphDecoded is emitted for each decoded character and for the word space.
type GlyphDecoded struct {
	Text string
	At   time.Time
}

func (GlyphDecoded) eventMarker() {}

// KeyerStateObserved is emitted when the core's state machine position changes.
type KeyerStateObserved struct {
	State keyer.State
	Tune  bool
	At    time.Time
}

func (KeyerStateObserved) eventMarker() {}

// SettingsSaved is emitted after the settings file was written.
type SettingsSaved struct {
	Settings KeyerSettings
	At       time.Time
}

func (SettingsSaved) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// ==============================
// Broadcasts (reducer -> websocket)
// ==============================

// StateBroadcast is a state change worth telling websocket clients about.
type StateBroadcast interface {
	broadcastMarker()
}

type BroadcastKeyChanged struct {
	Down bool
	At   time.Time
}

func (BroadcastKeyChanged) broadcastMarker() {}

type BroadcastDecoded struct {
	Text string
	Line string
	At   time.Time
}

func (BroadcastDecoded) broadcastMarker() {}

type BroadcastSettingsChanged struct {
	Mode string
	WPM  int
	At   time.Time
}

func (BroadcastSettingsChanged) broadcastMarker() {}

type BroadcastTuneChanged struct {
	On bool
	At time.Time
}

func (BroadcastTuneChanged) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReducerConfig is the policy the reducer applies to user input.
type ReducerConfig struct {
	MinWPM uint8
	MaxWPM uint8

	Rotary RotaryPolicy

	ButtonDebounce  time.Duration
	ButtonLongPress time.Duration

	SaveEnabled bool
	SaveDelay   time.Duration

	DisplayWidth int
}

// ReduceResult is the output of Reduce(): next state, Commands to execute and
// Broadcasts to publish.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
//
// The daemon loop executes Commands, turns their results into Events and
// feeds those back into Reduce().
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}

	r := reduction{s: s, cfg: cfg}

	switch ev := e.(type) {
	case TimedEvent:
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		r.input(ev.Event, at)

	case Tick:
		r.tick(ev.Now)

	case KeyObserved:
		if s.Keyer.KeyDown != ev.Down || s.Keyer.KeyAt.IsZero() {
			s.Keyer.KeyDown = ev.Down
			s.Keyer.KeyAt = ev.At
			r.broadcast(BroadcastKeyChanged{Down: ev.Down, At: ev.At})
		}

	case GlyphDecoded:
		s.Display.Line = appendDisplay(s.Display.Line, ev.Text, cfg.DisplayWidth)
		if ev.Text != " " {
			s.Display.Glyphs++
		}
		r.broadcast(BroadcastDecoded{Text: ev.Text, Line: s.Display.Line, At: ev.At})

	case KeyerStateObserved:
		tuneChanged := s.Keyer.Tune != ev.Tune
		s.Keyer.State = ev.State
		s.Keyer.Tune = ev.Tune
		s.Keyer.StateAt = ev.At
		if tuneChanged {
			r.broadcast(BroadcastTuneChanged{On: ev.Tune, At: ev.At})
		}

	case SettingsSaved:
		s.Keyer.LastSaved = ev.Settings
		s.Keyer.SavedKnown = true

	case CommandFailed:
		// A failed save stays failed until the next settings change.
		_ = ev

	case RequestStateSnapshot:
		r.snapshot(ev.Reply, time.Now())

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   r.cmds,
		Broadcasts: r.bcasts,
	}
}

// reduction accumulates the outputs of a single Reduce call.
type reduction struct {
	s   *DaemonState
	cfg ReducerConfig

	cmds   []Command
	bcasts []StateBroadcast
}

func (r *reduction) command(c Command)          { r.cmds = append(r.cmds, c) }
func (r *reduction) broadcast(b StateBroadcast) { r.bcasts = append(r.bcasts, b) }

func (r *reduction) input(e Event, at time.Time) {
	s := r.s

	switch a := e.(type) {
	case PaddleChanged:
		switch a.Paddle {
		case keyer.PaddleDot:
			s.Paddles.Hardware.Dot = a.Pressed
		case keyer.PaddleDash:
			s.Paddles.Hardware.Dash = a.Pressed
		default:
			return
		}
		r.applyPaddles()

	case SetPaddles:
		s.Paddles.Virtual = PaddleContacts{Dot: a.Dot, Dash: a.Dash}
		r.applyPaddles()

	case RotaryTurn:
		next, delta := scaleRotary(s.Rotary, at, a.Steps, r.cfg.Rotary)
		s.Rotary = next
		r.changeSettings(KeyerSettings{
			Mode: s.Settings.Mode,
			WPM:  stepWPM(s.Settings.WPM, delta, r.cfg.MinWPM, r.cfg.MaxWPM),
		}, at)

	case AdjustWPM:
		perStep := r.cfg.Rotary.WPMPerStep
		if perStep <= 0 {
			perStep = 1
		}
		r.changeSettings(KeyerSettings{
			Mode: s.Settings.Mode,
			WPM:  stepWPM(s.Settings.WPM, a.Steps*perStep, r.cfg.MinWPM, r.cfg.MaxWPM),
		}, at)

	case SetWPM:
		r.changeSettings(KeyerSettings{
			Mode: s.Settings.Mode,
			WPM:  clampWPM(a.WPM, r.cfg.MinWPM, r.cfg.MaxWPM),
		}, at)

	case SetKeyerMode:
		m, err := keyer.ParseMode(a.Mode)
		if err != nil {
			return
		}
		r.changeSettings(KeyerSettings{Mode: m, WPM: s.Settings.WPM}, at)

	case CycleKeyerMode:
		r.changeSettings(KeyerSettings{Mode: s.Settings.Mode.Next(), WPM: s.Settings.WPM}, at)

	case ButtonChanged:
		s.Button.Down = a.Pressed
		r.stepButton(at)

	case SetTune:
		r.command(CmdSetTune{On: a.On})

	case ToggleTune:
		r.command(CmdSetTune{On: !s.Keyer.Tune})

	case RequestStateSnapshot:
		r.snapshot(a.Reply, at)

	default:
		// no-op
	}
}

func (r *reduction) tick(now time.Time) {
	s := r.s

	r.stepButton(now)

	if s.Intent.SavePending && !now.Before(s.Intent.SaveDueAt) {
		s.Intent.SavePending = false
		if !s.Keyer.SavedKnown || s.Keyer.LastSaved != s.Settings {
			r.command(CmdSaveSettings{Settings: s.Settings})
		}
	}
}

func (r *reduction) stepButton(now time.Time) {
	next, short, long := stepButton(r.s.Button, now, r.cfg.ButtonDebounce, r.cfg.ButtonLongPress)
	r.s.Button = next

	switch {
	case long:
		r.command(CmdSetTune{On: !r.s.Keyer.Tune})
	case short:
		r.changeSettings(KeyerSettings{Mode: r.s.Settings.Mode.Next(), WPM: r.s.Settings.WPM}, now)
	}
}

func (r *reduction) applyPaddles() {
	p := r.s.Paddles.Effective()
	r.command(CmdSetPaddles{Dot: p.Dot, Dash: p.Dash})
}

// changeSettings applies a new speed/mode, broadcasts it and (re)arms the
// debounced save. Unchanged settings produce nothing.
func (r *reduction) changeSettings(next KeyerSettings, at time.Time) {
	s := r.s
	if next == s.Settings {
		return
	}

	if next.Mode != s.Settings.Mode {
		r.command(CmdApplyMode{Mode: next.Mode})
	}
	if next.WPM != s.Settings.WPM {
		r.command(CmdApplyWPM{WPM: next.WPM})
	}
	s.Settings = next

	r.broadcast(BroadcastSettingsChanged{Mode: next.Mode.String(), WPM: int(next.WPM), At: at})

	if r.cfg.SaveEnabled {
		s.Intent.SavePending = true
		s.Intent.SaveDueAt = at.Add(r.cfg.SaveDelay)
	}
}

func (r *reduction) snapshot(reply chan<- StateSnapshot, at time.Time) {
	if reply == nil {
		return
	}
	r.command(CmdPublishStateSnapshot{Reply: reply, Snapshot: r.s.Snapshot(at)})
}
