package main

import (
	"time"

	"cwkeyer/internal/keyer"
)

// DaemonState is the top-level, daemon-owned state container.
//
// The reducer owns it: only Reduce changes it, and only the daemon goroutine
// calls Reduce. Other goroutines see it through StateSnapshot values.
type DaemonState struct {
	// Settings is the speed and mode the keyer core has been told to use.
	Settings KeyerSettings

	// Keyer caches what the core last reported.
	Keyer KeyerObservedState

	// Paddles holds the contact state from hardware and from IPC.
	// The core sees the OR of both.
	Paddles PaddleInputs

	// Rotary is reducer-owned state used for rotary velocity detection.
	Rotary RotaryReducerState

	// Button is the push button debounce state machine.
	Button ButtonState

	// Display is the scrolling line of decoded text.
	Display DisplayState

	// Intent holds pending work for the effects stage.
	Intent DaemonIntent
}

// KeyerSettings is the persisted part of the keyer configuration.
type KeyerSettings struct {
	Mode keyer.Mode
	WPM  uint8 // 0 = straight key
}

// KeyerObservedState is the daemon's cached view of the keyer core.
type KeyerObservedState struct {
	KeyDown bool
	KeyAt   time.Time

	State   keyer.State
	Tune    bool
	StateAt time.Time

	// LastSaved is what the settings file last confirmed.
	LastSaved  KeyerSettings
	SavedKnown bool
}

// PaddleContacts is the state of the two paddle contacts from one source.
type PaddleContacts struct {
	Dot  bool
	Dash bool
}

type PaddleInputs struct {
	Hardware PaddleContacts
	Virtual  PaddleContacts
}

// Effective returns the contacts the keyer core should see.
func (p PaddleInputs) Effective() PaddleContacts {
	return PaddleContacts{
		Dot:  p.Hardware.Dot || p.Virtual.Dot,
		Dash: p.Hardware.Dash || p.Virtual.Dash,
	}
}

// DisplayState mirrors the one-line decoded text display.
type DisplayState struct {
	Line   string
	Glyphs uint64 // total glyphs decoded since start
}

// DaemonIntent captures pending work for the effects stage.
type DaemonIntent struct {
	// SavePending is set on every settings change. The save fires once
	// SaveDueAt has passed without a further change.
	SavePending bool
	SaveDueAt   time.Time
}

// newDaemonState returns the state the daemon starts with. saved reports
// whether settings came from the settings file, so an unchanged restart does
// not rewrite it.
func newDaemonState(settings KeyerSettings, saved bool) *DaemonState {
	return &DaemonState{
		Settings: settings,
		Keyer: KeyerObservedState{
			LastSaved:  settings,
			SavedKnown: saved,
		},
	}
}

// StateSnapshot is an immutable copy of the state published to IPC and WS clients.
type StateSnapshot struct {
	Mode    string
	WPM     int
	UnitMS  int
	KeyDown bool
	State   string
	Tune    bool
	Line    string
	Glyphs  uint64
	At      time.Time
}

// Snapshot builds a StateSnapshot. It copies everything it returns.
func (s *DaemonState) Snapshot(at time.Time) StateSnapshot {
	unit := 0
	if s.Settings.WPM > 0 {
		unit = int(keyer.UnitMS(s.Settings.WPM))
	}
	return StateSnapshot{
		Mode:    s.Settings.Mode.String(),
		WPM:     int(s.Settings.WPM),
		UnitMS:  unit,
		KeyDown: s.Keyer.KeyDown,
		State:   s.Keyer.State.String(),
		Tune:    s.Keyer.Tune,
		Line:    s.Display.Line,
		Glyphs:  s.Display.Glyphs,
		At:      at,
	}
}

// appendDisplay appends decoded text to the display line and keeps only the
// last width characters, scrolling like a character LCD.
func appendDisplay(line, text string, width int) string {
	r := []rune(line + text)
	if width > 0 && len(r) > width {
		r = r[len(r)-width:]
	}
	return string(r)
}
