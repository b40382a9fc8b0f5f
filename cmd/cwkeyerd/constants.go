package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01
	EV_REL = 0x02

	KEY_ENTER     = 28
	KEY_LEFTCTRL  = 29
	KEY_SPACE     = 57
	KEY_RIGHTCTRL = 97

	// Rotary encoder relative axis codes
	REL_DIAL  = 0x07
	REL_WHEEL = 0x08
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Keyer defaults
const (
	defaultWPM    = 20
	defaultMinWPM = 5
	defaultMaxWPM = 40

	// The core needs a poll at least every millisecond while keying for
	// exact element lengths. At rest nothing needs more than 10 ms.
	defaultPollHz     = 1000
	defaultIdlePollHz = 100

	// maxPollsPerWake bounds how often the core is re-polled in one wakeup
	// after a transition, so zero-delay transitions chain without waiting.
	maxPollsPerWake = 4

	// housekeepingHz is the reducer Tick cadence (button hold, save debounce).
	housekeepingHz = 50
)

// Rotary encoder configuration defaults
const (
	defaultRotaryWPMPerStep         = 1
	defaultRotaryVelocityWindowMS   = 200 // Time window for velocity detection (ms)
	defaultRotaryVelocityMultiplier = 2   // Multiplier for "fast spinning"
	defaultRotaryVelocityThreshold  = 3   // Steps in window to trigger velocity mode
)

// Push button defaults
const (
	defaultButtonDebounceMS  = 20
	defaultButtonLongPressMS = 1000
)

// Settings persistence and display defaults
const (
	defaultSaveDelayMS  = 2000
	defaultDisplayWidth = 16

	// wsSettingsCoalesceWindow is the maximum time window during which bursty
	// speed/mode updates (fast rotary spins) are coalesced before broadcasting.
	wsSettingsCoalesceWindow = 50 * time.Millisecond
)
