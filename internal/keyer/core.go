// Package keyer implements a polled Morse keyer: it turns two paddle contacts
// into correctly timed key-down/key-up transitions (Iambic A, Iambic B,
// Ultimatic or straight key) and decodes what it keyed back into text.
//
// The Core never blocks and never starts goroutines. The owner calls Poll
// from its loop as often as it can; every decision is taken from the clock
// value read in that call and the state kept from earlier calls.
package keyer

import (
	"log/slog"
)

// Timing, in units of one dot.
const (
	// standardWordUnits is the length of the reference word "PARIS".
	standardWordUnits = 50

	dashUnits    = 3
	charGapUnits = 3

	// wordGapUnits is counted from the moment the character gap was detected.
	wordGapUnits = 7 - charGapUnits
)

// UnitMS returns the length of one dot in milliseconds for wpm words per minute.
// Zero wpm selects the straight key and has no unit; UnitMS returns 0 for it.
func UnitMS(wpm uint8) uint32 {
	if wpm == 0 {
		return 0
	}
	return 60000 / standardWordUnits / uint32(wpm)
}

// Paddles reports the instantaneous, debounced paddle contacts.
type Paddles interface {
	DotPressed() bool
	DashPressed() bool
}

// KeyLine drives the transmitter key.
type KeyLine interface {
	SetKey(down bool)
}

// Sink receives decoded glyphs and the single space that ends a word.
type Sink interface {
	EmitDecoded(text string)
}

// Config wires a Core to its collaborators.
// Nil collaborators are replaced by inert ones (released paddles, no-op key and sink).
type Config struct {
	Clock   Clock
	Paddles Paddles
	Key     KeyLine
	Sink    Sink

	Mode Mode
	WPM  uint8

	// Logger, if set, receives debug diagnostics. The core never logs above debug.
	Logger *slog.Logger
}

// Core is the keyer state machine. It must be used from a single goroutine.
type Core struct {
	clock   Clock
	paddles Paddles
	key     KeyLine
	sink    Sink
	logger  *slog.Logger

	// mode is the algorithm in force; requestedMode is applied once the
	// current sequence has finished.
	mode          Mode
	requestedMode Mode

	wpm  uint8
	unit uint32 // ms per dot; stale and unused while wpm == 0

	state State
	acc   symbolAccumulator

	current Paddle // paddle whose element was keyed last
	first   Paddle // paddle that started the sequence

	// Paddle presses seen during the second part of a gap.
	dotEarly  bool
	dashEarly bool

	// Both paddles closed at some point during the current element.
	squeezed bool

	requiredDelay uint32
	nextScan      uint32
	secondGapEnd  uint32

	charGapStart   uint32
	charGapRunning bool
	wordGapStart   uint32
	wordGapRunning bool
}

// New builds a Core in the idle state with the key up.
func New(cfg Config) *Core {
	c := &Core{
		clock:   cfg.Clock,
		paddles: cfg.Paddles,
		key:     cfg.Key,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
	}
	if c.clock == nil {
		c.clock = NewSystemClock()
	}
	if c.paddles == nil {
		c.paddles = releasedPaddles{}
	}
	if c.key == nil {
		c.key = noopKey{}
	}
	if c.sink == nil {
		c.sink = noopSink{}
	}

	mode := cfg.Mode
	if !mode.Valid() {
		mode = IambicA
	}
	c.mode = mode
	c.requestedMode = mode
	c.SetWPM(cfg.WPM)
	c.nextScan = c.clock.NowMS()
	return c
}

// Poll advances the state machine by at most one transition and reports
// whether the keyer is busy (not idle). Callers may use a false result to
// lower their polling rate.
func (c *Core) Poll() bool {
	c.requiredDelay = 0

	dot := c.paddles.DotPressed()
	dash := c.paddles.DashPressed()
	if dot && dash {
		c.squeezed = true
	}

	if c.wpm == 0 {
		c.pollStraightKey(dot, dash)
		return c.state != StateIdle
	}

	// A paddle pressed during the gap must not be missed just because it
	// was released again before the gap ended.
	if c.state == StateSecondGap {
		if dot {
			c.dotEarly = true
		}
		if dash {
			c.dashEarly = true
		}
	}

	now := c.clock.NowMS()
	if reached(now, c.nextScan) {
		c.step(now, dot, dash)
		c.nextScan = now + c.requiredDelay
	}

	if c.state == StateIdle && c.wordGapRunning && now-c.wordGapStart >= wordGapUnits*c.unit {
		c.sink.EmitDecoded(" ")
		c.wordGapRunning = false
	}

	return c.state != StateIdle
}

func (c *Core) step(now uint32, dot, dash bool) {
	switch c.state {
	case StateSendingDot, StateSendingDash:
		// The inter-element gap is one unit, split so that an opposite
		// paddle pressed early in the gap is still noticed.
		c.key.SetKey(false)
		c.state = StateFirstGap
		c.requiredDelay = c.unit / 3
		c.secondGapEnd = now + c.unit

		c.charGapStart = now
		c.charGapRunning = true
		c.wordGapRunning = false

	case StateFirstGap:
		c.state = StateSecondGap
		if !reached(now, c.secondGapEnd) {
			c.requiredDelay = c.secondGapEnd - now
		}

	case StateSecondGap:
		c.state = StateIdle

		// Iambic B adds the opposite element once a squeeze is released.
		if c.mode == IambicB && c.squeezed && !(dot || c.dotEarly || dash || c.dashEarly) {
			if c.current == PaddleDot {
				c.dashEarly = true
			} else {
				c.dotEarly = true
			}
		}
		c.squeezed = false

	case StateIdle:
		wantDot := dot || c.dotEarly
		wantDash := dash || c.dashEarly

		if wantDot || wantDash {
			p := PriorityPaddle(c.mode, c.current, c.first)
			if !c.service(p, wantDot, wantDash) {
				c.service(p.Opposite(), wantDot, wantDash)
			}
			c.dotEarly = false
			c.dashEarly = false
			return
		}

		c.current = PaddleNone
		c.first = PaddleNone
		c.mode = c.requestedMode

		if c.charGapRunning && now-c.charGapStart >= charGapUnits*c.unit {
			c.sink.EmitDecoded(c.acc.decode())
			c.acc.reset()
			c.charGapRunning = false

			c.wordGapStart = now
			c.wordGapRunning = true
		}

	case StateTune:
		// Left only through SetTune(false).

	default:
		if c.logger != nil {
			c.logger.Debug("keyer in unknown state", "state", c.state.String())
		}
	}
}

// service starts an element for paddle p if that paddle is wanted.
func (c *Core) service(p Paddle, wantDot, wantDash bool) bool {
	switch {
	case p == PaddleDot && wantDot:
		c.state = StateSendingDot
		c.acc.push(elementDot)
		c.requiredDelay = c.unit
	case p == PaddleDash && wantDash:
		c.state = StateSendingDash
		c.acc.push(elementDash)
		c.requiredDelay = c.unit * dashUnits
	default:
		return false
	}

	c.key.SetKey(true)
	c.current = p
	if c.first == PaddleNone {
		c.first = p
	}
	return true
}

// pollStraightKey follows the dot contact directly. The dash contact starts
// tune mode and the dot contact ends it.
func (c *Core) pollStraightKey(dot, dash bool) {
	// Keep the deadline fresh so a later switch to iambic mode starts at once.
	c.nextScan = c.clock.NowMS()

	switch c.state {
	case StateTune:
		if dot {
			c.SetTune(false)
		}

	case StateIdle:
		if dash {
			c.SetTune(true)
		} else if dot {
			c.key.SetKey(true)
			c.state = StateSendingDot
		}

	case StateSendingDot:
		if !dot {
			c.key.SetKey(false)
			c.state = StateIdle
		}

	default:
		// Leftover iambic element or gap from before the speed was set to 0.
		c.key.SetKey(false)
		c.state = StateIdle
	}
}

// SetTune enters (true) or leaves (false) tune mode, forcing the key line to match.
func (c *Core) SetTune(on bool) {
	c.key.SetKey(on)
	if on {
		c.state = StateTune
	} else {
		c.state = StateIdle
	}
}

// InTune reports whether the keyer is holding a tuning carrier.
func (c *Core) InTune() bool { return c.state == StateTune }

// SetMode requests a keyer mode. It takes effect immediately when the keyer
// is at rest, otherwise once the paddles have been released.
func (c *Core) SetMode(m Mode) {
	if !m.Valid() {
		return
	}
	c.requestedMode = m
	if c.state == StateIdle && c.current == PaddleNone {
		c.mode = m
	}
}

// Mode returns the most recently requested keyer mode.
func (c *Core) Mode() Mode { return c.requestedMode }

// SetWPM sets the speed. Zero selects the straight key and leaves the unit untouched.
func (c *Core) SetWPM(wpm uint8) {
	c.wpm = wpm
	if wpm > 0 {
		c.unit = UnitMS(wpm)
	}
}

// WPM returns the configured speed; 0 means straight key.
func (c *Core) WPM() uint8 { return c.wpm }

// UnitMS returns the dot length currently in use. It is meaningless while WPM is 0.
func (c *Core) UnitMS() uint32 { return c.unit }

// State returns the state machine position.
func (c *Core) State() State { return c.state }

type releasedPaddles struct{}

func (releasedPaddles) DotPressed() bool  { return false }
func (releasedPaddles) DashPressed() bool { return false }

type noopKey struct{}

func (noopKey) SetKey(bool) {}

type noopSink struct{}

func (noopSink) EmitDecoded(string) {}
