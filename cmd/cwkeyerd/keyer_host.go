package main

import (
	"log/slog"
	"time"

	"cwkeyer/internal/keyer"
)

// keyerHost owns the keyer core and the adapters it is wired to.
//
// Only the daemon goroutine touches it. Everything the core does (key edges,
// decoded glyphs, state changes) is turned into Events and handed to emit,
// which the daemon loop queues for the reducer.
type keyerHost struct {
	core    *keyer.Core
	paddles *inputPaddles
	key     *observedKey

	emit func(Event)
	now  func() time.Time

	lastState keyer.State
	lastTune  bool
}

// inputPaddles is the Paddles view the core polls. The effects stage writes it.
type inputPaddles struct {
	dot  bool
	dash bool
}

func (p *inputPaddles) DotPressed() bool  { return p.dot }
func (p *inputPaddles) DashPressed() bool { return p.dash }

// observedKey forwards key edges to the real key line and reports them.
type observedKey struct {
	line keyer.KeyLine
	down bool
	host *keyerHost
}

func (k *observedKey) SetKey(down bool) {
	k.line.SetKey(down)
	if down == k.down {
		return
	}
	k.down = down
	k.host.emit(KeyObserved{Down: down, At: k.host.now()})
}

// decodedSink reports decoded text.
type decodedSink struct {
	host *keyerHost
}

func (s decodedSink) EmitDecoded(text string) {
	s.host.emit(GlyphDecoded{Text: text, At: s.host.now()})
}

// newKeyerHost builds the core with the given start settings. emit must be
// non-nil; it is called synchronously from poll and from the setters.
func newKeyerHost(clock keyer.Clock, line keyer.KeyLine, settings KeyerSettings, emit func(Event), logger *slog.Logger) *keyerHost {
	if line == nil {
		line = nullKeyLine{}
	}
	h := &keyerHost{
		paddles: &inputPaddles{},
		emit:    emit,
		now:     time.Now,
	}
	h.key = &observedKey{line: line, host: h}
	h.core = keyer.New(keyer.Config{
		Clock:   clock,
		Paddles: h.paddles,
		Key:     h.key,
		Sink:    decodedSink{host: h},
		Mode:    settings.Mode,
		WPM:     settings.WPM,
		Logger:  keyerLogger(logger),
	})

	// Start with a known key-up line.
	line.SetKey(false)
	return h
}

// poll runs the core. After a transition the core is polled again (bounded)
// so that zero-delay transitions chain within one wakeup.
// It reports whether the core needs the fast poll rate.
func (h *keyerHost) poll() bool {
	for i := 0; i < maxPollsPerWake; i++ {
		before := h.core.State()
		h.core.Poll()
		if h.core.State() == before {
			break
		}
	}
	h.observeState()
	return h.busy()
}

// busy reports whether an element or gap is being timed. Tune holds the
// carrier without timing and does not need the fast rate.
func (h *keyerHost) busy() bool {
	st := h.core.State()
	return st != keyer.StateIdle && st != keyer.StateTune
}

// observeState reports a change of state machine position or tune.
func (h *keyerHost) observeState() {
	st := h.core.State()
	tune := h.core.InTune()
	if st == h.lastState && tune == h.lastTune {
		return
	}
	h.lastState = st
	h.lastTune = tune
	h.emit(KeyerStateObserved{State: st, Tune: tune, At: h.now()})
}

func (h *keyerHost) setPaddles(dot, dash bool) {
	h.paddles.dot = dot
	h.paddles.dash = dash
	h.poll()
}

func (h *keyerHost) setMode(m keyer.Mode) { h.core.SetMode(m) }

func (h *keyerHost) setWPM(wpm uint8) {
	h.core.SetWPM(wpm)
	h.poll()
}

func (h *keyerHost) setTune(on bool) {
	h.core.SetTune(on)
	h.observeState()
}

// release forces the key line up. Used on shutdown.
func (h *keyerHost) release() {
	if h.core.InTune() {
		h.core.SetTune(false)
	}
	h.key.SetKey(false)
}

// nullKeyLine is used when no key output is configured.
type nullKeyLine struct{}

func (nullKeyLine) SetKey(bool)  {}
func (nullKeyLine) Close() error { return nil }
