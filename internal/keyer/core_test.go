package keyer

import (
	"math"
	"strings"
	"testing"
)

type testPaddles struct {
	dot  bool
	dash bool
}

func (p *testPaddles) DotPressed() bool  { return p.dot }
func (p *testPaddles) DashPressed() bool { return p.dash }

type keyEdge struct {
	at   uint32
	down bool
}

// recordingKey records every change of the key line with the clock time.
type recordingKey struct {
	clock Clock
	down  bool
	edges []keyEdge
}

func (k *recordingKey) SetKey(down bool) {
	if down == k.down {
		return
	}
	k.down = down
	k.edges = append(k.edges, keyEdge{at: k.clock.NowMS(), down: down})
}

type recordingSink struct {
	out []string
}

func (s *recordingSink) EmitDecoded(text string) { s.out = append(s.out, text) }

type harness struct {
	t       *testing.T
	clock   *TickCounter
	paddles *testPaddles
	key     *recordingKey
	sink    *recordingSink
	core    *Core
}

func newHarness(t *testing.T, mode Mode, wpm uint8) *harness {
	t.Helper()
	clock := &TickCounter{}
	h := &harness{
		t:       t,
		clock:   clock,
		paddles: &testPaddles{},
		key:     &recordingKey{clock: clock},
		sink:    &recordingSink{},
	}
	h.core = New(Config{
		Clock:   h.clock,
		Paddles: h.paddles,
		Key:     h.key,
		Sink:    h.sink,
		Mode:    mode,
		WPM:     wpm,
	})
	return h
}

// run polls the core several times per millisecond for ms milliseconds,
// like a main loop that spins much faster than the clock.
func (h *harness) run(ms uint32) {
	for i := uint32(0); i < ms; i++ {
		for j := 0; j < 4; j++ {
			h.core.Poll()
		}
		h.clock.Advance(1)
	}
}

// elements turns the recorded key edges into a dot/dash pattern, checking that
// every element and every inter-element gap has an exact length.
func (h *harness) elements(unit uint32) string {
	h.t.Helper()
	var b strings.Builder
	edges := h.key.edges
	for i := 0; i+1 < len(edges); i += 2 {
		on, off := edges[i], edges[i+1]
		if !on.down || off.down {
			h.t.Fatalf("edge %d: unexpected edge order %+v %+v", i, on, off)
		}
		switch d := off.at - on.at; d {
		case unit:
			b.WriteByte('.')
		case unit * dashUnits:
			b.WriteByte('-')
		default:
			h.t.Fatalf("element %d lasted %dms, want %d or %d", i/2, d, unit, unit*dashUnits)
		}
		if i+2 < len(edges) {
			if gap := edges[i+2].at - off.at; gap != unit {
				h.t.Fatalf("gap after element %d lasted %dms, want %d", i/2, gap, unit)
			}
		}
	}
	return b.String()
}

func TestUnitMS(t *testing.T) {
	for wpm := uint8(5); wpm <= 60; wpm++ {
		if got, want := UnitMS(wpm), uint32(60000/50/int(wpm)); got != want {
			t.Errorf("UnitMS(%d) = %d, want %d", wpm, got, want)
		}
	}
	if got := UnitMS(0); got != 0 {
		t.Errorf("UnitMS(0) = %d, want 0", got)
	}
}

func TestSetWPMZeroKeepsUnitAndBypassesTiming(t *testing.T) {
	h := newHarness(t, IambicA, 20)
	if h.core.UnitMS() != 60 {
		t.Fatalf("unit = %d, want 60", h.core.UnitMS())
	}

	h.core.SetWPM(0)
	if h.core.UnitMS() != 60 {
		t.Fatalf("unit changed to %d after SetWPM(0)", h.core.UnitMS())
	}
	if h.core.WPM() != 0 {
		t.Fatalf("wpm = %d, want 0", h.core.WPM())
	}

	// Straight key: the key follows the dot contact without any unit timing.
	h.paddles.dot = true
	h.run(1)
	if !h.key.down || h.core.State() != StateSendingDot {
		t.Fatalf("key should follow dot contact, down=%v state=%v", h.key.down, h.core.State())
	}
	h.run(500)
	if !h.key.down {
		t.Fatal("key released while straight key still held")
	}
	h.paddles.dot = false
	h.run(1)
	if h.key.down || h.core.State() != StateIdle {
		t.Fatalf("key should be up after release, down=%v state=%v", h.key.down, h.core.State())
	}
	if len(h.sink.out) != 0 {
		t.Fatalf("straight key should not decode, got %q", h.sink.out)
	}
}

func TestIambicA_DotHeldProducesEvenDots(t *testing.T) {
	h := newHarness(t, IambicA, 20)
	unit := h.core.UnitMS()

	h.paddles.dot = true
	h.run(8 * unit)

	got := h.elements(unit)
	if got != "...." {
		t.Fatalf("elements = %q, want %q", got, "....")
	}
	if h.key.edges[0].at != 0 {
		t.Fatalf("first element started at %d, want 0", h.key.edges[0].at)
	}
}

func TestIambicB_SqueezeAddsTrailingElement(t *testing.T) {
	cases := []struct {
		mode Mode
		want string
		text string
	}{
		{IambicB, ".-.-.", "ar"},
		{IambicA, ".-.-", Fallback},
	}

	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			h := newHarness(t, tc.mode, 20)
			unit := h.core.UnitMS() // 60ms

			// Squeeze through dot (0-60), dash (120-300), dot (360-420) and
			// release part way through the second dash (480-660).
			h.paddles.dot = true
			h.paddles.dash = true
			h.run(500)
			h.paddles.dot = false
			h.paddles.dash = false
			h.run(2000)

			if got := h.elements(unit); got != tc.want {
				t.Fatalf("elements = %q, want %q", got, tc.want)
			}
			if len(h.sink.out) != 2 || h.sink.out[0] != tc.text || h.sink.out[1] != " " {
				t.Fatalf("decoded = %q, want [%q \" \"]", h.sink.out, tc.text)
			}
		})
	}
}

func TestUltimatic_LastPaddleRepeats(t *testing.T) {
	cases := []struct {
		mode Mode
		want string
	}{
		{Ultimatic, "-...."},
		{IambicA, "-.-.-"},
	}

	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			h := newHarness(t, tc.mode, 20)
			unit := h.core.UnitMS()

			// Dash alone, then squeeze from 100ms; release everything
			// during the fifth element.
			h.paddles.dash = true
			h.run(100)
			h.paddles.dot = true
			switch tc.mode {
			case Ultimatic:
				// dash 0-180, dots at 240, 360, 480, 600
				h.run(520)
			default:
				// dash 0-180, dot 240, dash 360-540, dot 600, dash 720
				h.run(640)
			}
			h.paddles.dot = false
			h.paddles.dash = false
			h.run(1000)

			if got := h.elements(unit); got != tc.want {
				t.Fatalf("elements = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUltimatic_ReleasingAddedPaddleFallsBack(t *testing.T) {
	h := newHarness(t, Ultimatic, 20)
	unit := h.core.UnitMS()

	// dash alone (0-180), squeeze: dot 240-300, dot 360-420,
	// then dot released: the held dash takes over again.
	h.paddles.dash = true
	h.run(100)
	h.paddles.dot = true
	h.run(300)
	h.paddles.dot = false
	h.run(380) // dashes at 480-660 and 720-900
	h.paddles.dash = false
	h.run(1000)

	if got := h.elements(unit); got != "-..--" {
		t.Fatalf("elements = %q, want %q", got, "-..--")
	}
}

func TestWordGap_SpaceEmittedOnce(t *testing.T) {
	h := newHarness(t, IambicA, 20)
	unit := h.core.UnitMS()

	// One dot: key down at 0, up at 60.
	h.paddles.dot = true
	h.run(10)
	h.paddles.dot = false

	// Character gap ends 3 units after the key went up.
	h.run(unit + charGapUnits*unit - 10)
	if len(h.sink.out) != 0 {
		t.Fatalf("decoded too early: %q", h.sink.out)
	}
	h.run(1)
	if len(h.sink.out) != 1 || h.sink.out[0] != "e" {
		t.Fatalf("decoded = %q, want [e]", h.sink.out)
	}

	// Word gap: 7 units of silence in total.
	h.run(wordGapUnits*unit - 1)
	if len(h.sink.out) != 1 {
		t.Fatalf("space emitted too early: %q", h.sink.out)
	}
	h.run(1)
	if len(h.sink.out) != 2 || h.sink.out[1] != " " {
		t.Fatalf("decoded = %q, want [e \" \"]", h.sink.out)
	}

	h.run(20 * unit)
	if len(h.sink.out) != 2 {
		t.Fatalf("extra output after word gap: %q", h.sink.out)
	}
}

func TestStraightKey_DashEntersTuneUntilDot(t *testing.T) {
	h := newHarness(t, IambicA, 0)

	h.paddles.dash = true
	h.run(5)
	if !h.core.InTune() || !h.key.down {
		t.Fatalf("expected tune with key down, state=%v down=%v", h.core.State(), h.key.down)
	}

	h.paddles.dash = false
	h.run(10000)
	if !h.core.InTune() || !h.key.down {
		t.Fatalf("tune should persist after dash release, state=%v down=%v", h.core.State(), h.key.down)
	}

	h.paddles.dot = true
	h.core.Poll()
	if h.core.InTune() || h.key.down || h.core.State() != StateIdle {
		t.Fatalf("dot should cancel tune, state=%v down=%v", h.core.State(), h.key.down)
	}
}

func TestSetTune_IambicIgnoresPaddles(t *testing.T) {
	h := newHarness(t, IambicB, 25)

	h.core.SetTune(true)
	if !h.key.down || !h.core.InTune() {
		t.Fatal("SetTune(true) should key down")
	}

	h.paddles.dot = true
	h.paddles.dash = true
	h.run(1000)
	if !h.core.InTune() || !h.key.down {
		t.Fatalf("paddles must not leave tune in iambic mode, state=%v", h.core.State())
	}
	if !h.core.Poll() {
		t.Fatal("Poll should report busy while tuning")
	}

	h.paddles.dot = false
	h.paddles.dash = false
	h.core.SetTune(false)
	if h.key.down || h.core.State() != StateIdle {
		t.Fatalf("SetTune(false) should key up and idle, state=%v", h.core.State())
	}
	if h.core.Poll() {
		t.Fatal("Poll should report idle after tune")
	}
}

func TestTimingSurvivesClockWrap(t *testing.T) {
	h := newHarness(t, IambicA, 20)
	h.clock.Set(math.MaxUint32 - 100)
	h.core = New(Config{Clock: h.clock, Paddles: h.paddles, Key: h.key, Sink: h.sink, WPM: 20})
	unit := h.core.UnitMS()

	// Three dashes; released part way through the third (480-660).
	h.paddles.dash = true
	h.run(8*unit + 20)
	h.paddles.dash = false
	h.run(20 * unit)

	if got := h.elements(unit); got != "---" {
		t.Fatalf("elements = %q, want %q", got, "---")
	}
	if len(h.sink.out) != 2 || h.sink.out[0] != "o" {
		t.Fatalf("decoded = %q, want [o \" \"]", h.sink.out)
	}
}

func TestSetModeWaitsForRest(t *testing.T) {
	h := newHarness(t, IambicA, 20)

	h.paddles.dot = true
	h.run(10)
	h.core.SetMode(IambicB)
	if h.core.Mode() != IambicB {
		t.Fatalf("Mode() = %v, want requested iambic-b", h.core.Mode())
	}
	if h.core.mode != IambicA {
		t.Fatalf("active mode changed mid-sequence to %v", h.core.mode)
	}

	h.paddles.dot = false
	h.run(200)
	if h.core.mode != IambicB {
		t.Fatalf("active mode = %v after release, want iambic-b", h.core.mode)
	}

	// Invalid modes are ignored.
	h.core.SetMode(Mode(42))
	if h.core.Mode() != IambicB {
		t.Fatalf("invalid mode accepted: %v", h.core.Mode())
	}
}

func TestNewDefaultsAreInert(t *testing.T) {
	c := New(Config{Clock: &TickCounter{}, WPM: 30})
	if c.Poll() {
		t.Fatal("core with no collaborators should stay idle")
	}
	if c.Mode() != IambicA || c.WPM() != 30 || c.State() != StateIdle {
		t.Fatalf("unexpected defaults: mode=%v wpm=%d state=%v", c.Mode(), c.WPM(), c.State())
	}
}
