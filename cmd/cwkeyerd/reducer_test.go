package main

import (
	"testing"
	"time"

	"cwkeyer/internal/keyer"
)

func testReducerConfig() ReducerConfig {
	return ReducerConfig{
		MinWPM: 5,
		MaxWPM: 40,
		Rotary: RotaryPolicy{
			WPMPerStep:         1,
			VelocityWindow:     200 * time.Millisecond,
			VelocityThreshold:  3,
			VelocityMultiplier: 2,
		},
		ButtonDebounce:  20 * time.Millisecond,
		ButtonLongPress: time.Second,
		SaveEnabled:     true,
		SaveDelay:       2 * time.Second,
		DisplayWidth:    8,
	}
}

func testState(mode keyer.Mode, wpm uint8) *DaemonState {
	return newDaemonState(KeyerSettings{Mode: mode, WPM: wpm}, true)
}

func TestReduce_PaddleChanged_MergesHardwareAndVirtual(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicB, 20)

	rr := Reduce(s, TimedEvent{Event: PaddleChanged{Paddle: keyer.PaddleDot, Pressed: true}, At: t0}, cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rr.Commands))
	}
	if c, ok := rr.Commands[0].(CmdSetPaddles); !ok || !c.Dot || c.Dash {
		t.Fatalf("unexpected command %v", rr.Commands[0])
	}

	rr = Reduce(rr.State, TimedEvent{Event: SetPaddles{Dash: true}, At: t0}, cfg)
	if c := rr.Commands[0].(CmdSetPaddles); !c.Dot || !c.Dash {
		t.Fatalf("expected both paddles, got %v", c)
	}

	// Hardware release keeps the virtual dash.
	rr = Reduce(rr.State, TimedEvent{Event: PaddleChanged{Paddle: keyer.PaddleDot, Pressed: false}, At: t0}, cfg)
	if c := rr.Commands[0].(CmdSetPaddles); c.Dot || !c.Dash {
		t.Fatalf("expected dash only, got %v", c)
	}
}

func TestReduce_RotaryTurn_ChangesSpeedAndArmsSave(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	rr := Reduce(s, TimedEvent{Event: RotaryTurn{Steps: 1}, At: t0}, cfg)

	if rr.State.Settings.WPM != 21 {
		t.Fatalf("wpm=%d, want 21", rr.State.Settings.WPM)
	}
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d: %v", len(rr.Commands), rr.Commands)
	}
	if c, ok := rr.Commands[0].(CmdApplyWPM); !ok || c.WPM != 21 {
		t.Fatalf("expected CmdApplyWPM(21), got %v", rr.Commands[0])
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(rr.Broadcasts))
	}
	if b, ok := rr.Broadcasts[0].(BroadcastSettingsChanged); !ok || b.WPM != 21 || b.Mode != "iambic-a" {
		t.Fatalf("unexpected broadcast %#v", rr.Broadcasts[0])
	}
	if !rr.State.Intent.SavePending || !rr.State.Intent.SaveDueAt.Equal(t0.Add(2*time.Second)) {
		t.Fatalf("save not armed: %+v", rr.State.Intent)
	}
}

func TestReduce_RotaryTurn_FastSpinScales(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	for i := 0; i < 4; i++ {
		rr := Reduce(s, TimedEvent{Event: RotaryTurn{Steps: 1}, At: t0.Add(time.Duration(i) * 20 * time.Millisecond)}, cfg)
		s = rr.State
	}
	// 1 + 1 + 2 + 2
	if s.Settings.WPM != 26 {
		t.Fatalf("wpm=%d, want 26", s.Settings.WPM)
	}
}

func TestReduce_SaveDebounce(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	rr := Reduce(s, TimedEvent{Event: SetWPM{WPM: 25}, At: t0}, cfg)
	rr = Reduce(rr.State, TimedEvent{Event: SetWPM{WPM: 26}, At: t0.Add(time.Second)}, cfg)

	// Due 2s after the last change, not the first.
	rr = Reduce(rr.State, Tick{Now: t0.Add(2500 * time.Millisecond)}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("save fired early: %v", rr.Commands)
	}

	rr = Reduce(rr.State, Tick{Now: t0.Add(3 * time.Second)}, cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected save command, got %v", rr.Commands)
	}
	save, ok := rr.Commands[0].(CmdSaveSettings)
	if !ok || save.Settings.WPM != 26 {
		t.Fatalf("unexpected save command %v", rr.Commands[0])
	}

	// Fires once.
	rr = Reduce(rr.State, Tick{Now: t0.Add(4 * time.Second)}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("save fired twice: %v", rr.Commands)
	}

	rr = Reduce(rr.State, SettingsSaved{Settings: save.Settings, At: t0.Add(4 * time.Second)}, cfg)
	if rr.State.Keyer.LastSaved != save.Settings {
		t.Fatalf("LastSaved=%+v, want %+v", rr.State.Keyer.LastSaved, save.Settings)
	}
}

func TestReduce_SaveSkippedWhenBackToSavedValue(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	rr := Reduce(s, TimedEvent{Event: SetWPM{WPM: 21}, At: t0}, cfg)
	rr = Reduce(rr.State, TimedEvent{Event: SetWPM{WPM: 20}, At: t0}, cfg)
	rr = Reduce(rr.State, Tick{Now: t0.Add(3 * time.Second)}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("expected no save, got %v", rr.Commands)
	}
}

func TestReduce_SaveDisabled(t *testing.T) {
	cfg := testReducerConfig()
	cfg.SaveEnabled = false
	t0 := time.Unix(1000, 0)

	rr := Reduce(testState(keyer.IambicA, 20), TimedEvent{Event: SetWPM{WPM: 30}, At: t0}, cfg)
	if rr.State.Intent.SavePending {
		t.Fatalf("save armed with persistence disabled")
	}
}

func TestReduce_UnchangedSettingsAreSilent(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)

	rr := Reduce(testState(keyer.IambicA, 40), TimedEvent{Event: RotaryTurn{Steps: 1}, At: t0}, cfg)
	if len(rr.Commands) != 0 || len(rr.Broadcasts) != 0 {
		t.Fatalf("clamped turn at max produced commands=%v broadcasts=%v", rr.Commands, rr.Broadcasts)
	}
}

func TestReduce_SetKeyerMode(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)

	rr := Reduce(testState(keyer.IambicA, 20), TimedEvent{Event: SetKeyerMode{Mode: "ultimatic"}, At: t0}, cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %v", rr.Commands)
	}
	if c, ok := rr.Commands[0].(CmdApplyMode); !ok || c.Mode != keyer.Ultimatic {
		t.Fatalf("unexpected command %v", rr.Commands[0])
	}

	// Invalid names are ignored.
	rr = Reduce(rr.State, TimedEvent{Event: SetKeyerMode{Mode: "bug"}, At: t0}, cfg)
	if len(rr.Commands) != 0 || rr.State.Settings.Mode != keyer.Ultimatic {
		t.Fatalf("invalid mode changed state")
	}
}

func TestReduce_ButtonShortPressCyclesMode(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.Ultimatic, 20)

	rr := Reduce(s, TimedEvent{Event: ButtonChanged{Pressed: true}, At: t0}, cfg)
	rr = Reduce(rr.State, Tick{Now: t0.Add(40 * time.Millisecond)}, cfg)
	rr = Reduce(rr.State, TimedEvent{Event: ButtonChanged{Pressed: false}, At: t0.Add(200 * time.Millisecond)}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("mode changed before release debounce: %v", rr.Commands)
	}
	rr = Reduce(rr.State, Tick{Now: t0.Add(240 * time.Millisecond)}, cfg)

	if rr.State.Settings.Mode != keyer.IambicA {
		t.Fatalf("mode=%s, want iambic-a", rr.State.Settings.Mode)
	}
	if len(rr.Commands) != 1 {
		t.Fatalf("expected CmdApplyMode, got %v", rr.Commands)
	}
}

func TestReduce_ButtonLongPressTogglesTune(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	rr := Reduce(s, TimedEvent{Event: ButtonChanged{Pressed: true}, At: t0}, cfg)
	rr = Reduce(rr.State, Tick{Now: t0.Add(40 * time.Millisecond)}, cfg)
	rr = Reduce(rr.State, Tick{Now: t0.Add(1100 * time.Millisecond)}, cfg)

	if len(rr.Commands) != 1 {
		t.Fatalf("expected tune command while held, got %v", rr.Commands)
	}
	if c, ok := rr.Commands[0].(CmdSetTune); !ok || !c.On {
		t.Fatalf("expected CmdSetTune(on), got %v", rr.Commands[0])
	}

	rr = Reduce(rr.State, TimedEvent{Event: ButtonChanged{Pressed: false}, At: t0.Add(1500 * time.Millisecond)}, cfg)
	rr = Reduce(rr.State, Tick{Now: t0.Add(1600 * time.Millisecond)}, cfg)
	if len(rr.Commands) != 0 || rr.State.Settings.Mode != keyer.IambicA {
		t.Fatalf("release after long press changed mode")
	}
}

func TestReduce_ToggleTuneUsesObservedState(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	rr := Reduce(s, KeyerStateObserved{State: keyer.StateTune, Tune: true, At: t0}, cfg)
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected tune broadcast, got %v", rr.Broadcasts)
	}
	if b, ok := rr.Broadcasts[0].(BroadcastTuneChanged); !ok || !b.On {
		t.Fatalf("unexpected broadcast %#v", rr.Broadcasts[0])
	}

	rr = Reduce(rr.State, TimedEvent{Event: ToggleTune{}, At: t0}, cfg)
	if c, ok := rr.Commands[0].(CmdSetTune); !ok || c.On {
		t.Fatalf("expected CmdSetTune(off), got %v", rr.Commands[0])
	}
}

func TestReduce_KeyObserved_BroadcastsEdgesOnly(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	rr := Reduce(s, KeyObserved{Down: true, At: t0}, cfg)
	if len(rr.Broadcasts) != 1 || !rr.State.Keyer.KeyDown {
		t.Fatalf("key down not recorded: %v", rr.Broadcasts)
	}
	rr = Reduce(rr.State, KeyObserved{Down: true, At: t0.Add(time.Millisecond)}, cfg)
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("repeated level broadcast: %v", rr.Broadcasts)
	}
	rr = Reduce(rr.State, KeyObserved{Down: false, At: t0.Add(60 * time.Millisecond)}, cfg)
	if b, ok := rr.Broadcasts[0].(BroadcastKeyChanged); !ok || b.Down {
		t.Fatalf("unexpected broadcast %#v", rr.Broadcasts[0])
	}
}

func TestReduce_GlyphDecoded_ScrollsDisplay(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicA, 20)

	for _, g := range []string{"c", "q", " ", "c", "q", " ", "d", "e"} {
		s = Reduce(s, GlyphDecoded{Text: g, At: t0}, cfg).State
	}
	rr := Reduce(s, GlyphDecoded{Text: "<ar>", At: t0}, cfg)

	if rr.State.Display.Line != "q de<ar>" {
		t.Fatalf("line=%q", rr.State.Display.Line)
	}
	if rr.State.Display.Glyphs != 7 {
		t.Fatalf("glyphs=%d, want 7 (spaces not counted)", rr.State.Display.Glyphs)
	}
	b, ok := rr.Broadcasts[0].(BroadcastDecoded)
	if !ok || b.Text != "<ar>" || b.Line != "q de<ar>" {
		t.Fatalf("unexpected broadcast %#v", rr.Broadcasts[0])
	}
}

func TestReduce_RequestStateSnapshot(t *testing.T) {
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)
	s := testState(keyer.IambicB, 20)
	s.Display.Line = "test"

	reply := make(chan StateSnapshot, 1)
	rr := Reduce(s, TimedEvent{Event: RequestStateSnapshot{Reply: reply}, At: t0}, cfg)

	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %v", rr.Commands)
	}
	c, ok := rr.Commands[0].(CmdPublishStateSnapshot)
	if !ok {
		t.Fatalf("expected CmdPublishStateSnapshot, got %T", rr.Commands[0])
	}
	snap := c.Snapshot
	if snap.Mode != "iambic-b" || snap.WPM != 20 || snap.UnitMS != 60 || snap.Line != "test" || !snap.At.Equal(t0) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(reply) != 0 {
		t.Fatalf("reducer must not reply itself")
	}

	// No reply channel, nothing to do.
	rr = Reduce(s, TimedEvent{Event: RequestStateSnapshot{}, At: t0}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("expected no command without reply channel")
	}
}

func TestAppendDisplay(t *testing.T) {
	if got := appendDisplay("abc", "d", 3); got != "bcd" {
		t.Fatalf("got %q", got)
	}
	if got := appendDisplay("", "é", 3); got != "é" {
		t.Fatalf("got %q", got)
	}
	if got := appendDisplay("abcdef", "g", 0); got != "abcdefg" {
		t.Fatalf("width 0 should not trim, got %q", got)
	}
}
