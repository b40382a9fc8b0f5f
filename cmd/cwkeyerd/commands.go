package main

import (
	"fmt"

	"cwkeyer/internal/keyer"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents a side effect to be executed by the daemon loop.
// Most of them drive the keyer core; the rest persist settings or reply to clients.
type Command interface {
	commandMarker()
	String() string
}

// CmdSetPaddles updates the paddle contacts the keyer core reads on its next poll.
type CmdSetPaddles struct {
	Dot  bool
	Dash bool
}

func (CmdSetPaddles) commandMarker() {}
func (c CmdSetPaddles) String() string {
	return fmt.Sprintf("CmdSetPaddles(dot=%v, dash=%v)", c.Dot, c.Dash)
}

// CmdApplyMode requests a keyer mode. The core defers it until the paddles are released.
type CmdApplyMode struct {
	Mode keyer.Mode
}

func (CmdApplyMode) commandMarker()   {}
func (c CmdApplyMode) String() string { return fmt.Sprintf("CmdApplyMode(mode=%s)", c.Mode) }

// CmdApplyWPM sets the keyer speed. 0 selects the straight key.
type CmdApplyWPM struct {
	WPM uint8
}

func (CmdApplyWPM) commandMarker()   {}
func (c CmdApplyWPM) String() string { return fmt.Sprintf("CmdApplyWPM(wpm=%d)", c.WPM) }

// CmdSetTune enters or leaves tune mode.
type CmdSetTune struct {
	On bool
}

func (CmdSetTune) commandMarker()   {}
func (c CmdSetTune) String() string { return fmt.Sprintf("CmdSetTune(on=%v)", c.On) }

// CmdSaveSettings writes speed and mode to the settings file.
type CmdSaveSettings struct {
	Settings KeyerSettings
}

func (CmdSaveSettings) commandMarker() {}
func (c CmdSaveSettings) String() string {
	return fmt.Sprintf("CmdSaveSettings(mode=%s, wpm=%d)", c.Settings.Mode, c.Settings.WPM)
}

// CmdPublishStateSnapshot delivers a snapshot to a requester.
// The reducer builds the snapshot; the effects layer performs the channel send.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
