package main

import (
	"log/slog"
	"time"
)

// settingsSaver persists keyer settings. *SettingsStore implements it.
type settingsSaver interface {
	Save(KeyerSettings) error
}

// runEffect executes a single reducer-emitted Command against the keyer core
// or the settings file and emits observation Events via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
// - Keyer observations are emitted by the host itself while the command runs.
func runEffect(
	host *keyerHost,
	store settingsSaver,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdSetPaddles:
		if host == nil {
			onEvent(CommandFailed{Command: cmd, Err: errNoKeyer{}, At: now})
			return
		}
		host.setPaddles(c.Dot, c.Dash)

	case CmdApplyMode:
		if host == nil {
			onEvent(CommandFailed{Command: cmd, Err: errNoKeyer{}, At: now})
			return
		}
		host.setMode(c.Mode)
		logger.Info("keyer mode", "mode", c.Mode.String())

	case CmdApplyWPM:
		if host == nil {
			onEvent(CommandFailed{Command: cmd, Err: errNoKeyer{}, At: now})
			return
		}
		host.setWPM(c.WPM)
		if c.WPM == 0 {
			logger.Info("keyer speed", "wpm", 0, "straight_key", true)
		} else {
			logger.Info("keyer speed", "wpm", c.WPM)
		}

	case CmdSetTune:
		if host == nil {
			onEvent(CommandFailed{Command: cmd, Err: errNoKeyer{}, At: now})
			return
		}
		host.setTune(c.On)
		logger.Info("tune", "on", c.On)

	case CmdSaveSettings:
		if store == nil {
			onEvent(CommandFailed{Command: cmd, Err: errNoSettingsStore{}, At: now})
			return
		}
		if err := store.Save(c.Settings); err != nil {
			logger.Error("settings save failed", "error", err)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Debug("settings saved", "mode", c.Settings.Mode.String(), "wpm", c.Settings.WPM)
		onEvent(SettingsSaved{Settings: c.Settings, At: now})

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop on a requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(CommandFailed{
			Command: cmd,
			Err:     errUnknownCommand{cmd: cmd},
			At:      now,
		})
	}
}

// errNoKeyer indicates a keyer command arrived before the core was set up.
type errNoKeyer struct{}

func (errNoKeyer) Error() string { return "no keyer core" }

// errNoSettingsStore indicates a save was requested with persistence disabled.
type errNoSettingsStore struct{}

func (errNoSettingsStore) Error() string { return "settings persistence disabled" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
