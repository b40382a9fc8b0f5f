package main

import (
	"fmt"
	"log/slog"

	"cwkeyer/internal/keyer"
)

// keyLine is a keyer.KeyLine backed by real hardware.
type keyLine interface {
	keyer.KeyLine
	Close() error
}

// openKeyLine opens the transmitter key output described by cfg.
// OutputNone yields a line that drops every edge.
func openKeyLine(cfg OutputConfig, logger *slog.Logger) (keyLine, error) {
	switch cfg.Type {
	case OutputNone, "":
		logger.Info("key output disabled")
		return nullKeyLine{}, nil

	case OutputGPIO:
		line, err := openGPIOKeyLine(cfg.Pin, cfg.ActiveLow, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("key output", "type", cfg.Type, "pin", cfg.Pin, "active_low", cfg.ActiveLow)
		return line, nil

	case OutputSerialDTR, OutputSerialRTS:
		line, err := openSerialKeyLine(ExpandPath(cfg.SerialDevice), cfg.Type == OutputSerialRTS, cfg.ActiveLow, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("key output", "type", cfg.Type, "device", cfg.SerialDevice, "active_low", cfg.ActiveLow)
		return line, nil

	default:
		return nil, fmt.Errorf("unknown output type %q", cfg.Type)
	}
}
