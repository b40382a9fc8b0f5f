//go:build !linux

package main

import (
	"errors"
	"log/slog"
)

type serialKeyLine struct{}

func openSerialKeyLine(device string, rts, activeLow bool, logger *slog.Logger) (*serialKeyLine, error) {
	return nil, errors.New("serial key output is only supported on linux")
}

func (*serialKeyLine) SetKey(bool)  {}
func (*serialKeyLine) Close() error { return nil }
