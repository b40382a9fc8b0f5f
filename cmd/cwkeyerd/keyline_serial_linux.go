//go:build linux

package main

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// serialKeyLine keys the transmitter through a modem control line (DTR or
// RTS) of a serial port, the usual interface of USB keying cables.
type serialKeyLine struct {
	fd        int
	bit       int
	activeLow bool
	logger    *slog.Logger
}

func openSerialKeyLine(device string, rts, activeLow bool, logger *slog.Logger) (*serialKeyLine, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	k := &serialKeyLine{fd: fd, bit: unix.TIOCM_DTR, activeLow: activeLow, logger: logger}
	if rts {
		k.bit = unix.TIOCM_RTS
	}
	if err := k.set(false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: %w", device, err)
	}
	return k, nil
}

func (k *serialKeyLine) set(down bool) error {
	req := uint(unix.TIOCMBIC)
	if down != k.activeLow {
		req = unix.TIOCMBIS
	}
	if err := unix.IoctlSetPointerInt(k.fd, req, k.bit); err != nil {
		return fmt.Errorf("modem line ioctl: %w", err)
	}
	return nil
}

func (k *serialKeyLine) SetKey(down bool) {
	if err := k.set(down); err != nil {
		k.logger.Error("key line write failed", "down", down, "error", err)
	}
}

func (k *serialKeyLine) Close() error {
	err := k.set(false)
	if cerr := unix.Close(k.fd); err == nil {
		err = cerr
	}
	return err
}
