package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cwkeyer/internal/keyer"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// readInputEvents reads input events from a single device and sends them to a channel.
// It runs in a dedicated goroutine and blocks on read operations.
func readInputEvents(f *os.File, events chan<- inputEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}

		events <- ev
	}
}

// evdevMapping maps key codes of a USB paddle adapter (or a keyboard) onto
// the keyer inputs.
type evdevMapping struct {
	DotKey    uint16
	DashKey   uint16
	ButtonKey uint16 // 0 = no button
}

func newEvdevMapping(cfg InputConfig) evdevMapping {
	return evdevMapping{
		DotKey:    uint16(cfg.DotKey),
		DashKey:   uint16(cfg.DashKey),
		ButtonKey: uint16(cfg.ButtonKey),
	}
}

// translate turns a raw input event into a daemon Event.
// Key auto-repeat is ignored: the keyer only cares about contact edges.
func (m evdevMapping) translate(ev inputEvent) (Event, bool) {
	switch ev.Type {
	case EV_KEY:
		if ev.Value != evValuePress && ev.Value != evValueRelease {
			return nil, false
		}
		pressed := ev.Value == evValuePress

		switch ev.Code {
		case m.DotKey:
			return PaddleChanged{Paddle: keyer.PaddleDot, Pressed: pressed}, true
		case m.DashKey:
			return PaddleChanged{Paddle: keyer.PaddleDash, Pressed: pressed}, true
		}
		if m.ButtonKey != 0 && ev.Code == m.ButtonKey {
			return ButtonChanged{Pressed: pressed}, true
		}

	case EV_REL:
		if (ev.Code == REL_DIAL || ev.Code == REL_WHEEL) && ev.Value != 0 {
			return RotaryTurn{Steps: int(ev.Value)}, true
		}
	}
	return nil, false
}

// runEvdevInputs opens the configured input devices, translates their events
// and sends them on until ctx is canceled or a device fails.
func runEvdevInputs(ctx context.Context, cfg InputConfig, events chan<- Event, logger *slog.Logger) error {
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, dev := range cfg.Devices {
		path := ExpandPath(dev)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input device %s: %w (run as root or add user to 'input' group)", path, err)
		}
		files = append(files, f)
	}

	logger.Info("evdev inputs", "devices", cfg.Devices, "dot_key", cfg.DotKey, "dash_key", cfg.DashKey, "button_key", cfg.ButtonKey)

	return pumpInputEvents(ctx, files, newEvdevMapping(cfg), events)
}

// pumpInputEvents reads the open devices and sends translated Events until
// ctx is canceled or a device fails. It returns only after the reader
// goroutine has stopped, so the caller may close the files.
func pumpInputEvents(ctx context.Context, files []*os.File, m evdevMapping, events chan<- Event) error {
	wake, signal, closeWake, err := newWakeFD()
	if err != nil {
		return err
	}
	defer closeWake()

	raw := make(chan inputEvent, 64)
	readErr := make(chan error, len(files)+1)
	go readInputEventsEpoll(files, wake, raw, readErr)

	stop := func() error {
		signal()
		if wake < 0 {
			return nil
		}
		// The reader may be blocked handing over an event.
		for {
			select {
			case <-raw:
			case <-readErr:
				return nil
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return stop()

		case err := <-readErr:
			if err == nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-raw:
			out, ok := m.translate(ev)
			if !ok {
				continue
			}
			select {
			case events <- out:
			case <-ctx.Done():
				return stop()
			}
		}
	}
}
