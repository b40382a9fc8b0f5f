package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"cwkeyer/internal/keyer"
)

// ============================================================================
// GPIO inputs and key output (periph.io)
// ============================================================================
// Paddles and the push button are wired as contacts to ground: pull-ups on,
// low means pressed. The rotary encoder is a two-phase quadrature encoder;
// an edge on either phase samples both and feeds decodeQuadrature.
// ============================================================================

const (
	gpioEdgeTimeout = 100 * time.Millisecond
	gpioSettle      = time.Millisecond
)

var (
	hostInitOnce sync.Once
	hostInitErr  error
)

func initHost() error {
	hostInitOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}

func lookupPin(name string) (gpio.PinIO, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return p, nil
}

// gpioKeyLine drives the transmitter key from a GPIO pin.
type gpioKeyLine struct {
	pin       gpio.PinIO
	activeLow bool
	logger    *slog.Logger
}

func openGPIOKeyLine(name string, activeLow bool, logger *slog.Logger) (*gpioKeyLine, error) {
	p, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	k := &gpioKeyLine{pin: p, activeLow: activeLow, logger: logger}
	if err := p.Out(k.level(false)); err != nil {
		return nil, fmt.Errorf("gpio %s out: %w", name, err)
	}
	return k, nil
}

func (k *gpioKeyLine) level(down bool) gpio.Level {
	return gpio.Level(down != k.activeLow)
}

func (k *gpioKeyLine) SetKey(down bool) {
	if err := k.pin.Out(k.level(down)); err != nil {
		k.logger.Error("key line write failed", "pin", k.pin.Name(), "down", down, "error", err)
	}
}

func (k *gpioKeyLine) Close() error {
	if err := k.pin.Out(k.level(false)); err != nil {
		return err
	}
	return k.pin.Halt()
}

// gpioInput is one contact input watched for edges.
type gpioInput struct {
	name string
	pin  gpio.PinIO
	emit func(pressed bool) Event
}

// runGPIOInputs watches the configured input pins and sends Events until ctx
// is canceled. Each pin is watched from its own goroutine; WaitForEdge times
// out periodically so cancellation is noticed.
func runGPIOInputs(ctx context.Context, cfg GPIOInputConfig, events chan<- Event, logger *slog.Logger) error {
	var inputs []gpioInput

	add := func(name string, emit func(bool) Event) error {
		if name == "" {
			return nil
		}
		p, err := lookupPin(name)
		if err != nil {
			return err
		}
		if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("gpio %s in: %w", name, err)
		}
		inputs = append(inputs, gpioInput{name: name, pin: p, emit: emit})
		return nil
	}

	if err := add(cfg.DotPin, func(pressed bool) Event {
		return PaddleChanged{Paddle: keyer.PaddleDot, Pressed: pressed}
	}); err != nil {
		return err
	}
	if err := add(cfg.DashPin, func(pressed bool) Event {
		return PaddleChanged{Paddle: keyer.PaddleDash, Pressed: pressed}
	}); err != nil {
		return err
	}
	if err := add(cfg.ButtonPin, func(pressed bool) Event {
		return ButtonChanged{Pressed: pressed}
	}); err != nil {
		return err
	}

	var rotA, rotB gpio.PinIO
	if cfg.RotaryAPin != "" {
		var err error
		if rotA, err = lookupPin(cfg.RotaryAPin); err != nil {
			return err
		}
		if rotB, err = lookupPin(cfg.RotaryBPin); err != nil {
			return err
		}
		if err := rotA.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("gpio %s in: %w", cfg.RotaryAPin, err)
		}
		if err := rotB.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("gpio %s in: %w", cfg.RotaryBPin, err)
		}
	}

	logger.Info("gpio inputs",
		"dot", cfg.DotPin,
		"dash", cfg.DashPin,
		"button", cfg.ButtonPin,
		"rotary_a", cfg.RotaryAPin,
		"rotary_b", cfg.RotaryBPin)

	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(in gpioInput) {
			defer wg.Done()
			watchContact(ctx, in, events, logger)
		}(in)
	}
	if rotA != nil {
		q := newQuadDecoder(rotA, rotB)
		for _, p := range []gpio.PinIO{rotA, rotB} {
			wg.Add(1)
			go func(p gpio.PinIO) {
				defer wg.Done()
				q.watch(ctx, p, events)
			}(p)
		}
	}

	wg.Wait()

	for _, in := range inputs {
		_ = in.pin.Halt()
	}
	if rotA != nil {
		_ = rotA.Halt()
		_ = rotB.Halt()
	}
	return nil
}

// watchContact reports level changes of an active-low contact.
func watchContact(ctx context.Context, in gpioInput, events chan<- Event, logger *slog.Logger) {
	pressed := in.pin.Read() == gpio.Low
	send(ctx, events, in.emit(pressed))

	for ctx.Err() == nil {
		if !in.pin.WaitForEdge(gpioEdgeTimeout) {
			continue
		}
		// Let the contact settle, then sample the level rather than trusting
		// the edge direction.
		time.Sleep(gpioSettle)
		now := in.pin.Read() == gpio.Low
		if now == pressed {
			continue
		}
		pressed = now
		logger.Debug("gpio edge", "pin", in.name, "pressed", pressed)
		send(ctx, events, in.emit(pressed))
	}
}

// quadDecoder samples both encoder phases whenever either one changes.
type quadDecoder struct {
	a, b gpio.PinIO

	mu    sync.Mutex
	state QuadState
}

func newQuadDecoder(a, b gpio.PinIO) *quadDecoder {
	return &quadDecoder{a: a, b: b, state: newQuadState(a.Read() == gpio.High, b.Read() == gpio.High)}
}

// sample reads both phases and returns the detent they complete, if any.
func (q *quadDecoder) sample() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var steps int
	q.state, steps = decodeQuadrature(q.state, q.a.Read() == gpio.High, q.b.Read() == gpio.High)
	return steps
}

// watch waits for edges on one phase and reports detents as RotaryTurn events.
func (q *quadDecoder) watch(ctx context.Context, p gpio.PinIO, events chan<- Event) {
	for ctx.Err() == nil {
		if !p.WaitForEdge(gpioEdgeTimeout) {
			continue
		}
		if steps := q.sample(); steps != 0 {
			send(ctx, events, RotaryTurn{Steps: steps})
		}
	}
}

// send blocks until the event is queued or ctx is canceled.
func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
