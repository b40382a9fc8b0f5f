package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"cwkeyer/internal/keyer"
)

// Config is the top-level YAML configuration for the cwkeyerd daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config. The config file is the primary configuration surface;
// flags exist for small overrides.
type Config struct {
	Keyer    KeyerConfig    `yaml:"keyer"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Rotary   RotaryConfig   `yaml:"rotary"`
	Button   ButtonConfig   `yaml:"button"`
	Settings SettingsConfig `yaml:"settings"`
	Display  DisplayConfig  `yaml:"display"`
	IPC      IPCConfig      `yaml:"ipc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// KeyerConfig holds the start-up keyer settings. A settings file, when
// present, takes precedence over Mode and WPM.
type KeyerConfig struct {
	Mode   string `yaml:"mode"`
	WPM    int    `yaml:"wpm"` // 0 = straight key
	MinWPM int    `yaml:"min_wpm"`
	MaxWPM int    `yaml:"max_wpm"`

	PollHz     int `yaml:"poll_hz"`
	IdlePollHz int `yaml:"idle_poll_hz"`

	// Clock selects the core's millisecond source: "system" reads the
	// monotonic clock, "tick" counts a 1 kHz ticker like a timer interrupt.
	Clock string `yaml:"clock"`
}

// Keyer clock sources.
const (
	ClockSystem = "system"
	ClockTick   = "tick"
)

// Input sources.
const (
	InputSourceEvdev = "evdev"
	InputSourceGPIO  = "gpio"
	InputSourceNone  = "none"
)

type InputConfig struct {
	Source string `yaml:"source"`

	// evdev
	Devices   []string `yaml:"devices,omitempty"`
	DotKey    int      `yaml:"dot_key"`
	DashKey   int      `yaml:"dash_key"`
	ButtonKey int      `yaml:"button_key"`

	GPIO GPIOInputConfig `yaml:"gpio"`
}

// GPIOInputConfig names periph pins (e.g. "GPIO17"). Empty pins are not used.
// Inputs are active-low with the internal pull-up enabled.
type GPIOInputConfig struct {
	DotPin     string `yaml:"dot_pin"`
	DashPin    string `yaml:"dash_pin"`
	ButtonPin  string `yaml:"button_pin,omitempty"`
	RotaryAPin string `yaml:"rotary_a_pin,omitempty"`
	RotaryBPin string `yaml:"rotary_b_pin,omitempty"`
}

// Key line output types.
const (
	OutputNone      = "none"
	OutputGPIO      = "gpio"
	OutputSerialDTR = "serial-dtr"
	OutputSerialRTS = "serial-rts"
)

type OutputConfig struct {
	Type         string `yaml:"type"`
	Pin          string `yaml:"pin,omitempty"`
	ActiveLow    bool   `yaml:"active_low,omitempty"`
	SerialDevice string `yaml:"serial_device,omitempty"`
}

type RotaryConfig struct {
	WPMPerStep         int `yaml:"wpm_per_step"`
	VelocityWindowMS   int `yaml:"velocity_window_ms"`
	VelocityThreshold  int `yaml:"velocity_threshold"`
	VelocityMultiplier int `yaml:"velocity_multiplier"`
}

type ButtonConfig struct {
	DebounceMS  int `yaml:"debounce_ms"`
	LongPressMS int `yaml:"long_press_ms"`
}

type SettingsConfig struct {
	File        string `yaml:"file"` // empty disables persistence
	SaveDelayMS int    `yaml:"save_delay_ms"`
}

type DisplayConfig struct {
	Width  int  `yaml:"width"`
	Stdout bool `yaml:"stdout"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the websocket/health server
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Keyer: KeyerConfig{
			Mode:       keyer.IambicA.String(),
			WPM:        defaultWPM,
			MinWPM:     defaultMinWPM,
			MaxWPM:     defaultMaxWPM,
			PollHz:     defaultPollHz,
			IdlePollHz: defaultIdlePollHz,
			Clock:      ClockSystem,
		},
		Input: InputConfig{
			Source:    InputSourceEvdev,
			Devices:   []string{"/dev/input/event0"},
			DotKey:    KEY_LEFTCTRL,
			DashKey:   KEY_RIGHTCTRL,
			ButtonKey: KEY_SPACE,
		},
		Output: OutputConfig{
			Type: OutputNone,
		},
		Rotary: RotaryConfig{
			WPMPerStep:         defaultRotaryWPMPerStep,
			VelocityWindowMS:   defaultRotaryVelocityWindowMS,
			VelocityThreshold:  defaultRotaryVelocityThreshold,
			VelocityMultiplier: defaultRotaryVelocityMultiplier,
		},
		Button: ButtonConfig{
			DebounceMS:  defaultButtonDebounceMS,
			LongPressMS: defaultButtonLongPressMS,
		},
		Settings: SettingsConfig{
			SaveDelayMS: defaultSaveDelayMS,
		},
		Display: DisplayConfig{
			Width:  defaultDisplayWidth,
			Stdout: true,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/cwkeyer.sock",
		},
		HTTP: HTTPConfig{
			Addr: ":3002",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&yaml.Node{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from command-line flags that were explicitly set.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	Mode  *string
	WPM   *int
	Clock *string

	InputSource *string
	InputDevice *string

	OutputType   *string
	OutputPin    *string
	SerialDevice *string

	SettingsFile  *string
	DisplayStdout *bool

	IPCSocketPath *string
	HTTPAddr      *string

	LogLevel *string
}

// Apply merges the overrides into cfg. If the pointer is non-nil, the value
// is applied (even if it is a zero value).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Mode != nil {
		cfg.Keyer.Mode = *o.Mode
	}
	if o.WPM != nil {
		cfg.Keyer.WPM = *o.WPM
	}
	if o.Clock != nil {
		cfg.Keyer.Clock = *o.Clock
	}

	if o.InputSource != nil {
		cfg.Input.Source = *o.InputSource
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}

	if o.OutputType != nil {
		cfg.Output.Type = *o.OutputType
	}
	if o.OutputPin != nil {
		cfg.Output.Pin = *o.OutputPin
	}
	if o.SerialDevice != nil {
		cfg.Output.SerialDevice = *o.SerialDevice
	}

	if o.SettingsFile != nil {
		cfg.Settings.File = *o.SettingsFile
	}
	if o.DisplayStdout != nil {
		cfg.Display.Stdout = *o.DisplayStdout
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Keyer
	if _, err := keyer.ParseMode(c.Keyer.Mode); err != nil {
		return fmt.Errorf("keyer.mode: %w", err)
	}
	if c.Keyer.MinWPM < 1 || c.Keyer.MaxWPM > 255 || c.Keyer.MinWPM > c.Keyer.MaxWPM {
		return errors.New("keyer.min_wpm and keyer.max_wpm must satisfy 1 <= min_wpm <= max_wpm <= 255")
	}
	if c.Keyer.WPM != 0 && (c.Keyer.WPM < c.Keyer.MinWPM || c.Keyer.WPM > c.Keyer.MaxWPM) {
		return fmt.Errorf("keyer.wpm must be 0 (straight key) or between %d and %d", c.Keyer.MinWPM, c.Keyer.MaxWPM)
	}
	if c.Keyer.PollHz < 100 || c.Keyer.PollHz > 10000 {
		return errors.New("keyer.poll_hz must be between 100 and 10000")
	}
	if c.Keyer.IdlePollHz <= 0 || c.Keyer.IdlePollHz > c.Keyer.PollHz {
		return errors.New("keyer.idle_poll_hz must be between 1 and keyer.poll_hz")
	}
	switch c.Keyer.Clock {
	case ClockSystem, ClockTick:
	default:
		return fmt.Errorf("keyer.clock must be %q or %q, got %q", ClockSystem, ClockTick, c.Keyer.Clock)
	}

	// Input
	switch c.Input.Source {
	case InputSourceEvdev:
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty for input.source=evdev")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
		if c.Input.DotKey <= 0 || c.Input.DashKey <= 0 {
			return errors.New("input.dot_key and input.dash_key must be > 0")
		}
		if c.Input.DotKey == c.Input.DashKey {
			return errors.New("input.dot_key and input.dash_key must differ")
		}
	case InputSourceGPIO:
		if c.Input.GPIO.DotPin == "" || c.Input.GPIO.DashPin == "" {
			return errors.New("input.gpio.dot_pin and input.gpio.dash_pin are required for input.source=gpio")
		}
		if (c.Input.GPIO.RotaryAPin == "") != (c.Input.GPIO.RotaryBPin == "") {
			return errors.New("input.gpio.rotary_a_pin and input.gpio.rotary_b_pin must be set together")
		}
	case InputSourceNone:
	default:
		return fmt.Errorf("input.source must be %q, %q or %q", InputSourceEvdev, InputSourceGPIO, InputSourceNone)
	}

	// Output
	switch c.Output.Type {
	case OutputNone:
	case OutputGPIO:
		if c.Output.Pin == "" {
			return errors.New("output.pin is required for output.type=gpio")
		}
	case OutputSerialDTR, OutputSerialRTS:
		if c.Output.SerialDevice == "" {
			return fmt.Errorf("output.serial_device is required for output.type=%s", c.Output.Type)
		}
	default:
		return fmt.Errorf("output.type must be one of %s, %s, %s, %s", OutputNone, OutputGPIO, OutputSerialDTR, OutputSerialRTS)
	}

	// Rotary
	if c.Rotary.WPMPerStep <= 0 {
		return errors.New("rotary.wpm_per_step must be > 0")
	}
	if c.Rotary.VelocityWindowMS < 0 {
		return errors.New("rotary.velocity_window_ms must be >= 0")
	}
	if c.Rotary.VelocityMultiplier < 1 {
		return errors.New("rotary.velocity_multiplier must be >= 1")
	}

	// Button
	if c.Button.DebounceMS < 0 || c.Button.LongPressMS < 0 {
		return errors.New("button.debounce_ms and button.long_press_ms must be >= 0")
	}
	if c.Button.LongPressMS > 0 && c.Button.LongPressMS <= c.Button.DebounceMS {
		return errors.New("button.long_press_ms must be greater than button.debounce_ms (or 0 to disable)")
	}

	// Settings / display
	if c.Settings.SaveDelayMS < 0 {
		return errors.New("settings.save_delay_ms must be >= 0")
	}
	if c.Display.Width <= 0 {
		return errors.New("display.width must be > 0")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToReducerConfig converts the file config into the reducer's policy config.
func (c *Config) ToReducerConfig() ReducerConfig {
	return ReducerConfig{
		MinWPM: uint8(c.Keyer.MinWPM),
		MaxWPM: uint8(c.Keyer.MaxWPM),

		Rotary: RotaryPolicy{
			WPMPerStep:         c.Rotary.WPMPerStep,
			VelocityWindow:     time.Duration(c.Rotary.VelocityWindowMS) * time.Millisecond,
			VelocityThreshold:  c.Rotary.VelocityThreshold,
			VelocityMultiplier: c.Rotary.VelocityMultiplier,
		},

		ButtonDebounce:  time.Duration(c.Button.DebounceMS) * time.Millisecond,
		ButtonLongPress: time.Duration(c.Button.LongPressMS) * time.Millisecond,

		SaveEnabled: c.Settings.File != "",
		SaveDelay:   time.Duration(c.Settings.SaveDelayMS) * time.Millisecond,

		DisplayWidth: c.Display.Width,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
