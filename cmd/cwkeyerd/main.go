package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cwkeyer/internal/keyer"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("cwkeyerd v%s\n", version)
	fmt.Println("Iambic Morse keyer daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  cwkeyerd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads a pair of paddles (USB adapter or GPIO), generates Morse elements")
	fmt.Println("  in iambic A, iambic B or ultimatic mode, keys a transmitter through a")
	fmt.Println("  GPIO pin or a serial control line, and decodes what it sends.")
	fmt.Println("  Decoded text is written to stdout; logs go to stderr.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (flags below override it)")
	fmt.Println()
	fmt.Println("  -mode string")
	fmt.Println("        Keyer mode: iambic-a|iambic-b|ultimatic (default \"iambic-a\")")
	fmt.Println()
	fmt.Println("  -wpm int")
	fmt.Printf("        Speed in words per minute, 0 = straight key (default %d)\n", defaultWPM)
	fmt.Println()
	fmt.Println("  -input string")
	fmt.Println("        Paddle source: evdev|gpio|none (default \"evdev\")")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device of the paddle adapter (default \"/dev/input/event0\")")
	fmt.Println()
	fmt.Println("  -output string")
	fmt.Println("        Key output: none|gpio|serial-dtr|serial-rts (default \"none\")")
	fmt.Println()
	fmt.Println("  -output-pin string")
	fmt.Println("        GPIO pin name for output=gpio (e.g. \"GPIO27\")")
	fmt.Println()
	fmt.Println("  -serial-device string")
	fmt.Println("        Serial device for output=serial-dtr|serial-rts (e.g. \"/dev/ttyUSB0\")")
	fmt.Println()
	fmt.Println("  -settings-file string")
	fmt.Println("        File that keeps mode and speed across restarts (empty disables)")
	fmt.Println()
	fmt.Println("  -display-stdout")
	fmt.Println("        Write decoded text to stdout (default true)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/cwkeyer.sock\")")
	fmt.Println()
	fmt.Println("  -http-addr string")
	fmt.Println("        HTTP listen address for /ws and /healthz, empty disables (default \":3002\")")
	fmt.Println()
	fmt.Println("  -clock string")
	fmt.Println("        Keyer millisecond source: system|tick (default \"system\")")
	fmt.Println()
	fmt.Println("  -status")
	fmt.Println("        Ask a running daemon for its state over IPC, print it and exit")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # USB paddle adapter, transmitter on the DTR line of a keying cable")
	fmt.Println("  cwkeyerd -input-device /dev/input/event3 -output serial-dtr -serial-device /dev/ttyUSB0")
	fmt.Println()
	fmt.Println("  # Raspberry Pi wiring from a config file")
	fmt.Println("  cwkeyerd -config /etc/cwkeyer.yaml")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the input device (run as root or add user to 'input' group)")
	fmt.Println("  - The key line is forced up on exit")
	fmt.Println()
}

// newKeyerClock returns the core's clock and, for the tick source, the
// loop that drives it.
func newKeyerClock(source string) (keyer.Clock, func(context.Context)) {
	if source == ClockTick {
		tc := &keyer.TickCounter{}
		return tc, tc.Run
	}
	return keyer.NewSystemClock(), nil
}

// printStatus queries a running daemon and prints its state as JSON.
func printStatus(w io.Writer, socketPath string) error {
	resp, err := SendIPCEvent(socketPath, RequestStateSnapshot{})
	if err != nil {
		return err
	}
	if resp.State == nil {
		return fmt.Errorf("daemon returned no state")
	}
	out, err := json.MarshalIndent(resp.State, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = flag.String("config", "", "YAML config file")
		mode          = flag.String("mode", "", "Keyer mode: iambic-a|iambic-b|ultimatic")
		wpm           = flag.Int("wpm", defaultWPM, "Speed in words per minute, 0 = straight key")
		inputSource   = flag.String("input", InputSourceEvdev, "Paddle source: evdev|gpio|none")
		inputDevice   = flag.String("input-device", "", "Linux input event device of the paddle adapter")
		outputType    = flag.String("output", OutputNone, "Key output: none|gpio|serial-dtr|serial-rts")
		outputPin     = flag.String("output-pin", "", "GPIO pin name for output=gpio")
		serialDevice  = flag.String("serial-device", "", "Serial device for output=serial-dtr|serial-rts")
		settingsFile  = flag.String("settings-file", "", "File that keeps mode and speed across restarts")
		displayStdout = flag.Bool("display-stdout", true, "Write decoded text to stdout")
		ipcSocketPath = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpAddr      = flag.String("http-addr", "", "HTTP listen address, empty disables")
		logLevelStr   = flag.String("log-level", "", "Log level: error, warn, info, debug")
		clockSource   = flag.String("clock", ClockSystem, "Keyer millisecond source: system|tick")
		showStatus    = flag.Bool("status", false, "Print the state of a running daemon and exit")
		showVersion   = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			o.Mode = mode
		case "wpm":
			o.WPM = wpm
		case "input":
			o.InputSource = inputSource
		case "input-device":
			o.InputDevice = inputDevice
		case "output":
			o.OutputType = outputType
		case "output-pin":
			o.OutputPin = outputPin
		case "serial-device":
			o.SerialDevice = serialDevice
		case "settings-file":
			o.SettingsFile = settingsFile
		case "display-stdout":
			o.DisplayStdout = displayStdout
		case "ipc-socket":
			o.IPCSocketPath = ipcSocketPath
		case "http-addr":
			o.HTTPAddr = httpAddr
		case "log-level":
			o.LogLevel = logLevelStr
		case "clock":
			o.Clock = clockSource
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if *showStatus {
		return printStatus(os.Stdout, ExpandPath(cfg.IPC.SocketPath))
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level) // checked by Validate
	logger := setupLogger(logLevel, os.Stderr)

	logger.Debug("starting cwkeyerd", "version", version)

	// Settings persistence
	var store *SettingsStore
	var saver settingsSaver
	if cfg.Settings.File != "" {
		store = NewSettingsStore(cfg.Settings.File)
		saver = store
	}
	settings, fromFile, err := startSettings(&cfg, store)
	if err != nil {
		logger.Warn("ignoring settings file", "file", cfg.Settings.File, "error", err)
	}

	line, err := openKeyLine(cfg.Output, logger)
	if err != nil {
		return fmt.Errorf("open key output: %w", err)
	}
	defer func() {
		if err := line.Close(); err != nil {
			logger.Warn("key output close failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan Event, 256)
	broadcasts := make(chan StateBroadcast, 256)

	var decoded io.Writer
	if cfg.Display.Stdout {
		decoded = os.Stdout
	}

	clock, runClock := newKeyerClock(cfg.Keyer.Clock)
	d := newDaemon(
		func(emit func(Event)) *keyerHost {
			return newKeyerHost(clock, line, settings, emit, logger)
		},
		saver,
		newDaemonState(settings, fromFile),
		daemonConfig{
			PollHz:     cfg.Keyer.PollHz,
			IdlePollHz: cfg.Keyer.IdlePollHz,
			Reducer:    cfg.ToReducerConfig(),
			Decoded:    decoded,
		},
		broadcasts,
		logger,
	)

	// IPC: bind synchronously so a bad socket path fails startup.
	ipcListener, err := listenIPC(ExpandPath(cfg.IPC.SocketPath))
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}

	var wg sync.WaitGroup
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.Error(name+" stopped", "error", err)
				stop()
			}
		}()
	}

	if runClock != nil {
		goRun("tick counter", func() error { runClock(ctx); return nil })
	}

	goRun("ipc server", func() error {
		return serveIPC(ctx, ipcListener, ExpandPath(cfg.IPC.SocketPath), events, logger)
	})

	ws := NewServer(logger, events, ServerConfig{})
	goRun("ws hub", func() error { ws.Hub().Run(ctx); return nil })
	goRun("ws broadcaster", func() error { RunBroadcaster(ctx, ws.Hub(), broadcasts, logger); return nil })
	if cfg.HTTP.Addr != "" {
		goRun("http server", func() error {
			return runHTTPServer(ctx, cfg.HTTP.Addr, newHTTPMux(ws, events, logger), logger)
		})
	}

	switch cfg.Input.Source {
	case InputSourceEvdev:
		goRun("evdev input", func() error { return runEvdevInputs(ctx, cfg.Input, events, logger) })
	case InputSourceGPIO:
		goRun("gpio input", func() error { return runGPIOInputs(ctx, cfg.Input.GPIO, events, logger) })
	case InputSourceNone:
		logger.Info("no paddle input; control through IPC only")
	}

	logger.Info("listening",
		"mode", settings.Mode.String(),
		"wpm", settings.WPM,
		"input", cfg.Input.Source,
		"output", cfg.Output.Type,
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Addr,
		"settings_file", cfg.Settings.File)

	// The daemon loop owns the key line; it returns with the key up.
	runDaemon(ctx, events, d)
	stop()

	logger.Info("shutting down")
	wg.Wait()
	return nil
}
