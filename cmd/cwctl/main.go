package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// cwctl - Command-line IPC Client
// ============================================================================
// Sends control events to cwkeyerd over its Unix socket.
//
// Usage:
//   cwctl mode iambic-b
//   cwctl wpm 22
//   cwctl faster 2
//   cwctl tune toggle
//   cwctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/cwkeyer.sock)
// ============================================================================

// Event types (duplicated from cwkeyerd for a standalone binary)
type Event interface{}

type SetPaddles struct {
	Dot  bool `json:"dot"`
	Dash bool `json:"dash"`
}

type SetKeyerMode struct {
	Mode string `json:"mode"`
}

type CycleKeyerMode struct{}

type SetWPM struct {
	WPM int `json:"wpm"`
}

type AdjustWPM struct {
	Steps int `json:"steps"`
}

type SetTune struct {
	On bool `json:"on"`
}

type ToggleTune struct{}

type GetState struct{}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StateView mirrors the daemon's state reply.
type StateView struct {
	Mode    string `json:"mode"`
	WPM     int    `json:"wpm"`
	UnitMS  int    `json:"unit_ms"`
	KeyDown bool   `json:"key_down"`
	State   string `json:"state"`
	Tune    bool   `json:"tune"`
	Line    string `json:"line"`
	Glyphs  uint64 `json:"glyphs"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	State  *StateView `json:"state,omitempty"`
}

const ioTimeout = 3 * time.Second

func main() {
	socketPath := "/tmp/cwkeyer.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	ev, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	resp, err := sendEvent(socketPath, ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if resp.State != nil {
		printState(*resp.State)
		return
	}
	fmt.Println("ok")
}

func parseCommand(args []string) (Event, error) {
	switch args[0] {
	case "mode":
		if len(args) < 2 {
			return nil, fmt.Errorf("mode requires a name (iambic-a, iambic-b, ultimatic)")
		}
		return SetKeyerMode{Mode: args[1]}, nil

	case "cycle", "next-mode":
		return CycleKeyerMode{}, nil

	case "wpm", "speed":
		if len(args) < 2 {
			return nil, fmt.Errorf("wpm requires a value (0 selects the straight key)")
		}
		wpm, err := strconv.Atoi(args[1])
		if err != nil || wpm < 0 || wpm > 255 {
			return nil, fmt.Errorf("invalid wpm value: %q", args[1])
		}
		return SetWPM{WPM: wpm}, nil

	case "faster", "slower":
		steps := 1
		if len(args) >= 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid step count: %q", args[1])
			}
			steps = n
		}
		if args[0] == "slower" {
			steps = -steps
		}
		return AdjustWPM{Steps: steps}, nil

	case "tune":
		if len(args) < 2 {
			return ToggleTune{}, nil
		}
		switch args[1] {
		case "on":
			return SetTune{On: true}, nil
		case "off":
			return SetTune{On: false}, nil
		case "toggle":
			return ToggleTune{}, nil
		default:
			return nil, fmt.Errorf("tune takes on, off or toggle, got %q", args[1])
		}

	case "paddles":
		// Remote paddle state, mostly for bench testing without hardware.
		var p SetPaddles
		for _, a := range args[1:] {
			switch a {
			case "dot":
				p.Dot = true
			case "dash":
				p.Dash = true
			case "none":
			default:
				return nil, fmt.Errorf("unknown paddle: %q", a)
			}
		}
		return p, nil

	case "status", "state":
		return GetState{}, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func sendEvent(socketPath string, ev Event) (IPCResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, ioTimeout)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	data, err := marshalEvent(ev)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return IPCResponse{}, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func marshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	withData := func(typ string, v any) error {
		env.Type = typ
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = data
		return nil
	}

	var err error
	switch e := ev.(type) {
	case SetPaddles:
		err = withData("set_paddles", e)
	case SetKeyerMode:
		err = withData("set_keyer_mode", e)
	case CycleKeyerMode:
		env.Type = "cycle_keyer_mode"
	case SetWPM:
		err = withData("set_wpm", e)
	case AdjustWPM:
		err = withData("adjust_wpm", e)
	case SetTune:
		err = withData("set_tune", e)
	case ToggleTune:
		env.Type = "toggle_tune"
	case GetState:
		env.Type = "get_state"
	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}

func printState(s StateView) {
	speed := fmt.Sprintf("%d wpm (unit %d ms)", s.WPM, s.UnitMS)
	if s.WPM == 0 {
		speed = "straight key"
	}
	fmt.Printf("mode:   %s\n", s.Mode)
	fmt.Printf("speed:  %s\n", speed)
	fmt.Printf("state:  %s\n", s.State)
	fmt.Printf("key:    %s\n", onOff(s.KeyDown, "down", "up"))
	fmt.Printf("tune:   %s\n", onOff(s.Tune, "on", "off"))
	fmt.Printf("glyphs: %d\n", s.Glyphs)
	fmt.Printf("line:   %q\n", s.Line)
}

func onOff(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cwctl - Control the cwkeyerd daemon via IPC

Usage:
  cwctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/cwkeyer.sock)

Commands:
  mode <name>             Select iambic-a, iambic-b or ultimatic
  cycle, next-mode        Move to the next keyer mode
  wpm, speed <n>          Set speed in words per minute (0 = straight key)
  faster [n]              Raise speed by n steps (default 1)
  slower [n]              Lower speed by n steps (default 1)
  tune [on|off|toggle]    Hold the key down for tuning (default toggle)
  paddles [dot] [dash]    Set remote paddle contacts (no args releases both)
  status, state           Print the current keyer state
  help, -h, --help        Show this help message

Examples:
  cwctl mode iambic-b
  cwctl wpm 25
  cwctl -socket /run/cwkeyer.sock status
`)
}
