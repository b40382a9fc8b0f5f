package main

import (
	"encoding/json"
	"fmt"

	"cwkeyer/internal/keyer"
)

// ============================================================================
// Input Events
// ============================================================================
// Payload events represent intent from the input sources (paddles, rotary,
// push button, IPC). The daemon stamps them with TimedEvent before reducing.
// ============================================================================

// PaddleChanged is a debounced edge on one paddle contact.
type PaddleChanged struct {
	Paddle  keyer.Paddle `json:"paddle"`
	Pressed bool         `json:"pressed"`
}

func (PaddleChanged) eventMarker() {}

// SetPaddles sets both virtual paddle contacts at once (IPC / test harness).
type SetPaddles struct {
	Dot  bool `json:"dot"`
	Dash bool `json:"dash"`
}

func (SetPaddles) eventMarker() {}

// RotaryTurn represents a raw rotary encoder movement (detents/steps).
// The reducer owns policy for converting this into speed changes (including velocity scaling).
type RotaryTurn struct {
	Steps int `json:"steps"` // positive=faster, negative=slower
}

func (RotaryTurn) eventMarker() {}

// ButtonChanged is a raw edge of the rotary push button.
// The reducer debounces it and decides between short and long presses.
type ButtonChanged struct {
	Pressed bool `json:"pressed"`
}

func (ButtonChanged) eventMarker() {}

// SetKeyerMode selects a keyer mode by name ("iambic-a", "iambic-b", "ultimatic").
type SetKeyerMode struct {
	Mode string `json:"mode"`
}

func (SetKeyerMode) eventMarker() {}

// CycleKeyerMode moves to the next keyer mode.
type CycleKeyerMode struct{}

func (CycleKeyerMode) eventMarker() {}

// SetWPM sets an absolute speed. 0 selects the straight key.
type SetWPM struct {
	WPM int `json:"wpm"`
}

func (SetWPM) eventMarker() {}

// AdjustWPM changes the speed by whole steps without velocity scaling.
type AdjustWPM struct {
	Steps int `json:"steps"`
}

func (AdjustWPM) eventMarker() {}

// SetTune enters or leaves tune (continuous carrier).
type SetTune struct {
	On bool `json:"on"`
}

func (SetTune) eventMarker() {}

// ToggleTune flips tune mode.
type ToggleTune struct{}

func (ToggleTune) eventMarker() {}

// RequestStateSnapshot asks the daemon loop for a coherent state snapshot.
// The reply is delivered by the effects layer, never by the reducer.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot `json:"-"`
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// Only events that make sense from outside the daemon are accepted.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "set_paddles":
		var a SetPaddles
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetPaddles: %w", err)
		}
		return a, nil

	case "rotary_turn":
		var a RotaryTurn
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal RotaryTurn: %w", err)
		}
		return a, nil

	case "set_keyer_mode":
		var a SetKeyerMode
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetKeyerMode: %w", err)
		}
		if _, err := keyer.ParseMode(a.Mode); err != nil {
			return nil, err
		}
		return a, nil

	case "cycle_keyer_mode":
		return CycleKeyerMode{}, nil

	case "set_wpm":
		var a SetWPM
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetWPM: %w", err)
		}
		if a.WPM < 0 || a.WPM > 255 {
			return nil, fmt.Errorf("wpm out of range: %d", a.WPM)
		}
		return a, nil

	case "adjust_wpm":
		var a AdjustWPM
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal AdjustWPM: %w", err)
		}
		return a, nil

	case "set_tune":
		var a SetTune
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetTune: %w", err)
		}
		return a, nil

	case "toggle_tune":
		return ToggleTune{}, nil

	case "get_state":
		// The IPC layer attaches the reply channel.
		return RequestStateSnapshot{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// unmarshalData rejects a missing payload for events that need one.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(data, v)
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case SetPaddles:
		env.Type = "set_paddles"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetPaddles: %w", err)
		}
		env.Data = data

	case RotaryTurn:
		env.Type = "rotary_turn"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal RotaryTurn: %w", err)
		}
		env.Data = data

	case SetKeyerMode:
		env.Type = "set_keyer_mode"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetKeyerMode: %w", err)
		}
		env.Data = data

	case CycleKeyerMode:
		env.Type = "cycle_keyer_mode"

	case SetWPM:
		env.Type = "set_wpm"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetWPM: %w", err)
		}
		env.Data = data

	case AdjustWPM:
		env.Type = "adjust_wpm"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal AdjustWPM: %w", err)
		}
		env.Data = data

	case SetTune:
		env.Type = "set_tune"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetTune: %w", err)
		}
		env.Data = data

	case ToggleTune:
		env.Type = "toggle_tune"

	case RequestStateSnapshot:
		env.Type = "get_state"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
