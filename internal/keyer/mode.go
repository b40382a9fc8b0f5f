package keyer

import (
	"fmt"
	"strings"
)

// Mode selects the keying algorithm used while the paddles are squeezed.
type Mode uint8

const (
	IambicA Mode = iota
	IambicB
	Ultimatic

	numModes
)

func (m Mode) String() string {
	switch m {
	case IambicA:
		return "iambic-a"
	case IambicB:
		return "iambic-b"
	case Ultimatic:
		return "ultimatic"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the defined keyer modes.
func (m Mode) Valid() bool { return m < numModes }

// Next returns the mode after m, wrapping back to IambicA.
// Used by the mode push button.
func (m Mode) Next() Mode {
	if !m.Valid() {
		return IambicA
	}
	return (m + 1) % numModes
}

// ParseMode converts a user-facing mode name into a Mode.
// Accepts "iambic-a", "iambic_a", "iambica", "a" and the same spellings for the others.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iambic-a", "iambic_a", "iambica", "a":
		return IambicA, nil
	case "iambic-b", "iambic_b", "iambicb", "b":
		return IambicB, nil
	case "ultimatic", "u":
		return Ultimatic, nil
	default:
		return IambicA, fmt.Errorf("invalid keyer mode: %q (must be iambic-a, iambic-b or ultimatic)", s)
	}
}

// Paddle identifies one of the two paddle contacts.
// PaddleNone is used when no paddle is being serviced.
type Paddle uint8

const (
	PaddleNone Paddle = iota
	PaddleDot
	PaddleDash
)

func (p Paddle) String() string {
	switch p {
	case PaddleDot:
		return "dot"
	case PaddleDash:
		return "dash"
	default:
		return "none"
	}
}

// Opposite returns the other paddle. PaddleNone has no opposite.
func (p Paddle) Opposite() Paddle {
	switch p {
	case PaddleDot:
		return PaddleDash
	case PaddleDash:
		return PaddleDot
	default:
		return PaddleNone
	}
}

// PriorityPaddle decides which paddle is looked at first when the keyer is
// idle and at least one paddle is pressed. The other paddle is the fallback.
//
//   - Iambic A/B alternate: the paddle opposite to the one currently
//     serviced goes first.
//   - Ultimatic favours the most recently added paddle: the one opposite to
//     the paddle that started the sequence goes first.
//
// With no current/first paddle the dot paddle goes first.
func PriorityPaddle(mode Mode, current, first Paddle) Paddle {
	switch mode {
	case IambicA, IambicB:
		if current == PaddleDot {
			return PaddleDash
		}
	default:
		if first == PaddleDot {
			return PaddleDash
		}
	}
	return PaddleDot
}

// State is the keyer state machine position.
type State uint8

const (
	StateIdle State = iota
	StateSendingDot
	StateSendingDash
	StateFirstGap  // first third of the inter-element gap
	StateSecondGap // rest of the gap; paddles are latched here
	StateTune      // continuous carrier until cancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSendingDot:
		return "sending_dot"
	case StateSendingDash:
		return "sending_dash"
	case StateFirstGap:
		return "first_gap"
	case StateSecondGap:
		return "second_gap"
	case StateTune:
		return "tune"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}
