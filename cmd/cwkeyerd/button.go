package main

import "time"

// ButtonPhase is the debounce state of the push button.
type ButtonPhase uint8

const (
	ButtonIdle      ButtonPhase = iota
	ButtonDown                  // pressed, not yet debounced
	ButtonPressed               // debounced, waiting for release or long press
	ButtonReleased              // released, debouncing the release
	ButtonLongPress             // long press reported, waiting for release
)

// ButtonState is the reducer-owned push button state.
// Down is the raw contact level from the last ButtonChanged.
type ButtonState struct {
	Down  bool
	Phase ButtonPhase

	DebounceAt  time.Time
	LongPressAt time.Time
}

// stepButton advances the debounce state machine at time now.
// It is called on every raw edge and on every housekeeping tick.
//
// A short press is reported once the release has been stable for the debounce
// time. A long press is reported while the button is still held, and the
// release that follows reports nothing. With longPress == 0 every debounced
// press is reported as short as soon as it is confirmed.
func stepButton(b ButtonState, now time.Time, debounce, longPress time.Duration) (next ButtonState, short, long bool) {
	switch b.Phase {
	case ButtonIdle:
		if b.Down {
			b.DebounceAt = now.Add(debounce)
			b.Phase = ButtonDown
		}

	case ButtonDown:
		if !b.Down {
			b.Phase = ButtonIdle
		} else if now.After(b.DebounceAt) || debounce == 0 {
			if longPress > 0 {
				b.LongPressAt = now.Add(longPress)
			} else {
				short = true
			}
			b.Phase = ButtonPressed
		}

	case ButtonPressed:
		if !b.Down {
			if longPress == 0 {
				b.Phase = ButtonIdle
				break
			}
			b.DebounceAt = now.Add(debounce)
			// A bounce back to pressed must not inherit the old hold time.
			b.LongPressAt = now.Add(longPress)
			b.Phase = ButtonReleased
		} else if longPress > 0 && now.After(b.LongPressAt) {
			long = true
			b.Phase = ButtonLongPress
		}

	case ButtonReleased:
		if b.Down {
			// Contact bounce on release.
			b.Phase = ButtonPressed
		} else if now.After(b.DebounceAt) || debounce == 0 {
			short = true
			b.Phase = ButtonIdle
		}

	case ButtonLongPress:
		if !b.Down {
			b.Phase = ButtonIdle
		}
	}

	return b, short, long
}
