package main

import "time"

// RotaryReducerState tracks recent rotary turns for velocity detection.
// The reducer uses it to scale steps ("fast spin" multiplier) without
// depending on any external mutable state.
type RotaryReducerState struct {
	RecentSteps []RotaryReducerStep
}

// RotaryReducerStep is one observed rotary detent/step at a given time.
// Direction is -1 or +1.
type RotaryReducerStep struct {
	At        time.Time
	Direction int
}

// RotaryPolicy converts detents into speed changes.
type RotaryPolicy struct {
	WPMPerStep int

	// Fast spinning: VelocityThreshold or more same-direction steps within
	// VelocityWindow multiply the step by VelocityMultiplier.
	VelocityWindow     time.Duration
	VelocityThreshold  int
	VelocityMultiplier int
}

// addStep records a new encoder step at time at and returns the updated
// state together with the count of steps in the same direction within the
// velocity window (including this one).
//
// The returned state never shares its backing array with r.
func (r RotaryReducerState) addStep(at time.Time, direction int, window time.Duration) (RotaryReducerState, int) {
	cutoff := at.Add(-window)

	kept := make([]RotaryReducerStep, 0, len(r.RecentSteps)+1)
	for _, s := range r.RecentSteps {
		if s.At.After(cutoff) {
			kept = append(kept, s)
		}
	}
	kept = append(kept, RotaryReducerStep{At: at, Direction: direction})

	sameDir := 0
	for _, s := range kept {
		if s.Direction == direction {
			sameDir++
		}
	}

	return RotaryReducerState{RecentSteps: kept}, sameDir
}

// scaleRotary turns a raw RotaryTurn into a signed wpm delta.
func scaleRotary(r RotaryReducerState, at time.Time, steps int, p RotaryPolicy) (RotaryReducerState, int) {
	if steps == 0 {
		return r, 0
	}
	dir := 1
	if steps < 0 {
		dir = -1
	}

	next, count := r.addStep(at, dir, p.VelocityWindow)

	perStep := p.WPMPerStep
	if perStep <= 0 {
		perStep = 1
	}
	delta := steps * perStep
	if p.VelocityThreshold > 0 && p.VelocityMultiplier > 1 && count >= p.VelocityThreshold {
		delta *= p.VelocityMultiplier
	}
	return next, delta
}

// stepWPM applies a wpm delta within [min, max].
//
// Turning down past min selects 0 (straight key), but only from min itself so
// a fast spin stops at min first. Turning up from 0 selects min.
func stepWPM(cur uint8, delta int, min, max uint8) uint8 {
	if delta == 0 {
		return cur
	}
	if cur == 0 {
		if delta > 0 {
			return min
		}
		return 0
	}

	next := int(cur) + delta
	switch {
	case next < int(min):
		if cur > min {
			return min
		}
		return 0
	case next > int(max):
		return max
	}
	return uint8(next)
}

// clampWPM forces an absolute request into range; 0 is always allowed.
func clampWPM(wpm int, min, max uint8) uint8 {
	switch {
	case wpm <= 0:
		return 0
	case wpm < int(min):
		return min
	case wpm > int(max):
		return max
	}
	return uint8(wpm)
}

// quadDirection classifies a 4-bit transition: previous BA in the top two
// bits, current BA in the bottom two. 0 marks an impossible transition.
var quadDirection = [16]int8{
	0, 1, -1, 0,
	-1, 0, 0, 1,
	1, 0, 0, -1,
	0, -1, 1, 0,
}

const (
	// Two valid transitions that end a detent: 00→01 then 01→11 clockwise,
	// 00→10 then 10→11 counter-clockwise.
	quadDetentCW  = 0x17
	quadDetentCCW = 0x2b
)

// QuadState is the decoder memory of a two-phase encoder.
type QuadState struct {
	Transition uint8 // last 4-bit transition; low bits are the current BA
	History    uint8 // the last two valid transitions
}

func quadBits(a, b bool) uint8 {
	var v uint8
	if a {
		v |= 1
	}
	if b {
		v |= 2
	}
	return v
}

// newQuadState starts the decoder at the current pin levels.
func newQuadState(a, b bool) QuadState {
	return QuadState{Transition: quadBits(a, b)}
}

// decodeQuadrature feeds one sample of the A and B lines to the decoder and
// returns +1 for a clockwise detent, -1 for a counter-clockwise one, else 0.
// Unchanged samples and invalid transitions are ignored, so contact bounce
// on one line cannot produce a detent on its own.
func decodeQuadrature(prev QuadState, a, b bool) (QuadState, int) {
	cur := quadBits(a, b)
	if cur == prev.Transition&3 {
		return prev, 0
	}

	next := prev
	next.Transition = (prev.Transition&3)<<2 | cur
	if quadDirection[next.Transition] == 0 {
		return next, 0
	}

	next.History = next.History<<4 | next.Transition
	switch next.History {
	case quadDetentCW:
		return next, 1
	case quadDetentCCW:
		return next, -1
	}
	return next, 0
}
