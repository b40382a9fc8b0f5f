package keyer

import "testing"

func TestMorseTable_RoundTrip(t *testing.T) {
	if len(morseTable) != 26+10+4+3 {
		t.Fatalf("table has %d entries, want 43", len(morseTable))
	}
	for _, e := range morseTable {
		code, ok := PatternCode(e.pattern)
		if !ok {
			t.Fatalf("PatternCode(%q) failed", e.pattern)
		}
		if got := Decode(code); got != e.glyph {
			t.Errorf("Decode(%q) = %q, want %q", e.pattern, got, e.glyph)
		}
		enc, ok := Encode(e.glyph)
		if !ok {
			t.Fatalf("Encode(%q) failed", e.glyph)
		}
		if got := CodePattern(enc); got != e.pattern {
			t.Errorf("CodePattern(Encode(%q)) = %q, want %q", e.glyph, got, e.pattern)
		}
	}
}

func TestMorseTable_PackingMatchesAccumulator(t *testing.T) {
	// b = -... packs as 10 01 01 01
	code, ok := PatternCode("-...")
	if !ok || code != 0b10010101 {
		t.Fatalf("PatternCode(-...) = %b, %v", code, ok)
	}

	var acc symbolAccumulator
	acc.push(elementDash)
	acc.push(elementDot)
	acc.push(elementDot)
	acc.push(elementDot)
	if got := acc.decode(); got != "b" {
		t.Fatalf("accumulated -... decodes to %q, want b", got)
	}
}

func TestDecode_Fallback(t *testing.T) {
	for _, pattern := range []string{"..--", "...---...", ".-.-", "--..-", "----"} {
		code, ok := PatternCode(pattern)
		if !ok {
			t.Fatalf("PatternCode(%q) failed", pattern)
		}
		if got := Decode(code); got != Fallback {
			t.Errorf("Decode(%q) = %q, want fallback", pattern, got)
		}
	}
	if got := Decode(0); got != Fallback {
		t.Errorf("Decode(0) = %q, want fallback", got)
	}
	// Pairs that are neither dot nor dash never match.
	if got := Decode(0b11); got != Fallback {
		t.Errorf("Decode(0b11) = %q, want fallback", got)
	}
}

func TestProsigns(t *testing.T) {
	for pattern, want := range map[string]string{
		".-.-.":  "ar",
		"...-.-": "sk",
		"-.--.":  "kn",
	} {
		code, _ := PatternCode(pattern)
		if got := Decode(code); got != want {
			t.Errorf("Decode(%q) = %q, want %q", pattern, got, want)
		}
	}
}

func TestPatternCode_Rejects(t *testing.T) {
	for _, pattern := range []string{"", ".x-", "................."} {
		if _, ok := PatternCode(pattern); ok {
			t.Errorf("PatternCode(%q) should fail", pattern)
		}
	}
	if _, ok := Encode("ä"); ok {
		t.Error("Encode of unknown glyph should fail")
	}
}

func TestAccumulator_OverflowDecodesToFallback(t *testing.T) {
	var acc symbolAccumulator
	for i := 0; i < maxElements; i++ {
		acc.push(elementDot)
	}
	if acc.overflow {
		t.Fatal("accumulator overflowed at capacity")
	}
	if got := acc.decode(); got != Fallback {
		t.Fatalf("16 dots decode to %q, want fallback", got)
	}

	acc.push(elementDash)
	if !acc.overflow {
		t.Fatal("expected overflow after 17 elements")
	}
	if got := acc.decode(); got != Fallback {
		t.Fatalf("overflowed accumulator decodes to %q, want fallback", got)
	}

	acc.reset()
	acc.push(elementDot)
	if got := acc.decode(); got != "e" {
		t.Fatalf("after reset decode = %q, want e", got)
	}
}
