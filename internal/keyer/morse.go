package keyer

// Element codes as they are packed into the symbol accumulator.
// Each element takes two bits, appended at the least significant end,
// so the first element keyed ends up in the most significant pair.
const (
	elementDot  uint32 = 0b01
	elementDash uint32 = 0b10

	// maxElements is how many element pairs fit in the 32 bit accumulator.
	maxElements = 16
)

// Fallback is the glyph produced for any element sequence that is not in the table.
const Fallback = "|"

// morseTable lists every glyph the decoder knows, as International Morse patterns.
// Prosigns are written as their two-letter lower case names.
var morseTable = []struct {
	pattern string
	glyph   string
}{
	{".-", "a"},
	{"-...", "b"},
	{"-.-.", "c"},
	{"-..", "d"},
	{".", "e"},
	{"..-.", "f"},
	{"--.", "g"},
	{"....", "h"},
	{"..", "i"},
	{".---", "j"},
	{"-.-", "k"},
	{".-..", "l"},
	{"--", "m"},
	{"-.", "n"},
	{"---", "o"},
	{".--.", "p"},
	{"--.-", "q"},
	{".-.", "r"},
	{"...", "s"},
	{"-", "t"},
	{"..-", "u"},
	{"...-", "v"},
	{".--", "w"},
	{"-..-", "x"},
	{"-.--", "y"},
	{"--..", "z"},

	{".----", "1"},
	{"..---", "2"},
	{"...--", "3"},
	{"....-", "4"},
	{".....", "5"},
	{"-....", "6"},
	{"--...", "7"},
	{"---..", "8"},
	{"----.", "9"},
	{"-----", "0"},

	{"..--..", "?"},
	{"-...-", "="},
	{".-.-.-", "."},
	{"--..--", ","},

	{".-.-.", "ar"},
	{"...-.-", "sk"},
	{"-.--.", "kn"},
}

var (
	codeToGlyph = make(map[uint32]string, len(morseTable))
	glyphToCode = make(map[string]uint32, len(morseTable))
)

func init() {
	for _, e := range morseTable {
		code, ok := PatternCode(e.pattern)
		if !ok {
			panic("keyer: bad morse table pattern " + e.pattern)
		}
		codeToGlyph[code] = e.glyph
		glyphToCode[e.glyph] = code
	}
}

// Decode returns the glyph for a packed element sequence.
// Unknown sequences, including the empty one, decode to Fallback.
func Decode(code uint32) string {
	if g, ok := codeToGlyph[code]; ok {
		return g
	}
	return Fallback
}

// Encode returns the packed element sequence for a glyph from the table.
func Encode(glyph string) (uint32, bool) {
	code, ok := glyphToCode[glyph]
	return code, ok
}

// PatternCode packs a dot/dash pattern such as ".-" into accumulator form.
// It reports false for empty patterns, characters other than '.' and '-',
// and patterns longer than the accumulator can hold.
func PatternCode(pattern string) (uint32, bool) {
	if len(pattern) == 0 || len(pattern) > maxElements {
		return 0, false
	}
	var code uint32
	for i := 0; i < len(pattern); i++ {
		code <<= 2
		switch pattern[i] {
		case '.':
			code |= elementDot
		case '-':
			code |= elementDash
		default:
			return 0, false
		}
	}
	return code, true
}

// CodePattern unpacks an accumulator value back into a dot/dash pattern.
// Pairs that are neither a dot nor a dash are rendered as '?'.
func CodePattern(code uint32) string {
	if code == 0 {
		return ""
	}
	n := 0
	for c := code; c != 0; c >>= 2 {
		n++
	}
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		switch code & 0b11 {
		case elementDot:
			buf[i] = '.'
		case elementDash:
			buf[i] = '-'
		default:
			buf[i] = '?'
		}
		code >>= 2
	}
	return string(buf)
}

// symbolAccumulator collects the elements of the character being keyed.
type symbolAccumulator struct {
	code     uint32
	count    uint8
	overflow bool
}

func (a *symbolAccumulator) push(element uint32) {
	if a.count >= maxElements {
		a.overflow = true
		return
	}
	a.code = a.code<<2 | element
	a.count++
}

// decode returns the glyph for the collected elements; an overflowed
// accumulator never matches.
func (a *symbolAccumulator) decode() string {
	if a.overflow {
		return Fallback
	}
	return Decode(a.code)
}

func (a *symbolAccumulator) reset() {
	*a = symbolAccumulator{}
}
