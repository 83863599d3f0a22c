package score

import (
	"fmt"
	"strconv"
	"strings"
)

var letterOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// Pitch is a resolved pitch in scientific notation (c4 = middle C = key 60).
type Pitch struct {
	Letter     byte
	Accidental int
	Octave     int
}

// ValidLetter reports whether b names a pitch class.
func ValidLetter(b byte) bool {
	_, ok := letterOffsets[b]
	return ok
}

// Key returns the MIDI key number.
func (p Pitch) Key() int {
	return (p.Octave+1)*12 + letterOffsets[p.Letter] + p.Accidental
}

func (p Pitch) String() string {
	return string(p.Letter) + AccidentalString(p.Accidental) + strconv.Itoa(p.Octave)
}

// AccidentalString renders an accidental the way Tenuto writes it.
func AccidentalString(acc int) string {
	switch acc {
	case 1:
		return "#"
	case 2:
		return "x"
	case -1:
		return "b"
	case -2:
		return "bb"
	}
	return ""
}

// ParseAccidental reads "#", "x", "##", "b", "bb" or "".
func ParseAccidental(s string) (int, error) {
	switch s {
	case "":
		return 0, nil
	case "#":
		return 1, nil
	case "x", "##":
		return 2, nil
	case "b":
		return -1, nil
	case "bb":
		return -2, nil
	}
	return 0, fmt.Errorf("unknown accidental %q", s)
}

// ParsePitch reads a full pitch such as "c#4", "bb3" or "e-1".
func ParsePitch(s string) (Pitch, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || !ValidLetter(s[0]) {
		return Pitch{}, fmt.Errorf("invalid pitch %q", s)
	}
	i := 1
	for i < len(s) && (s[i] == '#' || s[i] == 'b' || s[i] == 'x') {
		i++
	}
	acc, err := ParseAccidental(s[1:i])
	if err != nil {
		return Pitch{}, fmt.Errorf("invalid pitch %q: %w", s, err)
	}
	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return Pitch{}, fmt.Errorf("invalid pitch %q: missing octave", s)
	}
	return Pitch{Letter: s[0], Accidental: acc, Octave: oct}, nil
}

// PitchForKey spells a MIDI key with sharps.
func PitchForKey(key int) Pitch {
	names := [12]struct {
		l byte
		a int
	}{{'c', 0}, {'c', 1}, {'d', 0}, {'d', 1}, {'e', 0}, {'f', 0}, {'f', 1}, {'g', 0}, {'g', 1}, {'a', 0}, {'a', 1}, {'b', 0}}
	oct := key/12 - 1
	pc := key % 12
	if pc < 0 {
		pc += 12
		oct--
	}
	n := names[pc]
	return Pitch{Letter: n.l, Accidental: n.a, Octave: oct}
}
