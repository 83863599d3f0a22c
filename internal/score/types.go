package score

import (
	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
)

type Location = diag.Location

// Meter is a time signature. Its span is Num/Den whole notes.
type Meter struct {
	Num int
	Den int
}

func (m Meter) Span() (rational.Rat, error) {
	return rational.New(int64(m.Num), int64(m.Den))
}

func (m Meter) IsZero() bool { return m.Num == 0 && m.Den == 0 }

// Score is the AST handed over by the external parser.
type Score struct {
	Meta        Meta
	Instruments []InstrumentDef
	Measures    []Measure
}

type Meta struct {
	Title    string
	Composer string
	// Tempo in quarter notes per minute; 0 leaves it to the backend.
	Tempo int
	Extra map[string]string
}

// InstrumentDef declares the physics of one track. Zero fields are filled
// from the catalog preset when one is named.
type InstrumentDef struct {
	ID        string
	Name      string
	Preset    string
	Low       *Pitch
	High      *Pitch
	Transpose *int
	Patch     *int
	Channel   *int
	Tuning    []Pitch
	Loc       Location
}

type Measure struct {
	Number int
	// Meter is nil when the previous meter carries over.
	Meter  *Meter
	Tempo  int
	Voices []VoiceEntries
	Loc    Location
}

// VoiceEntries is one voice's ordered entry stream within one measure.
type VoiceEntries struct {
	Track   string
	Voice   string
	Entries []Entry
	Loc     Location
}

// Entry is one of *NoteEntry, *RestEntry, *ChordEntry or *TupletEntry.
type Entry interface {
	Location() Location
	entry()
}

// DurationToken is a symbolic note value such as "4", "8." or "3/8".
// The empty token means "inherit".
type DurationToken string

// NoteEntry is a single pitched or fretted note. Nil fields inherit from the
// voice's sticky state.
type NoteEntry struct {
	Letter     byte // 'a'..'g'; ignored when Tab is set
	Accidental int  // semitone offset: -2..2
	Octave     *int
	Tab        *TabPosition
	Duration   DurationToken
	// Articulations nil inherits; an empty non-nil slice clears.
	Articulations []string
	Loc           Location
}

type RestEntry struct {
	Duration DurationToken
	Loc      Location
}

// ChordEntry sounds several notes at once with one shared duration.
type ChordEntry struct {
	Notes         []NoteEntry
	Duration      DurationToken
	Articulations []string
	Loc           Location
}

// TupletEntry is a bracketed group "Actual in the time of Normal".
type TupletEntry struct {
	Actual  int64
	Normal  int64
	Entries []Entry
	// Span optionally declares the outer span the group must fill.
	Span DurationToken
	Loc  Location
}

func (e *NoteEntry) Location() Location   { return e.Loc }
func (e *RestEntry) Location() Location   { return e.Loc }
func (e *ChordEntry) Location() Location  { return e.Loc }
func (e *TupletEntry) Location() Location { return e.Loc }

func (*NoteEntry) entry()   {}
func (*RestEntry) entry()   {}
func (*ChordEntry) entry()  {}
func (*TupletEntry) entry() {}

// TabPosition addresses a string (1 = highest) and fret on a fretted
// instrument.
type TabPosition struct {
	String int
	Fret   int
}
