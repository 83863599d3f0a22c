// Package diag defines the compiler's error taxonomy and the diagnostics that
// are collected instead of aborting a compile.
//
// Structural problems surface as *Error values wrapping one sentinel per
// Kind, so callers can test with errors.Is. Timing, range and quantization
// problems are recorded as Diagnostic values with warning severity.
package diag

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cbegin/tenuto-go/internal/rational"
)

// Kind names one entry of the error taxonomy.
type Kind string

const (
	KindRationalOverflow         Kind = "RationalOverflow"
	KindDivisionByZero           Kind = "DivisionByZero"
	KindInvalidDuration          Kind = "InvalidDuration"
	KindMissingInitialState      Kind = "MissingInitialState"
	KindInvalidTupletRatio       Kind = "InvalidTupletRatio"
	KindTupletNestingTooDeep     Kind = "TupletNestingTooDeep"
	KindTupletSpanMismatch       Kind = "TupletSpanMismatch"
	KindMeasureUnderflow         Kind = "MeasureUnderflow"
	KindMeasureOverflow          Kind = "MeasureOverflow"
	KindRangeViolation           Kind = "RangeViolation"
	KindNonRepresentableDuration Kind = "NonRepresentableDuration"
	KindUndefinedInstrument      Kind = "UndefinedInstrument"
	KindInvalidScore             Kind = "InvalidScore"
	KindInternal                 Kind = "Internal"
)

var (
	ErrInvalidDuration          = errors.New("invalid duration")
	ErrMissingInitialState      = errors.New("missing initial state")
	ErrInvalidTupletRatio       = errors.New("invalid tuplet ratio")
	ErrTupletNestingTooDeep     = errors.New("tuplet nesting too deep")
	ErrNonRepresentableDuration = errors.New("non-representable duration")
	ErrUndefinedInstrument      = errors.New("undefined instrument")
	ErrInvalidScore             = errors.New("invalid score")
)

var sentinels = map[Kind]error{
	KindRationalOverflow:         rational.ErrOverflow,
	KindDivisionByZero:           rational.ErrDivisionByZero,
	KindInvalidDuration:          ErrInvalidDuration,
	KindMissingInitialState:      ErrMissingInitialState,
	KindInvalidTupletRatio:       ErrInvalidTupletRatio,
	KindTupletNestingTooDeep:     ErrTupletNestingTooDeep,
	KindNonRepresentableDuration: ErrNonRepresentableDuration,
	KindUndefinedInstrument:      ErrUndefinedInstrument,
	KindInvalidScore:             ErrInvalidScore,
}

// Severity orders how much a diagnostic matters to the caller.
type Severity int

const (
	SeverityWarning Severity = iota + 1
	// SeverityError marks a voice whose resolution was aborted.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// Location points back into the source the AST was parsed from.
type Location struct {
	Line   int
	Column int
}

func (l Location) IsZero() bool { return l.Line == 0 && l.Column == 0 }

func (l Location) String() string {
	if l.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Error is a structural failure of one kind.
type Error struct {
	Kind Kind
	Msg  string
	Loc  Location
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := string(e.Kind)
	if !e.Loc.IsZero() {
		prefix = e.Loc.String() + ": " + prefix
	}
	if e.Msg == "" {
		return prefix
	}
	return prefix + ": " + e.Msg
}

func (e *Error) Unwrap() error { return sentinels[e.Kind] }

// Errorf builds an *Error with a stack attached.
func Errorf(kind Kind, loc Location, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Loc: loc})
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// LocationOf returns the source location carried by err, if any.
func LocationOf(err error) Location {
	var de *Error
	if errors.As(err, &de) {
		return de.Loc
	}
	return Location{}
}

// Diagnostic is one recorded problem. Track/Voice/Order use the same ordinals
// as events so diagnostics sort deterministically alongside them.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Track    string
	Voice    string
	Measure  int
	Loc      Location
	Message  string

	// Discrepancy is the signed difference between what a measure holds and
	// its declared span (MeasureUnderflow/Overflow, TupletSpanMismatch).
	Discrepancy *rational.Rat
	// Margin is the signed number of semitones outside an instrument range.
	Margin int
	// EventIndex references the offending event in the timeline, or -1.
	EventIndex int

	TrackIndex int
	VoiceIndex int
	Order      int
}

func (d Diagnostic) String() string {
	where := d.Track
	if d.Voice != "" {
		where += "/" + d.Voice
	}
	s := fmt.Sprintf("%s %s [%s", d.Severity, d.Kind, where)
	if d.Measure > 0 {
		s += fmt.Sprintf(" m%d", d.Measure)
	}
	s += " @" + d.Loc.String() + "]"
	if d.Message != "" {
		s += ": " + d.Message
	}
	return s
}

// FromError turns a voice-aborting error into an error-severity diagnostic.
func FromError(err error) Diagnostic {
	return Diagnostic{
		Kind:       KindOf(err),
		Severity:   SeverityError,
		Loc:        LocationOf(err),
		Message:    err.Error(),
		EventIndex: -1,
	}
}

// Collector accumulates diagnostics for one task. It is not safe for
// concurrent use; give each task its own and concatenate after the barrier.
type Collector struct {
	items []Diagnostic
}

func (c *Collector) Add(d Diagnostic) { c.items = append(c.items, d) }

func (c *Collector) Items() []Diagnostic { return c.items }

func (c *Collector) Len() int { return len(c.items) }

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// Count returns how many diagnostics have the given kind.
func Count(ds []Diagnostic, kind Kind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
