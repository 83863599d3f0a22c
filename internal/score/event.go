package score

import (
	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
)

type EventKind int

const (
	EventNote EventKind = iota + 1
	EventRest
)

func (k EventKind) String() string {
	switch k {
	case EventNote:
		return "note"
	case EventRest:
		return "rest"
	}
	return "unknown"
}

// Event is one resolved entry on the absolute timeline. Start and Duration
// are measured in whole notes from the beginning of the composition.
type Event struct {
	Kind     EventKind
	Track    string
	Voice    string
	Start    rational.Rat
	Duration rational.Rat
	// Pitch is the written pitch; Key the written key number. For tablature
	// notes Pitch is spelled from Key and Tab holds the position.
	Pitch         Pitch
	Key           int
	Tab           *TabPosition
	Articulations []string
	// Chord is non-zero for members of the same chord; members share it.
	Chord       int
	TupletDepth int
	Measure     int
	Loc         Location

	TrackIndex int
	VoiceIndex int
	// Order is the emission index within the voice.
	Order int
}

// End returns Start+Duration.
func (e Event) End() (rational.Rat, error) { return e.Start.Add(e.Duration) }

// HasArticulation reports whether tag is set on the event.
func (e Event) HasArticulation(tag string) bool {
	for _, a := range e.Articulations {
		if a == tag {
			return true
		}
	}
	return false
}

// TrackInfo is the resolved physics of one track.
type TrackInfo struct {
	ID        string
	Name      string
	Index     int
	Low       int
	High      int
	Transpose int
	Patch     int
	Channel   int
	Tuning    []int
	Voices    []string
}

// MeasureInfo places one measure on the timeline.
type MeasureInfo struct {
	Number int
	Start  rational.Rat
	Span   rational.Rat
	Meter  Meter
	Tempo  int
}

// Timeline is the compiler's output: ordered events plus diagnostics.
type Timeline struct {
	Meta        Meta
	Tracks      []TrackInfo
	Measures    []MeasureInfo
	Events      []Event
	Diagnostics []diag.Diagnostic
	// End is the nominal end of the last measure.
	End rational.Rat
}

// HasErrors reports whether any voice was aborted.
func (t *Timeline) HasErrors() bool { return diag.HasErrors(t.Diagnostics) }

// Track looks up a track by id.
func (t *Timeline) Track(id string) (TrackInfo, bool) {
	for _, tr := range t.Tracks {
		if tr.ID == id {
			return tr, true
		}
	}
	return TrackInfo{}, false
}

// VoiceEvents returns the events of one voice in emission order.
func (t *Timeline) VoiceEvents(track, voice string) []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Track == track && e.Voice == voice {
			out = append(out, e)
		}
	}
	return out
}
