// Package sequencer merges independently linearized voices into one
// deterministic timeline and steps through it instant by instant.
package sequencer

import (
	"cmp"
	"slices"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

// Compare orders events by start, then track, voice and entry order. It is a
// total order for events of one compile.
func Compare(a, b score.Event) int {
	if c := a.Start.Cmp(b.Start); c != 0 {
		return c
	}
	return cmpKey(a.TrackIndex, a.VoiceIndex, a.Order, b.TrackIndex, b.VoiceIndex, b.Order)
}

func cmpKey(at, av, ao, bt, bv, bo int) int {
	if c := cmp.Compare(at, bt); c != 0 {
		return c
	}
	if c := cmp.Compare(av, bv); c != 0 {
		return c
	}
	return cmp.Compare(ao, bo)
}

type voiceCursor struct {
	events []score.Event
	index  int
}

func (vc *voiceCursor) peek() (score.Event, bool) {
	if vc.index >= len(vc.events) {
		return score.Event{}, false
	}
	return vc.events[vc.index], true
}

// Merge combines per-voice event lists. The result does not depend on the
// order of lists, only on the events' own keys.
func Merge(lists [][]score.Event) []score.Event {
	total := 0
	cursors := make([]voiceCursor, 0, len(lists))
	for _, l := range lists {
		if len(l) == 0 {
			continue
		}
		// A voice is normally already in start order; an overflowing measure
		// can push events past the next measure's nominal start.
		sorted := slices.Clone(l)
		slices.SortStableFunc(sorted, Compare)
		cursors = append(cursors, voiceCursor{events: sorted})
		total += len(l)
	}
	out := make([]score.Event, 0, total)
	for len(out) < total {
		best := -1
		var head score.Event
		for i := range cursors {
			ev, ok := cursors[i].peek()
			if !ok {
				continue
			}
			if best < 0 || Compare(ev, head) < 0 {
				best, head = i, ev
			}
		}
		out = append(out, head)
		cursors[best].index++
	}
	return out
}

// SortDiagnostics orders diagnostics by track, voice and entry order; the
// sort is stable so diagnostics raised at the same point keep their order.
func SortDiagnostics(ds []diag.Diagnostic) {
	slices.SortStableFunc(ds, func(a, b diag.Diagnostic) int {
		return cmpKey(a.TrackIndex, a.VoiceIndex, a.Order, b.TrackIndex, b.VoiceIndex, b.Order)
	})
}

// Sequencer walks a merged timeline one instant at a time.
type Sequencer struct {
	events []score.Event
	index  int
}

func New(events []score.Event) *Sequencer {
	return &Sequencer{events: events}
}

// Next returns the next start time and every event that starts at it.
func (s *Sequencer) Next() (rational.Rat, []score.Event, bool) {
	if s.index >= len(s.events) {
		return rational.Rat{}, nil, false
	}
	at := s.events[s.index].Start
	end := s.index + 1
	for end < len(s.events) && s.events[end].Start.Equal(at) {
		end++
	}
	batch := s.events[s.index:end]
	s.index = end
	return at, batch, true
}

func (s *Sequencer) Reset() { s.index = 0 }
