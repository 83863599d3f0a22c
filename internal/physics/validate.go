package physics

import (
	"fmt"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/score"
)

// SoundingKey applies the track's transposition to a written key.
func SoundingKey(tr score.TrackInfo, written int) int {
	return written + tr.Transpose
}

// Margin returns how many semitones key lies outside [low, high]: positive
// above the range, negative below, zero inside.
func Margin(key, low, high int) int {
	switch {
	case key > high:
		return key - high
	case key < low:
		return key - low
	}
	return 0
}

// Validate checks every note of a merged timeline against its track's range.
// It never drops events; each violation is one warning that references the
// event by its timeline index.
func Validate(events []score.Event, tracks []score.TrackInfo) []diag.Diagnostic {
	byID := make(map[string]score.TrackInfo, len(tracks))
	for _, tr := range tracks {
		byID[tr.ID] = tr
	}
	var out diag.Collector
	for i, ev := range events {
		if ev.Kind != score.EventNote {
			continue
		}
		tr, ok := byID[ev.Track]
		if !ok {
			continue
		}
		sounding := SoundingKey(tr, ev.Key)
		m := Margin(sounding, tr.Low, tr.High)
		if m == 0 {
			continue
		}
		out.Add(diag.Diagnostic{
			Kind:       diag.KindRangeViolation,
			Severity:   diag.SeverityWarning,
			Track:      ev.Track,
			Voice:      ev.Voice,
			Measure:    ev.Measure,
			Loc:        ev.Loc,
			Message:    rangeMessage(tr, ev, sounding, m),
			Margin:     m,
			EventIndex: i,
			TrackIndex: ev.TrackIndex,
			VoiceIndex: ev.VoiceIndex,
			Order:      ev.Order,
		})
	}
	return out.Items()
}

func rangeMessage(tr score.TrackInfo, ev score.Event, sounding, margin int) string {
	dir := "above"
	bound := score.PitchForKey(tr.High)
	n := margin
	if margin < 0 {
		dir, bound, n = "below", score.PitchForKey(tr.Low), -margin
	}
	return fmt.Sprintf("%s sounds %s, %d semitone(s) %s %s range limit %s",
		ev.Pitch, score.PitchForKey(sounding), n, dir, tr.ID, bound)
}
