package tenuto

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

func oct(n int) *int { return &n }

func n(letter byte, octave *int, dur string) *score.NoteEntry {
	return &score.NoteEntry{Letter: letter, Octave: octave, Duration: score.DurationToken(dur)}
}

func voice(track, name string, entries ...score.Entry) score.VoiceEntries {
	return score.VoiceEntries{Track: track, Voice: name, Entries: entries}
}

func bar(num int, voices ...score.VoiceEntries) score.Measure {
	return score.Measure{Number: num, Voices: voices}
}

func starts(events []score.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Start.String()
	}
	return out
}

func TestCompileStickyQuarterNotes(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "pno", Preset: "piano"}},
		Measures: []score.Measure{
			bar(1, voice("pno", "1", n('c', oct(4), "4"), n('d', nil, ""), n('e', nil, ""), n('f', nil, ""))),
		},
	}
	tl, err := Compile(s)
	require.NoError(t, err)
	assert.Empty(t, tl.Diagnostics)
	assert.Equal(t, []string{"0", "1/4", "1/2", "3/4"}, starts(tl.Events))
	var keys []int
	for _, e := range tl.Events {
		keys = append(keys, e.Key)
		assert.Equal(t, "1/4", e.Duration.String())
	}
	assert.Equal(t, []int{60, 62, 64, 65}, keys)
	assert.Equal(t, "1", tl.End.String())
	assert.Equal(t, []string{"1"}, tl.Tracks[0].Voices)
}

func TestCompileMeterAndTempoCarryOver(t *testing.T) {
	threeFour := score.Meter{Num: 3, Den: 4}
	s := &score.Score{
		Meta:        score.Meta{Tempo: 100},
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures: []score.Measure{
			{Number: 1, Meter: &threeFour, Voices: []score.VoiceEntries{voice("a", "", n('c', oct(4), "2."))}},
			{Number: 2, Tempo: 80, Voices: []score.VoiceEntries{voice("a", "", n('d', nil, ""))}},
		},
	}
	tl, err := Compile(s)
	require.NoError(t, err)
	require.Len(t, tl.Measures, 2)
	assert.Equal(t, "3/4", tl.Measures[1].Start.String())
	assert.Equal(t, threeFour, tl.Measures[1].Meter)
	assert.Equal(t, 100, tl.Measures[0].Tempo)
	assert.Equal(t, 80, tl.Measures[1].Tempo)
	assert.Equal(t, "3/2", tl.End.String())
	assert.Empty(t, tl.Diagnostics)
	assert.Equal(t, []string{"0", "3/4"}, starts(tl.Events))
}

func TestCompileTupletInsideMeasure(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures: []score.Measure{bar(1, voice("a", "1",
			&score.TupletEntry{Actual: 3, Normal: 2, Span: "4", Entries: []score.Entry{
				n('g', oct(4), "8"), n('a', nil, ""), n('b', nil, ""),
			}},
			n('c', oct(5), "4"), n('d', nil, "2"),
		))},
	}
	tl, err := Compile(s)
	require.NoError(t, err)
	assert.Empty(t, tl.Diagnostics)
	assert.Equal(t, []string{"0", "1/12", "1/6", "1/4", "1/2"}, starts(tl.Events))
	assert.Equal(t, "1/12", tl.Events[0].Duration.String())
	assert.Equal(t, 1, tl.Events[0].TupletDepth)
}

func TestCompileOverflowIsAWarning(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures: []score.Measure{
			bar(1, voice("a", "1", n('c', oct(4), "4"), n('c', nil, ""), n('c', nil, ""), n('c', nil, ""), n('c', nil, ""))),
			bar(2, voice("a", "1", n('d', nil, "1"))),
		},
	}
	tl, err := Compile(s)
	require.NoError(t, err)
	require.Len(t, tl.Diagnostics, 1)
	d := tl.Diagnostics[0]
	assert.Equal(t, diag.KindMeasureOverflow, d.Kind)
	assert.Equal(t, 1, d.Measure)
	require.NotNil(t, d.Discrepancy)
	assert.True(t, d.Discrepancy.Equal(rational.MustNew(1, 4)))
	assert.False(t, tl.HasErrors())
	// Measure 2 starts at its nominal position despite the extra beat.
	assert.Equal(t, "1", tl.VoiceEvents("a", "1")[5].Start.String())
}

func TestCompileUndefinedInstrumentIsFatal(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures:    []score.Measure{bar(1, voice("b", "1", n('c', oct(4), "1")))},
	}
	_, err := Compile(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrUndefinedInstrument))
	assert.Equal(t, diag.KindUndefinedInstrument, diag.KindOf(err))
}

func TestCompileRejectsDuplicateVoiceInMeasure(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures: []score.Measure{bar(1,
			voice("a", "1", n('c', oct(4), "2")),
			voice("a", "1", n('c', oct(4), "2")),
		)},
	}
	_, err := Compile(s)
	require.Error(t, err)
	assert.Equal(t, diag.KindInvalidScore, diag.KindOf(err))
}

func TestCompileVoiceErrorDoesNotHaltOthers(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}, {ID: "b"}},
		Measures: []score.Measure{bar(1,
			voice("a", "1", n('c', nil, "1")),
			voice("b", "1", n('e', oct(3), "2"), n('g', nil, "")),
		)},
	}
	tl, err := Compile(s)
	require.NoError(t, err)
	assert.True(t, tl.HasErrors())
	errs := Errors(tl)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.KindMissingInitialState, errs[0].Kind)
	assert.Equal(t, "a", errs[0].Track)
	assert.Len(t, tl.VoiceEvents("b", "1"), 2)
	assert.Empty(t, tl.VoiceEvents("a", "1"))
}

func TestCompileRationalOverflowIsRecordedPerVoice(t *testing.T) {
	var deep score.Entry = n('d', nil, "")
	for _, p := range []int64{999959, 999961, 999979, 999983} {
		deep = &score.TupletEntry{Actual: p, Normal: p - 1, Entries: []score.Entry{deep}}
	}
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}, {ID: "b"}},
		Measures: []score.Measure{bar(1,
			voice("a", "1", n('c', oct(4), "4"), deep),
			voice("b", "1", n('e', oct(3), "2"), n('g', nil, "")),
		)},
	}
	for _, p := range []int{1, 4} {
		tl, err := Compile(s, WithParallelism(p))
		require.NoError(t, err)
		errs := Errors(tl)
		require.Len(t, errs, 1)
		assert.Equal(t, diag.KindRationalOverflow, errs[0].Kind)
		assert.Equal(t, "a", errs[0].Track)
		assert.Equal(t, 1, errs[0].Measure)
		assert.Empty(t, Warnings(tl))
		assert.Len(t, tl.VoiceEvents("a", "1"), 1)
		assert.Equal(t, []string{"0", "1/2"}, starts(tl.VoiceEvents("b", "1")))
	}
}

func TestCompileRangeViolationKeepsEvent(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "vln", Preset: "violin"}},
		Measures: []score.Measure{bar(1, voice("vln", "1",
			n('a', oct(7), "2"),
			&score.NoteEntry{Letter: 'a', Accidental: 1, Duration: ""},
		))},
	}
	tl, err := Compile(s)
	require.NoError(t, err)
	require.Len(t, tl.Events, 2)
	ws := Warnings(tl)
	require.Len(t, ws, 1)
	assert.Equal(t, diag.KindRangeViolation, ws[0].Kind)
	assert.Equal(t, "vln", ws[0].Track)
	assert.Equal(t, 1, ws[0].EventIndex)
	assert.Equal(t, 1, ws[0].Margin)
}

func TestCompileVoiceOrdinalsFollowFirstAppearance(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures: []score.Measure{
			bar(1, voice("a", "hi", n('c', oct(5), "1"))),
			bar(2, voice("a", "lo", n('c', oct(3), "1")), voice("a", "hi", n('d', nil, ""))),
		},
	}
	tl, err := Compile(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "lo"}, tl.Tracks[0].Voices)
	require.Len(t, tl.Events, 3)
	assert.Equal(t, "hi", tl.Events[1].Voice)
	assert.Equal(t, "lo", tl.Events[2].Voice)
	assert.Empty(t, tl.Diagnostics, "voice lo is absent from measure 1 and is not validated there")
}

func ensemble() *score.Score {
	s := &score.Score{}
	for tr := 0; tr < 4; tr++ {
		s.Instruments = append(s.Instruments, score.InstrumentDef{ID: fmt.Sprintf("t%d", tr)})
	}
	for m := 1; m <= 8; m++ {
		var voices []score.VoiceEntries
		for tr := 3; tr >= 0; tr-- {
			id := fmt.Sprintf("t%d", tr)
			voices = append(voices,
				voice(id, "1",
					&score.TupletEntry{Actual: 3, Normal: 2, Entries: []score.Entry{n('c', oct(4), "4"), n('d', nil, ""), n('e', nil, "")}},
					n('f', nil, "4"), n('g', nil, "")),
				voice(id, "2", n('c', oct(3), "2"), n('g', oct(2), "2")),
			)
		}
		// Measure 5 is short in every voice 2 to produce diagnostics.
		if m == 5 {
			for i := 1; i < len(voices); i += 2 {
				voices[i].Entries = voices[i].Entries[:1]
			}
		}
		voices = append(voices, voice("t0", "3", n('b', oct(6), "1")))
		s.Measures = append(s.Measures, bar(m, voices...))
	}
	return s
}

func TestCompileIsDeterministicAcrossParallelism(t *testing.T) {
	want, err := Compile(ensemble(), WithParallelism(1))
	require.NoError(t, err)
	require.Equal(t, 4, diag.Count(want.Diagnostics, diag.KindMeasureUnderflow))

	for _, p := range []int{2, 3, 8, 64} {
		for run := 0; run < 10; run++ {
			got, err := Compile(ensemble(), WithParallelism(p))
			require.NoError(t, err)
			if diff := cmp.Diff(want.Events, got.Events); diff != "" {
				t.Fatalf("parallelism %d run %d: events differ (-want +got):\n%s", p, run, diff)
			}
			if diff := cmp.Diff(want.Diagnostics, got.Diagnostics); diff != "" {
				t.Fatalf("parallelism %d run %d: diagnostics differ (-want +got):\n%s", p, run, diff)
			}
		}
	}
}

func TestCompileLenientInitialState(t *testing.T) {
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures:    []score.Measure{bar(1, voice("a", "1", n('c', nil, ""), n('e', nil, "2.")))},
	}
	tl, err := Compile(s, WithStrictInitialState(false))
	require.NoError(t, err)
	assert.Empty(t, tl.Diagnostics)
	assert.Equal(t, 60, tl.Events[0].Key)
}

func TestCompileNestingLimitOption(t *testing.T) {
	inner := &score.TupletEntry{Actual: 3, Normal: 2, Entries: []score.Entry{n('c', oct(4), "8"), n('c', nil, ""), n('c', nil, "")}}
	outer := &score.TupletEntry{Actual: 3, Normal: 2, Entries: []score.Entry{inner}}
	s := &score.Score{
		Instruments: []score.InstrumentDef{{ID: "a"}},
		Measures:    []score.Measure{bar(1, voice("a", "1", outer))},
	}
	tl, err := Compile(s, WithMaxNestingDepth(1))
	require.NoError(t, err)
	errs := Errors(tl)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.KindTupletNestingTooDeep, errs[0].Kind)
}
