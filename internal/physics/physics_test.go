package physics

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

func intp(n int) *int { return &n }

func pitch(t *testing.T, s string) *score.Pitch {
	t.Helper()
	p, err := score.ParsePitch(s)
	require.NoError(t, err)
	return &p
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	violin, ok := c.Lookup("Violin")
	require.True(t, ok)
	assert.Equal(t, 55, violin.Low)
	assert.Equal(t, 105, violin.High)
	assert.Equal(t, 40, violin.Patch)

	guitar, ok := c.Lookup("guitar")
	require.True(t, ok)
	assert.Equal(t, []int{40, 45, 50, 55, 59, 64}, guitar.Tuning)

	clarinet, ok := c.Lookup("clarinet")
	require.True(t, ok)
	assert.Equal(t, -2, clarinet.Transpose)

	assert.Contains(t, c.Presets(), "cello")
}

func TestLoadCatalogRejectsBadPitch(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("instruments:\n  kazoo:\n    low: h2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kazoo")
}

func TestLoadCatalogRejectsInvertedRange(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("instruments:\n  odd:\n    low: c5\n    high: c4\n"))
	require.Error(t, err)
}

func TestCatalogMergeOverrides(t *testing.T) {
	extra, err := LoadCatalog(strings.NewReader("instruments:\n  violin:\n    name: Baroque Violin\n    low: g3\n    high: d6\n    patch: 40\n"))
	require.NoError(t, err)
	merged := DefaultCatalog().Merge(extra)
	v, ok := merged.Lookup("violin")
	require.True(t, ok)
	assert.Equal(t, "Baroque Violin", v.Name)
	_, ok = merged.Lookup("cello")
	assert.True(t, ok)
}

func TestResolveFillsFromPreset(t *testing.T) {
	defs := []score.InstrumentDef{
		{ID: "vln", Preset: "violin"},
		{ID: "gtr", Preset: "guitar", Name: "Nylon", Patch: intp(24), Channel: intp(3)},
		{ID: "syn", Low: pitch(t, "c3"), High: pitch(t, "c6")},
	}
	tracks, err := Resolve(defs, DefaultCatalog())
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	assert.Equal(t, "Violin", tracks[0].Name)
	assert.Equal(t, 0, tracks[0].Index)
	assert.Equal(t, 55, tracks[0].Low)

	assert.Equal(t, "Nylon", tracks[1].Name)
	assert.Equal(t, 3, tracks[1].Channel)
	assert.Len(t, tracks[1].Tuning, 6)

	assert.Equal(t, "syn", tracks[2].Name)
	assert.Equal(t, 48, tracks[2].Low)
	assert.Equal(t, 84, tracks[2].High)
	assert.Equal(t, 2, tracks[2].Channel)
}

func TestResolveErrors(t *testing.T) {
	cases := []struct {
		name string
		defs []score.InstrumentDef
		kind diag.Kind
	}{
		{"missing id", []score.InstrumentDef{{Preset: "violin"}}, diag.KindInvalidScore},
		{"duplicate", []score.InstrumentDef{{ID: "a"}, {ID: "a"}}, diag.KindInvalidScore},
		{"unknown preset", []score.InstrumentDef{{ID: "a", Preset: "theremin"}}, diag.KindUndefinedInstrument},
		{"bad channel", []score.InstrumentDef{{ID: "a", Channel: intp(16)}}, diag.KindInvalidScore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.defs, DefaultCatalog())
			require.Error(t, err)
			assert.Equal(t, tc.kind, diag.KindOf(err))
		})
	}
	_, err := Resolve([]score.InstrumentDef{{ID: "a", Preset: "theremin"}}, DefaultCatalog())
	assert.True(t, errors.Is(err, diag.ErrUndefinedInstrument))
}

func TestDefaultChannelSkipsPercussion(t *testing.T) {
	var got []int
	for i := 0; i < 17; i++ {
		got = append(got, defaultChannel(i))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 11, 12, 13, 14, 15, 0, 1}, got)
}

func noteAt(track string, key, order int) score.Event {
	return score.Event{
		Kind:     score.EventNote,
		Track:    track,
		Voice:    "1",
		Start:    rational.MustNew(int64(order), 4),
		Duration: rational.MustNew(1, 4),
		Pitch:    score.PitchForKey(key),
		Key:      key,
		Order:    order,
	}
}

func TestOneSemitoneAboveRangeIsOneViolation(t *testing.T) {
	tracks := []score.TrackInfo{{ID: "vln", Low: 55, High: 105}}
	events := []score.Event{noteAt("vln", 60, 0), noteAt("vln", 106, 1), noteAt("vln", 72, 2)}

	ds := Validate(events, tracks)
	require.Len(t, ds, 1)
	d := ds[0]
	assert.Equal(t, diag.KindRangeViolation, d.Kind)
	assert.Equal(t, diag.SeverityWarning, d.Severity)
	assert.Equal(t, "vln", d.Track)
	assert.Equal(t, 1, d.EventIndex)
	assert.Equal(t, 1, d.Margin)
	assert.Len(t, events, 3)
}

func TestValidateBelowRangeHasNegativeMargin(t *testing.T) {
	tracks := []score.TrackInfo{{ID: "vc", Low: 36, High: 84}}
	ds := Validate([]score.Event{noteAt("vc", 33, 0)}, tracks)
	require.Len(t, ds, 1)
	assert.Equal(t, -3, ds[0].Margin)
	assert.Contains(t, ds[0].Message, "below")
}

func TestValidateUsesSoundingKey(t *testing.T) {
	// Written d3 on a Bb clarinet sounds c3, under the d3 floor.
	tracks := []score.TrackInfo{{ID: "cl", Low: 50, High: 94, Transpose: -2}}
	ds := Validate([]score.Event{noteAt("cl", 50, 0), noteAt("cl", 52, 1)}, tracks)
	require.Len(t, ds, 1)
	assert.Equal(t, 0, ds[0].EventIndex)
	assert.Equal(t, -2, ds[0].Margin)
}

func TestValidateSkipsRests(t *testing.T) {
	tracks := []score.TrackInfo{{ID: "a", Low: 60, High: 60}}
	rest := score.Event{Kind: score.EventRest, Track: "a"}
	assert.Empty(t, Validate([]score.Event{rest}, tracks))
}
