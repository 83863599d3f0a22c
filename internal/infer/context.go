package infer

import (
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/duration"
	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

// VoiceContext is the sticky state of one voice. It lives for one compile
// and is never shared between voices.
type VoiceContext struct {
	octave        int
	hasOctave     bool
	duration      rational.Rat
	hasDuration   bool
	articulations []string
	policy        duration.Policy
}

func NewVoiceContext(cfg Config) *VoiceContext {
	c := &VoiceContext{policy: cfg.Durations}
	if !cfg.StrictInitialState {
		c.octave, c.hasOctave = cfg.DefaultOctave, true
		if cfg.DefaultDuration.Sign() > 0 {
			c.duration, c.hasDuration = cfg.DefaultDuration, true
		}
	}
	return c
}

func (c *VoiceContext) Octave() (int, bool) { return c.octave, c.hasOctave }

func (c *VoiceContext) Duration() (rational.Rat, bool) { return c.duration, c.hasDuration }

func (c *VoiceContext) Articulations() []string { return slices.Clone(c.articulations) }

// ResolveDuration returns the unscaled value of tok, or the sticky duration
// when tok is empty. An explicit token becomes the new sticky duration.
func (c *VoiceContext) ResolveDuration(tok score.DurationToken, loc score.Location) (rational.Rat, error) {
	if tok == "" {
		if !c.hasDuration {
			return rational.Rat{}, diag.Errorf(diag.KindMissingInitialState, loc, "first entry of the voice has no duration")
		}
		return c.duration, nil
	}
	spec, err := duration.Parse(string(tok))
	if err != nil {
		return rational.Rat{}, withLocation(err, loc)
	}
	v, err := spec.Value(c.policy)
	if err != nil {
		return rational.Rat{}, withLocation(err, loc)
	}
	c.duration, c.hasDuration = v, true
	return v, nil
}

// ResolveOctave returns oct, or the sticky octave when oct is nil.
func (c *VoiceContext) ResolveOctave(oct *int, loc score.Location) (int, error) {
	if oct == nil {
		if !c.hasOctave {
			return 0, diag.Errorf(diag.KindMissingInitialState, loc, "first note of the voice has no octave")
		}
		return c.octave, nil
	}
	c.octave, c.hasOctave = *oct, true
	return *oct, nil
}

// ResolveArticulations returns the sticky set when arts is nil, otherwise
// the normalised arts, which become the new sticky set.
func (c *VoiceContext) ResolveArticulations(arts []string) []string {
	if arts == nil {
		return slices.Clone(c.articulations)
	}
	set := make([]string, 0, len(arts))
	for _, a := range arts {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			set = append(set, a)
		}
	}
	slices.Sort(set)
	set = slices.Compact(set)
	c.articulations = set
	return slices.Clone(set)
}

// ResolvePitch resolves the pitch part of a note. Tablature positions are
// looked up in tuning (open-string keys, lowest string first) and leave the
// sticky octave alone.
func (c *VoiceContext) ResolvePitch(n *score.NoteEntry, tuning []int) (score.Pitch, int, error) {
	if n.Tab != nil {
		key, err := KeyForTab(*n.Tab, tuning)
		if err != nil {
			return score.Pitch{}, 0, withLocation(err, n.Loc)
		}
		return score.PitchForKey(key), key, nil
	}
	letter := n.Letter
	if letter >= 'A' && letter <= 'G' {
		letter += 'a' - 'A'
	}
	if !score.ValidLetter(letter) {
		return score.Pitch{}, 0, diag.Errorf(diag.KindInvalidScore, n.Loc, "note has no pitch letter")
	}
	oct, err := c.ResolveOctave(n.Octave, n.Loc)
	if err != nil {
		return score.Pitch{}, 0, err
	}
	p := score.Pitch{Letter: letter, Accidental: n.Accidental, Octave: oct}
	return p, p.Key(), nil
}

// KeyForTab maps a string/fret position to a key. String 1 is the highest
// string, i.e. the last entry of tuning.
func KeyForTab(pos score.TabPosition, tuning []int) (int, error) {
	if len(tuning) == 0 {
		return 0, diag.Errorf(diag.KindInvalidScore, score.Location{}, "tablature note on an instrument without tuning")
	}
	if pos.String < 1 || pos.String > len(tuning) {
		return 0, diag.Errorf(diag.KindInvalidScore, score.Location{}, "string %d outside 1..%d", pos.String, len(tuning))
	}
	if pos.Fret < 0 {
		return 0, diag.Errorf(diag.KindInvalidScore, score.Location{}, "negative fret %d", pos.Fret)
	}
	return tuning[len(tuning)-pos.String] + pos.Fret, nil
}

func withLocation(err error, loc score.Location) error {
	var de *diag.Error
	if errors.As(err, &de) && de.Loc.IsZero() {
		de.Loc = loc
	}
	return err
}
