// Package notation renders a compiled timeline back into Tenuto source text.
//
// Octave, duration and articulations are written only when they differ from
// the previous token of the same voice, so the text relies on the same sticky
// inference the compiler applies when reading it. The text has no way to
// clear an articulation set; such a clear is logged and the old set stays in
// force for the reader.
package notation

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbegin/tenuto-go/internal/duration"
	"github.com/cbegin/tenuto-go/internal/score"
)

const Version = "2.0"

type Options struct {
	Durations duration.Policy
	// Indent is one nesting level; two spaces when empty.
	Indent string
	// Logger receives articulation clears the text cannot express.
	// slog.Default() when nil.
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{Durations: duration.DefaultPolicy(), Indent: "  "}
}

type voiceKey struct {
	track, voice string
}

// voiceState is the sticky state the reader will reconstruct.
type voiceState struct {
	octave    int
	hasOctave bool
	duration  string
	// articulations is the set a reader holds after the last written token.
	articulations []string
}

type encoder struct {
	opts   Options
	b      strings.Builder
	states map[voiceKey]*voiceState
}

// Encode writes tl as Tenuto text.
func Encode(w io.Writer, tl *score.Timeline, opts Options) error {
	s, err := EncodeString(tl, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return errors.Wrap(err, "write tenuto")
}

func EncodeString(tl *score.Timeline, opts Options) (string, error) {
	if tl == nil {
		return "", errors.New("nil timeline")
	}
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	e := &encoder{opts: opts, states: make(map[voiceKey]*voiceState)}
	e.line(0, "tenuto {")
	e.meta(tl.Meta)
	e.line(0, "")
	e.line(1, "%% Instrument Definitions")
	for _, tr := range tl.Tracks {
		name := tr.Name
		if name == "" {
			name = tr.ID
		}
		e.line(1, "def "+tr.ID+" "+strconv.Quote(name)+" style=standard")
	}
	e.line(0, "")
	e.line(1, "%% Score Logic")
	if err := e.measures(tl); err != nil {
		return "", err
	}
	e.line(0, "}")
	return e.b.String(), nil
}

func (e *encoder) line(depth int, s string) {
	if s != "" {
		e.b.WriteString(strings.Repeat(e.opts.Indent, depth))
		e.b.WriteString(s)
	}
	e.b.WriteByte('\n')
}

func (e *encoder) meta(m score.Meta) {
	e.line(1, "meta {")
	e.line(2, "tenuto_version: "+strconv.Quote(Version)+",")
	if m.Title != "" {
		e.line(2, "title: "+strconv.Quote(m.Title)+",")
	}
	if m.Composer != "" {
		e.line(2, "composer: "+strconv.Quote(m.Composer)+",")
	}
	if m.Tempo > 0 {
		e.line(2, "tempo: "+strconv.Itoa(m.Tempo)+",")
	}
	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.line(2, k+": "+strconv.Quote(m.Extra[k])+",")
	}
	e.line(1, "}")
}

func (e *encoder) measures(tl *score.Timeline) error {
	byMeasure := make(map[int]map[voiceKey][]score.Event)
	for _, ev := range tl.Events {
		vk := voiceKey{ev.Track, ev.Voice}
		if byMeasure[ev.Measure] == nil {
			byMeasure[ev.Measure] = make(map[voiceKey][]score.Event)
		}
		byMeasure[ev.Measure][vk] = append(byMeasure[ev.Measure][vk], ev)
	}

	var meter score.Meter
	tempo := tl.Meta.Tempo
	for i, m := range tl.Measures {
		if i > 0 {
			e.line(0, "")
		}
		e.line(1, fmt.Sprintf("measure %d {", m.Number))
		var changes []string
		if m.Meter != meter {
			meter = m.Meter
			changes = append(changes, fmt.Sprintf("time: %d/%d", meter.Num, meter.Den))
		}
		if m.Tempo > 0 && m.Tempo != tempo {
			tempo = m.Tempo
			changes = append(changes, fmt.Sprintf("tempo: %d", tempo))
		}
		if len(changes) > 0 {
			e.line(2, "meta { "+strings.Join(changes, ", ")+" }")
		}
		for _, tr := range tl.Tracks {
			for _, v := range tr.Voices {
				events := byMeasure[m.Number][voiceKey{tr.ID, v}]
				if len(events) == 0 {
					continue
				}
				tokens, err := e.voice(voiceKey{tr.ID, v}, events)
				if err != nil {
					return errors.Wrapf(err, "measure %d %s/%s", m.Number, tr.ID, v)
				}
				label := tr.ID
				if len(tr.Voices) > 1 {
					label += "/" + v
				}
				e.line(2, label+": "+strings.Join(tokens, " ")+" |")
			}
		}
		e.line(1, "}")
	}
	return nil
}

// voice renders one voice's events in one measure. Chord members are
// adjacent in the merged timeline and share a chord id.
func (e *encoder) voice(vk voiceKey, events []score.Event) ([]string, error) {
	st := e.states[vk]
	if st == nil {
		st = &voiceState{}
		e.states[vk] = st
	}
	var tokens []string
	for i := 0; i < len(events); {
		ev := events[i]
		j := i + 1
		if ev.Chord > 0 {
			for j < len(events) && events[j].Chord == ev.Chord {
				j++
			}
		}
		var head string
		switch {
		case ev.Kind == score.EventRest:
			head = "r"
		case j-i > 1:
			pitches := make([]string, 0, j-i)
			for _, member := range events[i:j] {
				pitches = append(pitches, st.pitch(member.Pitch))
			}
			head = "[" + strings.Join(pitches, " ") + "]"
		default:
			head = st.pitch(ev.Pitch)
		}
		dur, err := e.duration(st, ev)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, head+dur+e.articulations(vk, st, ev))
		i = j
	}
	return tokens, nil
}

func (st *voiceState) pitch(p score.Pitch) string {
	s := string(p.Letter) + score.AccidentalString(p.Accidental)
	if !st.hasOctave || st.octave != p.Octave {
		st.octave, st.hasOctave = p.Octave, true
		s += strconv.Itoa(p.Octave)
	}
	return s
}

func (e *encoder) duration(st *voiceState, ev score.Event) (string, error) {
	spec, err := duration.Encode(ev.Duration, e.opts.Durations)
	if err != nil {
		return "", err
	}
	tok := spec.String()
	if tok == st.duration {
		return "", nil
	}
	st.duration = tok
	return ":" + tok, nil
}

// articulations renders the tag suffix for ev. Rests neither carry nor
// change the sticky set.
func (e *encoder) articulations(vk voiceKey, st *voiceState, ev score.Event) string {
	if ev.Kind == score.EventRest || slices.Equal(ev.Articulations, st.articulations) {
		return ""
	}
	if len(ev.Articulations) == 0 {
		e.opts.Logger.Warn("articulation clear not expressible in tenuto text",
			"track", vk.track, "voice", vk.voice, "measure", ev.Measure,
			"inherited", strings.Join(st.articulations, "."))
		return ""
	}
	st.articulations = slices.Clone(ev.Articulations)
	var b strings.Builder
	for _, t := range ev.Articulations {
		b.WriteByte('.')
		b.WriteString(t)
	}
	return b.String()
}
