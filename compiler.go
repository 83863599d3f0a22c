// Package tenuto compiles a Tenuto score AST into an exact event timeline.
//
// Each voice is linearized independently, in parallel, with its own sticky
// state and tuplet stack. The per-voice results are merged into one ordered
// timeline and checked against the instruments' physical ranges. Timing and
// range problems are reported as diagnostics on the timeline; only an
// unusable score structure fails the compile.
package tenuto

import (
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	intdiag "github.com/cbegin/tenuto-go/internal/diag"
	intinfer "github.com/cbegin/tenuto-go/internal/infer"
	intphys "github.com/cbegin/tenuto-go/internal/physics"
	intrat "github.com/cbegin/tenuto-go/internal/rational"
	intscore "github.com/cbegin/tenuto-go/internal/score"
	intseq "github.com/cbegin/tenuto-go/internal/sequencer"
)

type (
	Score       = intscore.Score
	Timeline    = intscore.Timeline
	Event       = intscore.Event
	TrackInfo   = intscore.TrackInfo
	MeasureInfo = intscore.MeasureInfo
	Diagnostic  = intdiag.Diagnostic
	Kind        = intdiag.Kind
	Rat         = intrat.Rat
)

const defaultVoice = "1"

type Compiler struct {
	cfg compilerConfig
}

func NewCompiler(opts ...Option) *Compiler {
	cfg := defaultCompilerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Compiler{cfg: cfg}
}

// Compile is a shorthand for NewCompiler(opts...).Compile(s).
func Compile(s *Score, opts ...Option) (*Timeline, error) {
	return NewCompiler(opts...).Compile(s)
}

// Compile resolves s into a timeline. The returned error is non-nil only
// when the score cannot be compiled at all, for example when a voice
// references an undefined instrument. Aborted voices are reported as
// error-severity diagnostics on the timeline.
func (c *Compiler) Compile(s *Score) (*Timeline, error) {
	if s == nil {
		return nil, intdiag.Errorf(intdiag.KindInvalidScore, intdiag.Location{}, "nil score")
	}
	began := time.Now()
	log := c.cfg.logger

	tracks, err := intphys.Resolve(s.Instruments, c.cfg.catalog)
	if err != nil {
		return nil, err
	}
	measures, end, err := c.measureMap(s)
	if err != nil {
		return nil, err
	}
	voices, err := collectVoices(s, tracks, measures)
	if err != nil {
		return nil, err
	}

	results := make([]intinfer.Result, len(voices))
	var g errgroup.Group
	g.SetLimit(c.cfg.parallelism)
	for i := range voices {
		i := i
		g.Go(func() error {
			results[i] = intinfer.Linearize(voices[i], c.cfg.inference)
			return nil
		})
	}
	// Tasks report through their result slots; Wait is only the barrier.
	_ = g.Wait()

	lists := make([][]intscore.Event, len(results))
	var diags []intdiag.Diagnostic
	for i, res := range results {
		v := voices[i]
		lists[i] = res.Events
		diags = append(diags, res.Diagnostics...)
		if res.Err != nil {
			log.Warn("voice aborted", "track", v.Track, "voice", v.Voice, "events", len(res.Events), "err", res.Err)
			continue
		}
		log.Debug("voice linearized", "track", v.Track, "voice", v.Voice, "events", len(res.Events), "diagnostics", len(res.Diagnostics))
	}

	events := intseq.Merge(lists)
	diags = append(diags, intphys.Validate(events, tracks)...)
	intseq.SortDiagnostics(diags)

	tl := &Timeline{
		Meta:        s.Meta,
		Tracks:      tracks,
		Measures:    measures,
		Events:      events,
		Diagnostics: diags,
		End:         end,
	}
	log.Debug("compile finished",
		"voices", len(voices),
		"events", len(events),
		"diagnostics", len(diags),
		"elapsed", time.Since(began))
	return tl, nil
}

// measureMap places every measure on the timeline. Meter and tempo carry
// over until changed.
func (c *Compiler) measureMap(s *Score) ([]MeasureInfo, Rat, error) {
	meter := c.cfg.defaultMeter
	tempo := s.Meta.Tempo
	start := intrat.Zero
	out := make([]MeasureInfo, 0, len(s.Measures))
	for i, m := range s.Measures {
		if m.Meter != nil {
			meter = *m.Meter
		}
		if meter.Num <= 0 || meter.Den <= 0 {
			return nil, Rat{}, intdiag.Errorf(intdiag.KindInvalidScore, m.Loc, "measure %d: invalid time signature %d/%d", measureNumber(m, i), meter.Num, meter.Den)
		}
		if m.Tempo > 0 {
			tempo = m.Tempo
		}
		span, err := meter.Span()
		if err != nil {
			return nil, Rat{}, err
		}
		out = append(out, MeasureInfo{
			Number: measureNumber(m, i),
			Start:  start,
			Span:   span,
			Meter:  meter,
			Tempo:  tempo,
		})
		if start, err = start.Add(span); err != nil {
			return nil, Rat{}, err
		}
	}
	return out, start, nil
}

func measureNumber(m intscore.Measure, i int) int {
	if m.Number > 0 {
		return m.Number
	}
	return i + 1
}

type voiceKey struct {
	track string
	voice string
}

// collectVoices groups every voice's entries across measures. Voice ordinals
// follow first appearance within the track; the returned slice is ordered by
// (track, voice) ordinal.
func collectVoices(s *Score, tracks []TrackInfo, measures []MeasureInfo) ([]intinfer.Voice, error) {
	trackIdx := make(map[string]int, len(tracks))
	for i, tr := range tracks {
		trackIdx[tr.ID] = i
	}
	perTrack := make([][]*intinfer.Voice, len(tracks))
	byKey := make(map[voiceKey]*intinfer.Voice)

	for mi, m := range s.Measures {
		info := measures[mi]
		inMeasure := make(map[voiceKey]bool, len(m.Voices))
		for _, ve := range m.Voices {
			ti, ok := trackIdx[ve.Track]
			if !ok {
				return nil, intdiag.Errorf(intdiag.KindUndefinedInstrument, ve.Loc, "measure %d: voice references undefined instrument %q", info.Number, ve.Track)
			}
			name := ve.Voice
			if name == "" {
				name = defaultVoice
			}
			key := voiceKey{ve.Track, name}
			if inMeasure[key] {
				return nil, intdiag.Errorf(intdiag.KindInvalidScore, ve.Loc, "measure %d: voice %s/%s appears twice", info.Number, ve.Track, name)
			}
			inMeasure[key] = true

			v, ok := byKey[key]
			if !ok {
				v = &intinfer.Voice{
					Track:      ve.Track,
					Voice:      name,
					TrackIndex: ti,
					VoiceIndex: len(perTrack[ti]),
					Tuning:     tracks[ti].Tuning,
				}
				byKey[key] = v
				perTrack[ti] = append(perTrack[ti], v)
				tracks[ti].Voices = append(tracks[ti].Voices, name)
			}
			loc := ve.Loc
			if loc.IsZero() {
				loc = m.Loc
			}
			v.Measures = append(v.Measures, intinfer.VoiceMeasure{
				Number:  info.Number,
				Start:   info.Start,
				Span:    info.Span,
				Entries: ve.Entries,
				Loc:     loc,
			})
		}
	}

	var out []intinfer.Voice
	for _, vs := range perTrack {
		for _, v := range vs {
			out = append(out, *v)
		}
	}
	return out, nil
}

// Errors reports the error-severity diagnostics of a timeline.
func Errors(tl *Timeline) []Diagnostic {
	return filter(tl, intdiag.SeverityError)
}

// Warnings reports the warning-severity diagnostics of a timeline.
func Warnings(tl *Timeline) []Diagnostic {
	return filter(tl, intdiag.SeverityWarning)
}

func filter(tl *Timeline, sev intdiag.Severity) []Diagnostic {
	if tl == nil {
		return nil
	}
	var out []Diagnostic
	for _, d := range tl.Diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// LogDiagnostics writes every diagnostic of tl to l.
func LogDiagnostics(l *slog.Logger, tl *Timeline) {
	for _, d := range tl.Diagnostics {
		attrs := []any{"kind", d.Kind, "track", d.Track, "voice", d.Voice, "measure", d.Measure, "at", d.Loc.String()}
		if d.Discrepancy != nil {
			attrs = append(attrs, "discrepancy", d.Discrepancy.String())
		}
		if d.Kind == intdiag.KindRangeViolation {
			attrs = append(attrs, "margin", d.Margin)
		}
		if d.Severity >= intdiag.SeverityError {
			l.Error(d.Message, attrs...)
		} else {
			l.Warn(d.Message, attrs...)
		}
	}
}
