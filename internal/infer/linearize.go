package infer

import (
	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/duration"
	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

// VoiceMeasure is the part of one measure that belongs to a voice. Start and
// Span are the measure's nominal position on the timeline.
type VoiceMeasure struct {
	Number  int
	Start   rational.Rat
	Span    rational.Rat
	Entries []score.Entry
	Loc     score.Location
}

// Voice is everything the linearizer needs to resolve one voice. Measures
// lists only the measures in which the voice appears, in order.
type Voice struct {
	Track      string
	Voice      string
	TrackIndex int
	VoiceIndex int
	Tuning     []int
	Measures   []VoiceMeasure
}

// Result is the output of one voice. Err is set when resolution was aborted;
// Events then holds what was emitted before the failure and Diagnostics ends
// with the matching error-severity entry.
type Result struct {
	Events      []score.Event
	Diagnostics []diag.Diagnostic
	Err         error
}

type linearizer struct {
	cfg     Config
	voice   *Voice
	ctx     *VoiceContext
	stack   *RatioStack
	events  []score.Event
	diags   diag.Collector
	cursor  rational.Rat
	measure int
	chords  int
	lastLoc score.Location
}

// Linearize walks one voice across its measures and returns its events on
// the absolute timeline.
func Linearize(v Voice, cfg Config) Result {
	l := &linearizer{
		cfg:   cfg,
		voice: &v,
		ctx:   NewVoiceContext(cfg),
		stack: NewRatioStack(cfg.MaxNestingDepth),
	}
	for _, m := range v.Measures {
		if err := l.measureFill(m); err != nil {
			d := l.diagnostic(diag.FromError(err))
			if d.Loc.IsZero() {
				d.Loc = l.lastLoc
			}
			l.diags.Add(d)
			return Result{Events: l.events, Diagnostics: l.diags.Items(), Err: err}
		}
	}
	return Result{Events: l.events, Diagnostics: l.diags.Items()}
}

func (l *linearizer) measureFill(m VoiceMeasure) error {
	l.measure = m.Number
	l.cursor = m.Start
	l.lastLoc = m.Loc
	filled, err := l.walk(m.Entries)
	if err != nil {
		return err
	}
	diff, err := filled.Sub(m.Span)
	if err != nil {
		return err
	}
	switch diff.Sign() {
	case 0:
		return nil
	case 1:
		l.diags.Add(l.diagnostic(diag.Diagnostic{
			Kind:        diag.KindMeasureOverflow,
			Severity:    diag.SeverityWarning,
			Loc:         m.Loc,
			Message:     "measure holds " + filled.String() + " of " + m.Span.String() + " (+" + diff.String() + ")",
			Discrepancy: &diff,
			EventIndex:  -1,
		}))
	default:
		l.diags.Add(l.diagnostic(diag.Diagnostic{
			Kind:        diag.KindMeasureUnderflow,
			Severity:    diag.SeverityWarning,
			Loc:         m.Loc,
			Message:     "measure holds " + filled.String() + " of " + m.Span.String() + " (" + diff.String() + ")",
			Discrepancy: &diff,
			EventIndex:  -1,
		}))
	}
	return nil
}

// walk resolves entries in order and returns the scaled time they fill.
func (l *linearizer) walk(entries []score.Entry) (rational.Rat, error) {
	filled := rational.Zero
	for _, entry := range entries {
		l.lastLoc = entry.Location()
		var (
			used rational.Rat
			err  error
		)
		switch e := entry.(type) {
		case *score.NoteEntry:
			used, err = l.note(e)
		case *score.RestEntry:
			used, err = l.rest(e)
		case *score.ChordEntry:
			used, err = l.chord(e)
		case *score.TupletEntry:
			used, err = l.tuplet(e)
		default:
			err = diag.Errorf(diag.KindInvalidScore, entry.Location(), "unknown entry type %T", entry)
		}
		if err != nil {
			return rational.Rat{}, err
		}
		if filled, err = filled.Add(used); err != nil {
			return rational.Rat{}, err
		}
	}
	return filled, nil
}

func (l *linearizer) note(n *score.NoteEntry) (rational.Rat, error) {
	pitch, key, err := l.ctx.ResolvePitch(n, l.voice.Tuning)
	if err != nil {
		return rational.Rat{}, err
	}
	dur, err := l.scaled(n.Duration, n.Loc)
	if err != nil {
		return rational.Rat{}, err
	}
	ev := l.event(score.EventNote, dur, n.Loc)
	ev.Pitch, ev.Key = pitch, key
	if n.Tab != nil {
		tab := *n.Tab
		ev.Tab = &tab
	}
	ev.Articulations = l.ctx.ResolveArticulations(n.Articulations)
	return dur, l.emit(ev)
}

func (l *linearizer) rest(r *score.RestEntry) (rational.Rat, error) {
	dur, err := l.scaled(r.Duration, r.Loc)
	if err != nil {
		return rational.Rat{}, err
	}
	return dur, l.emit(l.event(score.EventRest, dur, r.Loc))
}

func (l *linearizer) chord(c *score.ChordEntry) (rational.Rat, error) {
	if len(c.Notes) == 0 {
		return rational.Rat{}, diag.Errorf(diag.KindInvalidScore, c.Loc, "empty chord")
	}
	type member struct {
		pitch score.Pitch
		key   int
		tab   *score.TabPosition
		loc   score.Location
	}
	members := make([]member, 0, len(c.Notes))
	for i := range c.Notes {
		n := &c.Notes[i]
		pitch, key, err := l.ctx.ResolvePitch(n, l.voice.Tuning)
		if err != nil {
			return rational.Rat{}, err
		}
		members = append(members, member{pitch: pitch, key: key, tab: n.Tab, loc: n.Loc})
	}
	dur, err := l.scaled(c.Duration, c.Loc)
	if err != nil {
		return rational.Rat{}, err
	}
	arts := l.ctx.ResolveArticulations(c.Articulations)
	l.chords++
	for _, m := range members {
		loc := m.loc
		if loc.IsZero() {
			loc = c.Loc
		}
		ev := l.event(score.EventNote, dur, loc)
		ev.Pitch, ev.Key, ev.Chord = m.pitch, m.key, l.chords
		if m.tab != nil {
			tab := *m.tab
			ev.Tab = &tab
		}
		ev.Articulations = append([]string(nil), arts...)
		l.events = append(l.events, ev)
	}
	// Every member starts at the same cursor; advance once.
	return dur, l.advance(dur)
}

func (l *linearizer) tuplet(t *score.TupletEntry) (rational.Rat, error) {
	outer := l.stack.Factor()
	if err := l.stack.Push(Ratio{Actual: t.Actual, Normal: t.Normal}, t.Loc); err != nil {
		return rational.Rat{}, err
	}
	filled, err := l.walk(t.Entries)
	l.stack.Pop()
	if err != nil {
		return rational.Rat{}, err
	}
	if t.Span != "" {
		if err := l.checkSpan(t, outer, filled); err != nil {
			return rational.Rat{}, err
		}
	}
	return filled, nil
}

// checkSpan compares the group's scaled content with its declared span,
// itself scaled by the enclosing groups.
func (l *linearizer) checkSpan(t *score.TupletEntry, outer, filled rational.Rat) error {
	spec, err := duration.Parse(string(t.Span))
	if err != nil {
		return withLocation(err, t.Loc)
	}
	span, err := spec.Value(l.cfg.Durations)
	if err != nil {
		return withLocation(err, t.Loc)
	}
	if span, err = span.Mul(outer); err != nil {
		return err
	}
	diff, err := filled.Sub(span)
	if err != nil {
		return err
	}
	if diff.IsZero() {
		return nil
	}
	l.diags.Add(l.diagnostic(diag.Diagnostic{
		Kind:        diag.KindTupletSpanMismatch,
		Severity:    diag.SeverityWarning,
		Loc:         t.Loc,
		Message:     "tuplet " + Ratio{Actual: t.Actual, Normal: t.Normal}.String() + " fills " + filled.String() + ", declared " + span.String(),
		Discrepancy: &diff,
		EventIndex:  -1,
	}))
	return nil
}

func (l *linearizer) scaled(tok score.DurationToken, loc score.Location) (rational.Rat, error) {
	dur, err := l.ctx.ResolveDuration(tok, loc)
	if err != nil {
		return rational.Rat{}, err
	}
	return dur.Mul(l.stack.Factor())
}

func (l *linearizer) event(kind score.EventKind, dur rational.Rat, loc score.Location) score.Event {
	return score.Event{
		Kind:        kind,
		Track:       l.voice.Track,
		Voice:       l.voice.Voice,
		Start:       l.cursor,
		Duration:    dur,
		TupletDepth: l.stack.Depth(),
		Measure:     l.measure,
		Loc:         loc,
		TrackIndex:  l.voice.TrackIndex,
		VoiceIndex:  l.voice.VoiceIndex,
		Order:       len(l.events),
	}
}

func (l *linearizer) emit(ev score.Event) error {
	l.events = append(l.events, ev)
	return l.advance(ev.Duration)
}

func (l *linearizer) advance(d rational.Rat) error {
	next, err := l.cursor.Add(d)
	if err != nil {
		return err
	}
	l.cursor = next
	return nil
}

// diagnostic stamps d with the voice's identity and sort key.
func (l *linearizer) diagnostic(d diag.Diagnostic) diag.Diagnostic {
	d.Track = l.voice.Track
	d.Voice = l.voice.Voice
	d.TrackIndex = l.voice.TrackIndex
	d.VoiceIndex = l.voice.VoiceIndex
	d.Measure = l.measure
	d.Order = len(l.events)
	return d
}
