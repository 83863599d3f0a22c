package smf

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	gsmf "gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
	"github.com/cbegin/tenuto-go/internal/sequencer"
)

const defaultTempo = 120

type Config struct {
	Quantizer Quantizer
	// Velocity of unaccented notes.
	Velocity int
	// AccentBoost is added to Velocity for notes tagged "acc".
	AccentBoost int
}

func DefaultConfig() Config {
	return Config{Quantizer: DefaultQuantizer(), Velocity: 80, AccentBoost: 24}
}

// Report lists what the writer had to approximate or leave out.
type Report struct {
	Diagnostics []diag.Diagnostic
	Notes       int
}

type timed struct {
	tick int64
	// rank orders messages that share a tick: meta, program, note off, note on.
	rank int
	msg  []byte
}

type builder struct {
	cfg    Config
	tl     *score.Timeline
	report Report
}

// Build converts tl into an in-memory SMF: a conductor track followed by one
// track per instrument.
func Build(tl *score.Timeline, cfg Config) (*gsmf.SMF, Report, error) {
	if tl == nil {
		return nil, Report{}, errors.New("nil timeline")
	}
	if err := cfg.Quantizer.Validate(); err != nil {
		return nil, Report{}, err
	}
	b := &builder{cfg: cfg, tl: tl}
	s := gsmf.New()
	s.TimeFormat = gsmf.MetricTicks(uint16(cfg.Quantizer.TicksPerWhole() / 4))

	conductor, err := b.conductor()
	if err != nil {
		return nil, b.report, err
	}
	if err := s.Add(conductor); err != nil {
		return nil, b.report, errors.Wrap(err, "conductor track")
	}
	perTrack, err := b.notes()
	if err != nil {
		return nil, b.report, err
	}
	for i, tr := range tl.Tracks {
		track, err := b.instrument(tr, perTrack[i])
		if err != nil {
			return nil, b.report, err
		}
		if err := s.Add(track); err != nil {
			return nil, b.report, errors.Wrapf(err, "track %s", tr.ID)
		}
	}
	return s, b.report, nil
}

// Write encodes tl as a Standard MIDI File to w.
func Write(w io.Writer, tl *score.Timeline, cfg Config) (Report, error) {
	s, report, err := Build(tl, cfg)
	if err != nil {
		return report, err
	}
	if _, err := s.WriteTo(w); err != nil {
		return report, errors.Wrap(err, "write smf")
	}
	return report, nil
}

func (b *builder) conductor() (gsmf.Track, error) {
	var msgs []timed
	if b.tl.Meta.Title != "" {
		msgs = append(msgs, timed{msg: gsmf.MetaTrackSequenceName(b.tl.Meta.Title)})
	}
	var meter score.Meter
	tempo := 0
	for _, m := range b.tl.Measures {
		tick, err := b.quantize(m.Start, diag.Diagnostic{Measure: m.Number, EventIndex: -1})
		if err != nil {
			return gsmf.Track{}, err
		}
		if m.Meter != meter {
			meter = m.Meter
			if meter.Num > 255 || meter.Den > 255 || !powerOfTwo(meter.Den) {
				return gsmf.Track{}, diag.Errorf(diag.KindInvalidScore, diag.Location{},
					"measure %d: time signature %d/%d cannot be written to a MIDI file", m.Number, meter.Num, meter.Den)
			}
			msgs = append(msgs, timed{tick: tick, msg: gsmf.MetaMeter(uint8(meter.Num), uint8(meter.Den))})
		}
		bpm := m.Tempo
		if bpm <= 0 {
			bpm = defaultTempo
		}
		if bpm != tempo {
			tempo = bpm
			// The tempo event stores microseconds per quarter; it is the only
			// value in the file derived through floating point.
			msgs = append(msgs, timed{tick: tick, rank: 1, msg: gsmf.MetaTempo(float64(bpm))})
		}
	}
	if len(b.tl.Measures) == 0 {
		msgs = append(msgs, timed{rank: 1, msg: gsmf.MetaTempo(defaultTempo)})
	}
	end, err := b.quantize(b.tl.End, diag.Diagnostic{EventIndex: -1})
	if err != nil {
		return gsmf.Track{}, err
	}
	return assemble(msgs, end), nil
}

// notes quantizes every note of the timeline into per-track message lists.
func (b *builder) notes() ([][]timed, error) {
	byID := make(map[string]int, len(b.tl.Tracks))
	for i, tr := range b.tl.Tracks {
		byID[tr.ID] = i
	}
	out := make([][]timed, len(b.tl.Tracks))
	index := 0
	seq := sequencer.New(b.tl.Events)
	for {
		_, batch, ok := seq.Next()
		if !ok {
			break
		}
		for _, ev := range batch {
			i := index
			index++
			if ev.Kind != score.EventNote {
				continue
			}
			ti, ok := byID[ev.Track]
			if !ok {
				return nil, diag.Errorf(diag.KindUndefinedInstrument, ev.Loc, "event on unknown track %q", ev.Track)
			}
			msgs, err := b.note(b.tl.Tracks[ti], ev, i)
			if err != nil {
				return nil, err
			}
			out[ti] = append(out[ti], msgs...)
		}
	}
	return out, nil
}

func (b *builder) note(tr score.TrackInfo, ev score.Event, index int) ([]timed, error) {
	base := diag.Diagnostic{
		Track:      ev.Track,
		Voice:      ev.Voice,
		Measure:    ev.Measure,
		Loc:        ev.Loc,
		EventIndex: index,
		TrackIndex: ev.TrackIndex,
		VoiceIndex: ev.VoiceIndex,
		Order:      ev.Order,
	}
	key := ev.Key + tr.Transpose
	if key < 0 || key > 127 {
		d := base
		d.Kind = diag.KindRangeViolation
		d.Severity = diag.SeverityWarning
		d.Message = fmt.Sprintf("sounding key %d is outside the MIDI range; note left out", key)
		b.report.Diagnostics = append(b.report.Diagnostics, d)
		return nil, nil
	}
	sounding := ev.Duration
	if ev.HasArticulation("stacc") {
		var err error
		if sounding, err = sounding.Mul(rational.MustNew(1, 2)); err != nil {
			return nil, err
		}
	}
	end, err := ev.Start.Add(sounding)
	if err != nil {
		return nil, err
	}
	on, err := b.quantize(ev.Start, base)
	if err != nil {
		return nil, err
	}
	off, err := b.quantize(end, base)
	if err != nil {
		return nil, err
	}
	if off <= on {
		// Rounding collapsed the note; keep it audible for one tick.
		off = on + 1
	}
	vel := b.cfg.Velocity
	if ev.HasArticulation("acc") {
		vel += b.cfg.AccentBoost
	}
	vel = min(max(vel, 1), 127)
	ch := uint8(tr.Channel)
	b.report.Notes++
	return []timed{
		{tick: on, rank: 3, msg: midi.NoteOn(ch, uint8(key), uint8(vel))},
		{tick: off, rank: 2, msg: midi.NoteOff(ch, uint8(key))},
	}, nil
}

func (b *builder) instrument(tr score.TrackInfo, notes []timed) (gsmf.Track, error) {
	msgs := make([]timed, 0, len(notes)+2)
	name := tr.Name
	if name == "" {
		name = tr.ID
	}
	msgs = append(msgs,
		timed{msg: gsmf.MetaTrackSequenceName(name)},
		timed{rank: 1, msg: midi.ProgramChange(uint8(tr.Channel), uint8(tr.Patch))},
	)
	msgs = append(msgs, notes...)
	end, err := b.quantize(b.tl.End, diag.Diagnostic{EventIndex: -1})
	if err != nil {
		return gsmf.Track{}, err
	}
	return assemble(msgs, end), nil
}

// quantize converts at to ticks, recording a warning stamped from base when
// the value had to be rounded.
func (b *builder) quantize(at rational.Rat, base diag.Diagnostic) (int64, error) {
	ticks, exact, err := b.cfg.Quantizer.Ticks(at)
	if err != nil {
		var de *diag.Error
		if errors.As(err, &de) && de.Loc.IsZero() {
			de.Loc = base.Loc
		}
		return 0, err
	}
	if !exact {
		d := base
		d.Kind = diag.KindNonRepresentableDuration
		d.Severity = diag.SeverityWarning
		d.Message = fmt.Sprintf("%s rounded to tick %d (%s)", at, ticks, b.cfg.Quantizer.Policy)
		b.report.Diagnostics = append(b.report.Diagnostics, d)
	}
	return ticks, nil
}

// assemble orders messages by tick and rank and converts them to deltas.
func assemble(msgs []timed, end int64) gsmf.Track {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		return msgs[i].rank < msgs[j].rank
	})
	var tr gsmf.Track
	var last int64
	for _, m := range msgs {
		tr.Add(uint32(m.tick-last), m.msg)
		last = m.tick
	}
	closing := end - last
	if closing < 0 {
		closing = 0
	}
	tr.Close(uint32(closing))
	return tr
}

func powerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }
