package interchange

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/score"
)

// Rationals are written as "n/d" strings (integers without the "/1"), so
// no time value ever passes through a JSON float.

// EncodeTimeline renders a compiled timeline as a JSON document.
func EncodeTimeline(tl *score.Timeline) ([]byte, error) {
	if tl == nil {
		return nil, errors.New("nil timeline")
	}
	w := &writer{doc: []byte(`{}`)}
	w.set("meta.title", tl.Meta.Title)
	w.set("meta.composer", tl.Meta.Composer)
	if tl.Meta.Tempo > 0 {
		w.set("meta.tempo", tl.Meta.Tempo)
	}
	keys := make([]string, 0, len(tl.Meta.Extra))
	for k := range tl.Meta.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.set("meta."+escape(k), tl.Meta.Extra[k])
	}
	w.set("end", tl.End.String())
	tracks := make([]*writer, len(tl.Tracks))
	for i, tr := range tl.Tracks {
		tracks[i] = trackJSON(tr)
	}
	w.array("tracks", tracks)
	measures := make([]*writer, len(tl.Measures))
	for i, m := range tl.Measures {
		measures[i] = measureJSON(m)
	}
	w.array("measures", measures)
	events := make([]*writer, len(tl.Events))
	for i, ev := range tl.Events {
		events[i] = eventJSON(ev)
	}
	w.array("events", events)
	diags := make([]*writer, len(tl.Diagnostics))
	for i, d := range tl.Diagnostics {
		diags[i] = diagnosticJSON(d)
	}
	w.array("diagnostics", diags)
	if w.err != nil {
		return nil, errors.Wrap(w.err, "encode timeline")
	}
	return w.doc, nil
}

// writer accumulates sjson edits and keeps the first error.
type writer struct {
	doc []byte
	err error
}

func (w *writer) set(path string, v any) {
	if w.err != nil {
		return
	}
	w.doc, w.err = sjson.SetBytes(w.doc, path, v)
}

// array joins the items into one JSON array and sets it in a single edit.
func (w *writer) array(path string, items []*writer) {
	if w.err != nil {
		return
	}
	n := 2
	for _, it := range items {
		if it.err != nil {
			w.err = it.err
			return
		}
		n += len(it.doc) + 1
	}
	buf := make([]byte, 0, n)
	buf = append(buf, '[')
	for i, it := range items {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, it.doc...)
	}
	buf = append(buf, ']')
	w.doc, w.err = sjson.SetRawBytes(w.doc, path, buf)
}

func object() *writer { return &writer{doc: []byte(`{}`)} }

func trackJSON(tr score.TrackInfo) *writer {
	o := object()
	o.set("id", tr.ID)
	o.set("name", tr.Name)
	o.set("index", tr.Index)
	o.set("range.low", score.PitchForKey(tr.Low).String())
	o.set("range.high", score.PitchForKey(tr.High).String())
	o.set("transpose", tr.Transpose)
	o.set("patch", tr.Patch)
	o.set("channel", tr.Channel)
	if len(tr.Tuning) > 0 {
		tuning := make([]string, len(tr.Tuning))
		for i, k := range tr.Tuning {
			tuning[i] = score.PitchForKey(k).String()
		}
		o.set("tuning", tuning)
	}
	voices := tr.Voices
	if voices == nil {
		voices = []string{}
	}
	o.set("voices", voices)
	return o
}

func measureJSON(m score.MeasureInfo) *writer {
	o := object()
	o.set("number", m.Number)
	o.set("start", m.Start.String())
	o.set("span", m.Span.String())
	o.set("time.num", m.Meter.Num)
	o.set("time.den", m.Meter.Den)
	if m.Tempo > 0 {
		o.set("tempo", m.Tempo)
	}
	return o
}

func eventJSON(ev score.Event) *writer {
	o := object()
	o.set("kind", ev.Kind.String())
	o.set("track", ev.Track)
	o.set("voice", ev.Voice)
	o.set("start", ev.Start.String())
	o.set("duration", ev.Duration.String())
	if ev.Kind == score.EventNote {
		o.set("pitch", ev.Pitch.String())
		o.set("key", ev.Key)
	}
	if ev.Tab != nil {
		o.set("tab.string", ev.Tab.String)
		o.set("tab.fret", ev.Tab.Fret)
	}
	if len(ev.Articulations) > 0 {
		o.set("articulations", ev.Articulations)
	}
	if ev.Chord > 0 {
		o.set("chord", ev.Chord)
	}
	if ev.TupletDepth > 0 {
		o.set("tuplet_depth", ev.TupletDepth)
	}
	o.set("measure", ev.Measure)
	setLocation(o, ev.Loc)
	return o
}

func diagnosticJSON(d diag.Diagnostic) *writer {
	o := object()
	o.set("kind", string(d.Kind))
	o.set("severity", d.Severity.String())
	if d.Track != "" {
		o.set("track", d.Track)
	}
	if d.Voice != "" {
		o.set("voice", d.Voice)
	}
	if d.Measure > 0 {
		o.set("measure", d.Measure)
	}
	o.set("message", d.Message)
	if d.Discrepancy != nil {
		o.set("discrepancy", d.Discrepancy.String())
	}
	if d.Kind == diag.KindRangeViolation {
		o.set("margin", d.Margin)
	}
	if d.EventIndex >= 0 {
		o.set("event", d.EventIndex)
	}
	setLocation(o, d.Loc)
	return o
}

func setLocation(o *writer, loc diag.Location) {
	if loc.IsZero() {
		return
	}
	o.set("line", loc.Line)
	o.set("col", loc.Column)
}

// escape quotes characters that sjson treats as path syntax.
func escape(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}
