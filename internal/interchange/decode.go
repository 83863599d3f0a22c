// Package interchange reads score ASTs from JSON and writes compiled
// timelines back out as JSON.
package interchange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/score"
)

var metaKeys = map[string]bool{"title": true, "composer": true, "tempo": true}

// DecodeScore parses a JSON score document. Absent optional fields are left
// nil or empty so the compiler can apply sticky inheritance.
func DecodeScore(data []byte) (*score.Score, error) {
	if !gjson.ValidBytes(data) {
		return nil, diag.Errorf(diag.KindInvalidScore, diag.Location{}, "document is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, diag.Errorf(diag.KindInvalidScore, diag.Location{}, "document root must be an object")
	}
	s := &score.Score{}
	if err := decodeMeta(root.Get("meta"), &s.Meta); err != nil {
		return nil, err
	}
	if err := eachItem(root, "", "instruments", func(path string, v gjson.Result) error {
		def, err := decodeInstrument(path, v)
		if err != nil {
			return err
		}
		s.Instruments = append(s.Instruments, def)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := eachItem(root, "", "measures", func(path string, v gjson.Result) error {
		m, err := decodeMeasure(path, v)
		if err != nil {
			return err
		}
		s.Measures = append(s.Measures, m)
		return nil
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeMeta(v gjson.Result, m *score.Meta) error {
	if !v.Exists() {
		return nil
	}
	if !v.IsObject() {
		return invalid("meta", v, "must be an object")
	}
	m.Title = v.Get("title").String()
	m.Composer = v.Get("composer").String()
	if t := v.Get("tempo"); t.Exists() {
		tempo, err := positiveInt("meta.tempo", t)
		if err != nil {
			return err
		}
		m.Tempo = tempo
	}
	v.ForEach(func(key, value gjson.Result) bool {
		if metaKeys[key.String()] || value.Type != gjson.String {
			return true
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[key.String()] = value.String()
		return true
	})
	return nil
}

func decodeInstrument(path string, v gjson.Result) (score.InstrumentDef, error) {
	if !v.IsObject() {
		return score.InstrumentDef{}, invalid(path, v, "must be an object")
	}
	def := score.InstrumentDef{
		ID:     v.Get("id").String(),
		Name:   v.Get("name").String(),
		Preset: v.Get("preset").String(),
		Loc:    location(v),
	}
	var err error
	if def.Low, err = optionalPitch(path+".range.low", v.Get("range.low")); err != nil {
		return def, err
	}
	if def.High, err = optionalPitch(path+".range.high", v.Get("range.high")); err != nil {
		return def, err
	}
	if def.Transpose, err = optionalInt(path+".transpose", v.Get("transpose")); err != nil {
		return def, err
	}
	if def.Patch, err = optionalInt(path+".patch", v.Get("patch")); err != nil {
		return def, err
	}
	if def.Channel, err = optionalInt(path+".channel", v.Get("channel")); err != nil {
		return def, err
	}
	err = eachItem(v, path, "tuning", func(p string, s gjson.Result) error {
		pitch, err := score.ParsePitch(s.String())
		if err != nil {
			return invalid(p, s, err.Error())
		}
		def.Tuning = append(def.Tuning, pitch)
		return nil
	})
	return def, err
}

func decodeMeasure(path string, v gjson.Result) (score.Measure, error) {
	if !v.IsObject() {
		return score.Measure{}, invalid(path, v, "must be an object")
	}
	m := score.Measure{Loc: location(v)}
	if num := v.Get("number"); num.Exists() {
		n, err := positiveInt(path+".number", num)
		if err != nil {
			return m, err
		}
		m.Number = n
	}
	if ts := v.Get("time"); ts.Exists() {
		meter, err := parseMeter(ts.String())
		if err != nil {
			return m, invalid(path+".time", ts, err.Error())
		}
		m.Meter = &meter
	}
	if t := v.Get("tempo"); t.Exists() {
		tempo, err := positiveInt(path+".tempo", t)
		if err != nil {
			return m, err
		}
		m.Tempo = tempo
	}
	err := eachItem(v, path, "voices", func(p string, vv gjson.Result) error {
		ve, err := decodeVoice(p, vv)
		if err != nil {
			return err
		}
		m.Voices = append(m.Voices, ve)
		return nil
	})
	return m, err
}

func decodeVoice(path string, v gjson.Result) (score.VoiceEntries, error) {
	if !v.IsObject() {
		return score.VoiceEntries{}, invalid(path, v, "must be an object")
	}
	ve := score.VoiceEntries{
		Track: v.Get("track").String(),
		Voice: v.Get("voice").String(),
		Loc:   location(v),
	}
	if ve.Track == "" {
		return ve, invalid(path+".track", v.Get("track"), "is required")
	}
	entries, err := decodeEntries(path, v)
	ve.Entries = entries
	return ve, err
}

func decodeEntries(path string, v gjson.Result) ([]score.Entry, error) {
	var out []score.Entry
	err := eachItem(v, path, "entries", func(p string, ev gjson.Result) error {
		e, err := decodeEntry(p, ev)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func decodeEntry(path string, v gjson.Result) (score.Entry, error) {
	if !v.IsObject() {
		return nil, invalid(path, v, "must be an object")
	}
	if rest := v.Get("rest"); rest.Exists() && rest.Type != gjson.True {
		return nil, invalid(path+".rest", rest, "must be true")
	}
	var kinds []string
	for _, k := range []string{"note", "rest", "tuplet", "chord", "tab"} {
		if v.Get(k).Exists() {
			kinds = append(kinds, k)
		}
	}
	// A fretted note may carry "tab" alone; "note" with "tab" is ambiguous.
	if len(kinds) != 1 {
		return nil, invalid(path, v, "entry needs exactly one of note, rest, tuplet, chord, tab")
	}
	loc := location(v)
	dur, err := durationToken(path+".duration", v.Get("duration"))
	if err != nil {
		return nil, err
	}
	switch kinds[0] {
	case "note", "tab":
		return decodeNote(path, v)
	case "rest":
		return &score.RestEntry{Duration: dur, Loc: loc}, nil
	case "chord":
		c := &score.ChordEntry{Duration: dur, Loc: loc}
		if c.Articulations, err = articulations(path, v); err != nil {
			return nil, err
		}
		err = eachItem(v, path, "chord", func(p string, nv gjson.Result) error {
			member, err := decodeNote(p, nv)
			if err != nil {
				return err
			}
			c.Notes = append(c.Notes, *member)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(c.Notes) == 0 {
			return nil, invalid(path+".chord", v.Get("chord"), "chord has no notes")
		}
		return c, nil
	default:
		ratio := v.Get("tuplet")
		actual, normal, err := parseRatio(ratio.String())
		if err != nil {
			return nil, invalid(path+".tuplet", ratio, err.Error())
		}
		span, err := durationToken(path+".span", v.Get("span"))
		if err != nil {
			return nil, err
		}
		inner, err := decodeEntries(path, v)
		if err != nil {
			return nil, err
		}
		return &score.TupletEntry{Actual: actual, Normal: normal, Span: span, Entries: inner, Loc: loc}, nil
	}
}

func decodeNote(path string, v gjson.Result) (*score.NoteEntry, error) {
	if !v.IsObject() {
		return nil, invalid(path, v, "must be an object")
	}
	n := &score.NoteEntry{Loc: location(v)}
	var err error
	if n.Duration, err = durationToken(path+".duration", v.Get("duration")); err != nil {
		return nil, err
	}
	if n.Articulations, err = articulations(path, v); err != nil {
		return nil, err
	}
	if tab := v.Get("tab"); tab.Exists() {
		str, err := positiveInt(path+".tab.string", tab.Get("string"))
		if err != nil {
			return nil, err
		}
		fret := tab.Get("fret")
		if fret.Type != gjson.Number || fret.Int() < 0 {
			return nil, invalid(path+".tab.fret", fret, "must be a non-negative number")
		}
		n.Tab = &score.TabPosition{String: str, Fret: int(fret.Int())}
		return n, nil
	}
	name := v.Get("note")
	letter, acc, oct, err := parseNoteName(name.String())
	if err != nil {
		return nil, invalid(path+".note", name, err.Error())
	}
	n.Letter, n.Accidental, n.Octave = letter, acc, oct
	if o := v.Get("octave"); o.Exists() {
		if n.Octave, err = optionalInt(path+".octave", o); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// parseNoteName reads "c", "C#", "bb" or a full pitch such as "f#3".
func parseNoteName(s string) (byte, int, *int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || !score.ValidLetter(s[0]) {
		return 0, 0, nil, fmt.Errorf("invalid note name %q", s)
	}
	i := 1
	for i < len(s) && (s[i] == '#' || s[i] == 'b' || s[i] == 'x') {
		i++
	}
	acc, err := score.ParseAccidental(s[1:i])
	if err != nil {
		return 0, 0, nil, err
	}
	if i == len(s) {
		return s[0], acc, nil, nil
	}
	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("invalid octave in note name %q", s)
	}
	return s[0], acc, &oct, nil
}

func parseMeter(s string) (score.Meter, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return score.Meter{}, fmt.Errorf("time signature %q is not num/den", s)
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return score.Meter{}, fmt.Errorf("time signature %q needs positive integers", s)
	}
	return score.Meter{Num: n, Den: d}, nil
}

// parseRatio reads "N/M" (N in the time of M). Zero and negative components
// are rejected later by the ratio stack, so only the shape is checked here.
func parseRatio(s string) (int64, int64, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("tuplet ratio %q is not N/M", s)
	}
	n, err1 := strconv.ParseInt(a, 10, 64)
	m, err2 := strconv.ParseInt(b, 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("tuplet ratio %q needs integers", s)
	}
	return n, m, nil
}

func durationToken(path string, v gjson.Result) (score.DurationToken, error) {
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return score.DurationToken(v.String()), nil
	case gjson.Number:
		return score.DurationToken(v.Raw), nil
	}
	return "", invalid(path, v, "must be a string or number")
}

func articulations(path string, v gjson.Result) ([]string, error) {
	a := v.Get("articulations")
	if !a.Exists() {
		return nil, nil
	}
	if !a.IsArray() {
		return nil, invalid(path+".articulations", a, "must be an array")
	}
	out := []string{}
	for _, tag := range a.Array() {
		if tag.Type != gjson.String {
			return nil, invalid(path+".articulations", tag, "tags must be strings")
		}
		out = append(out, tag.String())
	}
	return out, nil
}

func optionalPitch(path string, v gjson.Result) (*score.Pitch, error) {
	if !v.Exists() {
		return nil, nil
	}
	p, err := score.ParsePitch(v.String())
	if err != nil {
		return nil, invalid(path, v, err.Error())
	}
	return &p, nil
}

func optionalInt(path string, v gjson.Result) (*int, error) {
	if !v.Exists() {
		return nil, nil
	}
	if v.Type != gjson.Number || v.Num != float64(v.Int()) {
		return nil, invalid(path, v, "must be an integer")
	}
	n := int(v.Int())
	return &n, nil
}

func positiveInt(path string, v gjson.Result) (int, error) {
	n, err := optionalInt(path, v)
	if err != nil {
		return 0, err
	}
	if n == nil || *n <= 0 {
		return 0, invalid(path, v, "must be a positive integer")
	}
	return *n, nil
}

// eachItem visits the array at key, if present, passing each item's full
// JSON path.
func eachItem(v gjson.Result, base, key string, fn func(path string, item gjson.Result) error) error {
	arr := v.Get(key)
	if !arr.Exists() {
		return nil
	}
	path := key
	if base != "" {
		path = base + "." + key
	}
	if !arr.IsArray() {
		return invalid(path, arr, "must be an array")
	}
	for i, item := range arr.Array() {
		if err := fn(path+"."+strconv.Itoa(i), item); err != nil {
			return err
		}
	}
	return nil
}

func location(v gjson.Result) diag.Location {
	return diag.Location{Line: int(v.Get("line").Int()), Column: int(v.Get("col").Int())}
}

func invalid(path string, v gjson.Result, msg string) error {
	loc := diag.Location{}
	if v.IsObject() {
		loc = location(v)
	}
	return diag.Errorf(diag.KindInvalidScore, loc, "%s: %s", path, msg)
}
