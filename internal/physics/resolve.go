package physics

import (
	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/score"
)

const percussionChannel = 9

// Resolve turns instrument definitions into track physics in declaration
// order. Fields left unset on a definition come from its preset, then from
// full-range defaults.
func Resolve(defs []score.InstrumentDef, cat *Catalog) ([]score.TrackInfo, error) {
	tracks := make([]score.TrackInfo, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for i, def := range defs {
		if def.ID == "" {
			return nil, diag.Errorf(diag.KindInvalidScore, def.Loc, "instrument %d has no id", i+1)
		}
		if seen[def.ID] {
			return nil, diag.Errorf(diag.KindInvalidScore, def.Loc, "instrument %q defined twice", def.ID)
		}
		seen[def.ID] = true

		base := Instrument{Name: def.ID, Low: 0, High: 127}
		if def.Preset != "" {
			preset, ok := cat.Lookup(def.Preset)
			if !ok {
				return nil, diag.Errorf(diag.KindUndefinedInstrument, def.Loc, "instrument %q uses unknown preset %q", def.ID, def.Preset)
			}
			base = preset
		}
		tr := score.TrackInfo{
			ID:        def.ID,
			Name:      base.Name,
			Index:     i,
			Low:       base.Low,
			High:      base.High,
			Transpose: base.Transpose,
			Patch:     base.Patch,
			Channel:   defaultChannel(i),
			Tuning:    append([]int(nil), base.Tuning...),
		}
		if def.Name != "" {
			tr.Name = def.Name
		}
		if def.Low != nil {
			tr.Low = def.Low.Key()
		}
		if def.High != nil {
			tr.High = def.High.Key()
		}
		if def.Transpose != nil {
			tr.Transpose = *def.Transpose
		}
		if def.Patch != nil {
			tr.Patch = *def.Patch
		}
		if def.Channel != nil {
			tr.Channel = *def.Channel
		}
		if len(def.Tuning) > 0 {
			tr.Tuning = tr.Tuning[:0]
			for _, p := range def.Tuning {
				tr.Tuning = append(tr.Tuning, p.Key())
			}
		}
		if err := check(tr, def.Loc); err != nil {
			return nil, err
		}
		tracks = append(tracks, tr)
	}
	return tracks, nil
}

func check(tr score.TrackInfo, loc score.Location) error {
	switch {
	case tr.Low > tr.High:
		return diag.Errorf(diag.KindInvalidScore, loc, "instrument %q range %d..%d is inverted", tr.ID, tr.Low, tr.High)
	case tr.Patch < 0 || tr.Patch > 127:
		return diag.Errorf(diag.KindInvalidScore, loc, "instrument %q patch %d outside 0..127", tr.ID, tr.Patch)
	case tr.Channel < 0 || tr.Channel > 15:
		return diag.Errorf(diag.KindInvalidScore, loc, "instrument %q channel %d outside 0..15", tr.ID, tr.Channel)
	}
	return nil
}

// defaultChannel assigns channels in declaration order, skipping the
// percussion channel and wrapping after 15.
func defaultChannel(i int) int {
	ch := i % 15
	if ch >= percussionChannel {
		ch++
	}
	return ch
}
