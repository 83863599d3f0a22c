// Package smf writes compiled timelines as Standard MIDI Files.
//
// Time values are exact rationals up to this point. The Quantizer is the one
// place they become integer ticks, and it never rounds silently: a strict
// quantizer fails, the others record every rounding as a diagnostic.
package smf

import (
	"strings"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
)

type Policy int

const (
	// PolicyStrict fails on any value that is not a whole number of ticks.
	PolicyStrict Policy = iota
	// PolicyFloor rounds toward negative infinity.
	PolicyFloor
	// PolicyNearest rounds to the closest tick; halves round up.
	PolicyNearest
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyFloor:
		return "floor"
	case PolicyNearest:
		return "nearest"
	}
	return "unknown"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "floor":
		return PolicyFloor, nil
	case "nearest":
		return PolicyNearest, nil
	}
	return 0, diag.Errorf(diag.KindInvalidScore, diag.Location{}, "unknown rounding policy %q", s)
}

const (
	DefaultTicksPerQuarter = 480
	// MaxTicksPerQuarter is the largest metric division an SMF header can
	// carry; the high bit selects SMPTE timing.
	MaxTicksPerQuarter = 0x7fff
)

type Quantizer struct {
	TicksPerQuarter int
	Policy          Policy
}

func DefaultQuantizer() Quantizer {
	return Quantizer{TicksPerQuarter: DefaultTicksPerQuarter, Policy: PolicyStrict}
}

// Validate rejects a resolution the file header cannot encode. Zero selects
// DefaultTicksPerQuarter.
func (q Quantizer) Validate() error {
	if q.TicksPerQuarter < 0 || q.TicksPerQuarter > MaxTicksPerQuarter {
		return diag.Errorf(diag.KindInvalidScore, diag.Location{},
			"ticks per quarter %d outside 1..%d", q.TicksPerQuarter, MaxTicksPerQuarter)
	}
	return nil
}

// TicksPerWhole is the resolution applied to whole-note rationals.
func (q Quantizer) TicksPerWhole() int64 {
	tpq := q.TicksPerQuarter
	if tpq <= 0 {
		tpq = DefaultTicksPerQuarter
	}
	return int64(tpq) * 4
}

// Ticks converts a time in whole notes. exact reports whether no rounding
// happened; with PolicyStrict an inexact value is an error instead.
func (q Quantizer) Ticks(at rational.Rat) (ticks int64, exact bool, err error) {
	scaled, err := at.MulInt(q.TicksPerWhole())
	if err != nil {
		return 0, false, err
	}
	if scaled.IsInt() {
		return scaled.Num(), true, nil
	}
	switch q.Policy {
	case PolicyFloor:
		quo, _ := scaled.Split()
		return quo, false, nil
	case PolicyNearest:
		quo, rem := scaled.Split()
		if rem >= scaled.Den()-rem {
			quo++
		}
		return quo, false, nil
	}
	return 0, false, diag.Errorf(diag.KindNonRepresentableDuration, diag.Location{},
		"%s is %s ticks at %d per quarter", at, scaled, q.TicksPerWhole()/4)
}
