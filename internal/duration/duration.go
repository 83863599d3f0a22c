// Package duration converts symbolic note values into exact fractions of a
// whole note and back.
package duration

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
)

// Policy bounds which dotted values are accepted and produced.
type Policy struct {
	// MaxDots is the largest dot count accepted. Values above 30 are clamped
	// so 2^(dots+1) stays within int64.
	MaxDots int
}

func DefaultPolicy() Policy {
	return Policy{MaxDots: 3}
}

func (p Policy) maxDots() int {
	switch {
	case p.MaxDots < 0:
		return 0
	case p.MaxDots > 30:
		return 30
	}
	return p.MaxDots
}

// Spec is a symbolic duration: a base value plus dots.
//
// Base is 1/Den for reciprocal tokens ("4" = 1/4) or an explicit fraction
// ("3/8"). Explicit fractions of the form 1/2^k are canonicalised to the
// reciprocal form by Parse.
type Spec struct {
	Base rational.Rat
	Dots int
}

// Parse reads a token: an optional leading ':', then "<den>" or
// "<num>/<den>", then dots.
func Parse(token string) (Spec, error) {
	s := strings.TrimPrefix(strings.TrimSpace(token), ":")
	dots := 0
	for strings.HasSuffix(s, ".") {
		dots++
		s = s[:len(s)-1]
	}
	if s == "" {
		return Spec{}, diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "empty duration token %q", token)
	}
	numStr, denStr, explicit := strings.Cut(s, "/")
	if !explicit {
		den, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return Spec{}, diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "bad duration token %q", token)
		}
		if den <= 0 || !isPowerOfTwo(den) {
			return Spec{}, diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "note value %d is not a positive power of two", den)
		}
		return Spec{Base: rational.MustNew(1, den), Dots: dots}, nil
	}
	num, err1 := strconv.ParseInt(numStr, 10, 64)
	den, err2 := strconv.ParseInt(denStr, 10, 64)
	if err1 != nil || err2 != nil {
		return Spec{}, diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "bad duration token %q", token)
	}
	if num <= 0 || den <= 0 {
		return Spec{}, diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "duration %q must be positive", token)
	}
	return Spec{Base: rational.MustNew(num, den), Dots: dots}, nil
}

// Validate checks s against the policy.
func (s Spec) Validate(p Policy) error {
	if s.Base.Sign() <= 0 {
		return diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "duration base %s must be positive", s.Base)
	}
	if s.Dots < 0 {
		return diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "negative dot count %d", s.Dots)
	}
	if s.Dots > p.maxDots() {
		return diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "%d dots exceeds the limit of %d", s.Dots, p.maxDots())
	}
	return nil
}

// Value resolves s to a fraction of a whole note:
// base × (2^(d+1) − 1) / 2^d.
func (s Spec) Value(p Policy) (rational.Rat, error) {
	if err := s.Validate(p); err != nil {
		return rational.Rat{}, err
	}
	pow := int64(1) << s.Dots
	factor, err := rational.New(2*pow-1, pow)
	if err != nil {
		return rational.Rat{}, err
	}
	return s.Base.Mul(factor)
}

// String renders the canonical token without the leading ':'.
func (s Spec) String() string {
	var b strings.Builder
	if s.Base.Num() == 1 && isPowerOfTwo(s.Base.Den()) {
		b.WriteString(strconv.FormatInt(s.Base.Den(), 10))
	} else {
		b.WriteString(s.Base.String())
		if s.Base.IsInt() {
			b.WriteString("/1")
		}
	}
	b.WriteString(strings.Repeat(".", s.Dots))
	return b.String()
}

// Encode finds the canonical symbolic spelling of value: the reciprocal of a
// power of two with the fewest dots allowed by the policy, or an undotted
// explicit fraction when no such spelling exists.
func Encode(value rational.Rat, p Policy) (Spec, error) {
	if value.Sign() <= 0 {
		return Spec{}, diag.Errorf(diag.KindInvalidDuration, diag.Location{}, "cannot encode non-positive duration %s", value)
	}
	for dots := 0; dots <= p.maxDots(); dots++ {
		// value = base × (2^(d+1) − 1)/2^d  =>  base = value × 2^d / (2^(d+1) − 1)
		pow := int64(1) << dots
		factor, err := rational.New(pow, 2*pow-1)
		if err != nil {
			return Spec{}, err
		}
		base, err := value.Mul(factor)
		if err != nil {
			continue
		}
		if base.Num() == 1 && isPowerOfTwo(base.Den()) {
			return Spec{Base: base, Dots: dots}, nil
		}
	}
	return Spec{Base: value}, nil
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && bits.OnesCount64(uint64(n)) == 1
}
