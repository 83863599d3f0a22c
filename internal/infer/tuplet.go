package infer

import (
	"fmt"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

// Ratio is a tuplet declaration: Actual notes in the time of Normal.
type Ratio struct {
	Actual int64
	Normal int64
}

func (r Ratio) String() string { return fmt.Sprintf("%d/%d", r.Actual, r.Normal) }

// Scale is the factor applied to the durations inside the group.
func (r Ratio) Scale() (rational.Rat, error) {
	if r.Actual <= 0 || r.Normal <= 0 {
		return rational.Rat{}, diag.Errorf(diag.KindInvalidTupletRatio, score.Location{}, "ratio %s must have positive components", r)
	}
	return rational.New(r.Normal, r.Actual)
}

// RatioStack holds the active tuplet groups of a depth-first walk. factors[i]
// is the product of the scales of groups 0..i.
type RatioStack struct {
	factors  []rational.Rat
	maxDepth int
}

// NewRatioStack creates an empty stack. maxDepth <= 0 means unlimited.
func NewRatioStack(maxDepth int) *RatioStack {
	return &RatioStack{maxDepth: maxDepth}
}

func (s *RatioStack) Depth() int { return len(s.factors) }

// Factor returns the combined scale of every open group.
func (s *RatioStack) Factor() rational.Rat {
	if len(s.factors) == 0 {
		return rational.One
	}
	return s.factors[len(s.factors)-1]
}

func (s *RatioStack) Push(r Ratio, loc score.Location) error {
	scale, err := r.Scale()
	if err != nil {
		return withLocation(err, loc)
	}
	if s.maxDepth > 0 && len(s.factors)+1 > s.maxDepth {
		return diag.Errorf(diag.KindTupletNestingTooDeep, loc, "tuplet %s would nest %d deep (limit %d)", r, len(s.factors)+1, s.maxDepth)
	}
	f, err := s.Factor().Mul(scale)
	if err != nil {
		return withLocation(err, loc)
	}
	s.factors = append(s.factors, f)
	return nil
}

func (s *RatioStack) Pop() {
	if len(s.factors) > 0 {
		s.factors = s.factors[:len(s.factors)-1]
	}
}
