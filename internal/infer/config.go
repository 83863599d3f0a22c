package infer

import (
	"github.com/cbegin/tenuto-go/internal/duration"
	"github.com/cbegin/tenuto-go/internal/rational"
)

type Config struct {
	Durations duration.Policy
	// MaxNestingDepth bounds tuplet nesting; 0 disables the limit.
	MaxNestingDepth int
	// StrictInitialState makes a voice's first entry supply octave and
	// duration. When false the context starts from the defaults below.
	StrictInitialState bool
	DefaultOctave      int
	DefaultDuration    rational.Rat
}

func DefaultConfig() Config {
	return Config{
		Durations:          duration.DefaultPolicy(),
		MaxNestingDepth:    16,
		StrictInitialState: true,
		DefaultOctave:      4,
		DefaultDuration:    rational.MustNew(1, 4),
	}
}
