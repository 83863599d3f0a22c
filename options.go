package tenuto

import (
	"log/slog"
	"runtime"

	intdur "github.com/cbegin/tenuto-go/internal/duration"
	intinfer "github.com/cbegin/tenuto-go/internal/infer"
	intphys "github.com/cbegin/tenuto-go/internal/physics"
	intscore "github.com/cbegin/tenuto-go/internal/score"
)

type Option func(*compilerConfig)

type compilerConfig struct {
	inference    intinfer.Config
	parallelism  int
	catalog      *intphys.Catalog
	defaultMeter intscore.Meter
	logger       *slog.Logger
}

func defaultCompilerConfig() compilerConfig {
	return compilerConfig{
		inference:    intinfer.DefaultConfig(),
		parallelism:  runtime.GOMAXPROCS(0),
		catalog:      intphys.DefaultCatalog(),
		defaultMeter: intscore.Meter{Num: 4, Den: 4},
		logger:       slog.Default(),
	}
}

// WithParallelism bounds how many voices are linearized at once. Values
// below 1 mean one at a time.
func WithParallelism(n int) Option {
	return func(cfg *compilerConfig) {
		if n < 1 {
			n = 1
		}
		cfg.parallelism = n
	}
}

// WithMaxNestingDepth bounds tuplet nesting; 0 disables the limit.
func WithMaxNestingDepth(n int) Option {
	return func(cfg *compilerConfig) {
		cfg.inference.MaxNestingDepth = n
	}
}

func WithDurationPolicy(p intdur.Policy) Option {
	return func(cfg *compilerConfig) {
		cfg.inference.Durations = p
	}
}

// WithStrictInitialState controls whether a voice's first note must carry
// an octave and duration. When disabled, octave 4 and a quarter note are
// assumed.
func WithStrictInitialState(strict bool) Option {
	return func(cfg *compilerConfig) {
		cfg.inference.StrictInitialState = strict
	}
}

// WithCatalog replaces the instrument presets used to fill definitions.
func WithCatalog(c *intphys.Catalog) Option {
	return func(cfg *compilerConfig) {
		cfg.catalog = c
	}
}

// WithDefaultMeter sets the meter in force before the first time signature.
func WithDefaultMeter(num, den int) Option {
	return func(cfg *compilerConfig) {
		cfg.defaultMeter = intscore.Meter{Num: num, Den: den}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *compilerConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}
