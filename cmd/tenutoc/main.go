package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/tenuto-go"
	"github.com/cbegin/tenuto-go/internal/duration"
	"github.com/cbegin/tenuto-go/internal/interchange"
	"github.com/cbegin/tenuto-go/internal/notation"
	"github.com/cbegin/tenuto-go/internal/physics"
	"github.com/cbegin/tenuto-go/internal/smf"
	"github.com/cbegin/tenuto-go/internal/telemetry"
)

const release = "tenutoc@dev"

var logger = slog.Default()

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

type options struct {
	in         string
	out        string
	format     string
	tpq        int
	rounding   string
	parallel   int
	maxNesting int
	maxDots    int
	lenient    bool
	catalog    string
	debug      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "-", "score AST (JSON); - reads stdin")
	flag.StringVar(&opts.out, "out", "-", "output file; - writes stdout")
	flag.StringVar(&opts.format, "format", "json", "output format: json|smf|ten")
	flag.IntVar(&opts.tpq, "tpq", smf.DefaultTicksPerQuarter, "SMF ticks per quarter note")
	flag.StringVar(&opts.rounding, "rounding", "strict", "SMF tick rounding: strict|floor|nearest")
	flag.IntVar(&opts.parallel, "parallel", 0, "voices linearized at once (0 = GOMAXPROCS)")
	flag.IntVar(&opts.maxNesting, "max-nesting", 16, "maximum tuplet nesting depth (0 = unlimited)")
	flag.IntVar(&opts.maxDots, "max-dots", duration.DefaultPolicy().MaxDots, "maximum augmentation dots per duration")
	flag.BoolVar(&opts.lenient, "lenient", false, "assume octave 4 and a quarter note when a voice starts without them")
	flag.StringVar(&opts.catalog, "catalog", "", "extra instrument presets (YAML)")
	flag.BoolVar(&opts.debug, "debug", false, "debug logging")
	flag.Parse()

	initLogger(opts.debug)
	rec, flush, err := telemetry.Init(os.Getenv("SENTRY_DSN"), release)
	if err != nil {
		logger.Warn("telemetry disabled", "err", err)
	}
	code := run(context.Background(), opts, rec)
	flush()
	os.Exit(code)
}

func run(ctx context.Context, opts options, rec *telemetry.Recorder) int {
	ctx, finish := rec.StartCompile(ctx, opts.in)
	defer finish()

	if err := compile(ctx, opts, rec); err != nil {
		logger.Error("tenutoc failed", "err", err)
		rec.CaptureError(err)
		return 1
	}
	return 0
}

func compile(ctx context.Context, opts options, rec *telemetry.Recorder) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	data, err := readInput(opts.in)
	if err != nil {
		return err
	}
	s, err := interchange.DecodeScore(data)
	if err != nil {
		return errors.Wrapf(err, "decode %s", opts.in)
	}

	copts, err := compilerOptions(opts)
	if err != nil {
		return err
	}
	began := time.Now()
	tl, err := tenuto.Compile(s, copts...)
	rec.RecordCompile(ctx, tl, time.Since(began), err)
	if err != nil {
		return err
	}
	tenuto.LogDiagnostics(logger, tl)
	logger.Info("compiled",
		"events", len(tl.Events),
		"tracks", len(tl.Tracks),
		"measures", len(tl.Measures),
		"diagnostics", telemetry.SummaryLine(tl.Diagnostics))

	var buf bytes.Buffer
	switch format {
	case "json":
		out, err := interchange.EncodeTimeline(tl)
		if err != nil {
			return err
		}
		buf.Write(out)
		buf.WriteByte('\n')
	case "smf":
		policy, err := smf.ParsePolicy(opts.rounding)
		if err != nil {
			return err
		}
		cfg := smf.DefaultConfig()
		cfg.Quantizer = smf.Quantizer{TicksPerQuarter: opts.tpq, Policy: policy}
		report, err := smf.Write(&buf, tl, cfg)
		for _, d := range report.Diagnostics {
			logger.Warn(d.Message, "kind", d.Kind, "track", d.Track, "measure", d.Measure)
		}
		if err != nil {
			return err
		}
		logger.Debug("smf written", "notes", report.Notes, "bytes", buf.Len())
	case "ten":
		nopts := notation.DefaultOptions()
		nopts.Durations = duration.Policy{MaxDots: opts.maxDots}
		nopts.Logger = logger
		if err := notation.Encode(&buf, tl, nopts); err != nil {
			return err
		}
	}
	return writeOutput(opts.out, buf.Bytes())
}

func compilerOptions(opts options) ([]tenuto.Option, error) {
	out := []tenuto.Option{
		tenuto.WithLogger(logger),
		tenuto.WithMaxNestingDepth(opts.maxNesting),
		tenuto.WithDurationPolicy(duration.Policy{MaxDots: opts.maxDots}),
		tenuto.WithStrictInitialState(!opts.lenient),
	}
	if opts.parallel > 0 {
		out = append(out, tenuto.WithParallelism(opts.parallel))
	}
	if opts.catalog != "" {
		extra, err := physics.LoadCatalogFile(opts.catalog)
		if err != nil {
			return nil, err
		}
		out = append(out, tenuto.WithCatalog(physics.DefaultCatalog().Merge(extra)))
	}
	return out, nil
}

func parseFormat(name string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "json", "smf", "ten":
		return f, nil
	case "mid", "midi":
		return "smf", nil
	case "tenuto":
		return "ten", nil
	default:
		return "", fmt.Errorf("invalid -format %q (expected json|smf|ten)", name)
	}
}

func readInput(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrap(err, "read input")
}

func writeOutput(path string, data []byte) error {
	if strings.TrimSpace(path) == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return errors.Wrap(err, "write stdout")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write output")
}
