// Package telemetry reports compile runs to Sentry when a DSN is configured.
package telemetry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/score"
)

const flushTimeout = 2 * time.Second

// Recorder sends compile spans and failures to Sentry. A disabled recorder
// does nothing.
type Recorder struct {
	enabled bool
}

// Disabled returns a recorder that drops everything.
func Disabled() *Recorder { return &Recorder{} }

// Init configures the global Sentry client. An empty dsn yields a disabled
// recorder. The returned flush func must run before the process exits.
func Init(dsn, release string) (*Recorder, func(), error) {
	if dsn == "" {
		return Disabled(), func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		return Disabled(), func() {}, errors.Wrap(err, "sentry init")
	}
	return &Recorder{enabled: true}, func() { sentry.Flush(flushTimeout) }, nil
}

func (r *Recorder) Enabled() bool { return r != nil && r.enabled }

// StartCompile opens a transaction for one compile of source. The returned
// finish func closes it.
func (r *Recorder) StartCompile(ctx context.Context, source string) (context.Context, func()) {
	if !r.Enabled() {
		return ctx, func() {}
	}
	tx := sentry.StartTransaction(ctx, "tenuto.compile")
	tx.SetTag("source", source)
	return tx.Context(), tx.Finish
}

// RecordCompile attaches the outcome of a compile to the current
// transaction.
func (r *Recorder) RecordCompile(ctx context.Context, tl *score.Timeline, elapsed time.Duration, err error) {
	if !r.Enabled() {
		return
	}
	span := sentry.StartSpan(ctx, "tenuto.timeline")
	defer span.Finish()

	span.SetData("duration_ms", elapsed.Milliseconds())
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetTag("fatal_kind", string(diag.KindOf(err)))
		sentry.CaptureException(err)
		return
	}
	span.Status = sentry.SpanStatusOK
	if tl == nil {
		return
	}
	span.SetData("events", len(tl.Events))
	span.SetData("tracks", len(tl.Tracks))
	span.SetData("measures", len(tl.Measures))
	for kind, n := range Summarize(tl.Diagnostics) {
		span.SetTag("diag."+kind, fmt.Sprintf("%d", n))
	}
	span.Description = fmt.Sprintf("Compile: %d events, %d diagnostics", len(tl.Events), len(tl.Diagnostics))
}

// CaptureError reports a failure outside a compile, such as a backend error.
func (r *Recorder) CaptureError(err error) {
	if !r.Enabled() || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// Summarize counts diagnostics per kind.
func Summarize(ds []diag.Diagnostic) map[string]int {
	out := make(map[string]int)
	for _, d := range ds {
		out[string(d.Kind)]++
	}
	return out
}

// SummaryLine renders Summarize as "Kind=n" pairs in kind order.
func SummaryLine(ds []diag.Diagnostic) string {
	counts := Summarize(ds)
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	s := ""
	for i, k := range kinds {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%d", k, counts[k])
	}
	return s
}
