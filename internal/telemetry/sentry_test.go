package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/score"
)

func TestInitWithoutDSNIsDisabled(t *testing.T) {
	r, flush, err := Init("", "test")
	require.NoError(t, err)
	assert.False(t, r.Enabled())
	flush()

	ctx, finish := r.StartCompile(context.Background(), "score.json")
	r.RecordCompile(ctx, &score.Timeline{}, time.Millisecond, nil)
	r.RecordCompile(ctx, nil, time.Millisecond, errors.New("boom"))
	r.CaptureError(errors.New("boom"))
	finish()
}

func TestNilRecorderIsDisabled(t *testing.T) {
	var r *Recorder
	assert.False(t, r.Enabled())
	r.CaptureError(errors.New("ignored"))
}

func TestSummarize(t *testing.T) {
	ds := []diag.Diagnostic{
		{Kind: diag.KindRangeViolation},
		{Kind: diag.KindMeasureUnderflow},
		{Kind: diag.KindRangeViolation},
	}
	assert.Equal(t, map[string]int{"RangeViolation": 2, "MeasureUnderflow": 1}, Summarize(ds))
	assert.Equal(t, "MeasureUnderflow=1 RangeViolation=2", SummaryLine(ds))
	assert.Empty(t, SummaryLine(nil))
}
