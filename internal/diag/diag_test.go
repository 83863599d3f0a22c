package diag

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/cbegin/tenuto-go/internal/rational"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := Errorf(KindMissingInitialState, Location{Line: 3, Column: 7}, "voice %s has no octave", "vln/1")
	wrapped := errors.Wrap(err, "measure 1")

	assert.True(t, errors.Is(wrapped, ErrMissingInitialState))
	assert.False(t, errors.Is(wrapped, ErrInvalidScore))
	assert.Equal(t, KindMissingInitialState, KindOf(wrapped))
	assert.Equal(t, Location{Line: 3, Column: 7}, LocationOf(wrapped))
	assert.Equal(t, "measure 1: 3:7: MissingInitialState: voice vln/1 has no octave", wrapped.Error())
}

func TestKindOfClassifiesRationalErrors(t *testing.T) {
	_, err := rational.MustNew(1, 2).Div(rational.Zero)
	assert.Equal(t, KindDivisionByZero, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("unexpected")))
}

func TestFromError(t *testing.T) {
	d := FromError(Errorf(KindTupletNestingTooDeep, Location{}, "depth 17"))
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, KindTupletNestingTooDeep, d.Kind)
	assert.Equal(t, -1, d.EventIndex)
	assert.True(t, HasErrors([]Diagnostic{d}))
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{
		Kind:     KindMeasureUnderflow,
		Severity: SeverityWarning,
		Track:    "vln",
		Voice:    "1",
		Measure:  2,
		Message:  "short by 1/4",
	}
	assert.Equal(t, "warning MeasureUnderflow [vln/1 m2 @-]: short by 1/4", d.String())
}

func TestCollectorAndCount(t *testing.T) {
	var c Collector
	c.Add(Diagnostic{Kind: KindRangeViolation, Severity: SeverityWarning})
	c.Add(Diagnostic{Kind: KindMeasureOverflow, Severity: SeverityWarning})
	c.Add(Diagnostic{Kind: KindRangeViolation, Severity: SeverityWarning})

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, Count(c.Items(), KindRangeViolation))
	assert.False(t, HasErrors(c.Items()))
}
