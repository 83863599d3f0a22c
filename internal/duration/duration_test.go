package duration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/tenuto-go/internal/diag"
	"github.com/cbegin/tenuto-go/internal/rational"
)

func TestParseAndValue(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{":1", "1"},
		{"2", "1/2"},
		{":4", "1/4"},
		{"4.", "3/8"},
		{"4..", "7/16"},
		{"8...", "15/64"},
		{"16", "1/16"},
		{"3/8", "3/8"},
		{"1/12", "1/12"},
		{"2/1", "2"},
	}
	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			spec, err := Parse(tt.token)
			require.NoError(t, err)
			v, err := spec.Value(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, token := range []string{"", ":", "0", "3", "-4", "0/4", "4/0", "x", "4.x"} {
		t.Run(token, func(t *testing.T) {
			_, err := Parse(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrInvalidDuration), "%v", err)
		})
	}
}

func TestValueRejectsPolicyViolations(t *testing.T) {
	p := DefaultPolicy()

	_, err := Spec{Base: rational.MustNew(1, 4), Dots: 4}.Value(p)
	assert.True(t, errors.Is(err, diag.ErrInvalidDuration))

	_, err = Spec{Base: rational.MustNew(1, 4), Dots: -1}.Value(p)
	assert.True(t, errors.Is(err, diag.ErrInvalidDuration))

	_, err = Spec{Base: rational.Zero}.Value(p)
	assert.True(t, errors.Is(err, diag.ErrInvalidDuration))

	v, err := Spec{Base: rational.MustNew(1, 4), Dots: 4}.Value(Policy{MaxDots: 5})
	require.NoError(t, err)
	assert.Equal(t, "31/64", v.String())
}

func TestCanonicalTokensRoundTrip(t *testing.T) {
	p := DefaultPolicy()
	for _, token := range []string{"1", "2", "2.", "4", "4.", "4..", "8", "8.", "16...", "32", "1/12", "1/3", "5/16", "2/1"} {
		t.Run(token, func(t *testing.T) {
			spec, err := Parse(token)
			require.NoError(t, err)
			v, err := spec.Value(p)
			require.NoError(t, err)
			back, err := Encode(v, p)
			require.NoError(t, err)
			assert.Equal(t, token, back.String())
			assert.Equal(t, spec, back)
		})
	}
}

func TestNonCanonicalTokensEncodeToEqualValue(t *testing.T) {
	p := DefaultPolicy()
	for _, token := range []string{"3/8", "1/8", "2/8", "3/8.", "7/16"} {
		t.Run(token, func(t *testing.T) {
			spec, err := Parse(token)
			require.NoError(t, err)
			v, err := spec.Value(p)
			require.NoError(t, err)

			back, err := Encode(v, p)
			require.NoError(t, err)
			again, err := back.Value(p)
			require.NoError(t, err)
			assert.True(t, v.Equal(again))

			// The canonical spelling is a fixed point.
			reparsed, err := Parse(back.String())
			require.NoError(t, err)
			assert.Equal(t, back, reparsed)
		})
	}
}

func TestEncodeRespectsMaxDots(t *testing.T) {
	v := rational.MustNew(15, 64) // 8...
	spec, err := Encode(v, Policy{MaxDots: 2})
	require.NoError(t, err)
	assert.Equal(t, "15/64", spec.String())

	spec, err = Encode(v, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "8...", spec.String())
}
