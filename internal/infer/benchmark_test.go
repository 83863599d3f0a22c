package infer

import (
	"testing"

	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

func BenchmarkLinearize(b *testing.B) {
	var measures []VoiceMeasure
	start := rational.Zero
	for m := 1; m <= 64; m++ {
		entries := []score.Entry{
			&score.TupletEntry{Actual: 3, Normal: 2, Entries: []score.Entry{
				note('c', oct(4), "8"), note('d', nil, ""), note('e', nil, ""),
			}},
			note('f', nil, "4"), note('g', nil, "2"),
		}
		measures = append(measures, measure(m, start, rational.One, entries...))
		start, _ = start.Add(rational.One)
	}
	v := voiceOf(measures...)
	cfg := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := Linearize(v, cfg); res.Err != nil {
			b.Fatalf("linearize failed: %v", res.Err)
		}
	}
}
