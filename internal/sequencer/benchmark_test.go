package sequencer

import (
	"testing"

	"github.com/cbegin/tenuto-go/internal/rational"
	"github.com/cbegin/tenuto-go/internal/score"
)

func BenchmarkMerge(b *testing.B) {
	lists := make([][]score.Event, 16)
	for v := range lists {
		for i := 0; i < 256; i++ {
			lists[v] = append(lists[v], ev(v/2, v%2, i, rational.MustNew(int64(i), 16)))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq := New(Merge(lists))
		for {
			if _, _, ok := seq.Next(); !ok {
				break
			}
		}
	}
}
