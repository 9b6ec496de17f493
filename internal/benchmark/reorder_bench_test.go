package benchmark

import (
	"math/rand"
	"testing"

	"github.com/vnykmshr/frameflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/frameflow/pkg/streaming/reorder"
	"github.com/vnykmshr/frameflow/pkg/timing/stopwatch"
)

// shuffledWindow returns 1..n where each value is displaced by at most
// window positions, the arrival pattern of a pool with window workers.
func shuffledWindow(n, window int, seed int64) []uint64 {
	rng := rand.New(rand.NewSource(seed))
	seqs := make([]uint64, n)
	for i := range seqs {
		seqs[i] = uint64(i + 1)
	}
	for start := 0; start < n; start += window {
		end := start + window
		if end > n {
			end = n
		}
		part := seqs[start:end]
		rng.Shuffle(len(part), func(i, j int) { part[i], part[j] = part[j], part[i] })
	}
	return seqs
}

// BenchmarkReorderBuffer inserts shuffled completions and drains what is
// ready after each insert.
func BenchmarkReorderBuffer(b *testing.B) {
	for _, window := range []int{2, 8, 32} {
		b.Run(workerLabel(window), func(b *testing.B) {
			seqs := shuffledWindow(4096, window, 1)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				buf := reorder.NewBuffer(0)
				for _, s := range seqs {
					buf.Insert(workerpool.Completion{Seq: s})
					for {
						if _, ok := buf.PopReady(); !ok {
							break
						}
					}
				}
			}
		})
	}
}

// BenchmarkStopwatch measures the per-frame timing overhead of a stage.
func BenchmarkStopwatch(b *testing.B) {
	sw := stopwatch.New()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sw.Tick()
		sw.Start()
		_, _ = sw.Stop()
	}
}
