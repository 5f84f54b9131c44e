//go:build test

package engine

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
)

var typingPatterns = [][]string{
	{"m", "me", "mer", "merh", "merha", "merhab", "merhaba"},
	{"k", "ka", "kal", "kale", "kalem", "kalemli", "kalemlik"},
	{"bir k", "bir ki", "bir kit", "bir kita", "bir kitap"},
	{"iyi ", "iyi g", "iyi gü", "iyi gün"},
	{"x", "xy", "xyz", "xyzz", "xyzzy"},
}

// memPerOp runs ops and reports retained bytes per prediction after GC.
func memPerOp(t *testing.T, ops func() int) (float64, int) {
	t.Helper()
	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baseGoroutines := runtime.NumGoroutine()

	n := ops()

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	delta := int64(final.Alloc) - int64(baseline.Alloc)
	return float64(delta) / float64(n), runtime.NumGoroutine() - baseGoroutines
}

func TestMemoryPredictSequential(t *testing.T) {
	for _, iters := range []int{100, 500, 1000} {
		t.Run(fmt.Sprintf("iterations_%d", iters), func(t *testing.T) {
			e := newTestEngine(t)
			perOp, leaked := memPerOp(t, func() int {
				n := 0
				for i := 0; i < iters; i++ {
					for _, p := range typingPatterns {
						for _, text := range p {
							e.Predict(t.Context(), PredictRequest{Text: text, UserID: "mem"})
							n++
						}
					}
				}
				return n
			})
			t.Logf("iterations=%d mem_per_op=%.2f goroutine_delta=%d", iters, perOp, leaked)
			if perOp > 1000 {
				t.Errorf("excessive memory retained per prediction: %.2f bytes", perOp)
			}
			if leaked > 2 {
				t.Errorf("goroutine leak detected: %d goroutines", leaked)
			}
		})
	}
}

func TestMemoryPredictConcurrent(t *testing.T) {
	for _, workers := range []int{2, 4, 8} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			e := newTestEngine(t)
			perOp, leaked := memPerOp(t, func() int {
				var wg sync.WaitGroup
				per := 1000 / workers
				for w := 0; w < workers; w++ {
					wg.Add(1)
					go func(w int) {
						defer wg.Done()
						user := fmt.Sprintf("u%d", w)
						for i := 0; i < per; i++ {
							for _, text := range typingPatterns[i%len(typingPatterns)] {
								e.Predict(t.Context(), PredictRequest{Text: text, UserID: user})
							}
						}
					}(w)
				}
				wg.Wait()
				return per * workers
			})
			t.Logf("workers=%d mem_per_op=%.2f goroutine_delta=%d", workers, perOp, leaked)
			if perOp > 2000 {
				t.Errorf("excessive memory retained per prediction: %.2f bytes", perOp)
			}
			if leaked > 3 {
				t.Errorf("goroutine leak detected: %d goroutines", leaked)
			}
		})
	}
}
