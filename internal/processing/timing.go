package processing

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"dotsnatch-go/internal/types"
)

// TimedFrames is the rolling window length per stage.
const TimedFrames = 256

type window struct {
	samples [TimedFrames]float64
	n       int
	next    int
}

func (w *window) add(ms float64) {
	w.samples[w.next] = ms
	w.next = (w.next + 1) % TimedFrames
	if w.n < TimedFrames {
		w.n++
	}
}

// Timings keeps the most recent TimedFrames durations per pipeline stage.
type Timings struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewTimings() *Timings {
	return &Timings{windows: make(map[string]*window)}
}

func (t *Timings) Observe(stage string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[stage]
	if !ok {
		w = &window{}
		t.windows[stage] = w
	}
	w.add(float64(d) / float64(time.Millisecond))
}

func (t *Timings) Summary() map[string]types.TimingSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]types.TimingSummary, len(t.windows))
	for stage, w := range t.windows {
		out[stage] = summarize(w.samples[:w.n])
	}
	return out
}

func summarize(samples []float64) types.TimingSummary {
	if len(samples) == 0 {
		return types.TimingSummary{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	summary := types.TimingSummary{
		Count:  len(sorted),
		MeanMS: stat.Mean(sorted, nil),
		P50MS:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95MS:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
		MaxMS:  sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		summary.StdMS = stat.StdDev(sorted, nil)
	}
	return summary
}
