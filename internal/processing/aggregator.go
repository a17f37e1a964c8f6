package processing

import (
	"time"

	"dotsnatch-go/internal/types"
	"dotsnatch-go/internal/zone"
)

// Aggregator accumulates detection events for the live snapshot and the
// series writer. It is owned by a single goroutine.
type Aggregator struct {
	capacity   int
	frames     uint64
	found      uint64
	stale      uint64
	zoneCounts map[string]uint64
	last       *types.DetectionEvent
	history    []types.DetectionEvent
}

func NewAggregator(capacity int) *Aggregator {
	if capacity < 1 {
		capacity = 1
	}
	return &Aggregator{
		capacity:   capacity,
		zoneCounts: make(map[string]uint64),
		history:    make([]types.DetectionEvent, 0, capacity),
	}
}

// AddEvent records ev and reports whether the history buffer is full and
// should be written out.
func (a *Aggregator) AddEvent(ev types.DetectionEvent) bool {
	a.frames++
	if ev.Stale {
		a.stale++
	} else if ev.Found {
		a.found++
	}
	label := ev.Zone
	if label == "" {
		label = zone.None
	}
	a.zoneCounts[label]++
	last := ev
	a.last = &last
	a.history = append(a.history, ev)
	return len(a.history) >= a.capacity
}

// History returns the buffered events since the last Reset.
func (a *Aggregator) History() []types.DetectionEvent {
	return a.history
}

// Reset clears the event history; running counters are kept.
func (a *Aggregator) Reset() {
	a.history = a.history[:0]
}

func (a *Aggregator) SnapshotCopy(timings map[string]types.TimingSummary) types.UISnapshot {
	counts := make(map[string]uint64, len(a.zoneCounts))
	for k, v := range a.zoneCounts {
		counts[k] = v
	}
	var last *types.DetectionEvent
	if a.last != nil {
		copied := *a.last
		last = &copied
	}
	return types.UISnapshot{
		Type:       "snapshot",
		Frames:     a.frames,
		Found:      a.found,
		Stale:      a.stale,
		ZoneCounts: counts,
		Last:       last,
		Timings:    timings,
	}
}

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}
