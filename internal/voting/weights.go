package voting

import (
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-decision-core/internal/stats"
)

const (
	minMultiplier = 0.25
	maxMultiplier = 2.0
)

type cachedWeight struct {
	value      float64
	computedAt time.Time
}

// weightTable memoises per-strategy multipliers for ttl. Recomputation is a
// pure function of the performance source, so concurrent callers racing on a
// stale entry store equal values.
type weightTable struct {
	mu         sync.RWMutex
	entries    map[string]cachedWeight
	ttl        time.Duration
	minSamples int
	source     PerformanceSource
	now        func() time.Time
}

func newWeightTable(source PerformanceSource, ttl time.Duration, minSamples int, now func() time.Time) *weightTable {
	return &weightTable{
		entries:    make(map[string]cachedWeight),
		ttl:        ttl,
		minSamples: minSamples,
		source:     source,
		now:        now,
	}
}

func (w *weightTable) multiplier(strategy string) float64 {
	now := w.now()

	w.mu.RLock()
	entry, ok := w.entries[strategy]
	w.mu.RUnlock()
	if ok && now.Sub(entry.computedAt) < w.ttl {
		return entry.value
	}

	value := performanceMultiplier(w.source.StrategyPerformance(strategy), w.minSamples)

	w.mu.Lock()
	w.entries[strategy] = cachedWeight{value: value, computedAt: now}
	w.mu.Unlock()
	return value
}

func (w *weightTable) invalidate() {
	w.mu.Lock()
	w.entries = make(map[string]cachedWeight)
	w.mu.Unlock()
}

func (w *weightTable) snapshot() map[string]float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]float64, len(w.entries))
	for k, v := range w.entries {
		out[k] = v.value
	}
	return out
}

// performanceMultiplier maps win rate and average return to a weight in
// [0.25, 2.0]. A strategy without enough history votes at face value.
func performanceMultiplier(p Performance, minSamples int) float64 {
	if p.Samples < minSamples {
		return 1.0
	}
	returnFactor := 1 + stats.Clamp(p.AvgReturn*10, -0.5, 0.5)
	return stats.Clamp((0.5+p.WinRate)*returnFactor, minMultiplier, maxMultiplier)
}
