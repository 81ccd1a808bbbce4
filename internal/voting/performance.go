package voting

import (
	"sync"

	"github.com/ducminhle1904/crypto-decision-core/internal/ringbuf"
	"github.com/ducminhle1904/crypto-decision-core/internal/stats"
)

// Performance summarises a strategy's recent realised results
type Performance struct {
	Samples   int     `json:"samples"`
	WinRate   float64 `json:"win_rate"`
	AvgReturn float64 `json:"avg_return"`
}

// PerformanceSource supplies per-strategy performance to the weight table
type PerformanceSource interface {
	StrategyPerformance(strategy string) Performance
}

// PerformanceTracker keeps a bounded window of realised returns per strategy
type PerformanceTracker struct {
	mu      sync.RWMutex
	window  int
	returns map[string]*ringbuf.Buffer[float64]
}

// NewPerformanceTracker creates a tracker remembering window returns per strategy
func NewPerformanceTracker(window int) *PerformanceTracker {
	return &PerformanceTracker{
		window:  window,
		returns: make(map[string]*ringbuf.Buffer[float64]),
	}
}

// RecordOutcome appends a realised fractional return for strategy
func (p *PerformanceTracker) RecordOutcome(strategy string, ret float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf, ok := p.returns[strategy]
	if !ok {
		buf = ringbuf.New[float64](p.window)
		p.returns[strategy] = buf
	}
	buf.Push(ret)
}

// StrategyPerformance implements PerformanceSource
func (p *PerformanceTracker) StrategyPerformance(strategy string) Performance {
	p.mu.RLock()
	defer p.mu.RUnlock()

	buf, ok := p.returns[strategy]
	if !ok || buf.Len() == 0 {
		return Performance{}
	}
	rets := buf.Slice()
	wins := 0
	for _, r := range rets {
		if r > 0 {
			wins++
		}
	}
	return Performance{
		Samples:   len(rets),
		WinRate:   float64(wins) / float64(len(rets)),
		AvgReturn: stats.Mean(rets),
	}
}
