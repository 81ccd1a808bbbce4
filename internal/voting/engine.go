package voting

import (
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/crypto-decision-core/internal/logger"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

// Vote is one signal's contribution to a round
type Vote struct {
	StrategyName string           `json:"strategy_name"`
	Signal       types.SignalType `json:"signal_type"`
	Confidence   float64          `json:"confidence"`
	Weight       float64          `json:"weight"`
	Abstained    bool             `json:"abstained"`
}

// VotingResult is the consensus decision for one round of signals
type VotingResult struct {
	Symbol            string           `json:"symbol"`
	FinalSignal       types.SignalType `json:"final_signal"`
	Confidence        float64          `json:"confidence"`
	ConsensusStrength float64          `json:"consensus_strength"`
	Votes             []Vote           `json:"votes"`

	// RawSignal and RawConfidence keep the winning side before the
	// consensus-threshold downgrade.
	RawSignal     types.SignalType `json:"raw_signal"`
	RawConfidence float64          `json:"raw_confidence"`
	Downgraded    bool             `json:"downgraded"`
	Reason        string           `json:"reason"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Observer receives every voting result
type Observer interface {
	ObserveVote(result *VotingResult)
}

// Engine reconciles independent strategy signals into one decision. It is
// stateless per call apart from the TTL-cached weight table.
type Engine struct {
	config   Config
	logger   *logger.Logger
	tracker  *PerformanceTracker
	weights  *weightTable
	observer Observer
	now      func() time.Time
}

// Option customises an Engine
type Option func(*Engine)

// WithClock overrides the time source used for weight expiry
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObserver registers a result observer
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates a voting engine
func NewEngine(cfg Config, log *logger.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		config:  cfg,
		logger:  log.With("voting"),
		tracker: NewPerformanceTracker(cfg.PerformanceWindow),
		now:     time.Now,
	}
	e.weights = newWeightTable(e.tracker, cfg.WeightTTL, cfg.MinPerformanceSamples, func() time.Time { return e.now() })
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RecordOutcome feeds a realised return back into the strategy's performance.
// The cached weight refreshes when its TTL lapses.
func (e *Engine) RecordOutcome(strategy string, ret float64) {
	e.tracker.RecordOutcome(strategy, ret)
}

// Tracker exposes the built-in performance tracker
func (e *Engine) Tracker() *PerformanceTracker {
	return e.tracker
}

// Weights returns the currently cached multipliers
func (e *Engine) Weights() map[string]float64 {
	return e.weights.snapshot()
}

// InvalidateWeights forces the next vote to recompute every multiplier
func (e *Engine) InvalidateWeights() {
	e.weights.invalidate()
}

// Vote aggregates signals into a consensus. It never fails: a missing quorum
// or a tie degrades to HOLD.
func (e *Engine) Vote(signals []types.TradingSignal) *VotingResult {
	result := &VotingResult{
		FinalSignal: types.SignalHold,
		RawSignal:   types.SignalHold,
		Votes:       make([]Vote, 0, len(signals)),
		Timestamp:   e.now(),
	}
	if len(signals) > 0 {
		result.Symbol = signals[0].Symbol
	}
	defer e.notify(result)

	if len(signals) == 0 {
		result.Reason = "no signals"
		return result
	}

	var (
		totals      = map[types.SignalType]float64{}
		confSums    = map[types.SignalType]float64{}
		confCounts  = map[types.SignalType]int{}
		totalWeight float64
		qualifying  int
	)

	for _, sig := range signals {
		conf := normaliseConfidence(sig.Confidence)
		weight := conf * e.weights.multiplier(sig.StrategyName)
		abstained := conf < e.config.MinConfidence

		result.Votes = append(result.Votes, Vote{
			StrategyName: sig.StrategyName,
			Signal:       sig.Type,
			Confidence:   conf,
			Weight:       weight,
			Abstained:    abstained,
		})

		// abstentions widen the base but never back a side
		totalWeight += weight
		if abstained {
			continue
		}
		qualifying++
		totals[sig.Type] += weight
		confSums[sig.Type] += conf
		confCounts[sig.Type]++
	}

	if qualifying < e.config.MinStrategies {
		result.Reason = fmt.Sprintf("insufficient base: %d of %d required strategies qualified", qualifying, e.config.MinStrategies)
		return result
	}
	if totalWeight <= 0 {
		result.Reason = "no voting weight"
		return result
	}

	winner, winWeight, tied := pickWinner(totals)
	consensus := winWeight / totalWeight

	avgConf := 0.0
	if n := confCounts[winner]; n > 0 {
		avgConf = confSums[winner] / float64(n)
	}
	confidence := normaliseConfidence(avgConf * consensus)

	result.RawSignal = winner
	result.RawConfidence = confidence
	result.Confidence = confidence
	result.ConsensusStrength = normaliseConfidence(consensus)
	result.FinalSignal = winner
	result.Reason = fmt.Sprintf("%s consensus %.2f", winner, consensus)
	if tied {
		result.Reason = fmt.Sprintf("tie for the top weight, HOLD consensus %.2f", consensus)
	}

	if consensus < e.config.ConsensusThreshold && winner != types.SignalHold {
		result.FinalSignal = types.SignalHold
		result.Downgraded = true
		result.Reason = fmt.Sprintf("%s consensus %.2f below threshold %.2f", winner, consensus, e.config.ConsensusThreshold)
	}

	return result
}

func (e *Engine) notify(result *VotingResult) {
	e.logger.Debug("vote %s: final=%s raw=%s consensus=%.3f confidence=%.3f (%s)",
		result.Symbol, result.FinalSignal, result.RawSignal, result.ConsensusStrength, result.Confidence, result.Reason)
	if e.observer != nil {
		e.observer.ObserveVote(result)
	}
}

// pickWinner returns the side with the largest total weight. Any tie for the
// top resolves to HOLD, weighted by HOLD's own total.
func pickWinner(totals map[types.SignalType]float64) (types.SignalType, float64, bool) {
	best := types.SignalHold
	bestWeight := -1.0
	tied := false
	for _, st := range []types.SignalType{types.SignalHold, types.SignalBuy, types.SignalSell} {
		w, ok := totals[st]
		if !ok {
			continue
		}
		switch {
		case w > bestWeight:
			best, bestWeight, tied = st, w, false
		case w == bestWeight:
			tied = true
		}
	}
	if bestWeight < 0 {
		return types.SignalHold, 0, false
	}
	if tied {
		return types.SignalHold, totals[types.SignalHold], true
	}
	return best, bestWeight, false
}

func normaliseConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
