package risk

import (
	"math"

	"github.com/ducminhle1904/crypto-decision-core/internal/stats"
)

const (
	minVaRTrades      = 30
	minKellyTrades    = 20
	minSharpeTrades   = 2
	minRRAdjustTrades = 10
	recentTradeWindow = 5

	minDynamicRR = 1.5
	maxDynamicRR = 3.5
	kellyHaircut = 0.5
)

func tradeReturns(trades []TradeOutcome) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.Return
	}
	return out
}

// valueAtRisk blends historical and parametric VaR over trade returns and
// scales by the square root of the horizon. The result is a loss fraction.
func valueAtRisk(returns []float64, confidence float64, horizonDays int) Estimate {
	if len(returns) < minVaRTrades {
		return estimate(0, len(returns), minVaRTrades)
	}
	historical := math.Max(0, -stats.Quantile(returns, 1-confidence))
	parametric := math.Max(0, -(stats.Mean(returns) - stats.ZScore(confidence)*stats.StdDev(returns)))
	v := (historical + parametric) / 2 * math.Sqrt(float64(horizonDays))
	return estimate(v, len(returns), minVaRTrades)
}

// sharpeRatio is the per-trade ratio of mean to standard deviation of
// returns. Zero dispersion yields 0.
func sharpeRatio(returns []float64) Estimate {
	if len(returns) < minSharpeTrades {
		return estimate(0, len(returns), minSharpeTrades)
	}
	sd := stats.StdDev(returns)
	if sd == 0 {
		return estimate(0, len(returns), minSharpeTrades)
	}
	return estimate(stats.Mean(returns)/sd, len(returns), minSharpeTrades)
}

func expectancy(trades []TradeOutcome) Estimate {
	if len(trades) == 0 {
		return estimate(0, 0, 1)
	}
	var sum float64
	for _, t := range trades {
		sum += t.PnL
	}
	return estimate(sum/float64(len(trades)), len(trades), 1)
}

func winRate(trades []TradeOutcome) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// kellyFraction computes f = (w·b − (1−w)) / b from the average winning and
// losing returns. Without any losses the edge is the win rate itself.
func kellyFraction(trades []TradeOutcome) Estimate {
	if len(trades) < minKellyTrades {
		return estimate(0, len(trades), minKellyTrades)
	}
	var winSum, lossSum float64
	var wins, losses int
	for _, t := range trades {
		if t.Win() {
			winSum += t.Return
			wins++
		} else {
			lossSum += -t.Return
			losses++
		}
	}
	w := float64(wins) / float64(len(trades))
	var f float64
	switch {
	case wins == 0:
		f = -1
	case losses == 0 || lossSum == 0:
		f = w
	default:
		b := (winSum / float64(wins)) / (lossSum / float64(losses))
		f = (w*b - (1 - w)) / b
	}
	return estimate(f, len(trades), minKellyTrades)
}

// dynamicMinRR adjusts the base minimum risk-reward ratio to recent
// performance and the volatility regime, bounded to [1.5, 3.5].
func dynamicMinRR(base float64, trades []TradeOutcome, regime VolatilityRegime) float64 {
	if len(trades) < minRRAdjustTrades {
		return stats.Clamp(base, minDynamicRR, maxDynamicRR)
	}
	rr := base
	switch wr := winRate(trades); {
	case wr > 0.65:
		rr *= 0.9
	case wr < 0.45:
		rr *= 1.2
	}
	var recent float64
	for _, t := range trades[len(trades)-recentTradeWindow:] {
		recent += t.PnL
	}
	if recent < 0 {
		rr *= 1.1
	}
	switch regime {
	case RegimeHigh:
		rr *= 1.15
	case RegimeLow:
		rr *= 0.95
	}
	return stats.Clamp(rr, minDynamicRR, maxDynamicRR)
}
