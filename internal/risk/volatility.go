package risk

import (
	"time"

	"github.com/ducminhle1904/crypto-decision-core/internal/ringbuf"
	"github.com/ducminhle1904/crypto-decision-core/internal/stats"
)

// VolatilityRegime buckets the combined volatility estimate
type VolatilityRegime int

const (
	RegimeNormal VolatilityRegime = iota
	RegimeLow
	RegimeHigh
)

func (r VolatilityRegime) String() string {
	switch r {
	case RegimeLow:
		return "low"
	case RegimeHigh:
		return "high"
	default:
		return "normal"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r VolatilityRegime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

const (
	lowVolatilityThreshold  = 0.01
	highVolatilityThreshold = 0.04
	// used when no timeframe has enough returns
	neutralVolatility    = 0.02
	minVolatilityReturns = 5
)

type timeframe struct {
	name   string
	width  time.Duration
	weight float64
}

var volatilityTimeframes = []timeframe{
	{name: "1h", width: time.Hour, weight: 0.2},
	{name: "1d", width: 24 * time.Hour, weight: 0.5},
	{name: "1w", width: 7 * 24 * time.Hour, weight: 0.3},
}

// VolatilityAssessment is the per-symbol volatility estimate used by the
// pipeline. ByTimeframe holds only the timeframes with enough data.
type VolatilityAssessment struct {
	Symbol      string             `json:"symbol"`
	ByTimeframe map[string]float64 `json:"by_timeframe,omitempty"`
	Combined    float64            `json:"combined"`
	Regime      VolatilityRegime   `json:"regime"`
	Sufficient  bool               `json:"sufficient"`
}

func classifyVolatility(v float64) VolatilityRegime {
	switch {
	case v < lowVolatilityThreshold:
		return RegimeLow
	case v > highVolatilityThreshold:
		return RegimeHigh
	default:
		return RegimeNormal
	}
}

// pricePoint is one observation in a symbol's rolling history
type pricePoint struct {
	Timestamp time.Time
	Price     float64
	Volume    float64
}

// resample keeps the last price of every bucket of the given width.
func resample(points []pricePoint, width time.Duration) []float64 {
	var (
		out    []float64
		bucket time.Time
	)
	for i, p := range points {
		b := p.Timestamp.Truncate(width)
		if i > 0 && b.Equal(bucket) {
			out[len(out)-1] = p.Price
			continue
		}
		bucket = b
		out = append(out, p.Price)
	}
	return out
}

func assessVolatility(symbol string, history *ringbuf.Buffer[pricePoint], multiTimeframe bool) VolatilityAssessment {
	va := VolatilityAssessment{Symbol: symbol, Combined: neutralVolatility, Regime: RegimeNormal}
	if history == nil {
		return va
	}
	points := history.Slice()

	if !multiTimeframe {
		prices := make([]float64, len(points))
		for i, p := range points {
			prices[i] = p.Price
		}
		returns := stats.Returns(prices)
		if len(returns) < minVolatilityReturns {
			return va
		}
		va.Combined = stats.StdDev(returns)
		va.Regime = classifyVolatility(va.Combined)
		va.Sufficient = true
		return va
	}

	var weighted, weights float64
	for _, tf := range volatilityTimeframes {
		returns := stats.Returns(resample(points, tf.width))
		if len(returns) < minVolatilityReturns {
			continue
		}
		v := stats.StdDev(returns)
		if va.ByTimeframe == nil {
			va.ByTimeframe = make(map[string]float64, len(volatilityTimeframes))
		}
		va.ByTimeframe[tf.name] = v
		weighted += tf.weight * v
		weights += tf.weight
	}
	if weights == 0 {
		return va
	}
	va.Combined = weighted / weights
	va.Regime = classifyVolatility(va.Combined)
	va.Sufficient = true
	return va
}
