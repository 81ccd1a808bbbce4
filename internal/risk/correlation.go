package risk

import (
	"math"
	"time"

	"github.com/ducminhle1904/crypto-decision-core/internal/stats"
)

// CorrelationSource names the estimator behind a correlation figure
type CorrelationSource string

const (
	CorrelationFromModel   CorrelationSource = "model"
	CorrelationFromPearson CorrelationSource = "pearson"
	CorrelationFromSector  CorrelationSource = "sector"
)

const (
	minCorrelationPairs    = 20
	sameSectorCorrelation  = 0.65
	crossSectorCorrelation = 0.25
	// correlations at or above this are rejected outright
	rejectCorrelation = 0.95
	ridgeLambda       = 1e-3
	neutralCapRatio   = 0.5
)

// Feature vector layout: intercept, same_sector, volatility_similarity,
// price_correlation, volume_correlation, market_cap_ratio.
const correlationFeatureCount = 6

// correlationModel is an immutable snapshot; a retrain publishes a new one.
type correlationModel struct {
	coef      []float64
	version   int
	samples   int
	trainedAt time.Time
}

func (cm *correlationModel) predict(x []float64) float64 {
	var y float64
	for i, c := range cm.coef {
		y += c * x[i]
	}
	return stats.Clamp(y, -1, 1)
}

type trainingSample struct {
	features []float64
	label    float64
}

// CorrelationModelStats describes the current regression snapshot
type CorrelationModelStats struct {
	Trained         bool      `json:"trained"`
	Version         int       `json:"version"`
	TrainingSamples int       `json:"training_samples"`
	BufferedSamples int       `json:"buffered_samples"`
	Coefficients    []float64 `json:"coefficients,omitempty"`
	TrainedAt       time.Time `json:"trained_at,omitempty"`
}

type pairInputs struct {
	sameSector bool
	volSim     float64
	capRatio   float64
}

func (p pairInputs) vector(priceCorr, volumeCorr float64) []float64 {
	same := 0.0
	if p.sameSector {
		same = 1
	}
	v := make([]float64, 0, correlationFeatureCount)
	return append(v, 1, same, p.volSim, priceCorr, volumeCorr, p.capRatio)
}

// alignedSeries holds two histories joined on identical timestamps
type alignedSeries struct {
	returnsA, returnsB []float64
	volumeA, volumeB   []float64
	lastAt             time.Time
}

func alignHistories(a, b []pricePoint) alignedSeries {
	byTime := make(map[int64]pricePoint, len(b))
	for _, p := range b {
		byTime[p.Timestamp.UnixNano()] = p
	}
	var (
		out          alignedSeries
		prevA, prevB pricePoint
		havePrev     bool
	)
	for _, pa := range a {
		pb, found := byTime[pa.Timestamp.UnixNano()]
		if !found {
			continue
		}
		if havePrev {
			out.returnsA = append(out.returnsA, (pa.Price-prevA.Price)/prevA.Price)
			out.returnsB = append(out.returnsB, (pb.Price-prevB.Price)/prevB.Price)
			if prevA.Volume > 0 && prevB.Volume > 0 && pa.Volume > 0 && pb.Volume > 0 {
				out.volumeA = append(out.volumeA, (pa.Volume-prevA.Volume)/prevA.Volume)
				out.volumeB = append(out.volumeB, (pb.Volume-prevB.Volume)/prevB.Volume)
			}
		}
		prevA, prevB, havePrev = pa, pb, true
		out.lastAt = pa.Timestamp
	}
	return out
}

// halfCorrelation returns the Pearson correlation of the older or newer half
// of two aligned series, or 0 when that half is too short to say anything.
func halfCorrelation(x, y []float64, newer bool) float64 {
	n := len(x)
	half := n / 2
	if half < minCorrelationPairs/2 {
		return 0
	}
	var r float64
	var ok bool
	if newer {
		r, ok = stats.Pearson(x[n-half:], y[n-half:])
	} else {
		r, ok = stats.Pearson(x[:half], y[:half])
	}
	if !ok {
		return 0
	}
	return r
}

func volatilitySimilarity(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi == 0 {
		return 1
	}
	return 1 - math.Abs(a-b)/hi
}

func marketCapRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return neutralCapRatio
	}
	return math.Min(a, b) / math.Max(a, b)
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// estimateCorrelation returns the correlation between a candidate symbol and
// an open position. It prefers the trained model, then the raw Pearson
// coefficient, then a sector heuristic. Caller holds m.mu.
func (m *Manager) estimateCorrelation(symbol, sector string, vol VolatilityAssessment, pos *Position) (float64, CorrelationSource) {
	sameSector := sector != unclassifiedSector && sector == pos.Sector
	heuristic := crossSectorCorrelation
	if sameSector {
		heuristic = sameSectorCorrelation
	}

	ha, hb := m.priceHistory[symbol], m.priceHistory[pos.Symbol]
	if ha == nil || hb == nil {
		return heuristic, CorrelationFromSector
	}
	aligned := alignHistories(ha.Slice(), hb.Slice())

	inputs := pairInputs{
		sameSector: sameSector,
		volSim:     volatilitySimilarity(vol.Combined, assessVolatility(pos.Symbol, hb, m.config.EnableMultiTimeframeVolatility).Combined),
		capRatio:   marketCapRatio(m.profiles[symbol].MarketCap, m.profiles[pos.Symbol].MarketCap),
	}

	pearson, pearsonOK := 0.0, false
	if len(aligned.returnsA) >= minCorrelationPairs {
		pearson, pearsonOK = stats.Pearson(aligned.returnsA, aligned.returnsB)
	}

	if m.config.EnableMLCorrelation {
		if pearsonOK {
			features := inputs.vector(
				halfCorrelation(aligned.returnsA, aligned.returnsB, false),
				halfCorrelation(aligned.volumeA, aligned.volumeB, false),
			)
			m.addTrainingSample(pairKey(symbol, pos.Symbol), aligned.lastAt, features, pearson)
		}
		if model := m.model.Load(); model != nil {
			x := inputs.vector(
				halfCorrelation(aligned.returnsA, aligned.returnsB, true),
				halfCorrelation(aligned.volumeA, aligned.volumeB, true),
			)
			return model.predict(x), CorrelationFromModel
		}
	}
	if pearsonOK {
		return pearson, CorrelationFromPearson
	}
	return heuristic, CorrelationFromSector
}

// addTrainingSample records one labelled pair observation, at most once per
// new aligned timestamp, and retrains when enough new samples arrived.
func (m *Manager) addTrainingSample(key string, at time.Time, features []float64, label float64) {
	if last, seen := m.lastSampled[key]; seen && !at.After(last) {
		return
	}
	m.lastSampled[key] = at
	m.training.Push(trainingSample{features: features, label: label})
	m.sinceRetrain++
	if m.sinceRetrain >= m.config.CorrelationRetrainEvery {
		m.retrainCorrelationModel()
	}
}

func (m *Manager) retrainCorrelationModel() {
	m.sinceRetrain = 0
	samples := m.training.Slice()
	X := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		X[i] = s.features
		y[i] = s.label
	}
	coef, err := stats.RidgeRegression(X, y, ridgeLambda)
	if err != nil {
		m.logger.LogWarning("correlation", "retrain on %d samples failed, keeping previous model: %v", len(samples), err)
		return
	}
	version := 1
	if prev := m.model.Load(); prev != nil {
		version = prev.version + 1
	}
	m.model.Store(&correlationModel{coef: coef, version: version, samples: len(samples), trainedAt: m.now()})
	m.logger.Info("correlation model v%d trained on %d samples", version, len(samples))
	if m.observer != nil {
		m.observer.ObserveModelRetrain(len(samples))
	}
}

func (m *Manager) correlationModelStats() CorrelationModelStats {
	st := CorrelationModelStats{BufferedSamples: m.training.Len()}
	if model := m.model.Load(); model != nil {
		st.Trained = true
		st.Version = model.version
		st.TrainingSamples = model.samples
		st.Coefficients = append([]float64(nil), model.coef...)
		st.TrainedAt = model.trainedAt
	}
	return st
}
