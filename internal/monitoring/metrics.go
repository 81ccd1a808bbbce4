package monitoring

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ducminhle1904/crypto-decision-core/internal/risk"
	"github.com/ducminhle1904/crypto-decision-core/internal/safety"
	"github.com/ducminhle1904/crypto-decision-core/internal/voting"
)

const namespace = "decision_core"

// Recorder exports voting and risk events as Prometheus metrics. It
// implements both voting.Observer and risk.Observer.
type Recorder struct {
	// Voting metrics
	votesTotal        *prometheus.CounterVec
	consensusStrength prometheus.Histogram

	// Risk metrics
	assessmentsTotal *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	riskLevels       *prometheus.CounterVec
	sizeRatio        prometheus.Histogram
	valueAtRisk      prometheus.Gauge
	minRiskReward    prometheus.Gauge

	// Safety metrics
	breakerOpen        prometheus.Gauge
	breakerTransitions *prometheus.CounterVec

	// Correlation model metrics
	modelRetrains   prometheus.Counter
	trainingSamples prometheus.Gauge

	gatherer prometheus.Gatherer
	health   *HealthChecker
}

var (
	_ voting.Observer = (*Recorder)(nil)
	_ risk.Observer   = (*Recorder)(nil)
)

// NewRecorder registers all metrics with reg. Pass a fresh registry per
// instance; registering twice on one registry panics.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		votesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "rounds_total",
			Help:      "Voting rounds by final signal and downgrade flag",
		}, []string{"signal", "downgraded"}),
		consensusStrength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "consensus_strength",
			Help:      "Distribution of consensus strength",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		assessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Trade assessments by outcome",
		}, []string{"outcome"}),
		rejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Rejected assessments by triggering check",
		}, []string{"check"}),
		riskLevels: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "risk_level_total",
			Help:      "Assessments by resulting risk level",
		}, []string{"level"}),
		sizeRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "size_ratio",
			Help:      "Approved size as a fraction of the requested size",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		valueAtRisk: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "value_at_risk",
			Help:      "Latest sufficient VaR estimate as a loss fraction",
		}),
		minRiskReward: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "min_risk_reward",
			Help:      "Current dynamic minimum risk-reward ratio",
		}),
		breakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "circuit_breaker_open",
			Help:      "1 while the drawdown circuit breaker is open",
		}),
		breakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions by target state",
		}, []string{"to"}),
		modelRetrains: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "retrains_total",
			Help:      "Correlation model retrains",
		}),
		trainingSamples: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "training_samples",
			Help:      "Samples used by the latest correlation model",
		}),
		gatherer: reg,
		health:   NewHealthChecker(),
	}
}

// ObserveVote implements voting.Observer
func (r *Recorder) ObserveVote(result *voting.VotingResult) {
	r.votesTotal.WithLabelValues(result.FinalSignal.String(), strconv.FormatBool(result.Downgraded)).Inc()
	r.consensusStrength.Observe(result.ConsensusStrength)
}

// ObserveAssessment implements risk.Observer
func (r *Recorder) ObserveAssessment(_ risk.ProposedTrade, result *risk.RiskCheckResult) {
	r.riskLevels.WithLabelValues(result.RiskLevel.String()).Inc()
	r.minRiskReward.Set(result.MinRiskReward)
	if result.VaR.Sufficient {
		r.valueAtRisk.Set(result.VaR.Value)
	}
	if result.Approved {
		r.assessmentsTotal.WithLabelValues("approved").Inc()
		if result.RequestedSize > 0 {
			r.sizeRatio.Observe(result.AdjustedSize / result.RequestedSize)
		}
	} else {
		r.assessmentsTotal.WithLabelValues("rejected").Inc()
		r.rejectionsTotal.WithLabelValues(string(result.RejectedBy)).Inc()
	}
	r.health.RecordAssessment(result)
}

// ObserveBreakerState implements risk.Observer
func (r *Recorder) ObserveBreakerState(_, to safety.CircuitBreakerState, reason string) {
	r.breakerTransitions.WithLabelValues(to.String()).Inc()
	if to == safety.StateOpen {
		r.breakerOpen.Set(1)
	} else {
		r.breakerOpen.Set(0)
	}
	r.health.RecordBreaker(to, reason)
}

// ObserveModelRetrain implements risk.Observer
func (r *Recorder) ObserveModelRetrain(samples int) {
	r.modelRetrains.Inc()
	r.trainingSamples.Set(float64(samples))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry to path in the node-exporter textfile
// format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.gatherer)
}

// Health returns the health checker fed by this recorder
func (r *Recorder) Health() *HealthChecker {
	return r.health
}
