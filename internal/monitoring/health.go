package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-decision-core/internal/risk"
	"github.com/ducminhle1904/crypto-decision-core/internal/safety"
)

// HealthChecker tracks whether the decision core is accepting new risk
type HealthChecker struct {
	mu             sync.RWMutex
	started        time.Time
	lastAssessment time.Time
	lastRejection  string
	breaker        safety.CircuitBreakerState
	breakerReason  string
	approved       int
	rejected       int
}

// HealthStatus is the JSON body served by HealthChecker
type HealthStatus struct {
	Status         string                     `json:"status"`
	Timestamp      time.Time                  `json:"timestamp"`
	LastAssessment time.Time                  `json:"last_assessment,omitempty"`
	LastRejection  string                     `json:"last_rejection,omitempty"`
	CircuitBreaker safety.CircuitBreakerState `json:"circuit_breaker"`
	BreakerReason  string                     `json:"breaker_reason,omitempty"`
	Approved       int                        `json:"approved"`
	Rejected       int                        `json:"rejected"`
	Uptime         string                     `json:"uptime"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

// RecordAssessment notes an assessment outcome
func (h *HealthChecker) RecordAssessment(result *risk.RiskCheckResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastAssessment = result.Timestamp
	if result.Approved {
		h.approved++
	} else {
		h.rejected++
		h.lastRejection = result.RejectionReason
	}
}

// RecordBreaker notes a circuit breaker transition
func (h *HealthChecker) RecordBreaker(state safety.CircuitBreakerState, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breaker = state
	h.breakerReason = reason
}

// Status reports "healthy", or "degraded" while the breaker is open.
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.breaker == safety.StateOpen {
		status = "degraded"
	}
	return HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		LastAssessment: h.lastAssessment,
		LastRejection:  h.lastRejection,
		CircuitBreaker: h.breaker,
		BreakerReason:  h.breakerReason,
		Approved:       h.approved,
		Rejected:       h.rejected,
		Uptime:         time.Since(h.started).Round(time.Second).String(),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()
	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
