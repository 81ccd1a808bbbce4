package safety

import (
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
)

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s CircuitBreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CircuitBreakerState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CLOSED":
		*s = StateClosed
	case "OPEN":
		*s = StateOpen
	default:
		return fmt.Errorf("unknown circuit breaker state %q", text)
	}
	return nil
}

// CircuitBreakerConfig holds configuration for a drawdown circuit breaker
type CircuitBreakerConfig struct {
	Threshold float64       // realised drawdown fraction that opens the breaker
	Cooldown  time.Duration // quiet period before an open breaker closes itself
}

// CircuitBreaker halts new risk while realised drawdown is excessive. It
// opens when drawdown reaches the threshold and closes again once Cooldown
// elapses without a deeper drawdown, or on Reset.
type CircuitBreaker struct {
	config        CircuitBreakerConfig
	state         CircuitBreakerState
	trips         uint32
	openedAt      time.Time
	nextAttempt   time.Time
	lastDrawdown  float64
	reason        string
	mutex         sync.RWMutex
	name          string
	onStateChange func(from, to CircuitBreakerState, reason string)
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.Threshold <= 0 {
		config.Threshold = 0.05
	}
	if config.Cooldown <= 0 {
		config.Cooldown = time.Hour
	}
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		name:   name,
	}
}

// SetStateChangeCallback sets a callback invoked after every transition.
// The callback runs synchronously after the breaker lock is released.
func (cb *CircuitBreaker) SetStateChangeCallback(callback func(from, to CircuitBreakerState, reason string)) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onStateChange = callback
}

// Evaluate feeds the current realised drawdown. It opens a closed breaker
// at the threshold and, while open, treats a deeper drawdown as a further
// trigger that restarts the cooldown. It reports whether the breaker is open.
func (cb *CircuitBreaker) Evaluate(drawdown float64, at time.Time) bool {
	cb.mutex.Lock()
	from := cb.state
	switch cb.state {
	case StateClosed:
		if drawdown >= cb.config.Threshold {
			cb.toOpen(at, drawdown, fmt.Sprintf("drawdown %.2f%% reached threshold %.2f%%", drawdown*100, cb.config.Threshold*100))
		}
	case StateOpen:
		if drawdown > cb.lastDrawdown {
			cb.lastDrawdown = drawdown
			cb.nextAttempt = at.Add(cb.config.Cooldown)
		}
	}
	to, reason := cb.state, cb.reason
	cb.mutex.Unlock()

	cb.fire(from, to, reason)
	return to == StateOpen
}

// Allow reports whether new risk may be taken at time at. An open breaker
// whose cooldown has elapsed closes here.
func (cb *CircuitBreaker) Allow(at time.Time) bool {
	cb.mutex.Lock()
	from := cb.state
	if cb.state == StateOpen && !at.Before(cb.nextAttempt) {
		cb.toClosed("cooldown elapsed")
	}
	to, reason := cb.state, cb.reason
	cb.mutex.Unlock()

	cb.fire(from, to, reason)
	return to == StateClosed
}

// ForceOpen opens the breaker manually
func (cb *CircuitBreaker) ForceOpen(reason string, at time.Time) {
	cb.mutex.Lock()
	from := cb.state
	cb.toOpen(at, cb.lastDrawdown, reason)
	cb.mutex.Unlock()

	cb.fire(from, StateOpen, reason)
}

// Reset closes the breaker immediately
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	from := cb.state
	cb.toClosed("manual reset")
	cb.mutex.Unlock()

	cb.fire(from, StateClosed, "manual reset")
}

func (cb *CircuitBreaker) toOpen(at time.Time, drawdown float64, reason string) {
	if cb.state != StateOpen {
		cb.trips++
		cb.openedAt = at
	}
	cb.state = StateOpen
	cb.lastDrawdown = drawdown
	cb.nextAttempt = at.Add(cb.config.Cooldown)
	cb.reason = reason
}

func (cb *CircuitBreaker) toClosed(reason string) {
	cb.state = StateClosed
	cb.lastDrawdown = 0
	cb.reason = reason
}

func (cb *CircuitBreaker) fire(from, to CircuitBreakerState, reason string) {
	if from == to {
		return
	}
	cb.mutex.RLock()
	callback := cb.onStateChange
	cb.mutex.RUnlock()
	if callback != nil {
		callback(from, to, reason)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

// StateAt returns the state Allow would act on at time at, without
// transitioning. An open breaker whose cooldown has elapsed reads CLOSED.
func (cb *CircuitBreaker) StateAt(at time.Time) CircuitBreakerState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	if cb.state == StateOpen && !at.Before(cb.nextAttempt) {
		return StateClosed
	}
	return cb.state
}

// CircuitBreakerStats holds statistics about a circuit breaker
type CircuitBreakerStats struct {
	Name         string              `json:"name"`
	State        CircuitBreakerState `json:"state"`
	Trips        uint32              `json:"trips"`
	OpenedAt     time.Time           `json:"opened_at"`
	NextAttempt  time.Time           `json:"next_attempt"`
	LastDrawdown float64             `json:"last_drawdown"`
	Reason       string              `json:"reason"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	return CircuitBreakerStats{
		Name:         cb.name,
		State:        cb.state,
		Trips:        cb.trips,
		OpenedAt:     cb.openedAt,
		NextAttempt:  cb.nextAttempt,
		LastDrawdown: cb.lastDrawdown,
		Reason:       cb.reason,
	}
}
