// Package risk validates, sizes and gates proposed trades against portfolio
// state. A Manager is the single owner of price history, open positions,
// sector exposure, trade outcomes, the correlation model and the drawdown
// circuit breaker.
package risk

import (
	"sync"
	"sync/atomic"
	"time"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/logger"
	"github.com/ducminhle1904/crypto-decision-core/internal/ringbuf"
	"github.com/ducminhle1904/crypto-decision-core/internal/safety"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

const (
	component          = "risk"
	unclassifiedSector = "UNCLASSIFIED"
)

// Manager implements trade risk assessment. All mutating operations take the
// write lock; GetRiskMetrics reads under the read lock.
type Manager struct {
	config    Config
	logger    *logger.Logger
	validator *safety.Validator
	breaker   *safety.CircuitBreaker
	observer  Observer
	now       func() time.Time

	mu             sync.RWMutex
	positions      map[string]*Position
	sectorExposure map[string]float64
	priceHistory   map[string]*ringbuf.Buffer[pricePoint]
	profiles       map[string]types.SymbolProfile
	trades         *ringbuf.Buffer[TradeOutcome]
	varHistory     *ringbuf.Buffer[float64]
	wins, losses   int
	currentMinRR   float64

	// correlation model
	training     *ringbuf.Buffer[trainingSample]
	lastSampled  map[string]time.Time
	sinceRetrain int
	model        atomic.Pointer[correlationModel]

	// daily drawdown accounting, UTC days
	day            time.Time
	dailyRealized  float64
	dailyBaseline  float64
	dayStartEquity float64
	lastEquity     float64
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the wall clock, e.g. for replays and tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithObserver registers a receiver for assessment and breaker events
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates a risk manager. It fails only on invalid configuration.
func NewManager(cfg Config, log *logger.Logger, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, coreerrors.NewConfigurationError(component, "new_manager", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		config:         cfg,
		logger:         log.With(component),
		validator:      safety.NewValidator(),
		now:            time.Now,
		positions:      make(map[string]*Position),
		sectorExposure: make(map[string]float64),
		priceHistory:   make(map[string]*ringbuf.Buffer[pricePoint]),
		profiles:       make(map[string]types.SymbolProfile),
		trades:         ringbuf.New[TradeOutcome](cfg.TradeHistorySize),
		varHistory:     ringbuf.New[float64](cfg.VarHistorySize),
		currentMinRR:   cfg.MinRiskRewardRatio,
		training:       ringbuf.New[trainingSample](cfg.CorrelationTrainingSize),
		lastSampled:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.breaker = safety.NewCircuitBreaker("daily_drawdown", safety.CircuitBreakerConfig{
		Threshold: cfg.CircuitBreakerThreshold,
		Cooldown:  cfg.CircuitBreakerCooldown,
	})
	// runs with m.mu held; must not call back into the manager
	m.breaker.SetStateChangeCallback(func(from, to safety.CircuitBreakerState, reason string) {
		if to == safety.StateOpen {
			m.logger.Error("🚨 circuit breaker %s -> %s: %s", from, to, reason)
		} else {
			m.logger.Info("circuit breaker %s -> %s: %s", from, to, reason)
		}
		if m.observer != nil {
			m.observer.ObserveBreakerState(from, to, reason)
		}
	})
	return m, nil
}

// Config returns the configuration the manager was built with
func (m *Manager) Config() Config {
	return m.config
}

// BreakerState returns the effective circuit breaker state: an open breaker
// past its cooldown reports CLOSED.
func (m *Manager) BreakerState() safety.CircuitBreakerState {
	return m.breaker.StateAt(m.now())
}

// ResetCircuitBreaker closes the breaker and restarts drawdown measurement
// from the current realised P&L. A cooldown close keeps the day's baseline,
// so only an operator reset forgives the losses already taken.
func (m *Manager) ResetCircuitBreaker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaker.Reset()
	m.dailyBaseline = m.dailyRealized
}

// TripCircuitBreaker opens the breaker manually
func (m *Manager) TripCircuitBreaker(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaker.ForceOpen("manual: "+reason, m.now())
}

// SetPortfolioValue records the latest portfolio value used as the daily
// drawdown reference.
func (m *Manager) SetPortfolioValue(value float64) error {
	if res := m.validator.ValidateBalance(value, "portfolio_value"); !res.Valid || value == 0 {
		return coreerrors.NewValidationError(component, "set_portfolio_value", "portfolio value must be positive and finite")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observeEquity(value, m.now())
	return nil
}

// SetSymbolProfile registers static reference data for a symbol
func (m *Manager) SetSymbolProfile(symbol string, profile types.SymbolProfile) error {
	if res := m.validator.ValidateSymbol(symbol); !res.Valid {
		return coreerrors.NewValidationError(component, "set_symbol_profile", res.Message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[symbol] = profile
	return nil
}

// rollDay starts a new accounting day when at falls on a later UTC date.
func (m *Manager) rollDay(at time.Time) {
	day := at.UTC().Truncate(24 * time.Hour)
	if !day.After(m.day) {
		return
	}
	m.day = day
	m.dailyRealized = 0
	m.dailyBaseline = 0
	m.dayStartEquity = m.lastEquity
}

func (m *Manager) observeEquity(value float64, at time.Time) {
	m.lastEquity = value
	m.rollDay(at)
	if m.dayStartEquity == 0 {
		m.dayStartEquity = value
	}
}

// dailyDrawdown is the realised loss since the day's baseline as a fraction
// of the day's starting equity. The baseline is zero unless an operator
// reset the breaker during the day.
func (m *Manager) dailyDrawdown() float64 {
	if m.dayStartEquity <= 0 {
		return 0
	}
	loss := -(m.dailyRealized - m.dailyBaseline)
	if loss <= 0 {
		return 0
	}
	return loss / m.dayStartEquity
}

func (m *Manager) sectorFor(symbol, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p, ok := m.profiles[symbol]; ok && p.Sector != "" {
		return p.Sector
	}
	return unclassifiedSector
}

func (m *Manager) history(symbol string) *ringbuf.Buffer[pricePoint] {
	h, ok := m.priceHistory[symbol]
	if !ok {
		h = ringbuf.New[pricePoint](m.config.PriceHistorySize)
		m.priceHistory[symbol] = h
	}
	return h
}
