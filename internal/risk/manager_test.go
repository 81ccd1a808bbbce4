package risk

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/safety"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu          sync.Mutex
	assessments int
	transitions []safety.CircuitBreakerState
	retrains    int
}

func (o *recordingObserver) ObserveAssessment(ProposedTrade, *RiskCheckResult) {
	o.mu.Lock()
	o.assessments++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveBreakerState(_, to safety.CircuitBreakerState, _ string) {
	o.mu.Lock()
	o.transitions = append(o.transitions, to)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveModelRetrain(int) {
	o.mu.Lock()
	o.retrains++
	o.mu.Unlock()
}

func newTestManager(t *testing.T, mutate func(*Config), opts ...Option) (*Manager, *testClock) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := &testClock{t: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	m, err := NewManager(cfg, nil, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return m, clock
}

func longTrade(symbol string, size float64) ProposedTrade {
	return ProposedTrade{
		Symbol:     symbol,
		Side:       types.SideLong,
		Size:       size,
		EntryPrice: 100,
		StopLoss:   98,
		TakeProfit: 106,
	}
}

// closeTrades opens and closes one unit at 100 per pnl entry.
func closeTrades(t *testing.T, m *Manager, pnls ...float64) {
	t.Helper()
	for _, pnl := range pnls {
		tradeID, err := m.RecordFill(Fill{Symbol: "HIST", Side: types.SideLong, Size: 1, Price: 100})
		require.NoError(t, err)
		_, err = m.ClosePosition(tradeID, pnl)
		require.NoError(t, err)
	}
}

func checkNames(res *RiskCheckResult) []CheckName {
	names := make([]CheckName, len(res.Checks))
	for i, c := range res.Checks {
		names[i] = c.Name
	}
	return names
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPositionSize = 0
	_, err := NewManager(cfg, nil)
	require.Error(t, err)
	cat, ok := coreerrors.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, coreerrors.ErrorCategoryConfiguration, cat)
}

func TestConfigBoundsMinRiskReward(t *testing.T) {
	for _, rr := range []float64{1.0, 3.6} {
		cfg := DefaultConfig()
		cfg.MinRiskRewardRatio = rr
		assert.Error(t, cfg.Validate(), "min rr %.1f", rr)
	}
	cfg := DefaultConfig()
	cfg.MinRiskRewardRatio = 1.5
	assert.NoError(t, cfg.Validate())
}

func TestEstimateErr(t *testing.T) {
	assert.NoError(t, estimate(0.1, 5, 1).Err("win_rate"))

	err := estimate(0, 3, 30).Err("value_at_risk")
	require.Error(t, err)
	assert.ErrorIs(t, err, coreerrors.ErrInsufficientData)
	cat, ok := coreerrors.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, coreerrors.ErrorCategoryInsufficientData, cat)
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.05, cfg.MaxPositionSize)
	assert.Equal(t, 0.20, cfg.MaxPortfolioRisk)
	assert.Equal(t, 0.02, cfg.StopLossPercent)
	assert.Equal(t, 0.05, cfg.TakeProfitPercent)
	assert.Equal(t, 0.03, cfg.MaxDailyDrawdown)
	assert.Equal(t, 0.05, cfg.CircuitBreakerThreshold)
	assert.Equal(t, 2.0, cfg.MinRiskRewardRatio)
	assert.Equal(t, 0.01, cfg.MaxLossPerTrade)
	assert.Equal(t, 0.7, cfg.MaxCorrelation)
	assert.Equal(t, 0.30, cfg.MaxSectorConcentration)
	assert.False(t, cfg.EnableKellyCriterion)
	assert.Equal(t, 0.95, cfg.VarConfidenceLevel)
	assert.Equal(t, 1, cfg.VarTimeHorizonDays)
	assert.True(t, cfg.EnableMLCorrelation)
	assert.True(t, cfg.EnableMultiTimeframeVolatility)
	assert.True(t, cfg.EnableDynamicRRAdjustment)
	assert.Equal(t, time.Hour, cfg.CircuitBreakerCooldown)
	require.NoError(t, cfg.Validate())
}

func TestAssessRiskRewardRatioAndCheckOrder(t *testing.T) {
	m, _ := newTestManager(t, nil)

	res, err := m.AssessTradeRisk(longTrade("AAPL", 10), 100000, 0)
	require.NoError(t, err)

	assert.True(t, res.Approved)
	assert.Equal(t, 3.0, res.RiskRewardRatio)
	assert.Equal(t, 10.0, res.AdjustedSize)
	assert.Equal(t, RiskLow, res.RiskLevel)
	assert.Equal(t, []CheckName{
		CheckCircuitBreaker,
		CheckValidation,
		CheckRiskReward,
		CheckMaxLoss,
		CheckPositionSize,
		CheckPortfolioExposure,
		CheckSectorConcentration,
		CheckVolatility,
		CheckCorrelation,
		CheckDynamicRR,
		CheckVaR,
	}, checkNames(res))
	// volatility and VaR lack history
	assert.Len(t, res.Warnings, 2)
	assert.False(t, res.Volatility.Sufficient)
	assert.Equal(t, neutralVolatility, res.Volatility.Combined)
	assert.False(t, res.VaR.Sufficient)
	assert.Contains(t, res.Warnings[1], "need 30")
}

func TestAssessSizesToPositionCap(t *testing.T) {
	m, _ := newTestManager(t, nil)

	suggested := m.SuggestSize(100000, 100, 98)
	assert.InDelta(t, 50, suggested, 1e-9)

	res, err := m.AssessTradeRisk(longTrade("AAPL", 1000), 100000, 0)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.InDelta(t, 50, res.AdjustedSize, 1e-9)
	assert.Equal(t, 1000.0, res.RequestedSize)
	assert.Equal(t, RiskMedium, res.RiskLevel)
}

func TestSuggestSizeUnclamped(t *testing.T) {
	m, _ := newTestManager(t, func(c *Config) { c.MaxPositionSize = 1 })
	assert.InDelta(t, 1000, m.SuggestSize(100000, 100, 98), 1e-9)
	assert.Zero(t, m.SuggestSize(100000, 100, 100))
	assert.Zero(t, m.SuggestSize(0, 100, 98))
}

func TestAssessValidationRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProposedTrade)
		code   string
	}{
		{"missing stop", func(p *ProposedTrade) { p.StopLoss = 0 }, "STOP_LOSS_MISSING"},
		{"zero risk distance", func(p *ProposedTrade) { p.StopLoss = p.EntryPrice }, "ZERO_RISK_DISTANCE"},
		{"stop above long entry", func(p *ProposedTrade) { p.StopLoss = 101 }, "STOP_LOSS_WRONG_SIDE"},
		{"non-positive size", func(p *ProposedTrade) { p.Size = 0 }, "INVALID_QUANTITY_NON_POSITIVE"},
		{"empty symbol", func(p *ProposedTrade) { p.Symbol = "" }, "SYMBOL_EMPTY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, nil)
			trade := longTrade("AAPL", 10)
			tt.mutate(&trade)

			res, err := m.AssessTradeRisk(trade, 100000, 0)
			require.NoError(t, err)
			assert.False(t, res.Approved)
			assert.Equal(t, CheckValidation, res.RejectedBy)
			assert.Contains(t, res.RejectionReason, tt.code)
			assert.Zero(t, res.AdjustedSize)
			assert.Equal(t, RiskHigh, res.RiskLevel)
		})
	}
}

func TestAssessRejectsBadPortfolioValue(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.AssessTradeRisk(longTrade("AAPL", 10), 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &coreerrors.CoreError{Category: coreerrors.ErrorCategoryValidation}))

	_, err = m.AssessTradeRisk(longTrade("AAPL", 10), 100000, -1)
	require.Error(t, err)
}

func TestRiskRewardBelowMinimum(t *testing.T) {
	trade := longTrade("AAPL", 10)
	trade.TakeProfit = 103 // ratio 1.5

	m, _ := newTestManager(t, nil)
	res, err := m.AssessTradeRisk(trade, 100000, 0)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, RiskMedium, res.RiskLevel)
	assert.Contains(t, res.Warnings[0], "risk-reward 1.50 below minimum 2.00")

	strict, _ := newTestManager(t, func(c *Config) { c.StrictRiskReward = true })
	res, err = strict.AssessTradeRisk(trade, 100000, 0)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, CheckRiskReward, res.RejectedBy)
}

func TestPortfolioExposureCap(t *testing.T) {
	m, _ := newTestManager(t, nil)

	res, err := m.AssessTradeRisk(longTrade("AAPL", 50), 100000, 20000)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, CheckPortfolioExposure, res.RejectedBy)

	res, err = m.AssessTradeRisk(longTrade("AAPL", 50), 100000, 18000)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.InDelta(t, 20, res.AdjustedSize, 1e-9)
}

func TestSectorConcentrationShrinksToCap(t *testing.T) {
	m, _ := newTestManager(t, func(c *Config) {
		c.MaxPositionSize = 0.10
		c.MaxPortfolioRisk = 1.0
	})
	_, err := m.RecordFill(Fill{Symbol: "MSFT", Side: types.SideLong, Size: 250, Price: 100, Sector: "tech"})
	require.NoError(t, err)

	trade := longTrade("AAPL", 100)
	trade.Sector = "tech"
	res, err := m.AssessTradeRisk(trade, 100000, 25000)
	require.NoError(t, err)
	require.True(t, res.Approved)
	assert.InDelta(t, 50, res.AdjustedSize, 1e-9)

	after := m.GetRiskMetrics().SectorExposure["tech"] + res.AdjustedSize*trade.EntryPrice
	assert.InDelta(t, 30000, after, 1e-6)
}

func TestSectorConcentrationRejectsAtCap(t *testing.T) {
	m, _ := newTestManager(t, func(c *Config) {
		c.MaxPositionSize = 0.10
		c.MaxPortfolioRisk = 1.0
	})
	require.NoError(t, m.SetSymbolProfile("AAPL", types.SymbolProfile{Sector: "tech"}))
	_, err := m.RecordFill(Fill{Symbol: "MSFT", Side: types.SideLong, Size: 300, Price: 100, Sector: "tech"})
	require.NoError(t, err)

	res, err := m.AssessTradeRisk(longTrade("AAPL", 10), 100000, 30000)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, CheckSectorConcentration, res.RejectedBy)
}

func TestOpenBreakerAlwaysRejects(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.TripCircuitBreaker("operator halt")

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		trade := longTrade("AAPL", rng.Float64()*100+1)
		if i%2 == 1 {
			trade = ProposedTrade{Symbol: "AAPL", Side: types.SideShort, Size: 5, EntryPrice: 100, StopLoss: 103, TakeProfit: 90}
		}
		res, err := m.AssessTradeRisk(trade, 100000, 0)
		require.NoError(t, err)
		assert.False(t, res.Approved)
		assert.Equal(t, CheckCircuitBreaker, res.RejectedBy)
		assert.Equal(t, RiskCritical, res.RiskLevel)
		assert.Equal(t, []CheckName{CheckCircuitBreaker}, checkNames(res))
	}
}

func TestDrawdownTripsBreakerAndCooldownKeepsDayLoss(t *testing.T) {
	obs := &recordingObserver{}
	m, clock := newTestManager(t, nil, WithObserver(obs))
	require.NoError(t, m.SetPortfolioValue(100000))

	closeTrades(t, m, -5000)
	assert.Equal(t, safety.StateOpen, m.BreakerState())

	res, err := m.AssessTradeRisk(longTrade("AAPL", 10), 95000, 0)
	require.NoError(t, err)
	assert.False(t, res.Approved)

	// closing is still allowed while open
	closeTrades(t, m, 10)

	clock.Advance(61 * time.Minute)
	res, err = m.AssessTradeRisk(longTrade("AAPL", 10), 95000, 0)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, safety.StateClosed, m.BreakerState())

	// the cooldown does not forgive the losses already taken today
	assert.InDelta(t, 0.0499, m.GetRiskMetrics().DailyDrawdown, 1e-9)
	assert.Equal(t, RiskHigh, res.RiskLevel)
	assert.Contains(t, checkNames(res), CheckDailyDrawdown)

	closeTrades(t, m, -100)
	assert.Equal(t, safety.StateOpen, m.BreakerState())
	assert.Equal(t, []safety.CircuitBreakerState{safety.StateOpen, safety.StateClosed, safety.StateOpen}, obs.transitions)
}

func TestRepeatedCooldownsCannotExceedDayLoss(t *testing.T) {
	m, clock := newTestManager(t, nil)
	require.NoError(t, m.SetPortfolioValue(100000))

	closeTrades(t, m, -5000)
	require.Equal(t, safety.StateOpen, m.BreakerState())
	for i := 0; i < 3; i++ {
		clock.Advance(61 * time.Minute)
		res, err := m.AssessTradeRisk(longTrade("AAPL", 10), 100000, 0)
		require.NoError(t, err)
		require.True(t, res.Approved)

		closeTrades(t, m, -1)
		assert.Equal(t, safety.StateOpen, m.BreakerState(), "cycle %d", i)
	}
	assert.InDelta(t, 0.05003, m.GetRiskMetrics().DailyDrawdown, 1e-9)
}

func TestResetCircuitBreaker(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.TripCircuitBreaker("test")
	m.ResetCircuitBreaker()
	res, err := m.AssessTradeRisk(longTrade("AAPL", 10), 100000, 0)
	require.NoError(t, err)
	assert.True(t, res.Approved)
}

func TestResetCircuitBreakerForgivesDayLoss(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.SetPortfolioValue(100000))
	closeTrades(t, m, -5000)
	require.Equal(t, safety.StateOpen, m.BreakerState())

	m.ResetCircuitBreaker()
	assert.Zero(t, m.GetRiskMetrics().DailyDrawdown)

	closeTrades(t, m, -100)
	assert.Equal(t, safety.StateClosed, m.BreakerState())
}

func TestBreakerStateReportsElapsedCooldown(t *testing.T) {
	m, clock := newTestManager(t, nil)
	m.TripCircuitBreaker("halt")
	assert.Equal(t, safety.StateOpen, m.BreakerState())
	assert.Equal(t, safety.StateOpen, m.GetRiskMetrics().CircuitBreaker.State)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, safety.StateClosed, m.BreakerState())
	assert.Equal(t, safety.StateClosed, m.GetRiskMetrics().CircuitBreaker.State)
}

func TestOpenBreakerRejectsReduceOnly(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.RecordFill(Fill{Symbol: "AAPL", Side: types.SideLong, Size: 10, Price: 100})
	require.NoError(t, err)
	m.TripCircuitBreaker("halt")

	res, err := m.AssessTradeRisk(ProposedTrade{
		Symbol: "AAPL", Side: types.SideShort, Size: 5, EntryPrice: 101, ReduceOnly: true,
	}, 100000, 1000)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, CheckCircuitBreaker, res.RejectedBy)
	assert.Equal(t, RiskCritical, res.RiskLevel)
}

func TestReduceOnlyThroughClosedBreaker(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.RecordFill(Fill{Symbol: "AAPL", Side: types.SideLong, Size: 10, Price: 100})
	require.NoError(t, err)

	res, err := m.AssessTradeRisk(ProposedTrade{
		Symbol: "AAPL", Side: types.SideShort, Size: 25, EntryPrice: 101, ReduceOnly: true,
	}, 100000, 1000)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, 10.0, res.AdjustedSize)
	assert.Equal(t, []CheckName{CheckCircuitBreaker, CheckValidation}, checkNames(res))
}

func TestAssessReductionWhileBreakerOpen(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.RecordFill(Fill{Symbol: "AAPL", Side: types.SideLong, Size: 10, Price: 100})
	require.NoError(t, err)
	m.TripCircuitBreaker("halt")

	res := m.AssessReduction(ProposedTrade{Symbol: "AAPL", Side: types.SideShort, Size: 25, EntryPrice: 101})
	assert.True(t, res.Approved)
	assert.Equal(t, 10.0, res.AdjustedSize)
	assert.Equal(t, RiskHigh, res.RiskLevel)
	assert.Equal(t, safety.StateOpen, m.BreakerState())

	// nothing to reduce on the same side
	res = m.AssessReduction(ProposedTrade{Symbol: "AAPL", Side: types.SideLong, Size: 5, EntryPrice: 101})
	assert.False(t, res.Approved)
	assert.Equal(t, CheckValidation, res.RejectedBy)
}

func TestDailyDrawdownWarning(t *testing.T) {
	m, clock := newTestManager(t, nil)
	require.NoError(t, m.SetPortfolioValue(100000))
	closeTrades(t, m, -3500)
	require.Equal(t, safety.StateClosed, m.BreakerState())

	res, err := m.AssessTradeRisk(longTrade("AAPL", 10), 96500, 0)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, RiskHigh, res.RiskLevel)
	assert.Contains(t, checkNames(res), CheckDailyDrawdown)

	clock.Advance(24 * time.Hour)
	res, err = m.AssessTradeRisk(longTrade("AAPL", 10), 96500, 0)
	require.NoError(t, err)
	assert.NotContains(t, checkNames(res), CheckDailyDrawdown)
}

func TestAdjustedSizeNeverExceedsRequested(t *testing.T) {
	m, _ := newTestManager(t, func(c *Config) { c.EnableKellyCriterion = true })
	closeTrades(t, m, 3, -1, 2, 4, -2, 1, 5, -1, 2, 3, -1, 2, 1, 4, -3, 2, 1, 2, -1, 3)
	_, err := m.RecordFill(Fill{Symbol: "MSFT", Side: types.SideLong, Size: 20, Price: 100, Sector: "tech"})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		entry := 1 + rng.Float64()*500
		side := types.SideLong
		stop := entry * (1 - 0.001 - rng.Float64()*0.2)
		target := entry * (1 + 0.001 + rng.Float64()*0.5)
		if rng.Intn(2) == 0 {
			side = types.SideShort
			stop, target = 2*entry-stop, entry*(1-0.001-rng.Float64()*0.5)
		}
		trade := ProposedTrade{
			Symbol:     []string{"AAPL", "MSFT", "XOM"}[rng.Intn(3)],
			Side:       side,
			Size:       rng.Float64() * 5000,
			EntryPrice: entry,
			StopLoss:   stop,
			TakeProfit: target,
			Sector:     []string{"", "tech", "energy"}[rng.Intn(3)],
		}
		res, err := m.AssessTradeRisk(trade, 10000+rng.Float64()*1e6, rng.Float64()*50000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.AdjustedSize, 0.0)
		assert.LessOrEqual(t, res.AdjustedSize, res.RequestedSize)
		if !res.Approved {
			assert.Zero(t, res.AdjustedSize)
			assert.NotEmpty(t, res.RejectedBy)
		}
	}
}

func TestKellySizing(t *testing.T) {
	wins := []float64{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	losses := []float64{-1, -1, -1, -1, -1, -1, -1, -1}

	m, _ := newTestManager(t, func(c *Config) {
		c.EnableKellyCriterion = true
		c.MaxPositionSize = 1
		c.MaxLossPerTrade = 1
		c.MaxPortfolioRisk = 1
		c.MaxSectorConcentration = 1
	})
	closeTrades(t, m, append(wins, losses...)...)

	res, err := m.AssessTradeRisk(longTrade("AAPL", 1000), 100000, 0)
	require.NoError(t, err)
	require.True(t, res.Approved)
	assert.InDelta(t, 0.4, res.KellyFraction.Value, 1e-9)
	// half-Kelly: 0.5 × 0.4 × 100000 / 100
	assert.InDelta(t, 200, res.AdjustedSize, 1e-6)
}

func TestKellyRejectsNegativeEdge(t *testing.T) {
	m, _ := newTestManager(t, func(c *Config) { c.EnableKellyCriterion = true })
	pnls := make([]float64, 20)
	for i := range pnls {
		pnls[i] = -1
	}
	closeTrades(t, m, pnls...)

	res, err := m.AssessTradeRisk(longTrade("AAPL", 10), 100000, 0)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, CheckKelly, res.RejectedBy)
}

func TestLifecycleAndMetrics(t *testing.T) {
	m, _ := newTestManager(t, nil)

	pnls := make([]float64, 0, 15)
	for i := 0; i < 10; i++ {
		pnls = append(pnls, 100)
	}
	for i := 0; i < 5; i++ {
		pnls = append(pnls, -50)
	}
	closeTrades(t, m, pnls...)

	rm := m.GetRiskMetrics()
	assert.Equal(t, 15, rm.TotalTrades)
	assert.Equal(t, 10, rm.Wins)
	assert.Equal(t, 5, rm.Losses)
	assert.True(t, rm.WinRate.Sufficient)
	assert.InDelta(t, 10.0/15.0, rm.WinRate.Value, 1e-12)
	assert.True(t, rm.Expectancy.Sufficient)
	assert.InDelta(t, 50, rm.Expectancy.Value, 1e-9)
	assert.True(t, rm.SharpeRatio.Sufficient)
	assert.False(t, rm.PortfolioVaR.Sufficient)
	assert.Equal(t, 0, rm.OpenPositions)
	assert.Empty(t, rm.SectorExposure)
	assert.Equal(t, safety.StateClosed, rm.CircuitBreaker.State)
}

func TestMetricsSentinelsOnEmptyHistory(t *testing.T) {
	m, _ := newTestManager(t, nil)
	rm := m.GetRiskMetrics()
	assert.False(t, rm.WinRate.Sufficient)
	assert.False(t, rm.Expectancy.Sufficient)
	assert.False(t, rm.SharpeRatio.Sufficient)
	assert.False(t, rm.PortfolioVaR.Sufficient)
	assert.Equal(t, "insufficient data (0/30)", rm.PortfolioVaR.String())
	assert.Equal(t, 2.0, rm.CurrentMinRR)

	closeTrades(t, m, 10)
	rm = m.GetRiskMetrics()
	assert.True(t, rm.Expectancy.Sufficient)
	assert.False(t, rm.SharpeRatio.Sufficient)
}

func TestRecordFillAveragesIntoPosition(t *testing.T) {
	m, _ := newTestManager(t, nil)
	tradeID, err := m.RecordFill(Fill{Symbol: "AAPL", Side: types.SideLong, Size: 10, Price: 100, Sector: "tech"})
	require.NoError(t, err)

	_, err = m.RecordFill(Fill{TradeID: tradeID, Symbol: "AAPL", Side: types.SideLong, Size: 10, Price: 110})
	require.NoError(t, err)

	p, ok := m.Position(tradeID)
	require.True(t, ok)
	assert.Equal(t, 20.0, p.Size)
	assert.InDelta(t, 105, p.EntryPrice, 1e-9)
	assert.InDelta(t, 2100, m.GetRiskMetrics().SectorExposure["tech"], 1e-9)

	_, err = m.RecordFill(Fill{TradeID: tradeID, Symbol: "AAPL", Side: types.SideShort, Size: 1, Price: 110})
	assert.ErrorIs(t, err, coreerrors.ErrInvalidFill)

	_, err = m.RecordFill(Fill{Symbol: "AAPL", Side: types.SideLong, Size: -1, Price: 110})
	assert.ErrorIs(t, err, coreerrors.ErrInvalidFill)
}

func TestClosePositionUnknown(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.ClosePosition("missing", 10)
	assert.ErrorIs(t, err, coreerrors.ErrPositionNotFound)
}

func TestClosePositionReleasesSectorExposure(t *testing.T) {
	m, _ := newTestManager(t, nil)
	tradeID, err := m.RecordFill(Fill{Symbol: "XOM", Side: types.SideShort, Size: 5, Price: 80, Sector: "energy"})
	require.NoError(t, err)
	assert.InDelta(t, 400, m.GetRiskMetrics().SectorExposure["energy"], 1e-9)

	outcome, err := m.ClosePosition(tradeID, -8)
	require.NoError(t, err)
	assert.InDelta(t, -0.02, outcome.Return, 1e-12)
	assert.False(t, outcome.Win())
	assert.NotContains(t, m.GetRiskMetrics().SectorExposure, "energy")
}

func TestUpdatePriceMarksPositionsAndRejectsStaleTicks(t *testing.T) {
	m, _ := newTestManager(t, nil)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tradeID, err := m.RecordFill(Fill{Symbol: "AAPL", Side: types.SideShort, Size: 10, Price: 100})
	require.NoError(t, err)

	require.NoError(t, m.UpdatePrice(types.Tick{Symbol: "AAPL", Price: 95, Timestamp: at}))
	p, _ := m.Position(tradeID)
	assert.InDelta(t, 50, p.UnrealizedPnL, 1e-9)

	err = m.UpdatePrice(types.Tick{Symbol: "AAPL", Price: 96, Timestamp: at})
	assert.ErrorIs(t, err, coreerrors.ErrStaleTick)

	err = m.UpdatePrice(types.Tick{Symbol: "AAPL", Price: -1, Timestamp: at.Add(time.Second)})
	assert.ErrorIs(t, err, coreerrors.ErrInvalidTick)

	// other symbols keep their own ordering
	require.NoError(t, m.UpdatePrice(types.Tick{Symbol: "MSFT", Price: 300, Timestamp: at}))
}

func TestPriceHistoryIsBounded(t *testing.T) {
	m, _ := newTestManager(t, func(c *Config) { c.PriceHistorySize = 10 })
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		require.NoError(t, m.UpdatePrice(types.Tick{Symbol: "AAPL", Price: 100 + float64(i), Timestamp: at.Add(time.Duration(i) * time.Minute)}))
	}
	assert.Equal(t, 10, m.priceHistory["AAPL"].Len())
}

func TestConcurrentOperations(t *testing.T) {
	m, _ := newTestManager(t, nil)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			symbol := []string{"AAPL", "MSFT", "XOM", "JPM", "NVDA", "AMZN", "META", "TSLA"}[g]
			for i := 0; i < 50; i++ {
				_ = m.UpdatePrice(types.Tick{Symbol: symbol, Price: 100 + float64(i%7), Timestamp: at.Add(time.Duration(i) * time.Minute)})
				res, err := m.AssessTradeRisk(longTrade(symbol, 5), 100000, 0)
				if err == nil && res.Approved && i%10 == 0 {
					tradeID, err := m.RecordFill(Fill{Symbol: symbol, Side: types.SideLong, Size: res.AdjustedSize, Price: 100})
					if err == nil {
						_, _ = m.ClosePosition(tradeID, float64(i%3-1))
					}
				}
				_ = m.GetRiskMetrics()
			}
		}(g)
	}
	wg.Wait()

	rm := m.GetRiskMetrics()
	assert.Equal(t, rm.Wins+rm.Losses, rm.TotalTrades)
	assert.GreaterOrEqual(t, rm.CurrentMinRR, 1.5)
	assert.LessOrEqual(t, rm.CurrentMinRR, 3.5)
}
