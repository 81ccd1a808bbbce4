package risk

import (
	"math"
)

// GetRiskMetrics returns a consistent snapshot of the manager's statistics.
// Estimates below their sample minimum are flagged insufficient.
func (m *Manager) GetRiskMetrics() RiskMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := m.trades.Slice()
	returns := tradeReturns(trades)
	closed := m.wins + m.losses

	now := m.now()
	rm := RiskMetrics{
		TotalTrades:        closed,
		Wins:               m.wins,
		Losses:             m.losses,
		Expectancy:         expectancy(trades),
		SharpeRatio:        sharpeRatio(returns),
		PortfolioVaR:       valueAtRisk(returns, m.config.VarConfidenceLevel, m.config.VarTimeHorizonDays),
		CurrentMinRR:       m.currentMinRR,
		OpenPositions:      len(m.positions),
		SectorExposure:     make(map[string]float64, len(m.sectorExposure)),
		VolatilityBySymbol: make(map[string]float64, len(m.priceHistory)),
		DailyRealizedPnL:   m.dailyRealized,
		DailyDrawdown:      m.dailyDrawdown(),
		CircuitBreaker:     m.breaker.GetStats(),
		CorrelationModel:   m.correlationModelStats(),
		Timestamp:          now,
	}
	rm.CircuitBreaker.State = m.breaker.StateAt(now)
	if closed > 0 {
		rm.WinRate = estimate(float64(m.wins)/float64(closed), closed, 1)
	} else {
		rm.WinRate = estimate(0, 0, 1)
	}
	for sector, exposure := range m.sectorExposure {
		rm.SectorExposure[sector] = exposure
	}
	for _, p := range m.positions {
		rm.TotalExposure += p.Notional()
	}
	for symbol, h := range m.priceHistory {
		rm.VolatilityBySymbol[symbol] = assessVolatility(symbol, h, m.config.EnableMultiTimeframeVolatility).Combined
	}
	return rm
}

// VaRHistory returns the recorded VaR estimates, oldest first
func (m *Manager) VaRHistory() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.varHistory.Slice()
}

// SuggestSize returns the fixed-fractional size risking RiskPerTrade of the
// portfolio between entry and stop, clamped to the position cap.
func (m *Manager) SuggestSize(portfolioValue, entry, stop float64) float64 {
	distance := math.Abs(entry - stop)
	if !(portfolioValue > 0) || !(entry > 0) || distance == 0 || math.IsNaN(distance) {
		return 0
	}
	size := m.config.RiskPerTrade * portfolioValue / distance
	return math.Min(size, m.config.MaxPositionSize*portfolioValue/entry)
}
