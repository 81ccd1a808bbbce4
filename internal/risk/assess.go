package risk

import (
	"fmt"
	"math"
	"sort"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/safety"
)

// AssessTradeRisk runs the proposed trade through the check pipeline in a
// fixed order: circuit breaker, validation, risk-reward, max loss, position
// cap, portfolio exposure, sector concentration, volatility, correlation,
// dynamic risk-reward, VaR and Kelly sizing. Business outcomes are reported
// in the result; an error is returned only for an unusable portfolio value
// or exposure figure.
func (m *Manager) AssessTradeRisk(trade ProposedTrade, portfolioValue, currentExposure float64) (*RiskCheckResult, error) {
	if res := m.validator.ValidateBalance(portfolioValue, "portfolio_value"); !res.Valid || portfolioValue == 0 {
		return nil, coreerrors.NewValidationError(component, "assess_trade_risk", "portfolio value must be positive and finite")
	}
	if res := m.validator.ValidateBalance(currentExposure, "current_exposure"); !res.Valid {
		return nil, coreerrors.NewValidationError(component, "assess_trade_risk", res.Message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.observeEquity(portfolioValue, now)

	requested := trade.Size
	if !(requested > 0) || math.IsInf(requested, 0) {
		requested = 0
	}
	result := &RiskCheckResult{
		Approved:      true,
		RiskLevel:     RiskLow,
		RequestedSize: requested,
		AdjustedSize:  requested,
		MinRiskReward: m.currentMinRR,
		Timestamp:     now,
	}
	defer m.finish(trade, result)

	// 1. circuit breaker
	if !m.breaker.Allow(now) {
		st := m.breaker.GetStats()
		result.reject(CheckCircuitBreaker, RiskCritical, "breaker open until %s (%s)",
			st.NextAttempt.UTC().Format("15:04:05"), st.Reason)
		return result, nil
	}
	result.pass(CheckCircuitBreaker, "closed")
	if trade.ReduceOnly {
		m.assessReduceOnly(trade, result)
		return result, nil
	}

	// validation precedes every numeric check
	for _, res := range []safety.ValidationResult{
		m.validator.ValidateSymbol(trade.Symbol),
		m.validator.ValidateQuantity(trade.Size, trade.Symbol),
		m.validator.ValidatePrice(trade.EntryPrice, "entry_price", trade.Symbol),
		m.validator.ValidateBracket(trade.Side, trade.EntryPrice, trade.StopLoss, trade.TakeProfit, trade.Symbol),
	} {
		if !res.Valid {
			result.reject(CheckValidation, RiskHigh, "%s [%s]", res.Message, res.Code)
			return result, nil
		}
	}
	result.pass(CheckValidation, "")

	entry := trade.EntryPrice
	riskPerUnit := math.Abs(entry - trade.StopLoss)
	vol := assessVolatility(trade.Symbol, m.priceHistory[trade.Symbol], m.config.EnableMultiTimeframeVolatility)
	trades := m.trades.Slice()
	minRR := m.config.MinRiskRewardRatio
	if m.config.EnableDynamicRRAdjustment {
		minRR = dynamicMinRR(minRR, trades, vol.Regime)
	}
	m.currentMinRR = minRR
	result.MinRiskReward = minRR

	// 2. risk-reward
	result.RiskRewardRatio = math.Abs(trade.TakeProfit-entry) / riskPerUnit
	if result.RiskRewardRatio < minRR {
		if m.config.StrictRiskReward {
			result.reject(CheckRiskReward, RiskHigh, "ratio %.2f below minimum %.2f", result.RiskRewardRatio, minRR)
			return result, nil
		}
		result.warn("risk-reward %.2f below minimum %.2f", result.RiskRewardRatio, minRR)
		result.raise(RiskMedium)
	}
	result.pass(CheckRiskReward, fmt.Sprintf("%.2f (min %.2f)", result.RiskRewardRatio, minRR))

	// 3. max loss per trade
	maxLoss := m.config.MaxLossPerTrade * portfolioValue
	if result.shrink(maxLoss / riskPerUnit) {
		result.warn("size reduced to %.6f to cap loss at %.2f", result.AdjustedSize, maxLoss)
		result.raise(RiskMedium)
	}
	result.pass(CheckMaxLoss, "")

	// 4. position size cap
	if result.shrink(m.config.MaxPositionSize * portfolioValue / entry) {
		result.warn("size reduced to %.6f by %.1f%% position cap", result.AdjustedSize, m.config.MaxPositionSize*100)
		result.raise(RiskMedium)
	}
	result.pass(CheckPositionSize, "")

	// 5. portfolio exposure
	if !m.capNotional(result, CheckPortfolioExposure, "portfolio exposure", currentExposure, m.config.MaxPortfolioRisk*portfolioValue, entry) {
		return result, nil
	}

	// 6. sector concentration
	sector := m.sectorFor(trade.Symbol, trade.Sector)
	if !m.capNotional(result, CheckSectorConcentration, "sector "+sector, m.sectorExposure[sector], m.config.MaxSectorConcentration*portfolioValue, entry) {
		return result, nil
	}

	// 7. volatility
	result.Volatility = vol
	if !vol.Sufficient {
		result.warn("volatility: insufficient history for %s, using neutral %.2f%% (low confidence)", trade.Symbol, neutralVolatility*100)
	}
	if vol.Regime == RegimeHigh {
		result.warn("volatility regime high: %.2f%%", vol.Combined*100)
		result.raise(RiskHigh)
	}
	result.pass(CheckVolatility, fmt.Sprintf("%.4f %s", vol.Combined, vol.Regime))

	// 8. correlation
	if !m.checkCorrelation(trade, sector, vol, result) {
		return result, nil
	}

	// 9. dynamic risk-reward
	detail := fmt.Sprintf("min %.2f", minRR)
	if len(trades) < minRRAdjustTrades {
		detail += fmt.Sprintf(", base kept (%d/%d trades)", len(trades), minRRAdjustTrades)
	}
	result.pass(CheckDynamicRR, detail)

	// 10. VaR
	returns := tradeReturns(trades)
	result.VaR = valueAtRisk(returns, m.config.VarConfidenceLevel, m.config.VarTimeHorizonDays)
	if err := result.VaR.Err("value_at_risk"); err != nil {
		result.warn("VaR: %v (low confidence)", err)
	} else {
		m.varHistory.Push(result.VaR.Value)
		if loss := result.VaR.Value * result.AdjustedSize * entry; loss > maxLoss {
			result.warn("VaR %.2f exceeds per-trade loss cap %.2f", loss, maxLoss)
			result.raise(RiskMedium)
		}
	}
	result.pass(CheckVaR, result.VaR.String())

	// 11. Kelly
	if m.config.EnableKellyCriterion {
		k := kellyFraction(trades)
		result.KellyFraction = k
		switch err := k.Err("kelly_fraction"); {
		case err != nil:
			result.warn("kelly: %v (low confidence), sizing unchanged", err)
		case k.Value <= 0:
			result.reject(CheckKelly, RiskHigh, "no positive edge (fraction %.4f)", k.Value)
			return result, nil
		default:
			half := kellyHaircut * k.Value * portfolioValue / entry
			capped := math.Min(half, m.config.MaxPositionSize*portfolioValue/entry)
			if result.shrink(capped) {
				result.warn("size reduced to %.6f by half-Kelly (f=%.4f)", result.AdjustedSize, k.Value)
				result.raise(RiskMedium)
			}
		}
		result.pass(CheckKelly, k.String())
	}

	if dd := m.dailyDrawdown(); dd >= m.config.MaxDailyDrawdown {
		result.warn("daily drawdown %.2f%% at or above %.2f%% limit", dd*100, m.config.MaxDailyDrawdown*100)
		result.raise(RiskHigh)
		result.pass(CheckDailyDrawdown, fmt.Sprintf("%.4f", dd))
	}

	if result.AdjustedSize <= 0 {
		result.reject(CheckPositionSize, RiskHigh, "no size left after adjustments")
	}
	return result, nil
}

// capNotional shrinks the order so used plus its notional stays within
// limit, or rejects when no room is left.
func (m *Manager) capNotional(result *RiskCheckResult, name CheckName, label string, used, limit, entry float64) bool {
	room := limit - used
	if room <= 0 {
		result.reject(name, RiskHigh, "%s %.2f already at limit %.2f", label, used, limit)
		return false
	}
	if result.AdjustedSize*entry > room {
		result.shrink(room / entry)
		result.warn("size reduced to %.6f to keep %s within %.2f", result.AdjustedSize, label, limit)
		result.raise(RiskMedium)
	}
	result.pass(name, fmt.Sprintf("%.2f of %.2f used", used, limit))
	return true
}

func (m *Manager) checkCorrelation(trade ProposedTrade, sector string, vol VolatilityAssessment, result *RiskCheckResult) bool {
	ids := make([]string, 0, len(m.positions))
	for id, p := range m.positions {
		if p.Symbol != trade.Symbol {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		result.pass(CheckCorrelation, "no other open positions")
		return true
	}
	sort.Strings(ids)

	worst, worstSymbol := math.Inf(-1), ""
	var worstSource CorrelationSource
	for _, id := range ids {
		p := m.positions[id]
		corr, src := m.estimateCorrelation(trade.Symbol, sector, vol, p)
		if p.Side != trade.Side {
			corr = -corr
		}
		if corr > worst {
			worst, worstSymbol, worstSource = corr, p.Symbol, src
		}
	}
	result.Correlation = worst
	result.CorrelationSource = worstSource
	if worstSource == CorrelationFromSector {
		result.warn("correlation with %s: insufficient paired history, sector heuristic used (low confidence)", worstSymbol)
	}

	if worst > m.config.MaxCorrelation {
		if worst >= rejectCorrelation {
			result.reject(CheckCorrelation, RiskHigh, "correlation %.2f with %s", worst, worstSymbol)
			return false
		}
		result.shrink(result.AdjustedSize * m.config.MaxCorrelation / worst)
		result.warn("size reduced to %.6f for correlation %.2f with %s", result.AdjustedSize, worst, worstSymbol)
		result.raise(RiskMedium)
	}
	result.pass(CheckCorrelation, fmt.Sprintf("%.2f with %s (%s)", worst, worstSymbol, worstSource))
	return true
}

// AssessReduction checks an exit order against the open positions. The
// order must shrink an existing opposite position of the same symbol and is
// capped at the held size. It is not gated by the circuit breaker, so exits
// stay possible while AssessTradeRisk rejects all new risk.
func (m *Manager) AssessReduction(trade ProposedTrade) *RiskCheckResult {
	trade.ReduceOnly = true

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	requested := trade.Size
	if !(requested > 0) || math.IsInf(requested, 0) {
		requested = 0
	}
	result := &RiskCheckResult{
		Approved:      true,
		RiskLevel:     RiskLow,
		RequestedSize: requested,
		AdjustedSize:  requested,
		MinRiskReward: m.currentMinRR,
		Timestamp:     now,
	}
	defer m.finish(trade, result)

	detail := "closed"
	if m.breaker.StateAt(now) == safety.StateOpen {
		detail = "open, risk-reducing order allowed"
		result.warn("circuit breaker open: only risk-reducing orders accepted")
		result.raise(RiskHigh)
	}
	result.pass(CheckCircuitBreaker, detail)
	m.assessReduceOnly(trade, result)
	return result
}

// assessReduceOnly sizes an order that only shrinks an existing opposite
// position. Sizing caps do not apply.
func (m *Manager) assessReduceOnly(trade ProposedTrade, result *RiskCheckResult) {
	for _, res := range []safety.ValidationResult{
		m.validator.ValidateSymbol(trade.Symbol),
		m.validator.ValidateQuantity(trade.Size, trade.Symbol),
		m.validator.ValidatePrice(trade.EntryPrice, "entry_price", trade.Symbol),
	} {
		if !res.Valid {
			result.reject(CheckValidation, RiskHigh, "%s [%s]", res.Message, res.Code)
			return
		}
	}

	var held float64
	for _, p := range m.positions {
		if p.Symbol == trade.Symbol && p.Side == trade.Side.Opposite() {
			held += p.Size
		}
	}
	if held == 0 {
		result.reject(CheckValidation, RiskHigh, "reduce-only %s %s has no opposite position to reduce", trade.Side, trade.Symbol)
		return
	}
	if result.shrink(held) {
		result.warn("reduce-only size limited to held %.6f", held)
	}
	result.pass(CheckValidation, "reduce-only")
}

func (m *Manager) finish(trade ProposedTrade, result *RiskCheckResult) {
	if result.Approved {
		m.logger.Info("✅ %s %s approved size=%.6f/%.6f level=%s warnings=%d",
			trade.Side, trade.Symbol, result.AdjustedSize, result.RequestedSize, result.RiskLevel, len(result.Warnings))
	} else {
		m.logger.Warning("❌ %s %s rejected: %s", trade.Side, trade.Symbol, result.RejectionReason)
	}
	if m.observer != nil {
		m.observer.ObserveAssessment(trade, result)
	}
}
