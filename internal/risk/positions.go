package risk

import (
	"fmt"
	"math"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/safety"
	"github.com/ducminhle1904/crypto-decision-core/pkg/id"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

// UpdatePrice appends a tick to the symbol's price history and marks open
// positions on that symbol to market. Timestamps must strictly increase per
// symbol.
func (m *Manager) UpdatePrice(tick types.Tick) error {
	if res := m.validator.ValidateSymbol(tick.Symbol); !res.Valid {
		return coreerrors.WrapError(coreerrors.ErrInvalidTick, coreerrors.ErrorCategoryValidation, component, "update_price", res.Message)
	}
	if res := m.validator.ValidatePrice(tick.Price, "price", tick.Symbol); !res.Valid {
		return coreerrors.WrapError(coreerrors.ErrInvalidTick, coreerrors.ErrorCategoryValidation, component, "update_price", res.Message)
	}
	if math.IsNaN(tick.Volume) || tick.Volume < 0 || tick.Timestamp.IsZero() {
		return coreerrors.WrapError(coreerrors.ErrInvalidTick, coreerrors.ErrorCategoryValidation, component, "update_price",
			fmt.Sprintf("tick for %s needs a timestamp and a non-negative volume", tick.Symbol))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history(tick.Symbol)
	if last, ok := h.Last(); ok && !tick.Timestamp.After(last.Timestamp) {
		return coreerrors.WrapError(coreerrors.ErrStaleTick, coreerrors.ErrorCategoryValidation, component, "update_price",
			fmt.Sprintf("%s tick at %s not after %s", tick.Symbol, tick.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), last.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")))
	}
	h.Push(pricePoint{Timestamp: tick.Timestamp, Price: tick.Price, Volume: tick.Volume})

	for _, p := range m.positions {
		if p.Symbol == tick.Symbol {
			p.mark(tick.Price)
		}
	}
	return nil
}

// RecordFill opens a position, or adds to it when TradeID names an existing
// one, and returns the trade ID. A missing ID is generated.
func (m *Manager) RecordFill(f Fill) (string, error) {
	for _, res := range []safety.ValidationResult{
		m.validator.ValidateSymbol(f.Symbol),
		m.validator.ValidateQuantity(f.Size, f.Symbol),
		m.validator.ValidatePrice(f.Price, "fill price", f.Symbol),
	} {
		if !res.Valid {
			return "", coreerrors.WrapError(coreerrors.ErrInvalidFill, coreerrors.ErrorCategoryValidation, component, "record_fill", res.Message)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	at := f.Timestamp
	if at.IsZero() {
		at = now
	}

	if f.TradeID != "" {
		if p, ok := m.positions[f.TradeID]; ok {
			if p.Symbol != f.Symbol || p.Side != f.Side {
				return "", coreerrors.WrapError(coreerrors.ErrInvalidFill, coreerrors.ErrorCategoryValidation, component, "record_fill",
					fmt.Sprintf("fill %s %s does not match position %s %s %s", f.Symbol, f.Side, f.TradeID, p.Symbol, p.Side))
			}
			added := f.Size * f.Price
			p.EntryPrice = (p.Notional() + added) / (p.Size + f.Size)
			p.Size += f.Size
			if f.StopLoss > 0 {
				p.StopLoss = f.StopLoss
			}
			if f.TakeProfit > 0 {
				p.TakeProfit = f.TakeProfit
			}
			p.mark(f.Price)
			m.sectorExposure[p.Sector] += added
			m.logger.Trade("added %.6f %s @ %.4f to %s, size now %.6f", f.Size, f.Symbol, f.Price, p.TradeID, p.Size)
			return p.TradeID, nil
		}
	}

	tradeID := f.TradeID
	if tradeID == "" {
		tradeID = id.NewTradeID(at)
	}
	p := &Position{
		TradeID:    tradeID,
		Symbol:     f.Symbol,
		Side:       f.Side,
		Size:       f.Size,
		EntryPrice: f.Price,
		StopLoss:   f.StopLoss,
		TakeProfit: f.TakeProfit,
		Sector:     m.sectorFor(f.Symbol, f.Sector),
		OpenedAt:   at,
	}
	p.mark(f.Price)
	m.positions[tradeID] = p
	m.sectorExposure[p.Sector] += p.Notional()
	m.logger.Trade("opened %s %s %.6f @ %.4f [%s] sector=%s", p.Side, p.Symbol, p.Size, p.EntryPrice, tradeID, p.Sector)
	return tradeID, nil
}

// ClosePosition removes a position, records its realised P&L and
// re-evaluates the circuit breaker. Closing is never blocked by the breaker.
func (m *Manager) ClosePosition(tradeID string, pnl float64) (TradeOutcome, error) {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return TradeOutcome{}, coreerrors.NewValidationError(component, "close_position", "pnl must be finite")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[tradeID]
	if !ok {
		return TradeOutcome{}, coreerrors.WrapError(coreerrors.ErrPositionNotFound, coreerrors.ErrorCategoryState, component, "close_position",
			fmt.Sprintf("no open position %q", tradeID))
	}
	delete(m.positions, tradeID)
	m.sectorExposure[p.Sector] -= p.Notional()
	if m.sectorExposure[p.Sector] <= 1e-9 {
		delete(m.sectorExposure, p.Sector)
	}

	now := m.now()
	outcome := TradeOutcome{
		TradeID:   tradeID,
		Symbol:    p.Symbol,
		Side:      p.Side,
		PnL:       pnl,
		Timestamp: now,
	}
	if n := p.Notional(); n > 0 {
		outcome.Return = pnl / n
	}
	m.trades.Push(outcome)
	if outcome.Win() {
		m.wins++
	} else {
		m.losses++
	}

	m.rollDay(now)
	m.dailyRealized += pnl
	dd := m.dailyDrawdown()
	if m.breaker.Evaluate(dd, now) {
		m.logger.LogWarning("close_position", "daily drawdown %.2f%%, circuit breaker open", dd*100)
	}
	m.logger.Trade("closed %s %s pnl=%.2f return=%.4f%%", tradeID, p.Symbol, pnl, outcome.Return*100)
	return outcome, nil
}

// Position returns a copy of one open position
func (m *Manager) Position(tradeID string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[tradeID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}
