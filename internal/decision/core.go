// Package decision wires the voting engine to the risk manager: signals are
// voted into a consensus, turned into a bracketed trade, sized and assessed.
// Closed trades feed their returns back to the strategies that voted for
// them.
package decision

import (
	"fmt"
	"sync"
	"time"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/logger"
	"github.com/ducminhle1904/crypto-decision-core/internal/risk"
	"github.com/ducminhle1904/crypto-decision-core/internal/voting"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

// Decision is the outcome of one evaluation cycle for a symbol
type Decision struct {
	Symbol     string                `json:"symbol"`
	Action     types.SignalType      `json:"action"`
	Vote       *voting.VotingResult  `json:"vote"`
	Trade      *risk.ProposedTrade   `json:"trade,omitempty"`
	Risk       *risk.RiskCheckResult `json:"risk,omitempty"`
	Supporters []string              `json:"supporters,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Actionable reports whether the decision should be sent for execution
func (d *Decision) Actionable() bool {
	return d.Trade != nil && d.Risk != nil && d.Risk.Approved && d.Risk.AdjustedSize > 0
}

// Core runs evaluation cycles against one voting engine and risk manager
type Core struct {
	engine *voting.Engine
	risk   *risk.Manager
	logger *logger.Logger

	mu         sync.Mutex
	supporters map[string][]string
}

// NewCore creates a decision core over an existing engine and manager
func NewCore(engine *voting.Engine, manager *risk.Manager, log *logger.Logger) *Core {
	if log == nil {
		log = logger.Nop()
	}
	return &Core{
		engine:     engine,
		risk:       manager,
		logger:     log.With("decision"),
		supporters: make(map[string][]string),
	}
}

// Engine returns the voting engine
func (c *Core) Engine() *voting.Engine { return c.engine }

// Risk returns the risk manager
func (c *Core) Risk() *risk.Manager { return c.risk }

// Evaluate votes the signals and, for a BUY or SELL consensus, assesses a
// trade at entryPrice with stop and target placed at the configured
// percentages and the size suggested by the risk manager.
func (c *Core) Evaluate(signals []types.TradingSignal, entryPrice, portfolioValue, currentExposure float64) (*Decision, error) {
	vote := c.engine.Vote(signals)
	d := &Decision{
		Symbol:    vote.Symbol,
		Action:    types.SignalHold,
		Vote:      vote,
		Timestamp: vote.Timestamp,
	}

	side, ok := types.SideForSignal(vote.FinalSignal)
	if !ok {
		c.logger.Debug("%s: hold (%s)", vote.Symbol, vote.Reason)
		return d, nil
	}

	cfg := c.risk.Config()
	trade := bracket(vote.Symbol, side, entryPrice, cfg.StopLossPercent, cfg.TakeProfitPercent)
	trade.Size = c.risk.SuggestSize(portfolioValue, entryPrice, trade.StopLoss)
	if trade.Size <= 0 {
		return nil, coreerrors.NewValidationError("decision", "evaluate",
			fmt.Sprintf("cannot size %s at entry %.4f with portfolio %.2f", vote.Symbol, entryPrice, portfolioValue))
	}

	result, err := c.risk.AssessTradeRisk(trade, portfolioValue, currentExposure)
	if err != nil {
		return nil, err
	}
	d.Trade = &trade
	d.Risk = result
	for _, v := range vote.Votes {
		if !v.Abstained && v.Signal == vote.FinalSignal {
			d.Supporters = append(d.Supporters, v.StrategyName)
		}
	}
	if result.Approved {
		d.Action = vote.FinalSignal
	}
	return d, nil
}

func bracket(symbol string, side types.Side, entry, stopPct, targetPct float64) risk.ProposedTrade {
	t := risk.ProposedTrade{Symbol: symbol, Side: side, EntryPrice: entry}
	if side == types.SideLong {
		t.StopLoss = entry * (1 - stopPct)
		t.TakeProfit = entry * (1 + targetPct)
	} else {
		t.StopLoss = entry * (1 + stopPct)
		t.TakeProfit = entry * (1 - targetPct)
	}
	return t
}

// Fill records execution of an actionable decision and returns the trade ID
func (c *Core) Fill(d *Decision, price float64, at time.Time) (string, error) {
	if d.Risk != nil && !d.Risk.Approved {
		return "", coreerrors.NewCoreError(coreerrors.ErrorCategoryPolicy, "decision", "fill",
			fmt.Sprintf("%s rejected by %s: %s", d.Symbol, d.Risk.RejectedBy, d.Risk.RejectionReason))
	}
	if !d.Actionable() {
		return "", coreerrors.NewStateError("decision", "fill", fmt.Errorf("decision for %s is not actionable", d.Symbol))
	}
	tradeID, err := c.risk.RecordFill(risk.Fill{
		Symbol:     d.Trade.Symbol,
		Side:       d.Trade.Side,
		Size:       d.Risk.AdjustedSize,
		Price:      price,
		StopLoss:   d.Trade.StopLoss,
		TakeProfit: d.Trade.TakeProfit,
		Sector:     d.Trade.Sector,
		Timestamp:  at,
	})
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.supporters[tradeID] = append([]string(nil), d.Supporters...)
	c.mu.Unlock()
	return tradeID, nil
}

// Exit assesses the reduce-only order that would flatten tradeID at price.
// Exits are assessed even while the circuit breaker blocks new trades.
func (c *Core) Exit(tradeID string, price float64) (*risk.RiskCheckResult, error) {
	p, ok := c.risk.Position(tradeID)
	if !ok {
		return nil, coreerrors.WrapError(coreerrors.ErrPositionNotFound, coreerrors.ErrorCategoryState, "decision", "exit",
			fmt.Sprintf("no open position %q", tradeID))
	}
	return c.risk.AssessReduction(risk.ProposedTrade{
		Symbol:     p.Symbol,
		Side:       p.Side.Opposite(),
		Size:       p.Size,
		EntryPrice: price,
		Sector:     p.Sector,
	}), nil
}

// Close realises a trade and credits its return to the supporting strategies.
// Cached strategy weights are dropped so the next vote sees the new outcome.
func (c *Core) Close(tradeID string, pnl float64) (risk.TradeOutcome, error) {
	outcome, err := c.risk.ClosePosition(tradeID, pnl)
	if err != nil {
		return outcome, err
	}
	c.mu.Lock()
	strategies := c.supporters[tradeID]
	delete(c.supporters, tradeID)
	c.mu.Unlock()

	for _, s := range strategies {
		c.engine.RecordOutcome(s, outcome.Return)
	}
	if len(strategies) > 0 {
		c.engine.InvalidateWeights()
	}
	return outcome, nil
}
