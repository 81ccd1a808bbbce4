package replay

import (
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-decision-core/internal/config"
	"github.com/ducminhle1904/crypto-decision-core/internal/decision"
	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/logger"
	"github.com/ducminhle1904/crypto-decision-core/internal/monitoring"
	"github.com/ducminhle1904/crypto-decision-core/internal/risk"
	"github.com/ducminhle1904/crypto-decision-core/internal/voting"
	"github.com/ducminhle1904/crypto-decision-core/pkg/reporting"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

// clock is the replay's notion of now, advanced step by step
type clock struct {
	mu sync.RWMutex
	at time.Time
}

func (c *clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.at
}

func (c *clock) set(at time.Time) {
	c.mu.Lock()
	c.at = at
	c.mu.Unlock()
}

// Runner replays scenarios against a decision core whose clock follows the
// scenario rather than the wall clock.
type Runner struct {
	core   *decision.Core
	clock  *clock
	logger *logger.Logger
}

// NewRunner wires a voting engine and risk manager from cfg. The recorder
// may be nil.
func NewRunner(cfg *config.Config, log *logger.Logger, rec *monitoring.Recorder) (*Runner, error) {
	clk := &clock{}

	voteOpts := []voting.Option{voting.WithClock(clk.Now)}
	riskOpts := []risk.Option{risk.WithClock(clk.Now)}
	if rec != nil {
		voteOpts = append(voteOpts, voting.WithObserver(rec))
		riskOpts = append(riskOpts, risk.WithObserver(rec))
	}

	engine, err := voting.NewEngine(cfg.Voting, log, voteOpts...)
	if err != nil {
		return nil, err
	}
	manager, err := risk.NewManager(cfg.Risk, log, riskOpts...)
	if err != nil {
		return nil, err
	}

	return &Runner{
		core:   decision.NewCore(engine, manager, log),
		clock:  clk,
		logger: log.With("replay"),
	}, nil
}

// Core exposes the underlying decision core
func (r *Runner) Core() *decision.Core { return r.core }

// Run plays every step of s in order and returns the resulting report.
// Errors from ticks, fills and closes abort the replay; rejected trades do
// not.
func (r *Runner) Run(s *Scenario) (*reporting.ReplayReport, error) {
	manager := r.core.Risk()
	times := s.times()

	r.clock.set(times[0])
	for symbol, profile := range s.Profiles {
		if err := manager.SetSymbolProfile(symbol, profile); err != nil {
			return nil, err
		}
	}
	portfolio := s.PortfolioValue
	if err := manager.SetPortfolioValue(portfolio); err != nil {
		return nil, err
	}

	report := &reporting.ReplayReport{Name: s.Name}
	trades := make(map[string]string)

	r.logger.Info("▶️  replaying %q: %d steps from %s", s.Name, len(s.Steps), times[0].Format(time.RFC3339))

	for i, step := range s.Steps {
		at := times[i]
		r.clock.set(at)
		n := i + 1

		for _, tick := range step.Ticks {
			if tick.Timestamp.IsZero() {
				tick.Timestamp = at
			}
			if err := manager.UpdatePrice(tick); err != nil {
				return nil, stepError(n, "tick", err)
			}
		}

		if step.PortfolioValue > 0 {
			portfolio = step.PortfolioValue
			if err := manager.SetPortfolioValue(portfolio); err != nil {
				return nil, stepError(n, "portfolio", err)
			}
		}
		if step.TripBreaker != "" {
			manager.TripCircuitBreaker(step.TripBreaker)
		}
		if step.ResetBreaker {
			manager.ResetCircuitBreaker()
		}

		if e := step.Evaluate; e != nil {
			row, tradeID, err := r.evaluate(n, at, e, portfolio)
			if err != nil {
				return nil, stepError(n, "evaluate", err)
			}
			if tradeID != "" && e.Label != "" {
				trades[e.Label] = tradeID
			}
			report.Decisions = append(report.Decisions, row)
		}

		if c := step.Close; c != nil {
			tradeID, ok := trades[c.Label]
			if !ok {
				r.logger.LogWarning("replay", "step %d: %q was never filled, skipping close", n, c.Label)
				continue
			}
			if c.Price > 0 {
				row, err := r.exit(n, at, tradeID, c.Price)
				if err != nil {
					return nil, stepError(n, "exit", err)
				}
				report.Decisions = append(report.Decisions, row)
				if !row.Approved {
					r.logger.LogWarning("replay", "step %d: exit for %q rejected, keeping position", n, c.Label)
					continue
				}
			}
			outcome, err := r.core.Close(tradeID, c.PnL)
			if err != nil {
				return nil, stepError(n, "close", err)
			}
			delete(trades, c.Label)
			report.Closed = append(report.Closed, outcome)

			portfolio += c.PnL
			if err := manager.SetPortfolioValue(portfolio); err != nil {
				return nil, stepError(n, "portfolio", err)
			}
		}
	}

	report.Metrics = manager.GetRiskMetrics()
	report.VaR = manager.VaRHistory()
	r.logger.Info("⏹️  replay %q done: %d decisions, %d closed trades", s.Name, len(report.Decisions), len(report.Closed))
	return report, nil
}

func (r *Runner) evaluate(step int, at time.Time, e *Evaluation, portfolio float64) (reporting.DecisionRow, string, error) {
	signals := make([]types.TradingSignal, 0, len(e.Signals))
	for _, sp := range e.Signals {
		signals = append(signals, types.TradingSignal{
			Symbol:       e.Symbol,
			Type:         sp.Signal,
			Confidence:   sp.Confidence,
			StrategyName: sp.Strategy,
			Timestamp:    at,
		})
	}

	exposure := r.core.Risk().GetRiskMetrics().TotalExposure
	if e.Exposure != nil {
		exposure = *e.Exposure
	}

	d, err := r.core.Evaluate(signals, e.Entry, portfolio, exposure)
	if err != nil {
		return reporting.DecisionRow{}, "", err
	}

	row := reporting.DecisionRow{
		Step:              step,
		Time:              at,
		Symbol:            e.Symbol,
		Signal:            d.Vote.FinalSignal.String(),
		RawSignal:         d.Vote.RawSignal.String(),
		ConsensusStrength: d.Vote.ConsensusStrength,
		Confidence:        d.Vote.Confidence,
	}
	if res := d.Risk; res != nil {
		row.Approved = res.Approved
		row.RiskLevel = res.RiskLevel.String()
		row.RequestedSize = res.RequestedSize
		row.AdjustedSize = res.AdjustedSize
		row.RejectedBy = string(res.RejectedBy)
		row.Warnings = res.Warnings
	}

	if !e.Fill || !d.Actionable() {
		return row, "", nil
	}
	tradeID, err := r.core.Fill(d, e.Entry, at)
	if err != nil {
		return row, "", err
	}
	row.TradeID = tradeID
	return row, tradeID, nil
}

func (r *Runner) exit(step int, at time.Time, tradeID string, price float64) (reporting.DecisionRow, error) {
	p, ok := r.core.Risk().Position(tradeID)
	if !ok {
		return reporting.DecisionRow{}, coreerrors.WrapError(coreerrors.ErrPositionNotFound, coreerrors.ErrorCategoryState, "replay", "exit", tradeID)
	}
	res, err := r.core.Exit(tradeID, price)
	if err != nil {
		return reporting.DecisionRow{}, err
	}
	signal := types.SignalSell
	if p.Side == types.SideShort {
		signal = types.SignalBuy
	}
	return reporting.DecisionRow{
		Step:          step,
		Time:          at,
		Symbol:        p.Symbol,
		Signal:        signal.String(),
		RawSignal:     signal.String(),
		Approved:      res.Approved,
		RiskLevel:     res.RiskLevel.String(),
		RequestedSize: res.RequestedSize,
		AdjustedSize:  res.AdjustedSize,
		RejectedBy:    string(res.RejectedBy),
		Warnings:      res.Warnings,
		TradeID:       tradeID,
		Exit:          true,
	}, nil
}

func stepError(step int, op string, err error) error {
	return coreerrors.WrapError(err, categoryOf(err), "replay", op, fmt.Sprintf("step %d", step))
}

func categoryOf(err error) coreerrors.ErrorCategory {
	if c, ok := coreerrors.CategoryOf(err); ok {
		return c
	}
	return coreerrors.ErrorCategoryState
}
