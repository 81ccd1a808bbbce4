package risk

import (
	"fmt"
	"time"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/safety"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

// RiskLevel grades an assessment
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// CheckName identifies one stage of the assessment pipeline
type CheckName string

const (
	CheckCircuitBreaker      CheckName = "circuit_breaker"
	CheckValidation          CheckName = "validation"
	CheckRiskReward          CheckName = "risk_reward"
	CheckMaxLoss             CheckName = "max_loss_per_trade"
	CheckPositionSize        CheckName = "position_size"
	CheckPortfolioExposure   CheckName = "portfolio_exposure"
	CheckSectorConcentration CheckName = "sector_concentration"
	CheckVolatility          CheckName = "volatility"
	CheckCorrelation         CheckName = "correlation"
	CheckDynamicRR           CheckName = "dynamic_risk_reward"
	CheckVaR                 CheckName = "value_at_risk"
	CheckKelly               CheckName = "kelly"
	CheckDailyDrawdown       CheckName = "daily_drawdown"
)

// ProposedTrade is an order candidate submitted for assessment
type ProposedTrade struct {
	Symbol     string     `json:"symbol" yaml:"symbol"`
	Side       types.Side `json:"side" yaml:"side"`
	Size       float64    `json:"size" yaml:"size"`
	EntryPrice float64    `json:"entry_price" yaml:"entry_price"`
	StopLoss   float64    `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit float64    `json:"take_profit" yaml:"take_profit"`
	// Sector falls back to the symbol profile when empty
	Sector string `json:"sector,omitempty" yaml:"sector,omitempty"`
	// ReduceOnly trades may only shrink an existing opposite position and
	// pass the circuit breaker gate.
	ReduceOnly bool `json:"reduce_only,omitempty" yaml:"reduce_only,omitempty"`
}

// CheckOutcome records one executed check in pipeline order
type CheckOutcome struct {
	Name      CheckName `json:"name"`
	Passed    bool      `json:"passed"`
	SizeAfter float64   `json:"size_after"`
	Detail    string    `json:"detail,omitempty"`
}

// RiskCheckResult is the verdict on a ProposedTrade
type RiskCheckResult struct {
	Approved        bool           `json:"approved"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	RequestedSize   float64        `json:"requested_size"`
	AdjustedSize    float64        `json:"adjusted_size"`
	Warnings        []string       `json:"warnings,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	RejectedBy      CheckName      `json:"rejected_by,omitempty"`
	Checks          []CheckOutcome `json:"checks"`

	RiskRewardRatio   float64              `json:"risk_reward_ratio"`
	MinRiskReward     float64              `json:"min_risk_reward"`
	Volatility        VolatilityAssessment `json:"volatility"`
	Correlation       float64              `json:"correlation"`
	CorrelationSource CorrelationSource    `json:"correlation_source,omitempty"`
	VaR               Estimate             `json:"var"`
	KellyFraction     Estimate             `json:"kelly_fraction"`
	Timestamp         time.Time            `json:"timestamp"`
}

func (r *RiskCheckResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *RiskCheckResult) raise(level RiskLevel) {
	if level > r.RiskLevel {
		r.RiskLevel = level
	}
}

func (r *RiskCheckResult) pass(name CheckName, detail string) {
	r.Checks = append(r.Checks, CheckOutcome{Name: name, Passed: true, SizeAfter: r.AdjustedSize, Detail: detail})
}

func (r *RiskCheckResult) reject(name CheckName, level RiskLevel, format string, args ...interface{}) {
	r.Approved = false
	r.AdjustedSize = 0
	r.RejectedBy = name
	r.RejectionReason = fmt.Sprintf("%s: %s", name, fmt.Sprintf(format, args...))
	r.raise(level)
	r.Checks = append(r.Checks, CheckOutcome{Name: name, Passed: false, Detail: r.RejectionReason})
}

// shrink lowers AdjustedSize to at most size; it never grows the order.
func (r *RiskCheckResult) shrink(size float64) bool {
	if size < r.AdjustedSize {
		if size < 0 {
			size = 0
		}
		r.AdjustedSize = size
		return true
	}
	return false
}

// Estimate is a statistic that may not yet have enough samples behind it
type Estimate struct {
	Value      float64 `json:"value"`
	Samples    int     `json:"samples"`
	Required   int     `json:"required"`
	Sufficient bool    `json:"sufficient"`
}

func estimate(value float64, samples, required int) Estimate {
	if samples < required {
		return Estimate{Samples: samples, Required: required}
	}
	return Estimate{Value: value, Samples: samples, Required: required, Sufficient: true}
}

// Err returns an INSUFFICIENT_DATA error naming the estimate when it lacks
// samples, and nil otherwise.
func (e Estimate) Err(operation string) error {
	if e.Sufficient {
		return nil
	}
	return coreerrors.NewInsufficientDataError(component, operation, e.Samples, e.Required)
}

func (e Estimate) String() string {
	if !e.Sufficient {
		return fmt.Sprintf("insufficient data (%d/%d)", e.Samples, e.Required)
	}
	return fmt.Sprintf("%.4f", e.Value)
}

// Fill reports an executed order
type Fill struct {
	TradeID    string     `json:"trade_id,omitempty" yaml:"trade_id,omitempty"`
	Symbol     string     `json:"symbol" yaml:"symbol"`
	Side       types.Side `json:"side" yaml:"side"`
	Size       float64    `json:"size" yaml:"size"`
	Price      float64    `json:"price" yaml:"price"`
	StopLoss   float64    `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
	TakeProfit float64    `json:"take_profit,omitempty" yaml:"take_profit,omitempty"`
	Sector     string     `json:"sector,omitempty" yaml:"sector,omitempty"`
	Timestamp  time.Time  `json:"timestamp" yaml:"timestamp"`
}

// Position is an open trade tracked by the manager
type Position struct {
	TradeID       string     `json:"trade_id"`
	Symbol        string     `json:"symbol"`
	Side          types.Side `json:"side"`
	Size          float64    `json:"size"`
	EntryPrice    float64    `json:"entry_price"`
	StopLoss      float64    `json:"stop_loss,omitempty"`
	TakeProfit    float64    `json:"take_profit,omitempty"`
	Sector        string     `json:"sector"`
	LastPrice     float64    `json:"last_price"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	OpenedAt      time.Time  `json:"opened_at"`
}

// Notional is the position's cost basis
func (p Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

func (p *Position) mark(price float64) {
	p.LastPrice = price
	diff := price - p.EntryPrice
	if p.Side == types.SideShort {
		diff = -diff
	}
	p.UnrealizedPnL = diff * p.Size
}

// TradeOutcome is a closed trade kept in the rolling history
type TradeOutcome struct {
	TradeID   string     `json:"trade_id"`
	Symbol    string     `json:"symbol"`
	Side      types.Side `json:"side"`
	PnL       float64    `json:"pnl"`
	Return    float64    `json:"return"`
	Timestamp time.Time  `json:"timestamp"`
}

// Win reports whether the trade made money. Break-even counts as a loss.
func (o TradeOutcome) Win() bool { return o.PnL > 0 }

// RiskMetrics is a point-in-time snapshot of the manager's state
type RiskMetrics struct {
	TotalTrades        int                        `json:"total_trades"`
	Wins               int                        `json:"wins"`
	Losses             int                        `json:"losses"`
	WinRate            Estimate                   `json:"win_rate"`
	Expectancy         Estimate                   `json:"expectancy"`
	SharpeRatio        Estimate                   `json:"sharpe_ratio"`
	PortfolioVaR       Estimate                   `json:"portfolio_var"`
	CurrentMinRR       float64                    `json:"current_min_rr"`
	OpenPositions      int                        `json:"open_positions"`
	TotalExposure      float64                    `json:"total_exposure"`
	SectorExposure     map[string]float64         `json:"sector_exposure"`
	VolatilityBySymbol map[string]float64         `json:"volatility_by_symbol"`
	DailyRealizedPnL   float64                    `json:"daily_realized_pnl"`
	DailyDrawdown      float64                    `json:"daily_drawdown"`
	CircuitBreaker     safety.CircuitBreakerStats `json:"circuit_breaker"`
	CorrelationModel   CorrelationModelStats      `json:"correlation_model"`
	Timestamp          time.Time                  `json:"timestamp"`
}

// Observer receives risk events, e.g. for metrics export
type Observer interface {
	ObserveAssessment(trade ProposedTrade, result *RiskCheckResult)
	ObserveBreakerState(from, to safety.CircuitBreakerState, reason string)
	ObserveModelRetrain(samples int)
}
