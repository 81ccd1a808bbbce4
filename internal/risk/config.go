package risk

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config contains all risk management configuration. Fraction-valued limits
// are relative to portfolio value.
type Config struct {
	MaxPositionSize         float64       `yaml:"max_position_size" json:"max_position_size" default:"0.05" validate:"gt=0,lte=1"`
	MaxPortfolioRisk        float64       `yaml:"max_portfolio_risk" json:"max_portfolio_risk" default:"0.20" validate:"gt=0"`
	StopLossPercent         float64       `yaml:"stop_loss_percent" json:"stop_loss_percent" default:"0.02" validate:"gt=0,lt=1"`
	TakeProfitPercent       float64       `yaml:"take_profit_percent" json:"take_profit_percent" default:"0.05" validate:"gt=0"`
	MaxDailyDrawdown        float64       `yaml:"max_daily_drawdown" json:"max_daily_drawdown" default:"0.03" validate:"gt=0,lte=1"`
	CircuitBreakerThreshold float64       `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold" default:"0.05" validate:"gt=0,lte=1"`
	CircuitBreakerCooldown  time.Duration `yaml:"circuit_breaker_cooldown" json:"circuit_breaker_cooldown" default:"1h" validate:"gt=0"`
	MinRiskRewardRatio      float64       `yaml:"min_risk_reward_ratio" json:"min_risk_reward_ratio" default:"2.0" validate:"gte=1.5,lte=3.5"`
	StrictRiskReward        bool          `yaml:"strict_risk_reward" json:"strict_risk_reward"`
	MaxLossPerTrade         float64       `yaml:"max_loss_per_trade" json:"max_loss_per_trade" default:"0.01" validate:"gt=0,lte=1"`
	RiskPerTrade            float64       `yaml:"risk_per_trade" json:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
	MaxCorrelation          float64       `yaml:"max_correlation" json:"max_correlation" default:"0.7" validate:"gt=0,lte=1"`
	MaxSectorConcentration  float64       `yaml:"max_sector_concentration" json:"max_sector_concentration" default:"0.30" validate:"gt=0,lte=1"`

	EnableKellyCriterion           bool    `yaml:"enable_kelly_criterion" json:"enable_kelly_criterion"`
	VarConfidenceLevel             float64 `yaml:"var_confidence_level" json:"var_confidence_level" default:"0.95" validate:"gte=0.9,lte=0.99"`
	VarTimeHorizonDays             int     `yaml:"var_time_horizon_days" json:"var_time_horizon_days" default:"1" validate:"gte=1"`
	EnableMLCorrelation            bool    `yaml:"enable_ml_correlation" json:"enable_ml_correlation" default:"true"`
	EnableMultiTimeframeVolatility bool    `yaml:"enable_multi_timeframe_volatility" json:"enable_multi_timeframe_volatility" default:"true"`
	EnableDynamicRRAdjustment      bool    `yaml:"enable_dynamic_rr_adjustment" json:"enable_dynamic_rr_adjustment" default:"true"`

	PriceHistorySize        int `yaml:"price_history_size" json:"price_history_size" default:"100" validate:"gte=2"`
	TradeHistorySize        int `yaml:"trade_history_size" json:"trade_history_size" default:"1000" validate:"gte=1"`
	VarHistorySize          int `yaml:"var_history_size" json:"var_history_size" default:"100" validate:"gte=1"`
	CorrelationTrainingSize int `yaml:"correlation_training_size" json:"correlation_training_size" default:"500" validate:"gte=10"`
	CorrelationRetrainEvery int `yaml:"correlation_retrain_every" json:"correlation_retrain_every" default:"50" validate:"gte=1"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	var cfg Config
	// only fails on malformed tags
	if err := defaults.Set(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks field bounds
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("risk config: %w", err)
	}
	if c.MaxDailyDrawdown > c.CircuitBreakerThreshold {
		return fmt.Errorf("risk config: max_daily_drawdown %.4f exceeds circuit_breaker_threshold %.4f",
			c.MaxDailyDrawdown, c.CircuitBreakerThreshold)
	}
	return nil
}
