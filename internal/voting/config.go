package voting

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config holds the voting thresholds and the weight-table policy
type Config struct {
	MinStrategies         int           `yaml:"min_strategies" json:"min_strategies" default:"2" validate:"gte=1"`
	MinConfidence         float64       `yaml:"min_confidence" json:"min_confidence" default:"0.5" validate:"gte=0,lte=1"`
	ConsensusThreshold    float64       `yaml:"consensus_threshold" json:"consensus_threshold" default:"0.6" validate:"gte=0,lte=1"`
	WeightTTL             time.Duration `yaml:"weight_ttl" json:"weight_ttl" default:"5m" validate:"gt=0"`
	PerformanceWindow     int           `yaml:"performance_window" json:"performance_window" default:"50" validate:"gte=1"`
	MinPerformanceSamples int           `yaml:"min_performance_samples" json:"min_performance_samples" default:"5" validate:"gte=1"`
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
		return fmt.Errorf("voting config: %w", err)
	}
	return nil
}
