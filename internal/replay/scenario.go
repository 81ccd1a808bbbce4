// Package replay drives the decision core through a scripted scenario of
// ticks, strategy signals, fills and closes.
package replay

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

// Scenario is a scripted replay loaded from YAML
type Scenario struct {
	Name           string                         `yaml:"name" validate:"required"`
	PortfolioValue float64                        `yaml:"portfolio_value" validate:"gt=0"`
	Start          time.Time                      `yaml:"start"`
	Interval       time.Duration                  `yaml:"interval"`
	Profiles       map[string]types.SymbolProfile `yaml:"profiles"`
	Steps          []Step                         `yaml:"steps" validate:"required,min=1,dive"`
}

// Step happens at a single instant. Actions run in field order: ticks,
// portfolio update, breaker control, evaluation, close.
type Step struct {
	At             time.Time    `yaml:"at"`
	Ticks          []types.Tick `yaml:"ticks" validate:"dive"`
	PortfolioValue float64      `yaml:"portfolio_value" validate:"gte=0"`
	TripBreaker    string       `yaml:"trip_breaker"`
	ResetBreaker   bool         `yaml:"reset_breaker"`
	Evaluate       *Evaluation  `yaml:"evaluate" validate:"omitempty"`
	Close          *Closure     `yaml:"close" validate:"omitempty"`
}

// Evaluation votes a set of signals and optionally fills the result
type Evaluation struct {
	Label    string           `yaml:"label"`
	Symbol   string           `yaml:"symbol" validate:"required"`
	Entry    float64          `yaml:"entry" validate:"gt=0"`
	Exposure *float64         `yaml:"exposure" validate:"omitempty,gte=0"`
	Fill     bool             `yaml:"fill"`
	Signals  []ScriptedSignal `yaml:"signals" validate:"required,min=1,dive"`
}

// ScriptedSignal is one strategy opinion within an evaluation
type ScriptedSignal struct {
	Strategy   string           `yaml:"strategy" validate:"required"`
	Signal     types.SignalType `yaml:"signal"`
	Confidence float64          `yaml:"confidence" validate:"gte=0,lte=1"`
}

// Closure closes the trade filled by the evaluation with the given label.
// With a price, the exit order is assessed first and the close is skipped
// if the assessment rejects it.
type Closure struct {
	Label string  `yaml:"label" validate:"required"`
	PnL   float64 `yaml:"pnl"`
	Price float64 `yaml:"price" validate:"gte=0"`
}

const defaultInterval = time.Hour

var validate = validator.New()

// LoadScenario reads and validates a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.NewConfigurationError("replay", "load", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, coreerrors.NewConfigurationError("replay", "parse", err)
	}
	if s.Interval <= 0 {
		s.Interval = defaultInterval
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and that every close refers to an
// earlier filled evaluation.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return coreerrors.NewConfigurationError("replay", "validate", err)
	}
	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if e := step.Evaluate; e != nil && e.Label != "" {
			if labels[e.Label] {
				return coreerrors.NewValidationError("replay", "validate", fmt.Sprintf("step %d: duplicate label %q", i+1, e.Label))
			}
			labels[e.Label] = true
		}
		if c := step.Close; c != nil && !labels[c.Label] {
			return coreerrors.NewValidationError("replay", "validate", fmt.Sprintf("step %d: close of unknown label %q", i+1, c.Label))
		}
	}
	return nil
}

// times resolves each step's instant. Steps without one follow the previous
// step by Interval.
func (s *Scenario) times() []time.Time {
	out := make([]time.Time, len(s.Steps))
	at := s.Start
	if at.IsZero() {
		at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	for i, step := range s.Steps {
		switch {
		case !step.At.IsZero():
			at = step.At
		case i > 0:
			at = at.Add(s.Interval)
		}
		out[i] = at
	}
	return out
}
