package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
	"github.com/ducminhle1904/crypto-decision-core/internal/logger"
	"github.com/ducminhle1904/crypto-decision-core/internal/risk"
	"github.com/ducminhle1904/crypto-decision-core/internal/voting"
)

// Config aggregates the settings of every decision-core component
type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"oneof=development production test"`
	Logging     logger.Config `yaml:"logging"`
	Voting      voting.Config `yaml:"voting"`
	Risk        risk.Config   `yaml:"risk"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// MetricsConfig controls the Prometheus textfile dump
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile" default:"decision-core.prom"`
}

// Environment overrides applied after the YAML file
const (
	EnvEnvironment     = "DECISION_ENV"
	EnvLogLevel        = "DECISION_LOG_LEVEL"
	EnvLogFormat       = "DECISION_LOG_FORMAT"
	EnvStrictRR        = "DECISION_STRICT_RR"
	EnvEnableKelly     = "DECISION_ENABLE_KELLY"
	EnvMetricsTextfile = "DECISION_METRICS_TEXTFILE"
)

// Default returns a configuration populated from the default tags
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads path (optional), applies environment overrides and validates.
// Defaults are set before decoding so explicit false values in the file
// survive.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, coreerrors.NewConfigurationError("config", "load", fmt.Errorf("could not read config file: %w", err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, coreerrors.NewConfigurationError("config", "load", fmt.Errorf("could not parse %s: %w", path, err))
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, coreerrors.NewConfigurationError("config", "load", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, coreerrors.NewConfigurationError("config", "load", err)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; existing variables are not overwritten.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvEnvironment); v != "" {
		c.Environment = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvMetricsTextfile); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Textfile = v
	}
	for key, target := range map[string]*bool{
		EnvStrictRR:    &c.Risk.StrictRiskReward,
		EnvEnableKelly: &c.Risk.EnableKellyCriterion,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*target = b
	}
	return nil
}

// Validate checks every nested section
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if err := c.Voting.Validate(); err != nil {
		return err
	}
	return c.Risk.Validate()
}
