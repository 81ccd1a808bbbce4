// Package cmd implements the decision-core command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-decision-core/internal/config"
	"github.com/ducminhle1904/crypto-decision-core/internal/logger"
)

// options shared by every subcommand
type rootOptions struct {
	configPath string
	envFile    string

	cfg *config.Config
	log *logger.Logger
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "decision-core",
		Short: "Strategy voting and risk management for trading decisions",
		Long: `decision-core combines the signals of several trading strategies into a
weighted consensus and runs every resulting trade through a pipeline of
risk checks before it can be executed.

Use "decision-core replay" to drive the core through a scripted scenario.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML configuration (defaults apply when empty)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with DECISION_* overrides")

	root.AddCommand(
		newReplayCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// load reads env file and configuration and builds the logger
func (o *rootOptions) load() error {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = log
	return nil
}
