package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-decision-core/internal/monitoring"
	"github.com/ducminhle1904/crypto-decision-core/internal/replay"
	"github.com/ducminhle1904/crypto-decision-core/pkg/reporting"
)

type replayOptions struct {
	scenario string
	outDir   string
	csv      bool
	xlsx     bool
	json     bool
	quiet    bool
	listen   string
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a scripted scenario through the voting engine and risk manager",
		Long: `Replay ticks, strategy signals, fills and closes from a YAML scenario.

Examples:
  decision-core replay --scenario configs/scenarios/breakout.yaml
  decision-core replay -s breakout.yaml --xlsx --csv --out results/breakout
  decision-core replay -s breakout.yaml --listen :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.load(); err != nil {
				return err
			}
			defer root.log.Close()
			return runReplay(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.scenario, "scenario", "s", "", "scenario YAML file")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory for report files (default results/<scenario name>)")
	cmd.Flags().BoolVar(&opts.csv, "csv", false, "write decisions.csv")
	cmd.Flags().BoolVar(&opts.xlsx, "xlsx", false, "write report.xlsx")
	cmd.Flags().BoolVar(&opts.json, "json", false, "write report.json")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the report tables")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "after the replay, serve /metrics and /health on this address until interrupted")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

func runReplay(cmd *cobra.Command, root *rootOptions, opts *replayOptions) error {
	scenario, err := replay.LoadScenario(opts.scenario)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	recorder := monitoring.NewRecorder(registry)

	runner, err := replay.NewRunner(root.cfg, root.log, recorder)
	if err != nil {
		return err
	}
	report, err := runner.Run(scenario)
	if err != nil {
		return err
	}

	manager := reporting.NewReportingManager(reporting.ReportingConfig{
		EnableConsole:   !opts.quiet,
		OutputDirectory: opts.outDir,
		CSVEnabled:      opts.csv,
		ExcelEnabled:    opts.xlsx,
		JSONEnabled:     opts.json,
	})
	written, err := manager.Report(cmd.OutOrStdout(), report)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	for _, p := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "💾 %s\n", p)
	}

	if root.cfg.Metrics.Enabled {
		path := root.cfg.Metrics.Textfile
		if err := reporting.EnsureDirectoryExists(path); err != nil {
			return err
		}
		if err := recorder.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "📈 %s\n", path)
	}

	if opts.listen == "" {
		return nil
	}
	return serveMetrics(cmd.Context(), root, recorder, opts.listen)
}

func serveMetrics(parent context.Context, root *rootOptions, recorder *monitoring.Recorder, addr string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.Handle("/health", recorder.Health())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		root.log.Info("🌐 serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	root.log.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
	}
	return nil
}
