package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultConsoleReporter renders reports with go-pretty tables
type DefaultConsoleReporter struct{}

// NewDefaultConsoleReporter creates a new console reporter
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{}
}

// OutputReport prints the decisions, closed trades and final risk metrics
func (r *DefaultConsoleReporter) OutputReport(w io.Writer, report *ReplayReport) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintf(w, "📊 REPLAY: %s\n", report.Name)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	r.decisionsTable(w, report)
	r.metricsTable(w, report)
	if len(report.Metrics.SectorExposure) > 0 {
		r.sectorTable(w, report)
	}
}

func (r *DefaultConsoleReporter) decisionsTable(w io.Writer, report *ReplayReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Decisions")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Time", "Symbol", "Signal", "Consensus", "Risk", "Size", "Outcome"})
	for _, d := range report.Decisions {
		outcome := "✅ approved"
		switch {
		case d.RiskLevel == "":
			outcome = "-"
		case !d.Approved:
			outcome = "❌ " + d.RejectedBy
		}
		size := ""
		if d.RiskLevel != "" {
			size = fmt.Sprintf("%.4f / %.4f", d.AdjustedSize, d.RequestedSize)
		}
		t.AppendRow(table.Row{
			d.Step,
			d.Time.UTC().Format("2006-01-02 15:04"),
			d.Symbol,
			signalLabel(d),
			fmt.Sprintf("%.2f", d.ConsensusStrength),
			d.RiskLevel,
			size,
			outcome,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func signalLabel(d DecisionRow) string {
	if d.Exit {
		return d.Signal + " (exit)"
	}
	if d.RawSignal != "" && d.RawSignal != d.Signal {
		return fmt.Sprintf("%s (raw %s)", d.Signal, d.RawSignal)
	}
	return d.Signal
}

func (r *DefaultConsoleReporter) metricsTable(w io.Writer, report *ReplayReport) {
	m := report.Metrics
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Risk Metrics")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"🔄 Closed Trades", fmt.Sprintf("%d (%d W / %d L)", m.TotalTrades, m.Wins, m.Losses)},
		{"✅ Win Rate", percentOrSentinel(m.WinRate.Sufficient, m.WinRate.Value, m.WinRate.String())},
		{"💰 Expectancy", m.Expectancy.String()},
		{"📊 Sharpe (per trade)", m.SharpeRatio.String()},
		{"📉 Portfolio VaR", percentOrSentinel(m.PortfolioVaR.Sufficient, m.PortfolioVaR.Value, m.PortfolioVaR.String())},
		{"🎯 Min Risk-Reward", fmt.Sprintf("%.2f", m.CurrentMinRR)},
		{"📦 Open Positions", fmt.Sprintf("%d ($%.2f)", m.OpenPositions, m.TotalExposure)},
		{"📉 Daily Drawdown", fmt.Sprintf("%.2f%%", m.DailyDrawdown*100)},
		{"🚨 Circuit Breaker", fmt.Sprintf("%s (trips %d)", m.CircuitBreaker.State, m.CircuitBreaker.Trips)},
		{"🧠 Correlation Model", modelLabel(report)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, Align: text.AlignLeft},
	})
	t.Render()
}

func modelLabel(report *ReplayReport) string {
	cm := report.Metrics.CorrelationModel
	if !cm.Trained {
		return fmt.Sprintf("untrained (%d samples)", cm.BufferedSamples)
	}
	return fmt.Sprintf("v%d on %d samples", cm.Version, cm.TrainingSamples)
}

func percentOrSentinel(ok bool, v float64, sentinel string) string {
	if !ok {
		return sentinel
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func (r *DefaultConsoleReporter) sectorTable(w io.Writer, report *ReplayReport) {
	sectors := make([]string, 0, len(report.Metrics.SectorExposure))
	for s := range report.Metrics.SectorExposure {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Sector Exposure")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Sector", "Exposure"})
	for _, s := range sectors {
		t.AppendRow(table.Row{s, fmt.Sprintf("$%.2f", report.Metrics.SectorExposure[s])})
	}
	t.Render()
}
