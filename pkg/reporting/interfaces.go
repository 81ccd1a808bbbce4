// Package reporting renders decision-core replay results to the console and
// to CSV, Excel and JSON files.
package reporting

import (
	"io"
	"time"

	"github.com/ducminhle1904/crypto-decision-core/internal/risk"
)

// DecisionRow is one evaluation cycle or exit check of a replay
type DecisionRow struct {
	Step              int       `json:"step"`
	Time              time.Time `json:"time"`
	Symbol            string    `json:"symbol"`
	Signal            string    `json:"signal"`
	RawSignal         string    `json:"raw_signal"`
	ConsensusStrength float64   `json:"consensus_strength"`
	Confidence        float64   `json:"confidence"`
	Approved          bool      `json:"approved"`
	RiskLevel         string    `json:"risk_level,omitempty"`
	RequestedSize     float64   `json:"requested_size"`
	AdjustedSize      float64   `json:"adjusted_size"`
	RejectedBy        string    `json:"rejected_by,omitempty"`
	Warnings          []string  `json:"warnings,omitempty"`
	TradeID           string    `json:"trade_id,omitempty"`
	// Exit marks a reduce-only exit assessment rather than a signal round
	Exit bool `json:"exit,omitempty"`
}

// ReplayReport is everything a replay produced
type ReplayReport struct {
	Name      string              `json:"name"`
	Decisions []DecisionRow       `json:"decisions"`
	Closed    []risk.TradeOutcome `json:"closed"`
	Metrics   risk.RiskMetrics    `json:"metrics"`
	VaR       []float64           `json:"var_history,omitempty"`
}

// ConsoleReporter renders a report as text
type ConsoleReporter interface {
	OutputReport(w io.Writer, report *ReplayReport)
}

// FileReporter writes a report to files
type FileReporter interface {
	WriteDecisionsCSV(report *ReplayReport, path string) error
	WriteReportXLSX(report *ReplayReport, path string) error
	WriteReportJSON(report *ReplayReport, path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle       int
	BaseStyle         int
	NumberStyle       int
	PercentStyle      int
	RedPercentStyle   int
	GreenPercentStyle int
	ApprovedStyle     int
	RejectedStyle     int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
}
