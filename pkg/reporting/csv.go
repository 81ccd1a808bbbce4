package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

var decisionsHeader = []string{
	"step", "time", "symbol", "signal", "raw_signal", "consensus_strength", "confidence",
	"approved", "risk_level", "requested_size", "adjusted_size", "rejected_by", "warnings", "trade_id",
}

// WriteDecisionsCSV writes one row per evaluation cycle
func (r *DefaultCSVReporter) WriteDecisionsCSV(report *ReplayReport, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(decisionsHeader); err != nil {
		return err
	}
	for _, d := range report.Decisions {
		rec := []string{
			strconv.Itoa(d.Step),
			d.Time.UTC().Format("2006-01-02T15:04:05Z"),
			d.Symbol,
			d.Signal,
			d.RawSignal,
			formatFloat(d.ConsensusStrength),
			formatFloat(d.Confidence),
			strconv.FormatBool(d.Approved),
			d.RiskLevel,
			formatFloat(d.RequestedSize),
			formatFloat(d.AdjustedSize),
			d.RejectedBy,
			strings.Join(d.Warnings, "; "),
			d.TradeID,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
