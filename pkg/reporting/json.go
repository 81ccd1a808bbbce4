package reporting

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultJSONReporter writes a report as indented JSON
type DefaultJSONReporter struct{}

// NewDefaultJSONReporter creates a new JSON reporter
func NewDefaultJSONReporter() *DefaultJSONReporter {
	return &DefaultJSONReporter{}
}

// WriteReportJSON writes the full report, metrics included
func (r *DefaultJSONReporter) WriteReportJSON(report *ReplayReport, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
