package reporting

import (
	"io"
	"path/filepath"
)

// DefaultReporter bundles the console and file reporters
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONReporter
}

var (
	_ ConsoleReporter = (*DefaultReporter)(nil)
	_ FileReporter    = (*DefaultReporter)(nil)
)

// NewDefaultReporter creates a new default reporter with all functionality
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONReporter(),
	}
}

func (r *DefaultReporter) OutputReport(w io.Writer, report *ReplayReport) {
	r.console.OutputReport(w, report)
}

func (r *DefaultReporter) WriteDecisionsCSV(report *ReplayReport, path string) error {
	return r.csv.WriteDecisionsCSV(report, path)
}

func (r *DefaultReporter) WriteReportXLSX(report *ReplayReport, path string) error {
	return r.excel.WriteReportXLSX(report, path)
}

func (r *DefaultReporter) WriteReportJSON(report *ReplayReport, path string) error {
	return r.json.WriteReportJSON(report, path)
}

// ReportingManager routes a report to every enabled output
type ReportingManager struct {
	reporter *DefaultReporter
	config   ReportingConfig
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(config ReportingConfig) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(),
		config:   config,
	}
}

// Report prints the report to w when console output is on and writes the
// enabled files under the output directory. It returns the written paths.
func (m *ReportingManager) Report(w io.Writer, report *ReplayReport) ([]string, error) {
	if m.config.EnableConsole && w != nil {
		m.reporter.OutputReport(w, report)
	}

	dir := m.config.OutputDirectory
	if dir == "" {
		dir = DefaultOutputDir(report.Name)
	}

	var written []string
	if m.config.CSVEnabled {
		p := filepath.Join(dir, "decisions.csv")
		if err := m.reporter.WriteDecisionsCSV(report, p); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if m.config.ExcelEnabled {
		p := filepath.Join(dir, "report.xlsx")
		if err := m.reporter.WriteReportXLSX(report, p); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if m.config.JSONEnabled {
		p := filepath.Join(dir, "report.json")
		if err := m.reporter.WriteReportJSON(report, p); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}
