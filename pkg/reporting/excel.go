package reporting

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	decisionsSheet = "Decisions"
	tradesSheet    = "Trades"
	metricsSheet   = "Risk Metrics"
)

// DefaultExcelReporter writes replay workbooks
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteReportXLSX writes a workbook with Decisions, Trades and Risk Metrics sheets
func (r *DefaultExcelReporter) WriteReportXLSX(report *ReplayReport, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), decisionsSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(metricsSheet); err != nil {
		return err
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeDecisionsSheet(fx, report, styles); err != nil {
		return err
	}
	if err := r.writeTradesSheet(fx, report, styles); err != nil {
		return err
	}
	if err := r.writeMetricsSheet(fx, report, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}
	right := &excelize.Alignment{Horizontal: "right"}

	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: border,
	})
	if err != nil {
		return styles, err
	}

	if styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: border}); err != nil {
		return styles, err
	}

	// 4 = #,##0.00
	if styles.NumberStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Alignment: right, Border: border}); err != nil {
		return styles, err
	}

	// 10 = 0.00%
	if styles.PercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Alignment: right, Border: border}); err != nil {
		return styles, err
	}

	styles.RedPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Font:      &excelize.Font{Color: "FF0000"},
		Alignment: right,
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.GreenPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: right,
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.ApprovedStyle, err = fx.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E2EFDA"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return styles, err
	}

	styles.RejectedStyle, err = fx.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FCE4D6"}, Pattern: 1},
		Border: border,
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return fx.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func setRow(fx *excelize.File, sheet string, row int, values []interface{}, styles []int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(styles) && styles[i] != 0 {
			if err := fx.SetCellStyle(sheet, cell, cell, styles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeDecisionsSheet(fx *excelize.File, report *ReplayReport, styles ExcelStyles) error {
	headers := []string{"Step", "Time", "Symbol", "Signal", "Raw Signal", "Consensus", "Confidence",
		"Approved", "Risk Level", "Requested", "Adjusted", "Rejected By", "Warnings", "Trade ID"}
	if err := writeHeader(fx, decisionsSheet, headers, styles.HeaderStyle); err != nil {
		return err
	}

	for i, d := range report.Decisions {
		outcome := styles.BaseStyle
		switch {
		case d.RiskLevel == "":
		case d.Approved:
			outcome = styles.ApprovedStyle
		default:
			outcome = styles.RejectedStyle
		}
		values := []interface{}{
			d.Step, d.Time.UTC().Format("2006-01-02 15:04:05"), d.Symbol, d.Signal, d.RawSignal,
			d.ConsensusStrength, d.Confidence, d.Approved, d.RiskLevel,
			d.RequestedSize, d.AdjustedSize, d.RejectedBy, strings.Join(d.Warnings, "; "), d.TradeID,
		}
		rowStyles := []int{
			styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle,
			styles.PercentStyle, styles.PercentStyle, outcome, outcome,
			styles.NumberStyle, styles.NumberStyle, outcome, styles.BaseStyle, styles.BaseStyle,
		}
		if err := setRow(fx, decisionsSheet, i+2, values, rowStyles); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 6, "B": 18, "C": 12, "D": 8, "E": 10, "F": 11, "G": 11,
		"H": 10, "I": 10, "J": 12, "K": 12, "L": 22, "M": 50, "N": 28}
	for col, w := range widths {
		if err := fx.SetColWidth(decisionsSheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, report *ReplayReport, styles ExcelStyles) error {
	headers := []string{"Trade ID", "Closed At", "Symbol", "Side", "PnL", "Return"}
	if err := writeHeader(fx, tradesSheet, headers, styles.HeaderStyle); err != nil {
		return err
	}

	for i, t := range report.Closed {
		ret := styles.GreenPercentStyle
		if !t.Win() {
			ret = styles.RedPercentStyle
		}
		values := []interface{}{
			t.TradeID, t.Timestamp.UTC().Format("2006-01-02 15:04:05"), t.Symbol, t.Side.String(), t.PnL, t.Return,
		}
		rowStyles := []int{styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.NumberStyle, ret}
		if err := setRow(fx, tradesSheet, i+2, values, rowStyles); err != nil {
			return err
		}
	}

	for col, w := range map[string]float64{"A": 28, "B": 18, "C": 12, "D": 8, "E": 12, "F": 10} {
		if err := fx.SetColWidth(tradesSheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeMetricsSheet(fx *excelize.File, report *ReplayReport, styles ExcelStyles) error {
	if err := writeHeader(fx, metricsSheet, []string{"Metric", "Value"}, styles.HeaderStyle); err != nil {
		return err
	}

	m := report.Metrics
	rows := [][2]interface{}{
		{"Closed Trades", m.TotalTrades},
		{"Wins", m.Wins},
		{"Losses", m.Losses},
		{"Win Rate", m.WinRate.String()},
		{"Expectancy", m.Expectancy.String()},
		{"Sharpe Ratio", m.SharpeRatio.String()},
		{"Portfolio VaR", m.PortfolioVaR.String()},
		{"Current Min Risk-Reward", m.CurrentMinRR},
		{"Open Positions", m.OpenPositions},
		{"Total Exposure", m.TotalExposure},
		{"Daily Realized PnL", m.DailyRealizedPnL},
		{"Daily Drawdown", m.DailyDrawdown},
		{"Circuit Breaker", m.CircuitBreaker.State.String()},
		{"Breaker Trips", m.CircuitBreaker.Trips},
		{"Correlation Model", modelLabel(report)},
	}
	for i, row := range rows {
		style := styles.BaseStyle
		if row[0] == "Daily Drawdown" {
			style = styles.PercentStyle
		}
		if err := setRow(fx, metricsSheet, i+2, row[:], []int{styles.BaseStyle, style}); err != nil {
			return err
		}
	}

	next := len(rows) + 3
	for _, sector := range sortedKeys(m.SectorExposure) {
		if err := setRow(fx, metricsSheet, next, []interface{}{"Sector " + sector, m.SectorExposure[sector]},
			[]int{styles.BaseStyle, styles.NumberStyle}); err != nil {
			return err
		}
		next++
	}

	return fx.SetColWidth(metricsSheet, "A", "B", 28)
}
