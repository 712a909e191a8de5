package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tealeg/xlsx"
)

const WorkbookFile = "exchange_flows.xlsx"

// XLSXSink writes both reports into one workbook with a sheet each.
type XLSXSink struct {
	Dir string
}

func (s *XLSXSink) Name() string { return "xlsx" }

func (s *XLSXSink) Files() []string {
	return []string{filepath.Join(s.Dir, WorkbookFile)}
}

func (s *XLSXSink) WriteReports(_ context.Context, r Reports) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	file := xlsx.NewFile()

	summary, err := file.AddSheet("summary")
	if err != nil {
		return err
	}
	addRow(summary, SummaryHeader)
	for _, row := range r.Summary {
		addRow(summary, SummaryRecord(row))
	}

	daily, err := file.AddSheet("daily")
	if err != nil {
		return err
	}
	addRow(daily, DailyHeader)
	for _, row := range r.Daily {
		addRow(daily, DailyRecord(row))
	}

	if err := file.Save(filepath.Join(s.Dir, WorkbookFile)); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, fields []string) {
	row := sheet.AddRow()
	for _, f := range fields {
		row.AddCell().SetString(f)
	}
}
