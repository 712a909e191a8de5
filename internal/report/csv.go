package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

const (
	SummaryCSV = "exchange_summary.csv"
	DailyCSV   = "daily_exchange_flows.csv"
)

// CSVSink writes the summary and daily reports as CSV files into Dir.
type CSVSink struct {
	Dir string
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Files() []string {
	return []string{filepath.Join(s.Dir, SummaryCSV), filepath.Join(s.Dir, DailyCSV)}
}

func (s *CSVSink) WriteReports(_ context.Context, r Reports) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	summary := make([][]string, 0, len(r.Summary))
	for _, row := range r.Summary {
		summary = append(summary, SummaryRecord(row))
	}
	if err := writeCSV(filepath.Join(s.Dir, SummaryCSV), SummaryHeader, summary); err != nil {
		return err
	}

	daily := make([][]string, 0, len(r.Daily))
	for _, row := range r.Daily {
		daily = append(daily, DailyRecord(row))
	}
	return writeCSV(filepath.Join(s.Dir, DailyCSV), DailyHeader, daily)
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
