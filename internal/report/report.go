package report

import (
	"context"
	"strconv"
	"time"

	"exchangeflow/internal/flow"

	"github.com/shopspring/decimal"
)

// Places after the decimal point in persisted amounts (one satoshi).
const amountPlaces = 8

// RunInfo describes one analysis run.
type RunInfo struct {
	ID               string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	StartDate        string    `json:"start_date,omitempty"`
	EndDate          string    `json:"end_date,omitempty"`
	BatchesFound     int       `json:"batches_found"`
	BatchesFiltered  int       `json:"batches_filtered"`
	BatchesProcessed int       `json:"batches_processed"`
	BatchesSkipped   int       `json:"batches_skipped"`
	Transactions     int64     `json:"transactions"`
	Matched          int64     `json:"matched_transfers"`
}

// Reports bundles the tabular views produced by one run.
type Reports struct {
	Run     RunInfo
	Summary []flow.SummaryRow
	Daily   []flow.DailyRow
}

// Sink persists reports somewhere.
type Sink interface {
	Name() string
	WriteReports(ctx context.Context, r Reports) error
}

// FileSink is a Sink that writes local files. Files lists every path a
// successful WriteReports leaves behind.
type FileSink interface {
	Sink
	Files() []string
}

var (
	SummaryHeader = []string{
		"exchange", "inflow", "outflow", "net_flow", "total_volume",
		"tx_count_in", "tx_count_out", "tx_count_total", "unique_addresses",
	}
	DailyHeader = []string{"date", "exchange", "inflow", "outflow", "net_flow"}
)

// SummaryRecord renders a summary row as text fields matching SummaryHeader.
func SummaryRecord(r flow.SummaryRow) []string {
	return []string{
		r.Exchange,
		formatAmount(r.Inflow),
		formatAmount(r.Outflow),
		formatAmount(r.NetFlow),
		formatAmount(r.TotalVolume),
		strconv.FormatInt(r.InCount, 10),
		strconv.FormatInt(r.OutCount, 10),
		strconv.FormatInt(r.TotalCount, 10),
		strconv.FormatUint(r.UniqueAddresses, 10),
	}
}

// DailyRecord renders a daily row as text fields matching DailyHeader.
func DailyRecord(r flow.DailyRow) []string {
	return []string{
		r.Date,
		r.Exchange,
		formatAmount(r.Inflow),
		formatAmount(r.Outflow),
		formatAmount(r.NetFlow),
	}
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(amountPlaces)
}
