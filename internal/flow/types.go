package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DayLayout formats the calendar day used for daily buckets.
const DayLayout = "2006-01-02"

// ErrInvalidTransaction is returned by Ingest for records that cannot be
// accumulated. The caller aborts the batch the record came from.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transfer is one (address, amount) pair on either side of a transaction.
// Amount is in BTC.
type Transfer struct {
	Address string
	Amount  decimal.Decimal
}

// Transaction is a read-only input record.
type Transaction struct {
	Timestamp time.Time
	Inputs    []Transfer
	Outputs   []Transfer
}

// Day returns the UTC calendar day of the transaction.
func (tx Transaction) Day() string {
	return tx.Timestamp.UTC().Format(DayLayout)
}

// Validate checks the whole record so Ingest can apply it atomically.
func (tx Transaction) Validate() error {
	if tx.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTransaction)
	}
	for i, in := range tx.Inputs {
		if in.Amount.IsNegative() {
			return fmt.Errorf("%w: input %d has negative amount %s", ErrInvalidTransaction, i, in.Amount)
		}
	}
	for i, out := range tx.Outputs {
		if out.Amount.IsNegative() {
			return fmt.Errorf("%w: output %d has negative amount %s", ErrInvalidTransaction, i, out.Amount)
		}
	}
	return nil
}

// DayKey identifies one daily bucket.
type DayKey struct {
	Date     string
	Exchange string
}

// DailyFlow holds the inflow and outflow of one exchange on one day.
type DailyFlow struct {
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
}

// SummaryRow is one line of the overall exchange summary.
type SummaryRow struct {
	Exchange        string          `json:"exchange"`
	Inflow          decimal.Decimal `json:"inflow"`
	Outflow         decimal.Decimal `json:"outflow"`
	NetFlow         decimal.Decimal `json:"net_flow"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	InCount         int64           `json:"tx_count_in"`
	OutCount        int64           `json:"tx_count_out"`
	TotalCount      int64           `json:"tx_count_total"`
	UniqueAddresses uint64          `json:"unique_addresses"` // HyperLogLog estimate
}

// DailyRow is one (date, exchange) line of the daily flow report.
type DailyRow struct {
	Date     string          `json:"date"`
	Exchange string          `json:"exchange"`
	Inflow   decimal.Decimal `json:"inflow"`
	Outflow  decimal.Decimal `json:"outflow"`
	NetFlow  decimal.Decimal `json:"net_flow"`
}
