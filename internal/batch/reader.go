package batch

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"exchangeflow/internal/flow"

	"github.com/btcsuite/btcutil"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedFormat is returned by ReaderFor for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported batch format")

// Reader streams the transactions of one batch file to fn. Any error from
// decoding or from fn aborts the batch; records already handed to fn stay
// applied.
type Reader interface {
	ReadBatch(path string, fn func(flow.Transaction) error) error
}

// Units describes how raw amounts and timestamps are encoded in batch files.
type Units struct {
	Amount    string // "btc" or "satoshi"
	Timestamp string // "s", "ms", "us" or "ns"
}

// ReaderFor picks a reader from the file extension.
func ReaderFor(path string, units Units) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return &ParquetReader{Units: units}, nil
	case ".jsonl", ".ndjson", ".json":
		return &JSONLinesReader{Units: units}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// amount converts a raw amount to BTC. BTC values are rounded to whole
// satoshis.
func (u Units) amount(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %v", v)
	}

	switch u.Amount {
	case "satoshi":
		if v != math.Trunc(v) {
			return decimal.Decimal{}, fmt.Errorf("fractional satoshi amount %v", v)
		}
		return decimal.New(int64(btcutil.Amount(v)), -8), nil
	default:
		amt, err := btcutil.NewAmount(v)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.New(int64(amt), -8), nil
	}
}

// timestamp converts a raw epoch value. Zero means missing.
func (u Units) timestamp(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	switch u.Timestamp {
	case "ms":
		return time.UnixMilli(v).UTC()
	case "us":
		return time.UnixMicro(v).UTC()
	case "ns":
		return time.Unix(0, v).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}

// RawTransfer is an (address, amount) pair as stored in batch files.
type RawTransfer struct {
	Address string  `parquet:"address" json:"address"`
	Amount  float64 `parquet:"amount" json:"amount"`
}

func (u Units) transfers(raw []RawTransfer) ([]flow.Transfer, error) {
	out := make([]flow.Transfer, 0, len(raw))
	for _, r := range raw {
		amt, err := u.amount(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("address %s: %w", r.Address, err)
		}
		out = append(out, flow.Transfer{Address: r.Address, Amount: amt})
	}
	return out, nil
}

func (u Units) transaction(ts int64, in, out []RawTransfer) (flow.Transaction, error) {
	inputs, err := u.transfers(in)
	if err != nil {
		return flow.Transaction{}, fmt.Errorf("inputs: %w", err)
	}
	outputs, err := u.transfers(out)
	if err != nil {
		return flow.Transaction{}, fmt.Errorf("outputs: %w", err)
	}
	return flow.Transaction{
		Timestamp: u.timestamp(ts),
		Inputs:    inputs,
		Outputs:   outputs,
	}, nil
}
