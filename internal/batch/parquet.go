package batch

import (
	"errors"
	"fmt"
	"io"
	"os"

	"exchangeflow/internal/flow"

	"github.com/parquet-go/parquet-go"
)

// parquetReadRows is how many rows are decoded per read.
const parquetReadRows = 256

// ParquetRow is the row layout of a columnar batch file.
type ParquetRow struct {
	Timestamp int64         `parquet:"timestamp"`
	Inputs    []RawTransfer `parquet:"inputs,list"`
	Outputs   []RawTransfer `parquet:"outputs,list"`
}

// ParquetReader reads batches written as Parquet files, a buffer of rows at
// a time.
type ParquetReader struct {
	Units Units
}

func (r *ParquetReader) ReadBatch(path string, fn func(flow.Transaction) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return fmt.Errorf("read parquet: %w", err)
	}

	reader := parquet.NewGenericReader[ParquetRow](pf)
	defer reader.Close()

	buf := make([]ParquetRow, parquetReadRows)
	row := 0
	for {
		n, err := reader.Read(buf)
		for _, rec := range buf[:n] {
			tx, terr := r.Units.transaction(rec.Timestamp, rec.Inputs, rec.Outputs)
			if terr != nil {
				return fmt.Errorf("row %d: %w", row, terr)
			}
			if ferr := fn(tx); ferr != nil {
				return fmt.Errorf("row %d: %w", row, ferr)
			}
			row++
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read parquet row %d: %w", row, err)
		}
	}
}
