package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"exchangeflow/internal/flow"
)

// maxLineSize bounds a single JSON line; large consolidation transactions
// can carry thousands of inputs.
const maxLineSize = 16 << 20

// JSONRow is one transaction of a JSON batch file.
type JSONRow struct {
	Hash string        `json:"hash"`
	Time int64         `json:"time"`
	In   []RawTransfer `json:"in"`
	Out  []RawTransfer `json:"out"`
}

// JSONLinesReader reads JSON batches: one transaction object per line, or a
// single array of transaction objects.
type JSONLinesReader struct {
	Units Units
}

func (r *JSONLinesReader) ReadBatch(path string, fn func(flow.Transaction) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, skipped, err := firstByte(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	if first == '[' {
		return r.readArray(br, fn)
	}
	return r.readLines(br, skipped, fn)
}

// firstByte peeks the first non-whitespace byte, consuming the whitespace
// before it. newlines counts the line breaks consumed.
func firstByte(br *bufio.Reader) (b byte, newlines int, err error) {
	for {
		b, err = br.ReadByte()
		if err != nil {
			return 0, newlines, err
		}
		switch b {
		case '\n':
			newlines++
		case ' ', '\t', '\r':
		default:
			return b, newlines, br.UnreadByte()
		}
	}
}

func (r *JSONLinesReader) readLines(br *bufio.Reader, line int, fn func(flow.Transaction) error) error {
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var row JSONRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := r.apply(row, fn); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

func (r *JSONLinesReader) readArray(br *bufio.Reader, fn func(flow.Transaction) error) error {
	dec := json.NewDecoder(br)
	if err := expectToken(dec, json.Delim('[')); err != nil {
		return err
	}

	for i := 0; dec.More(); i++ {
		var row JSONRow
		if err := dec.Decode(&row); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if err := r.apply(row, fn); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return expectToken(dec, json.Delim(']'))
}

func (r *JSONLinesReader) apply(row JSONRow, fn func(flow.Transaction) error) error {
	tx, err := r.Units.transaction(row.Time, row.In, row.Out)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if row.Hash != "" {
			return fmt.Errorf("%s: %w", row.Hash, err)
		}
		return err
	}
	return nil
}

func expectToken(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %v, got %v", want, tok)
	}
	return nil
}
