package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// batchDateLayout is the date embedded in batch file names, e.g.
// transactions_2024_01_15.parquet.
const batchDateLayout = "2006_01_02"

// ParseBatchDate extracts the trailing year_month_day from a batch file
// name. ok is false when the name carries no parseable date.
func ParseBatchDate(name string) (date time.Time, ok bool) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return time.Time{}, false
	}

	date, err := time.Parse(batchDateLayout, strings.Join(parts[len(parts)-3:], "_"))
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// DateRange is an inclusive calendar range. A zero bound is unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether date falls inside the range.
func (r DateRange) Contains(date time.Time) bool {
	if !r.Start.IsZero() && date.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && date.After(r.End) {
		return false
	}
	return true
}

// Includes reports whether the batch named name should be processed.
// Batches without a recognisable date are always included.
func (r DateRange) Includes(name string) bool {
	date, ok := ParseBatchDate(name)
	if !ok {
		return true
	}
	return r.Contains(date)
}

func (r DateRange) String() string {
	start, end := "-inf", "+inf"
	if !r.Start.IsZero() {
		start = r.Start.Format("2006-01-02")
	}
	if !r.End.IsZero() {
		end = r.End.Format("2006-01-02")
	}
	return fmt.Sprintf("[%s, %s]", start, end)
}

// Discover lists the regular files in dir matching pattern, sorted by name.
func Discover(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data dir %s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("file pattern %q: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}
