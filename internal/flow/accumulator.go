package flow

import (
	"github.com/axiomhq/hyperloglog"
	"github.com/shopspring/decimal"
)

// ExchangeStats holds the cumulative figures of one exchange. Values only
// ever grow.
type ExchangeStats struct {
	Exchange string
	Inflow   decimal.Decimal
	Outflow  decimal.Decimal
	Volume   decimal.Decimal // Inflow + Outflow

	InCount  int64 // matched outputs (value received)
	OutCount int64 // matched inputs (value sent)

	addresses *hyperloglog.Sketch
}

// UniqueAddresses estimates how many distinct exchange addresses were seen.
func (s *ExchangeStats) UniqueAddresses() uint64 {
	if s.addresses == nil {
		return 0
	}
	return s.addresses.Estimate()
}

// Accumulator is the aggregation context of one analysis run. It starts
// empty, is written by Ingest and Merge, and read by Summary and Daily.
// It is not safe for concurrent use; parallel callers give each worker its
// own Accumulator and Merge them afterwards.
type Accumulator struct {
	classifier Classifier

	stats map[string]*ExchangeStats
	order []string // exchanges in discovery order
	daily map[DayKey]*DailyFlow

	transactions int64
	matched      int64
}

// NewAccumulator returns an empty Accumulator classifying with c.
func NewAccumulator(c Classifier) *Accumulator {
	return &Accumulator{
		classifier: c,
		stats:      make(map[string]*ExchangeStats),
		daily:      make(map[DayKey]*DailyFlow),
	}
}

// Ingest applies one transaction. Inputs held by an exchange are outflows,
// outputs paid to an exchange are inflows. An invalid record is rejected as
// a whole with ErrInvalidTransaction and leaves the state untouched.
func (a *Accumulator) Ingest(tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	a.transactions++

	day := tx.Day()

	for _, in := range tx.Inputs {
		exchange, ok := a.classifier.Classify(in.Address)
		if !ok {
			continue
		}
		st := a.touch(exchange)
		st.Outflow = st.Outflow.Add(in.Amount)
		st.Volume = st.Volume.Add(in.Amount)
		st.OutCount++
		st.addresses.Insert([]byte(in.Address))

		bucket := a.bucket(DayKey{Date: day, Exchange: exchange})
		bucket.Outflow = bucket.Outflow.Add(in.Amount)
		a.matched++
	}

	for _, out := range tx.Outputs {
		exchange, ok := a.classifier.Classify(out.Address)
		if !ok {
			continue
		}
		st := a.touch(exchange)
		st.Inflow = st.Inflow.Add(out.Amount)
		st.Volume = st.Volume.Add(out.Amount)
		st.InCount++
		st.addresses.Insert([]byte(out.Address))

		bucket := a.bucket(DayKey{Date: day, Exchange: exchange})
		bucket.Inflow = bucket.Inflow.Add(out.Amount)
		a.matched++
	}

	return nil
}

// Merge adds other into a. Exchanges first seen in other are appended to the
// discovery order in other's order, so merging per-batch partials in batch
// order reproduces a sequential run.
func (a *Accumulator) Merge(other *Accumulator) error {
	for _, name := range other.order {
		src := other.stats[name]
		dst := a.touch(name)
		dst.Inflow = dst.Inflow.Add(src.Inflow)
		dst.Outflow = dst.Outflow.Add(src.Outflow)
		dst.Volume = dst.Volume.Add(src.Volume)
		dst.InCount += src.InCount
		dst.OutCount += src.OutCount
		if err := dst.addresses.Merge(src.addresses); err != nil {
			return err
		}
	}

	for key, src := range other.daily {
		dst := a.bucket(key)
		dst.Inflow = dst.Inflow.Add(src.Inflow)
		dst.Outflow = dst.Outflow.Add(src.Outflow)
	}

	a.transactions += other.transactions
	a.matched += other.matched
	return nil
}

// touch returns the stats of exchange, creating them on first sight.
func (a *Accumulator) touch(exchange string) *ExchangeStats {
	st, ok := a.stats[exchange]
	if !ok {
		st = &ExchangeStats{
			Exchange:  exchange,
			addresses: hyperloglog.New14(),
		}
		a.stats[exchange] = st
		a.order = append(a.order, exchange)
	}
	return st
}

// bucket returns the daily entry for key, creating it on first touch.
func (a *Accumulator) bucket(key DayKey) *DailyFlow {
	d, ok := a.daily[key]
	if !ok {
		d = &DailyFlow{}
		a.daily[key] = d
	}
	return d
}

// Stats returns a copy of the cumulative stats of exchange.
func (a *Accumulator) Stats(exchange string) (ExchangeStats, bool) {
	st, ok := a.stats[exchange]
	if !ok {
		return ExchangeStats{}, false
	}
	return *st, true
}

// DailyFlow returns the bucket for (date, exchange).
func (a *Accumulator) DailyFlow(date, exchange string) (DailyFlow, bool) {
	d, ok := a.daily[DayKey{Date: date, Exchange: exchange}]
	if !ok {
		return DailyFlow{}, false
	}
	return *d, true
}

// Exchanges returns the exchanges seen so far in discovery order.
func (a *Accumulator) Exchanges() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Transactions returns the number of ingested transactions.
func (a *Accumulator) Transactions() int64 { return a.transactions }

// Matched returns the number of transfers attributed to an exchange.
func (a *Accumulator) Matched() int64 { return a.matched }
