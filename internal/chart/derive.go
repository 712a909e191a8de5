package chart

import (
	"time"

	"exchangeflow/internal/flow"

	"github.com/shopspring/decimal"
)

// Share is one exchange's part of the plotted volume.
type Share struct {
	Exchange string
	Volume   float64
	Fraction float64 // of the top-N total, so fractions sum to 1
}

// FlowPair is the inflow/outflow of one exchange.
type FlowPair struct {
	Exchange string
	Inflow   float64
	Outflow  float64
}

// Point is one daily observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is the daily observations of one exchange in date order.
type Series struct {
	Exchange string
	Points   []Point
}

// topN returns the first n rows of a summary already sorted by volume.
func topN(summary []flow.SummaryRow, n int) []flow.SummaryRow {
	if n < 0 || n > len(summary) {
		n = len(summary)
	}
	return summary[:n]
}

// VolumeShare returns the volume share of the n largest exchanges.
func VolumeShare(summary []flow.SummaryRow, n int) []Share {
	top := topN(summary, n)

	total := decimal.Zero
	for _, r := range top {
		total = total.Add(r.TotalVolume)
	}

	shares := make([]Share, 0, len(top))
	for _, r := range top {
		s := Share{Exchange: r.Exchange, Volume: r.TotalVolume.InexactFloat64()}
		if total.IsPositive() {
			s.Fraction = r.TotalVolume.Div(total).InexactFloat64()
		}
		shares = append(shares, s)
	}
	return shares
}

// InflowOutflow returns the inflow and outflow of the n largest exchanges.
func InflowOutflow(summary []flow.SummaryRow, n int) []FlowPair {
	top := topN(summary, n)
	pairs := make([]FlowPair, 0, len(top))
	for _, r := range top {
		pairs = append(pairs, FlowPair{
			Exchange: r.Exchange,
			Inflow:   r.Inflow.InexactFloat64(),
			Outflow:  r.Outflow.InexactFloat64(),
		})
	}
	return pairs
}

// NetFlowSeries returns the daily net flow of the n largest exchanges. Days
// without data for an exchange are left out of its series.
func NetFlowSeries(summary []flow.SummaryRow, daily []flow.DailyRow, n int) []Series {
	top := topN(summary, n)
	index := make(map[string]int, len(top))
	series := make([]Series, len(top))
	for i, r := range top {
		index[r.Exchange] = i
		series[i].Exchange = r.Exchange
	}

	for _, row := range daily {
		i, ok := index[row.Exchange]
		if !ok {
			continue
		}
		date, err := time.Parse(flow.DayLayout, row.Date)
		if err != nil {
			continue
		}
		series[i].Points = append(series[i].Points, Point{Date: date, Value: row.NetFlow.InexactFloat64()})
	}
	return series
}

// MarketShare returns, for the n largest exchanges, each day's volume as a
// fraction of that day's volume across the same exchanges.
func MarketShare(summary []flow.SummaryRow, daily []flow.DailyRow, n int) []Series {
	top := topN(summary, n)
	index := make(map[string]int, len(top))
	series := make([]Series, len(top))
	for i, r := range top {
		index[r.Exchange] = i
		series[i].Exchange = r.Exchange
	}

	// daily is sorted by date, so each day is one contiguous run
	for start := 0; start < len(daily); {
		end := start
		for end < len(daily) && daily[end].Date == daily[start].Date {
			end++
		}
		appendDayShares(series, index, daily[start:end])
		start = end
	}
	return series
}

func appendDayShares(series []Series, index map[string]int, day []flow.DailyRow) {
	date, err := time.Parse(flow.DayLayout, day[0].Date)
	if err != nil {
		return
	}

	total := decimal.Zero
	for _, row := range day {
		if _, ok := index[row.Exchange]; ok {
			total = total.Add(row.Inflow).Add(row.Outflow)
		}
	}
	if !total.IsPositive() {
		return
	}

	for _, row := range day {
		i, ok := index[row.Exchange]
		if !ok {
			continue
		}
		share := row.Inflow.Add(row.Outflow).Div(total).InexactFloat64()
		series[i].Points = append(series[i].Points, Point{Date: date, Value: share})
	}
}

// DateSpan returns the first and last day present in daily.
func DateSpan(daily []flow.DailyRow) (first, last time.Time, ok bool) {
	if len(daily) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, err := time.Parse(flow.DayLayout, daily[0].Date)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	last, err = time.Parse(flow.DayLayout, daily[len(daily)-1].Date)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return first, last, true
}
