package flow

import "sort"

// Summary projects one row per exchange, sorted by total volume descending.
// Equal volumes keep discovery order. Each call recomputes the view.
func (a *Accumulator) Summary() []SummaryRow {
	rows := make([]SummaryRow, 0, len(a.order))
	for _, name := range a.order {
		st := a.stats[name]
		rows = append(rows, SummaryRow{
			Exchange:        name,
			Inflow:          st.Inflow,
			Outflow:         st.Outflow,
			NetFlow:         st.Inflow.Sub(st.Outflow),
			TotalVolume:     st.Volume,
			InCount:         st.InCount,
			OutCount:        st.OutCount,
			TotalCount:      st.InCount + st.OutCount,
			UniqueAddresses: st.UniqueAddresses(),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalVolume.GreaterThan(rows[j].TotalVolume)
	})
	return rows
}

// Daily projects one row per (date, exchange), sorted by date then exchange.
func (a *Accumulator) Daily() []DailyRow {
	rows := make([]DailyRow, 0, len(a.daily))
	for key, d := range a.daily {
		rows = append(rows, DailyRow{
			Date:     key.Date,
			Exchange: key.Exchange,
			Inflow:   d.Inflow,
			Outflow:  d.Outflow,
			NetFlow:  d.Inflow.Sub(d.Outflow),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Exchange < rows[j].Exchange
	})
	return rows
}
