package chart

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"exchangeflow/internal/flow"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

const (
	VolumeShareFile   = "exchange_volume_share.png"
	InflowOutflowFile = "exchange_inflow_outflow.png"
	NetFlowFile       = "exchange_net_flow_timeseries.png"
	MarketShareFile   = "exchange_market_share.png"

	// vgimg renders PNGs at 96 DPI
	pngDPI = 96
)

// Files lists the chart file names in render order.
var Files = []string{VolumeShareFile, InflowOutflowFile, NetFlowFile, MarketShareFile}

// Options selects how many exchanges each chart shows and the image size.
type Options struct {
	TopNVolume      int
	TopNFlow        int
	TopNTimeSeries  int
	TopNMarketShare int
	WidthPx         int
	HeightPx        int
}

// Renderer draws the four report charts as PNG files into Dir.
type Renderer struct {
	Dir    string
	Opts   Options
	Logger *zap.Logger
}

// RenderAll draws every chart that has data and returns the written paths.
// A chart without data has its file from an earlier run removed.
func (r *Renderer) RenderAll(summary []flow.SummaryRow, daily []flow.DailyRow) ([]string, error) {
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	charts := []struct {
		file string
		make func() (*plot.Plot, error)
	}{
		{VolumeShareFile, func() (*plot.Plot, error) { return volumeSharePlot(VolumeShare(summary, r.Opts.TopNVolume)) }},
		{InflowOutflowFile, func() (*plot.Plot, error) { return inflowOutflowPlot(InflowOutflow(summary, r.Opts.TopNFlow)) }},
		{NetFlowFile, func() (*plot.Plot, error) {
			return seriesPlot(NetFlowSeries(summary, daily, r.Opts.TopNTimeSeries), daily,
				fmt.Sprintf("Daily net flow (top %d exchanges)", r.Opts.TopNTimeSeries), "Net flow (BTC)", 1)
		}},
		{MarketShareFile, func() (*plot.Plot, error) {
			return seriesPlot(MarketShare(summary, daily, r.Opts.TopNMarketShare), daily,
				fmt.Sprintf("Daily market share (top %d exchanges)", r.Opts.TopNMarketShare), "Share of daily volume (%)", 100)
		}},
	}

	var written []string
	for _, c := range charts {
		p, err := c.make()
		if err != nil {
			return written, fmt.Errorf("%s: %w", c.file, err)
		}
		path := filepath.Join(r.Dir, c.file)
		if p == nil {
			r.logger().Info("no data for chart, skipping", zap.String("chart", c.file))
			if err := removeStale(path); err != nil {
				return written, err
			}
			continue
		}

		if err := p.Save(pixels(r.Opts.WidthPx), pixels(r.Opts.HeightPx), path); err != nil {
			return written, fmt.Errorf("save %s: %w", c.file, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// removeStale deletes path if it exists.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (r *Renderer) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func pixels(px int) vg.Length {
	return vg.Length(px) * vg.Inch / pngDPI
}

func rotateXLabels(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
}

func volumeSharePlot(shares []Share) (*plot.Plot, error) {
	if len(shares) == 0 {
		return nil, nil
	}

	names := make([]string, len(shares))
	values := make(plotter.Values, len(shares))
	for i, s := range shares {
		names[i] = s.Exchange
		values[i] = s.Fraction * 100
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Share of total volume (top %d exchanges)", len(shares))
	p.Y.Label.Text = "Share of volume (%)"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars, plotter.NewGrid())
	p.NominalX(names...)
	rotateXLabels(p)
	return p, nil
}

func inflowOutflowPlot(pairs []FlowPair) (*plot.Plot, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	names := make([]string, len(pairs))
	inflows := make(plotter.Values, len(pairs))
	outflows := make(plotter.Values, len(pairs))
	for i, f := range pairs {
		names[i] = f.Exchange
		inflows[i] = f.Inflow
		outflows[i] = f.Outflow
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Inflow vs outflow (top %d exchanges)", len(pairs))
	p.Y.Label.Text = "BTC"
	p.Y.Min = 0

	width := vg.Points(14)
	in, err := plotter.NewBarChart(inflows, width)
	if err != nil {
		return nil, err
	}
	in.Color = plotutil.Color(2)
	in.LineStyle.Width = 0
	in.Offset = -width / 2

	out, err := plotter.NewBarChart(outflows, width)
	if err != nil {
		return nil, err
	}
	out.Color = plotutil.Color(0)
	out.LineStyle.Width = 0
	out.Offset = width / 2

	p.Add(in, out, plotter.NewGrid())
	p.Legend.Add("Inflow", in)
	p.Legend.Add("Outflow", out)
	p.Legend.Top = true
	p.NominalX(names...)
	rotateXLabels(p)
	return p, nil
}

// seriesPlot draws one line per exchange over the full date range of daily.
// Values are multiplied by scale before plotting.
func seriesPlot(series []Series, daily []flow.DailyRow, title, yLabel string, scale float64) (*plot.Plot, error) {
	first, last, ok := DateSpan(daily)
	if !ok || len(series) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.X.Label.Text = "Date"
	p.X.Tick.Marker = plot.TimeTicks{Format: flow.DayLayout}
	p.X.Min = float64(first.Unix())
	p.X.Max = float64(last.Unix())
	if p.X.Min == p.X.Max {
		// single day: pad half a day either side
		p.X.Min -= 12 * 3600
		p.X.Max += 12 * 3600
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = float64(pt.Date.Unix())
			xys[j].Y = pt.Value * scale
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		points.GlyphStyle.Color = plotutil.Color(i)
		points.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(s.Exchange, line, points)
	}
	rotateXLabels(p)
	return p, nil
}
