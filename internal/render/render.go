// Package render draws a report's 7-day history as a standalone HTML page.
package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vizor/vizor-etl/pkg/types"
)

// History writes an HTML page with two line charts: the daily median
// readings and the daily median failure probability.
func History(w io.Writer, r *types.DashboardReport) error {
	h := r.History
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Vizor %s / %s", r.Company, r.MachineID)

	readings := newLine(fmt.Sprintf("%s: daily medians", r.MachineID), "value")
	readings.SetXAxis(h.Labels).
		AddSeries("CPU %", lineData(h.CPU)).
		AddSeries("RAM %", lineData(h.RAM)).
		AddSeries("Disk %", lineData(h.Disk)).
		AddSeries("Temp C", lineData(h.Temp))

	prob := newLine(fmt.Sprintf("%s: failure probability (%s)", r.MachineID, r.Regression.Trend), "value")
	prob.SetXAxis(h.Labels).
		AddSeries("Failure prob %", lineData(h.FailureProb),
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}))

	page.AddCharts(readings, prob)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

func newLine(title, yType string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Type: yType}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(true)}))
	return line
}

func lineData(vs []float64) []opts.LineData {
	out := make([]opts.LineData, len(vs))
	for i, v := range vs {
		out[i] = opts.LineData{Value: v}
	}
	return out
}
