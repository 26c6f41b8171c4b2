package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vizor/vizor-etl/internal/compute"
	"github.com/vizor/vizor-etl/internal/series"
	"github.com/vizor/vizor-etl/internal/telemetry"
	"github.com/vizor/vizor-etl/pkg/types"
)

// Options tunes the assembled report.
type Options struct {
	// TrendThreshold is the slope magnitude separating rising/falling from
	// stable. Zero means compute.DefaultTrendThreshold.
	TrendThreshold float64
}

// Assemble builds the report of one export. ts must be built from
// exp.Samples.
func Assemble(id Identity, exp *telemetry.Export, ts *series.TimeSeries, opts Options) types.DashboardReport {
	threshold := opts.TrendThreshold
	if threshold == 0 {
		threshold = compute.DefaultTrendThreshold
	}
	cur := exp.Current

	return types.DashboardReport{
		MachineID:  id.Machine,
		Company:    id.Company,
		Status:     Status(cur.Status),
		LastUpdate: cur.RawTimestamp,
		RawMetrics: types.RawMetrics{
			CPU:       percent(cur.CPU),
			RAM:       percent(cur.RAM),
			Disk:      percent(cur.Disk),
			Temp:      fmt.Sprintf("%.1f°C", cur.Temperature),
			Uptime:    cur.Uptime,
			Latitude:  cur.Latitude,
			Longitude: cur.Longitude,
		},
		UI:         compute.UIAlert(cur, id.Machine),
		RiskModel:  compute.Assess(cur),
		Medians:    ts.Medians(),
		Regression: compute.Trend(exp.Probabilities(), threshold),
		History:    ts.History(),
	}
}

// Status summarizes a raw status label as critico, alerta or ok.
func Status(raw string) string {
	switch {
	case strings.EqualFold(raw, telemetry.StatusCritical):
		return types.StatusCritical
	case strings.EqualFold(raw, telemetry.StatusAlert):
		return types.StatusAlert
	default:
		return types.StatusOK
	}
}

func percent(v float64) string { return fmt.Sprintf("%.1f%%", v) }

// Encode serializes r as indented JSON with non-ASCII text kept verbatim.
func Encode(r types.DashboardReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("report: encode: %w", err)
	}
	return buf.Bytes(), nil
}
