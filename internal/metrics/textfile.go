package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/vizor/vizor-etl/internal/pipeline"
	"github.com/vizor/vizor-etl/pkg/types"
)

const reportPrefix = "vizor_report_"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Textfile writes report gauges for node_exporter's textfile collector.
type Textfile struct {
	dir string
}

// NewTextfile returns a Textfile writing into dir.
func NewTextfile(dir string) *Textfile { return &Textfile{dir: dir} }

// Path returns the file the report of company/machine is written to.
func (t *Textfile) Path(company, machine string) string {
	name := unsafeName.ReplaceAllString(company+"_"+machine, "_") + ".prom"
	return filepath.Join(t.dir, name)
}

// Write renders r and atomically replaces its .prom file.
func (t *Textfile) Write(r *types.DashboardReport) error {
	var buf bytes.Buffer
	if err := WriteText(&buf, r); err != nil {
		return err
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("metrics: create %s: %w", t.dir, err)
	}

	dst := t.Path(r.Company, r.MachineID)
	tmp, err := os.CreateTemp(t.dir, ".vizor-*.prom.tmp")
	if err != nil {
		return fmt.Errorf("metrics: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("metrics: rename to %s: %w", dst, err)
	}
	return nil
}

// Observe implements pipeline.Observer. Only stored reports are written.
func (t *Textfile) Observe(_ context.Context, res pipeline.Result) {
	if res.Outcome != pipeline.OutcomeStored || res.Report == nil {
		return
	}
	if err := t.Write(res.Report); err != nil {
		slog.Error("metrics: textfile export failed", "run_id", res.RunID, "err", err)
	}
}

// WriteText writes r as Prometheus text exposition.
func WriteText(w io.Writer, r *types.DashboardReport) error {
	for _, mf := range Families(r) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Families converts r to gauge metric families labelled by company and
// machine.
func Families(r *types.DashboardReport) []*dto.MetricFamily {
	base := func(extra ...string) []*dto.LabelPair {
		lp := []*dto.LabelPair{label("company", r.Company), label("machine", r.MachineID)}
		for i := 0; i+1 < len(extra); i += 2 {
			lp = append(lp, label(extra[i], extra[i+1]))
		}
		return lp
	}

	medians := &dto.MetricFamily{
		Name: proto.String(reportPrefix + "median"),
		Help: proto.String("Median reading per window and metric."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, w := range []struct {
		name string
		m    types.MetricMedians
	}{{"day", r.Medians.Day}, {"week", r.Medians.Week}} {
		for _, v := range []struct {
			metric string
			value  float64
		}{{"cpu", w.m.CPU}, {"ram", w.m.RAM}, {"disk", w.m.Disk}, {"temp", w.m.Temp}} {
			medians.Metric = append(medians.Metric, gaugeMetric(base("window", w.name, "metric", v.metric), v.value))
		}
	}

	return []*dto.MetricFamily{
		gauge("risk_prob", "Heuristic failure probability of the current reading.", base(), r.RiskModel.Prob),
		gauge("stress", "Software stress score of the current reading.", base(), r.RiskModel.Stress),
		gauge("regression_slope", "Slope of the failure probability trend per row.", base("trend", r.Regression.Trend), r.Regression.Slope),
		gauge("regression_next_prob", "Projected failure probability of the next row.", base(), r.Regression.NextProb),
		gauge("status", "Summarized machine status, always 1.", base("status", r.Status, "risk_level", r.RiskModel.RiskLevel), 1),
		medians,
	}
}

func gauge(name, help string, labels []*dto.LabelPair, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(reportPrefix + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{gaugeMetric(labels, v)},
	}
}

func gaugeMetric(labels []*dto.LabelPair, v float64) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
