package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vizor/vizor-etl/internal/pipeline"
)

const namespace = "vizor_etl"

// Collector records pipeline invocations.
type Collector struct {
	invocations *prometheus.CounterVec
	rows        prometheus.Counter
	skipped     prometheus.Counter
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
	riskProb    *prometheus.GaugeVec
	stress      *prometheus.GaugeVec
	reg         prometheus.Registerer
}

// NewCollector creates the harness metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Invocations by outcome (stored, empty, no_data, failed).",
		}, []string{"outcome"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Samples with a valid timestamp read from exports.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows skipped for having too few columns.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Time from fetch to stored report.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last stored report.",
		}),
		riskProb: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_risk_prob",
			Help:      "Failure probability of the last report per machine.",
		}, []string{"company", "machine"}),
		stress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_stress",
			Help:      "Software stress of the last report per machine.",
		}, []string{"company", "machine"}),
		reg: reg,
	}
	reg.MustRegister(c.invocations, c.rows, c.skipped, c.duration, c.lastSuccess, c.riskProb, c.stress)
	for _, o := range []pipeline.Outcome{pipeline.OutcomeStored, pipeline.OutcomeEmpty, pipeline.OutcomeNoData, pipeline.OutcomeFailed} {
		c.invocations.WithLabelValues(string(o))
	}
	return c
}

// TrackQueue exposes the current length of a named buffer as a gauge.
func (c *Collector) TrackQueue(name string, length func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_length",
		Help:        "Items buffered and not yet delivered.",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 { return float64(length()) }))
}

// Observe implements pipeline.Observer.
func (c *Collector) Observe(_ context.Context, res pipeline.Result) {
	c.invocations.WithLabelValues(string(res.Outcome)).Inc()
	c.rows.Add(float64(res.Rows))
	c.skipped.Add(float64(res.Skipped))
	c.duration.Observe(res.Duration.Seconds())

	if res.Outcome != pipeline.OutcomeStored || res.Report == nil {
		return
	}
	c.lastSuccess.SetToCurrentTime()
	r := res.Report
	c.riskProb.WithLabelValues(r.Company, r.MachineID).Set(r.RiskModel.Prob)
	c.stress.WithLabelValues(r.Company, r.MachineID).Set(r.RiskModel.Stress)
}
