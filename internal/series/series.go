package series

import (
	"time"

	"github.com/vizor/vizor-etl/internal/telemetry"
)

// WeekSpan is the look-back of the weekly window and of the history.
const WeekSpan = 7 * 24 * time.Hour

// Metric selects one numeric field of a Sample.
type Metric int

const (
	CPU Metric = iota
	RAM
	Disk
	Temperature
	FailureProbability
)

// Of returns the metric's value in s.
func (m Metric) Of(s telemetry.Sample) float64 {
	switch m {
	case CPU:
		return s.CPU
	case RAM:
		return s.RAM
	case Disk:
		return s.Disk
	case Temperature:
		return s.Temperature
	case FailureProbability:
		return s.FailureProbability
	default:
		return 0
	}
}

func (m Metric) String() string {
	switch m {
	case CPU:
		return "cpu"
	case RAM:
		return "ram"
	case Disk:
		return "disk"
	case Temperature:
		return "temp"
	case FailureProbability:
		return "failure_prob"
	default:
		return "unknown"
	}
}

// Window is a predicate on sample timestamps.
type Window func(time.Time) bool

// Day matches timestamps on the same calendar date as ref, in ref's location.
func Day(ref time.Time) Window {
	y, m, d := ref.Date()
	return func(t time.Time) bool {
		ty, tm, td := t.In(ref.Location()).Date()
		return ty == y && tm == m && td == d
	}
}

// Since matches timestamps at or after from.
func Since(from time.Time) Window {
	return func(t time.Time) bool { return !t.Before(from) }
}

// Week matches timestamps within the 7 days ending at ref, inclusive of the
// lower bound.
func Week(ref time.Time) Window { return Since(ref.Add(-WeekSpan)) }

// TimeSeries is the ordered set of Samples of one machine export. Order is
// file order; only the maximum timestamp is relied upon.
type TimeSeries struct {
	samples []telemetry.Sample
	max     time.Time
}

// New builds a TimeSeries over samples. The slice is not copied; callers
// hand over ownership.
func New(samples []telemetry.Sample) *TimeSeries {
	ts := &TimeSeries{samples: samples}
	for i, s := range samples {
		if i == 0 || s.Timestamp.After(ts.max) {
			ts.max = s.Timestamp
		}
	}
	return ts
}

// Len returns the number of samples.
func (ts *TimeSeries) Len() int { return len(ts.samples) }

// Max returns the reference time: the latest sample timestamp. It is the
// zero time for an empty series.
func (ts *TimeSeries) Max() time.Time { return ts.max }

// Select returns the samples whose timestamp matches w, in file order.
func (ts *TimeSeries) Select(w Window) []telemetry.Sample {
	var out []telemetry.Sample
	for _, s := range ts.samples {
		if w(s.Timestamp) {
			out = append(out, s)
		}
	}
	return out
}

// Values returns metric m of every sample matching w, in file order.
func (ts *TimeSeries) Values(m Metric, w Window) []float64 {
	var out []float64
	for _, s := range ts.samples {
		if w(s.Timestamp) {
			out = append(out, m.Of(s))
		}
	}
	return out
}

// Series returns metric m of every sample, in file order.
func (ts *TimeSeries) Series(m Metric) []float64 {
	out := make([]float64, len(ts.samples))
	for i, s := range ts.samples {
		out[i] = m.Of(s)
	}
	return out
}
