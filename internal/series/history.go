package series

import (
	"sort"
	"time"

	"github.com/vizor/vizor-etl/internal/telemetry"
	"github.com/vizor/vizor-etl/pkg/types"
)

// HistoryDays is the maximum number of day buckets in a History.
const HistoryDays = 7

// LabelLayout formats history bucket labels.
const LabelLayout = "2006-01-02"

// Bucket is one calendar day of samples.
type Bucket struct {
	Day     time.Time // midnight of the day, in the samples' location
	Samples []telemetry.Sample
}

// Median returns the median of metric m across the bucket's samples.
func (b Bucket) Median(m Metric) float64 {
	vals := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		vals[i] = m.Of(s)
	}
	return Median(vals)
}

// Buckets groups the samples of the last week (timestamp ≥ Max − 7 days) by
// calendar day, ascending, keeping at most the latest HistoryDays days.
func (ts *TimeSeries) Buckets() []Bucket {
	if ts.Len() == 0 {
		return nil
	}
	byDay := make(map[string]*Bucket)
	for _, s := range ts.Select(Week(ts.Max())) {
		key := s.Timestamp.Format(LabelLayout)
		b, ok := byDay[key]
		if !ok {
			y, m, d := s.Timestamp.Date()
			b = &Bucket{Day: time.Date(y, m, d, 0, 0, 0, 0, s.Timestamp.Location())}
			byDay[key] = b
		}
		b.Samples = append(b.Samples, s)
	}

	out := make([]Bucket, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	if len(out) > HistoryDays {
		out = out[len(out)-HistoryDays:]
	}
	return out
}

// History returns the per-day medians of the last week. With no samples in
// range every series is empty, never nil, so it encodes as [].
func (ts *TimeSeries) History() types.History {
	buckets := ts.Buckets()
	h := types.History{
		Labels:      make([]string, 0, len(buckets)),
		CPU:         make([]float64, 0, len(buckets)),
		RAM:         make([]float64, 0, len(buckets)),
		Disk:        make([]float64, 0, len(buckets)),
		Temp:        make([]float64, 0, len(buckets)),
		FailureProb: make([]float64, 0, len(buckets)),
	}
	for _, b := range buckets {
		h.Labels = append(h.Labels, b.Day.Format(LabelLayout))
		h.CPU = append(h.CPU, b.Median(CPU))
		h.RAM = append(h.RAM, b.Median(RAM))
		h.Disk = append(h.Disk, b.Median(Disk))
		h.Temp = append(h.Temp, b.Median(Temperature))
		h.FailureProb = append(h.FailureProb, b.Median(FailureProbability))
	}
	return h
}
