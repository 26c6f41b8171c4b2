package series

import (
	"sort"

	"github.com/vizor/vizor-etl/pkg/types"
)

// Median returns the statistical median of vals: the middle value, or the
// mean of the two middle values for an even count. Empty input yields 0.
// vals is not modified.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	// Halve first so the sum cannot overflow.
	return sorted[n/2-1]/2 + sorted[n/2]/2
}

// MedianOver returns the median of metric m over the samples matching w.
func (ts *TimeSeries) MedianOver(m Metric, w Window) float64 {
	return Median(ts.Values(m, w))
}

// Medians computes the day and week medians of cpu, ram, disk and
// temperature, anchored at Max.
func (ts *TimeSeries) Medians() types.Medians {
	ref := ts.Max()
	return types.Medians{
		Day:  ts.windowMedians(Day(ref)),
		Week: ts.windowMedians(Week(ref)),
	}
}

func (ts *TimeSeries) windowMedians(w Window) types.MetricMedians {
	return types.MetricMedians{
		CPU:  ts.MedianOver(CPU, w),
		RAM:  ts.MedianOver(RAM, w),
		Disk: ts.MedianOver(Disk, w),
		Temp: ts.MedianOver(Temperature, w),
	}
}
