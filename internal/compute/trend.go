package compute

import (
	"github.com/vizor/vizor-etl/internal/telemetry"
	"github.com/vizor/vizor-etl/pkg/types"
)

// Trend labels for Regression.Trend.
const (
	TrendRising  = "subindo"
	TrendFalling = "descendo"
	TrendStable  = "estavel"
)

// DefaultTrendThreshold is the slope magnitude above which a trend is rising
// or falling.
const DefaultTrendThreshold = 0.5

// Trend fits probs against their index and classifies the slope against
// ±threshold.
func Trend(probs []float64, threshold float64) types.Regression {
	n := len(probs)
	switch n {
	case 0:
		return types.Regression{Trend: TrendStable}
	case 1:
		return flat(probs[0])
	}

	var sumX, sumY, sumXX, sumXY float64
	for i, y := range probs {
		x := float64(i)
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return flat(probs[n-1])
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	return types.Regression{
		Slope:       slope,
		Intercept:   intercept,
		Trend:       classify(slope, threshold),
		CurrentProb: clampProb(slope*float64(n-1) + intercept),
		NextProb:    clampProb(slope*fn + intercept),
	}
}

// flat is the zero-slope regression through a single probability.
func flat(p float64) types.Regression {
	p = clampProb(p)
	return types.Regression{
		Intercept:   p,
		Trend:       TrendStable,
		CurrentProb: p,
		NextProb:    p,
	}
}

func classify(slope, threshold float64) string {
	switch {
	case slope > threshold:
		return TrendRising
	case slope < -threshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

// clampProb restricts v to [0, MaxFailureProbability].
func clampProb(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > telemetry.MaxFailureProbability {
		return telemetry.MaxFailureProbability
	}
	return v
}
