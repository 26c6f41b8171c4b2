package alerts

import (
	"strconv"
	"strings"

	"github.com/vizor/vizor-etl/pkg/types"
)

// evalCondition evaluates a rule condition string against a report.
//
// Supported expressions (field operator value):
//
//	risk_prob > 80
//	stress > 85
//	slope > 0.5
//	next_prob >= 90
//	day_temp > 75        (also day_cpu, day_ram, day_disk)
//	week_temp > 70       (also week_cpu, week_ram, week_disk)
//	status == critico
//	trend == subindo
//	risk_level == high
//	severity == CRITICO
//	days == IMEDIATA
//
// String fields accept == and != and compare case-insensitively.
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, r *types.DashboardReport) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if s, ok := stringField(field, r); ok {
		switch op {
		case "==":
			return strings.EqualFold(s, rhs), 0
		case "!=":
			return !strings.EqualFold(s, rhs), 0
		default:
			return false, 0
		}
	}

	v, ok := numericField(field, r)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

func stringField(field string, r *types.DashboardReport) (string, bool) {
	switch field {
	case "status":
		return r.Status, true
	case "trend":
		return r.Regression.Trend, true
	case "risk_level":
		return r.RiskModel.RiskLevel, true
	case "severity":
		return r.UI.Severity, true
	case "days":
		return r.RiskModel.Days, true
	default:
		return "", false
	}
}

// numericField maps a field name to its value in the report.
func numericField(field string, r *types.DashboardReport) (float64, bool) {
	switch field {
	case "risk_prob":
		return r.RiskModel.Prob, true
	case "stress":
		return r.RiskModel.Stress, true
	case "slope":
		return r.Regression.Slope, true
	case "current_prob":
		return r.Regression.CurrentProb, true
	case "next_prob":
		return r.Regression.NextProb, true
	}

	window, metric, ok := strings.Cut(field, "_")
	if !ok {
		return 0, false
	}
	var m types.MetricMedians
	switch window {
	case "day":
		m = r.Medians.Day
	case "week":
		m = r.Medians.Week
	default:
		return 0, false
	}
	switch metric {
	case "cpu":
		return m.CPU, true
	case "ram":
		return m.RAM, true
	case "disk":
		return m.Disk, true
	case "temp":
		return m.Temp, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
