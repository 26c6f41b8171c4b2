package series

import (
	"encoding/json"
	"testing"

	"github.com/vizor/vizor-etl/internal/telemetry"
)

func TestHistory_KeepsLastSevenDaysAscending(t *testing.T) {
	// Ten days, one sample each, written newest first. The week window
	// anchored at 03-10 12:00 starts at 03-03 12:00, so 03-03 .. 03-10 give
	// eight candidate days and the oldest is dropped.
	var samples []telemetry.Sample
	for day := 10; day >= 1; day-- {
		samples = append(samples, sample(at(day, 12, 0), float64(day)))
	}
	h := New(samples).History()

	want := []string{
		"2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07",
		"2025-03-08", "2025-03-09", "2025-03-10",
	}
	if len(h.Labels) != len(want) {
		t.Fatalf("Labels = %v, want %v", h.Labels, want)
	}
	for i := range want {
		if h.Labels[i] != want[i] {
			t.Errorf("Labels[%d] = %q, want %q", i, h.Labels[i], want[i])
		}
	}
	if h.CPU[0] != 4 || h.CPU[6] != 10 {
		t.Errorf("CPU = %v, want 4..10", h.CPU)
	}
}

func TestHistory_AlignedSeries(t *testing.T) {
	h := New([]telemetry.Sample{
		sample(at(8, 1, 0), 10),
		sample(at(8, 2, 0), 30),
		sample(at(9, 1, 0), 70),
	}).History()

	n := len(h.Labels)
	if n != 2 {
		t.Fatalf("len(Labels) = %d, want 2", n)
	}
	for name, s := range map[string][]float64{
		"cpu": h.CPU, "ram": h.RAM, "disk": h.Disk, "temp": h.Temp, "prob": h.FailureProb,
	} {
		if len(s) != n {
			t.Errorf("len(%s) = %d, want %d", name, len(s), n)
		}
	}
	if !almostEqual(h.Temp[0], 20, 1e-9) {
		t.Errorf("Temp[0] = %v, want 20", h.Temp[0])
	}
	// failure probability medians: day 1 → median(10, 30) = 20; day 2 → 70
	if !almostEqual(h.FailureProb[0], 20, 1e-9) || !almostEqual(h.FailureProb[1], 70, 1e-9) {
		t.Errorf("FailureProb = %v, want [20 70]", h.FailureProb)
	}
}

func TestHistory_IgnoresSamplesOutsideWeek(t *testing.T) {
	h := New([]telemetry.Sample{
		sample(at(1, 0, 0), 99),
		sample(at(20, 0, 0), 5),
	}).History()
	if len(h.Labels) != 1 || h.Labels[0] != "2025-03-20" {
		t.Errorf("Labels = %v, want [2025-03-20]", h.Labels)
	}
}

func TestHistory_EmptyEncodesAsArrays(t *testing.T) {
	h := New(nil).History()
	b, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"labels":[],"cpu":[],"ram":[],"disco":[],"temp":[],"prob_falha":[]}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}
