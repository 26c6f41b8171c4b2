package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const header = "user,timestamp,cpu,ram,disk,uptime,temp,indoor,status,lat,long"

// csvOf joins a header and rows into an export body.
func csvOf(rows ...string) string {
	return strings.Join(append([]string{header}, rows...), "\n") + "\n"
}

// --- ParseFloat ---

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"42.5", 42.5, true},
		{"42,5", 42.5, true},
		{"  7 ", 7, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1,234.5", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseFloat(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseFloat(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// --- ParseTimestamp ---

func TestParseTimestamp_Layouts(t *testing.T) {
	want := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	tests := []string{
		"2025-03-04 10:30:00",
		"2025-03-04 10:30:00.123456",
		"2025-03-04T10:30:00",
		"04/03/2025 10:30",
		"4/3/2025 10:30",
		"04-03-2025 10:30",
		"2025-03-04 10:30",
		"04/03/2025 10:30:00",
	}
	for _, in := range tests {
		got, ok := ParseTimestamp(in, DefaultLayouts, time.UTC)
		if !ok {
			t.Errorf("ParseTimestamp(%q): not parsed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseTimestamp_Rejects(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2025/03/04 10:30", ".123"} {
		if _, ok := ParseTimestamp(in, DefaultLayouts, time.UTC); ok {
			t.Errorf("ParseTimestamp(%q): expected rejection", in)
		}
	}
}

func TestParseTimestamp_PriorityOrder(t *testing.T) {
	// Only the second layout accepts the input; the first must not shadow it.
	layouts := []string{"2006-01-02 15:04:05", "2/1/2006 15:04"}
	got, ok := ParseTimestamp("01/02/2025 08:00", layouts, nil)
	if !ok {
		t.Fatal("expected parse")
	}
	if got.Month() != time.February || got.Day() != 1 {
		t.Errorf("day-first layout not applied: got %v", got)
	}
}

// --- Parse: fatal outcomes ---

func TestParse_HeaderOnly(t *testing.T) {
	_, err := Parse(header+"\n\n  \n", DefaultOptions())
	if !errors.Is(err, ErrEmptyExport) {
		t.Fatalf("err = %v, want ErrEmptyExport", err)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse("", DefaultOptions())
	if !errors.Is(err, ErrEmptyExport) {
		t.Fatalf("err = %v, want ErrEmptyExport", err)
	}
}

func TestParse_SingleRowBadTimestamp(t *testing.T) {
	_, err := Parse(csvOf("u,not-a-date,10,10,10,1h,50,0,Normal,0,0"), DefaultOptions())
	if !errors.Is(err, ErrNoValidTimestamps) {
		t.Fatalf("err = %v, want ErrNoValidTimestamps", err)
	}
}

func TestParse_OnlyShortRows(t *testing.T) {
	_, err := Parse(csvOf("u,2025-01-01 00:00:00,1", "x"), DefaultOptions())
	if !errors.Is(err, ErrNoValidTimestamps) {
		t.Fatalf("err = %v, want ErrNoValidTimestamps", err)
	}
}

// --- Parse: tolerant rows ---

func TestParse_SkipsShortRowsAndBadTimestamps(t *testing.T) {
	exp, err := Parse(csvOf(
		"u,2025-01-01 10:00:00,10,20,30,1h,40,0,Normal,1.5,2.5",
		// too few columns
		"u,2025-01-01 11:00:00,10",
		// bad timestamp
		"u,garbage,10,20,30,1h,40,0,Normal,0,0",
		"u,2025-01-01 12:00:00,11,21,31,2h,41,0,Alerta,1.5,2.5",
	), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(exp.Samples) != 2 {
		t.Fatalf("Samples len = %d, want 2", len(exp.Samples))
	}
	if exp.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (bad timestamps are not counted)", exp.Skipped)
	}
	if exp.Rows != 4 {
		t.Errorf("Rows = %d, want 4", exp.Rows)
	}
}

func TestParse_DefaultsPerField(t *testing.T) {
	exp, err := Parse(csvOf("u,2025-01-01 10:00:00,abc,55,,1h,60,0"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := exp.Samples[0]
	if s.CPU != 0 || !s.Defaulted.Has(FieldCPU) {
		t.Errorf("CPU = %v defaulted=%v, want 0 and defaulted", s.CPU, s.Defaulted.Has(FieldCPU))
	}
	if s.RAM != 55 || s.Defaulted.Has(FieldRAM) {
		t.Errorf("RAM = %v, want 55 and not defaulted", s.RAM)
	}
	if !s.Defaulted.Has(FieldDisk) {
		t.Error("empty disk column should be marked defaulted")
	}
	if s.Status != DefaultStatus {
		t.Errorf("Status = %q, want %q", s.Status, DefaultStatus)
	}
	if s.Latitude != 0 || s.Longitude != 0 {
		t.Errorf("lat/long = %v/%v, want 0/0", s.Latitude, s.Longitude)
	}
	if got := s.Defaulted.Count(); got != 5 {
		t.Errorf("Defaulted.Count = %d, want 5 (cpu, disk, status, lat, long)", got)
	}
}

func TestParse_DecimalComma(t *testing.T) {
	exp, err := Parse(csvOf(`u,2025-01-01 10:00:00,"12,5",20,30,1h,"40,25",0,Normal,"-23,5","-46,6"`), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := exp.Samples[0]
	if s.CPU != 12.5 || s.Temperature != 40.25 {
		t.Errorf("CPU/Temp = %v/%v, want 12.5/40.25", s.CPU, s.Temperature)
	}
	if s.Latitude != -23.5 || s.Longitude != -46.6 {
		t.Errorf("lat/long = %v/%v, want -23.5/-46.6", s.Latitude, s.Longitude)
	}
}

func TestParse_NegativeReadingsClamped(t *testing.T) {
	exp, err := Parse(csvOf("u,2025-01-01 10:00:00,-5,20,30,1h,-10,0,Normal,0,0"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := exp.Samples[0]
	if s.CPU != 0 || s.Temperature != 0 {
		t.Errorf("CPU/Temp = %v/%v, want 0/0", s.CPU, s.Temperature)
	}
}

func TestParse_HugeReadingsCapped(t *testing.T) {
	exp, err := Parse(csvOf("u,2025-01-01 10:00:00,1.7e308,20,1e300,1h,1.7e308,0,Normal,0,0"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := exp.Samples[0]
	if s.CPU != MaxReading || s.Disk != MaxReading || s.Temperature != MaxReading {
		t.Errorf("CPU/Disk/Temp = %v/%v/%v, want %v", s.CPU, s.Disk, s.Temperature, MaxReading)
	}
	if s.Defaulted != 0 {
		t.Errorf("Defaulted = %v, want none", s.Defaulted)
	}
	if s.FailureProbability != 99 {
		t.Errorf("FailureProbability = %v, want 99", s.FailureProbability)
	}
}

func TestParse_CurrentIsLastRowInFileOrder(t *testing.T) {
	exp, err := Parse(csvOf(
		"u,2025-01-02 10:00:00,90,20,30,5h,40,0,Critico,0,0",
		// older but last in file
		"u,2025-01-01 10:00:00,10,20,30,1h,40,0,Normal,0,0",
	), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if exp.Current.CPU != 10 || exp.Current.Uptime != "1h" {
		t.Errorf("Current = %+v, want the last row of the file", exp.Current)
	}
}

func TestParse_CurrentKeepsRawTimestampWhenUnparseable(t *testing.T) {
	exp, err := Parse(csvOf(
		"u,2025-01-01 10:00:00,10,20,30,1h,40,0,Normal,0,0",
		"u,soon,77,20,30,2h,40,0,Alerta,0,0",
	), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if exp.Current.RawTimestamp != "soon" || exp.Current.CPU != 77 {
		t.Errorf("Current = %+v, want last row with raw timestamp 'soon'", exp.Current)
	}
	if !exp.Current.Timestamp.IsZero() {
		t.Error("Current.Timestamp should be zero for an unparseable timestamp")
	}
	if len(exp.Samples) != 1 {
		t.Errorf("Samples len = %d, want 1", len(exp.Samples))
	}
}

func TestParse_CurrentSkipsTrailingShortRow(t *testing.T) {
	exp, err := Parse(csvOf(
		"u,2025-01-01 10:00:00,10,20,30,1h,40,0,Normal,0,0",
		"u,2025-01-01 11:00:00",
	), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if exp.Current.RawTimestamp != "2025-01-01 10:00:00" {
		t.Errorf("Current.RawTimestamp = %q, want last well-formed row", exp.Current.RawTimestamp)
	}
}

func TestParse_CRLFAndCustomDelimiter(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = ';'
	body := strings.ReplaceAll(header, ",", ";") + "\r\n" +
		"u;2025-01-01 10:00:00;10;20;30;1h;40;0;Normal;0;0\r\n"
	exp, err := Parse(body, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if exp.Samples[0].Status != "Normal" {
		t.Errorf("Status = %q, want Normal", exp.Samples[0].Status)
	}
}

func TestParse_Probabilities(t *testing.T) {
	exp, err := Parse(csvOf(
		"u,2025-01-01 10:00:00,0,0,10,1h,70,0,Normal,0,0",
		"u,2025-01-01 11:00:00,0,0,10,1h,72,0,Normal,0,0",
		"u,2025-01-01 12:00:00,0,0,10,1h,74,0,Normal,0,0",
	), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []float64{52, 53, 54}
	got := exp.Probabilities()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("prob[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// --- FailureProbability ---

func TestFailureProbability(t *testing.T) {
	tests := []struct {
		temp, disk float64
		want       float64
	}{
		{0, 0, 0},
		{70, 10, 52},
		{72, 10, 53},
		{74, 10, 54},
		{100, 100, 99},
		{1000, 1000, 99},
	}
	for _, tt := range tests {
		if got := FailureProbability(tt.temp, tt.disk); got != tt.want {
			t.Errorf("FailureProbability(%v, %v) = %v, want %v", tt.temp, tt.disk, got, tt.want)
		}
	}
}

func TestFailureProbability_Monotonic(t *testing.T) {
	prev := FailureProbability(0, 50)
	for temp := 1.0; temp <= 200; temp++ {
		cur := FailureProbability(temp, 50)
		if cur < prev {
			t.Fatalf("not monotonic in temperature at %v: %v < %v", temp, cur, prev)
		}
		if cur > MaxFailureProbability {
			t.Fatalf("exceeds cap at temp %v: %v", temp, cur)
		}
		prev = cur
	}
	prev = FailureProbability(50, 0)
	for disk := 1.0; disk <= 200; disk++ {
		cur := FailureProbability(50, disk)
		if cur < prev {
			t.Fatalf("not monotonic in disk at %v: %v < %v", disk, cur, prev)
		}
		prev = cur
	}
}

func TestSample_StatusCaseInsensitive(t *testing.T) {
	if !(Sample{Status: "CRITICO"}).IsCritical() {
		t.Error("CRITICO should be critical")
	}
	if !(Sample{Status: "alerta"}).IsAlert() {
		t.Error("alerta should be alert")
	}
	if (Sample{Status: "Normal"}).IsCritical() {
		t.Error("Normal should not be critical")
	}
}
