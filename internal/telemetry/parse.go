package telemetry

import (
	"encoding/csv"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column positions in an export row.
const (
	colTimestamp   = 1
	colCPU         = 2
	colRAM         = 3
	colDisk        = 4
	colUptime      = 5
	colTemperature = 6
	colStatus      = 8
	colLatitude    = 9
	colLongitude   = 10
)

// DefaultMinColumns is the smallest row that still carries every required
// column (timestamp through temperature).
const DefaultMinColumns = colTemperature + 1

// MaxReading caps metric readings so derived sums stay finite.
const MaxReading = 1e9

// DefaultLayouts are the timestamp layouts tried in order. The first is the
// exporter's native format; the rest are the day-first variants seen in
// older exports.
var DefaultLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04",
	"2006-01-02 15:04",
	"2/1/2006 15:04:05",
}

var (
	// ErrEmptyExport means the input had no data row after the header.
	ErrEmptyExport = errors.New("telemetry: export has no data rows")

	// ErrNoValidTimestamps means no data row carried a parseable timestamp.
	ErrNoValidTimestamps = errors.New("telemetry: no row with a valid timestamp")
)

// Options tune the parser. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	Delimiter  rune
	MinColumns int
	Layouts    []string
	Location   *time.Location
}

// DefaultOptions returns the options matching the production exporter.
func DefaultOptions() Options {
	return Options{
		Delimiter:  ',',
		MinColumns: DefaultMinColumns,
		Layouts:    DefaultLayouts,
		Location:   time.UTC,
	}
}

// Export is the parsed content of one telemetry file.
type Export struct {
	// Samples holds every row with a valid timestamp, in file order.
	Samples []Sample

	// Current is the last row in file order with enough columns. It is the
	// machine's current state even when it is not the chronologically last.
	Current Sample

	// Rows counts data lines after the header.
	Rows int

	// Skipped counts rows dropped for having too few columns.
	Skipped int
}

// Probabilities returns the per-row failure probabilities in file order.
func (e *Export) Probabilities() []float64 {
	out := make([]float64, len(e.Samples))
	for i, s := range e.Samples {
		out[i] = s.FailureProbability
	}
	return out
}

// Parse decodes the text of a telemetry export.
func Parse(text string, opts Options) (*Export, error) {
	lines := nonEmptyLines(text)
	if len(lines) < 2 {
		return nil, ErrEmptyExport
	}

	exp := &Export{Rows: len(lines) - 1}
	var haveCurrent bool
	for _, line := range lines[1:] {
		cols, ok := splitRow(line, opts.Delimiter)
		if !ok || len(cols) < opts.MinColumns {
			exp.Skipped++
			continue
		}

		s, tsOK := parseRow(cols, opts)
		exp.Current = s
		haveCurrent = true
		if tsOK {
			exp.Samples = append(exp.Samples, s)
		}
	}

	if len(exp.Samples) == 0 || !haveCurrent {
		return nil, ErrNoValidTimestamps
	}
	return exp, nil
}

// nonEmptyLines splits text into lines, dropping blank ones and trailing \r.
func nonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// splitRow splits one line into trimmed columns.
func splitRow(line string, delim rune) ([]string, bool) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err != nil {
		return nil, false
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	return rec, true
}

// parseRow maps the columns of a row onto a Sample. The boolean reports
// whether the timestamp parsed; every other field defaults on its own.
func parseRow(cols []string, opts Options) (Sample, bool) {
	s := Sample{
		RawTimestamp: cols[colTimestamp],
		Uptime:       cols[colUptime],
		Status:       DefaultStatus,
	}

	s.CPU = reading(cols[colCPU], FieldCPU, &s.Defaulted)
	s.RAM = reading(cols[colRAM], FieldRAM, &s.Defaulted)
	s.Disk = reading(cols[colDisk], FieldDisk, &s.Defaulted)
	s.Temperature = reading(cols[colTemperature], FieldTemperature, &s.Defaulted)
	s.FailureProbability = FailureProbability(s.Temperature, s.Disk)

	if len(cols) > colStatus && cols[colStatus] != "" {
		s.Status = cols[colStatus]
	} else {
		s.Defaulted |= FieldStatus
	}
	s.Latitude = optional(cols, colLatitude, FieldLatitude, &s.Defaulted)
	s.Longitude = optional(cols, colLongitude, FieldLongitude, &s.Defaulted)

	ts, ok := ParseTimestamp(s.RawTimestamp, opts.Layouts, opts.Location)
	s.Timestamp = ts
	return s, ok
}

// reading parses a metric column; unparseable or negative values become 0
// and values above MaxReading are capped.
func reading(text string, f FieldMask, mask *FieldMask) float64 {
	v, ok := ParseFloat(text)
	if !ok {
		*mask |= f
		return 0
	}
	return math.Min(math.Max(v, 0), MaxReading)
}

func optional(cols []string, idx int, f FieldMask, mask *FieldMask) float64 {
	if len(cols) <= idx {
		*mask |= f
		return 0
	}
	v, ok := ParseFloat(cols[idx])
	if !ok {
		*mask |= f
	}
	return v
}

// ParseFloat parses a number written with either '.' or ',' as decimal
// separator. Anything else, including NaN and infinities, yields (0, false).
func ParseFloat(text string) (float64, bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseTimestamp drops any fractional-seconds suffix starting at the first
// '.', then tries layouts in order. A nil loc means UTC.
func ParseTimestamp(text string, layouts []string, loc *time.Location) (time.Time, bool) {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
