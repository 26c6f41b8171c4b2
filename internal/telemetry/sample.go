package telemetry

import (
	"math"
	"strings"
	"time"
)

// Canonical status labels written by the exporter.
const (
	StatusCritical = "Critico"
	StatusAlert    = "Alerta"

	// DefaultStatus is used when the status column is absent.
	DefaultStatus = "Desconhecido"
)

// MaxFailureProbability caps the derived failure probability.
const MaxFailureProbability = 99.0

// Weights of the hardware stress score that doubles as failure probability.
const (
	weightTemperature = 0.7
	weightDisk        = 0.3
)

// FieldMask records which fields of a Sample fell back to their default
// because the column was missing or unparseable.
type FieldMask uint8

const (
	FieldCPU FieldMask = 1 << iota
	FieldRAM
	FieldDisk
	FieldTemperature
	FieldStatus
	FieldLatitude
	FieldLongitude
)

// Has reports whether f is set in m.
func (m FieldMask) Has(f FieldMask) bool { return m&f != 0 }

// Count returns the number of defaulted fields.
func (m FieldMask) Count() int {
	n := 0
	for f := FieldCPU; f <= FieldLongitude; f <<= 1 {
		if m.Has(f) {
			n++
		}
	}
	return n
}

// Sample is one parsed telemetry observation. It is a value type; once built
// by the parser it is never modified.
type Sample struct {
	// Timestamp is the parsed observation time. It is the zero time only for
	// the current-state row of an export whose last row had a bad timestamp.
	Timestamp time.Time

	// RawTimestamp is the timestamp column verbatim, shown as last_update.
	RawTimestamp string

	CPU         float64 // percent
	RAM         float64 // percent
	Disk        float64 // percent
	Temperature float64 // °C

	Uptime string
	Status string

	Latitude  float64
	Longitude float64

	// FailureProbability is derived from Temperature and Disk at parse time.
	FailureProbability float64

	Defaulted FieldMask
}

// IsCritical reports whether the status is "Critico", ignoring case.
func (s Sample) IsCritical() bool { return strings.EqualFold(s.Status, StatusCritical) }

// IsAlert reports whether the status is "Alerta", ignoring case.
func (s Sample) IsAlert() bool { return strings.EqualFold(s.Status, StatusAlert) }

// FailureProbability returns min(99, floor(0.7·temp + 0.3·disk)).
//
// Inputs come from the parser and are never negative; the result is then in
// [0, 99]. The explicit float64 conversions keep each product rounded on its
// own so the floor does not depend on fused multiply-add.
func FailureProbability(temperature, disk float64) float64 {
	score := float64(weightTemperature*temperature) + float64(weightDisk*disk)
	return math.Min(MaxFailureProbability, math.Floor(score))
}
