// Package telemetry turns a raw CSV telemetry export into typed Samples.
//
// Parse is tolerant by contract: a row is kept whenever its timestamp parses,
// and every other field independently falls back to its default. Only two
// conditions fail the whole export:
//
//   - fewer than two non-empty lines (header plus at least one row) → ErrEmptyExport
//   - no row with a parseable timestamp → ErrNoValidTimestamps
//
// Column positions are fixed by the exporter (see the col* constants):
//
//	0:user 1:timestamp 2:cpu 3:ram 4:disk 5:uptime 6:temp 7:indoor 8:status 9:lat 10:long
//
// Rows are split with encoding/csv using the configured delimiter. The
// exporter does not quote fields today; quoted fields are nevertheless
// honored so an embedded delimiter does not shift columns.
//
// FailureProbability is derived at ingestion: min(99, floor(0.7·temp + 0.3·disk)).
package telemetry
