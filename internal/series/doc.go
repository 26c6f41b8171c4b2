// Package series holds the Samples of one export and answers windowed
// questions about them.
//
// All windows are anchored to the series' own maximum timestamp (Max), not to
// the wall clock, so reprocessing an old export yields the same report.
//
//   - Day(ref): same calendar date as ref
//   - Week(ref): timestamp ≥ ref − 7 days
//
// MedianOver / Medians compute the day and week medians of each metric.
// History groups the last week by calendar day and keeps at most 7 days.
package series
