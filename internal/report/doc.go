// Package report composes a DashboardReport from a parsed export and maps
// storage keys in and out.
//
// Source keys look like company/machine/date/file.csv, optionally under the
// trusted prefix. The report lands at [prefix/]company/<date>/machine.json,
// where <date> is the series' maximum timestamp in the configured layout.
//
// Assemble performs no computation of its own beyond formatting: every block
// comes from internal/series or internal/compute.
package report
