// Package metrics exposes the Prometheus side of vizor-etl.
//
// Collector counts invocations by outcome, rows read and skipped, and
// invocation latency, and keeps per-machine gauges of the last stored report.
// It implements pipeline.Observer.
//
// Textfile renders a report as Prometheus text exposition so node_exporter's
// textfile collector can pick it up from <dir>/<company>_<machine>.prom.
package metrics
