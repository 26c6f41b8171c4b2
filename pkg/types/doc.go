// Package types defines the dashboard report written for each processed
// telemetry export. These are the wire types read by the visualization and
// alerting consumers; JSON field names are part of that contract and must
// not change.
package types
