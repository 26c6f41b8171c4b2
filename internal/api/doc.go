// Package api serves the vizor-etl HTTP API.
//
// Routes:
//
//	GET  /healthz                              liveness
//	GET  /metrics                              Prometheus exposition
//	POST /v1/process                           run one invocation; body is a key, {"key":...} or an S3 event
//	GET  /v1/reports/{company}/{date}/{machine} stored report JSON
//	GET  /v1/alerts                            firing and recently resolved alerts
//
// Everything except /healthz and /metrics goes through the API key guard.
package api
