package api

import (
	"github.com/vizor/vizor-etl/internal/pipeline"
	"github.com/vizor/vizor-etl/pkg/types"
)

// ProcessResponse is the payload of POST /v1/process.
type ProcessResponse struct {
	RunID      string                 `json:"run_id"`
	Key        string                 `json:"key"`
	SourceKey  string                 `json:"source_key,omitempty"`
	Outcome    string                 `json:"outcome"`
	DestKey    string                 `json:"dest_key,omitempty"`
	Rows       int                    `json:"rows"`
	Skipped    int                    `json:"skipped"`
	DurationMs int64                  `json:"duration_ms"`
	Error      string                 `json:"error,omitempty"`
	Report     *types.DashboardReport `json:"report,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toProcessResponse(res pipeline.Result) ProcessResponse {
	out := ProcessResponse{
		RunID:      res.RunID,
		Key:        res.Key,
		SourceKey:  res.SourceKey,
		Outcome:    string(res.Outcome),
		DestKey:    res.DestKey,
		Rows:       res.Rows,
		Skipped:    res.Skipped,
		DurationMs: res.Duration.Milliseconds(),
		Report:     res.Report,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
