package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vizor/vizor-etl/internal/alerts"
	"github.com/vizor/vizor-etl/internal/auth"
	"github.com/vizor/vizor-etl/internal/pipeline"
	"github.com/vizor/vizor-etl/internal/report"
	"github.com/vizor/vizor-etl/internal/storage"
	"github.com/vizor/vizor-etl/internal/trigger"
)

const (
	maxBodyBytes   = 64 << 10
	requestTimeout = 60 * time.Second
)

// Processor runs invocations.
type Processor interface {
	Process(ctx context.Context, key string) (pipeline.Result, error)
	Tuning() pipeline.Tuning
}

// AlertSource lists current alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all routes.
type Handler struct {
	proc    Processor
	reports storage.Store
	alerts  AlertSource
	router  chi.Router
}

// New builds the router. alertSrc may be nil, in which case /v1/alerts
// returns an empty list. guard may be nil to disable authentication.
func New(proc Processor, reports storage.Store, alertSrc AlertSource, gatherer prometheus.Gatherer, guard *auth.Guard) http.Handler {
	h := &Handler{proc: proc, reports: reports, alerts: alertSrc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if guard != nil {
			r.Use(guard.Middleware)
		}
		r.Route("/v1", func(r chi.Router) {
			r.Post("/process", h.process)
			r.Get("/reports/{company}/{date}/{machine}", h.getReport)
			r.Get("/alerts", h.listAlerts)
		})
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// process runs POST /v1/process synchronously and returns the invocation
// result. Outcomes empty and no_data are not errors.
func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	key, err := trigger.KeyFromPayload(body)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.proc.Process(r.Context(), key)
	code := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, report.ErrInvalidKey), errors.Is(err, storage.ErrBadKey):
		code = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, pipeline.ErrNotUTF8):
		code = http.StatusUnprocessableEntity
	default:
		code = http.StatusBadGateway
	}
	jsonResp(w, code, toProcessResponse(res))
}

// getReport returns the stored report JSON verbatim.
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	id := report.Identity{Company: chi.URLParam(r, "company"), Machine: chi.URLParam(r, "machine")}
	key := report.ReportKey(h.proc.Tuning().DestPrefix, id, chi.URLParam(r, "date"))

	data, err := h.reports.Fetch(r.Context(), key)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrBadKey):
		jsonErr(w, http.StatusNotFound, "report not found")
		return
	case err != nil:
		slog.Error("api: fetch report failed", "key", key, "err", err)
		jsonErr(w, http.StatusBadGateway, "fetch report failed")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = append(out, h.alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
