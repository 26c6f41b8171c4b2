package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vizor/vizor-etl/internal/alerts"
	"github.com/vizor/vizor-etl/internal/config"
	"github.com/vizor/vizor-etl/internal/metrics"
	"github.com/vizor/vizor-etl/internal/notify"
	"github.com/vizor/vizor-etl/internal/pipeline"
	"github.com/vizor/vizor-etl/internal/storage"
)

// harness holds the processor and everything observing it.
type harness struct {
	src, dst  storage.Store
	proc      *pipeline.Processor
	collector *metrics.Collector
	engine    *alerts.Engine
	notifier  *notify.Notifier // nil when notify is disabled
	closers   []io.Closer
}

func newHarness(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*harness, error) {
	h := &harness{}

	src, err := storage.Open(ctx, cfg.Source.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	h.track(src)
	dst := src
	if cfg.Destination.StoreConfig != cfg.Source {
		if dst, err = storage.Open(ctx, cfg.Destination.StoreOptions()); err != nil {
			h.Close()
			return nil, fmt.Errorf("open destination store: %w", err)
		}
		h.track(dst)
	}
	h.src, h.dst = src, dst

	slog.Info("stores opened",
		"source_kind", cfg.Source.Kind,
		"destination_kind", cfg.Destination.Kind,
		"destination_prefix", cfg.Destination.Prefix,
	)

	h.proc = pipeline.New(src, dst, cfg.Tuning())

	h.collector = metrics.NewCollector(reg)
	h.proc.Subscribe(h.collector)

	h.engine = alerts.New(cfg.Alerts)
	h.proc.Subscribe(pipeline.ObserverFunc(func(_ context.Context, res pipeline.Result) {
		if res.Outcome == pipeline.OutcomeStored {
			h.engine.Evaluate(*res.Report)
		}
	}))

	if cfg.Metrics.TextfileDir != "" {
		h.proc.Subscribe(metrics.NewTextfile(cfg.Metrics.TextfileDir))
	}

	if cfg.Notify.Enabled {
		h.notifier = notify.New(cfg.Notify.URL, cfg.Notify.Subject, cfg.Notify.BufferSize)
		h.collector.TrackQueue("notify", h.notifier.Pending)
		h.proc.Subscribe(pipeline.ObserverFunc(func(_ context.Context, res pipeline.Result) {
			if res.Outcome == pipeline.OutcomeStored {
				h.notifier.Enqueue(notify.EventFor(res.RunID, res.DestKey, *res.Report, time.Now().UTC()))
			}
		}))
	}
	return h, nil
}

func (h *harness) track(st storage.Store) {
	if c, ok := st.(io.Closer); ok {
		h.closers = append(h.closers, c)
	}
}

// startNotifier runs the notifier until the returned stop function is called
// or ctx ends. stop blocks until the notifier has returned.
func (h *harness) startNotifier(ctx context.Context) func() {
	if h.notifier == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.notifier.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// flush waits for webhook deliveries and, within shutdownGrace, for the
// notification buffer to drain, then stops the notifier.
func (h *harness) flush(stopNotify func()) {
	h.engine.Wait()
	if h.notifier != nil {
		deadline := time.Now().Add(shutdownGrace)
		for h.notifier.Pending() > 0 && time.Now().Before(deadline) {
			time.Sleep(50 * time.Millisecond)
		}
		if n := h.notifier.Pending(); n > 0 {
			slog.Warn("notifications dropped at shutdown", "pending", n)
		}
	}
	stopNotify()
}

func (h *harness) Close() {
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			slog.Warn("close store", "err", err)
		}
	}
}
