package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vizor/vizor-etl/internal/api"
	"github.com/vizor/vizor-etl/internal/auth"
	"github.com/vizor/vizor-etl/internal/config"
	"github.com/vizor/vizor-etl/internal/storage"
	"github.com/vizor/vizor-etl/internal/trigger"
)

const (
	healthService     = "vizor.etl"
	healthCheckMethod = "/grpc.health.v1.Health/Check"
)

func cmdServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args) //nolint:errcheck

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return 1
	}

	slog.Info("vizor-etl starting",
		"config", *configPath,
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"inbox", cfg.Trigger.Inbox.Enabled,
		"nats", cfg.Trigger.NATS.Enabled,
		"notify", cfg.Notify.Enabled,
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h, err := newHarness(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to start", "err", err)
		return 1
	}
	defer h.Close()

	for _, st := range uniqueStores(h.src, h.dst) {
		if m, ok := st.(*storage.Memory); ok {
			go m.Run(ctx)
		}
	}
	stopNotify := h.startNotifier(ctx)

	handle := func(ctx context.Context, key string) error {
		_, err := h.proc.Process(ctx, key)
		return err
	}

	guard := auth.New(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		"/healthz", "/metrics", healthCheckMethod,
	)

	// gRPC: health service behind the API key interceptor.
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(guard.UnaryInterceptor()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		return 1
	}
	go func() {
		slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.New(h.proc, h.dst, h.engine, reg, guard),
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	if cfg.Trigger.Inbox.Enabled {
		fsStore, ok := h.src.(*storage.FS)
		if !ok {
			slog.Error("inbox trigger needs an fs source store")
			return 1
		}
		inbox := trigger.NewInbox(fsStore.Root(), cfg.Trigger.Inbox.Settle, handle)
		go func() {
			if err := inbox.Run(ctx); err != nil {
				slog.Error("inbox trigger stopped", "err", err)
			}
		}()
	}

	if cfg.Trigger.NATS.Enabled {
		nc, err := nats.Connect(cfg.Trigger.NATS.URL,
			nats.Name("vizor-etl"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			slog.Error("failed to connect to NATS", "url", cfg.Trigger.NATS.URL, "err", err)
			return 1
		}
		defer nc.Close()
		sub := trigger.NewNATS(nc, cfg.Trigger.NATS.Subject, cfg.Trigger.NATS.Queue, handle)
		go func() {
			if err := sub.Run(ctx); err != nil {
				slog.Error("nats trigger stopped", "err", err)
			}
		}()
	}

	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			h.proc.SetTuning(c.Tuning())
			slog.Info("etl tuning updated",
				"trend_threshold", c.ETL.TrendThreshold,
				"min_columns", c.ETL.MinColumns,
				"date_layout", c.Destination.DateLayout,
			)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("vizor-etl shutting down")
	hs.Shutdown()
	grpcSrv.GracefulStop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck

	h.flush(stopNotify)
	return 0
}

func uniqueStores(stores ...storage.Store) []storage.Store {
	var out []storage.Store
	for _, st := range stores {
		dup := false
		for _, seen := range out {
			if seen == st {
				dup = true
			}
		}
		if !dup {
			out = append(out, st)
		}
	}
	return out
}
