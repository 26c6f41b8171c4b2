// Command vizor-etl turns machine telemetry exports into dashboard reports.
//
//	vizor-etl process -config c.yaml -key company/machine/date/export.csv
//	vizor-etl serve   -config c.yaml
//	vizor-etl render  -report report.json -out report.html
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vizor/vizor-etl/internal/config"
	"github.com/vizor/vizor-etl/internal/pipeline"
	"github.com/vizor/vizor-etl/internal/render"
	"github.com/vizor/vizor-etl/pkg/types"
)

const shutdownGrace = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}
	switch args[0] {
	case "process":
		return cmdProcess(args[1:])
	case "serve":
		return cmdServe(args[1:])
	case "render":
		return cmdRender(args[1:])
	case "-h", "-help", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "vizor-etl: unknown command %q\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: vizor-etl <command> [flags]

commands:
  process   run one invocation for a storage key
  serve     run the HTTP/gRPC harness with triggers, notifications and alerts
  render    draw a stored report's 7-day history as HTML
`)
}

// loadConfig reads path, or returns the defaults when path is empty, and
// installs the JSON logger at the configured level.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Defaults()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func cmdProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (defaults apply when empty)")
	key := fs.String("key", "", "storage key of the export: company/machine/date/file.csv")
	fs.Parse(args) //nolint:errcheck
	if *key == "" {
		fmt.Fprintln(os.Stderr, "vizor-etl process: -key is required")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := newHarness(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		slog.Error("failed to start", "err", err)
		return 1
	}
	defer h.Close()

	stopNotify := h.startNotifier(ctx)
	res, _ := h.proc.Process(ctx, *key)
	h.flush(stopNotify)

	summary := map[string]interface{}{
		"run_id":  res.RunID,
		"key":     res.Key,
		"outcome": res.Outcome,
		"dest":    res.DestKey,
		"rows":    res.Rows,
		"skipped": res.Skipped,
	}
	if res.Err != nil {
		summary["error"] = res.Err.Error()
	}
	json.NewEncoder(os.Stderr).Encode(summary) //nolint:errcheck

	if res.Outcome == pipeline.OutcomeFailed {
		return 1
	}
	return 0
}

func cmdRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	in := fs.String("report", "", "path to a stored report JSON")
	out := fs.String("out", "", "output HTML path (stdout when empty)")
	fs.Parse(args) //nolint:errcheck
	if *in == "" {
		fmt.Fprintln(os.Stderr, "vizor-etl render: -report is required")
		return 2
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vizor-etl render: %v\n", err)
		return 1
	}
	var r types.DashboardReport
	if err := json.Unmarshal(data, &r); err != nil {
		fmt.Fprintf(os.Stderr, "vizor-etl render: decode %s: %v\n", *in, err)
		return 1
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vizor-etl render: %v\n", err)
			return 1
		}
		defer f.Close()
		w = f
	}
	if err := render.History(w, &r); err != nil {
		fmt.Fprintf(os.Stderr, "vizor-etl render: %v\n", err)
		return 1
	}
	return 0
}
