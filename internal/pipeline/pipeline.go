package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vizor/vizor-etl/internal/report"
	"github.com/vizor/vizor-etl/internal/series"
	"github.com/vizor/vizor-etl/internal/storage"
	"github.com/vizor/vizor-etl/internal/telemetry"
	"github.com/vizor/vizor-etl/pkg/types"
)

// Outcome classifies how an invocation ended.
type Outcome string

const (
	OutcomeStored Outcome = "stored"
	OutcomeEmpty  Outcome = "empty"
	OutcomeNoData Outcome = "no_data"
	OutcomeFailed Outcome = "failed"
)

// ErrNotUTF8 is returned when the export is not valid UTF-8 text.
var ErrNotUTF8 = errors.New("pipeline: export is not valid UTF-8")

// Tuning holds the settings that may change between invocations.
type Tuning struct {
	Parse          telemetry.Options
	TrendThreshold float64
	TrustedPrefix  string
	DestPrefix     string
	DateLayout     string
}

// DefaultTuning returns the settings of the current exporter.
func DefaultTuning() Tuning {
	return Tuning{
		Parse:         telemetry.DefaultOptions(),
		TrustedPrefix: report.DefaultTrustedPrefix,
		DateLayout:    report.DefaultDateLayout,
	}
}

// Result describes one finished invocation.
type Result struct {
	RunID     string
	Key       string // key as requested
	SourceKey string // key actually read, after trusted-prefix fallback
	Outcome   Outcome
	Identity  report.Identity
	DestKey   string
	Report    *types.DashboardReport // nil unless Outcome is stored
	Rows      int
	Skipped   int
	Duration  time.Duration
	Err       error
}

// Observer is notified after every invocation, whatever its outcome.
type Observer interface {
	Observe(ctx context.Context, res Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res Result)

func (f ObserverFunc) Observe(ctx context.Context, res Result) { f(ctx, res) }

// Processor turns telemetry exports into stored reports.
//
// Process is safe for concurrent use; invocations share no state besides the
// stores and observers.
type Processor struct {
	source storage.Store
	dest   storage.Store
	tuning atomic.Pointer[Tuning]

	mu        sync.RWMutex
	observers []Observer

	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// New creates a Processor reading exports from source and writing reports to
// dest. They may be the same store.
func New(source, dest storage.Store, t Tuning) *Processor {
	p := &Processor{
		source: source,
		dest:   dest,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	p.SetTuning(t)
	return p
}

// SetTuning replaces the tuning used by subsequent invocations.
func (p *Processor) SetTuning(t Tuning) {
	if t.Parse.MinColumns == 0 {
		t.Parse.MinColumns = telemetry.DefaultMinColumns
	}
	if t.Parse.Delimiter == 0 {
		t.Parse.Delimiter = ','
	}
	if len(t.Parse.Layouts) == 0 {
		t.Parse.Layouts = telemetry.DefaultLayouts
	}
	if t.DateLayout == "" {
		t.DateLayout = report.DefaultDateLayout
	}
	p.tuning.Store(&t)
}

// Tuning returns the current tuning.
func (p *Processor) Tuning() Tuning { return *p.tuning.Load() }

// Subscribe registers o to be told about every finished invocation.
func (p *Processor) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Process runs one invocation for key. The error is non-nil only when the
// outcome is failed, and is also recorded in Result.Err.
func (p *Processor) Process(ctx context.Context, key string) (Result, error) {
	start := p.now()
	res := Result{RunID: p.newID(), Key: key}
	log := slog.With("run_id", res.RunID, "key", key)

	p.run(ctx, key, p.Tuning(), &res)
	res.Duration = p.now().Sub(start)

	switch res.Outcome {
	case OutcomeStored:
		log.Info("pipeline: report stored",
			"dest", res.DestKey, "rows", res.Rows, "skipped", res.Skipped,
			"status", res.Report.Status, "duration_ms", res.Duration.Milliseconds())
	case OutcomeEmpty, OutcomeNoData:
		log.Warn("pipeline: no report produced", "outcome", res.Outcome, "rows", res.Rows)
	default:
		log.Error("pipeline: invocation failed", "err", res.Err)
	}

	p.mu.RLock()
	observers := p.observers
	p.mu.RUnlock()
	for _, o := range observers {
		o.Observe(ctx, res)
	}
	return res, res.Err
}

func (p *Processor) run(ctx context.Context, key string, t Tuning, res *Result) {
	fail := func(err error) {
		res.Outcome = OutcomeFailed
		res.Err = err
	}

	id, err := report.ParseKey(key, t.TrustedPrefix)
	if err != nil {
		fail(err)
		return
	}
	res.Identity = id

	data, srcKey, err := p.fetch(ctx, key, t.TrustedPrefix)
	if err != nil {
		fail(err)
		return
	}
	res.SourceKey = srcKey
	if !utf8.Valid(data) {
		fail(fmt.Errorf("%w: %s", ErrNotUTF8, srcKey))
		return
	}

	exp, err := telemetry.Parse(string(data), t.Parse)
	switch {
	case errors.Is(err, telemetry.ErrEmptyExport):
		res.Outcome = OutcomeEmpty
		return
	case errors.Is(err, telemetry.ErrNoValidTimestamps):
		res.Outcome = OutcomeNoData
		return
	case err != nil:
		fail(fmt.Errorf("pipeline: parse %s: %w", srcKey, err))
		return
	}
	res.Rows, res.Skipped = exp.Rows, exp.Skipped

	ts := series.New(exp.Samples)
	rep := report.Assemble(id, exp, ts, report.Options{TrendThreshold: t.TrendThreshold})
	body, err := report.Encode(rep)
	if err != nil {
		fail(err)
		return
	}

	dest := report.DestinationKey(t.DestPrefix, id, ts.Max(), t.DateLayout)
	if err := p.dest.Put(ctx, dest, body); err != nil {
		fail(fmt.Errorf("pipeline: store %s: %w", dest, err))
		return
	}
	res.Outcome = OutcomeStored
	res.DestKey = dest
	res.Report = &rep
}

// fetch reads key, falling back once to key with the trusted prefix toggled
// when the first read reports not found.
func (p *Processor) fetch(ctx context.Context, key, trustedPrefix string) ([]byte, string, error) {
	data, err := p.source.Fetch(ctx, key)
	if err == nil {
		return data, key, nil
	}
	if !errors.Is(err, storage.ErrNotFound) || trustedPrefix == "" {
		return nil, key, fmt.Errorf("pipeline: fetch %s: %w", key, err)
	}

	alt := report.AlternateKey(key, trustedPrefix)
	slog.Debug("pipeline: key not found, trying alternate", "key", key, "alt", alt)
	data, altErr := p.source.Fetch(ctx, alt)
	if altErr != nil {
		return nil, key, fmt.Errorf("pipeline: fetch %s: %w", key, err)
	}
	return data, alt, nil
}
