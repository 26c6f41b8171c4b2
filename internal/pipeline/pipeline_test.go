package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vizor/vizor-etl/internal/report"
	"github.com/vizor/vizor-etl/internal/storage"
	"github.com/vizor/vizor-etl/pkg/types"
)

const exportCSV = `user,timestamp,cpu,ram,disk,uptime,temp,indoor,status,lat,long
u1,2025-03-04 10:00:00,20,30,10,1d,70,1,Normal,-23.5,-46.6
u1,2025-03-04 11:00:00,25,35,10,1d,72,1,Normal,-23.5,-46.6
u1,2025-03-04 12:00:00,30,40,10,1d,74,1,Normal,-23.5,-46.6
`

const sourceKey = "acme/player-7/2025-03-04/export.csv"

// failingStore rejects every Put.
type failingStore struct{ storage.Store }

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

// recorder collects observed results.
type recorder struct{ got []Result }

func (r *recorder) Observe(_ context.Context, res Result) { r.got = append(r.got, res) }

func newProcessor(t *testing.T, src *storage.Memory) (*Processor, *storage.Memory, *recorder) {
	t.Helper()
	dst := storage.NewMemory(0)
	p := New(src, dst, DefaultTuning())
	p.newID = func() string { return "run-1" }
	rec := &recorder{}
	p.Subscribe(rec)
	return p, dst, rec
}

func put(t *testing.T, st storage.Store, key, body string) {
	t.Helper()
	if err := st.Put(context.Background(), key, []byte(body)); err != nil {
		t.Fatalf("Put(%s): %v", key, err)
	}
}

func TestProcess_Stored(t *testing.T) {
	src := storage.NewMemory(0)
	put(t, src, sourceKey, exportCSV)
	p, dst, rec := newProcessor(t, src)

	res, err := p.Process(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeStored {
		t.Fatalf("Outcome = %q, want stored", res.Outcome)
	}
	if res.DestKey != "acme/2025-03-04/player-7.json" {
		t.Errorf("DestKey = %q", res.DestKey)
	}
	if res.RunID != "run-1" || res.Rows != 3 || res.Skipped != 0 {
		t.Errorf("RunID/Rows/Skipped = %q/%d/%d", res.RunID, res.Rows, res.Skipped)
	}

	body, err := dst.Fetch(context.Background(), res.DestKey)
	if err != nil {
		t.Fatalf("report not stored: %v", err)
	}
	var r types.DashboardReport
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Medians.Day.Temp != 72 || r.Regression.Trend != "subindo" {
		t.Errorf("day temp = %v, trend = %q", r.Medians.Day.Temp, r.Regression.Trend)
	}
	if len(rec.got) != 1 || rec.got[0].Outcome != OutcomeStored || rec.got[0].Report == nil {
		t.Errorf("observer got %+v", rec.got)
	}
}

func TestProcess_HugeReadingsStillStored(t *testing.T) {
	const huge = `user,timestamp,cpu,ram,disk,uptime,temp,indoor,status,lat,long
u1,2025-03-04 10:00:00,1.7e308,1.7e308,1.7e308,1d,1.7e308,1,Normal,0,0
u1,2025-03-04 11:00:00,1.7e308,1.7e308,1.7e308,1d,1.7e308,1,Normal,0,0
`
	src := storage.NewMemory(0)
	put(t, src, sourceKey, huge)
	p, dst, _ := newProcessor(t, src)

	res, err := p.Process(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeStored {
		t.Fatalf("Outcome = %q, want stored", res.Outcome)
	}
	body, err := dst.Fetch(context.Background(), res.DestKey)
	if err != nil {
		t.Fatalf("report not stored: %v", err)
	}
	var r types.DashboardReport
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Medians.Day.CPU <= 0 || r.RiskModel.Prob != 99 {
		t.Errorf("day cpu = %v, prob = %v", r.Medians.Day.CPU, r.RiskModel.Prob)
	}
}

func TestProcess_FatalOutcomes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Outcome
	}{
		{"header only", "user,timestamp,cpu,ram,disk,uptime,temp\n", OutcomeEmpty},
		{"blank", "\n\n", OutcomeEmpty},
		{"bad timestamp", "h\nu1,yesterday,1,2,3,4,5,6,Normal,0,0\n", OutcomeNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := storage.NewMemory(0)
			put(t, src, sourceKey, tt.body)
			p, dst, rec := newProcessor(t, src)

			res, err := p.Process(context.Background(), sourceKey)
			if err != nil {
				t.Fatalf("Process returned error for %s: %v", tt.want, err)
			}
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %q, want %q", res.Outcome, tt.want)
			}
			if res.Report != nil || dst.Count() != 0 {
				t.Error("no report should be produced")
			}
			if len(rec.got) != 1 {
				t.Errorf("observer called %d times, want 1", len(rec.got))
			}
		})
	}
}

func TestProcess_InvalidKey(t *testing.T) {
	p, _, _ := newProcessor(t, storage.NewMemory(0))
	res, err := p.Process(context.Background(), "lonely.csv")
	if !errors.Is(err, report.ErrInvalidKey) {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, report.ErrInvalidKey) {
		t.Errorf("Outcome/Err = %q/%v", res.Outcome, res.Err)
	}
}

func TestProcess_MissingObject(t *testing.T) {
	p, _, _ := newProcessor(t, storage.NewMemory(0))
	res, err := p.Process(context.Background(), sourceKey)
	if !errors.Is(err, storage.ErrNotFound) || res.Outcome != OutcomeFailed {
		t.Errorf("Outcome/err = %q/%v, want failed/ErrNotFound", res.Outcome, err)
	}
}

func TestProcess_TrustedFallback(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		request string
	}{
		{"adds prefix", "trusted/" + sourceKey, sourceKey},
		{"drops prefix", sourceKey, "trusted/" + sourceKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := storage.NewMemory(0)
			put(t, src, tt.stored, exportCSV)
			p, _, _ := newProcessor(t, src)

			res, err := p.Process(context.Background(), tt.request)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if res.SourceKey != tt.stored {
				t.Errorf("SourceKey = %q, want %q", res.SourceKey, tt.stored)
			}
			if res.Identity != (report.Identity{Company: "acme", Machine: "player-7"}) {
				t.Errorf("Identity = %+v", res.Identity)
			}
		})
	}
}

func TestProcess_StoreFailure(t *testing.T) {
	src := storage.NewMemory(0)
	put(t, src, sourceKey, exportCSV)
	p := New(src, failingStore{}, DefaultTuning())

	res, err := p.Process(context.Background(), sourceKey)
	if err == nil || res.Outcome != OutcomeFailed {
		t.Errorf("Outcome/err = %q/%v, want failed", res.Outcome, err)
	}
}

func TestProcess_NotUTF8(t *testing.T) {
	src := storage.NewMemory(0)
	put(t, src, sourceKey, "h\n\xff\xfe,2025-03-04 10:00:00,1,2,3,4,5\n")
	p, _, _ := newProcessor(t, src)

	if _, err := p.Process(context.Background(), sourceKey); !errors.Is(err, ErrNotUTF8) {
		t.Errorf("err = %v, want ErrNotUTF8", err)
	}
}

func TestProcess_TuningSwap(t *testing.T) {
	src := storage.NewMemory(0)
	put(t, src, sourceKey, exportCSV)
	p, _, _ := newProcessor(t, src)

	legacy := DefaultTuning()
	legacy.DestPrefix = "client"
	legacy.DateLayout = "02-01-2006"
	legacy.TrendThreshold = 5
	p.SetTuning(legacy)

	res, err := p.Process(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.DestKey != "client/acme/04-03-2025/player-7.json" {
		t.Errorf("DestKey = %q", res.DestKey)
	}
	if res.Report.Regression.Trend != "estavel" {
		t.Errorf("Trend = %q, want estavel at threshold 5", res.Report.Regression.Trend)
	}
}

func TestSetTuning_FillsZeroValues(t *testing.T) {
	p := New(storage.NewMemory(0), storage.NewMemory(0), Tuning{})
	got := p.Tuning()
	if got.Parse.MinColumns != 7 || got.Parse.Delimiter != ',' || len(got.Parse.Layouts) == 0 {
		t.Errorf("parse defaults not applied: %+v", got.Parse)
	}
	if got.DateLayout != report.DefaultDateLayout {
		t.Errorf("DateLayout = %q", got.DateLayout)
	}
}

func TestProcess_Duration(t *testing.T) {
	src := storage.NewMemory(0)
	put(t, src, sourceKey, exportCSV)
	p, _, _ := newProcessor(t, src)

	base := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	calls := 0
	p.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 250 * time.Millisecond)
	}
	res, _ := p.Process(context.Background(), sourceKey)
	if res.Duration != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", res.Duration)
	}
}
