package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vizor/vizor-etl/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	flushTimeout      = 5 * time.Second

	// DefaultBufferSize is used when New is given a non-positive size.
	DefaultBufferSize = 256
)

// Event announces one stored report.
type Event struct {
	RunID       string    `json:"run_id"`
	Company     string    `json:"company"`
	MachineID   string    `json:"machine_id"`
	Status      string    `json:"status"`
	RiskLevel   string    `json:"risk_level"`
	Prob        float64   `json:"prob"`
	Trend       string    `json:"trend"`
	DestKey     string    `json:"dest_key"`
	GeneratedAt time.Time `json:"generated_at"`
}

// EventFor summarizes a stored report.
func EventFor(runID, destKey string, r types.DashboardReport, at time.Time) Event {
	return Event{
		RunID:       runID,
		Company:     r.Company,
		MachineID:   r.MachineID,
		Status:      r.Status,
		RiskLevel:   r.RiskModel.RiskLevel,
		Prob:        r.RiskModel.Prob,
		Trend:       r.Regression.Trend,
		DestKey:     destKey,
		GeneratedAt: at.UTC(),
	}
}

// publisher is the subset of *nats.Conn used by Notifier.
type publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// dialFunc opens a publisher. Abstracted so tests can inject a fake.
type dialFunc func(url string) (publisher, error)

// Notifier buffers Events and publishes them to a NATS subject.
type Notifier struct {
	url     string
	subject string
	buf     chan Event
	dialFn  dialFunc
}

// New creates a Notifier publishing to subject on the server at url.
func New(url, subject string, bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Notifier{
		url:     url,
		subject: subject,
		buf:     make(chan Event, bufferSize),
		dialFn:  defaultDial,
	}
}

// Enqueue adds ev to the buffer, evicting the oldest event when full.
func (n *Notifier) Enqueue(ev Event) {
	select {
	case n.buf <- ev:
	default:
		select {
		case old := <-n.buf:
			slog.Warn("notify: buffer full, evicted oldest event",
				"run_id", old.RunID, "buffer_cap", cap(n.buf))
		default:
		}
		select {
		case n.buf <- ev:
		default:
		}
	}
}

// Pending returns the number of buffered events.
func (n *Notifier) Pending() int { return len(n.buf) }

// Run drains the buffer until ctx is cancelled, reconnecting as needed.
func (n *Notifier) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := n.dialFn(n.url)
		if err != nil {
			wait := bo.next()
			slog.Error("notify: dial failed, will retry", "url", n.url, "err", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		slog.Info("notify: connected", "url", n.url, "subject", n.subject)
		bo.reset()

		err = n.drain(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("notify: connection lost, will reconnect", "url", n.url, "err", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// drain publishes buffered events until a publish fails or ctx is cancelled.
func (n *Notifier) drain(ctx context.Context, conn publisher) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-n.buf:
			if err := n.publish(conn, ev); err != nil {
				select {
				case n.buf <- ev:
				default:
				}
				return err
			}
			slog.Debug("notify: event published", "run_id", ev.RunID, "dest", ev.DestKey)
		}
	}
}

func (n *Notifier) publish(conn publisher, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	msg := nats.NewMsg(n.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.RunID)
	if err := conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	if err := conn.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("notify: flush: %w", err)
	}
	return nil
}

func defaultDial(url string) (publisher, error) {
	return nats.Connect(url, nats.Name("vizor-etl-notify"))
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	d += time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	if d < 0 {
		d = 0
	}
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
