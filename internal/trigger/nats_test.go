package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// fakeConn records the subscription and lets tests deliver messages.
type fakeConn struct {
	mu      sync.Mutex
	subject string
	queue   string
	cb      nats.MsgHandler
	err     error
	subbed  chan struct{}
}

func newFakeConn() *fakeConn { return &fakeConn{subbed: make(chan struct{})} }

func (f *fakeConn) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.subject, f.queue, f.cb = subject, queue, cb
	f.mu.Unlock()
	close(f.subbed)
	return nil, nil
}

func (f *fakeConn) deliver(data string) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb(&nats.Msg{Subject: f.subject, Data: []byte(data)})
}

func TestNATS_DeliversKeys(t *testing.T) {
	conn := newFakeConn()
	var got []string
	handle := func(_ context.Context, key string) error {
		got = append(got, key)
		return nil
	}
	n := NewNATS(conn, "telemetry.exports", "vizor-etl", handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- n.Run(ctx) }()

	select {
	case <-conn.subbed:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not subscribe")
	}
	if conn.subject != "telemetry.exports" || conn.queue != "vizor-etl" {
		t.Errorf("subscribed to %q/%q", conn.subject, conn.queue)
	}

	conn.deliver(s3Notification)
	conn.deliver("acme/m2/2025-03-04/e.csv")
	conn.deliver("") // no key: logged, handler not called

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"acme/Player Lobby/2025-03-04/export(1).csv", "acme/m2/2025-03-04/e.csv"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("handled keys = %q, want %q", got, want)
	}
}

func TestNATS_SubscribeError(t *testing.T) {
	conn := newFakeConn()
	conn.err = errors.New("not connected")
	n := NewNATS(conn, "s", "q", func(context.Context, string) error { return nil })
	if err := n.Run(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
}
