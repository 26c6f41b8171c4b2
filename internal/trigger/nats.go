package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// queueSubscriber is the subset of *nats.Conn used by NATS.
type queueSubscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NATS runs the handler for every message on a subject. Members of the same
// queue group share the load.
type NATS struct {
	conn    queueSubscriber
	subject string
	queue   string
	handle  Handler
}

// NewNATS creates a NATS trigger over an established connection.
func NewNATS(conn queueSubscriber, subject, queue string, handle Handler) *NATS {
	return &NATS{conn: conn, subject: subject, queue: queue, handle: handle}
}

// Run subscribes and blocks until ctx is cancelled.
func (n *NATS) Run(ctx context.Context) error {
	sub, err := n.conn.QueueSubscribe(n.subject, n.queue, func(msg *nats.Msg) {
		n.onMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("trigger: nats: subscribe %s: %w", n.subject, err)
	}
	slog.Info("trigger: nats subscribed", "subject", n.subject, "queue", n.queue)

	<-ctx.Done()
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("trigger: nats: unsubscribe", "subject", n.subject, "err", err)
		}
	}
	return nil
}

// onMessage handles one payload. Requests (messages with a reply subject)
// get "ok" or the error text back.
func (n *NATS) onMessage(ctx context.Context, msg *nats.Msg) {
	key, err := KeyFromPayload(msg.Data)
	if err == nil {
		err = n.handle(ctx, key)
	}
	if err != nil {
		slog.Warn("trigger: nats: message not processed", "subject", msg.Subject, "key", key, "err", err)
	}
	if msg.Reply == "" {
		return
	}
	reply := []byte("ok")
	if err != nil {
		reply = []byte(err.Error())
	}
	if rerr := msg.Respond(reply); rerr != nil {
		slog.Warn("trigger: nats: respond", "reply", msg.Reply, "err", rerr)
	}
}
