// Package notify announces stored reports on NATS.
//
// Enqueue is non-blocking: events go into a bounded buffer and, when it is
// full, the oldest event is evicted so the newest always gets through. Run
// drains the buffer, dialing NATS and reconnecting with truncated exponential
// backoff (1s doubling to 60s, ±25% jitter) whenever a publish or flush
// fails. An event that failed to publish is put back if there is room.
//
// Each message carries the run id in the Nats-Msg-Id header so JetStream
// consumers can de-duplicate redeliveries.
package notify
