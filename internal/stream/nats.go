package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials a NATS server with unlimited reconnects.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// NATS is a Transport over a NATS connection.
type NATS struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATS wraps an established connection. Subjects are rooted at prefix.
func NewNATS(conn *nats.Conn, prefix string, log *slog.Logger) *NATS {
	if log == nil {
		log = slog.Default()
	}
	return &NATS{conn: conn, prefix: prefix, log: log.With(slog.String("transport", "nats"))}
}

// SubscribeSamples subscribes to prefix.samples.* .
func (n *NATS) SubscribeSamples(h Handler) error {
	var buf []Record
	sub, err := n.conn.Subscribe(SampleSubject(n.prefix, "*"), func(msg *nats.Msg) {
		n.handle(h, msg, &buf)
	})
	if err != nil {
		return fmt.Errorf("stream: subscribe: %w", err)
	}

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
	return nil
}

// handle runs on the subscription goroutine. NATS delivers one message at a
// time per subscription, so buf needs no lock.
func (n *NATS) handle(h Handler, msg *nats.Msg, buf *[]Record) {
	ch, ok := channelFrom(msg.Subject, n.prefix, "samples", ".")
	if !ok {
		n.log.Warn("unexpected subject", slog.String("subject", msg.Subject))
		return
	}
	dispatch(n.log, h, ch, msg.Data, buf)
}

// PublishSamples publishes recs on the channel's sample subject.
func (n *NATS) PublishSamples(channel string, recs []Record) error {
	if err := n.conn.Publish(SampleSubject(n.prefix, channel), AppendRecords(nil, recs...)); err != nil {
		return fmt.Errorf("stream: publish samples: %w", err)
	}
	return nil
}

// PublishMetrics publishes v as JSON on the channel's metrics subject.
func (n *NATS) PublishMetrics(channel string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("stream: encode metrics: %w", err)
	}
	if err := n.conn.Publish(MetricsSubject(n.prefix, channel), b); err != nil {
		return fmt.Errorf("stream: publish metrics: %w", err)
	}
	return nil
}

// Close unsubscribes and drains the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return n.conn.Drain()
}
