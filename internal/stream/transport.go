package stream

import (
	"log/slog"
)

// Handler receives one decoded sample batch. recs is reused after the
// handler returns.
type Handler func(channel string, recs []Record)

// Transport moves sample batches in and metrics out.
type Transport interface {
	// SubscribeSamples delivers every batch published on any channel.
	SubscribeSamples(h Handler) error
	PublishSamples(channel string, recs []Record) error
	PublishMetrics(channel string, v any) error
	Close() error
}

// dispatch decodes a payload and hands it to h, logging malformed input.
func dispatch(log *slog.Logger, h Handler, channel string, payload []byte, buf *[]Record) {
	recs, err := DecodeRecords(payload, *buf)
	*buf = recs
	if err != nil {
		log.Warn("dropping sample batch", slog.String("channel", channel), slog.Any("error", err))
		return
	}
	if len(recs) > 0 {
		h(channel, recs)
	}
}
