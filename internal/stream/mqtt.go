package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS         = 1
	mqttWaitTimeout = 5 * time.Second
	mqttInboxSize   = 256
)

// MQTT is a Transport over an MQTT broker.
type MQTT struct {
	client mqtt.Client
	prefix string
	log    *slog.Logger

	mu      sync.Mutex
	handler Handler

	inbox   chan inbound
	done    chan struct{}
	closing sync.Once
	worker  sync.WaitGroup
	dropped atomic.Int64
}

type inbound struct {
	channel string
	payload []byte
}

// newMQTT starts the worker that hands received batches to the handler in
// arrival order. The paho router goroutine only enqueues.
func newMQTT(prefix string, log *slog.Logger) *MQTT {
	if log == nil {
		log = slog.Default()
	}
	m := &MQTT{
		prefix: prefix,
		log:    log.With(slog.String("transport", "mqtt")),
		inbox:  make(chan inbound, mqttInboxSize),
		done:   make(chan struct{}),
	}
	m.worker.Add(1)
	go m.run()
	return m
}

// DialMQTT connects to broker. Subscriptions are re-established on every
// reconnect.
func DialMQTT(broker, clientID, prefix string, log *slog.Logger) (*MQTT, error) {
	m := newMQTT(prefix, log)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("%s-%d", clientID, time.Now().Unix()))
	opts.SetAutoReconnect(true)
	opts.OnConnect = m.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.log.Warn("connection lost", slog.Any("error", err))
	}

	m.client = mqtt.NewClient(opts)
	if err := wait(m.client.Connect()); err != nil {
		m.stop()
		return nil, fmt.Errorf("stream: mqtt connect: %w", err)
	}
	return m, nil
}

func (m *MQTT) onConnect(c mqtt.Client) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()

	m.log.Info("connected")
	if h == nil {
		return
	}
	if err := wait(c.Subscribe(SampleTopic(m.prefix, "+"), mqttQoS, m.onMessage)); err != nil {
		m.log.Error("resubscribe failed", slog.Any("error", err))
	}
}

// SubscribeSamples subscribes to prefix/samples/+ with QoS 1.
func (m *MQTT) SubscribeSamples(h Handler) error {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()

	if err := wait(m.client.Subscribe(SampleTopic(m.prefix, "+"), mqttQoS, m.onMessage)); err != nil {
		return fmt.Errorf("stream: mqtt subscribe: %w", err)
	}
	return nil
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ch, ok := channelFrom(msg.Topic(), m.prefix, "samples", "/")
	if !ok {
		m.log.Warn("unexpected topic", slog.String("topic", msg.Topic()))
		return
	}

	select {
	case m.inbox <- inbound{channel: ch, payload: msg.Payload()}:
	case <-m.done:
	default:
		m.dropped.Add(1)
		m.log.Warn("inbox full, dropping sample batch", slog.String("channel", ch))
	}
}

func (m *MQTT) run() {
	defer m.worker.Done()

	var buf []Record
	for {
		select {
		case in := <-m.inbox:
			m.mu.Lock()
			h := m.handler
			m.mu.Unlock()
			if h != nil {
				dispatch(m.log, h, in.channel, in.payload, &buf)
			}
		case <-m.done:
			return
		}
	}
}

// Dropped returns how many batches were discarded because the handler fell
// behind by more than the inbox size.
func (m *MQTT) Dropped() int64 { return m.dropped.Load() }

// PublishSamples publishes recs on the channel's sample topic.
func (m *MQTT) PublishSamples(channel string, recs []Record) error {
	err := wait(m.client.Publish(SampleTopic(m.prefix, channel), mqttQoS, false, AppendRecords(nil, recs...)))
	if err != nil {
		return fmt.Errorf("stream: mqtt publish samples: %w", err)
	}
	return nil
}

// PublishMetrics publishes v as JSON on the channel's metrics topic.
func (m *MQTT) PublishMetrics(channel string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("stream: encode metrics: %w", err)
	}
	if err := wait(m.client.Publish(MetricsTopic(m.prefix, channel), mqttQoS, false, b)); err != nil {
		return fmt.Errorf("stream: mqtt publish metrics: %w", err)
	}
	return nil
}

// Close disconnects after a short quiesce period and stops the worker.
// Batches still queued are discarded.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	m.stop()
	return nil
}

func (m *MQTT) stop() {
	m.closing.Do(func() { close(m.done) })
	m.worker.Wait()
}

var errTimeout = errors.New("stream: mqtt operation timed out")

func wait(t mqtt.Token) error {
	if !t.WaitTimeout(mqttWaitTimeout) {
		return errTimeout
	}
	return t.Error()
}
