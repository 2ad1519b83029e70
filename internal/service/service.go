// Package service runs one channel pipeline per named region and fans
// metrics out to a publisher.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-vpg/internal/config"
	"github.com/cwbudde/algo-vpg/internal/stream"
	"github.com/cwbudde/algo-vpg/vpg/channel"
)

var (
	ErrNotFound    = errors.New("service: channel not found")
	ErrInvalidName = errors.New("service: invalid channel name")
)

// Publisher receives a Report after every rate refresh.
type Publisher interface {
	PublishMetrics(channel string, v any) error
}

// Info identifies a channel session.
type Info struct {
	Channel string    `json:"channel"`
	Session uuid.UUID `json:"session"`
	Started time.Time `json:"started"`
	Samples int       `json:"samples"`
}

// Report is Info plus the channel metrics.
type Report struct {
	Info
	channel.Metrics
}

type session struct {
	mu   sync.Mutex
	info Info
	ch   *channel.Channel
}

// Manager owns the sessions. Each session is guarded by its own mutex, so
// channels ingest in parallel.
type Manager struct {
	cfg  channel.Config
	pub  Publisher
	log  *slog.Logger
	now  func() time.Time
	mu   sync.RWMutex
	sess map[string]*session
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sets where refreshed metrics are sent.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.pub = p }
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces time.Now for session start times.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager validates cfg by building a throwaway channel.
func NewManager(cfg channel.Config, opts ...Option) (*Manager, error) {
	if _, err := channel.New(cfg); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	m := &Manager{
		cfg:  cfg,
		log:  slog.Default(),
		now:  time.Now,
		sess: make(map[string]*session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.log = m.log.With(slog.String("component", "service"))
	return m, nil
}

// Open returns the session for name, creating it if needed.
func (m *Manager) Open(name string) (Info, error) {
	s, err := m.open(name)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, nil
}

func (m *Manager) open(name string) (*session, error) {
	if !config.ValidChannelName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	m.mu.RLock()
	s := m.sess[name]
	m.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s = m.sess[name]; s != nil {
		return s, nil
	}

	ch, err := channel.New(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	s = &session{
		info: Info{Channel: name, Session: uuid.New(), Started: m.now().UTC()},
		ch:   ch,
	}
	m.sess[name] = s
	m.log.Info("channel opened", slog.String("channel", name), slog.String("session", s.info.Session.String()))
	return s, nil
}

func (m *Manager) lookup(name string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sess[name]
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

// Ingest pushes a batch into the named channel, opening it on first use.
// It returns how many rate refreshes the batch triggered.
func (m *Manager) Ingest(name string, recs []stream.Record) (int, error) {
	s, err := m.open(name)
	if err != nil {
		return 0, err
	}

	var reports []Report
	s.mu.Lock()
	for _, r := range recs {
		s.info.Samples++
		if s.ch.Push(float64(r.Value), r.TimeMS) {
			reports = append(reports, Report{Info: s.info, Metrics: s.ch.Metrics()})
		}
	}
	s.mu.Unlock()

	for _, rep := range reports {
		m.publish(name, rep)
	}
	return len(reports), nil
}

func (m *Manager) publish(name string, rep Report) {
	m.log.Debug("rate refreshed",
		slog.String("channel", name),
		slog.Float64("rate", rep.Rate),
		slog.Float64("snr", rep.Pulse.SNR),
		slog.Bool("ready", rep.Pulse.Ready),
	)
	if m.pub == nil {
		return
	}
	if err := m.pub.PublishMetrics(name, rep); err != nil {
		m.log.Warn("publish metrics failed", slog.String("channel", name), slog.Any("error", err))
	}
}

// Handler adapts Ingest to a stream subscription. Invalid channel names are
// logged and dropped.
func (m *Manager) Handler() stream.Handler {
	return func(name string, recs []stream.Record) {
		if _, err := m.Ingest(name, recs); err != nil {
			m.log.Warn("ingest failed", slog.String("channel", name), slog.Any("error", err))
		}
	}
}

// Report returns the current report for name.
func (m *Manager) Report(name string) (Report, error) {
	s, err := m.lookup(name)
	if err != nil {
		return Report{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Report{Info: s.info, Metrics: s.ch.Metrics()}, nil
}

// Signal returns a copy of the filtered window of name, oldest first.
func (m *Manager) Signal(name string) ([]float64, error) {
	s, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.Signal(), nil
}

// List returns every session ordered by channel name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*session, 0, len(m.sess))
	for _, s := range m.sess {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, s.info)
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Reset clears the channel and starts a new session for it.
func (m *Manager) Reset(name string) (Info, error) {
	s, err := m.lookup(name)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.info.Session
	s.ch.Reset()
	s.info = Info{Channel: name, Session: uuid.New(), Started: m.now().UTC()}
	m.log.Info("channel reset",
		slog.String("channel", name),
		slog.String("previous", prev.String()),
		slog.String("session", s.info.Session.String()),
	)
	return s.info, nil
}
