// Package config loads vpgd settings from flags with environment fallbacks.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/algo-vpg/dsp/window"
	"github.com/cwbudde/algo-vpg/vpg/channel"
	"github.com/cwbudde/algo-vpg/vpg/pulse"
)

// Transport names.
const (
	TransportNATS = "nats"
	TransportMQTT = "mqtt"
	TransportNone = "none"
)

// Config holds everything vpgd needs to start.
type Config struct {
	Transport string
	BrokerURL string
	Prefix    string
	ClientID  string
	Channels  []string
	HTTPAddr  string
	LogLevel  string
	Shutdown  time.Duration
	Channel   channel.Config
}

// Load parses args (without the program name). Every flag defaults to the
// matching VPG_* environment variable when it is set.
func Load(args []string) (Config, error) {
	return load(args, io.Discard)
}

func load(args []string, usage io.Writer) (Config, error) {
	fs := flag.NewFlagSet("vpgd", flag.ContinueOnError)
	fs.SetOutput(usage)

	cfg := Config{Channel: channel.DefaultConfig()}
	p := &cfg.Channel.Pulse

	var (
		channels    string
		processType string
		windowType  string
	)

	fs.StringVar(&cfg.Transport, "transport", getEnv("VPG_TRANSPORT", TransportNATS), "sample transport: nats, mqtt or none")
	fs.StringVar(&cfg.BrokerURL, "broker", getEnv("VPG_BROKER_URL", ""), "broker URL (default depends on transport)")
	fs.StringVar(&cfg.Prefix, "prefix", getEnv("VPG_PREFIX", "vpg"), "subject/topic prefix")
	fs.StringVar(&cfg.ClientID, "client-id", getEnv("VPG_CLIENT_ID", "vpgd"), "broker client name")
	fs.StringVar(&channels, "channels", getEnv("VPG_CHANNELS", "face,forehead"), "comma-separated channels to pre-create")
	fs.StringVar(&cfg.HTTPAddr, "http", getEnv("VPG_HTTP_ADDR", ":8080"), "HTTP listen address, empty to disable")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("VPG_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.DurationVar(&cfg.Shutdown, "shutdown-timeout", getEnvAsDuration("VPG_SHUTDOWN_TIMEOUT", 5*time.Second), "graceful shutdown timeout")

	fs.Float64Var(&p.WindowMS, "window-ms", getEnvAsFloat("VPG_WINDOW_MS", 0), "analysis window, 0 for the process default")
	fs.Float64Var(&p.CenterMS, "center-ms", getEnvAsFloat("VPG_CENTER_MS", 0), "centering window, 0 for the process default")
	fs.Float64Var(&p.FilterMS, "filter-ms", getEnvAsFloat("VPG_FILTER_MS", 0), "low-pass span, 0 for the process default")
	fs.Float64Var(&p.PeriodMS, "period-ms", getEnvAsFloat("VPG_PERIOD_MS", p.PeriodMS), "nominal sample period")
	fs.BoolVar(&p.Prefilter, "prefilter", getEnvAsBool("VPG_PREFILTER", false), "band-pass raw samples before centering")
	fs.IntVar(&p.Oversample, "oversample", getEnvAsInt("VPG_OVERSAMPLE", p.Oversample), "spectral zero-padding factor")
	fs.StringVar(&processType, "type", getEnv("VPG_TYPE", p.Type.String()), "heart-rate or breath-rate")
	fs.StringVar(&windowType, "window", getEnv("VPG_WINDOW", p.Window.String()), "analysis window")
	fs.IntVar(&cfg.Channel.Depth, "depth", getEnvAsInt("VPG_DEPTH", cfg.Channel.Depth), "inter-beat interval history")
	fs.Float64Var(&cfg.Channel.RefreshMS, "refresh-ms", getEnvAsFloat("VPG_REFRESH_MS", cfg.Channel.RefreshMS), "rate refresh cadence")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var err error
	if p.Type, err = pulse.ParseProcessType(processType); err != nil {
		return Config{}, err
	}
	if p.Window, err = window.ParseType(windowType); err != nil {
		return Config{}, err
	}
	cfg.Channels = splitList(channels)

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = defaultBroker(cfg.Transport)
	}

	return cfg, cfg.Validate()
}

// Validate checks the values that are not checked by the processing
// constructors.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportNATS, TransportMQTT, TransportNone:
	default:
		errs = append(errs, fmt.Errorf("config: unknown transport %q", c.Transport))
	}
	if c.Transport != TransportNone && c.BrokerURL == "" {
		errs = append(errs, errors.New("config: broker URL is required"))
	}
	if strings.TrimSpace(c.Prefix) == "" {
		errs = append(errs, errors.New("config: prefix must not be empty"))
	}
	for _, name := range c.Channels {
		if !ValidChannelName(name) {
			errs = append(errs, fmt.Errorf("config: invalid channel name %q", name))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Shutdown <= 0 {
		errs = append(errs, fmt.Errorf("config: shutdown timeout must be > 0: %v", c.Shutdown))
	}
	return errors.Join(errs...)
}

// ValidChannelName reports whether name can be used as a single subject or
// topic token.
func ValidChannelName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func defaultBroker(transport string) string {
	switch transport {
	case TransportNATS:
		return "nats://127.0.0.1:4222"
	case TransportMQTT:
		return "tcp://127.0.0.1:1883"
	default:
		return ""
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}
