package peak

import "math"

// Default heart-rate band used when no band option is given.
const (
	DefaultLowHz  = 0.7
	DefaultHighHz = 3.5
)

type config struct {
	lowHz         float64
	highHz        float64
	refractoryMS  float64
	maxIntervalMS float64
	threshold     float64
}

func defaultConfig() config {
	return config{
		lowHz:     DefaultLowHz,
		highHz:    DefaultHighHz,
		threshold: math.Inf(-1),
	}
}

// Option configures a Detector.
type Option func(*config)

// WithBand sets the admissible pulse band. Unless overridden, the refractory
// period becomes one period of highHz and the longest recorded interval one
// period of lowHz.
func WithBand(lowHz, highHz float64) Option {
	return func(c *config) {
		c.lowHz = lowHz
		c.highHz = highHz
	}
}

// WithRefractory sets the minimum time between two confirmed peaks.
func WithRefractory(ms float64) Option {
	return func(c *config) {
		c.refractoryMS = ms
	}
}

// WithMaxInterval sets the longest gap recorded as an interval. Longer gaps
// re-anchor the detector without touching the history. Use math.Inf(1) to
// record every gap.
func WithMaxInterval(ms float64) Option {
	return func(c *config) {
		c.maxIntervalMS = ms
	}
}

// WithThreshold ignores candidate peaks whose value does not exceed v.
func WithThreshold(v float64) Option {
	return func(c *config) {
		c.threshold = v
	}
}
