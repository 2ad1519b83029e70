package core

// SamplingConfig describes the nominal discretization of a sample stream.
// Video-derived streams are only approximately uniform, so PeriodMS is a
// nominal value, not a guarantee.
type SamplingConfig struct {
	PeriodMS float64
}

// SamplingOption mutates a SamplingConfig.
type SamplingOption func(*SamplingConfig)

// DefaultSamplingConfig returns the nominal period of a 30 fps camera.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		PeriodMS: 33,
	}
}

// WithPeriodMS sets the nominal sample period in milliseconds.
func WithPeriodMS(periodMS float64) SamplingOption {
	return func(cfg *SamplingConfig) {
		if periodMS > 0 && IsFinite(periodMS) {
			cfg.PeriodMS = periodMS
		}
	}
}

// WithRate sets the nominal period from a sample rate in Hz.
func WithRate(hz float64) SamplingOption {
	return func(cfg *SamplingConfig) {
		if hz > 0 && IsFinite(hz) {
			cfg.PeriodMS = 1000 / hz
		}
	}
}

// RateHz returns the nominal sample rate.
func (c SamplingConfig) RateHz() float64 {
	if c.PeriodMS <= 0 {
		return 0
	}
	return 1000 / c.PeriodMS
}

// ApplySamplingOptions applies zero or more options to the default config.
func ApplySamplingOptions(opts ...SamplingOption) SamplingConfig {
	cfg := DefaultSamplingConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
