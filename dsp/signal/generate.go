// Package signal generates deterministic synthetic plethysmography streams
// for tests, simulators and benchmarks.
package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-vpg/dsp/core"
)

// Generator creates deterministic signals from a shared sampling configuration.
type Generator struct {
	cfg  core.SamplingConfig
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets deterministic random seed for noise and jitter generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a configured signal generator.
func NewGenerator(opts ...core.SamplingOption) *Generator {
	return NewGeneratorWithOptions(opts)
}

// NewGeneratorWithOptions creates a configured signal generator with signal-specific options.
func NewGeneratorWithOptions(coreOpts []core.SamplingOption, opts ...Option) *Generator {
	g := &Generator{
		cfg:  core.ApplySamplingOptions(coreOpts...),
		seed: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Config returns the generator sampling configuration.
func (g *Generator) Config() core.SamplingConfig {
	return g.cfg
}

// Sine generates amplitude*sin(2*pi*f*t) sampled at the nominal period.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("sine samples must be > 0: %d", samples)
	}
	if g.cfg.PeriodMS <= 0 {
		return nil, fmt.Errorf("sine sample period must be > 0: %f", g.cfg.PeriodMS)
	}
	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz * g.cfg.PeriodMS / 1000
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out, nil
}

// Pulse generates a plethysmogram-like wave at freqHz: a systolic
// fundamental plus a weaker, phase-shifted second harmonic that forms the
// dicrotic shoulder. The waveform has exactly one maximum per period.
func (g *Generator) Pulse(freqHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("pulse samples must be > 0: %d", samples)
	}
	if g.cfg.PeriodMS <= 0 {
		return nil, fmt.Errorf("pulse sample period must be > 0: %f", g.cfg.PeriodMS)
	}
	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz * g.cfg.PeriodMS / 1000
	for i := range out {
		ph := step * float64(i)
		out[i] = amplitude * (math.Sin(ph) + 0.2*math.Sin(2*ph+math.Pi/4))
	}
	return out, nil
}

// WhiteNoise generates deterministic uniform noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}
	if amplitude < 0 {
		return nil, fmt.Errorf("noise amplitude must be >= 0: %f", amplitude)
	}
	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out, nil
}

// GaussianNoise generates deterministic zero-mean Gaussian noise.
func (g *Generator) GaussianNoise(stddev float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}
	if stddev < 0 {
		return nil, fmt.Errorf("noise stddev must be >= 0: %f", stddev)
	}
	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = rng.NormFloat64() * stddev
	}
	return out, nil
}

// Timestamps returns sample times in milliseconds starting at startMS.
// Each step is the nominal period plus uniform jitter in [-jitterMS, jitterMS];
// jitter is clamped below half a period so timestamps stay increasing.
func (g *Generator) Timestamps(startMS, jitterMS float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("timestamp samples must be > 0: %d", samples)
	}
	if jitterMS < 0 {
		return nil, fmt.Errorf("timestamp jitter must be >= 0: %f", jitterMS)
	}
	jitterMS = math.Min(jitterMS, 0.49*g.cfg.PeriodMS)

	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed + 1))
	t := startMS
	for i := range out {
		out[i] = t
		t += g.cfg.PeriodMS + (rng.Float64()*2-1)*jitterMS
	}
	return out, nil
}

// Mix returns the element-wise sum of the given signals, truncated to the
// shortest input, plus a constant offset.
func Mix(offset float64, signals ...[]float64) []float64 {
	if len(signals) == 0 {
		return nil
	}
	n := len(signals[0])
	for _, s := range signals[1:] {
		if len(s) < n {
			n = len(s)
		}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = offset
		for _, s := range signals {
			out[i] += s[i]
		}
	}
	return out
}
