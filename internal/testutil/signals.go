// Package testutil holds deterministic test signals and tolerance helpers
// shared by the vpg test suites.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates amplitude*sin(2*pi*f*t) sampled every periodMS.
func DeterministicSine(freqHz, periodMS, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz * periodMS / 1000
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicGaussian generates zero-mean Gaussian noise with a fixed seed.
func DeterministicGaussian(seed int64, stddev float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = rng.NormFloat64() * stddev
	}
	return out
}

// UniformTimes returns length timestamps in milliseconds spaced periodMS apart,
// starting at startMS.
func UniformTimes(startMS, periodMS float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = startMS + periodMS*float64(i)
	}
	return out
}

// Add returns a+b element-wise over the shorter length.
func Add(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = a[i] + b[i]
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
