package biquad

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vpg/dsp/core"
)

// Bandpass designs a constant 0 dB peak gain bandpass centred at freqHz.
func Bandpass(freqHz, q, sampleRate float64) (Coefficients, error) {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return Coefficients{}, fmt.Errorf("biquad: sample rate must be > 0: %v", sampleRate)
	}
	if !core.IsFinite(freqHz) || freqHz <= 0 || freqHz >= sampleRate/2 {
		return Coefficients{}, fmt.Errorf("biquad: centre %v Hz outside (0, %v)", freqHz, sampleRate/2)
	}
	if !core.IsFinite(q) || q <= 0 {
		return Coefficients{}, fmt.Errorf("biquad: q must be > 0: %v", q)
	}

	w0 := 2 * math.Pi * freqHz / sampleRate
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	return Coefficients{
		B0: alpha / a0,
		B1: 0,
		B2: -alpha / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}, nil
}

// BandpassEdges designs a bandpass whose -3 dB points approximate
// [lowHz, highHz]: the centre is their geometric mean and Q the centre over
// the bandwidth. highHz is clamped just below Nyquist.
func BandpassEdges(lowHz, highHz, sampleRate float64) (Coefficients, error) {
	if !core.IsFinite(lowHz) || !core.IsFinite(highHz) || lowHz <= 0 || highHz <= lowHz {
		return Coefficients{}, fmt.Errorf("biquad: invalid band [%v, %v] Hz", lowHz, highHz)
	}
	highHz = math.Min(highHz, 0.45*sampleRate)
	if highHz <= lowHz {
		return Coefficients{}, fmt.Errorf("biquad: band [%v, %v] Hz above Nyquist at %v Hz", lowHz, highHz, sampleRate)
	}

	centre := math.Sqrt(lowHz * highHz)
	return Bandpass(centre, centre/(highHz-lowHz), sampleRate)
}
