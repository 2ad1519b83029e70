package spectrum

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-vpg/dsp/core"
)

// Analyzer computes one-sided power spectra with a reusable FFT plan.
// It is not safe for concurrent use.
type Analyzer struct {
	size  int
	plan  *algofft.Plan[complex128]
	in    []complex128
	out   []complex128
	re    []float64
	im    []float64
	power []float64
}

// NewAnalyzer prepares an analyzer for frames zero-padded to size samples.
// size must be a power of two >= 2.
func NewAnalyzer(size int) (*Analyzer, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("spectrum: fft size must be a power of two >= 2: %d", size)
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan: %w", err)
	}

	bins := size/2 + 1
	return &Analyzer{
		size:  size,
		plan:  plan,
		in:    core.EnsureComplexLen(nil, size),
		out:   core.EnsureComplexLen(nil, size),
		re:    make([]float64, bins),
		im:    make([]float64, bins),
		power: make([]float64, bins),
	}, nil
}

// Size returns the transform length.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the number of one-sided bins, Size/2+1.
func (a *Analyzer) Bins() int { return len(a.power) }

// PowerSpectrum transforms frame, zero-padded to Size, and returns |X[k]|^2
// for k in [0, Size/2]. The returned slice is owned by the analyzer and is
// overwritten by the next call.
func (a *Analyzer) PowerSpectrum(frame []float64) ([]float64, error) {
	if len(frame) > a.size {
		return nil, fmt.Errorf("spectrum: frame length %d exceeds fft size %d", len(frame), a.size)
	}

	a.in = core.EnsureComplexLen(a.in, a.size)
	for i, x := range frame {
		a.in[i] = complex(x, 0)
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return nil, fmt.Errorf("spectrum: forward transform: %w", err)
	}

	for k := range a.power {
		a.re[k] = real(a.out[k])
		a.im[k] = imag(a.out[k])
	}
	vecmath.Power(a.power, a.re, a.im)

	return a.power, nil
}

// BinFrequency returns the centre frequency of bin for an fftSize-point
// transform at sampleRate.
func BinFrequency(bin, fftSize int, sampleRate float64) float64 {
	if fftSize <= 0 {
		return 0
	}
	return float64(bin) * sampleRate / float64(fftSize)
}

// BandBins returns the inclusive range of one-sided bins whose centre
// frequency lies in [lowHz, highHz]. ok is false when no bin qualifies.
func BandBins(lowHz, highHz float64, fftSize int, sampleRate float64) (first, last int, ok bool) {
	if fftSize <= 0 || sampleRate <= 0 || lowHz > highHz {
		return 0, -1, false
	}

	binHz := sampleRate / float64(fftSize)
	first = int(math.Ceil(lowHz/binHz - 1e-9))
	last = int(math.Floor(highHz/binHz + 1e-9))

	if first < 0 {
		first = 0
	}
	if maxBin := fftSize / 2; last > maxBin {
		last = maxBin
	}

	return first, last, first <= last
}

// PeakBin returns the index of the largest value in power[first:last+1].
// Ties resolve to the lowest index. It returns -1 for an empty range.
func PeakBin(power []float64, first, last int) int {
	if first < 0 {
		first = 0
	}
	if last >= len(power) {
		last = len(power) - 1
	}

	peak := -1
	best := math.Inf(-1)
	for k := first; k <= last; k++ {
		if power[k] > best {
			best = power[k]
			peak = k
		}
	}
	return peak
}

// BandEnergy sums power[first:last+1], skipping bins in the inclusive
// exclusion range [skipFirst, skipLast]. Pass skipFirst > skipLast to keep
// every bin.
func BandEnergy(power []float64, first, last, skipFirst, skipLast int) float64 {
	if first < 0 {
		first = 0
	}
	if last >= len(power) {
		last = len(power) - 1
	}

	sum := 0.0
	for k := first; k <= last; k++ {
		if k >= skipFirst && k <= skipLast {
			continue
		}
		sum += power[k]
	}
	return sum
}
