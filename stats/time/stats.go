// Package time provides time-domain summary statistics for sample windows.
package time

import "math"

// Stats holds time-domain signal statistics.
type Stats struct {
	Length   int
	Mean     float64
	Variance float64 // population variance
	StdDev   float64
	RMS      float64
	Max      float64
	MaxPos   int
	Min      float64
	MinPos   int
	Range    float64 // max - min
}

// Calculate computes all statistics in a single pass using Welford's online
// algorithm for the second moment.
func Calculate(signal []float64) Stats {
	s := NewStreamingStats()
	s.Update(signal)
	return s.Result()
}

// Mean returns the arithmetic mean of the signal, 0 for an empty signal.
func Mean(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	// Kahan summation for numerical stability.
	var sum, c float64
	for _, x := range signal {
		y := x - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}

	return sum / float64(len(signal))
}

// MeanStdDev returns the mean and population standard deviation.
func MeanStdDev(signal []float64) (mean, stddev float64) {
	n := len(signal)
	if n == 0 {
		return 0, 0
	}

	mean = Mean(signal)

	var m2 float64
	for _, x := range signal {
		d := x - mean
		m2 += d * d
	}

	return mean, math.Sqrt(m2 / float64(n))
}

// RMS returns the root-mean-square of the signal.
func RMS(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}

	var sumSq float64
	for _, x := range signal {
		sumSq += x * x
	}

	return math.Sqrt(sumSq / float64(len(signal)))
}

// StreamingStats accumulates statistics incrementally across blocks or
// single samples.
type StreamingStats struct {
	n      int
	mean   float64
	m2     float64
	sumSq  float64
	maxVal float64
	maxPos int
	minVal float64
	minPos int
}

// NewStreamingStats creates a new StreamingStats accumulator.
func NewStreamingStats() *StreamingStats {
	return &StreamingStats{}
}

// Add folds a single sample into the running statistics.
func (s *StreamingStats) Add(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
	s.sumSq += x * x

	if s.n == 1 || x > s.maxVal {
		s.maxVal = x
		s.maxPos = s.n - 1
	}
	if s.n == 1 || x < s.minVal {
		s.minVal = x
		s.minPos = s.n - 1
	}
}

// Update adds a block of samples to the running statistics.
func (s *StreamingStats) Update(samples []float64) {
	for _, x := range samples {
		s.Add(x)
	}
}

// Len returns the number of accumulated samples.
func (s *StreamingStats) Len() int { return s.n }

// Reset clears all accumulated data.
func (s *StreamingStats) Reset() {
	*s = StreamingStats{}
}

// Result computes the final statistics from accumulated data.
func (s *StreamingStats) Result() Stats {
	if s.n == 0 {
		return Stats{}
	}

	nf := float64(s.n)
	variance := s.m2 / nf
	if variance < 0 {
		variance = 0
	}

	return Stats{
		Length:   s.n,
		Mean:     s.mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		RMS:      math.Sqrt(s.sumSq / nf),
		Max:      s.maxVal,
		MaxPos:   s.maxPos,
		Min:      s.minVal,
		MinPos:   s.minPos,
		Range:    s.maxVal - s.minVal,
	}
}
