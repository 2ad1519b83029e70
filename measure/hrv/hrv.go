// Package hrv computes heart-rate-variability statistics from a sequence of
// inter-beat (NN) intervals in milliseconds.
package hrv

import (
	"math"

	timestats "github.com/cwbudde/algo-vpg/stats/time"
)

// Stats summarises an interval series.
type Stats struct {
	Count  int     `json:"count"`
	MeanNN float64 `json:"mean_nn_ms"`
	SDNN   float64 `json:"sdnn_ms"`  // standard deviation of intervals
	RMSSD  float64 `json:"rmssd_ms"` // root mean square of successive differences
	PNN50  float64 `json:"pnn50"`    // fraction of successive differences > 50 ms
	BPM    float64 `json:"bpm"`      // 60000 / MeanNN
}

// Calculate returns the statistics of intervals, given oldest first.
// Successive-difference metrics need at least two intervals and stay 0
// otherwise.
func Calculate(intervals []float64) Stats {
	if len(intervals) == 0 {
		return Stats{}
	}

	s := timestats.Calculate(intervals)
	out := Stats{
		Count:  s.Length,
		MeanNN: s.Mean,
		SDNN:   s.StdDev,
		BPM:    BPM(s.Mean),
	}

	if len(intervals) < 2 {
		return out
	}

	diffs := make([]float64, len(intervals)-1)
	over50 := 0
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		diffs[i-1] = d
		if math.Abs(d) > 50 {
			over50++
		}
	}

	out.RMSSD = timestats.RMS(diffs)
	out.PNN50 = float64(over50) / float64(len(diffs))

	return out
}

// BPM converts a mean interval in milliseconds to beats per minute, returning
// 0 for non-positive intervals.
func BPM(meanMS float64) float64 {
	if meanMS <= 0 || math.IsNaN(meanMS) || math.IsInf(meanMS, 0) {
		return 0
	}
	return 60000 / meanMS
}
