package peak

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/dsp/ring"
	"github.com/cwbudde/algo-vpg/measure/hrv"
	timestats "github.com/cwbudde/algo-vpg/stats/time"
)

// State is the edge the detector is currently waiting for.
type State int

const (
	SeekingRise State = iota
	SeekingFall
)

func (s State) String() string {
	switch s {
	case SeekingRise:
		return "seeking-rise"
	case SeekingFall:
		return "seeking-fall"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Detector is a streaming peak detector. It is not safe for concurrent use.
type Detector struct {
	intervals     *ring.Ring
	refractoryMS  float64
	maxIntervalMS float64
	threshold     float64

	state    State
	prev     float64
	prevMS   float64
	hasPrev  bool
	lastPeak float64
	hasPeak  bool

	beats     int
	discarded int
	scratch   []float64
}

// New returns a detector keeping the last depth intervals.
func New(depth int, opts ...Option) (*Detector, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("peak: interval history depth must be > 0: %d", depth)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if !core.IsFinite(cfg.lowHz) || !core.IsFinite(cfg.highHz) || cfg.lowHz <= 0 || cfg.highHz <= cfg.lowHz {
		return nil, fmt.Errorf("peak: invalid band [%v, %v] Hz", cfg.lowHz, cfg.highHz)
	}
	if cfg.refractoryMS < 0 || math.IsNaN(cfg.refractoryMS) || math.IsInf(cfg.refractoryMS, 0) {
		return nil, fmt.Errorf("peak: refractory period must be >= 0: %v", cfg.refractoryMS)
	}
	if cfg.maxIntervalMS < 0 || math.IsNaN(cfg.maxIntervalMS) {
		return nil, fmt.Errorf("peak: max interval must be >= 0: %v", cfg.maxIntervalMS)
	}

	if cfg.refractoryMS == 0 {
		cfg.refractoryMS = 1000 / cfg.highHz
	}
	if cfg.maxIntervalMS == 0 {
		cfg.maxIntervalMS = 1000 / cfg.lowHz
	}
	if cfg.maxIntervalMS <= cfg.refractoryMS {
		return nil, fmt.Errorf("peak: max interval %v ms must exceed refractory period %v ms",
			cfg.maxIntervalMS, cfg.refractoryMS)
	}

	intervals, err := ring.New(depth)
	if err != nil {
		return nil, fmt.Errorf("peak: %w", err)
	}

	return &Detector{
		intervals:     intervals,
		refractoryMS:  cfg.refractoryMS,
		maxIntervalMS: cfg.maxIntervalMS,
		threshold:     cfg.threshold,
		state:         SeekingFall,
	}, nil
}

// Update feeds one filtered sample taken at timeMS. Non-finite samples and
// timestamps that do not advance are ignored.
func (d *Detector) Update(value, timeMS float64) {
	if !core.IsFinite(value) || !core.IsFinite(timeMS) {
		return
	}
	if !d.hasPrev {
		d.prev, d.prevMS, d.hasPrev = value, timeMS, true
		return
	}
	if timeMS <= d.prevMS {
		return
	}

	switch d.state {
	case SeekingRise:
		if value < d.prev {
			d.candidate(d.prev, d.prevMS)
			d.state = SeekingFall
		}
	case SeekingFall:
		if value > d.prev {
			d.state = SeekingRise
		}
	}

	d.prev, d.prevMS = value, timeMS
}

func (d *Detector) candidate(value, timeMS float64) {
	if value <= d.threshold {
		return
	}
	if !d.hasPeak {
		d.confirm(timeMS)
		return
	}

	elapsed := timeMS - d.lastPeak
	switch {
	case elapsed <= d.refractoryMS:
		d.discarded++
	case elapsed <= d.maxIntervalMS:
		d.intervals.Write(elapsed)
		d.confirm(timeMS)
	default:
		// Dropout: start a fresh interval from this beat.
		d.confirm(timeMS)
	}
}

func (d *Detector) confirm(timeMS float64) {
	d.lastPeak = timeMS
	d.hasPeak = true
	d.beats++
}

// AverageCardiointervalMS returns the mean of the recorded intervals, or 0
// when none has been recorded yet.
func (d *Detector) AverageCardiointervalMS() float64 {
	d.scratch = d.intervals.Chronological(d.scratch)
	return timestats.Mean(d.scratch)
}

// BPM returns the heart rate implied by the average interval, or 0 when the
// history is empty.
func (d *Detector) BPM() float64 {
	return hrv.BPM(d.AverageCardiointervalMS())
}

// Intervals returns a copy of the recorded intervals, oldest first.
func (d *Detector) Intervals() []float64 {
	return d.intervals.Chronological(nil)
}

// IntervalsInto is Intervals reusing dst.
func (d *Detector) IntervalsInto(dst []float64) []float64 {
	return d.intervals.Chronological(dst)
}

// HRV returns variability statistics over the recorded intervals.
func (d *Detector) HRV() hrv.Stats {
	d.scratch = d.intervals.Chronological(d.scratch)
	return hrv.Calculate(d.scratch)
}

// Depth returns the interval history capacity.
func (d *Detector) Depth() int { return d.intervals.Len() }

// Recorded returns how many history slots hold an interval.
func (d *Detector) Recorded() int { return d.intervals.Filled() }

// Beats returns the number of confirmed peaks.
func (d *Detector) Beats() int { return d.beats }

// Discarded returns the number of candidates rejected inside the refractory period.
func (d *Detector) Discarded() int { return d.discarded }

// LastPeakMS returns the time of the most recent confirmed peak.
func (d *Detector) LastPeakMS() (float64, bool) { return d.lastPeak, d.hasPeak }

// Refractory returns the refractory period in milliseconds.
func (d *Detector) Refractory() float64 { return d.refractoryMS }

// MaxInterval returns the longest gap recorded as an interval.
func (d *Detector) MaxInterval() float64 { return d.maxIntervalMS }

// State returns the edge the detector is waiting for.
func (d *Detector) State() State { return d.state }

// Reset clears the history and edge state but keeps the configuration.
func (d *Detector) Reset() {
	d.intervals.Reset()
	d.state = SeekingFall
	d.hasPrev = false
	d.hasPeak = false
	d.prev, d.prevMS, d.lastPeak = 0, 0, 0
	d.beats, d.discarded = 0, 0
}
