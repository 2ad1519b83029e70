// Package channel pairs a pulse processor with a peak detector for one
// tracked region and blends their estimates into a single rate.
package channel

import (
	"fmt"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/measure/hrv"
	"github.com/cwbudde/algo-vpg/vpg/peak"
	"github.com/cwbudde/algo-vpg/vpg/pulse"
)

// DefaultRefreshMS is the accumulated sample time between rate refreshes.
const DefaultRefreshMS = 1500

// Config describes a Channel.
type Config struct {
	Pulse     pulse.Config `json:"pulse"`
	Depth     int          `json:"depth"`
	RefreshMS float64      `json:"refresh_ms"`
}

// DefaultConfig returns the heart-rate pulse defaults, a 25 interval history
// and a 1.5 s refresh.
func DefaultConfig() Config {
	return Config{
		Pulse:     pulse.DefaultConfig(),
		Depth:     25,
		RefreshMS: DefaultRefreshMS,
	}
}

// Metrics is a value snapshot of a channel.
type Metrics struct {
	Rate        float64        `json:"rate"`
	Spectral    float64        `json:"spectral"`
	IntervalBPM float64        `json:"interval_bpm"`
	Pulse       pulse.Snapshot `json:"pulse"`
	Beats       int            `json:"beats"`
	Discarded   int            `json:"discarded"`
	HRV         hrv.Stats      `json:"hrv"`
	Refreshes   int            `json:"refreshes"`
	LastMS      float64        `json:"last_ms"`
}

// Channel is one region's processing pipeline. It is not safe for
// concurrent use.
type Channel struct {
	cfg       Config
	proc      *pulse.Processor
	det       *peak.Detector
	rate      float64
	spectral  float64
	elapsed   float64
	lastMS    float64
	started   bool
	refreshes int
}

// New builds the processor and a detector restricted to the same band, and
// attaches the detector to the processor.
func New(cfg Config) (*Channel, error) {
	if cfg.Depth <= 0 {
		return nil, fmt.Errorf("channel: interval depth must be > 0: %d", cfg.Depth)
	}
	if !core.IsFinite(cfg.RefreshMS) || cfg.RefreshMS <= 0 {
		return nil, fmt.Errorf("channel: refresh must be finite and > 0: %v", cfg.RefreshMS)
	}

	proc, err := pulse.New(cfg.Pulse)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	det, err := peak.New(cfg.Depth, peak.WithBand(proc.Config().Type.Band()))
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	proc.SetPeakDetector(det)

	cfg.Pulse = proc.Config()
	return &Channel{cfg: cfg, proc: proc, det: det}, nil
}

// Config returns the resolved configuration.
func (c *Channel) Config() Config { return c.cfg }

// Processor exposes the underlying pulse processor.
func (c *Channel) Processor() *pulse.Processor { return c.proc }

// Detector exposes the underlying peak detector.
func (c *Channel) Detector() *peak.Detector { return c.det }

// Push feeds one raw sample. It reports whether the accumulated time crossed
// the refresh cadence and the rate was recomputed.
func (c *Channel) Push(value, timeMS float64) bool {
	if !core.IsFinite(value) || !core.IsFinite(timeMS) {
		c.proc.UpdateFiltered(value, timeMS)
		return false
	}

	if c.started && timeMS > c.lastMS {
		c.elapsed += timeMS - c.lastMS
	}
	c.lastMS = timeMS
	c.started = true

	c.proc.UpdateFiltered(value, timeMS)

	if c.elapsed < c.cfg.RefreshMS {
		return false
	}
	c.elapsed -= c.cfg.RefreshMS
	if c.elapsed >= c.cfg.RefreshMS {
		c.elapsed = 0
	}
	c.refresh()
	return true
}

// refresh averages the previous rate with the spectral and interval
// estimates, skipping terms that are not available yet.
func (c *Channel) refresh() {
	c.refreshes++
	c.spectral = c.proc.ComputeFrequency()

	sum, n := 0.0, 0
	for _, term := range []float64{c.rate, c.spectral, c.det.BPM()} {
		if term > 0 {
			sum += term
			n++
		}
	}
	if n > 0 {
		c.rate = sum / float64(n)
	}
}

// Rate returns the blended rate in per-minute units, 0 before any estimate.
func (c *Channel) Rate() float64 { return c.rate }

// Signal returns the filtered window, oldest first.
func (c *Channel) Signal() []float64 { return c.proc.Signal() }

// Metrics returns the current state of the channel.
func (c *Channel) Metrics() Metrics {
	return Metrics{
		Rate:        c.rate,
		Spectral:    c.spectral,
		IntervalBPM: c.det.BPM(),
		Pulse:       c.proc.Snapshot(),
		Beats:       c.det.Beats(),
		Discarded:   c.det.Discarded(),
		HRV:         c.det.HRV(),
		Refreshes:   c.refreshes,
		LastMS:      c.lastMS,
	}
}

// Reset clears the processor, the detector and the blended rate.
func (c *Channel) Reset() {
	c.proc.Reset()
	c.det.Reset()
	c.rate = 0
	c.spectral = 0
	c.elapsed = 0
	c.lastMS = 0
	c.started = false
	c.refreshes = 0
}
