package pulse

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/dsp/window"
)

// ProcessType selects the physiological band searched for the dominant
// frequency.
type ProcessType int

const (
	HeartRate ProcessType = iota
	BreathRate
)

// Band returns the admissible frequency range in Hz.
func (t ProcessType) Band() (lowHz, highHz float64) {
	switch t {
	case BreathRate:
		return 0.1, 0.5
	default:
		return 0.7, 3.5
	}
}

func (t ProcessType) String() string {
	switch t {
	case HeartRate:
		return "heart-rate"
	case BreathRate:
		return "breath-rate"
	default:
		return fmt.Sprintf("process(%d)", int(t))
	}
}

// ParseProcessType resolves a name as printed by String. "hr" and "br" are
// accepted as short forms.
func ParseProcessType(name string) (ProcessType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "heart-rate", "heartrate", "hr":
		return HeartRate, nil
	case "breath-rate", "breathrate", "br":
		return BreathRate, nil
	default:
		return 0, fmt.Errorf("pulse: unknown process type %q", name)
	}
}

// Config describes a Processor. Durations are in milliseconds; zero
// durations resolve to the defaults of Type. Start from DefaultConfig, since
// the zero Window is rectangular.
type Config struct {
	WindowMS   float64     `json:"window_ms"`
	CenterMS   float64     `json:"center_ms"`
	FilterMS   float64     `json:"filter_ms"`
	PeriodMS   float64     `json:"period_ms"`
	Type       ProcessType `json:"type"`
	Window     window.Type `json:"window"`
	Oversample int         `json:"oversample"`
	GuardBins  float64     `json:"guard_bins"`
	// Prefilter band-limits raw samples to the process band before
	// centering.
	Prefilter bool `json:"prefilter"`
}

type durations struct {
	window, center, filter float64
}

var typeDefaults = map[ProcessType]durations{
	HeartRate:  {window: 5000, center: 3000, filter: 165},
	BreathRate: {window: 30000, center: 15000, filter: 1000},
}

// DefaultConfig returns the heart-rate configuration at a 33 ms period with
// per-type durations left to be resolved by New.
func DefaultConfig() Config {
	return Config{
		PeriodMS:   33,
		Type:       HeartRate,
		Window:     window.TypeHann,
		Oversample: 4,
		GuardBins:  2,
	}
}

// withDefaults resolves unset fields from the process type.
func (c Config) withDefaults() Config {
	d, ok := typeDefaults[c.Type]
	if !ok {
		d = typeDefaults[HeartRate]
	}
	if c.WindowMS == 0 {
		c.WindowMS = d.window
	}
	if c.CenterMS == 0 {
		c.CenterMS = d.center
	}
	if c.FilterMS == 0 {
		c.FilterMS = d.filter
	}
	if c.Oversample == 0 {
		c.Oversample = 4
	}
	return c
}

func (c Config) validate() error {
	for _, d := range []struct {
		name  string
		value float64
	}{
		{"window", c.WindowMS},
		{"center", c.CenterMS},
		{"filter", c.FilterMS},
		{"period", c.PeriodMS},
	} {
		if !core.IsFinite(d.value) || d.value <= 0 {
			return fmt.Errorf("pulse: %s duration must be finite and > 0: %v", d.name, d.value)
		}
	}
	if _, ok := typeDefaults[c.Type]; !ok {
		return fmt.Errorf("pulse: unknown process type: %d", int(c.Type))
	}
	if c.Oversample < 1 {
		return fmt.Errorf("pulse: oversample must be >= 1: %d", c.Oversample)
	}
	if !core.IsFinite(c.GuardBins) || c.GuardBins < 0 {
		return fmt.Errorf("pulse: guard bins must be finite and >= 0: %v", c.GuardBins)
	}
	if l := core.SamplesFor(c.WindowMS, c.PeriodMS); l < minWindowSamples {
		return fmt.Errorf("pulse: window must span at least %d samples: %d", minWindowSamples, l)
	}
	return nil
}
