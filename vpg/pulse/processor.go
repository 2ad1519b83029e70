package pulse

import (
	"fmt"
	"math"
	"reflect"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/dsp/filter/biquad"
	"github.com/cwbudde/algo-vpg/dsp/ring"
	"github.com/cwbudde/algo-vpg/dsp/spectrum"
	"github.com/cwbudde/algo-vpg/dsp/window"
	timestats "github.com/cwbudde/algo-vpg/stats/time"
)

const (
	minWindowSamples = 4
	varianceFloor    = 1e-9
	noiseFloor       = 1e-12

	// Frames whose largest magnitude exceeds frameRescale are scaled to
	// unit peak before the transform.
	frameRescale = 1e100
)

// Sink receives every filtered sample with its timestamp. *peak.Detector
// satisfies it.
type Sink interface {
	Update(value, timeMS float64)
}

// Snapshot is a value copy of the processor's scalar results.
type Snapshot struct {
	Type      string  `json:"type"`
	Frequency float64 `json:"frequency_bpm"`
	SNR       float64 `json:"snr"`
	SNRdB     float64 `json:"snr_db"`
	Sample    float64 `json:"sample"`
	Stdev     float64 `json:"stdev"`
	Length    int     `json:"length"`
	Filled    int     `json:"filled"`
	Ready     bool    `json:"ready"`
	Rejected  int     `json:"rejected"`
}

// Processor is a streaming pulse processor over a fixed analysis window.
type Processor struct {
	cfg        Config
	length     int
	centerSpan int
	filterSpan int
	lowHz      float64
	highHz     float64

	raw        *ring.Ring
	cond       *ring.Ring
	times      *ring.Ring
	filtered   *ring.Ring
	normalized *ring.Ring

	pre      *biquad.Section
	analyzer *spectrum.Analyzer
	coeffs   []float64
	frame    []float64
	tframe   []float64
	center   []float64

	bandFreqs []float64
	bandPower []float64

	frequency float64
	snr       float64
	stdev     float64
	rejected  int

	sink Sink
}

// NewDefault returns a processor with default durations for t at the given
// sample period.
func NewDefault(periodMS float64, t ProcessType) (*Processor, error) {
	cfg := DefaultConfig()
	cfg.PeriodMS = periodMS
	cfg.Type = t
	return New(cfg)
}

// New validates cfg and allocates every buffer the processor needs.
// Update and ComputeFrequency do not allocate afterwards.
func New(cfg Config) (*Processor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	length := core.SamplesFor(cfg.WindowMS, cfg.PeriodMS)
	centerSpan := core.ClampInt(core.SamplesFor(cfg.CenterMS, cfg.PeriodMS), 2, length)
	filterSpan := core.ClampInt(core.SamplesFor(cfg.FilterMS, cfg.PeriodMS), 1, length)

	analyzer, err := spectrum.NewAnalyzer(core.NextPowerOfTwo(length * cfg.Oversample))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}

	p := &Processor{
		cfg:        cfg,
		length:     length,
		centerSpan: centerSpan,
		filterSpan: filterSpan,
		analyzer:   analyzer,
		coeffs:     window.Generate(cfg.Window, length),
		frame:      make([]float64, length),
		tframe:     make([]float64, length),
		center:     make([]float64, centerSpan),
		bandFreqs:  make([]float64, 0, analyzer.Bins()),
		bandPower:  make([]float64, 0, analyzer.Bins()),
	}
	p.lowHz, p.highHz = cfg.Type.Band()

	for _, r := range []**ring.Ring{&p.raw, &p.times, &p.filtered} {
		if *r, err = ring.New(length); err != nil {
			return nil, fmt.Errorf("pulse: %w", err)
		}
	}
	if p.normalized, err = ring.New(filterSpan); err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}

	p.cond = p.raw
	if cfg.Prefilter {
		coeffs, err := biquad.BandpassEdges(p.lowHz, p.highHz, 1000/cfg.PeriodMS)
		if err != nil {
			return nil, fmt.Errorf("pulse: prefilter: %w", err)
		}
		if !coeffs.Stable() {
			return nil, fmt.Errorf("pulse: prefilter unstable at %v ms period: %+v", cfg.PeriodMS, coeffs)
		}
		p.pre = biquad.NewSection(coeffs)
		if p.cond, err = ring.New(length); err != nil {
			return nil, fmt.Errorf("pulse: %w", err)
		}
	}

	return p, nil
}

// Config returns the resolved configuration.
func (p *Processor) Config() Config { return p.cfg }

// Length returns the analysis window length L in samples.
func (p *Processor) Length() int { return p.length }

// CenterSpan returns the centering window length in samples.
func (p *Processor) CenterSpan() int { return p.centerSpan }

// FilterSpan returns the moving-average length in samples.
func (p *Processor) FilterSpan() int { return p.filterSpan }

// LastPos returns the storage index of the most recent write.
func (p *Processor) LastPos() int { return p.raw.Pos() }

// Filled returns the number of samples held, at most Length.
func (p *Processor) Filled() int { return p.raw.Filled() }

// Ready reports whether a full analysis window has been written.
func (p *Processor) Ready() bool { return p.raw.IsFull() }

// Rejected returns how many non-finite samples were dropped.
func (p *Processor) Rejected() int { return p.rejected }

// SetPeakDetector attaches s to receive every filtered sample. A nil s,
// including a typed nil pointer, detaches the current sink.
func (p *Processor) SetPeakDetector(s Sink) {
	if isNil(s) {
		p.sink = nil
		return
	}
	p.sink = s
}

// UpdateFiltered is Update with filtering enabled.
func (p *Processor) UpdateFiltered(value, timeMS float64) {
	p.Update(value, timeMS, true)
}

// Update appends one raw sample taken at timeMS. With filter set the sample
// is centred against the trailing centering window, normalised and smoothed;
// otherwise the raw value is stored as the filtered sample. With Prefilter
// the centering window holds band-passed samples instead of raw ones.
// Non-finite values or timestamps are counted and dropped.
func (p *Processor) Update(value, timeMS float64, filter bool) {
	if !core.IsFinite(value) || !core.IsFinite(timeMS) {
		p.rejected++
		return
	}

	x := value
	if p.pre != nil {
		x = p.prefilter(value)
		p.cond.Write(x)
	}
	p.raw.Write(value)
	p.times.Write(timeMS)

	n := min(p.centerSpan, p.cond.Filled())
	for i := 0; i < n; i++ {
		p.center[i] = p.cond.At(-i)
	}
	z, stdev := zscore(p.center[:n], x)
	p.stdev = stdev

	out := value
	if filter {
		p.normalized.Write(z)
		m := p.normalized.Filled()
		out = p.normalized.Sum(m) / float64(m)
	}
	p.filtered.Write(out)

	if p.sink != nil {
		p.sink.Update(out, timeMS)
	}
}

// prefilter band-passes value. An overflowed section is re-primed at the
// current level, and cleared if that overflows as well.
func (p *Processor) prefilter(value float64) float64 {
	if p.raw.Filled() == 0 {
		p.pre.Prime(value)
	}
	if x := p.pre.ProcessSample(value); p.preFinite(x) {
		return x
	}

	p.pre.Prime(value)
	if x := p.pre.ProcessSample(value); p.preFinite(x) {
		return x
	}
	p.pre.Reset()
	return 0
}

func (p *Processor) preFinite(x float64) bool {
	st := p.pre.State()
	return core.IsFinite(x) && core.IsFinite(st[0]) && core.IsFinite(st[1])
}

// zscore returns the standard score of x against win and the population
// standard deviation of win. win is scaled in place by its largest magnitude
// so finite values near the float64 limit do not overflow. The score is 0
// when the deviation is below the variance floor.
func zscore(win []float64, x float64) (z, stdev float64) {
	scale := math.Abs(x)
	for _, v := range win {
		scale = math.Max(scale, math.Abs(v))
	}
	if scale == 0 || !core.IsFinite(scale) {
		return 0, 0
	}

	for i := range win {
		win[i] /= scale
	}
	mean, sd := timestats.MeanStdDev(win)
	stdev = sd * scale
	if stdev < varianceFloor || !core.IsFinite(stdev) {
		return 0, stdev
	}

	z = (x/scale - mean) / sd
	if !core.IsFinite(z) {
		return 0, stdev
	}
	return z, stdev
}

// ComputeFrequency searches the filtered window for the dominant in-band
// frequency and returns it in beats (or breaths) per minute. It returns 0
// until a full window has been written, when the band holds no bins at the
// estimated sample rate, or when the spectrum yields no finite peak.
func (p *Processor) ComputeFrequency() float64 {
	if !p.Ready() {
		return 0
	}

	p.frame = p.filtered.Chronological(p.frame)
	if peak := maxAbs(p.frame); peak > frameRescale {
		for i := range p.frame {
			p.frame[i] /= peak
		}
	}
	mean := timestats.Mean(p.frame)
	for i := range p.frame {
		p.frame[i] -= mean
	}
	if p.cfg.Window != window.TypeRectangular {
		if err := window.ApplyCoefficientsInPlace(p.frame, p.coeffs); err != nil {
			return p.clear()
		}
	}

	power, err := p.analyzer.PowerSpectrum(p.frame)
	if err != nil {
		return p.clear()
	}

	size := p.analyzer.Size()
	rate := p.sampleRate()
	first, last, ok := spectrum.BandBins(p.lowHz, p.highHz, size, rate)
	if !ok {
		return p.clear()
	}

	peak := spectrum.PeakBin(power, first, last)
	if peak < 0 || !core.IsFinite(power[peak]) {
		return p.clear()
	}
	guard := int(math.Ceil(p.cfg.GuardBins*float64(size)/float64(p.length) - 1e-9))
	noise := spectrum.BandEnergy(power, first, last, peak-guard, peak+guard)

	p.frequency = 60 * spectrum.BinFrequency(peak, size, rate)
	p.snr = power[peak] / math.Max(noise, noiseFloor)
	if !core.IsFinite(p.snr) {
		return p.clear()
	}

	p.bandFreqs = p.bandFreqs[:0]
	p.bandPower = p.bandPower[:0]
	for k := first; k <= last; k++ {
		p.bandFreqs = append(p.bandFreqs, spectrum.BinFrequency(k, size, rate))
		p.bandPower = append(p.bandPower, power[k])
	}

	return p.frequency
}

// sampleRate estimates the rate in Hz from the stored timestamps and falls
// back to the nominal period when they do not advance.
func (p *Processor) sampleRate() float64 {
	p.tframe = p.times.Chronological(p.tframe)
	span := p.tframe[len(p.tframe)-1] - p.tframe[0]
	if span > 0 && core.IsFinite(span) {
		return float64(len(p.tframe)-1) * 1000 / span
	}
	return 1000 / p.cfg.PeriodMS
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func (p *Processor) clear() float64 {
	p.frequency = 0
	p.snr = 0
	p.bandFreqs = p.bandFreqs[:0]
	p.bandPower = p.bandPower[:0]
	return 0
}

// Frequency returns the last computed frequency in per-minute units.
func (p *Processor) Frequency() float64 { return p.frequency }

// SNR returns the last computed linear peak-to-noise power ratio.
func (p *Processor) SNR() float64 { return p.snr }

// SNRdB returns SNR in decibels, -Inf before the first estimate.
func (p *Processor) SNRdB() float64 { return core.LinearPowerToDB(p.snr) }

// SignalSampleValue returns the newest filtered sample.
func (p *Processor) SignalSampleValue() float64 { return p.filtered.Last() }

// SignalStdev returns the standard deviation over the centering window as
// of the newest sample: of raw samples, or of band-passed ones with
// Prefilter.
func (p *Processor) SignalStdev() float64 { return p.stdev }

// Signal returns the filtered window ordered from oldest to newest.
func (p *Processor) Signal() []float64 {
	return p.filtered.Chronological(nil)
}

// SignalInto is Signal reusing dst when its capacity suffices.
func (p *Processor) SignalInto(dst []float64) []float64 {
	return p.filtered.Chronological(dst)
}

// Spectrum returns copies of the in-band bin frequencies (Hz) and powers
// from the last ComputeFrequency call.
func (p *Processor) Spectrum() (freqs, power []float64) {
	freqs = append([]float64(nil), p.bandFreqs...)
	power = append([]float64(nil), p.bandPower...)
	return freqs, power
}

// Snapshot returns the current scalar results.
func (p *Processor) Snapshot() Snapshot {
	return Snapshot{
		Type:      p.cfg.Type.String(),
		Frequency: p.frequency,
		SNR:       p.snr,
		SNRdB:     snrDB(p.snr),
		Sample:    p.SignalSampleValue(),
		Stdev:     p.stdev,
		Length:    p.length,
		Filled:    p.Filled(),
		Ready:     p.Ready(),
		Rejected:  p.rejected,
	}
}

// Reset discards all samples and results. The attached sink is kept.
func (p *Processor) Reset() {
	p.raw.Reset()
	p.cond.Reset()
	p.times.Reset()
	if p.pre != nil {
		p.pre.Reset()
	}
	p.filtered.Reset()
	p.normalized.Reset()
	p.stdev = 0
	p.rejected = 0
	p.clear()
}

// snrDB is SNRdB with 0 for an absent estimate, keeping Snapshot
// JSON-encodable.
func snrDB(snr float64) float64 {
	if snr <= 0 {
		return 0
	}
	return core.LinearPowerToDB(snr)
}

func isNil(s Sink) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
