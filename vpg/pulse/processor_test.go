package pulse

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/cwbudde/algo-vpg/dsp/window"
	"github.com/cwbudde/algo-vpg/internal/testutil"
	"github.com/cwbudde/algo-vpg/vpg/peak"
)

const periodMS = 33

// newWindow150 returns a heart-rate processor with L = 150 at 33 ms.
func newWindow150(t *testing.T) *Processor {
	t.Helper()

	cfg := DefaultConfig()
	cfg.WindowMS = 150 * periodMS
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Length() != 150 {
		t.Fatalf("Length() = %d, want 150", p.Length())
	}
	return p
}

func feed(p *Processor, values, times []float64) {
	for i := range values {
		p.UpdateFiltered(values[i], times[i])
	}
}

func noisySine(freqHz, noise float64, seed int64, n int) []float64 {
	return testutil.Add(
		testutil.DeterministicSine(freqHz, periodMS, 1, n),
		testutil.DeterministicGaussian(seed, noise, n),
	)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "negative period", mutate: func(c *Config) { c.PeriodMS = -1 }},
		{name: "nan window", mutate: func(c *Config) { c.WindowMS = math.NaN() }},
		{name: "infinite center", mutate: func(c *Config) { c.CenterMS = math.Inf(1) }},
		{name: "negative filter", mutate: func(c *Config) { c.FilterMS = -10 }},
		{name: "window too short", mutate: func(c *Config) { c.WindowMS = 3 * periodMS }},
		{name: "negative oversample", mutate: func(c *Config) { c.Oversample = -1 }},
		{name: "negative guard", mutate: func(c *Config) { c.GuardBins = -0.5 }},
		{name: "unknown type", mutate: func(c *Config) { c.Type = ProcessType(9) }},
		{name: "prefilter band above nyquist", mutate: func(c *Config) { c.PeriodMS, c.Prefilter = 1000, true }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatal("New() error = nil, want error")
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	p, err := NewDefault(periodMS, HeartRate)
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}

	if got := p.Length(); got != 152 {
		t.Fatalf("Length() = %d, want 152", got)
	}
	if got := p.CenterSpan(); got != 91 {
		t.Fatalf("CenterSpan() = %d, want 91", got)
	}
	if got := p.FilterSpan(); got != 5 {
		t.Fatalf("FilterSpan() = %d, want 5", got)
	}
	if got := p.Config().Window; got != window.TypeHann {
		t.Fatalf("Config().Window = %v, want hann", got)
	}

	b, err := NewDefault(periodMS, BreathRate)
	if err != nil {
		t.Fatalf("NewDefault(BreathRate) error = %v", err)
	}
	if got := b.Length(); got != 909 {
		t.Fatalf("breath Length() = %d, want 909", got)
	}
}

func TestCenterSpanClampedToWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowMS = 10 * periodMS
	cfg.CenterMS = 1000 * periodMS
	cfg.FilterMS = 1

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.CenterSpan() != 10 {
		t.Fatalf("CenterSpan() = %d, want 10", p.CenterSpan())
	}
	if p.FilterSpan() != 1 {
		t.Fatalf("FilterSpan() = %d, want 1", p.FilterSpan())
	}
}

func TestComputeFrequencySentinelUntilFull(t *testing.T) {
	p := newWindow150(t)
	values := testutil.DeterministicSine(1.2, periodMS, 1, 149)
	feed(p, values, testutil.UniformTimes(0, periodMS, 149))

	if p.Ready() {
		t.Fatal("Ready() = true before a full window")
	}
	if got := p.ComputeFrequency(); got != 0 {
		t.Fatalf("ComputeFrequency() = %v, want 0 sentinel", got)
	}
	if p.SNR() != 0 {
		t.Fatalf("SNR() = %v, want 0", p.SNR())
	}
}

func TestEndToEndHeartRate(t *testing.T) {
	p := newWindow150(t)
	n := 3 * p.Length()
	feed(p, noisySine(1.2, 0.05, 1, n), testutil.UniformTimes(0, periodMS, n))

	bpm := p.ComputeFrequency()
	testutil.RequireWithin(t, "bpm", bpm, 72, 2)
	if p.SNR() <= 3 {
		t.Fatalf("SNR() = %v, want > 3", p.SNR())
	}
	if p.Frequency() != bpm {
		t.Fatalf("Frequency() = %v, want cached %v", p.Frequency(), bpm)
	}
	if db := p.SNRdB(); math.Abs(db-10*math.Log10(p.SNR())) > 1e-12 {
		t.Fatalf("SNRdB() = %v, inconsistent with SNR() = %v", db, p.SNR())
	}
}

func TestPrefilterRemovesDrift(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowMS = 150 * periodMS
	cfg.Prefilter = true
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	n := 3 * p.Length()
	times := testutil.UniformTimes(0, periodMS, n)
	values := noisySine(1.2, 0.05, 1, n)
	for i, ts := range times {
		// Slow illumination drift well below the band.
		values[i] += 128 + 20*math.Sin(2*math.Pi*0.05*ts/1000)
	}
	feed(p, values, times)

	testutil.RequireWithin(t, "bpm", p.ComputeFrequency(), 72, 2)
	if p.SNR() <= 3 {
		t.Fatalf("SNR() = %v, want > 3", p.SNR())
	}
	if sd := p.SignalStdev(); sd <= 0 || sd > 1.5 {
		t.Fatalf("SignalStdev() = %v, want the band-passed scale", sd)
	}
}

func TestSinusoidWithinOneBin(t *testing.T) {
	p := newWindow150(t)
	resolution := 60 * 1000 / float64(p.Length()*periodMS)

	for _, f := range []float64{0.9, 1.5, 2.0, 3.0} {
		p.Reset()
		n := 2 * p.Length()
		feed(p, testutil.DeterministicSine(f, periodMS, 1, n), testutil.UniformTimes(0, periodMS, n))
		testutil.RequireWithin(t, "bpm", p.ComputeFrequency(), 60*f, resolution)
	}
}

func TestCursorWraps(t *testing.T) {
	p := newWindow150(t)
	for k := 1; k <= 2*p.Length()+7; k++ {
		p.UpdateFiltered(float64(k), float64(k*periodMS))
		if want := (k - 1) % p.Length(); p.LastPos() != want {
			t.Fatalf("after %d updates LastPos() = %d, want %d", k, p.LastPos(), want)
		}
	}
	if p.Filled() != p.Length() {
		t.Fatalf("Filled() = %d, want %d", p.Filled(), p.Length())
	}
}

func TestRejectsNonFinite(t *testing.T) {
	p := newWindow150(t)
	p.UpdateFiltered(1, 0)
	p.UpdateFiltered(2, 33)
	pos, sample := p.LastPos(), p.SignalSampleValue()

	p.UpdateFiltered(math.NaN(), 66)
	p.UpdateFiltered(math.Inf(1), 99)
	p.Update(3, math.Inf(-1), false)

	if p.LastPos() != pos {
		t.Fatalf("LastPos() = %d, want %d", p.LastPos(), pos)
	}
	if p.Filled() != 2 {
		t.Fatalf("Filled() = %d, want 2", p.Filled())
	}
	if p.Rejected() != 3 {
		t.Fatalf("Rejected() = %d, want 3", p.Rejected())
	}
	if p.SignalSampleValue() != sample {
		t.Fatalf("SignalSampleValue() = %v, want %v", p.SignalSampleValue(), sample)
	}
	testutil.RequireFinite(t, p.Signal())
}

func TestUnfilteredStoresRaw(t *testing.T) {
	p := newWindow150(t)
	raw := []float64{120, 121.5, 119, 122}
	for i, v := range raw {
		p.Update(v, float64(i*periodMS), false)
	}

	testutil.RequireSliceNearlyEqual(t, p.Signal(), raw, 0)
	if p.SignalStdev() <= 0 {
		t.Fatalf("SignalStdev() = %v, want > 0", p.SignalStdev())
	}
}

func TestFlatSignalFiltersToZero(t *testing.T) {
	p := newWindow150(t)
	n := p.Length()
	feed(p, testutil.DC(128, n), testutil.UniformTimes(0, periodMS, n))

	for i, v := range p.Signal() {
		if v != 0 {
			t.Fatalf("Signal()[%d] = %v, want 0", i, v)
		}
	}

	bpm := p.ComputeFrequency()
	if bpm < 42-1e-6 || bpm > 210+1e-6 {
		t.Fatalf("ComputeFrequency() = %v, want in band", bpm)
	}
	if p.SNR() != 0 {
		t.Fatalf("SNR() = %v, want 0 for a flat spectrum", p.SNR())
	}
}

func TestFilterIsZeroMeanUnitScale(t *testing.T) {
	p := newWindow150(t)
	n := 2 * p.Length()
	feed(p, testutil.Add(testutil.DC(100, n), testutil.DeterministicSine(1.2, periodMS, 5, n)),
		testutil.UniformTimes(0, periodMS, n))

	for i, v := range p.Signal() {
		if math.Abs(v) > 3 {
			t.Fatalf("Signal()[%d] = %v, want normalised magnitude", i, v)
		}
	}
	testutil.RequireWithin(t, "stdev", p.SignalStdev(), 5/math.Sqrt2, 0.25)
}

func TestBandContainment(t *testing.T) {
	for _, typ := range []ProcessType{HeartRate, BreathRate} {
		cfg := DefaultConfig()
		cfg.Type = typ
		p, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%v) error = %v", typ, err)
		}
		low, high := typ.Band()

		for seed := int64(1); seed <= 4; seed++ {
			p.Reset()
			n := p.Length() + 13
			feed(p, testutil.DeterministicGaussian(seed, 1, n), testutil.UniformTimes(0, periodMS, n))

			bpm := p.ComputeFrequency()
			if bpm < 60*low-1e-6 || bpm > 60*high+1e-6 {
				t.Fatalf("%v seed %d: ComputeFrequency() = %v outside [%v, %v]", typ, seed, bpm, 60*low, 60*high)
			}

			freqs, power := p.Spectrum()
			if len(freqs) == 0 || len(freqs) != len(power) {
				t.Fatalf("Spectrum() lengths = %d/%d", len(freqs), len(power))
			}
			if freqs[0] < low-1e-9 || freqs[len(freqs)-1] > high+1e-9 {
				t.Fatalf("Spectrum() spans [%v, %v], want within [%v, %v]", freqs[0], freqs[len(freqs)-1], low, high)
			}
		}
	}
}

// requireUsable checks that every result of p after ComputeFrequency returned
// bpm is finite and that bpm is either the sentinel or inside the band.
func requireUsable(t *testing.T, p *Processor, bpm float64) {
	t.Helper()

	low, high := p.Config().Type.Band()
	if bpm != 0 && (bpm < 60*low-1e-6 || bpm > 60*high+1e-6) {
		t.Fatalf("ComputeFrequency() = %v, want 0 or within [%v, %v]", bpm, 60*low, 60*high)
	}
	if math.IsNaN(p.SNR()) || math.IsInf(p.SNR(), 0) || p.SNR() < 0 {
		t.Fatalf("SNR() = %v, want finite and >= 0", p.SNR())
	}
	testutil.RequireFinite(t, []float64{p.SignalStdev(), p.SignalSampleValue()})
	testutil.RequireFinite(t, p.Signal())
	_, power := p.Spectrum()
	testutil.RequireFinite(t, power)
	if _, err := json.Marshal(p.Snapshot()); err != nil {
		t.Fatalf("json.Marshal(Snapshot) error = %v", err)
	}
}

func TestExtremeFiniteInput(t *testing.T) {
	alternating := func(v float64, n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
			if i%3 == 0 {
				out[i] = -v
			}
		}
		return out
	}

	tests := []struct {
		name      string
		prefilter bool
		values    func(n int) []float64
	}{
		{"constant near max", false, func(n int) []float64 { return testutil.DC(1e307, n) }},
		{"constant max", false, func(n int) []float64 { return testutil.DC(math.MaxFloat64, n) }},
		{"alternating sign", false, func(n int) []float64 { return alternating(1e308, n) }},
		{"tiny", false, func(n int) []float64 { return testutil.DC(5e-324, n) }},
		{"prefilter constant", true, func(n int) []float64 { return testutil.DC(1e307, n) }},
		{"prefilter alternating", true, func(n int) []float64 { return alternating(1e308, n) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.WindowMS = 150 * periodMS
			cfg.Prefilter = tt.prefilter
			p, err := New(cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			n := p.Length()
			feed(p, tt.values(n), testutil.UniformTimes(0, periodMS, n))
			requireUsable(t, p, p.ComputeFrequency())
		})
	}
}

func TestUnfilteredExtremeSine(t *testing.T) {
	p := newWindow150(t)
	n := 2 * p.Length()
	values := testutil.DeterministicSine(1.2, periodMS, 1e307, n)
	for i, ts := range testutil.UniformTimes(0, periodMS, n) {
		p.Update(values[i], ts, false)
	}

	bpm := p.ComputeFrequency()
	requireUsable(t, p, bpm)
	testutil.RequireWithin(t, "bpm", bpm, 72, 2)
}

func TestRecoversAfterExtremeInput(t *testing.T) {
	for _, prefilter := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.WindowMS = 150 * periodMS
		cfg.Prefilter = prefilter
		p, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		burst := p.Length()
		feed(p, testutil.DC(1e307, burst), testutil.UniformTimes(0, periodMS, burst))
		requireUsable(t, p, p.ComputeFrequency())

		// The band-pass section needs a few thousand samples to ring down
		// from a 1e307 step.
		n := 3 * p.Length()
		if prefilter {
			n = 3000
		}
		feed(p, noisySine(1.2, 0.05, 1, n), testutil.UniformTimes(float64(burst*periodMS), periodMS, n))

		bpm := p.ComputeFrequency()
		requireUsable(t, p, bpm)
		testutil.RequireWithin(t, "bpm", bpm, 72, 2)
		if p.SNR() <= 3 {
			t.Fatalf("prefilter %v: SNR() = %v, want > 3", prefilter, p.SNR())
		}
	}
}

func TestSNRDecreasesWithNoise(t *testing.T) {
	p := newWindow150(t)
	n := 3 * p.Length()
	times := testutil.UniformTimes(0, periodMS, n)

	prev := math.Inf(1)
	for _, noise := range []float64{0.05, 0.2, 0.8, 3} {
		p.Reset()
		feed(p, noisySine(1.2, noise, 7, n), times)
		p.ComputeFrequency()

		if p.SNR() >= prev {
			t.Fatalf("noise %v: SNR() = %v, want < %v", noise, p.SNR(), prev)
		}
		prev = p.SNR()
	}
}

func TestReadsAreIdempotent(t *testing.T) {
	p := newWindow150(t)
	n := 2 * p.Length()
	feed(p, noisySine(1.2, 0.1, 3, n), testutil.UniformTimes(0, periodMS, n))

	a := p.Signal()
	b := p.SignalInto(make([]float64, 0, p.Length()))
	testutil.RequireSliceNearlyEqual(t, a, b, 0)

	f1, s1 := p.ComputeFrequency(), p.SNR()
	f2, s2 := p.ComputeFrequency(), p.SNR()
	if f1 != f2 || s1 != s2 {
		t.Fatalf("ComputeFrequency not idempotent: (%v, %v) vs (%v, %v)", f1, s1, f2, s2)
	}

	a[0] = 1e9
	if p.Signal()[0] == 1e9 {
		t.Fatal("Signal() aliases internal storage")
	}
}

type recorder struct {
	n     int
	lastT float64
}

func (r *recorder) Update(_, timeMS float64) {
	r.n++
	r.lastT = timeMS
}

func TestPeakDetectorAttachDetach(t *testing.T) {
	p := newWindow150(t)
	rec := &recorder{}

	p.SetPeakDetector(rec)
	for i := 0; i < 10; i++ {
		p.UpdateFiltered(float64(i), float64(i*periodMS))
	}
	if rec.n != 10 || rec.lastT != 9*periodMS {
		t.Fatalf("sink saw %d samples ending %v, want 10 ending %v", rec.n, rec.lastT, 9*periodMS)
	}

	p.SetPeakDetector(nil)
	p.UpdateFiltered(1, 400)
	var typedNil *recorder
	p.SetPeakDetector(rec)
	p.SetPeakDetector(typedNil)
	p.UpdateFiltered(1, 433)
	if rec.n != 10 {
		t.Fatalf("detached sink saw %d samples, want 10", rec.n)
	}

	p.Reset()
	det, err := peak.New(10)
	if err != nil {
		t.Fatalf("peak.New() error = %v", err)
	}
	p.SetPeakDetector(det)
	n := 1000
	feed(p, testutil.DeterministicSine(1.2, periodMS, 1, n), testutil.UniformTimes(0, periodMS, n))
	testutil.RequireWithin(t, "detector bpm", det.BPM(), 72, 3)
}

func TestResetKeepsSink(t *testing.T) {
	p := newWindow150(t)
	rec := &recorder{}
	p.SetPeakDetector(rec)

	n := p.Length()
	feed(p, noisySine(1.2, 0.1, 5, n), testutil.UniformTimes(0, periodMS, n))
	p.ComputeFrequency()
	p.UpdateFiltered(math.NaN(), 0)
	p.Reset()

	if p.Filled() != 0 || p.Ready() || p.Frequency() != 0 || p.SNR() != 0 || p.Rejected() != 0 {
		t.Fatalf("Reset left state: %+v", p.Snapshot())
	}
	p.UpdateFiltered(1, 0)
	if rec.n != n+1 {
		t.Fatalf("sink saw %d samples, want %d", rec.n, n+1)
	}
}

func TestSnapshotEncodes(t *testing.T) {
	p := newWindow150(t)
	s := p.Snapshot()
	if s.SNRdB != 0 || s.Ready || s.Length != 150 || s.Type != "heart-rate" {
		t.Fatalf("Snapshot() = %+v", s)
	}
	if _, err := json.Marshal(s); err != nil {
		t.Fatalf("json.Marshal(Snapshot) error = %v", err)
	}
}

func TestParseProcessType(t *testing.T) {
	for _, name := range []string{"hr", "Heart-Rate", " heartrate "} {
		if got, err := ParseProcessType(name); err != nil || got != HeartRate {
			t.Fatalf("ParseProcessType(%q) = %v, %v", name, got, err)
		}
	}
	if got, err := ParseProcessType("br"); err != nil || got != BreathRate {
		t.Fatalf("ParseProcessType(br) = %v, %v", got, err)
	}
	if _, err := ParseProcessType("spo2"); err == nil {
		t.Fatal("ParseProcessType(spo2) error = nil")
	}
	if got := ProcessType(7).String(); got != "process(7)" {
		t.Fatalf("String() = %q", got)
	}
}
