package biquad

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-vpg/internal/testutil"
)

func TestBandpassPeakAndSkirts(t *testing.T) {
	const rate = 1000.0 / 33
	c, err := BandpassEdges(0.7, 3.5, rate)
	if err != nil {
		t.Fatalf("BandpassEdges() error = %v", err)
	}
	if !c.Stable() {
		t.Fatalf("coefficients unstable: %+v", c)
	}

	centre := math.Sqrt(0.7 * 3.5)
	testutil.RequireWithin(t, "centre dB", c.MagnitudeDB(centre, rate), 0, 1e-9)
	if got := c.MagnitudeSquared(0, rate); got > 1e-20 {
		t.Fatalf("DC |H|^2 = %v, want 0", got)
	}
	for _, f := range []float64{0.1, 10} {
		if db := c.MagnitudeDB(f, rate); db > -6 {
			t.Fatalf("|H(%v Hz)| = %v dB, want below -6 dB", f, db)
		}
	}
	if h := c.Response(centre, rate); math.Abs(imag(h)) > 1e-9 {
		t.Fatalf("phase at centre = %v, want 0", h)
	}
}

func TestDesignValidation(t *testing.T) {
	tests := []struct {
		name          string
		freq, q, rate float64
	}{
		{name: "zero rate", freq: 1, q: 1, rate: 0},
		{name: "above nyquist", freq: 20, q: 1, rate: 30},
		{name: "zero q", freq: 1, q: 0, rate: 30},
		{name: "nan freq", freq: math.NaN(), q: 1, rate: 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Bandpass(tc.freq, tc.q, tc.rate); err == nil {
				t.Fatal("Bandpass() error = nil")
			}
		})
	}

	if _, err := BandpassEdges(3, 1, 30); err == nil {
		t.Fatal("BandpassEdges(inverted) error = nil")
	}
	if _, err := BandpassEdges(20, 30, 30); err == nil {
		t.Fatal("BandpassEdges(above nyquist) error = nil")
	}
}

func TestSectionRejectsOffset(t *testing.T) {
	c, err := BandpassEdges(0.7, 3.5, 30)
	if err != nil {
		t.Fatalf("BandpassEdges() error = %v", err)
	}

	s := NewSection(c)
	s.Prime(128)
	for i := 0; i < 10; i++ {
		if y := s.ProcessSample(128); math.Abs(y) > 1e-9 {
			t.Fatalf("primed output[%d] = %v, want 0", i, y)
		}
	}

	s.Reset()
	if s.State() != [2]float64{} {
		t.Fatalf("State() after Reset = %v", s.State())
	}
}

func TestProcessBlockMatchesSamples(t *testing.T) {
	c, err := Bandpass(1.5, 0.7, 30)
	if err != nil {
		t.Fatalf("Bandpass() error = %v", err)
	}
	in := testutil.DeterministicGaussian(3, 1, 64)

	a := NewSection(c)
	want := make([]float64, len(in))
	for i, x := range in {
		want[i] = a.ProcessSample(x)
	}

	b := NewSection(c)
	got := append([]float64(nil), in...)
	b.ProcessBlock(got[:20])
	b.ProcessBlock(got[20:])

	testutil.RequireSliceNearlyEqual(t, got, want, 1e-12)
	if a.State() != b.State() {
		t.Fatalf("state mismatch: %v vs %v", a.State(), b.State())
	}
}

func TestSteadyStateGainAtCentre(t *testing.T) {
	const rate = 30.0
	c, err := Bandpass(1.2, 0.6, rate)
	if err != nil {
		t.Fatalf("Bandpass() error = %v", err)
	}
	s := NewSection(c)

	in := testutil.DeterministicSine(1.2, 1000/rate, 1, 600)
	peak := 0.0
	for i, x := range in {
		y := s.ProcessSample(x)
		if i >= 300 {
			peak = math.Max(peak, math.Abs(y))
		}
	}
	testutil.RequireWithin(t, "peak", peak, 1, 0.01)
}

func TestStateFlushesAfterDecay(t *testing.T) {
	c, err := BandpassEdges(0.7, 3.5, 1000.0/33)
	if err != nil {
		t.Fatalf("BandpassEdges() error = %v", err)
	}
	if !c.Stable() {
		t.Fatalf("Stable() = false for %+v", c)
	}

	s := NewSection(c)
	s.ProcessSample(1)
	for i := 0; i < 1000; i++ {
		s.ProcessSample(0)
	}
	if st := s.State(); st != [2]float64{} {
		t.Fatalf("State() = %v, want exact zero after ring-down", st)
	}

	block := make([]float64, 1000)
	block[0] = 1
	s.Reset()
	s.ProcessBlock(block)
	if st := s.State(); st != [2]float64{} {
		t.Fatalf("State() after ProcessBlock = %v, want exact zero", st)
	}
}
