package hrv

import (
	"math"
	"testing"
)

func TestCalculateEmpty(t *testing.T) {
	if s := Calculate(nil); s != (Stats{}) {
		t.Fatalf("got %+v, want zero stats", s)
	}
}

func TestCalculateSingle(t *testing.T) {
	s := Calculate([]float64{800})
	if s.Count != 1 || s.MeanNN != 800 || s.BPM != 75 {
		t.Fatalf("got %+v", s)
	}
	if s.RMSSD != 0 || s.PNN50 != 0 || s.SDNN != 0 {
		t.Fatalf("single interval should have no variability: %+v", s)
	}
}

func TestCalculateKnownSeries(t *testing.T) {
	// successive differences: +100, -40, +20
	s := Calculate([]float64{800, 900, 860, 880})

	if s.Count != 4 {
		t.Fatalf("Count = %d, want 4", s.Count)
	}
	if math.Abs(s.MeanNN-860) > 1e-12 {
		t.Fatalf("MeanNN = %v, want 860", s.MeanNN)
	}
	wantSDNN := math.Sqrt((60*60 + 40*40 + 0 + 20*20) / 4.0)
	if math.Abs(s.SDNN-wantSDNN) > 1e-9 {
		t.Fatalf("SDNN = %v, want %v", s.SDNN, wantSDNN)
	}
	wantRMSSD := math.Sqrt((100*100 + 40*40 + 20*20) / 3.0)
	if math.Abs(s.RMSSD-wantRMSSD) > 1e-9 {
		t.Fatalf("RMSSD = %v, want %v", s.RMSSD, wantRMSSD)
	}
	if math.Abs(s.PNN50-1.0/3) > 1e-12 {
		t.Fatalf("PNN50 = %v, want 1/3", s.PNN50)
	}
	if math.Abs(s.BPM-60000.0/860) > 1e-9 {
		t.Fatalf("BPM = %v", s.BPM)
	}
}

func TestBPM(t *testing.T) {
	if BPM(1000) != 60 {
		t.Fatal("1000 ms should be 60 bpm")
	}
	for _, v := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		if BPM(v) != 0 {
			t.Fatalf("BPM(%v) should be 0", v)
		}
	}
}
