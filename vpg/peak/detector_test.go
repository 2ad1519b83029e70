package peak

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-vpg/internal/testutil"
)

// piecewise samples a piecewise-linear waveform through the given knots
// every stepMS milliseconds.
func piecewise(knots [][2]float64, stepMS float64) (times, values []float64) {
	last := knots[len(knots)-1][0]
	for t := knots[0][0]; t <= last; t += stepMS {
		for i := 1; i < len(knots); i++ {
			t0, v0 := knots[i-1][0], knots[i-1][1]
			t1, v1 := knots[i][0], knots[i][1]
			if t <= t1 {
				values = append(values, v0+(v1-v0)*(t-t0)/(t1-t0))
				times = append(times, t)
				break
			}
		}
	}
	return times, values
}

func feed(d *Detector, times, values []float64) {
	for i := range values {
		d.Update(values[i], times[i])
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		opts  []Option
	}{
		{name: "zero depth", depth: 0},
		{name: "negative depth", depth: -1},
		{name: "inverted band", depth: 4, opts: []Option{WithBand(3, 1)}},
		{name: "zero low", depth: 4, opts: []Option{WithBand(0, 1)}},
		{name: "nan band", depth: 4, opts: []Option{WithBand(math.NaN(), 1)}},
		{name: "negative refractory", depth: 4, opts: []Option{WithRefractory(-1)}},
		{name: "max below refractory", depth: 4, opts: []Option{WithRefractory(500), WithMaxInterval(400)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.depth, tt.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDefaultsFromBand(t *testing.T) {
	d, err := New(25)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireWithin(t, "refractory", d.Refractory(), 1000/DefaultHighHz, 1e-9)
	testutil.RequireWithin(t, "max interval", d.MaxInterval(), 1000/DefaultLowHz, 1e-9)

	d, err = New(25, WithBand(0.5, 2), WithRefractory(300))
	if err != nil {
		t.Fatal(err)
	}
	if d.Refractory() != 300 || d.MaxInterval() != 2000 {
		t.Fatalf("refractory=%v max=%v", d.Refractory(), d.MaxInterval())
	}
	if d.Depth() != 25 || d.State() != SeekingFall {
		t.Fatalf("depth=%d state=%v", d.Depth(), d.State())
	}
}

func TestSinusoidIntervalsConverge(t *testing.T) {
	const (
		f0     = 1.2
		period = 33.0
		n      = 1000
	)

	d, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	feed(d, testutil.UniformTimes(0, period, n), testutil.DeterministicSine(f0, period, 1, n))

	if d.Recorded() != d.Depth() {
		t.Fatalf("history not full: %d of %d", d.Recorded(), d.Depth())
	}

	want := 1000 / f0
	for i, iv := range d.Intervals() {
		if math.Abs(iv-want) > period {
			t.Fatalf("interval[%d] = %v, want %v ± %v", i, iv, want, period)
		}
	}
	testutil.RequireWithin(t, "average interval", d.AverageCardiointervalMS(), want, period)
	testutil.RequireWithin(t, "bpm", d.BPM(), 72, 3)
	if d.Discarded() != 0 {
		t.Fatalf("clean sinusoid should not produce double detections, got %d", d.Discarded())
	}
}

func TestDoublePeakInsideRefractory(t *testing.T) {
	d, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	// Two maxima 100 ms apart, then a genuine beat 900 ms after the first.
	times, values := piecewise([][2]float64{
		{0, 0}, {100, 1}, {150, 0.5}, {200, 0.9}, {500, -1}, {1000, 1}, {1200, -1},
	}, 10)

	split := 60 // t = 600 ms
	feed(d, times[:split], values[:split])

	if d.Beats() != 1 {
		t.Fatalf("Beats = %d, want exactly 1 for a double-peaked beat", d.Beats())
	}
	if d.Discarded() != 1 {
		t.Fatalf("Discarded = %d, want 1", d.Discarded())
	}
	if last, ok := d.LastPeakMS(); !ok || last != 100 {
		t.Fatalf("LastPeakMS = %v, %v; want 100", last, ok)
	}
	if d.Recorded() != 0 {
		t.Fatalf("no interval should be recorded yet: %v", d.Intervals())
	}

	feed(d, times[split:], values[split:])
	if d.Beats() != 2 {
		t.Fatalf("Beats = %d, want 2", d.Beats())
	}
	testutil.RequireSliceNearlyEqual(t, d.Intervals(), []float64{900}, 1e-9)
}

func TestIntervalsExceedRefractory(t *testing.T) {
	const n = 3000
	d, err := New(50)
	if err != nil {
		t.Fatal(err)
	}

	values := testutil.Add(
		testutil.DeterministicSine(1.5, 20, 1, n),
		testutil.DeterministicGaussian(3, 0.4, n),
	)
	feed(d, testutil.UniformTimes(0, 20, n), values)

	if d.Discarded() == 0 {
		t.Fatal("noisy input should trigger double detections")
	}
	for i, iv := range d.Intervals() {
		if iv <= d.Refractory() {
			t.Fatalf("interval[%d] = %v does not exceed refractory %v", i, iv, d.Refractory())
		}
	}
}

func TestDropoutReanchors(t *testing.T) {
	d, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	times, values := piecewise([][2]float64{
		{0, 0}, {100, 1}, {500, -1}, {900, 1}, {1300, -1},
		// 3 s without a beat, far beyond the 1428 ms maximum.
		{3900, 1}, {4300, -1}, {4700, 1}, {4900, -1},
	}, 10)
	feed(d, times, values)

	if d.Beats() != 4 {
		t.Fatalf("Beats = %d, want 4", d.Beats())
	}
	testutil.RequireSliceNearlyEqual(t, d.Intervals(), []float64{800, 800}, 1e-9)
}

func TestThreshold(t *testing.T) {
	d, err := New(4, WithThreshold(0.5))
	if err != nil {
		t.Fatal(err)
	}

	times, values := piecewise([][2]float64{
		{0, 0}, {100, 1}, {500, -1}, {900, 0.3}, {1300, -1}, {1700, 1}, {1900, 0},
	}, 10)
	feed(d, times, values)

	if d.Beats() != 2 || d.Discarded() != 0 {
		t.Fatalf("beats=%d discarded=%d, want 2 and 0", d.Beats(), d.Discarded())
	}
	// The sub-threshold bump at 900 ms is skipped, so the single gap spans it.
	if d.Recorded() != 0 {
		t.Fatalf("1600 ms gap exceeds the max interval, got %v", d.Intervals())
	}
}

func TestIgnoresInvalidSamples(t *testing.T) {
	d, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	d.Update(0, 0)
	d.Update(math.NaN(), 10)
	d.Update(math.Inf(1), 20)
	d.Update(1, math.NaN())
	d.Update(5, 0) // time does not advance
	if d.State() != SeekingFall {
		t.Fatalf("invalid samples changed state to %v", d.State())
	}

	d.Update(1, 30)
	if d.State() != SeekingRise {
		t.Fatalf("valid rise should switch to %v, got %v", SeekingRise, d.State())
	}
}

func TestEmptyHistoryAndReset(t *testing.T) {
	d, err := New(3)
	if err != nil {
		t.Fatal(err)
	}
	if d.AverageCardiointervalMS() != 0 || d.BPM() != 0 {
		t.Fatal("empty history should report 0")
	}
	if len(d.Intervals()) != 0 {
		t.Fatal("empty history should have no intervals")
	}

	feed(d, testutil.UniformTimes(0, 33, 300), testutil.DeterministicSine(1, 33, 1, 300))
	if d.Beats() == 0 || d.HRV().Count == 0 {
		t.Fatal("expected beats before reset")
	}

	d.Reset()
	if d.Beats() != 0 || d.Recorded() != 0 || d.Discarded() != 0 {
		t.Fatalf("reset left state behind: beats=%d recorded=%d", d.Beats(), d.Recorded())
	}
	if _, ok := d.LastPeakMS(); ok {
		t.Fatal("reset should clear last peak")
	}
}

func TestStateString(t *testing.T) {
	if SeekingRise.String() != "seeking-rise" || SeekingFall.String() != "seeking-fall" {
		t.Fatal("unexpected state names")
	}
	if State(9).String() != "state(9)" {
		t.Fatal("unexpected unknown state name")
	}
}
