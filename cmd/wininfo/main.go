// Command wininfo prints how each analysis window behaves for pulse
// estimation at a given window duration and sample period.
//
// Usage:
//
//	wininfo [flags] [window-name ...]
//
// Without arguments it prints info for all known window types, followed by
// the response of the band-pass prefilter for the chosen process type.
//
// Examples:
//
//	wininfo hann
//	wininfo -window-ms 10000 -period-ms 40 hann blackman
//	wininfo -type breath-rate -window-ms 30000
//	wininfo -list
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/dsp/filter/biquad"
	"github.com/cwbudde/algo-vpg/dsp/spectrum"
	"github.com/cwbudde/algo-vpg/dsp/window"
	"github.com/cwbudde/algo-vpg/vpg/pulse"
)

var registry = []window.Type{
	window.TypeRectangular,
	window.TypeHann,
	window.TypeHamming,
	window.TypeBlackman,
}

const (
	// settleBlock bounds the impulse response examined for settling.
	settleBlock = 8192
	// settleLevel is the fraction of the impulse peak treated as settled.
	settleLevel = 1e-3
)

// profileOversample is the zero-padding used to resolve the window's own
// response between native bins.
const profileOversample = 64

type profile struct {
	coherentGain float64
	enbw         float64 // bins
	firstNull    float64 // bins
	sidelobeDB   float64
	scallopDB    float64
}

func main() {
	windowMS := flag.Float64("window-ms", 5000, "analysis window duration")
	periodMS := flag.Float64("period-ms", 33, "sample period")
	list := flag.Bool("list", false, "list available window names")
	periodic := flag.Bool("periodic", false, "use the periodic window form instead of the symmetric one")
	typeName := flag.String("type", pulse.HeartRate.String(), "process type for the prefilter table (heart-rate|breath-rate)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: wininfo [flags] [window-name ...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints spectral properties of analysis windows in pulse units.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *list {
		names := make([]string, len(registry))
		for i, t := range registry {
			names[i] = t.String()
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	ptype, err := pulse.ParseProcessType(*typeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	length := core.SamplesFor(*windowMS, *periodMS)
	if length < 4 {
		fmt.Fprintf(os.Stderr, "error: window must span at least 4 samples, got %d\n", length)
		os.Exit(1)
	}

	types := registry
	if flag.NArg() > 0 {
		types = nil
		for _, name := range flag.Args() {
			t, err := window.ParseType(name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v (use -list to see available)\n", err)
				continue
			}
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		fmt.Fprintf(os.Stderr, "error: no matching window types\n")
		os.Exit(1)
	}

	var opts []window.Option
	if *periodic {
		opts = append(opts, window.WithPeriodic())
	}
	if err := printAnalysis(os.Stdout, types, length, *periodMS, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	if err := printPrefilter(os.Stdout, ptype, *periodMS); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printAnalysis(w io.Writer, types []window.Type, length int, periodMS float64, opts ...window.Option) error {
	binBPM := 60000 / (float64(length) * periodMS)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Window\tL\tCoherent Gain\tENBW [bins]\t1st Null [bins]\tSidelobe [dB]\tScallop [dB]\tNull [bpm]\n")
	fmt.Fprintf(tw, "------\t-\t-------------\t-----------\t---------------\t-------------\t------------\t----------\n")

	for _, t := range types {
		p, err := analyze(window.Generate(t, length, opts...))
		if err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.3f\t%.3f\t%.2f\t%.3f\t%.2f\n",
			t, length, p.coherentGain, p.enbw, p.firstNull, p.sidelobeDB, p.scallopDB, p.firstNull*binBPM)
	}
	fmt.Fprintf(tw, "\nbin width\t%.3f bpm\n", binBPM)
	return tw.Flush()
}

func analyze(coeffs []float64) (profile, error) {
	n := len(coeffs)
	cg, err := window.CoherentGain(coeffs)
	if err != nil {
		return profile{}, err
	}

	a, err := spectrum.NewAnalyzer(core.NextPowerOfTwo(n * profileOversample))
	if err != nil {
		return profile{}, err
	}
	power, err := a.PowerSpectrum(coeffs)
	if err != nil {
		return profile{}, err
	}
	binsPerNative := float64(a.Size()) / float64(n)
	dc := power[0]

	sumSq := 0.0
	for _, c := range coeffs {
		sumSq += c * c
	}
	p := profile{
		coherentGain: cg,
		enbw:         float64(n) * sumSq / (cg * cg * float64(n*n)),
		scallopDB:    core.LinearPowerToDB(halfBinPower(coeffs) / dc),
	}

	null := len(power) - 1
	for k := 1; k < len(power); k++ {
		if power[k] < 0.1*dc && power[k] > power[k-1] {
			null = k - 1
			break
		}
	}
	p.firstNull = float64(null) / binsPerNative

	side := spectrum.PeakBin(power, null, len(power)-1)
	p.sidelobeDB = core.LinearPowerToDB(power[side] / dc)
	return p, nil
}

// halfBinPower evaluates |W(f)|^2 half a native bin from DC.
func halfBinPower(coeffs []float64) float64 {
	w := math.Pi / float64(len(coeffs))
	re, im := 0.0, 0.0
	for k, c := range coeffs {
		re += c * math.Cos(w*float64(k))
		im -= c * math.Sin(w*float64(k))
	}
	return re*re + im*im
}

func printPrefilter(w io.Writer, t pulse.ProcessType, periodMS float64) error {
	rate := 1000 / periodMS
	low, high := t.Band()
	c, err := biquad.BandpassEdges(low, high, rate)
	if err != nil {
		return fmt.Errorf("prefilter: %w", err)
	}
	if !c.Stable() {
		return fmt.Errorf("prefilter unstable: %+v", c)
	}

	fmt.Fprintf(w, "Prefilter for %s band [%.2f, %.2f] Hz at %.2f Hz\n", t, low, high, rate)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Point\tFrequency [Hz]\tRate [1/min]\tGain [dB]\tPhase [deg]\n")
	fmt.Fprintf(tw, "-----\t--------------\t------------\t---------\t-----------\n")

	points := []struct {
		name string
		hz   float64
	}{
		{"low edge", low},
		{"centre", math.Sqrt(low * math.Min(high, 0.45*rate))},
		{"high edge", math.Min(high, 0.45*rate)},
	}
	for _, pt := range points {
		phase := cmplx.Phase(c.Response(pt.hz, rate)) * 180 / math.Pi
		fmt.Fprintf(tw, "%s\t%.3f\t%.1f\t%.2f\t%.1f\n", pt.name, pt.hz, 60*pt.hz, c.MagnitudeDB(pt.hz, rate), phase)
	}

	n := settleSamples(c)
	fmt.Fprintf(tw, "\nsettling\t%d samples\t%.0f ms\n", n, float64(n)*periodMS)
	return tw.Flush()
}

// settleSamples returns the number of samples after which the impulse
// response stays below settleLevel of its peak, or settleBlock if it never
// does within the block.
func settleSamples(c biquad.Coefficients) int {
	h := make([]float64, settleBlock)
	h[0] = 1
	biquad.NewSection(c).ProcessBlock(h)

	peak := 0.0
	for _, v := range h {
		peak = math.Max(peak, math.Abs(v))
	}
	for i := len(h) - 1; i >= 0; i-- {
		if math.Abs(h[i]) > settleLevel*peak {
			return i + 1
		}
	}
	return 0
}
