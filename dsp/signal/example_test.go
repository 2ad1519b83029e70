package signal_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/dsp/signal"
)

func ExampleGenerator_Sine() {
	// 5 Hz sampled every 50 ms: a quarter cycle per sample.
	g := signal.NewGenerator(core.WithPeriodMS(50))
	x, err := g.Sine(5, 1, 5)
	if err != nil {
		panic(err)
	}
	for i := range x {
		if math.Abs(x[i]) < 1e-12 {
			x[i] = 0
		}
	}

	fmt.Printf("%.0f %.0f %.0f %.0f %.0f\n", x[0], x[1], x[2], x[3], x[4])

	// Output:
	// 0 1 0 -1 0
}

func ExampleGenerator_Timestamps() {
	g := signal.NewGenerator(core.WithPeriodMS(33))
	ts, _ := g.Timestamps(0, 0, 4)
	fmt.Println(ts)

	// Output:
	// [0 33 66 99]
}
