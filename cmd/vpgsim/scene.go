package main

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/dsp/signal"
)

// driftHz is the frequency of the simulated illumination drift.
const driftHz = 0.05

var (
	skin       = [3]float64{186, 122, 98}
	background = [3]float64{60, 64, 70}
)

// scene renders synthetic camera frames: a face patch whose green channel
// follows a pulse waveform over a static background.
type scene struct {
	frame    *image.RGBA
	face     image.Rectangle
	pulse    []float64
	level    []float64
	times    []float64
	next     int
	interval time.Duration
	ticker   *time.Ticker
}

type sceneConfig struct {
	width, height int
	bpm           float64
	amplitude     float64
	noise         float64
	drift         float64
	wave          string
	noiseKind     string
	periodMS      float64
	jitterMS      float64
	frames        int
	seed          int64
	realtime      bool
}

func newScene(cfg sceneConfig) (*scene, error) {
	gen := signal.NewGeneratorWithOptions(
		[]core.SamplingOption{core.WithPeriodMS(cfg.periodMS)},
		signal.WithSeed(cfg.seed),
	)

	var pulse, noise []float64
	var err error
	switch cfg.wave {
	case "", "pulse":
		pulse, err = gen.Pulse(cfg.bpm/60, cfg.amplitude, cfg.frames)
	case "sine":
		pulse, err = gen.Sine(cfg.bpm/60, cfg.amplitude, cfg.frames)
	default:
		return nil, fmt.Errorf("unknown wave %q (pulse|sine)", cfg.wave)
	}
	if err != nil {
		return nil, err
	}
	switch cfg.noiseKind {
	case "", "gaussian":
		noise, err = gen.GaussianNoise(cfg.noise, cfg.frames)
	case "uniform":
		noise, err = gen.WhiteNoise(cfg.noise, cfg.frames)
	default:
		return nil, fmt.Errorf("unknown noise kind %q (gaussian|uniform)", cfg.noiseKind)
	}
	if err != nil {
		return nil, err
	}
	drift, err := gen.Sine(driftHz, cfg.drift, cfg.frames)
	if err != nil {
		return nil, err
	}
	times, err := gen.Timestamps(0, cfg.jitterMS, cfg.frames)
	if err != nil {
		return nil, err
	}

	w, h := cfg.width, cfg.height
	s := &scene{
		frame:    image.NewRGBA(image.Rect(0, 0, w, h)),
		face:     image.Rect(w/4, h/5, 3*w/4, 4*h/5),
		pulse:    pulse,
		level:    signal.Mix(0, pulse, noise, drift),
		times:    times,
		interval: time.Duration(cfg.periodMS * float64(time.Millisecond)),
	}
	if cfg.realtime {
		s.ticker = time.NewTicker(s.interval)
	}
	return s, nil
}

// Background returns a region of the frame outside the face.
func (s *scene) Background() image.Rectangle {
	b := s.frame.Bounds()
	return image.Rect(b.Min.X, b.Min.Y, b.Min.X+b.Dx()/5, b.Min.Y+b.Dy()/5)
}

// TimeMS returns the capture time of the frame most recently returned.
func (s *scene) TimeMS() float64 {
	if s.next == 0 {
		return 0
	}
	return s.times[s.next-1]
}

// Done reports whether every frame has been rendered.
func (s *scene) Done() bool { return s.next >= len(s.level) }

// Next renders the next frame. In realtime mode it waits for the frame
// period first. The returned image is reused by the following call.
func (s *scene) Next(ctx context.Context) (image.Image, error) {
	if s.Done() {
		s.next = 0
	}
	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ticker.C:
		}
	}

	i := s.next
	s.next++

	s.paint(s.frame.Bounds(), background, 0)
	s.paint(s.face, skin, s.level[i])
	return s.frame, nil
}

// paint fills r with base shifted by greenDelta, ordered-dithered so the
// region mean keeps sub-level precision after 8-bit quantisation.
func (s *scene) paint(r image.Rectangle, base [3]float64, greenDelta float64) {
	delta := [3]float64{0.3 * greenDelta, greenDelta, 0.2 * greenDelta}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := s.frame.Pix[s.frame.PixOffset(r.Min.X, y):s.frame.PixOffset(r.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			x := r.Min.X + i/4
			d := float64((x*7+y*13)%16)/16 + 1.0/32
			for c := 0; c < 3; c++ {
				row[i+c] = uint8(core.Clamp(base[c]+delta[c]+d, 0, 255))
			}
			row[i+3] = 255
		}
	}
}

func (s *scene) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
}
