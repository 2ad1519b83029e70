// Command vpgsim renders a synthetic pulsing face, samples it like a camera
// pipeline would and either estimates the rates locally or publishes the
// samples for vpgd.
//
// Usage:
//
//	vpgsim [flags]
//
// Examples:
//
//	vpgsim -bpm 72 -frames 900
//	vpgsim -bpm 95 -noise 1.5 -jitter-ms 4 -quadrants
//	vpgsim -fps 25 -wave sine -drift 20 -prefilter
//	vpgsim -transport nats -realtime -calibrate 30
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/algo-vpg/dsp/core"
	"github.com/cwbudde/algo-vpg/internal/config"
	"github.com/cwbudde/algo-vpg/internal/stream"
	"github.com/cwbudde/algo-vpg/vpg/channel"
	"github.com/cwbudde/algo-vpg/vpg/pulse"
	"github.com/cwbudde/algo-vpg/vpg/region"
)

type options struct {
	scene     sceneConfig
	fps       float64
	transport string
	broker    string
	prefix    string
	batch     int
	calibrate int
	quadrants bool
	prefilter bool
	logLevel  string
}

func main() {
	var o options
	flag.Float64Var(&o.scene.bpm, "bpm", 72, "simulated pulse rate")
	flag.Float64Var(&o.scene.amplitude, "amp", 1.5, "pulse amplitude in green levels")
	flag.Float64Var(&o.scene.noise, "noise", 0.5, "per-frame Gaussian noise in green levels")
	flag.Float64Var(&o.scene.periodMS, "period-ms", 33, "frame period")
	flag.Float64Var(&o.fps, "fps", 0, "frame rate; overrides -period-ms when > 0")
	flag.Float64Var(&o.scene.drift, "drift", 0, "slow illumination drift amplitude in green levels")
	flag.StringVar(&o.scene.wave, "wave", "pulse", "pulse waveform: pulse or sine")
	flag.StringVar(&o.scene.noiseKind, "noise-kind", "gaussian", "noise distribution: gaussian or uniform")
	flag.Float64Var(&o.scene.jitterMS, "jitter-ms", 0, "frame timestamp jitter")
	flag.IntVar(&o.scene.frames, "frames", 900, "frames to render")
	flag.IntVar(&o.scene.width, "width", 160, "frame width")
	flag.IntVar(&o.scene.height, "height", 120, "frame height")
	flag.Int64Var(&o.scene.seed, "seed", 1, "noise seed")
	flag.BoolVar(&o.scene.realtime, "realtime", false, "pace frames at the frame period")
	flag.StringVar(&o.transport, "transport", config.TransportNone, "none, nats or mqtt")
	flag.StringVar(&o.broker, "broker", "", "broker URL (default depends on transport)")
	flag.StringVar(&o.prefix, "prefix", "vpg", "subject/topic prefix")
	flag.IntVar(&o.batch, "batch", 10, "records per published message")
	flag.IntVar(&o.calibrate, "calibrate", 0, "measure the frame period over this many frames first (realtime only)")
	flag.BoolVar(&o.quadrants, "quadrants", false, "also track the four face quadrants")
	flag.BoolVar(&o.prefilter, "prefilter", false, "band-pass samples before centering (local estimation only)")
	flag.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.Parse()

	sampling := core.ApplySamplingOptions(core.WithPeriodMS(o.scene.periodMS), core.WithRate(o.fps))
	o.scene.periodMS = sampling.PeriodMS

	log, err := config.NewLogger(os.Stderr, o.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vpgsim: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("vpgsim failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// track is one sampled region and where its samples go.
type track struct {
	name    string
	rect    image.Rectangle
	ch      *channel.Channel
	pending []stream.Record
}

func run(ctx context.Context, o options, log *slog.Logger) error {
	sc, err := newScene(o.scene)
	if err != nil {
		return err
	}
	defer sc.Stop()
	log.Info("simulating",
		slog.Float64("bpm", o.scene.bpm),
		slog.Float64("rate_hz", core.SamplingConfig{PeriodMS: o.scene.periodMS}.RateHz()),
		slog.Int("frames", o.scene.frames),
		slog.String("wave", o.scene.wave),
	)

	if o.scene.realtime && o.calibrate > 0 {
		period, err := region.MeasureFramePeriod(ctx, sc, o.calibrate)
		if err != nil {
			return err
		}
		log.Info("frame period measured", slog.Duration("period", period))
		sc.next = 0
	}

	sel := region.NewSelection()
	sel.OnChange(func(b region.Button, r image.Rectangle) {
		log.Debug("region selected", slog.Int("button", int(b)), slog.String("rect", r.String()))
	})
	sel.Set(region.ButtonLeft, sc.face)
	sel.Set(region.ButtonRight, sc.Background())
	rects := sel.Rects()

	tracks := []*track{{name: "face", rect: rects[0]}, {name: "background", rect: rects[1]}}
	if o.quadrants {
		for i, q := range region.Quadrants(rects[0]) {
			tracks = append(tracks, &track{name: fmt.Sprintf("face-q%d", i), rect: q})
		}
	}

	var transport stream.Transport
	switch o.transport {
	case config.TransportNone:
		chCfg := channel.DefaultConfig()
		chCfg.Pulse.PeriodMS = o.scene.periodMS
		chCfg.Pulse.Prefilter = o.prefilter
		for _, t := range tracks {
			if t.ch, err = channel.New(chCfg); err != nil {
				return err
			}
		}
	case config.TransportNATS:
		nc, err := stream.Connect(brokerOr(o.broker, "nats://127.0.0.1:4222"), "vpgsim")
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		transport = stream.NewNATS(nc, o.prefix, log)
	case config.TransportMQTT:
		if transport, err = stream.DialMQTT(brokerOr(o.broker, "tcp://127.0.0.1:1883"), "vpgsim", o.prefix, log); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown transport %q", o.transport)
	}
	if transport != nil {
		defer transport.Close()
	}

	base := time.Unix(0, 0)
	samplers := make([]*region.Sampler, len(tracks))
	for i := range samplers {
		samplers[i] = region.NewSampler(region.WithClock(func() time.Time {
			return base.Add(time.Duration(sc.TimeMS() * float64(time.Millisecond)))
		}))
	}
	elapsed := make([]time.Duration, len(tracks))

	for !sc.Done() {
		img, err := sc.Next(ctx)
		if err != nil {
			return err
		}
		for i, t := range tracks {
			s, err := samplers[i].Sample(img, t.rect)
			if err != nil {
				return fmt.Errorf("%s: %w", t.name, err)
			}
			elapsed[i] += s.DT
			ts := float64(elapsed[i]) / float64(time.Millisecond)

			if t.ch != nil {
				if t.ch.Push(s.G, ts) {
					log.Debug("refresh", slog.String("channel", t.name), slog.Float64("rate", t.ch.Rate()))
				}
				continue
			}
			t.pending = append(t.pending, stream.Record{TimeMS: ts, Value: float32(s.G)})
			if len(t.pending) >= o.batch {
				if err := transport.PublishSamples(t.name, t.pending); err != nil {
					return err
				}
				t.pending = t.pending[:0]
			}
		}
	}

	if transport != nil {
		for _, t := range tracks {
			if len(t.pending) > 0 {
				if err := transport.PublishSamples(t.name, t.pending); err != nil {
					return err
				}
			}
		}
		log.Info("samples published", slog.Int("frames", o.scene.frames), slog.Int("channels", len(tracks)))
		return nil
	}

	printTable(os.Stdout, o.scene.bpm, tracks)
	return nil
}

func printTable(w io.Writer, want float64, tracks []*track) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CHANNEL\tRATE\tSPECTRAL\tINTERVALS\tSNR dB\tBEATS\tDISCARDED\tSDNN ms\n")
	for _, t := range tracks {
		m := t.ch.Metrics()
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.1f\t%s\t%d\t%d\t%.1f\n",
			t.name, m.Rate, m.Spectral, m.IntervalBPM, formatSNR(m.Pulse),
			m.Beats, m.Discarded, m.HRV.SDNN)
	}
	fmt.Fprintf(tw, "\nsimulated\t%.1f\n", want)
	tw.Flush()
}

func formatSNR(s pulse.Snapshot) string {
	if !s.Ready || s.SNR <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", s.SNRdB)
}

func brokerOr(url, fallback string) string {
	if url != "" {
		return url
	}
	return fallback
}
