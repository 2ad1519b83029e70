// Command vpgd estimates pulse rates from streamed region intensities.
//
// Usage:
//
//	vpgd [flags]
//
// Samples arrive as 12-byte records on <prefix>.samples.<channel> (NATS) or
// <prefix>/samples/<channel> (MQTT). A JSON report is published on the
// matching metrics subject after every rate refresh and served over HTTP.
//
// Examples:
//
//	vpgd -transport nats -broker nats://127.0.0.1:4222
//	vpgd -transport mqtt -channels face -type heart-rate
//	VPG_LOG_LEVEL=debug vpgd -transport none -http :9090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/algo-vpg/internal/api"
	"github.com/cwbudde/algo-vpg/internal/config"
	"github.com/cwbudde/algo-vpg/internal/service"
	"github.com/cwbudde/algo-vpg/internal/stream"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vpgd: %v\n", err)
		os.Exit(2)
	}

	log, err := config.NewLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vpgd: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("vpgd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	transport, err := dial(cfg, log)
	if err != nil {
		return err
	}

	opts := []service.Option{service.WithLogger(log)}
	if transport != nil {
		opts = append(opts, service.WithPublisher(transport))
		defer func() {
			if err := transport.Close(); err != nil {
				log.Warn("transport close", slog.Any("error", err))
			}
		}()
	}

	mgr, err := service.NewManager(cfg.Channel, opts...)
	if err != nil {
		return err
	}
	for _, name := range cfg.Channels {
		if _, err := mgr.Open(name); err != nil {
			return err
		}
	}

	if transport != nil {
		if err := transport.SubscribeSamples(mgr.Handler()); err != nil {
			return err
		}
	}

	log.Info("vpgd running",
		slog.String("transport", cfg.Transport),
		slog.String("broker", cfg.BrokerURL),
		slog.String("http", cfg.HTTPAddr),
		slog.String("type", cfg.Channel.Pulse.Type.String()),
		slog.Float64("period_ms", cfg.Channel.Pulse.PeriodMS),
	)

	if cfg.HTTPAddr == "" {
		<-ctx.Done()
		return nil
	}
	return serve(ctx, cfg, api.New(mgr, log).Routes(), log)
}

func dial(cfg config.Config, log *slog.Logger) (stream.Transport, error) {
	switch cfg.Transport {
	case config.TransportNATS:
		nc, err := stream.Connect(cfg.BrokerURL, cfg.ClientID)
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		return stream.NewNATS(nc, cfg.Prefix, log), nil
	case config.TransportMQTT:
		m, err := stream.DialMQTT(cfg.BrokerURL, cfg.ClientID, cfg.Prefix, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, nil
	}
}

func serve(ctx context.Context, cfg config.Config, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: h}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
