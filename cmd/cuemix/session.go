package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/Resonate-Protocol/cuemix/internal/observe"
	"github.com/Resonate-Protocol/cuemix/internal/version"
	"github.com/Resonate-Protocol/cuemix/pkg/audio"
	"github.com/Resonate-Protocol/cuemix/pkg/audio/output"
	"github.com/Resonate-Protocol/cuemix/pkg/mixer"
	clocksync "github.com/Resonate-Protocol/cuemix/pkg/sync"
)

// session is an open engine plus the telemetry wired around it
type session struct {
	engine   *mixer.Engine
	out      output.Output
	clock    *clocksync.Correlator
	provider *observe.Provider
	metrics  *observe.Metrics
	gauges   metric.Registration
}

// openSession opens the configured output and starts the engine
func openSession() (*session, error) {
	s := &session{clock: clocksync.NewCorrelator(logger)}

	if cfg.Metrics.Enabled {
		p, err := observe.InitProvider(observe.ProviderConfig{
			ServiceName:    version.Product,
			ServiceVersion: version.Version,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
		s.provider = p
		if s.metrics, err = p.Metrics(); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to create instruments: %w", err)
		}
	}

	out, err := output.New(cfg.Audio.Backend, cfg.BufferSize())
	if err != nil {
		return nil, errors.Join(err, s.shutdownProvider())
	}
	s.out = out

	engine, err := mixer.New(cfg.Mixer(), out,
		mixer.WithLogger(logger),
		mixer.WithMetrics(s.metrics),
		mixer.WithClock(s.clock))
	if err != nil {
		return nil, errors.Join(err, s.shutdownProvider())
	}
	s.engine = engine

	if s.metrics != nil {
		if s.gauges, err = s.metrics.ObserveSource(engine); err != nil {
			logger.Warn("failed to register engine gauges", "error", err)
		}
	}

	logger.Info("session opened",
		"backend", cfg.Audio.Backend,
		"sample_rate", engine.SampleRate(),
		"channels", engine.Channels())
	return s, nil
}

// drive ticks a headless output in real time until ctx ends. Other
// backends run their own audio thread and drive returns at once.
func (s *session) drive(ctx context.Context) error {
	h, ok := s.out.(*output.Headless)
	if !ok {
		return nil
	}

	period := cfg.BufferSize()
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	frames := audio.DurationToFrames(period, cfg.Audio.SampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !h.Tick(frames) {
				return nil
			}
		}
	}
}

// serveMetrics exposes /metrics until ctx ends
func (s *session) serveMetrics(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.provider.Handler())
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Close unregisters gauges, closes the engine and flushes telemetry
func (s *session) Close() error {
	var errs []error
	if s.gauges != nil {
		errs = append(errs, s.gauges.Unregister())
	}
	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	errs = append(errs, s.shutdownProvider())
	return errors.Join(errs...)
}

func (s *session) shutdownProvider() error {
	if s.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.provider.Shutdown(ctx)
}
