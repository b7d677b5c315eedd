package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var latencyOpts struct {
	samples  int
	interval time.Duration
}

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Measure the output latency of the configured backend",
	Long: `Open the configured backend, let it run, and sample the current sound
latency: the last buffer length plus the gap between callback time and
DAC time. Scheduled sounds are handed over at least this far ahead.`,
	RunE: runLatency,
}

func init() {
	rootCmd.AddCommand(latencyCmd)

	latencyCmd.Flags().IntVar(&latencyOpts.samples, "samples", 10, "Number of measurements")
	latencyCmd.Flags().DurationVar(&latencyOpts.interval, "interval", 100*time.Millisecond,
		"Time between measurements")
}

func runLatency(cmd *cobra.Command, args []string) error {
	if latencyOpts.samples <= 0 {
		return fmt.Errorf("invalid sample count %d", latencyOpts.samples)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("session close failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var lo, hi, sum time.Duration
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.drive(ctx) })
	g.Go(func() error {
		defer cancel()
		ticker := time.NewTicker(latencyOpts.interval)
		defer ticker.Stop()

		for i := 0; i < latencyOpts.samples; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			l := s.engine.CurrentLatency()
			if i == 0 || l < lo {
				lo = l
			}
			hi = max(hi, l)
			sum += l
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	st := s.engine.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:     %s\n", cfg.Audio.Backend)
	fmt.Fprintf(out, "Sample rate: %s Hz\n", humanize.Comma(int64(st.SampleRate)))
	fmt.Fprintf(out, "Buffers:     %s\n", humanize.Comma(int64(st.Buffers)))
	fmt.Fprintf(out, "Latency:     min %v  avg %v  max %v\n",
		lo, sum/time.Duration(latencyOpts.samples), hi)
	if st.Buffers == 0 {
		fmt.Fprintln(out, "No buffers rendered; the device may not be running.")
	}
	return nil
}
