package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/cuemix/internal/generate"
	"github.com/Resonate-Protocol/cuemix/pkg/mixer"
)

var toneOpts struct {
	wave     string
	freq     float64
	duration time.Duration
	gain     float64
	channel  int
	delay    time.Duration
}

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Play a single generated tone",
	Long: `Render a tone in memory and play it once on a one-shot channel.

A positive --delay schedules the tone that far in the future instead of
playing it as soon as possible.`,
	RunE: runTone,
}

func init() {
	rootCmd.AddCommand(toneCmd)

	toneCmd.Flags().StringVar(&toneOpts.wave, "wave", string(generate.Sine),
		"Waveform: sine, square, triangle or sawtooth")
	toneCmd.Flags().Float64Var(&toneOpts.freq, "freq", 440, "Frequency in Hz")
	toneCmd.Flags().DurationVar(&toneOpts.duration, "duration", time.Second, "Tone length")
	toneCmd.Flags().Float64Var(&toneOpts.gain, "gain", 0.5, "Gain between 0 and 1")
	toneCmd.Flags().IntVar(&toneOpts.channel, "channel", mixer.AutoChannel, "One-shot channel (-1 = auto)")
	toneCmd.Flags().DurationVar(&toneOpts.delay, "delay", 0, "Start this long after now")
}

func runTone(cmd *cobra.Command, args []string) error {
	snd, err := generate.Tone(generate.Waveform(toneOpts.wave), cfg.Audio.SampleRate,
		toneOpts.freq, toneOpts.duration, toneOpts.gain)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("session close failed", "error", err)
		}
	}()

	now := time.Now()
	var at time.Time
	if toneOpts.delay > 0 {
		at = now.Add(toneOpts.delay)
	}
	channel, err := s.engine.Play(now, at, toneOpts.channel, snd)
	if err != nil {
		return fmt.Errorf("failed to play tone: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Playing %s frames of %s %vHz on channel %d\n",
		humanize.Comma(int64(snd.Frames())), toneOpts.wave, toneOpts.freq, channel+1)

	wait := toneOpts.delay + toneOpts.duration + 2*cfg.BufferSize()
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.drive(ctx) })
	g.Go(func() error { return s.serveMetrics(ctx) })
	err = g.Wait()

	if w := s.engine.TakeWarning(); w != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), w)
	}
	return waitErr(err)
}

// waitErr drops the context errors that mark a normal end of playback
func waitErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
