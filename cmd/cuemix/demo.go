package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/cuemix/internal/generate"
	"github.com/Resonate-Protocol/cuemix/internal/player"
	"github.com/Resonate-Protocol/cuemix/internal/ui"
	"github.com/Resonate-Protocol/cuemix/internal/version"
	"github.com/Resonate-Protocol/cuemix/pkg/audio"
	"github.com/Resonate-Protocol/cuemix/pkg/mixer"
)

var demoOpts struct {
	bpm        float64
	beats      int
	perBar     int
	noTUI      bool
	stream     bool
	streamFreq float64
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Play a scheduled metronome with a live channel monitor",
	Long: `Play a metronome through the cue scheduler, optionally over a streamed
tone bed, and show channel state in a live monitor.

Keys: 1-9 pause a channel, space pauses everything, t plays a test cue,
d toggles debug details, q quits.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	addDemoFlags(demoCmd)
}

func addDemoFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&demoOpts.bpm, "bpm", 120, "Metronome tempo")
	cmd.Flags().IntVar(&demoOpts.beats, "beats", 0, "Stop after this many beats (0 = until interrupted)")
	cmd.Flags().IntVar(&demoOpts.perBar, "per-bar", 4, "Beats per bar; the first is accented")
	cmd.Flags().BoolVar(&demoOpts.noTUI, "no-tui", false, "Disable the monitor, log warnings instead")
	cmd.Flags().BoolVar(&demoOpts.stream, "stream", false, "Stream a tone bed on streaming channel 1")
	cmd.Flags().Float64Var(&demoOpts.streamFreq, "stream-freq", 110, "Tone bed frequency in Hz")
}

func runDemo(cmd *cobra.Command, args []string) error {
	if demoOpts.bpm <= 0 {
		return fmt.Errorf("invalid tempo %v", demoOpts.bpm)
	}

	// The monitor owns the terminal
	if !demoOpts.noTUI && cfg.Log.File == "" {
		cfg.Log.File = "cuemix.log"
		if err := setupLogger(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("session close failed", "error", err)
		}
	}()

	met, err := newMetronome(demoOpts.bpm, demoOpts.perBar, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}
	ping, err := generate.Tone(generate.Sine, cfg.Audio.SampleRate, 880, 120*time.Millisecond, 0.4)
	if err != nil {
		return err
	}

	sched := player.NewScheduler(s.engine, cfg.Player(), logger, s.metrics)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.drive(ctx) })
	g.Go(func() error { return s.serveMetrics(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error {
		err := met.run(ctx, sched, demoOpts.beats)
		if demoOpts.beats > 0 && demoOpts.noTUI {
			cancel()
		}
		return err
	})

	if demoOpts.stream {
		osc, err := generate.Oscillator(generate.Triangle, cfg.Audio.SampleRate, demoOpts.streamFreq, 0.15)
		if err != nil {
			return err
		}
		st, err := generate.NewStream(s.engine, osc, 0, cfg.Audio.StreamUnit, cfg.Audio.SampleRate, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return st.Run(ctx) })
	}

	var mon *ui.Monitor
	if !demoOpts.noTUI {
		mon = ui.NewMonitor(fmt.Sprintf("%s %s", version.Product, version.Version))
		g.Go(func() error {
			err := mon.Run()
			cancel()
			return err
		})
		g.Go(func() error { return handleControls(ctx, mon, s, ping) })
	}
	g.Go(func() error { return reportStatus(ctx, mon, s, sched) })

	if err := waitErr(g.Wait()); err != nil {
		return err
	}
	stats := sched.Stats()
	logger.Info("demo finished", "played", stats.Played, "dropped", stats.Dropped, "retried", stats.Retried)
	return nil
}

// reportStatus feeds the monitor, or the log when there is none, until ctx ends
func reportStatus(ctx context.Context, mon *ui.Monitor, s *session, sched *player.Scheduler) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if mon != nil {
				mon.Stop()
			}
			return nil
		case <-ticker.C:
		}

		warning := s.engine.TakeWarning()
		if mon == nil {
			if warning != "" {
				logger.Warn(warning)
			}
			continue
		}

		status := s.engine.Snapshot()
		clock := s.clock.GetStats()
		clock.Quality = s.clock.CheckQuality()
		schedStats := sched.Stats()
		mon.Update(ui.StatusMsg{
			Engine:    &status,
			Warning:   warning,
			Clock:     &clock,
			Scheduler: &schedStats,
		})
	}
}

// handleControls applies monitor key actions to the engine
func handleControls(ctx context.Context, mon *ui.Monitor, s *session, ping *audio.Sound) error {
	allPaused := false
	for {
		var msg ui.ControlMsg
		select {
		case <-ctx.Done():
			return nil
		case msg = <-mon.Controls():
		}

		var err error
		switch msg.Action {
		case ui.ActionQuit:
			return nil
		case ui.ActionTogglePauseAll:
			allPaused = !allPaused
			if allPaused {
				err = s.engine.PauseAll()
			} else {
				err = s.engine.ResumeAll()
			}
		case ui.ActionTogglePause:
			st := s.engine.Snapshot()
			if msg.Channel >= len(st.Channels) || st.Channels[msg.Channel].Streaming {
				continue
			}
			if st.Channels[msg.Channel].Paused {
				err = s.engine.Resume(msg.Channel, false)
			} else {
				err = s.engine.Pause(msg.Channel, false)
			}
		case ui.ActionTrigger:
			_, err = s.engine.Play(time.Now(), time.Time{}, mixer.AutoChannel, ping)
		}
		if err != nil {
			logger.Debug("control action failed", "action", msg.Action, "error", err)
		}
	}
}

// metronome schedules clicks one beat ahead of the wall clock
type metronome struct {
	interval time.Duration
	perBar   int
	accent   *audio.Sound
	beat     *audio.Sound
}

func newMetronome(bpm float64, perBar, sampleRate int) (*metronome, error) {
	accent, err := generate.Click(sampleRate, true)
	if err != nil {
		return nil, err
	}
	beat, err := generate.Click(sampleRate, false)
	if err != nil {
		return nil, err
	}
	return &metronome{
		interval: time.Duration(float64(time.Minute) / bpm),
		perBar:   max(perBar, 1),
		accent:   accent,
		beat:     beat,
	}, nil
}

// run schedules beats until ctx ends or, when beats > 0, until the last
// beat has had time to play
func (m *metronome) run(ctx context.Context, sched *player.Scheduler, beats int) error {
	origin := time.Now().Add(250 * time.Millisecond)
	ticker := time.NewTicker(m.interval / 4)
	defer ticker.Stop()

	for next := 0; ; {
		for beats <= 0 || next < beats {
			at := origin.Add(time.Duration(next) * m.interval)
			if time.Until(at) > m.interval {
				break
			}
			snd := m.beat
			if next%m.perBar == 0 {
				snd = m.accent
			}
			sched.Schedule(player.Cue{
				Label:   fmt.Sprintf("beat %d", next+1),
				Sound:   snd,
				At:      at,
				Channel: mixer.AutoChannel,
			})
			next++
		}

		if beats > 0 && next >= beats {
			last := origin.Add(time.Duration(beats) * m.interval)
			if time.Now().After(last) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
