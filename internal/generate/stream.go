// ABOUTME: Streaming generator feeding a mixer streaming channel
// ABOUTME: Renders fixed-size units and paces submission on the predicted completion time
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
	"github.com/Resonate-Protocol/cuemix/pkg/mixer"
)

// StreamEngine is the part of the mixer a Stream drives
type StreamEngine interface {
	PlayNext(now, at time.Time, stream int, snd *audio.Sound) (time.Time, error)
}

// ringSize covers the unit playing, the unit pending and the unit being
// rendered
const ringSize = mixer.StreamDepth + 1

// Stream renders a beep streamer unit by unit onto one streaming channel
type Stream struct {
	engine     StreamEngine
	src        beep.Streamer
	channel    int
	unit       int
	sampleRate int
	logger     *slog.Logger

	ring    [ringSize][]int16
	next    int
	pending *audio.Sound
	done    bool

	Submitted int
}

// NewStream creates a stream of unit-frame buffers from src
func NewStream(engine StreamEngine, src beep.Streamer, channel, unit, sampleRate int, logger *slog.Logger) (*Stream, error) {
	if unit <= 0 {
		return nil, fmt.Errorf("invalid stream unit %d", unit)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Stream{
		engine:     engine,
		src:        src,
		channel:    channel,
		unit:       unit,
		sampleRate: sampleRate,
		logger:     logger,
	}
	for i := range s.ring {
		s.ring[i] = make([]int16, 2*unit)
	}
	return s, nil
}

// UnitDuration returns the playback length of one unit
func (s *Stream) UnitDuration() time.Duration {
	return audio.FramesToDuration(s.unit, s.sampleRate)
}

// Step submits the next unit. It returns when the following Step should
// run. ok is false once the source is exhausted and its last unit queued.
func (s *Stream) Step(now time.Time) (wake time.Time, ok bool, err error) {
	if s.pending == nil {
		if s.done {
			return time.Time{}, false, nil
		}
		if err := s.render(); err != nil {
			return time.Time{}, false, err
		}
		if s.pending == nil {
			return time.Time{}, false, nil
		}
	}

	finish, err := s.engine.PlayNext(now, time.Time{}, s.channel, s.pending)
	switch {
	case errors.Is(err, mixer.ErrStreamBusy), errors.Is(err, mixer.ErrChannelPaused):
		return now.Add(s.UnitDuration() / 4), true, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("failed to queue stream unit: %w", err)
	}

	s.pending = nil
	s.Submitted++
	if s.done {
		return time.Time{}, false, nil
	}
	// The slot frees when the unit ahead of this one finishes
	return finish.Add(-s.UnitDuration()), true, nil
}

func (s *Stream) render() error {
	planar := s.ring[s.next]
	s.next = (s.next + 1) % ringSize

	frames, err := s.fill(planar)
	if err != nil {
		return err
	}
	if frames < s.unit {
		s.done = true
		if frames == 0 {
			return nil
		}
	}
	snd, err := audio.NewSound(planar, s.unit)
	if err != nil {
		return err
	}
	s.pending = snd
	return nil
}

// fill renders one unit and reports how many frames the source produced
func (s *Stream) fill(planar []int16) (int, error) {
	counted := &countingStreamer{Streamer: s.src}
	if err := RenderInto(counted, planar, s.unit); err != nil {
		return 0, fmt.Errorf("failed to render stream unit: %w", err)
	}
	return counted.frames, nil
}

// Run submits units until the source ends or ctx is cancelled
func (s *Stream) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-timer.C:
			wake, ok, err := s.Step(now)
			if err != nil {
				return err
			}
			if !ok {
				s.logger.Info("stream finished", "channel", s.channel, "units", s.Submitted)
				return nil
			}
			timer.Reset(max(time.Until(wake), 0))
		}
	}
}

type countingStreamer struct {
	beep.Streamer
	frames int
}

func (c *countingStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := c.Streamer.Stream(samples)
	c.frames += n
	return n, ok
}
