// ABOUTME: Mixer engine state tying the output stream to the channel set
// ABOUTME: Setup, teardown and the producer-side play and pause surface
package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
	"github.com/Resonate-Protocol/cuemix/pkg/audio/output"
	clocksync "github.com/Resonate-Protocol/cuemix/pkg/sync"
)

const (
	// AutoChannel lets Play pick a one-shot channel
	AutoChannel = -1

	// AllChannels targets every channel of a set in Pause and Resume
	AllChannels = -1
)

// Config holds engine setup parameters
type Config struct {
	SampleRate int
	Channels   int
	QueueDepth int
}

// DefaultConfig returns the default engine setup
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Channels:   8,
		QueueDepth: 8,
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Recorder receives play, failure and timing-slip events. Methods are
// called with the engine lock held and must not call back into the engine.
type Recorder interface {
	RecordPlay(ctx context.Context, kind string, channel int)
	RecordFailure(ctx context.Context, kind, reason string)
	RecordSlip(ctx context.Context, frames, sampleRate int)
}

type nopRecorder struct{}

func (nopRecorder) RecordPlay(context.Context, string, int)       {}
func (nopRecorder) RecordFailure(context.Context, string, string) {}
func (nopRecorder) RecordSlip(context.Context, int, int)          {}

// WithMetrics records plays and failures into r
func WithMetrics(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithClock shares a clock correlator with the engine
func WithClock(c *clocksync.Correlator) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine schedules sounds onto an output stream.
//
// Producer methods are safe for concurrent use. The mixing callback never
// takes the engine lock.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	out     output.Output
	set     *ChannelSet
	clock   *clocksync.Correlator
	logger  *slog.Logger
	metrics Recorder

	deviceErr error
	engineErr error

	stopped bool
	closed  bool
}

// New opens and starts out with a fresh channel set. When any step fails
// the partial setup is released and New returns an audio-inert Engine along
// with the error; its LastErrorText reports the cause.
func New(cfg Config, out output.Output, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		out:     out,
		logger:  slog.Default(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = clocksync.NewCorrelator(e.logger)
	}

	if err := e.setup(); err != nil {
		e.logger.Error("mixer setup failed", "error", err)
		return e, err
	}
	return e, nil
}

func (e *Engine) setup() error {
	if e.out == nil {
		e.deviceErr = ErrNoDevice
		return ErrNoDevice
	}

	set, err := NewChannelSet(e.cfg.SampleRate, e.cfg.Channels, e.cfg.QueueDepth)
	if err != nil {
		e.engineErr = err
		return fmt.Errorf("failed to create channel set: %w", err)
	}

	if err := e.out.Open(e.cfg.SampleRate, set.Callback()); err != nil {
		e.deviceErr = err
		return fmt.Errorf("failed to open output stream: %w", err)
	}

	if err := e.out.Start(); err != nil {
		e.deviceErr = err
		if cerr := e.out.Close(); cerr != nil {
			e.logger.Warn("failed to close output after start error", "error", cerr)
		}
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	e.set = set
	e.logger.Info("mixer started",
		"sample_rate", e.cfg.SampleRate,
		"channels", e.cfg.Channels,
		"queue_depth", e.cfg.QueueDepth)
	return nil
}

// Close stops and closes the stream, then releases every queued sound.
// Each step runs only if the previous one succeeded, so a failed Close may
// be retried. Closing an inert or closed engine is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set == nil {
		e.closed = true
		return nil
	}

	if !e.stopped {
		if err := e.out.Stop(); err != nil {
			e.deviceErr = err
			return fmt.Errorf("failed to stop output stream: %w", err)
		}
		e.stopped = true
	}

	if err := e.out.Close(); err != nil {
		e.deviceErr = err
		return fmt.Errorf("failed to close output stream: %w", err)
	}

	released := e.set.Teardown()
	e.set = nil
	e.closed = true
	e.logger.Info("mixer closed", "released", released)
	return nil
}

// Play schedules snd to start at the caller-clock time at, measured against
// the caller's now. A zero at means as soon as possible. channel selects a
// one-shot channel or AutoChannel. It returns the channel used.
//
// A start time already in the past plays as soon as possible and is
// reported by TakeWarning.
func (e *Engine) Play(now, at time.Time, channel int, snd *audio.Sound) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(kindOneShot, snd); err != nil {
		return -1, err
	}

	deviceNow := e.out.Time()
	e.clock.Observe(now, deviceNow)

	start := audio.ASAP
	if !at.IsZero() {
		start = e.clock.ToDevice(at)
		if start < deviceNow {
			lateness := audio.DurationToFrames(start-deviceNow, e.set.sampleRate)
			e.set.recordSlip(lateness)
			e.metrics.RecordSlip(context.Background(), lateness, e.set.sampleRate)
			start = audio.ASAP
		}
	}

	if channel == AutoChannel {
		var err error
		if channel, err = e.set.pick(start); err != nil {
			return -1, e.fail(kindOneShot, err)
		}
	} else if channel < 0 || channel >= e.set.count {
		return -1, e.fail(kindOneShot, fmt.Errorf("%w: %d", ErrInvalidChannel, channel))
	}

	if err := e.set.OneShot(channel).Enqueue(NewTimedSound(snd, start)); err != nil {
		return -1, e.fail(kindOneShot, err)
	}

	e.metrics.RecordPlay(context.Background(), kindOneShot, channel)
	e.logger.Debug("sound queued",
		"sound", snd.ID,
		"channel", channel,
		"frames", snd.Frames(),
		"asap", start == audio.ASAP)
	return channel, nil
}

// PlayNext queues snd behind the buffer playing on streaming channel
// stream. It returns the predicted caller-clock time the new buffer
// finishes, which is when the following buffer should be submitted.
func (e *Engine) PlayNext(now, at time.Time, stream int, snd *audio.Sound) (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(kindStream, snd); err != nil {
		return time.Time{}, err
	}
	if stream < 0 || stream >= e.set.count {
		return time.Time{}, e.fail(kindStream, fmt.Errorf("%w: %d", ErrInvalidChannel, stream))
	}

	q := e.set.Stream(stream)
	if q.Paused() {
		return time.Time{}, e.fail(kindStream, ErrChannelPaused)
	}
	if q.Full() {
		return time.Time{}, e.fail(kindStream, ErrStreamBusy)
	}

	deviceNow := e.out.Time()
	e.clock.Observe(now, deviceNow)

	start := audio.ASAP
	if !at.IsZero() {
		start = e.clock.ToDevice(at)
	}

	doneAt := q.DoneAt() + snd.Duration(e.set.sampleRate)
	if err := q.Enqueue(NewTimedSound(snd, start)); err != nil {
		return time.Time{}, e.fail(kindStream, err)
	}

	e.metrics.RecordPlay(context.Background(), kindStream, stream)
	return e.clock.ToCaller(doneAt), nil
}

// Pause suspends one channel, or the whole set with AllChannels. Queued
// sounds keep their position.
func (e *Engine) Pause(channel int, streaming bool) error {
	return e.setPaused(channel, streaming, true)
}

// Resume continues channels suspended by Pause
func (e *Engine) Resume(channel int, streaming bool) error {
	return e.setPaused(channel, streaming, false)
}

// PauseAll suspends every one-shot and streaming channel
func (e *Engine) PauseAll() error {
	return e.setAllPaused(true)
}

// ResumeAll resumes every channel
func (e *Engine) ResumeAll() error {
	return e.setAllPaused(false)
}

func (e *Engine) setPaused(channel int, streaming, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set == nil {
		return e.inertErr()
	}

	queue := e.set.OneShot
	if streaming {
		queue = e.set.Stream
	}

	if channel == AllChannels {
		for i := range e.set.count {
			queue(i).SetPaused(paused)
		}
		return nil
	}
	if channel < 0 || channel >= e.set.count {
		e.engineErr = fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
		return e.engineErr
	}
	queue(channel).SetPaused(paused)
	return nil
}

func (e *Engine) setAllPaused(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set == nil {
		return e.inertErr()
	}
	for _, q := range e.set.queues {
		q.SetPaused(paused)
	}
	return nil
}

// SampleRate returns the configured sample rate
func (e *Engine) SampleRate() int { return e.cfg.SampleRate }

// Channels returns the number of channels in each set
func (e *Engine) Channels() int { return e.cfg.Channels }

// ready checks that a play request can be attempted. Callers hold e.mu.
func (e *Engine) ready(kind string, snd *audio.Sound) error {
	if e.set == nil {
		return e.fail(kind, e.inertErr())
	}
	if snd == nil || snd.Frames() == 0 {
		return e.fail(kind, audio.ErrEmptySound)
	}
	return nil
}

func (e *Engine) inertErr() error {
	if e.closed {
		return ErrClosed
	}
	return ErrNoDevice
}

// fail records err as the last engine error. Callers hold e.mu.
func (e *Engine) fail(kind string, err error) error {
	e.engineErr = err
	e.metrics.RecordFailure(context.Background(), kind, failureReason(err))
	return err
}

const (
	kindOneShot = "oneshot"
	kindStream  = "stream"
)

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrNoChannels):
		return "no_channels"
	case errors.Is(err, ErrStreamBusy):
		return "stream_busy"
	case errors.Is(err, ErrChannelPaused):
		return "paused"
	case errors.Is(err, ErrInvalidChannel):
		return "invalid_channel"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrNoDevice):
		return "no_device"
	default:
		return "other"
	}
}
