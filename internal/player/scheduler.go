// ABOUTME: Look-ahead cue scheduler
// ABOUTME: Holds future cues in a heap and releases them into the mixer shortly before they are due
package player

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/cuemix/internal/observe"
	"github.com/Resonate-Protocol/cuemix/pkg/audio"
	"github.com/Resonate-Protocol/cuemix/pkg/mixer"
)

// Engine is the part of the mixer the scheduler drives
type Engine interface {
	Play(now, at time.Time, channel int, snd *audio.Sound) (int, error)
	CurrentLatency() time.Duration
}

// Cue is one sound to start at a wall-clock time
type Cue struct {
	ID      uuid.UUID
	Label   string
	Sound   *audio.Sound
	At      time.Time
	Channel int
}

// Config holds scheduler settings
type Config struct {
	// Lookahead is how far ahead of its start a cue is handed to the mixer.
	// The device latency plus one tick is used when that is larger.
	Lookahead time.Duration

	// Tick is the release loop period
	Tick time.Duration

	// MaxLate drops cues that are already this late. Zero plays every cue.
	MaxLate time.Duration
}

// DefaultConfig returns the default scheduler settings
func DefaultConfig() Config {
	return Config{
		Lookahead: 50 * time.Millisecond,
		Tick:      10 * time.Millisecond,
	}
}

// Scheduler releases cues into the mixer inside a look-ahead window
type Scheduler struct {
	engine  Engine
	cfg     Config
	logger  *slog.Logger
	metrics *observe.Metrics

	mu     sync.Mutex
	queue  *CueQueue
	stats  SchedulerStats
	ctx    context.Context
	cancel context.CancelFunc
}

// SchedulerStats tracks scheduler metrics
type SchedulerStats struct {
	Received int64
	Played   int64
	Dropped  int64
	Retried  int64
}

// NewScheduler creates a cue scheduler for engine
func NewScheduler(engine Engine, cfg Config, logger *slog.Logger, metrics *observe.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig().Tick
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		queue:   NewCueQueue(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule adds a cue. Cues without an ID get one.
func (s *Scheduler) Schedule(cue Cue) uuid.UUID {
	if cue.ID == uuid.Nil {
		cue.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Received++
	heap.Push(s.queue, cue)
	return cue.ID
}

// Run releases due cues every tick until Stop is called or ctx ends
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return nil
		case now := <-ticker.C:
			s.processQueue(now)
		}
	}
}

// window returns how far ahead cues are released
func (s *Scheduler) window() time.Duration {
	return max(s.cfg.Lookahead, s.engine.CurrentLatency()+s.cfg.Tick)
}

// processQueue hands every cue due within the window to the engine
func (s *Scheduler) processQueue(now time.Time) {
	window := s.window()

	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for s.queue.Len() > 0 {
		cue := s.queue.Peek()
		delay := cue.At.Sub(now)

		if delay > window {
			// Too early, wait
			break
		}
		if s.cfg.MaxLate > 0 && delay < -s.cfg.MaxLate {
			heap.Pop(s.queue)
			s.stats.Dropped++
			s.logger.Warn("dropped late cue", "cue", cue.Label, "late", -delay)
			continue
		}

		ch, err := s.engine.Play(now, cue.At, cue.Channel, cue.Sound)
		if errors.Is(err, mixer.ErrNoChannels) || errors.Is(err, mixer.ErrQueueFull) {
			// Backpressure: keep the cue and try again next tick
			s.stats.Retried++
			break
		}
		heap.Pop(s.queue)
		if err != nil {
			s.stats.Dropped++
			s.logger.Error("cue rejected", "cue", cue.Label, "error", err)
			continue
		}

		s.stats.Played++
		released++
		s.logger.Debug("cue released", "cue", cue.Label, "channel", ch, "lead", delay)
	}

	s.metrics.RecordRelease(context.Background(), released)
}

// Pending returns the number of cues not yet released
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cancel()
}

// CueQueue is a priority queue of cues ordered by start time
type CueQueue struct {
	items []Cue
}

func NewCueQueue() *CueQueue {
	q := &CueQueue{}
	heap.Init(q)
	return q
}

// Implement heap.Interface
func (q *CueQueue) Len() int { return len(q.items) }

func (q *CueQueue) Less(i, j int) bool {
	return q.items[i].At.Before(q.items[j].At)
}

func (q *CueQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *CueQueue) Push(x any) {
	q.items = append(q.items, x.(Cue))
}

func (q *CueQueue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

func (q *CueQueue) Peek() Cue {
	return q.items[0]
}
