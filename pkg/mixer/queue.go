// ABOUTME: Single-producer single-consumer channel queue
// ABOUTME: Fixed ring of atomically published TimedSound slots with a done-at estimate
package mixer

import (
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
)

// TimedSound is one scheduled playback of a Sound. After it is published
// into a queue only the mixing callback touches offset.
type TimedSound struct {
	sound  *audio.Sound
	start  time.Duration
	offset int
}

// NewTimedSound schedules snd at start on the device clock, or audio.ASAP
func NewTimedSound(snd *audio.Sound, start time.Duration) *TimedSound {
	return &TimedSound{sound: snd, start: start}
}

// Sound returns the scheduled sound
func (t *TimedSound) Sound() *audio.Sound { return t.sound }

// Start returns the requested device start time
func (t *TimedSound) Start() time.Duration { return t.start }

// Queue is a fixed-capacity ring of TimedSound slots.
//
// A slot is empty when nil. The producer only stores into the slot under
// its cursor, and only when that slot is empty. The consumer only clears the
// slot under its cursor, and only once the sound is fully emitted. Full is
// the producer slot being occupied; empty is the consumer slot being nil.
type Queue struct {
	slots []atomic.Pointer[TimedSound]

	producer int // owned by the producer
	consumer int // owned by the consumer

	paused atomic.Bool
	doneAt atomic.Int64
}

func newQueue(capacity int) *Queue {
	return &Queue{
		slots: make([]atomic.Pointer[TimedSound], capacity),
	}
}

// Enqueue publishes ts into the next producer slot
func (q *Queue) Enqueue(ts *TimedSound) error {
	slot := &q.slots[q.producer]
	if slot.Load() != nil {
		return ErrQueueFull
	}
	slot.Store(ts)
	q.producer = (q.producer + 1) % len(q.slots)
	return nil
}

// Full reports whether the next Enqueue would fail
func (q *Queue) Full() bool {
	return q.slots[q.producer].Load() != nil
}

// Pending counts occupied slots. It is a snapshot and may be stale by the
// time it returns while the callback is running.
func (q *Queue) Pending() int {
	n := 0
	for i := range q.slots {
		if q.slots[i].Load() != nil {
			n++
		}
	}
	return n
}

// Cap returns the queue depth
func (q *Queue) Cap() int { return len(q.slots) }

// DoneAt returns the device time the queued content finishes, or the
// earliest time new content could start on an idle queue
func (q *Queue) DoneAt() time.Duration {
	return time.Duration(q.doneAt.Load())
}

func (q *Queue) Paused() bool { return q.paused.Load() }

func (q *Queue) SetPaused(paused bool) { q.paused.Store(paused) }

// Drain clears every queued sound from the consumer cursor forward and
// returns how many were released. The callback must not be running.
func (q *Queue) Drain() int {
	n := 0
	for range len(q.slots) {
		if q.slots[q.consumer].Swap(nil) == nil {
			break
		}
		n++
		q.consumer = (q.consumer + 1) % len(q.slots)
	}
	return n
}

// head returns the sound under the consumer cursor
func (q *Queue) head() *TimedSound {
	return q.slots[q.consumer].Load()
}

// pop releases the head slot and advances the consumer cursor
func (q *Queue) pop() {
	q.slots[q.consumer].Store(nil)
	q.consumer = (q.consumer + 1) % len(q.slots)
}
