// ABOUTME: One-shot channel allocator
// ABOUTME: Packs timed sounds onto the latest-free channel and ASAP sounds onto the earliest
package mixer

import (
	"time"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
)

// pick selects a one-shot channel for a sound starting at start, skipping
// paused and full queues.
//
// With a defined start it takes the channel that frees up last while still
// in time, leaving earlier-freeing channels for nearer requests. For ASAP
// it takes the channel that frees up first.
func (s *ChannelSet) pick(start time.Duration) (int, error) {
	best := -1
	var bestDone time.Duration

	for i := range s.count {
		q := s.queues[i]
		if q.Paused() || q.Full() {
			continue
		}
		done := q.DoneAt()

		if start != audio.ASAP {
			if done > start {
				continue
			}
			if best < 0 || done > bestDone {
				best, bestDone = i, done
			}
			continue
		}

		if best < 0 || done < bestDone {
			best, bestDone = i, done
		}
	}

	if best < 0 {
		return -1, ErrNoChannels
	}
	return best, nil
}
