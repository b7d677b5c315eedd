// ABOUTME: Channel set holding one-shot and streaming queues
// ABOUTME: Owns the shared sample rate and the diagnostics written by the mixing callback
package mixer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
)

// StreamDepth is the fixed depth of every streaming queue: the buffer
// playing plus one pending behind it
const StreamDepth = 2

// ChannelSet is the ordered collection of 2N queues. Queues [0,N) are
// one-shot channels and [N,2N) are streaming channels.
type ChannelSet struct {
	queues     []*Queue
	count      int
	sampleRate int

	// Written by Mix and read by the producer
	slip             atomic.Int64 // signed frames, negative when late
	lastBufferFrames atomic.Int64
	lastLatency      atomic.Int64
	buffers          atomic.Uint64
}

// NewChannelSet allocates channelCount one-shot queues of queueDepth and
// channelCount streaming queues of StreamDepth
func NewChannelSet(sampleRate, channelCount, queueDepth int) (*ChannelSet, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channelCount <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channelCount)
	}
	if queueDepth <= 0 {
		return nil, fmt.Errorf("invalid queue depth %d", queueDepth)
	}

	s := &ChannelSet{
		queues:     make([]*Queue, 0, 2*channelCount),
		count:      channelCount,
		sampleRate: sampleRate,
	}
	for range channelCount {
		s.queues = append(s.queues, newQueue(queueDepth))
	}
	for range channelCount {
		s.queues = append(s.queues, newQueue(StreamDepth))
	}
	return s, nil
}

// Teardown drains every queue and returns the number of sounds released
func (s *ChannelSet) Teardown() int {
	n := 0
	for _, q := range s.queues {
		n += q.Drain()
	}
	return n
}

// OneShot returns one-shot queue i
func (s *ChannelSet) OneShot(i int) *Queue { return s.queues[i] }

// Stream returns streaming queue i
func (s *ChannelSet) Stream(i int) *Queue { return s.queues[s.count+i] }

// Len returns the total number of queues
func (s *ChannelSet) Len() int { return len(s.queues) }

// Count returns the number of channels in each set
func (s *ChannelSet) Count() int { return s.count }

// SampleRate returns the shared sample rate
func (s *ChannelSet) SampleRate() int { return s.sampleRate }

// Slip returns the last recorded scheduling slip in frames
func (s *ChannelSet) Slip() int64 { return s.slip.Load() }

// Buffers returns how many times Mix has run
func (s *ChannelSet) Buffers() uint64 { return s.buffers.Load() }

// Latency returns the last measured device latency plus the duration of the
// last buffer
func (s *ChannelSet) Latency() time.Duration {
	frames := int(s.lastBufferFrames.Load())
	return audio.FramesToDuration(frames, s.sampleRate) + time.Duration(s.lastLatency.Load())
}

func (s *ChannelSet) recordSlip(frames int) {
	s.slip.Store(int64(frames))
}

// takeSlip returns and clears the slip accumulator
func (s *ChannelSet) takeSlip() int64 {
	return s.slip.Swap(0)
}
