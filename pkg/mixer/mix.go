// ABOUTME: Real-time mixing callback
// ABOUTME: Drains channel queues into an interleaved stereo buffer at sample-accurate offsets
package mixer

import (
	"time"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
	"github.com/Resonate-Protocol/cuemix/pkg/audio/output"
)

// Callback adapts Mix to the output backend callback signature
func (s *ChannelSet) Callback() output.Callback {
	return func(out []int16, info output.TimeInfo) {
		s.Mix(out, info.OutputBufferDacTime, info.CurrentTime)
	}
}

// Mix renders one device period into out, which holds len(out)/2
// interleaved stereo frames. bufferStart is the device time the first frame
// reaches the DAC and now is the device time of the call.
//
// Mix runs on the audio thread. It does not allocate, lock or block.
func (s *ChannelSet) Mix(out []int16, bufferStart, now time.Duration) {
	clear(out)
	n := len(out) / 2

	s.lastBufferFrames.Store(int64(n))
	s.lastLatency.Store(int64(bufferStart - now))
	s.buffers.Add(1)

	bufferEnd := bufferStart + audio.FramesToDuration(n, s.sampleRate)

	for _, q := range s.queues {
		if q.Paused() {
			continue
		}
		if q.head() == nil {
			q.doneAt.Store(int64(bufferEnd))
			continue
		}
		s.mixQueue(q, out, n, bufferStart)
	}
}

func (s *ChannelSet) mixQueue(q *Queue, out []int16, n int, bufferStart time.Duration) {
	cursor := 0
	for cursor < n {
		ts := q.head()
		if ts == nil {
			break
		}
		length := ts.sound.Frames()
		pad := cursor

		if ts.offset == 0 {
			if ts.start == audio.ASAP {
				q.doneAt.Store(int64(bufferStart + audio.FramesToDuration(pad+length, s.sampleRate)))
			} else {
				rel := ts.start - bufferStart
				if rel >= audio.FramesToDuration(n+1, s.sampleRate) {
					break
				}
				pad = audio.DurationToFrames(rel, s.sampleRate)
				if pad >= n {
					break
				}
				q.doneAt.Store(int64(ts.start + audio.FramesToDuration(length, s.sampleRate)))
				if pad < cursor {
					// Late: play right after whatever preceded it
					s.recordSlip(pad - cursor)
					pad = cursor
					q.doneAt.Store(int64(bufferStart + audio.FramesToDuration(pad+length, s.sampleRate)))
				}
			}
		}

		count := min(n-pad, length-ts.offset)
		left := ts.sound.Left()[ts.offset : ts.offset+count]
		right := ts.sound.Right()[ts.offset : ts.offset+count]
		frame := out[pad*2 : (pad+count)*2]
		for i := range count {
			frame[i*2] += left[i]
			frame[i*2+1] += right[i]
		}
		ts.offset += count
		cursor = pad + count

		if ts.offset >= length {
			q.pop()
		}
	}
}
