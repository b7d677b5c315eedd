// ABOUTME: Engine diagnostics
// ABOUTME: Timing-slip warnings, error text, latency and per-channel status snapshots
package mixer

import (
	"fmt"
	"time"
)

// ChannelStatus is a producer-side view of one queue
type ChannelStatus struct {
	Index     int
	Streaming bool
	Pending   int
	Capacity  int
	DoneAt    time.Duration
	Paused    bool
}

// Status is a point-in-time view of the engine
type Status struct {
	Running    bool
	SampleRate int
	Latency    time.Duration
	DeviceTime time.Duration
	Buffers    uint64
	Slip       int64
	Channels   []ChannelStatus
	LastError  string
}

// TakeWarning returns a message describing the last late sound and clears
// it. It returns "" when nothing played late since the previous call.
func (e *Engine) TakeWarning() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set == nil {
		return ""
	}
	slip := e.set.takeSlip()
	if slip >= 0 {
		return ""
	}
	ms := float64(-slip) * 1000 / float64(e.set.sampleRate)
	return fmt.Sprintf("A previously played sound occurred %3.2fms after it should have.", ms)
}

// LastErrorText returns the last device error, else the last engine error,
// else ""
func (e *Engine) LastErrorText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErrorText()
}

func (e *Engine) lastErrorText() string {
	switch {
	case e.deviceErr != nil:
		return e.deviceErr.Error()
	case e.engineErr != nil:
		return e.engineErr.Error()
	default:
		return ""
	}
}

// CurrentLatency returns the last buffer duration plus the last measured
// gap between callback time and DAC time. It is zero before the first
// callback or on an inert engine.
func (e *Engine) CurrentLatency() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set == nil {
		return 0
	}
	return e.set.Latency()
}

// Pending returns the number of queued sounds across every channel
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set == nil {
		return 0
	}
	n := 0
	for _, q := range e.set.queues {
		n += q.Pending()
	}
	return n
}

// Snapshot returns the current engine status
func (e *Engine) Snapshot() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		SampleRate: e.cfg.SampleRate,
		LastError:  e.lastErrorText(),
	}
	if e.set == nil {
		return st
	}

	st.Running = true
	st.Latency = e.set.Latency()
	st.DeviceTime = e.out.Time()
	st.Buffers = e.set.Buffers()
	st.Slip = e.set.Slip()
	st.Channels = make([]ChannelStatus, 0, e.set.Len())
	for i, q := range e.set.queues {
		streaming := i >= e.set.count
		idx := i
		if streaming {
			idx -= e.set.count
		}
		st.Channels = append(st.Channels, ChannelStatus{
			Index:     idx,
			Streaming: streaming,
			Pending:   q.Pending(),
			Capacity:  q.Cap(),
			DoneAt:    q.DoneAt(),
			Paused:    q.Paused(),
		})
	}
	return st
}
