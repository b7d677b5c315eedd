// ABOUTME: Headless audio output with a manually advanced sample clock
// ABOUTME: Drives the callback from Tick for tests, CI and machines without a sound card
package output

import (
	"sync"
	"time"
)

// Headless is an Output that never touches hardware. Each Tick renders one
// buffer and advances the device clock by its duration.
type Headless struct {
	mu         sync.Mutex
	cb         Callback
	sampleRate int
	latency    time.Duration
	clock      time.Duration
	buf        []int16
	open       bool
	started    bool
	calls      int

	// Last rendered buffer, kept for inspection
	last []int16
}

// NewHeadless creates a headless output
func NewHeadless() *Headless {
	return &Headless{}
}

// SetLatency sets the gap between the callback time and the DAC time
func (h *Headless) SetLatency(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latency = d
}

// Open binds the callback
func (h *Headless) Open(sampleRate int, cb Callback) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.open {
		return ErrAlreadyOpen
	}
	h.cb = cb
	h.sampleRate = sampleRate
	h.open = true
	return nil
}

// Start enables Tick
func (h *Headless) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.open {
		return ErrNotOpen
	}
	h.started = true
	return nil
}

// Stop disables Tick
func (h *Headless) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.open {
		return ErrNotOpen
	}
	h.started = false
	return nil
}

// Close releases the callback
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.open {
		return ErrNotOpen
	}
	h.started = false
	h.open = false
	h.cb = nil
	return nil
}

// Time returns the simulated device clock
func (h *Headless) Time() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock
}

// Tick renders frames through the callback and advances the clock. It returns
// false when the stream is not running.
func (h *Headless) Tick(frames int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || h.cb == nil {
		return false
	}
	if cap(h.buf) < frames*2 {
		h.buf = make([]int16, frames*2)
	}
	out := h.buf[:frames*2]

	h.cb(out, TimeInfo{
		OutputBufferDacTime: h.clock + h.latency,
		CurrentTime:         h.clock,
	})
	h.calls++
	h.last = out
	h.clock += time.Duration(int64(frames) * int64(time.Second) / int64(h.sampleRate))
	return true
}

// Advance moves the clock without rendering
func (h *Headless) Advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock += d
}

// Calls returns how many times the callback ran
func (h *Headless) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// Last returns a copy of the most recently rendered buffer
func (h *Headless) Last() []int16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int16(nil), h.last...)
}
