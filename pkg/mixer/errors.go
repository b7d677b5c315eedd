// ABOUTME: Mixer error values
// ABOUTME: Backpressure conditions and device state errors returned by the Engine
package mixer

import "errors"

var (
	// ErrQueueFull means the channel's next slot is still occupied
	ErrQueueFull = errors.New("channel queue is full")

	// ErrNoChannels means auto-selection found no usable one-shot channel
	ErrNoChannels = errors.New("All unpaused channels have full buffers.")

	// ErrStreamBusy means a streaming channel already holds a pending buffer
	ErrStreamBusy = errors.New("streaming channel already has a pending buffer")

	// ErrChannelPaused means the target streaming channel is paused
	ErrChannelPaused = errors.New("streaming channel is paused")

	ErrInvalidChannel = errors.New("channel index out of range")
	ErrNoDevice       = errors.New("audio device not available")
	ErrClosed         = errors.New("mixer engine closed")
)
