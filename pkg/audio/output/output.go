// ABOUTME: Audio output interface definition
// ABOUTME: Common callback-driven stream interface for audio playback backends
package output

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotOpen     = errors.New("output stream not open")
	ErrAlreadyOpen = errors.New("output stream already open")
)

// TimeInfo carries device clock timestamps for one callback period
type TimeInfo struct {
	// OutputBufferDacTime is when the first frame of the buffer reaches the DAC
	OutputBufferDacTime time.Duration
	// CurrentTime is the device clock when the callback was invoked
	CurrentTime time.Duration
}

// Callback fills out with interleaved stereo frames. It runs on the audio
// thread and must not block.
type Callback func(out []int16, info TimeInfo)

// Output represents a callback-driven stereo 16-bit output stream
type Output interface {
	// Open prepares the stream at sampleRate and binds the callback
	Open(sampleRate int, cb Callback) error

	// Start begins invoking the callback
	Start() error

	// Stop halts the callback; no invocation happens after Stop returns
	Stop() error

	// Close releases stream resources
	Close() error

	// Time returns the current device clock
	Time() time.Duration
}

// Backend names accepted by New
const (
	BackendOto       = "oto"
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
	BackendHeadless  = "headless"
)

// New creates an output by backend name
func New(backend string, bufferSize time.Duration) (Output, error) {
	switch backend {
	case "", BackendOto:
		return NewOto(bufferSize), nil
	case BackendMalgo:
		return NewMalgo(bufferSize), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	case BackendHeadless:
		return NewHeadless(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %q", backend)
	}
}
