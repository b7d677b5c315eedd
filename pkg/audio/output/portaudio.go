//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output with real DAC timestamps from PortAudio
package output

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	mu          sync.Mutex
	stream      *portaudio.Stream
	cb          atomic.Pointer[Callback]
	initialized bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open initializes PortAudio and opens the default output stream
func (p *PortAudio) Open(sampleRate int, cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return ErrAlreadyOpen
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	p.initialized = true
	p.cb.Store(&cb)

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), portaudio.FramesPerBufferUnspecified, p.process)
	if err != nil {
		portaudio.Terminate()
		p.initialized = false
		p.cb.Store(nil)
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	slog.Info("audio output initialized", "backend", BackendPortAudio, "sample_rate", sampleRate)
	return nil
}

func (p *PortAudio) process(_, out []int16, timeInfo portaudio.StreamCallbackTimeInfo, _ portaudio.StreamCallbackFlags) {
	cb := p.cb.Load()
	if cb == nil {
		clear(out)
		return
	}
	(*cb)(out, TimeInfo{
		OutputBufferDacTime: timeInfo.OutputBufferDacTime,
		CurrentTime:         timeInfo.CurrentTime,
	})
}

// Start starts the stream
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

// Stop stops the stream after pending buffers play
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	if err := p.stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	p.stream = nil
	p.cb.Store(nil)

	if p.initialized {
		p.initialized = false
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("failed to terminate portaudio: %w", err)
		}
	}
	return nil
}

// Time returns the stream clock
func (p *PortAudio) Time() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return 0
	}
	return p.stream.Time()
}
