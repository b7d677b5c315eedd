//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
	"time"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open always fails without the portaudio build tag
func (p *PortAudio) Open(sampleRate int, cb Callback) error {
	return errPortAudioDisabled
}

func (p *PortAudio) Start() error { return errPortAudioDisabled }

func (p *PortAudio) Stop() error { return errPortAudioDisabled }

func (p *PortAudio) Close() error { return errPortAudioDisabled }

func (p *PortAudio) Time() time.Duration { return 0 }
