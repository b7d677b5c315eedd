// ABOUTME: Audio type definitions
// ABOUTME: Defines the immutable PCM Sound asset, stream format and frame/time conversions
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// Output streams are always interleaved stereo 16-bit
	Channels = 2
	BitDepth = 16

	// ASAP marks a sound that should start as soon as its channel allows
	ASAP = time.Duration(math.MinInt64)
)

var (
	ErrEmptySound  = errors.New("sound has no frames")
	ErrShortBuffer = errors.New("sample buffer shorter than frame count")
)

// Format describes the output stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// StereoFormat returns the only format the mixer renders
func StereoFormat(sampleRate int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// Sound is an immutable block of planar 16-bit PCM.
//
// The left channel occupies samples[0:frames] and the right channel
// samples[frames:2*frames]. The caller owns the backing slice and must not
// modify it while the sound is queued.
type Sound struct {
	ID      uuid.UUID
	samples []int16
	frames  int
}

// NewSound wraps a planar sample buffer without copying it
func NewSound(planar []int16, frames int) (*Sound, error) {
	if frames <= 0 {
		return nil, ErrEmptySound
	}
	if len(planar) < 2*frames {
		return nil, fmt.Errorf("%w: need %d samples, got %d", ErrShortBuffer, 2*frames, len(planar))
	}
	return &Sound{
		ID:      uuid.New(),
		samples: planar[:2*frames],
		frames:  frames,
	}, nil
}

// NewStereoSound copies separate left and right channels into a planar Sound.
// The shorter channel is padded with silence.
func NewStereoSound(left, right []int16) (*Sound, error) {
	frames := max(len(left), len(right))
	if frames == 0 {
		return nil, ErrEmptySound
	}
	planar := make([]int16, 2*frames)
	copy(planar, left)
	copy(planar[frames:], right)
	return NewSound(planar, frames)
}

// NewMonoSound duplicates a single channel to both sides
func NewMonoSound(mono []int16) (*Sound, error) {
	return NewStereoSound(mono, mono)
}

// Frames returns the length of the sound in frames
func (s *Sound) Frames() int { return s.frames }

// Left returns the left channel samples
func (s *Sound) Left() []int16 { return s.samples[:s.frames] }

// Right returns the right channel samples
func (s *Sound) Right() []int16 { return s.samples[s.frames:] }

// Duration returns the playback length at the given sample rate
func (s *Sound) Duration(sampleRate int) time.Duration {
	return FramesToDuration(s.frames, sampleRate)
}

// FramesToDuration converts a frame count to time at sampleRate, truncating
// toward zero
func FramesToDuration(frames, sampleRate int) time.Duration {
	rate := int64(sampleRate)
	secs := int64(frames) / rate
	rem := int64(frames) % rate
	return time.Duration(secs)*time.Second + time.Duration(rem*int64(time.Second)/rate)
}

// DurationToFrames converts a time span to whole frames, rounding toward
// negative infinity so that negative spans stay negative. Whole seconds and
// the sub-second remainder are scaled separately so spans of any length stay
// in range.
func DurationToFrames(d time.Duration, sampleRate int) int {
	rate := int64(sampleRate)
	secs := int64(d / time.Second)
	num := int64(d%time.Second) * rate
	q := num / int64(time.Second)
	if num%int64(time.Second) != 0 && num < 0 {
		q--
	}
	return int(secs*rate + q)
}
