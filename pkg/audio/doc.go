// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Sound, Format and frame/time conversion functions
// Package audio provides the fundamental types shared by the mixer and the
// output backends.
//
// This package defines:
//   - Sound: an immutable planar 16-bit stereo PCM asset
//   - Format: the output stream format (always interleaved stereo int16)
//   - ASAP: the start-time sentinel for "play as soon as possible"
//
// It also provides exact integer conversions between frame counts and
// time.Duration at a given sample rate.
//
// Example:
//
//	snd, err := audio.NewMonoSound(samples)
//	length := snd.Duration(48000)
//	frames := audio.DurationToFrames(5*time.Millisecond, 48000) // 240
package audio
