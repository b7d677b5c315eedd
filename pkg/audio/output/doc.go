// ABOUTME: Audio output package for callback-driven playback
// ABOUTME: Provides the Output interface with oto, malgo, PortAudio and headless backends
// Package output provides callback-driven stereo audio streams.
//
// Every backend pulls interleaved int16 frames from a Callback on its own
// audio thread and reports device clock timestamps alongside each buffer.
//
// Example:
//
//	out, err := output.New(output.BackendOto, 20*time.Millisecond)
//	err = out.Open(48000, func(buf []int16, info output.TimeInfo) {
//		clear(buf)
//	})
//	err = out.Start()
package output
