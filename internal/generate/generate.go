// ABOUTME: In-memory sound generation
// ABOUTME: Renders beep streamers into planar 16-bit Sounds for the mixer
package generate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
)

// Waveform names a periodic tone shape
type Waveform string

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Triangle Waveform = "triangle"
	Sawtooth Waveform = "sawtooth"
)

var ErrUnknownWaveform = errors.New("unknown waveform")

// chunk is how many frames are pulled from a streamer per call
const chunk = 512

// Oscillator returns an endless tone streamer scaled by gain
func Oscillator(w Waveform, sampleRate int, freq, gain float64) (beep.Streamer, error) {
	sr := beep.SampleRate(sampleRate)

	var (
		s   beep.Streamer
		err error
	)
	switch w {
	case Sine, "":
		s, err = generators.SineTone(sr, freq)
	case Square:
		s, err = generators.SquareTone(sr, freq)
	case Triangle:
		s, err = generators.TriangleTone(sr, freq)
	case Sawtooth:
		s, err = generators.SawtoothTone(sr, freq)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWaveform, w)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tone: %w", w, err)
	}
	return &effects.Gain{Streamer: s, Gain: gain - 1}, nil
}

// Noise returns an endless white noise streamer scaled by gain
func Noise(gain float64, seed uint64) beep.Streamer {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i][0] = (r.Float64()*2 - 1) * gain
			samples[i][1] = (r.Float64()*2 - 1) * gain
		}
		return len(samples), true
	})
}

// Tone renders d of a waveform into a Sound
func Tone(w Waveform, sampleRate int, freq float64, d time.Duration, gain float64) (*audio.Sound, error) {
	osc, err := Oscillator(w, sampleRate, freq, gain)
	if err != nil {
		return nil, err
	}
	return Render(osc, audio.DurationToFrames(d, sampleRate))
}

// Click renders a short square burst for metronome ticks
func Click(sampleRate int, accent bool) (*audio.Sound, error) {
	freq, gain := 1000.0, 0.4
	if accent {
		freq, gain = 1600.0, 0.6
	}
	return Tone(Square, sampleRate, freq, 15*time.Millisecond, gain)
}

// Render pulls frames from s into a new planar Sound. A streamer that ends
// early leaves the rest silent.
func Render(s beep.Streamer, frames int) (*audio.Sound, error) {
	if frames <= 0 {
		return nil, audio.ErrEmptySound
	}
	planar := make([]int16, 2*frames)
	if err := RenderInto(s, planar, frames); err != nil {
		return nil, err
	}
	return audio.NewSound(planar, frames)
}

// RenderInto fills planar with frames frames from s. It returns the
// streamer's error, if any.
func RenderInto(s beep.Streamer, planar []int16, frames int) error {
	if len(planar) < 2*frames {
		return fmt.Errorf("%w: need %d samples, got %d", audio.ErrShortBuffer, 2*frames, len(planar))
	}
	clear(planar[:2*frames])

	var buf [chunk][2]float64
	for pos := 0; pos < frames; {
		want := min(chunk, frames-pos)
		n, ok := s.Stream(buf[:want])
		for i := range n {
			planar[pos+i] = toInt16(buf[i][0])
			planar[frames+pos+i] = toInt16(buf[i][1])
		}
		pos += n
		if !ok || n == 0 {
			break
		}
	}
	return s.Err()
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}
