package mixer

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// constSound returns a sound whose every frame is (l, r)
func constSound(t *testing.T, frames int, l, r int16) *audio.Sound {
	t.Helper()
	left := make([]int16, frames)
	right := make([]int16, frames)
	for i := range frames {
		left[i] = l
		right[i] = r
	}
	snd, err := audio.NewStereoSound(left, right)
	require.NoError(t, err)
	return snd
}

// rampSound returns a sound whose left sample i is i and right sample is -i
func rampSound(t *testing.T, frames int) *audio.Sound {
	t.Helper()
	left := make([]int16, frames)
	right := make([]int16, frames)
	for i := range frames {
		left[i] = int16(i)
		right[i] = int16(-i)
	}
	snd, err := audio.NewStereoSound(left, right)
	require.NoError(t, err)
	return snd
}

func newTestSet(t *testing.T, sampleRate, channels, depth int) *ChannelSet {
	t.Helper()
	set, err := NewChannelSet(sampleRate, channels, depth)
	require.NoError(t, err)
	return set
}
