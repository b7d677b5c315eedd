package mixer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
)

func setDoneAt(set *ChannelSet, done ...time.Duration) {
	for i, d := range done {
		set.OneShot(i).doneAt.Store(int64(d))
	}
}

func TestPick(t *testing.T) {
	tests := []struct {
		name    string
		doneAt  []time.Duration
		paused  []int
		full    []int
		start   time.Duration
		want    int
		wantErr error
	}{
		{
			name:   "latest done before start",
			doneAt: []time.Duration{10, 20, 30},
			start:  25,
			want:   1,
		},
		{
			name:   "start equal to done counts",
			doneAt: []time.Duration{10, 20, 30},
			start:  30,
			want:   2,
		},
		{
			name:   "asap takes earliest",
			doneAt: []time.Duration{30, 10, 20},
			start:  audio.ASAP,
			want:   1,
		},
		{
			name:   "skips paused",
			doneAt: []time.Duration{10, 20, 30},
			paused: []int{1},
			start:  25,
			want:   0,
		},
		{
			name:   "skips full",
			doneAt: []time.Duration{30, 10, 20},
			full:   []int{1},
			start:  audio.ASAP,
			want:   2,
		},
		{
			name:    "future start before any channel frees",
			doneAt:  []time.Duration{10, 20, 30},
			start:   5,
			wantErr: ErrNoChannels,
		},
		{
			name:    "everything paused",
			doneAt:  []time.Duration{10, 20, 30},
			paused:  []int{0, 1, 2},
			start:   audio.ASAP,
			wantErr: ErrNoChannels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := newTestSet(t, 48000, len(tt.doneAt), 1)
			setDoneAt(set, tt.doneAt...)
			for _, i := range tt.paused {
				set.OneShot(i).SetPaused(true)
			}
			for _, i := range tt.full {
				require.NoError(t, set.OneShot(i).Enqueue(NewTimedSound(constSound(t, 1, 0, 0), audio.ASAP)))
			}

			got, err := set.pick(tt.start)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, -1, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickIgnoresStreamingQueues(t *testing.T) {
	set := newTestSet(t, 48000, 2, 1)
	setDoneAt(set, 50, 60)
	set.Stream(0).doneAt.Store(1)

	got, err := set.pick(audio.ASAP)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
