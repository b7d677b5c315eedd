package mixer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/cuemix/pkg/audio"
	"github.com/Resonate-Protocol/cuemix/pkg/audio/output"
)

// flakyOutput wraps the headless backend with injectable failures
type flakyOutput struct {
	*output.Headless
	openErr  error
	startErr error
	stopErr  error
	closeErr error
}

func (f *flakyOutput) Open(sampleRate int, cb output.Callback) error {
	if f.openErr != nil {
		return f.openErr
	}
	return f.Headless.Open(sampleRate, cb)
}

func (f *flakyOutput) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	return f.Headless.Start()
}

func (f *flakyOutput) Stop() error {
	if f.stopErr != nil {
		return f.stopErr
	}
	return f.Headless.Stop()
}

func (f *flakyOutput) Close() error {
	if f.closeErr != nil {
		return f.closeErr
	}
	return f.Headless.Close()
}

// eventLog is a Recorder that keeps every event as text
type eventLog struct {
	events []string
}

func (l *eventLog) RecordPlay(_ context.Context, kind string, channel int) {
	l.events = append(l.events, fmt.Sprintf("play %s %d", kind, channel))
}

func (l *eventLog) RecordFailure(_ context.Context, kind, reason string) {
	l.events = append(l.events, fmt.Sprintf("fail %s %s", kind, reason))
}

func (l *eventLog) RecordSlip(_ context.Context, frames, sampleRate int) {
	l.events = append(l.events, fmt.Sprintf("slip %d@%d", frames, sampleRate))
}

func testConfig() Config {
	return Config{SampleRate: 48000, Channels: 2, QueueDepth: 2}
}

func newTestEngine(t *testing.T) (*Engine, *output.Headless) {
	t.Helper()
	h := output.NewHeadless()
	eng, err := New(testConfig(), h, WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, h
}

func TestEnginePlayASAP(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(100, 0)

	ch, err := eng.Play(now, time.Time{}, AutoChannel, constSound(t, 100, 11, 22))
	require.NoError(t, err)
	assert.Equal(t, 0, ch)

	require.True(t, h.Tick(480))
	out := h.Last()
	assert.Equal(t, int16(11), out[0])
	assert.Equal(t, int16(22), out[1])
	assert.Equal(t, int16(11), out[2*99])
	assert.Equal(t, int16(0), out[2*100])
	assert.Equal(t, 0, eng.Pending())
}

func TestEnginePlayScheduled(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(100, 0)

	_, err := eng.Play(now, now.Add(5*time.Millisecond), AutoChannel, constSound(t, 10, 3, 4))
	require.NoError(t, err)

	require.True(t, h.Tick(480))
	out := h.Last()
	assert.Equal(t, int16(0), out[2*239])
	assert.Equal(t, int16(3), out[2*240])
	assert.Equal(t, int16(4), out[2*240+1])
	assert.Empty(t, eng.TakeWarning())
}

func TestEnginePlayTracksDeviceClock(t *testing.T) {
	eng, h := newTestEngine(t)
	h.Advance(time.Second)

	// The caller clock is unrelated to the device clock; only the delta counts
	now := time.Unix(5000, 0)
	_, err := eng.Play(now, now.Add(15*time.Millisecond), AutoChannel, constSound(t, 10, 1, 1))
	require.NoError(t, err)

	require.True(t, h.Tick(480)) // [1.000s, 1.010s)
	assert.Equal(t, make([]int16, 960), h.Last())

	require.True(t, h.Tick(480)) // [1.010s, 1.020s)
	assert.Equal(t, int16(1), h.Last()[2*240])
}

func TestEnginePlayPastStartWarns(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(100, 0)

	_, err := eng.Play(now, now.Add(-time.Millisecond), AutoChannel, constSound(t, 10, 8, 8))
	require.NoError(t, err)

	require.True(t, h.Tick(480))
	assert.Equal(t, int16(8), h.Last()[0])

	assert.Equal(t, "A previously played sound occurred 1.00ms after it should have.", eng.TakeWarning())
	assert.Empty(t, eng.TakeWarning())
}

func TestEnginePlayFarPastStart(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(1_000_000, 0)

	_, err := eng.Play(now, now.Add(-60*time.Hour), AutoChannel, constSound(t, 10, 8, 8))
	require.NoError(t, err)

	require.True(t, h.Tick(480))
	assert.Equal(t, int16(8), h.Last()[0])
	assert.Equal(t, 0, eng.Pending())
	assert.Equal(t, "A previously played sound occurred 216000000.00ms after it should have.", eng.TakeWarning())
}

func TestEnginePlayNextFarPastStart(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(1_000_000, 0)

	_, err := eng.PlayNext(now, now.Add(-60*time.Hour), 0, constSound(t, 480, 4, 4))
	require.NoError(t, err)

	require.True(t, h.Tick(480))
	assert.Equal(t, int16(4), h.Last()[0])
	assert.Equal(t, 0, eng.set.Stream(0).Pending())
	assert.Equal(t, "A previously played sound occurred 216000000.00ms after it should have.", eng.TakeWarning())

	// The channel keeps accepting buffers
	for range 3 {
		_, err = eng.PlayNext(now, time.Time{}, 0, constSound(t, 480, 5, 5))
		require.NoError(t, err)
		require.True(t, h.Tick(480))
		assert.Equal(t, int16(5), h.Last()[0])
	}
}

func TestEngineRecordsEvents(t *testing.T) {
	log := &eventLog{}
	eng, err := New(testConfig(), output.NewHeadless(), WithLogger(discardLogger()), WithMetrics(log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	now := time.Unix(100, 0)
	_, err = eng.Play(now, now.Add(-time.Millisecond), AutoChannel, constSound(t, 10, 1, 1))
	require.NoError(t, err)
	_, err = eng.PlayNext(now, time.Time{}, 1, constSound(t, 10, 1, 1))
	require.NoError(t, err)
	_, err = eng.PlayNext(now, time.Time{}, 9, constSound(t, 10, 1, 1))
	require.Error(t, err)

	assert.Equal(t, []string{
		"slip -48@48000",
		"play oneshot 0",
		"play stream 1",
		"fail stream invalid_channel",
	}, log.events)
}

func TestEngineWithoutRecorder(t *testing.T) {
	eng, _ := newTestEngine(t)
	assert.NotPanics(t, func() {
		_, _ = eng.Play(time.Unix(1, 0), time.Time{}, 5, constSound(t, 10, 1, 1))
	})

	eng2, err := New(testConfig(), output.NewHeadless(), WithLogger(discardLogger()), WithMetrics(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng2.Close() })
	assert.NotPanics(t, func() {
		_, _ = eng2.Play(time.Unix(1, 0), time.Time{}, 5, constSound(t, 10, 1, 1))
	})
}

func TestEnginePlayExplicitChannel(t *testing.T) {
	eng, _ := newTestEngine(t)
	now := time.Unix(100, 0)
	snd := constSound(t, 10, 1, 1)

	for range 2 {
		ch, err := eng.Play(now, time.Time{}, 1, snd)
		require.NoError(t, err)
		assert.Equal(t, 1, ch)
	}

	_, err := eng.Play(now, time.Time{}, 1, snd)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, ErrQueueFull.Error(), eng.LastErrorText())

	_, err = eng.Play(now, time.Time{}, 2, snd)
	assert.ErrorIs(t, err, ErrInvalidChannel)

	_, err = eng.Play(now, time.Time{}, AutoChannel, nil)
	assert.ErrorIs(t, err, audio.ErrEmptySound)
}

func TestEnginePlayNoChannels(t *testing.T) {
	eng, _ := newTestEngine(t)
	now := time.Unix(100, 0)
	snd := constSound(t, 10, 1, 1)

	// Two channels of depth two
	for range 4 {
		_, err := eng.Play(now, time.Time{}, AutoChannel, snd)
		require.NoError(t, err)
	}

	ch, err := eng.Play(now, time.Time{}, AutoChannel, snd)
	assert.ErrorIs(t, err, ErrNoChannels)
	assert.Equal(t, -1, ch)
	assert.Equal(t, "All unpaused channels have full buffers.", eng.LastErrorText())
	assert.Equal(t, 4, eng.Pending())
}

func TestEnginePlayNext(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(100, 0)

	_, err := eng.PlayNext(now, time.Time{}, 0, constSound(t, 960, 1, 1))
	require.NoError(t, err)

	// Half of the first buffer plays; it now finishes at 20ms device time
	require.True(t, h.Tick(480))

	now = now.Add(10 * time.Millisecond)
	done, err := eng.PlayNext(now, time.Time{}, 0, constSound(t, 480, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(100, 0).Add(30*time.Millisecond), done)

	require.True(t, h.Tick(480))
	require.True(t, h.Tick(480))
	assert.Equal(t, int16(2), h.Last()[0])
}

func TestEnginePlayNextBusy(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(100, 0)

	_, err := eng.PlayNext(now, time.Time{}, 1, constSound(t, 480, 1, 1))
	require.NoError(t, err)
	_, err = eng.PlayNext(now, time.Time{}, 1, constSound(t, 480, 2, 2))
	require.NoError(t, err)

	q := eng.set.Stream(1)
	before := q.Pending()
	doneBefore := q.DoneAt()

	done, err := eng.PlayNext(now, time.Time{}, 1, constSound(t, 480, 3, 3))
	assert.ErrorIs(t, err, ErrStreamBusy)
	assert.True(t, done.IsZero())
	assert.Equal(t, before, q.Pending())
	assert.Equal(t, doneBefore, q.DoneAt())

	// The queued buffers still play in order
	require.True(t, h.Tick(480))
	assert.Equal(t, int16(1), h.Last()[0])
	require.True(t, h.Tick(480))
	assert.Equal(t, int16(2), h.Last()[0])

	// Room again once the first one finished
	_, err = eng.PlayNext(now, time.Time{}, 1, constSound(t, 480, 3, 3))
	assert.NoError(t, err)
}

func TestEnginePlayNextPaused(t *testing.T) {
	eng, _ := newTestEngine(t)
	now := time.Unix(100, 0)

	require.NoError(t, eng.Pause(0, true))
	_, err := eng.PlayNext(now, time.Time{}, 0, constSound(t, 10, 1, 1))
	assert.ErrorIs(t, err, ErrChannelPaused)

	_, err = eng.PlayNext(now, time.Time{}, 5, constSound(t, 10, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestEnginePauseResume(t *testing.T) {
	eng, h := newTestEngine(t)
	now := time.Unix(100, 0)

	_, err := eng.Play(now, time.Time{}, 0, rampSound(t, 1000))
	require.NoError(t, err)
	require.True(t, h.Tick(100))

	require.NoError(t, eng.Pause(0, false))
	require.True(t, h.Tick(100))
	assert.Equal(t, make([]int16, 200), h.Last())

	require.NoError(t, eng.Resume(0, false))
	require.True(t, h.Tick(100))
	assert.Equal(t, int16(100), h.Last()[0])

	assert.ErrorIs(t, eng.Pause(7, false), ErrInvalidChannel)
}

func TestEnginePauseSets(t *testing.T) {
	eng, _ := newTestEngine(t)

	require.NoError(t, eng.Pause(AllChannels, true))
	st := eng.Snapshot()
	for _, ch := range st.Channels {
		assert.Equal(t, ch.Streaming, ch.Paused, "channel %d streaming=%v", ch.Index, ch.Streaming)
	}

	require.NoError(t, eng.PauseAll())
	for _, ch := range eng.Snapshot().Channels {
		assert.True(t, ch.Paused)
	}

	require.NoError(t, eng.ResumeAll())
	for _, ch := range eng.Snapshot().Channels {
		assert.False(t, ch.Paused)
	}
}

func TestEngineCloseReleasesQueued(t *testing.T) {
	h := output.NewHeadless()
	eng, err := New(testConfig(), h, WithLogger(discardLogger()))
	require.NoError(t, err)

	now := time.Unix(100, 0)
	for range 3 {
		_, err := eng.Play(now, now.Add(time.Hour), AutoChannel, constSound(t, 10, 1, 1))
		require.NoError(t, err)
	}
	_, err = eng.PlayNext(now, time.Time{}, 0, constSound(t, 10, 1, 1))
	require.NoError(t, err)

	set := eng.set
	require.True(t, h.Tick(480))
	calls := h.Calls()

	require.NoError(t, eng.Close())
	for i := range set.Len() {
		assert.Equal(t, 0, set.queues[i].Pending(), "queue %d", i)
	}

	assert.False(t, h.Tick(480))
	assert.Equal(t, calls, h.Calls())
	assert.Equal(t, calls, int(set.Buffers()))

	// Idempotent, and the engine refuses work afterwards
	require.NoError(t, eng.Close())
	_, err = eng.Play(now, time.Time{}, AutoChannel, constSound(t, 10, 1, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngineCloseGatedOnStop(t *testing.T) {
	f := &flakyOutput{Headless: output.NewHeadless()}
	eng, err := New(testConfig(), f, WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = eng.Play(time.Unix(1, 0), time.Time{}, AutoChannel, constSound(t, 10, 1, 1))
	require.NoError(t, err)

	f.stopErr = errors.New("stream stuck")
	err = eng.Close()
	require.Error(t, err)
	assert.Equal(t, "stream stuck", eng.LastErrorText())
	assert.Equal(t, 1, eng.Pending(), "queues must survive a failed stop")

	f.stopErr = nil
	require.NoError(t, eng.Close())
	assert.Equal(t, 0, eng.Pending())
}

func TestEngineSetupFailureIsInert(t *testing.T) {
	tests := []struct {
		name string
		out  *flakyOutput
		want string
	}{
		{"open", &flakyOutput{Headless: output.NewHeadless(), openErr: errors.New("no such device")}, "no such device"},
		{"start", &flakyOutput{Headless: output.NewHeadless(), startErr: errors.New("device busy")}, "device busy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := New(testConfig(), tt.out, WithLogger(discardLogger()))
			require.Error(t, err)
			require.NotNil(t, eng)

			assert.Equal(t, tt.want, eng.LastErrorText())
			_, err = eng.Play(time.Now(), time.Time{}, AutoChannel, constSound(t, 10, 1, 1))
			assert.ErrorIs(t, err, ErrNoDevice)
			assert.Equal(t, tt.want, eng.LastErrorText(), "device error takes priority")

			assert.Empty(t, eng.TakeWarning())
			assert.Zero(t, eng.CurrentLatency())
			assert.False(t, eng.Snapshot().Running)
			assert.NoError(t, eng.Close())
		})
	}
}

func TestEngineNilOutput(t *testing.T) {
	eng, err := New(testConfig(), nil, WithLogger(discardLogger()))
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Equal(t, ErrNoDevice.Error(), eng.LastErrorText())
}

func TestEngineInvalidConfig(t *testing.T) {
	eng, err := New(Config{SampleRate: 48000}, output.NewHeadless(), WithLogger(discardLogger()))
	require.Error(t, err)
	assert.Contains(t, eng.LastErrorText(), "invalid channel count")
}

func TestEngineCurrentLatency(t *testing.T) {
	h := output.NewHeadless()
	h.SetLatency(10 * time.Millisecond)
	eng, err := New(testConfig(), h, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer eng.Close()

	assert.Zero(t, eng.CurrentLatency())
	require.True(t, h.Tick(480))
	assert.Equal(t, 20*time.Millisecond, eng.CurrentLatency())
}

func TestEngineSnapshot(t *testing.T) {
	eng, h := newTestEngine(t)
	_, err := eng.Play(time.Unix(1, 0), time.Time{}, 1, constSound(t, 1000, 1, 1))
	require.NoError(t, err)
	require.True(t, h.Tick(480))

	st := eng.Snapshot()
	assert.True(t, st.Running)
	assert.Equal(t, 48000, st.SampleRate)
	assert.Equal(t, uint64(1), st.Buffers)
	require.Len(t, st.Channels, 4)

	assert.Equal(t, 1, st.Channels[1].Pending)
	assert.Equal(t, 2, st.Channels[1].Capacity)
	assert.False(t, st.Channels[1].Streaming)
	assert.True(t, st.Channels[2].Streaming)
	assert.Equal(t, 0, st.Channels[2].Index)
	assert.Equal(t, StreamDepth, st.Channels[3].Capacity)
}
