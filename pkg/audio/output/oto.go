// ABOUTME: Oto-based audio output implementation
// ABOUTME: Pulls mixed frames through an io.Reader that oto drains on its audio goroutine
package output

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto only allows one context per process
var (
	otoMu         sync.Mutex
	otoCtx        *oto.Context
	otoSampleRate int
)

func sharedOtoContext(sampleRate int, bufferSize time.Duration) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoSampleRate != sampleRate {
			return nil, fmt.Errorf("oto context already running at %dHz, cannot reopen at %dHz", otoSampleRate, sampleRate)
		}
		slog.Debug("audio output already initialized with same format, reusing context")
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoSampleRate = sampleRate
	return ctx, nil
}

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	cb         atomic.Pointer[Callback]
	sampleRate int
	bufferSize time.Duration

	// Audio goroutine state, owned by Read
	scratch []int16
	frames  int64

	origin  atomic.Int64 // monotonic nanoseconds at Start
	running atomic.Bool
}

var originBase = time.Now()

// NewOto creates a new Oto output. bufferSize is the device buffer length
// and doubles as the reported output latency.
func NewOto(bufferSize time.Duration) *Oto {
	return &Oto{
		bufferSize: bufferSize,
	}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate int, cb Callback) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return ErrAlreadyOpen
	}

	ctx, err := sharedOtoContext(sampleRate, o.bufferSize)
	if err != nil {
		return err
	}

	o.otoCtx = ctx
	o.cb.Store(&cb)
	o.sampleRate = sampleRate
	// 4096 bytes = 1024 stereo frames, the usual oto request size
	o.scratch = make([]int16, 2048)
	o.player = ctx.NewPlayer(o)
	if o.bufferSize > 0 {
		o.player.SetBufferSize(int(int64(o.bufferSize) * int64(sampleRate) / int64(time.Second) * 4))
	}

	slog.Info("audio output initialized", "backend", BackendOto, "sample_rate", sampleRate, "buffer", o.bufferSize)
	return nil
}

// Start begins playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return ErrNotOpen
	}
	o.origin.Store(int64(time.Since(originBase)))
	o.running.Store(true)
	o.player.Play()
	return nil
}

// Stop pauses playback
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return ErrNotOpen
	}
	o.running.Store(false)
	o.player.Pause()
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return ErrNotOpen
	}
	o.running.Store(false)
	err := o.player.Close()
	o.player = nil
	o.cb.Store(nil)
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}

// Time returns the time since Start
func (o *Oto) Time() time.Duration {
	if !o.running.Load() {
		return 0
	}
	return time.Since(originBase) - time.Duration(o.origin.Load())
}

// Read is called by oto on its audio goroutine
func (o *Oto) Read(p []byte) (int, error) {
	frames := len(p) / 4
	cb := o.cb.Load()
	if !o.running.Load() || cb == nil {
		clear(p)
		return len(p), nil
	}

	// Should rarely happen after the first few reads
	if len(o.scratch) < frames*2 {
		o.scratch = make([]int16, frames*2)
	}
	out := o.scratch[:frames*2]

	now := o.Time()
	dac := time.Duration(o.frames*int64(time.Second)/int64(o.sampleRate)) + o.bufferSize
	if dac < now {
		// Underrun: the sample clock fell behind the wall clock
		o.frames = int64(now-o.bufferSize) * int64(o.sampleRate) / int64(time.Second)
		dac = now
	}

	(*cb)(out, TimeInfo{OutputBufferDacTime: dac, CurrentTime: now})
	o.frames += int64(frames)

	for i, s := range out {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	return frames * 4, nil
}
