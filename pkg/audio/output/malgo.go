// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio's data callback via malgo as the real-time mixing period
package output

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	cb         atomic.Pointer[Callback]
	sampleRate int
	bufferSize time.Duration

	// Owned by the data callback
	scratch []int16
	frames  int64

	origin  atomic.Int64
	running atomic.Bool
}

// NewMalgo creates a new Malgo output. bufferSize sets the device period
// and is reported as output latency.
func NewMalgo(bufferSize time.Duration) *Malgo {
	return &Malgo{
		bufferSize: bufferSize,
	}
}

// Open initializes the playback device with the mixer callback
func (m *Malgo) Open(sampleRate int, cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return ErrAlreadyOpen
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			slog.Debug("malgo", "message", message)
		})
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if m.bufferSize > 0 {
		deviceConfig.PeriodSizeInMilliseconds = uint32(m.bufferSize / time.Millisecond)
	}

	m.sampleRate = sampleRate
	m.scratch = make([]int16, 4096)
	m.cb.Store(&cb)

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.dataCallback,
	})
	if err != nil {
		m.cb.Store(nil)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	m.device = device

	slog.Info("audio output initialized", "backend", BackendMalgo, "sample_rate", sampleRate, "buffer", m.bufferSize)
	return nil
}

// Start starts the device
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	m.origin.Store(int64(time.Since(originBase)))
	m.running.Store(true)
	if err := m.device.Start(); err != nil {
		m.running.Store(false)
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// Stop stops the device; miniaudio waits for the callback to return
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	m.running.Store(false)
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	m.running.Store(false)
	m.device.Uninit()
	m.device = nil
	m.cb.Store(nil)

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			slog.Warn("malgo context uninit error", "error", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// Time returns the time since Start
func (m *Malgo) Time() time.Duration {
	if !m.running.Load() {
		return 0
	}
	return time.Since(originBase) - time.Duration(m.origin.Load())
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput, _ []byte, frameCount uint32) {
	frames := int(frameCount)
	cb := m.cb.Load()
	if !m.running.Load() || cb == nil {
		clear(pOutput)
		return
	}

	if len(m.scratch) < frames*2 {
		m.scratch = make([]int16, frames*2)
	}
	out := m.scratch[:frames*2]

	now := m.Time()
	dac := time.Duration(m.frames*int64(time.Second)/int64(m.sampleRate)) + m.bufferSize
	if dac < now {
		m.frames = int64(now-m.bufferSize) * int64(m.sampleRate) / int64(time.Second)
		dac = now
	}

	(*cb)(out, TimeInfo{OutputBufferDacTime: dac, CurrentTime: now})
	m.frames += int64(frames)

	for i, s := range out {
		binary.LittleEndian.PutUint16(pOutput[i*2:], uint16(s))
	}
}
