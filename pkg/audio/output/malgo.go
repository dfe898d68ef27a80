// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a float32 playback device
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/sinetone/sinetone/pkg/audio"
	"go.uber.org/zap"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	logger   *zap.Logger
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	src      io.Reader
	format   audio.Format
	mu       sync.Mutex
}

// NewMalgo creates a new Malgo output
func NewMalgo(opts Options) Output {
	return &Malgo{
		logger: opts.logger().With(zap.String("backend", "malgo")),
	}
}

// Name identifies the backend
func (m *Malgo) Name() string { return "malgo" }

// Open initializes the playback device with the specified format
func (m *Malgo) Open(format audio.Format, framesPerBuffer int, src io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(framesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	m.src = src
	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.device = device
	m.format = format

	m.logger.Info("audio output initialized",
		zap.Int("sampleRate", format.SampleRate),
		zap.Int("channels", format.Channels),
		zap.Int("framesPerBuffer", framesPerBuffer))

	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte) {
	n, err := io.ReadFull(m.src, pOutput)
	if err != nil {
		// Silence whatever the source could not provide
		clear(pOutput[n:])
	}
}

// Start starts the device
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// Stop stops the device; miniaudio waits for the callback to return
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.logger.Warn("malgo context uninit error", zap.Error(err))
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			m.logger.Warn("device stop error", zap.Error(err))
		}
		m.device.Uninit()
		m.device = nil
	}
}
