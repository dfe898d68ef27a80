//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a PortAudio callback stream
package output

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
	"github.com/sinetone/sinetone/pkg/audio"
	"go.uber.org/zap"
)

// PortAudio output implementation
type PortAudio struct {
	logger      *zap.Logger
	stream      *portaudio.Stream
	src         io.Reader
	scratch     []byte
	initialized bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(opts Options) Output {
	return &PortAudio{
		logger: opts.logger().With(zap.String("backend", "portaudio")),
	}
}

// Name identifies the backend
func (p *PortAudio) Name() string { return "portaudio" }

// Open initializes PortAudio and a default output stream
func (p *PortAudio) Open(format audio.Format, framesPerBuffer int, src io.Reader) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	p.initialized = true

	p.src = src
	p.scratch = make([]byte, format.BufferBytes(framesPerBuffer))

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), framesPerBuffer, p.callback)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	p.logger.Info("audio output initialized",
		zap.Int("sampleRate", format.SampleRate),
		zap.Int("channels", format.Channels),
		zap.Int("framesPerBuffer", framesPerBuffer))
	return nil
}

func (p *PortAudio) callback(out []float32) {
	need := len(out) * audio.BytesPerSample
	if len(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	n, err := io.ReadFull(p.src, p.scratch[:need])
	if err != nil {
		clear(p.scratch[n:need])
	}
	audio.FloatBytesToFloat32(p.scratch[:need], out)
}

// Start starts the stream
func (p *PortAudio) Start() error {
	if p.stream == nil {
		return ErrNotOpen
	}
	return p.stream.Start()
}

// Stop stops the stream
func (p *PortAudio) Stop() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Stop()
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}
