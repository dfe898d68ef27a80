// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends and backend lookup
package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sinetone/sinetone/pkg/audio"
	"go.uber.org/zap"
)

var (
	// ErrNotOpen is returned when Start is called before Open
	ErrNotOpen = errors.New("output not opened")

	// ErrUnknownBackend is returned by New for names it does not know
	ErrUnknownBackend = errors.New("unknown output backend")
)

// Output represents an audio output. src yields interleaved float32
// little-endian frames and is only read from the output's own goroutine.
type Output interface {
	// Name identifies the backend
	Name() string

	// Open acquires the device for the given format
	Open(format audio.Format, framesPerBuffer int, src io.Reader) error

	// Start begins pulling from src
	Start() error

	// Stop halts pulling from src. No reads happen after Stop returns.
	Stop() error

	// Close releases output resources
	Close() error
}

// VolumeController is implemented by outputs that can scale their gain
// without touching the generated samples
type VolumeController interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	Volume() int
	IsMuted() bool
}

// Options configures the backends created by New. Fields a backend does not
// use are ignored.
type Options struct {
	Logger *zap.Logger

	// Addr is the listen address of the websocket backend
	Addr string

	// Path is the destination file of the wav backend
	Path string

	// Duration is how much audio the wav backend renders
	Duration time.Duration

	// PCM16 makes the wav backend write 16-bit PCM instead of float32
	PCM16 bool

	// Codec is the websocket payload encoding (default: pcm_f32le)
	Codec string
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

var backends = map[string]func(Options) Output{
	"oto":       NewOto,
	"malgo":     NewMalgo,
	"portaudio": NewPortAudio,
	"null":      func(o Options) Output { return NewNull(o) },
	"websocket": func(o Options) Output { return NewWebSocket(o) },
	"wav":       func(o Options) Output { return NewWAV(o) },
}

// New creates the named backend
func New(name string, opts Options) (Output, error) {
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Names())
	}
	return ctor(opts), nil
}

// Names lists the available backend names
func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clampVolume keeps volume within 0-100
func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
