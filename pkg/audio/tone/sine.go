// ABOUTME: Sine oscillator sample provider
// ABOUTME: Fills each period with the same sine sample on every channel
package tone

import (
	"math"
	"sync/atomic"

	"github.com/sinetone/sinetone/pkg/audio"
)

// DefaultFrequency is the A4 note
const DefaultFrequency = 440.0

// Sine generates a sine wave by dividing a monotonically increasing frame
// counter by a fixed divisor. The counter is never wrapped.
type Sine struct {
	x    atomic.Uint64
	freq float64
}

// NewSine creates a sine provider for the given sample rate and frequency.
// The divisor is sampleRate / (frequency × 2π), so sin(x/divisor) advances
// frequency cycles per second of frames.
func NewSine(sampleRate int, frequency float64) *Sine {
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	return &Sine{
		freq: float64(sampleRate) / (frequency * 2 * math.Pi),
	}
}

// Process writes one sample per frame to every channel and advances the
// counter once per frame
func (s *Sine) Process(buf *audio.Buffer) error {
	frames := buf.Frames()
	channels := buf.Channels()
	x := s.x.Load()

	for i := 0; i < frames; i++ {
		v := float32(math.Sin(float64(x) / s.freq))
		for ch := 0; ch < channels; ch++ {
			buf.SetSample(i, ch, v)
		}
		x++
	}

	s.x.Store(x)
	return nil
}

// Counter returns the number of frames generated so far. It may be read
// from any goroutine while Process runs.
func (s *Sine) Counter() uint64 {
	return s.x.Load()
}

// SetCounter moves the oscillator to frame x
func (s *Sine) SetCounter(x uint64) {
	s.x.Store(x)
}

// Reset rewinds the oscillator to frame zero
func (s *Sine) Reset() {
	s.x.Store(0)
}

// Divisor returns the precomputed sampleRate / (frequency × 2π)
func (s *Sine) Divisor() float64 {
	return s.freq
}
