//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
	"io"

	"github.com/sinetone/sinetone/pkg/audio"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(opts Options) Output {
	return &PortAudio{}
}

// Name identifies the backend
func (p *PortAudio) Name() string { return "portaudio" }

// Open reports that PortAudio is not compiled in
func (p *PortAudio) Open(format audio.Format, framesPerBuffer int, src io.Reader) error {
	return errPortAudioDisabled
}

// Start reports that PortAudio is not compiled in
func (p *PortAudio) Start() error { return errPortAudioDisabled }

// Stop is a no-op
func (p *PortAudio) Stop() error { return nil }

// Close is a no-op
func (p *PortAudio) Close() error { return nil }
