// ABOUTME: Null audio output
// ABOUTME: Pulls and discards audio in real time for headless hosts
package output

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/sinetone/sinetone/pkg/audio"
	"go.uber.org/zap"
)

// Null discards audio while keeping real-time pacing, so providers run at the
// same cadence as on a sound card
type Null struct {
	logger *zap.Logger
	format audio.Format
	frames int
	src    io.Reader
	pacer  *pacer
	blocks atomic.Int64
	mu     sync.Mutex
}

// NewNull creates a null output
func NewNull(opts Options) *Null {
	return &Null{
		logger: opts.logger().With(zap.String("backend", "null")),
	}
}

// Name identifies the backend
func (n *Null) Name() string { return "null" }

// Open records the format and source
func (n *Null) Open(format audio.Format, framesPerBuffer int, src io.Reader) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.format = format
	n.frames = framesPerBuffer
	n.src = src
	return nil
}

// Start launches the pacing clock
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.src == nil {
		return ErrNotOpen
	}
	if n.pacer != nil {
		return nil
	}

	n.pacer = newPacer(n.logger, n.format.PeriodDuration(n.frames), n.format.BufferBytes(n.frames), n.src, n.consume)
	go n.pacer.run()
	return nil
}

func (n *Null) consume([]byte) {
	n.blocks.Add(1)
}

// Stop halts the clock
func (n *Null) Stop() error {
	n.mu.Lock()
	p := n.pacer
	n.pacer = nil
	n.mu.Unlock()

	if p != nil {
		p.stop()
	}
	return nil
}

// Close stops the clock
func (n *Null) Close() error {
	return n.Stop()
}

// Blocks returns how many blocks have been pulled
func (n *Null) Blocks() int64 {
	return n.blocks.Load()
}
