// ABOUTME: Audio context implementation
// ABOUTME: Validates configuration, drives the provider and manages the output lifecycle
package stream

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sinetone/sinetone/pkg/audio"
	"github.com/sinetone/sinetone/pkg/audio/output"
	"go.uber.org/zap"
)

const (
	// DefaultChannels is used when Config.Channels is zero
	DefaultChannels = 2

	// MaxChannels is the largest supported channel count
	MaxChannels = 8

	// MaxBufferSize is the largest supported buffer size in frames
	MaxBufferSize = 1 << 20
)

// Config holds stream configuration
type Config struct {
	// BufferSize is the number of frames per provider call
	BufferSize int

	// SampleRate is the stream rate in Hz
	SampleRate int

	// Channels is the number of interleaved channels (default: 2)
	Channels int

	// Output receives the generated audio
	Output output.Output

	// Provider fills each block; nil plays silence
	Provider audio.Provider

	// Logger receives lifecycle logs (default: no-op)
	Logger *zap.Logger

	// OnError is called once when the provider fails
	OnError func(error)

	// OnRender is called after every successful provider call with its duration
	OnRender func(time.Duration)

	// OnStateChange is called on every lifecycle transition
	OnStateChange func(State)
}

// Stats contains stream statistics
type Stats struct {
	ID         string
	State      State
	Callbacks  uint64
	Frames     uint64
	Late       uint64
	LastRender time.Duration
	Err        error
}

// Context is an open audio output stream driven by a provider
type Context struct {
	id     string
	config Config
	format audio.Format
	period time.Duration
	logger *zap.Logger
	out    output.Output

	// mu serializes reads and guards the block and provider
	mu       sync.Mutex
	provider audio.Provider
	buf      *audio.Buffer
	offset   int
	failure  error

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex
	state     atomic.Int32

	callbacks  atomic.Uint64
	frames     atomic.Uint64
	late       atomic.Uint64
	lastRender atomic.Int64

	errMu sync.Mutex
	err   error
}

// New validates the configuration and creates a context in the Created state
func New(config Config) (*Context, error) {
	if config.Channels == 0 {
		config.Channels = DefaultChannels
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New().String()
	format := audio.NewFormat(config.SampleRate, config.Channels)
	buf := audio.NewBuffer(config.BufferSize, config.Channels)

	c := &Context{
		id:       id,
		config:   config,
		format:   format,
		period:   format.PeriodDuration(config.BufferSize),
		logger:   logger.With(zap.String("stream", id), zap.String("backend", config.Output.Name())),
		out:      config.Output,
		provider: config.Provider,
		buf:      buf,
		offset:   buf.Len(),
	}
	return c, nil
}

func (c Config) validate() error {
	switch {
	case c.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size must be positive, got %d", ErrInvalidConfiguration, c.BufferSize)
	case c.BufferSize > MaxBufferSize:
		return fmt.Errorf("%w: buffer size %d exceeds %d frames", ErrInvalidConfiguration, c.BufferSize, MaxBufferSize)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfiguration, c.SampleRate)
	case c.Channels < 0 || c.Channels > MaxChannels:
		return fmt.Errorf("%w: channels must be between 1 and %d, got %d", ErrInvalidConfiguration, MaxChannels, c.Channels)
	case c.Output == nil:
		return fmt.Errorf("%w: no output", ErrInvalidConfiguration)
	}
	return nil
}

// ID returns the unique stream id
func (c *Context) ID() string { return c.id }

// Format returns the stream format
func (c *Context) Format() audio.Format { return c.format }

// BufferSize returns the number of frames per provider call
func (c *Context) BufferSize() int { return c.config.BufferSize }

// SampleRate returns the stream rate in Hz
func (c *Context) SampleRate() int { return c.format.SampleRate }

// Channels returns the channel count
func (c *Context) Channels() int { return c.format.Channels }

// Period returns the time between provider calls
func (c *Context) Period() time.Duration { return c.period }

// Output returns the output the context drives
func (c *Context) Output() output.Output { return c.out }

// State returns the lifecycle state
func (c *Context) State() State { return State(c.state.Load()) }

// SetProvider replaces the provider; nil plays silence
func (c *Context) SetProvider(p audio.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = p
}

// Provider returns the current provider
func (c *Context) Provider() audio.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

// Err returns the provider failure that stopped the stream, if any
func (c *Context) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Stats returns a snapshot of stream statistics
func (c *Context) Stats() Stats {
	return Stats{
		ID:         c.id,
		State:      c.State(),
		Callbacks:  c.callbacks.Load(),
		Frames:     c.frames.Load(),
		Late:       c.late.Load(),
		LastRender: time.Duration(c.lastRender.Load()),
		Err:        c.Err(),
	}
}

// Start opens the output and begins invoking the provider. Starting a
// started context does nothing.
func (c *Context) Start() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	switch c.State() {
	case StateStarted:
		return nil
	case StateStopped:
		return ErrStopped
	}

	if err := c.out.Open(c.format, c.config.BufferSize, c); err != nil {
		c.closeAfterFailedStart()
		return fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, c.out.Name(), err)
	}

	c.setState(StateStarted)
	if err := c.out.Start(); err != nil {
		c.setState(StateCreated)
		c.closeAfterFailedStart()
		return fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, c.out.Name(), err)
	}

	c.logger.Info("stream started",
		zap.Int("bufferSize", c.config.BufferSize),
		zap.Int("sampleRate", c.format.SampleRate),
		zap.Int("channels", c.format.Channels),
		zap.Duration("period", c.period))
	return nil
}

// closeAfterFailedStart releases whatever a partial Open or Start acquired
func (c *Context) closeAfterFailedStart() {
	if err := c.out.Close(); err != nil {
		c.logger.Warn("output close after failed start", zap.Error(err))
	}
}

// Stop halts the output and releases the device. Stopping twice does nothing.
func (c *Context) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	prev := c.State()
	if prev == StateStopped {
		return nil
	}
	if prev == StateCreated {
		c.setState(StateStopped)
		return nil
	}

	var errs []error
	if err := c.out.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop output: %w", err))
	}
	if err := c.out.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	c.setState(StateStopped)

	stats := c.Stats()
	c.logger.Info("stream stopped",
		zap.Uint64("callbacks", stats.Callbacks),
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("late", stats.Late))

	return errors.Join(errs...)
}

func (c *Context) setState(s State) {
	c.state.Store(int32(s))
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(s)
	}
}

// Read fills p with interleaved float32 frames. Outputs call it from their
// audio goroutine; calls are serialized.
func (c *Context) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failure != nil {
		return 0, c.failure
	}
	if c.State() == StateStopped {
		return 0, ErrStopped
	}

	block := c.buf.Bytes()
	n := 0
	for n < len(p) {
		if c.offset == len(block) {
			if err := c.render(); err != nil {
				// Deliver silence for this request; later reads report the failure
				clear(p[n:])
				c.fail(err)
				return len(p), nil
			}
		}
		copied := copy(p[n:], block[c.offset:])
		n += copied
		c.offset += copied
	}
	return n, nil
}

// render zeroes the block and invokes the provider once (must hold c.mu)
func (c *Context) render() (err error) {
	c.buf.Zero()
	c.offset = 0

	if c.provider == nil {
		return nil
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCallbackFailure, r)
		}
		if err != nil {
			c.buf.Zero()
			return
		}

		elapsed := time.Since(start)
		c.callbacks.Add(1)
		c.frames.Add(uint64(c.buf.Frames()))
		c.lastRender.Store(int64(elapsed))
		if elapsed > c.period {
			c.late.Add(1)
		}
		if c.config.OnRender != nil {
			c.config.OnRender(elapsed)
		}
	}()

	if perr := c.provider.Process(c.buf); perr != nil {
		return fmt.Errorf("%w: %w", ErrCallbackFailure, perr)
	}
	return nil
}

// fail records a provider failure and stops the stream off the audio
// goroutine (must hold c.mu)
func (c *Context) fail(err error) {
	c.failure = err

	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()

	c.logger.Error("provider failed, stopping stream", zap.Error(err))

	go func() {
		if c.config.OnError != nil {
			c.config.OnError(err)
		}
		if stopErr := c.Stop(); stopErr != nil {
			c.logger.Warn("stop after provider failure", zap.Error(stopErr))
		}
	}()
}
