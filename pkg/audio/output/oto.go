// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays float32 frames pulled by a persistent oto player
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/sinetone/sinetone/pkg/audio"
	"go.uber.org/zap"
)

// oto allows one context per process, so it is shared by every Oto output
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto output implementation using oto library
type Oto struct {
	logger *zap.Logger
	player *oto.Player
	volume int
	muted  bool
	mu     sync.Mutex
}

// NewOto creates a new Oto output
func NewOto(opts Options) Output {
	return &Oto{
		logger: opts.logger().With(zap.String("backend", "oto")),
		volume: 100,
	}
}

// Name identifies the backend
func (o *Oto) Name() string { return "oto" }

// Open initializes the shared oto context and a player reading from src
func (o *Oto) Open(format audio.Format, framesPerBuffer int, src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, err := acquireOtoContext(format, framesPerBuffer)
	if err != nil {
		return err
	}

	if o.player != nil {
		_ = o.player.Close()
	}
	o.player = ctx.NewPlayer(src)
	o.player.SetVolume(getVolumeMultiplier(o.volume, o.muted))

	o.logger.Info("audio output initialized",
		zap.Int("sampleRate", format.SampleRate),
		zap.Int("channels", format.Channels),
		zap.Int("framesPerBuffer", framesPerBuffer))

	return nil
}

// acquireOtoContext returns the process-wide context, creating it on first use
func acquireOtoContext(format audio.Format, framesPerBuffer int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat.SampleRate != format.SampleRate || otoFormat.Channels != format.Channels {
			return nil, fmt.Errorf("oto context already initialized as %s, cannot reopen as %s", otoFormat, format)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   format.PeriodDuration(framesPerBuffer),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	otoCtx = ctx
	otoFormat = format
	return ctx, nil
}

// Start begins playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return ErrNotOpen
	}
	o.player.Play()
	return nil
}

// Stop pauses playback
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	o.player.Pause()
	if err := o.player.Err(); err != nil {
		o.logger.Warn("player stopped with error", zap.Error(err))
	}
	return nil
}

// Close releases the player and suspends the shared context
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.logger.Warn("player close error", zap.Error(err))
		}
		o.player = nil
	}

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.volume = clampVolume(volume)
	if o.player != nil {
		o.player.SetVolume(getVolumeMultiplier(o.volume, o.muted))
	}
	o.logger.Info("volume set", zap.Int("volume", o.volume))
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.muted = muted
	if o.player != nil {
		o.player.SetVolume(getVolumeMultiplier(o.volume, o.muted))
	}
	o.logger.Info("mute set", zap.Bool("muted", muted))
}

// Volume returns current volume
func (o *Oto) Volume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}
