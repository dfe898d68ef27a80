// ABOUTME: Entry point for the sinetone player
// ABOUTME: Plays a sine tone through the configured output until interrupted
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sinetone/sinetone/internal/config"
	"github.com/sinetone/sinetone/internal/discovery"
	"github.com/sinetone/sinetone/internal/logging"
	"github.com/sinetone/sinetone/internal/metrics"
	"github.com/sinetone/sinetone/internal/ui"
	"github.com/sinetone/sinetone/internal/version"
	"github.com/sinetone/sinetone/pkg/audio"
	"github.com/sinetone/sinetone/pkg/audio/output"
	"github.com/sinetone/sinetone/pkg/audio/stream"
	"github.com/sinetone/sinetone/pkg/audio/tone"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sinetone: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("sinetone", flag.ContinueOnError)
	cfg, err := config.Resolve(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	useTUI := cfg.UI.Enabled

	logger, closeLog, err := logging.New(logging.Options{
		File:    cfg.Log.File,
		Level:   cfg.Log.Level,
		Console: !useTUI,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("starting",
		zap.String("version", version.String()),
		zap.String("backend", cfg.Output.Backend))
	if !useTUI {
		logger.Info("TUI disabled - streaming logs")
	}

	out, err := output.New(cfg.Output.Backend, output.Options{
		Logger:   logger,
		Addr:     cfg.Output.WebSocketAddr,
		Codec:    cfg.Output.Codec,
		Path:     cfg.Output.WAVPath,
		Duration: cfg.Output.Duration,
		PCM16:    cfg.Output.PCM16,
	})
	if err != nil {
		return err
	}

	// The TUI event loop runs before anything can send to it
	var tui *tuiSession
	if useTUI {
		tui, err = startTUI(logger)
		if err != nil {
			return err
		}
		defer tui.quit()
	}

	m := metrics.New()
	failed := make(chan error, 1)
	sine := tone.NewSine(cfg.Stream.SampleRate, cfg.Tone.Frequency)

	ctx, err := newStream(cfg, out, sine, logger, m, tui, failed)
	if err != nil {
		return err
	}

	var metricsSrv *metrics.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = metrics.NewServer(m, logger)
		if err := metricsSrv.Start(cfg.Metrics.Addr); err != nil {
			return err
		}
	}

	if err := ctx.Start(); err != nil {
		return err
	}

	if ws, ok := out.(*output.WebSocket); ok && cfg.Output.MDNS {
		if disc := advertise(ws, logger); disc != nil {
			defer disc.Stop()
		}
	}

	format := ctx.Format()
	tui.update(ui.StatusMsg{
		Backend:    out.Name(),
		State:      ctx.State().String(),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BufferSize: ctx.BufferSize(),
		Frequency:  cfg.Tone.Frequency,
	})

	// Start volume control handler if TUI is enabled
	if tui != nil {
		if vc, ok := out.(output.VolumeController); ok {
			go handleVolumeControl(vc, tui.ctrl, logger)
		} else {
			logger.Info("backend has no volume control", zap.String("backend", out.Name()))
		}
	}

	done := make(chan struct{})
	defer close(done)
	go statsUpdateLoop(ctx, sine, done, tui, logger)

	var finished <-chan struct{}
	if w, ok := out.(*output.WAV); ok {
		finished = w.Done()
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan ui.QuitMsg
	var tuiDone <-chan struct{}
	if tui != nil {
		quit = tui.ctrl.Quit
		tuiDone = tui.done
	}

	var streamErr error
	select {
	case <-quit:
		logger.Info("received quit from TUI")
	case <-tuiDone:
		logger.Info("TUI exited")
	case <-sigChan:
		logger.Info("shutdown signal received")
	case streamErr = <-failed:
		logger.Error("stream failed", zap.Error(streamErr))
	case <-finished:
		logger.Info("render finished", zap.String("path", cfg.Output.WAVPath))
	}

	if err := ctx.Stop(); err != nil {
		logger.Error("error stopping stream", zap.Error(err))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}

	stats := ctx.Stats()
	logger.Info("stopped",
		zap.Uint64("callbacks", stats.Callbacks),
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("late", stats.Late))

	return streamErr
}

// tuiSession owns a running bubbletea program and its control channels
type tuiSession struct {
	prog *tea.Program
	ctrl *ui.VolumeControl
	done chan struct{}
}

// startTUI creates the program and starts its event loop
func startTUI(logger *zap.Logger, opts ...tea.ProgramOption) (*tuiSession, error) {
	ctrl := ui.NewVolumeControl()
	prog, err := ui.Run(ctrl, opts...)
	if err != nil {
		return nil, fmt.Errorf("start TUI: %w", err)
	}

	s := &tuiSession{prog: prog, ctrl: ctrl, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if _, err := prog.Run(); err != nil {
			logger.Error("TUI exited", zap.Error(err))
		}
	}()
	return s, nil
}

// update sends msg to the TUI; a nil session ignores it
func (s *tuiSession) update(msg ui.StatusMsg) {
	if s == nil {
		return
	}
	s.prog.Send(msg)
}

// quit stops the program and waits for the terminal to be restored
func (s *tuiSession) quit() {
	if s == nil {
		return
	}
	s.prog.Quit()
	<-s.done
}

// newStream wires the provider, metrics and TUI into a stream context
func newStream(cfg *config.Config, out output.Output, provider audio.Provider, logger *zap.Logger, m *metrics.Metrics, tui *tuiSession, failed chan<- error) (*stream.Context, error) {
	ctx, err := stream.New(stream.Config{
		BufferSize: cfg.Stream.BufferSize,
		SampleRate: cfg.Stream.SampleRate,
		Channels:   cfg.Stream.Channels,
		Output:     out,
		Provider:   provider,
		Logger:     logger,
		OnRender:   m.ObserveRender,
		OnError: func(err error) {
			m.ObserveError(err)
			tui.update(ui.StatusMsg{Err: err.Error()})
			select {
			case failed <- err:
			default:
			}
		},
		OnStateChange: func(s stream.State) {
			tui.update(ui.StatusMsg{State: s.String()})
		},
	})
	if err != nil {
		return nil, err
	}

	if err := m.Attach(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

// advertise announces a websocket stream via mDNS; failures are logged
func advertise(ws *output.WebSocket, logger *zap.Logger) *discovery.Manager {
	addr, ok := ws.Addr().(*net.TCPAddr)
	if !ok {
		return nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	disc := discovery.NewManager(discovery.Config{
		ServiceName: fmt.Sprintf("%s-sinetone", hostname),
		Port:        addr.Port,
		Path:        output.StreamPath,
		Logger:      logger,
	})
	if err := disc.Advertise(); err != nil {
		logger.Warn("mDNS advertisement failed", zap.Error(err))
		disc.Stop()
		return nil
	}
	return disc
}

// handleVolumeControl applies volume changes from the TUI to the output
func handleVolumeControl(vc output.VolumeController, volumeCtrl *ui.VolumeControl, logger *zap.Logger) {
	for vol := range volumeCtrl.Changes {
		logger.Debug("volume change", zap.Int("volume", vol.Volume), zap.Bool("muted", vol.Muted))
		vc.SetVolume(vol.Volume)
		vc.SetMuted(vol.Muted)
	}
}

// statsUpdateLoop periodically pushes stream statistics to the TUI, or to
// the log when running headless
func statsUpdateLoop(ctx *stream.Context, sine *tone.Sine, done <-chan struct{}, tui *tuiSession, logger *zap.Logger) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Runtime stats are more expensive; collect them less often
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc, lastMemSys uint64

	for {
		select {
		case <-done:
			return

		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = m.Alloc
			lastMemSys = m.Sys

			if tui == nil {
				stats := ctx.Stats()
				logger.Info("stream stats",
					zap.Stringer("state", stats.State),
					zap.Uint64("callbacks", stats.Callbacks),
					zap.Uint64("frames", stats.Frames),
					zap.Uint64("late", stats.Late),
					zap.Duration("lastRender", stats.LastRender))
			}

		case <-ticker.C:
			stats := ctx.Stats()
			tui.update(ui.StatusMsg{
				Callbacks:  stats.Callbacks,
				Frames:     stats.Frames,
				Late:       stats.Late,
				Counter:    sine.Counter(),
				LastRender: stats.LastRender,
				Goroutines: lastGoroutines,
				MemAlloc:   lastMemAlloc,
				MemSys:     lastMemSys,
			})
		}
	}
}
