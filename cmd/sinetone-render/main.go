// ABOUTME: Entry point for the offline tone renderer
// ABOUTME: Renders the sine tone to a WAV file through the same stream context
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sinetone/sinetone/internal/logging"
	"github.com/sinetone/sinetone/pkg/audio/output"
	"github.com/sinetone/sinetone/pkg/audio/stream"
	"github.com/sinetone/sinetone/pkg/audio/tone"
	"go.uber.org/zap"
)

const defaultDuration = 10 * time.Second

var (
	outPath    = flag.String("out", "tone.wav", "Destination WAV file")
	duration   = flag.Duration("duration", 0, "Length of audio to render (default 10s)")
	bufferSize = flag.Int("buffer-size", 4096, "Frames per provider call")
	sampleRate = flag.Int("sample-rate", 44100, "Sample rate in Hz")
	channels   = flag.Int("channels", 2, "Number of channels")
	frequency  = flag.Float64("frequency", tone.DefaultFrequency, "Tone frequency in Hz")
	pcm16      = flag.Bool("pcm16", false, "Write 16-bit PCM instead of float32")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger, closeLog, err := logging.New(logging.Options{Level: *logLevel, Console: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sinetone-render: %v\n", err)
		os.Exit(1)
	}

	code := 0
	if err := render(logger); err != nil {
		logger.Error("render failed", zap.Error(err))
		code = 1
	}
	closeLog()
	os.Exit(code)
}

func render(logger *zap.Logger) error {
	length := *duration
	if length == 0 {
		length = defaultDuration
	}

	wav := output.NewWAV(output.Options{
		Logger:   logger,
		Path:     *outPath,
		Duration: length,
		PCM16:    *pcm16,
	})

	ctx, err := stream.New(stream.Config{
		BufferSize: *bufferSize,
		SampleRate: *sampleRate,
		Channels:   *channels,
		Output:     wav,
		Provider:   tone.NewSine(*sampleRate, *frequency),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("rendering",
		zap.String("out", *outPath),
		zap.Duration("duration", length),
		zap.Stringer("format", ctx.Format()),
		zap.Float64("frequency", *frequency))

	if err := ctx.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-wav.Done():
	case sig := <-sigChan:
		logger.Info("interrupted, finalizing file", zap.Stringer("signal", sig))
	}

	if err := ctx.Stop(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("render complete",
		zap.String("out", *outPath),
		zap.Int64("frames", wav.FramesWritten()))
	return nil
}
