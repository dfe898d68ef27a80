// ABOUTME: Websocket listener for the sinetone websocket output
// ABOUTME: Connects to /stream and reports level and pitch of the received tone
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sinetone/sinetone/internal/discovery"
	"github.com/sinetone/sinetone/internal/logging"
	"github.com/sinetone/sinetone/pkg/audio/output"
	"go.uber.org/zap"
	"gopkg.in/hraban/opus.v2"
)

const (
	discoveryTimeout = 10 * time.Second
	closeGrace       = 2 * time.Second

	// opusMaxFrames is the longest Opus packet (120ms at 48kHz)
	opusMaxFrames = 5760
)

var (
	serverAddr = flag.String("server", "", "Address of the websocket output (default: discover via mDNS)")
	interval   = flag.Duration("interval", time.Second, "Report interval")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger, closeLog, err := logging.New(logging.Options{Level: *logLevel, Console: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sinetone-listen: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr, path := *serverAddr, output.StreamPath
	if addr == "" {
		findCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		info, err := discovery.Find(findCtx, logger)
		cancel()
		if err != nil {
			logger.Error("discovery failed", zap.Error(err))
			return
		}
		addr = info.Addr()
		if info.Path != "" {
			path = info.Path
		}
	}

	if err := listen(ctx, logger, addr, path, *interval); err != nil {
		logger.Error("listener stopped", zap.Error(err))
		return
	}
	logger.Info("listener stopped")
}

// listen reads the stream at addr until ctx is done or the server closes
func listen(ctx context.Context, logger *zap.Logger, addr, path string, interval time.Duration) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	logger.Info("connecting", zap.String("url", u.String()))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	var start output.StreamStart
	if err := conn.ReadJSON(&start); err != nil {
		return fmt.Errorf("read stream header: %w", err)
	}
	logger.Info("stream started",
		zap.String("stream", start.StreamID),
		zap.String("codec", start.Codec),
		zap.Int("sampleRate", start.SampleRate),
		zap.Int("channels", start.Channels),
		zap.Int("framesPerBuffer", start.FramesPerBuffer))

	a := newAnalyzer(start.SampleRate, start.Channels)
	decode, err := newBlockDecoder(start, a)
	if err != nil {
		return err
	}

	var stopping atomic.Bool
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		stopping.Store(true)
		deadline := time.Now().Add(closeGrace)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.SetReadDeadline(deadline)
	}()

	lastReport := time.Now()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if stopping.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch kind {
		case websocket.BinaryMessage:
			if err := decode(data); err != nil {
				return err
			}
		case websocket.TextMessage:
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err == nil {
				logger.Debug("control message", zap.Any("message", msg))
			}
		}

		if time.Since(lastReport) >= interval {
			r := a.report()
			logger.Info("received",
				zap.Uint64("blocks", r.Blocks),
				zap.Uint64("frames", r.Frames),
				zap.Float64("peak", r.Peak),
				zap.Float64("rms", r.RMS),
				zap.Float64("pitchHz", r.Pitch),
				zap.Bool("channelsMatch", r.ChannelsMatch))
			lastReport = time.Now()
		}
	}
}

// newBlockDecoder returns a function feeding one binary message to a
func newBlockDecoder(start output.StreamStart, a *analyzer) (func([]byte) error, error) {
	switch start.Codec {
	case output.CodecPCM, "":
		return a.add, nil
	case output.CodecOpus:
		dec, err := opus.NewDecoder(start.SampleRate, start.Channels)
		if err != nil {
			return nil, fmt.Errorf("create opus decoder: %w", err)
		}
		pcm := make([]float32, opusMaxFrames*start.Channels)
		return func(packet []byte) error {
			n, err := dec.DecodeFloat32(packet, pcm)
			if err != nil {
				return fmt.Errorf("opus decode: %w", err)
			}
			a.addSamples(pcm[:n*start.Channels])
			return nil
		}, nil
	default:
		return nil, errors.New("unsupported codec " + start.Codec)
	}
}
