// ABOUTME: Tests for the listener session against a live websocket output
// ABOUTME: Covers both codecs and a clean shutdown on cancellation
package main

import (
	"context"
	"testing"
	"time"

	"github.com/sinetone/sinetone/pkg/audio/output"
	"github.com/sinetone/sinetone/pkg/audio/stream"
	"github.com/sinetone/sinetone/pkg/audio/tone"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func startToneStream(t *testing.T, codec string) *output.WebSocket {
	t.Helper()

	ws := output.NewWebSocket(output.Options{Addr: "127.0.0.1:0", Codec: codec})
	ctx, err := stream.New(stream.Config{
		BufferSize: 480,
		SampleRate: 48000,
		Output:     ws,
		Provider:   tone.NewSine(48000, 440),
	})
	if err != nil {
		t.Fatalf("stream.New failed: %v", err)
	}
	if err := ctx.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() { ctx.Stop() })
	return ws
}

func TestListenStopsCleanly(t *testing.T) {
	tests := []struct {
		name  string
		codec string
	}{
		{"pcm", output.CodecPCM},
		{"opus", output.CodecOpus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := startToneStream(t, tt.codec)

			core, logs := observer.New(zapcore.DebugLevel)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			result := make(chan error, 1)
			go func() {
				result <- listen(ctx, zap.New(core), ws.Addr().String(), output.StreamPath, 20*time.Millisecond)
			}()

			deadline := time.Now().Add(5 * time.Second)
			for logs.FilterMessage("received").Len() < 2 {
				if time.Now().After(deadline) {
					t.Fatal("no reports before deadline")
				}
				time.Sleep(10 * time.Millisecond)
			}

			cancel()
			select {
			case err := <-result:
				if err != nil {
					t.Errorf("expected clean stop, got %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("listen did not return after cancel")
			}

			last := logs.FilterMessage("received").All()
			fields := last[len(last)-1].ContextMap()
			if frames, _ := fields["frames"].(uint64); frames == 0 {
				t.Errorf("expected frames in report, got %v", fields)
			}
			if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 0 {
				t.Errorf("unexpected error logs: %v", logs.FilterLevelExact(zapcore.ErrorLevel).All())
			}
		})
	}
}

func TestListenDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := listen(ctx, zap.NewNop(), "127.0.0.1:1", output.StreamPath, time.Second); err == nil {
		t.Error("expected dial error")
	}
}
