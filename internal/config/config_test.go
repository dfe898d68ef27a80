package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sinetone.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultMatchesDemo(t *testing.T) {
	cfg := Default()
	if cfg.Stream.BufferSize != 4096 || cfg.Stream.SampleRate != 44100 || cfg.Stream.Channels != 2 {
		t.Errorf("unexpected stream defaults %+v", cfg.Stream)
	}
	if cfg.Tone.Frequency != 440 {
		t.Errorf("expected 440Hz, got %v", cfg.Tone.Frequency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestResolveFlagsOnly(t *testing.T) {
	cfg, err := Resolve(newFlagSet(), []string{"-buffer-size", "1024", "-backend", "null", "-no-tui"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stream.BufferSize != 1024 {
		t.Errorf("expected buffer size 1024, got %d", cfg.Stream.BufferSize)
	}
	if cfg.Output.Backend != "null" {
		t.Errorf("expected null backend, got %q", cfg.Output.Backend)
	}
	if cfg.UI.Enabled {
		t.Error("expected -no-tui to disable the UI")
	}
}

func TestResolveFileWithFlagOverride(t *testing.T) {
	path := writeFile(t, `
stream:
  buffer_size: 512
  sample_rate: 48000
tone:
  frequency: 220
output:
  backend: wav
  wav_path: /tmp/out.wav
  duration: 3s
ui:
  enabled: false
`)

	cfg, err := Resolve(newFlagSet(), []string{"-config", path, "-sample-rate", "96000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stream.BufferSize != 512 {
		t.Errorf("expected file buffer size 512, got %d", cfg.Stream.BufferSize)
	}
	if cfg.Stream.SampleRate != 96000 {
		t.Errorf("expected flag override 96000, got %d", cfg.Stream.SampleRate)
	}
	if cfg.Stream.Channels != 2 {
		t.Errorf("expected default channels, got %d", cfg.Stream.Channels)
	}
	if cfg.Tone.Frequency != 220 {
		t.Errorf("expected 220Hz, got %v", cfg.Tone.Frequency)
	}
	if cfg.Output.Duration != 3*time.Second {
		t.Errorf("expected 3s, got %v", cfg.Output.Duration)
	}
	if cfg.UI.Enabled {
		t.Error("expected UI disabled by file")
	}
}

func TestResolveInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"-backend", "jack"}},
		{"zero frequency", []string{"-frequency", "0"}},
		{"wav without path", []string{"-backend", "wav"}},
		{"wav without duration", []string{"-backend", "wav", "-out", "x.wav", "-duration", "0s"}},
		{"missing file", []string{"-config", "/nonexistent/sinetone.yaml"}},
		{"bad flag", []string{"-buffer-size", "many"}},
		{"unknown codec", []string{"-codec", "mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(newFlagSet(), tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Stream.BufferSize = 256
	cfg.Metrics.Addr = ":9100"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Stream.BufferSize != 256 || loaded.Metrics.Addr != ":9100" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, "stream: [not, a, map")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestResolveWebSocketOptions(t *testing.T) {
	cfg, err := Resolve(newFlagSet(), []string{"-backend", "websocket", "-codec", "opus", "-no-mdns"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.Codec != "opus" {
		t.Errorf("expected opus codec, got %q", cfg.Output.Codec)
	}
	if cfg.Output.MDNS {
		t.Error("expected -no-mdns to disable advertisement")
	}

	if !Default().Output.MDNS {
		t.Error("expected mDNS advertisement on by default")
	}
}
