// ABOUTME: Tests for logger construction
// ABOUTME: Verifies file and console sinks and level parsing
package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sinetone.log")
	var console bytes.Buffer

	logger, cleanup, err := New(Options{File: path, Console: true, Stdout: &console})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("stream started")
	logger.Debug("hidden at info level")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "stream started") {
		t.Errorf("log file missing message: %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug message written at info level")
	}
	if !strings.Contains(console.String(), "stream started") {
		t.Errorf("console missing message: %q", console.String())
	}
}

func TestFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	var console bytes.Buffer

	logger, cleanup, err := New(Options{File: path, Stdout: &console, Level: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("debug enabled")
	cleanup()

	if console.Len() != 0 {
		t.Error("console written without Console option")
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "debug enabled") {
		t.Error("debug message missing at debug level")
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNoSinks(t *testing.T) {
	logger, cleanup, err := New(Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("goes nowhere")
	cleanup()
}
