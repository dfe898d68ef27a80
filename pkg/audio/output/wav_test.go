// ABOUTME: Tests for the wav output
// ABOUTME: Verifies header layout, data size and early stop
package output

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sinetone/sinetone/pkg/audio"
)

func renderWAV(t *testing.T, opts Options, frames int) (*WAV, []byte) {
	t.Helper()

	out := NewWAV(opts)
	if err := out.Open(audio.NewFormat(1000, 2), frames, &rampReader{}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := out.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case <-out.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("render did not finish")
	}
	if err := out.Err(); err != nil {
		t.Fatalf("render error: %v", err)
	}

	data, err := os.ReadFile(opts.Path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	return out, data
}

func TestWAVFloat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")

	// 1000Hz for 1s = 1000 frames, rendered in blocks of 256
	out, data := renderWAV(t, Options{Path: path, Duration: time.Second}, 256)

	if out.FramesWritten() != 1000 {
		t.Errorf("expected 1000 frames, got %d", out.FramesWritten())
	}
	if len(data) != 58+1000*8 {
		t.Fatalf("expected %d bytes, got %d", 58+1000*8, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE tags")
	}
	if binary.LittleEndian.Uint32(data[4:8]) != uint32(50+1000*8) {
		t.Errorf("wrong RIFF size %d", binary.LittleEndian.Uint32(data[4:8]))
	}
	if binary.LittleEndian.Uint16(data[20:22]) != waveFormatFloat {
		t.Errorf("expected float format tag")
	}
	if string(data[38:42]) != "fact" || binary.LittleEndian.Uint32(data[46:50]) != 1000 {
		t.Error("wrong fact chunk")
	}
	if string(data[50:54]) != "data" || binary.LittleEndian.Uint32(data[54:58]) != 8000 {
		t.Error("wrong data chunk header")
	}

	// Samples continue the ramp across block boundaries
	last := math.Float32frombits(binary.LittleEndian.Uint32(data[len(data)-4:]))
	if last != 1999 {
		t.Errorf("expected last sample 1999, got %f", last)
	}
}

func TestWAVPCM16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone16.wav")

	_, data := renderWAV(t, Options{Path: path, Duration: 500 * time.Millisecond, PCM16: true}, 128)

	if len(data) != 44+500*4 {
		t.Fatalf("expected %d bytes, got %d", 44+500*4, len(data))
	}
	if binary.LittleEndian.Uint16(data[20:22]) != waveFormatPCM {
		t.Error("expected PCM format tag")
	}
	if binary.LittleEndian.Uint16(data[34:36]) != 16 {
		t.Error("expected 16 bits per sample")
	}
	if binary.LittleEndian.Uint32(data[40:44]) != 2000 {
		t.Errorf("wrong data size %d", binary.LittleEndian.Uint32(data[40:44]))
	}
}

func TestWAVRequiresPathAndDuration(t *testing.T) {
	format := audio.NewFormat(44100, 2)

	if err := NewWAV(Options{Duration: time.Second}).Open(format, 64, &rampReader{}); err == nil {
		t.Error("expected error without path")
	}
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := NewWAV(Options{Path: path}).Open(format, 64, &rampReader{}); err == nil {
		t.Error("expected error without duration")
	}
}

func TestWAVCloseUnstartedRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unused.wav")
	out := NewWAV(Options{Path: path, Duration: time.Second})
	if err := out.Open(audio.NewFormat(44100, 2), 64, &rampReader{}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected unstarted file to be removed")
	}
}
