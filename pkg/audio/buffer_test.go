// ABOUTME: Tests for period buffers
// ABOUTME: Covers the float write primitive, sample indexing and sizing
package audio

import (
	"errors"
	"math"
	"testing"
)

func TestNewBufferLength(t *testing.T) {
	for _, frames := range []int{1, 2, 256, 4096} {
		buf := NewBuffer(frames, 2)
		if buf.Len() != frames*2*4 {
			t.Errorf("frames=%d: expected %d bytes, got %d", frames, frames*8, buf.Len())
		}
		if buf.Frames() != frames || buf.Channels() != 2 {
			t.Errorf("frames=%d: unexpected shape %dx%d", frames, buf.Frames(), buf.Channels())
		}
	}
}

func TestWriteFloatLE(t *testing.T) {
	buf := NewBuffer(2, 2)

	if err := buf.WriteFloatLE(0.75, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := buf.ReadFloatLE(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.75 {
		t.Errorf("expected 0.75, got %f", got)
	}

	// Little-endian layout
	bits := math.Float32bits(0.75)
	if buf.Bytes()[4] != byte(bits) || buf.Bytes()[7] != byte(bits>>24) {
		t.Errorf("bytes not little-endian: %v", buf.Bytes()[4:8])
	}

	if buf.Sample(0, 1) != 0.75 {
		t.Errorf("expected frame 0 right channel to be 0.75")
	}
}

func TestWriteFloatLEOutOfRange(t *testing.T) {
	buf := NewBuffer(1, 2)

	if err := buf.WriteFloatLE(1, 5); err == nil {
		t.Error("expected error for straddling offset")
	}
	if err := buf.WriteFloatLE(1, -4); err == nil {
		t.Error("expected error for negative offset")
	}
	if _, err := buf.ReadFloatLE(8); err == nil {
		t.Error("expected error reading past the end")
	}
}

func TestSetSampleAndZero(t *testing.T) {
	buf := NewBuffer(3, 2)
	buf.SetSample(2, 0, -0.5)
	buf.SetSample(2, 1, 0.5)

	if buf.Sample(2, 0) != -0.5 || buf.Sample(2, 1) != 0.5 {
		t.Fatalf("unexpected samples %f %f", buf.Sample(2, 0), buf.Sample(2, 1))
	}

	buf.Zero()
	for i, b := range buf.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}

func TestProviderFunc(t *testing.T) {
	sentinel := errors.New("boom")
	called := false
	p := ProviderFunc(func(buf *Buffer) error {
		called = true
		return sentinel
	})

	if err := p.Process(NewBuffer(1, 1)); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
	if !called {
		t.Error("function was not called")
	}
}
