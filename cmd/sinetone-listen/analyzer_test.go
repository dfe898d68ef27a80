// ABOUTME: Tests for the listener's level and pitch analysis
// ABOUTME: Feeds blocks from the sine provider and checks the estimates
package main

import (
	"math"
	"testing"

	"github.com/sinetone/sinetone/pkg/audio"
	"github.com/sinetone/sinetone/pkg/audio/tone"
)

func TestAnalyzerSine(t *testing.T) {
	const rate = 44100
	sine := tone.NewSine(rate, 440)
	buf := audio.NewBuffer(rate/10, 2)
	a := newAnalyzer(rate, 2)

	for i := 0; i < 10; i++ {
		buf.Zero()
		if err := sine.Process(buf); err != nil {
			t.Fatalf("process failed: %v", err)
		}
		if err := a.add(buf.Bytes()); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	r := a.report()
	if r.Blocks != 10 || r.Frames != rate/10*10 {
		t.Errorf("expected 10 blocks of %d frames, got %d/%d", rate/10, r.Blocks, r.Frames)
	}
	if math.Abs(r.Pitch-440) > 2 {
		t.Errorf("expected pitch near 440Hz, got %f", r.Pitch)
	}
	if math.Abs(r.RMS-1/math.Sqrt2) > 0.01 {
		t.Errorf("expected rms near 0.707, got %f", r.RMS)
	}
	if r.Peak < 0.99 || r.Peak > 1 {
		t.Errorf("expected peak near 1, got %f", r.Peak)
	}
	if !r.ChannelsMatch {
		t.Error("expected identical channels")
	}

	// Window resets after a report
	if next := a.report(); next.RMS != 0 || next.Pitch != 0 || next.Frames != r.Frames {
		t.Errorf("unexpected report after reset: %+v", next)
	}
}

func TestAnalyzerChannelMismatch(t *testing.T) {
	buf := audio.NewBuffer(4, 2)
	buf.SetSample(2, 1, 0.5)

	a := newAnalyzer(1000, 2)
	if err := a.add(buf.Bytes()); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if a.report().ChannelsMatch {
		t.Error("expected mismatch to be detected")
	}

	// The next interval only sees matching frames
	if err := a.add(audio.NewBuffer(4, 2).Bytes()); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !a.report().ChannelsMatch {
		t.Error("mismatch carried over into the next interval")
	}
}

func TestAnalyzerPartialFrame(t *testing.T) {
	a := newAnalyzer(1000, 2)
	if err := a.add(make([]byte, 12)); err == nil {
		t.Error("expected error for partial frame")
	}
}
