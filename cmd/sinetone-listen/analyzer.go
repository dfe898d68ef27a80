// ABOUTME: Level and pitch estimation for received float32 blocks
// ABOUTME: Pitch is estimated from rising zero crossings on the first channel
package main

import (
	"fmt"
	"math"

	"github.com/sinetone/sinetone/pkg/audio"
)

type report struct {
	Blocks        uint64
	Frames        uint64
	Peak          float64
	RMS           float64
	Pitch         float64
	ChannelsMatch bool
}

// analyzer accumulates statistics between reports
type analyzer struct {
	sampleRate int
	channels   int
	samples    []float32

	blocks   uint64
	frames   uint64
	window   uint64
	peak     float64
	sumSq    float64
	crossing uint64
	prev     float32
	mismatch bool
}

func newAnalyzer(sampleRate, channels int) *analyzer {
	return &analyzer{sampleRate: sampleRate, channels: max(channels, 1)}
}

func (a *analyzer) add(block []byte) error {
	frameBytes := a.channels * audio.BytesPerSample
	if len(block)%frameBytes != 0 {
		return fmt.Errorf("block of %d bytes is not a whole number of %d-byte frames", len(block), frameBytes)
	}

	a.samples = audio.FloatBytesToFloat32(block, a.samples)
	a.addSamples(a.samples)
	return nil
}

// addSamples accumulates interleaved samples; a trailing partial frame is ignored
func (a *analyzer) addSamples(samples []float32) {
	frames := len(samples) / a.channels

	for i := 0; i < frames; i++ {
		v := samples[i*a.channels]
		for ch := 1; ch < a.channels; ch++ {
			if samples[i*a.channels+ch] != v {
				a.mismatch = true
			}
		}

		f := float64(v)
		a.peak = math.Max(a.peak, math.Abs(f))
		a.sumSq += f * f
		if a.prev < 0 && v >= 0 {
			a.crossing++
		}
		a.prev = v
	}

	a.blocks++
	a.frames += uint64(frames)
	a.window += uint64(frames)
}

// report returns statistics for the frames since the previous report
func (a *analyzer) report() report {
	r := report{
		Blocks:        a.blocks,
		Frames:        a.frames,
		Peak:          a.peak,
		ChannelsMatch: !a.mismatch,
	}
	if a.window > 0 {
		r.RMS = math.Sqrt(a.sumSq / float64(a.window))
		if a.sampleRate > 0 {
			r.Pitch = float64(a.crossing) * float64(a.sampleRate) / float64(a.window)
		}
	}

	a.window = 0
	a.peak = 0
	a.sumSq = 0
	a.crossing = 0
	a.mismatch = false
	return r
}
