// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats and sample conversion helpers
package audio

import (
	"fmt"
	"math"
	"time"
)

const (
	// BytesPerSample is the size of one float32 sample on the wire
	BytesPerSample = 4

	// FloatBitDepth is the bit depth of every stream produced by sinetone
	FloatBitDepth = 32
)

// Format describes audio stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// NewFormat returns a float32 format with the given rate and channel count
func NewFormat(sampleRate, channels int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   FloatBitDepth,
	}
}

// FrameBytes returns the size in bytes of one interleaved frame
func (f Format) FrameBytes() int {
	return f.Channels * BytesPerSample
}

// BufferBytes returns the size in bytes of a buffer holding frames frames
func (f Format) BufferBytes(frames int) int {
	return frames * f.FrameBytes()
}

// PeriodDuration returns the time it takes to play frames frames
func (f Format) PeriodDuration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/f%d", f.SampleRate, f.Channels, f.BitDepth)
}

// FloatToInt16 converts a float32 sample in [-1, 1] to int16, clipping
// anything outside that range
func FloatToInt16(v float32) int16 {
	if v <= -1 {
		return -math.MaxInt16
	}
	if v >= 1 {
		return math.MaxInt16
	}
	return int16(v * math.MaxInt16)
}

// FloatBytesToInt16 converts interleaved float32 little-endian bytes into
// int16 samples, reusing dst when it has enough capacity
func FloatBytesToInt16(src []byte, dst []int16) []int16 {
	n := len(src) / BytesPerSample
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = FloatToInt16(readFloatLE(src, i*BytesPerSample))
	}
	return dst
}

// FloatBytesToFloat32 decodes interleaved float32 little-endian bytes
func FloatBytesToFloat32(src []byte, dst []float32) []float32 {
	n := len(src) / BytesPerSample
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = readFloatLE(src, i*BytesPerSample)
	}
	return dst
}
