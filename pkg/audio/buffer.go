// ABOUTME: Period buffer handed to providers
// ABOUTME: Fixed-size interleaved float32 little-endian frame storage
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer holds one period of interleaved float32 little-endian frames.
// Its length is always frames × channels × BytesPerSample.
type Buffer struct {
	data     []byte
	frames   int
	channels int
}

// NewBuffer allocates a zeroed buffer for frames frames of channels channels
func NewBuffer(frames, channels int) *Buffer {
	return &Buffer{
		data:     make([]byte, frames*channels*BytesPerSample),
		frames:   frames,
		channels: channels,
	}
}

// Frames returns the number of frames in the buffer
func (b *Buffer) Frames() int { return b.frames }

// Channels returns the number of interleaved channels
func (b *Buffer) Channels() int { return b.channels }

// Len returns the buffer length in bytes
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the backing byte slice. Callers must not keep it after
// Process returns.
func (b *Buffer) Bytes() []byte { return b.data }

// Zero silences the buffer
func (b *Buffer) Zero() {
	clear(b.data)
}

// WriteFloatLE writes v as a little-endian float32 at byte offset
func (b *Buffer) WriteFloatLE(v float32, offset int) error {
	if offset < 0 || offset+BytesPerSample > len(b.data) {
		return fmt.Errorf("offset %d out of range for %d byte buffer", offset, len(b.data))
	}
	binary.LittleEndian.PutUint32(b.data[offset:], math.Float32bits(v))
	return nil
}

// ReadFloatLE reads the little-endian float32 at byte offset
func (b *Buffer) ReadFloatLE(offset int) (float32, error) {
	if offset < 0 || offset+BytesPerSample > len(b.data) {
		return 0, fmt.Errorf("offset %d out of range for %d byte buffer", offset, len(b.data))
	}
	return readFloatLE(b.data, offset), nil
}

// SetSample writes v to the given channel of the given frame. Indexes are
// not bounds checked beyond the slice itself.
func (b *Buffer) SetSample(frame, channel int, v float32) {
	offset := (frame*b.channels + channel) * BytesPerSample
	binary.LittleEndian.PutUint32(b.data[offset:], math.Float32bits(v))
}

// Sample returns the value at the given frame and channel
func (b *Buffer) Sample(frame, channel int) float32 {
	return readFloatLE(b.data, (frame*b.channels+channel)*BytesPerSample)
}

func readFloatLE(data []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
}
