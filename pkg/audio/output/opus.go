// ABOUTME: Opus packetizer for the websocket output
// ABOUTME: Regroups arbitrary float32 blocks into 20ms Opus packets
package output

import (
	"fmt"
	"slices"

	"github.com/sinetone/sinetone/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	// CodecPCM sends raw interleaved float32 little-endian blocks
	CodecPCM = "pcm_f32le"

	// CodecOpus sends one 20ms Opus packet per binary message
	CodecOpus = "opus"

	opusFrameMs   = 20
	opusMaxPacket = 4000
)

// opusSampleRates are the rates libopus accepts
var opusSampleRates = []int{8000, 12000, 16000, 24000, 48000}

// Codecs lists the websocket codecs
func Codecs() []string {
	return []string{CodecPCM, CodecOpus}
}

// OpusFrameSize returns the frames per Opus packet at sampleRate
func OpusFrameSize(sampleRate int) int {
	return sampleRate * opusFrameMs / 1000
}

// opusPacketizer buffers samples until a whole Opus frame is available
type opusPacketizer struct {
	encoder   *opus.Encoder
	channels  int
	frameSize int

	pending []float32
	scratch []float32
	packet  []byte
}

func newOpusPacketizer(format audio.Format) (*opusPacketizer, error) {
	if !slices.Contains(opusSampleRates, format.SampleRate) {
		return nil, fmt.Errorf("opus does not support %d Hz (supported: %v)", format.SampleRate, opusSampleRates)
	}
	if format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("opus supports 1 or 2 channels, got %d", format.Channels)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if err := encoder.SetBitrate(64000 * format.Channels); err != nil {
		return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
	}

	frameSize := OpusFrameSize(format.SampleRate)
	return &opusPacketizer{
		encoder:   encoder,
		channels:  format.Channels,
		frameSize: frameSize,
		pending:   make([]float32, 0, frameSize*format.Channels*2),
		packet:    make([]byte, opusMaxPacket),
	}, nil
}

// write appends one block and calls emit for every complete packet. The
// packet passed to emit is only valid during the call.
func (p *opusPacketizer) write(block []byte, emit func(packet []byte)) error {
	p.scratch = audio.FloatBytesToFloat32(block, p.scratch)
	p.pending = append(p.pending, p.scratch...)

	samples := p.frameSize * p.channels
	consumed := 0
	for len(p.pending)-consumed >= samples {
		n, err := p.encoder.EncodeFloat32(p.pending[consumed:consumed+samples], p.packet)
		if err != nil {
			return fmt.Errorf("opus encode failed: %w", err)
		}
		emit(p.packet[:n])
		consumed += samples
	}

	remaining := copy(p.pending, p.pending[consumed:])
	p.pending = p.pending[:remaining]
	return nil
}
