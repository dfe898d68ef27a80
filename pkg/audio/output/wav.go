// ABOUTME: WAV file audio output
// ABOUTME: Renders a fixed amount of audio to a RIFF/WAVE file as fast as possible
package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sinetone/sinetone/pkg/audio"
	"go.uber.org/zap"
)

const (
	waveFormatPCM   = 1
	waveFormatFloat = 3
)

// WAV renders audio offline. It pulls blocks back to back until the
// requested duration has been written or Stop is called, then finalizes the
// header with the number of frames actually written.
type WAV struct {
	logger *zap.Logger
	path   string
	opts   Options

	format  audio.Format
	frames  int
	target  int64
	src     io.Reader
	file    *os.File
	written int64
	err     error

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

// NewWAV creates a wav output
func NewWAV(opts Options) *WAV {
	return &WAV{
		logger:   opts.logger().With(zap.String("backend", "wav"), zap.String("path", opts.Path)),
		path:     opts.Path,
		opts:     opts,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Name identifies the backend
func (w *WAV) Name() string { return "wav" }

// Open creates the destination file
func (w *WAV) Open(format audio.Format, framesPerBuffer int, src io.Reader) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.path == "" {
		return errors.New("wav output requires a file path")
	}
	if w.opts.Duration <= 0 {
		return errors.New("wav output requires a positive duration")
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.path, err)
	}

	w.file = f
	w.format = format
	w.frames = framesPerBuffer
	w.src = src
	w.target = int64(w.opts.Duration.Seconds() * float64(format.SampleRate))
	return nil
}

// Start begins rendering on a new goroutine
func (w *WAV) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrNotOpen
	}
	if w.started {
		return nil
	}
	w.started = true

	w.logger.Info("rendering", zap.Int64("frames", w.target), zap.Bool("pcm16", w.opts.PCM16))
	go w.render()
	return nil
}

// render writes a placeholder header, the audio, then the final header
func (w *WAV) render() {
	defer close(w.done)

	err := w.renderFrames()
	if hdrErr := w.finalize(); err == nil {
		err = hdrErr
	}

	w.mu.Lock()
	w.err = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("render failed", zap.Error(err))
		return
	}
	w.logger.Info("render complete", zap.Int64("frames", w.written))
}

func (w *WAV) renderFrames() error {
	bw := bufio.NewWriter(w.file)
	if err := writeWAVHeader(bw, w.format, 0, w.opts.PCM16); err != nil {
		return err
	}

	frameBytes := w.format.FrameBytes()
	block := make([]byte, w.format.BufferBytes(w.frames))
	var pcm []int16

	for w.written < w.target {
		select {
		case <-w.stopChan:
			return bw.Flush()
		default:
		}

		n := int64(w.frames)
		if remaining := w.target - w.written; remaining < n {
			n = remaining
		}
		chunk := block[:int(n)*frameBytes]
		if _, err := io.ReadFull(w.src, chunk); err != nil {
			bw.Flush()
			return fmt.Errorf("source failed after %d frames: %w", w.written, err)
		}

		if w.opts.PCM16 {
			pcm = audio.FloatBytesToInt16(chunk, pcm)
			if err := binary.Write(bw, binary.LittleEndian, pcm); err != nil {
				return fmt.Errorf("write samples: %w", err)
			}
		} else if _, err := bw.Write(chunk); err != nil {
			return fmt.Errorf("write samples: %w", err)
		}
		w.mu.Lock()
		w.written += n
		w.mu.Unlock()
	}

	return bw.Flush()
}

// finalize rewrites the header with the real data size and closes the file
func (w *WAV) finalize() error {
	defer w.file.Close()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}
	bytesPerSample := audio.BytesPerSample
	if w.opts.PCM16 {
		bytesPerSample = 2
	}
	dataBytes := int(w.written) * w.format.Channels * bytesPerSample
	if err := writeWAVHeader(w.file, w.format, dataBytes, w.opts.PCM16); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Stop ends rendering early and waits for the file to be finalized
func (w *WAV) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	if !started {
		return nil
	}
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.done
	return w.Err()
}

// Close stops rendering; an unstarted file is removed
func (w *WAV) Close() error {
	w.mu.Lock()
	started := w.started
	file := w.file
	w.mu.Unlock()

	if started {
		return w.Stop()
	}
	if file != nil {
		file.Close()
		return os.Remove(w.path)
	}
	return nil
}

// Done is closed once the file has been finalized
func (w *WAV) Done() <-chan struct{} {
	return w.done
}

// Err returns the render error, if any
func (w *WAV) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// FramesWritten returns the number of frames rendered so far
func (w *WAV) FramesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// writeWAVHeader writes a RIFF/WAVE header for float32 or int16 audio.
// Float files carry the extended fmt chunk and a fact chunk.
func writeWAVHeader(wr io.Writer, format audio.Format, dataBytes int, pcm16 bool) error {
	var bytesPerSample, riffSize, fmtChunkSize, waveFormat int
	if pcm16 {
		bytesPerSample = 2
		riffSize = 36 + dataBytes
		fmtChunkSize = 16
		waveFormat = waveFormatPCM
	} else {
		bytesPerSample = audio.BytesPerSample
		riffSize = 50 + dataBytes
		fmtChunkSize = 18
		waveFormat = waveFormatFloat
	}
	channels := format.Channels
	blockAlign := channels * bytesPerSample

	fields := []any{
		[]byte("RIFF"),
		uint32(riffSize),
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(fmtChunkSize),
		uint16(waveFormat),
		uint16(channels),
		uint32(format.SampleRate),
		uint32(format.SampleRate * blockAlign), // avgBytesPerSec
		uint16(blockAlign),
		uint16(8 * bytesPerSample),
	}
	if !pcm16 {
		fields = append(fields,
			uint16(0), // cbSize
			[]byte("fact"),
			uint32(4),
			uint32(dataBytes/blockAlign),
		)
	}
	fields = append(fields, []byte("data"), uint32(dataBytes))

	for _, f := range fields {
		if err := binary.Write(wr, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}
