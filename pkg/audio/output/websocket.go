// ABOUTME: WebSocket audio output
// ABOUTME: Broadcasts each generated block to listeners connected on /stream
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sinetone/sinetone/pkg/audio"
	"go.uber.org/zap"
)

const (
	// DefaultWebSocketAddr is used when Options.Addr is empty
	DefaultWebSocketAddr = ":8928"

	// StreamPath is where listeners connect
	StreamPath = "/stream"

	listenerQueue = 16
	writeDeadline = 10 * time.Second
)

// StreamStart is sent as a text message before any audio
type StreamStart struct {
	Type            string `json:"type"`
	StreamID        string `json:"stream_id"`
	Codec           string `json:"codec"`
	SampleRate      int    `json:"sample_rate"`
	Channels        int    `json:"channels"`
	BitDepth        int    `json:"bit_depth"`
	FramesPerBuffer int    `json:"frames_per_buffer"`

	// FrameSize is the frames per Opus packet; zero for pcm_f32le
	FrameSize int `json:"frame_size,omitempty"`
}

type wsMessage struct {
	kind int
	data []byte
}

// listener is one connected websocket client
type listener struct {
	ID       string
	conn     *websocket.Conn
	sendChan chan wsMessage
}

// WebSocket streams float32 blocks, raw or as Opus packets, to websocket
// listeners, paced by a software clock at the buffer period
type WebSocket struct {
	logger   *zap.Logger
	addr     string
	streamID string
	codec    string
	upgrader websocket.Upgrader
	opus     *opusPacketizer

	format audio.Format
	frames int
	src    io.Reader
	pacer  *pacer
	ln     net.Listener
	server *http.Server

	listeners   map[string]*listener
	listenersMu sync.RWMutex
	dropped     atomic.Int64
	sent        atomic.Int64
	mu          sync.Mutex
}

// NewWebSocket creates a websocket output
func NewWebSocket(opts Options) *WebSocket {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultWebSocketAddr
	}
	codec := opts.Codec
	if codec == "" {
		codec = CodecPCM
	}
	streamID := uuid.New().String()
	return &WebSocket{
		logger:   opts.logger().With(zap.String("backend", "websocket"), zap.String("stream", streamID)),
		addr:     addr,
		streamID: streamID,
		codec:    codec,
		upgrader: websocket.Upgrader{
			// Any origin may listen
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		listeners: make(map[string]*listener),
	}
}

// Name identifies the backend
func (w *WebSocket) Name() string { return "websocket" }

// Open starts listening for websocket clients
func (w *WebSocket) Open(format audio.Format, framesPerBuffer int, src io.Reader) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.server != nil {
		return fmt.Errorf("websocket output already open on %s", w.ln.Addr())
	}

	switch w.codec {
	case CodecPCM:
		w.opus = nil
	case CodecOpus:
		p, err := newOpusPacketizer(format)
		if err != nil {
			return err
		}
		w.opus = p
	default:
		return fmt.Errorf("unknown websocket codec %q (available: %v)", w.codec, Codecs())
	}

	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(StreamPath, w.handleWebSocket)

	w.format = format
	w.frames = framesPerBuffer
	w.src = src
	w.ln = ln
	w.server = &http.Server{Handler: mux}

	go func() {
		if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("websocket server failed", zap.Error(err))
		}
	}()

	w.logger.Info("websocket output listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("codec", w.codec))
	return nil
}

// Addr returns the bound listen address, or nil before Open
func (w *WebSocket) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ln == nil {
		return nil
	}
	return w.ln.Addr()
}

// Start launches the pacing clock
func (w *WebSocket) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.src == nil {
		return ErrNotOpen
	}
	if w.pacer != nil {
		return nil
	}
	sink := w.broadcast
	if w.opus != nil {
		sink = w.broadcastOpus
	}
	w.pacer = newPacer(w.logger, w.format.PeriodDuration(w.frames), w.format.BufferBytes(w.frames), w.src, sink)
	go w.pacer.run()
	return nil
}

// Stop halts the clock; listeners stay connected
func (w *WebSocket) Stop() error {
	w.mu.Lock()
	p := w.pacer
	w.pacer = nil
	w.mu.Unlock()

	if p != nil {
		p.stop()
	}
	return nil
}

// Close stops the clock, disconnects listeners and shuts the server down
func (w *WebSocket) Close() error {
	if err := w.Stop(); err != nil {
		return err
	}

	w.mu.Lock()
	server := w.server
	w.server = nil
	w.src = nil
	w.mu.Unlock()

	w.listenersMu.Lock()
	for id, l := range w.listeners {
		close(l.sendChan)
		delete(w.listeners, id)
	}
	w.listenersMu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("websocket server shutdown: %w", err)
	}
	return nil
}

// Listeners returns the number of connected listeners
func (w *WebSocket) Listeners() int {
	w.listenersMu.RLock()
	defer w.listenersMu.RUnlock()
	return len(w.listeners)
}

// Dropped returns how many blocks were dropped for slow listeners
func (w *WebSocket) Dropped() int64 {
	return w.dropped.Load()
}

// Sent returns how many blocks were queued to listeners
func (w *WebSocket) Sent() int64 {
	return w.sent.Load()
}

// Codec returns the payload encoding
func (w *WebSocket) Codec() string {
	return w.codec
}

// broadcastOpus encodes a block and broadcasts every completed packet. It
// runs on the pacer goroutine, the only user of the packetizer.
func (w *WebSocket) broadcastOpus(block []byte) {
	if err := w.opus.write(block, w.broadcast); err != nil {
		w.logger.Warn("opus encode failed, dropping block", zap.Error(err))
	}
}

// broadcast queues one block to every listener without blocking the clock
func (w *WebSocket) broadcast(block []byte) {
	w.listenersMu.RLock()
	defer w.listenersMu.RUnlock()

	if len(w.listeners) == 0 {
		return
	}

	data := append([]byte(nil), block...)
	for _, l := range w.listeners {
		select {
		case l.sendChan <- wsMessage{kind: websocket.BinaryMessage, data: data}:
			w.sent.Add(1)
		default:
			w.dropped.Add(1)
		}
	}
}

// handleWebSocket handles WebSocket connections
func (w *WebSocket) handleWebSocket(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	l := &listener{
		ID:       uuid.New().String(),
		conn:     conn,
		sendChan: make(chan wsMessage, listenerQueue),
	}

	start := StreamStart{
		Type:            "stream/start",
		StreamID:        w.streamID,
		Codec:           w.codec,
		SampleRate:      w.format.SampleRate,
		Channels:        w.format.Channels,
		BitDepth:        audio.FloatBitDepth,
		FramesPerBuffer: w.frames,
	}
	if w.codec == CodecOpus {
		start.FrameSize = OpusFrameSize(w.format.SampleRate)
	}
	header, err := json.Marshal(start)
	if err != nil {
		w.logger.Error("marshal stream/start", zap.Error(err))
		conn.Close()
		return
	}
	l.sendChan <- wsMessage{kind: websocket.TextMessage, data: header}

	w.listenersMu.Lock()
	w.listeners[l.ID] = l
	w.listenersMu.Unlock()

	w.logger.Info("listener connected", zap.String("listener", l.ID), zap.String("remote", r.RemoteAddr))

	go w.listenerWriter(l)
	w.listenerReader(l)
}

// listenerReader drains client messages until the connection closes
func (w *WebSocket) listenerReader(l *listener) {
	defer w.removeListener(l)

	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warn("listener read error", zap.String("listener", l.ID), zap.Error(err))
			}
			return
		}
	}
}

// listenerWriter sends queued messages to the client
func (w *WebSocket) listenerWriter(l *listener) {
	defer l.conn.Close()

	for msg := range l.sendChan {
		l.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := l.conn.WriteMessage(msg.kind, msg.data); err != nil {
			w.logger.Warn("listener write error", zap.String("listener", l.ID), zap.Error(err))
			w.removeListener(l)
			return
		}
	}
}

func (w *WebSocket) removeListener(l *listener) {
	w.listenersMu.Lock()
	defer w.listenersMu.Unlock()

	if _, ok := w.listeners[l.ID]; !ok {
		return
	}
	delete(w.listeners, l.ID)
	close(l.sendChan)
	w.logger.Info("listener disconnected", zap.String("listener", l.ID))
}
