package receiver

import (
	"errors"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soocke/pixel-stream-go/domain/codec"
	"github.com/soocke/pixel-stream-go/domain/stats"
)

// Options configures a Receiver.
type Options struct {
	ReportInterval time.Duration
	// MaxFrames closes each connection normally after this many frames; 0 = unlimited.
	MaxFrames int
	// OnFrame is invoked for every well-formed frame on the connection's goroutine.
	OnFrame func(codec.Message)
}

// FrameInfo describes the last frame received.
type FrameInfo struct {
	Width      int
	Height     int
	Mode       codec.Mode
	Size       int
	ReceivedAt time.Time
}

// sessionHistory bounds how many finished sessions are remembered.
const sessionHistory = 32

// SessionInfo summarises one finished connection.
type SessionInfo struct {
	ID       string
	Remote   string
	Frames   int
	Bytes    uint64
	Started  time.Time
	Ended    time.Time
	Clean    bool
	LastSize int
}

// Stats counts receiver activity across connections.
type Stats struct {
	Connections uint64
	Frames      uint64
	Malformed   uint64
	Bytes       uint64
}

// Receiver is the consuming end of the stream: an http.Handler that upgrades
// to websocket, parses frame messages and meters throughput per connection.
type Receiver struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader

	connections atomic.Uint64
	frames      atomic.Uint64
	malformed   atomic.Uint64
	bytes       atomic.Uint64

	mu      sync.Mutex
	last    FrameInfo
	lastMsg codec.Message
	seen    bool

	sessions *lru.Cache[string, SessionInfo]
}

// ErrNoFrame is returned by Snapshot before any frame arrived.
var ErrNoFrame = errors.New("receiver: no frame received")

// New returns a receiver. Origins are not checked; the stream carries no credentials.
func New(opts Options, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessions, _ := lru.New[string, SessionInfo](sessionHistory)
	return &Receiver{
		opts:     opts,
		logger:   logger,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize: 1 << 16,
			CheckOrigin:    func(*http.Request) bool { return true },
		},
	}
}

// Last returns metadata of the most recent frame, if any.
func (r *Receiver) Last() (FrameInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.seen
}

// Snapshot decodes the most recent frame into an image.
func (r *Receiver) Snapshot() (image.Image, error) {
	r.mu.Lock()
	msg, ok := r.lastMsg, r.seen
	r.mu.Unlock()
	if !ok {
		return nil, ErrNoFrame
	}
	return codec.MessageImage(msg)
}

// Stats returns a snapshot of the counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Connections: r.connections.Load(),
		Frames:      r.frames.Load(),
		Malformed:   r.malformed.Load(),
		Bytes:       r.bytes.Load(),
	}
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !websocket.IsWebSocketUpgrade(req) {
		http.Error(w, "websocket upgrade required", http.StatusNotImplemented)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("receiver upgrade", "error", err)
		return
	}
	defer conn.Close()
	r.connections.Add(1)
	info := SessionInfo{ID: uuid.NewString(), Remote: req.RemoteAddr, Started: time.Now()}
	log := r.logger.With("session", info.ID, "remote", req.RemoteAddr)
	log.Info("client connected")
	r.serve(conn, log, &info)
	info.Ended = time.Now()
	r.sessions.Add(info.ID, info)
}

// Sessions returns the most recently finished connections, oldest first.
func (r *Receiver) Sessions() []SessionInfo {
	return r.sessions.Values()
}

func (r *Receiver) serve(conn *websocket.Conn, log *slog.Logger, info *SessionInfo) {
	meter := stats.NewMeter(r.opts.ReportInterval, time.Now())
	count := 0
	defer func() { info.Frames = count }()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				info.Clean = true
				log.Info("client disconnected", "frames", count)
			} else {
				log.Warn("client read", "frames", count, "error", err)
			}
			return
		}
		msg, err := parse(mt, data)
		if err != nil {
			r.malformed.Add(1)
			log.Debug("receiver dropped message", "size", len(data), "error", err)
			continue
		}
		count++
		info.Bytes += uint64(len(data))
		info.LastSize = len(data)
		r.record(msg, len(data))
		meter.Add(len(data))
		if rep, ok := meter.Tick(time.Now()); ok {
			log.Info("receiver.stats", rep.LogAttrs()...)
		}
		if r.opts.OnFrame != nil {
			r.opts.OnFrame(msg)
		}
		if r.opts.MaxFrames > 0 && count >= r.opts.MaxFrames {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "frame limit reached")
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			log.Info("client frame limit reached", "frames", count)
			drainUntilClosed(conn)
			info.Clean = true
			return
		}
	}
}

func (r *Receiver) record(msg codec.Message, size int) {
	r.frames.Add(1)
	r.bytes.Add(uint64(size))
	r.mu.Lock()
	r.last = FrameInfo{Width: msg.Width, Height: msg.Height, Mode: msg.Mode, Size: size, ReceivedAt: time.Now()}
	r.lastMsg = msg
	r.seen = true
	r.mu.Unlock()
}

// drainUntilClosed waits for the peer's close reply so the TCP connection is
// not torn down with unread frames in flight.
func drainUntilClosed(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func parse(mt int, data []byte) (codec.Message, error) {
	if mt == websocket.BinaryMessage {
		return codec.ParseBinary(data)
	}
	return codec.ParseText(data)
}
