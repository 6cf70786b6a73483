package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 5 * time.Second
	closeGrace          = 100 * time.Millisecond
)

// WebsocketDialer dials ws:// or wss:// consumers with gorilla/websocket.
type WebsocketDialer struct {
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration
}

// NewWebsocketDialer returns a dialer with a bounded handshake and large
// write buffers sized for frame payloads.
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			WriteBufferSize:  1 << 16,
		},
		WriteTimeout: defaultWriteTimeout,
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	timeout := d.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	c := &wsConn{ws: ws, writeTimeout: timeout, done: make(chan struct{})}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	once    sync.Once
	done    chan struct{}
	readErr error
}

// readLoop drains inbound messages so control frames (close, ping) are
// processed, and records why the connection ended.
func (c *wsConn) readLoop() {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.once.Do(func() {
				c.readErr = err
				close(c.done)
			})
			return
		}
	}
}

func (c *wsConn) Send(kind Kind, data []byte) error {
	select {
	case <-c.done:
		return c.classify(c.readErr)
	default:
	}
	mt := websocket.TextMessage
	if kind == KindBinary {
		mt = websocket.BinaryMessage
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	err := c.ws.WriteMessage(mt, data)
	if err == nil {
		return nil
	}
	// A peer close usually surfaces on the read side first; give it a moment
	// so a clean close is not misreported as a write fault.
	select {
	case <-c.done:
		if isCleanClose(c.readErr) {
			return ErrClosed
		}
	case <-time.After(closeGrace):
	}
	return c.classify(err)
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *wsConn) classify(err error) error {
	if isCleanClose(err) {
		return ErrClosed
	}
	return fmt.Errorf("delivery: websocket: %w", err)
}

func isCleanClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
