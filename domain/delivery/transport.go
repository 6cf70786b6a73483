package delivery

import (
	"context"
	"errors"
)

// ErrClosed reports that the remote side closed the connection cleanly.
// Every other Send failure is a transport fault.
var ErrClosed = errors.New("delivery: connection closed")

// Kind is the message type a frame is sent as.
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

// Conn is an established transport connection. Send either delivers the whole
// message or fails; there is no backpressure signal beyond blocking writes.
type Conn interface {
	Send(kind Kind, data []byte) error
	Close() error
}

// Dialer opens connections to a consumer address.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}
