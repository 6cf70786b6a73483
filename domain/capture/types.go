package capture

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by sources that cannot run on this platform.
var ErrUnsupported = errors.New("capture: source not supported")

// RawFrame is one capture event. Pix is row-major RGBA and is only valid for
// the duration of the Sink call.
type RawFrame struct {
	Width     int
	Height    int
	Pix       []byte
	Timestamp time.Time
}

// Sink receives capture events on the source's own goroutine.
type Sink func(RawFrame)

// Source is an event-driven frame source. Run blocks the calling goroutine,
// invoking sink once per frame, until Stop is called or ctx is done; its
// return is the "closed" notification. Stop is idempotent and may be called
// from inside sink.
type Source interface {
	Run(ctx context.Context, sink Sink) error
	Stop()
}
