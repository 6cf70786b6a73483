package codec

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the sample count of one raw pixel (row-major RGBA).
const BytesPerPixel = 4

// ErrMalformed is returned when a wire message cannot be parsed.
var ErrMalformed = errors.New("codec: malformed message")

// Mode identifies how a payload was encoded.
type Mode uint8

const (
	ModeText Mode = iota
	ModeJPEG
)

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "text":
		return ModeText, nil
	case "jpeg", "image", "binary":
		return ModeJPEG, nil
	}
	return 0, fmt.Errorf("codec: unknown mode %q", s)
}

// Encoded is the output of a FrameEncoder. Width and Height describe the
// payload, which may differ from the source when the encoder rescales.
type Encoded struct {
	Width   int
	Height  int
	Payload []byte
	Mode    Mode
}

// FrameEncoder turns a raw RGBA buffer into a transport payload. pix is only
// valid for the duration of the call; implementations must not retain it.
type FrameEncoder interface {
	EncodeFrame(width, height int, pix []byte) (Encoded, error)
	Mode() Mode
}
