package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Wire selects the websocket message type used for frames.
type Wire string

const (
	WireText   Wire = "text"
	WireBinary Wire = "binary"
)

// Text message tags. Text-safe payloads travel verbatim after "frame:";
// JPEG payloads are base64-wrapped after "jpeg:".
const (
	tagText = "frame"
	tagJPEG = "jpeg"
)

// MaxDimension bounds the width and height a message may declare, so the
// pixel count cannot overflow.
const MaxDimension = 1 << 15

// Binary header layout: magic(2) version(1) mode(1) width(4) height(4).
const (
	headerSize    = 12
	headerVersion = 1
)

var headerMagic = [2]byte{'F', 'R'}

// Message is one frame on the wire.
type Message struct {
	Width   int
	Height  int
	Mode    Mode
	Payload []byte
}

// MarshalText renders m as "<tag>:<width>:<height>:<payload>".
func MarshalText(m Message) []byte {
	tag, payload := tagText, m.Payload
	if m.Mode == ModeJPEG {
		tag = tagJPEG
		payload = make([]byte, base64.StdEncoding.EncodedLen(len(m.Payload)))
		base64.StdEncoding.Encode(payload, m.Payload)
	}
	var buf bytes.Buffer
	buf.Grow(len(tag) + len(payload) + 24)
	buf.WriteString(tag)
	buf.WriteByte(':')
	buf.WriteString(strconv.Itoa(m.Width))
	buf.WriteByte(':')
	buf.WriteString(strconv.Itoa(m.Height))
	buf.WriteByte(':')
	buf.Write(payload)
	return buf.Bytes()
}

// ParseText parses a message produced by MarshalText.
func ParseText(data []byte) (Message, error) {
	parts := strings.SplitN(string(data), ":", 4)
	if len(parts) != 4 {
		return Message{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformed, len(parts))
	}
	w, h, err := parseDims(parts[1], parts[2])
	if err != nil {
		return Message{}, err
	}
	m := Message{Width: w, Height: h}
	switch parts[0] {
	case tagText:
		m.Mode = ModeText
		m.Payload = []byte(parts[3])
	case tagJPEG:
		m.Mode = ModeJPEG
		m.Payload, err = base64.StdEncoding.DecodeString(parts[3])
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown tag %q", ErrMalformed, parts[0])
	}
	return m, m.Validate()
}

// MarshalBinary renders m as a fixed header followed by the raw payload.
func MarshalBinary(m Message) []byte {
	out := make([]byte, headerSize+len(m.Payload))
	out[0], out[1] = headerMagic[0], headerMagic[1]
	out[2] = headerVersion
	out[3] = byte(m.Mode)
	binary.BigEndian.PutUint32(out[4:8], uint32(m.Width))
	binary.BigEndian.PutUint32(out[8:12], uint32(m.Height))
	copy(out[headerSize:], m.Payload)
	return out
}

// ParseBinary parses a message produced by MarshalBinary. The returned
// payload aliases data.
func ParseBinary(data []byte) (Message, error) {
	if len(data) < headerSize {
		return Message{}, fmt.Errorf("%w: short header (%d bytes)", ErrMalformed, len(data))
	}
	if data[0] != headerMagic[0] || data[1] != headerMagic[1] {
		return Message{}, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	if data[2] != headerVersion {
		return Message{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, data[2])
	}
	m := Message{
		Mode:    Mode(data[3]),
		Width:   int(binary.BigEndian.Uint32(data[4:8])),
		Height:  int(binary.BigEndian.Uint32(data[8:12])),
		Payload: data[headerSize:],
	}
	if m.Mode != ModeText && m.Mode != ModeJPEG {
		return Message{}, fmt.Errorf("%w: unknown mode %d", ErrMalformed, data[3])
	}
	if err := checkDims(m.Width, m.Height); err != nil {
		return Message{}, err
	}
	return m, m.Validate()
}

// Validate checks that a text-safe payload holds exactly width*height pixels.
func (m Message) Validate() error {
	if err := checkDims(m.Width, m.Height); err != nil {
		return err
	}
	if m.Mode != ModeText {
		return nil
	}
	if want := m.Width * m.Height * BytesPerPixel; len(m.Payload) != want {
		return fmt.Errorf("%w: payload %d bytes, want %d for %dx%d", ErrMalformed, len(m.Payload), want, m.Width, m.Height)
	}
	return nil
}

func parseDims(ws, hs string) (int, int, error) {
	w, err := strconv.Atoi(ws)
	if err != nil || w < 0 {
		return 0, 0, fmt.Errorf("%w: bad width %q", ErrMalformed, ws)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, 0, fmt.Errorf("%w: bad height %q", ErrMalformed, hs)
	}
	if err := checkDims(w, h); err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func checkDims(w, h int) error {
	if w < 0 || h < 0 || w > MaxDimension || h > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d out of range", ErrMalformed, w, h)
	}
	return nil
}
