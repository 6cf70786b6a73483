package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// MessageImage reconstructs a viewable image from a wire message. Text-safe
// payloads are decoded back to RGBA (lossy); JPEG payloads are decoded as-is.
func MessageImage(m Message) (image.Image, error) {
	if err := checkDims(m.Width, m.Height); err != nil {
		return nil, err
	}
	if m.Mode == ModeJPEG {
		return DecodeImage(m.Payload)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	copy(img.Pix, DecodeText(m.Payload))
	// Alpha only survives to 6 bits; force opaque.
	for i := 3; i < len(img.Pix); i += BytesPerPixel {
		img.Pix[i] = 0xFF
	}
	return img, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("codec: nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("codec: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
