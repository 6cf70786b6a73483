package codec

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ColorMode selects the channel layout handed to the JPEG encoder.
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// ImageCodec is the bandwidth-oriented variant: downscale, flatten alpha onto
// white, convert to the target color mode and JPEG-compress.
type ImageCodec struct {
	Scale   float64 // (0,1]
	Quality int     // (0,100]
	Color   ColorMode
}

// NewImageCodec returns an ImageCodec with parameters clamped to valid ranges.
func NewImageCodec(scale float64, quality int, color ColorMode) ImageCodec {
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	if quality <= 0 || quality > 100 {
		quality = 50
	}
	if color != ColorGray {
		color = ColorRGB
	}
	return ImageCodec{Scale: scale, Quality: quality, Color: color}
}

// Mode implements FrameEncoder.
func (ImageCodec) Mode() Mode { return ModeJPEG }

// EncodeFrame implements FrameEncoder. The reported dimensions are those of
// the scaled image.
func (c ImageCodec) EncodeFrame(width, height int, pix []byte) (Encoded, error) {
	if width <= 0 || height <= 0 || len(pix) < width*height*BytesPerPixel {
		return Encoded{}, fmt.Errorf("codec: buffer of %d bytes does not hold %dx%d pixels", len(pix), width, height)
	}
	src := &image.RGBA{Pix: pix, Stride: width * BytesPerPixel, Rect: image.Rect(0, 0, width, height)}
	img := c.transform(src)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.Quality)); err != nil {
		return Encoded{}, fmt.Errorf("codec: jpeg encode: %w", err)
	}
	b := img.Bounds()
	return Encoded{Width: b.Dx(), Height: b.Dy(), Payload: buf.Bytes(), Mode: ModeJPEG}, nil
}

func (c ImageCodec) transform(src *image.RGBA) image.Image {
	var scaled image.Image = src
	if c.Scale > 0 && c.Scale < 1 {
		w, h := scaledSize(src.Rect.Dx(), src.Rect.Dy(), c.Scale)
		scaled = imaging.Resize(src, w, h, imaging.Lanczos)
	}
	bounds := image.Rect(0, 0, scaled.Bounds().Dx(), scaled.Bounds().Dy())

	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, scaled, scaled.Bounds().Min, draw.Over)
	if c.Color != ColorGray {
		return flat
	}
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, flat, image.Point{}, draw.Src)
	return gray
}

func scaledSize(w, h int, scale float64) (int, int) {
	sw := int(float64(w)*scale + 0.5)
	sh := int(float64(h)*scale + 0.5)
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	return sw, sh
}

// DecodeImage decodes a JPEG payload produced by ImageCodec.
func DecodeImage(payload []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("codec: decode image: %w", err)
	}
	return img, nil
}
