package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/vova616/screenshot"
)

// ScreenSource captures the primary screen, or a selection of it, at a fixed
// cadence using the screenshot library.
type ScreenSource struct {
	*pollSource
	selection image.Rectangle
}

// NewScreenSource returns a source grabbing at fps. An empty selection means
// the full screen; otherwise the selection is clipped to the screen bounds.
func NewScreenSource(fps float64, selection image.Rectangle, logger *slog.Logger) *ScreenSource {
	s := &ScreenSource{selection: selection}
	s.pollSource = newPollSource("screen", fps, s.captureFrame, logger)
	return s
}

// Run implements Source. It fails with ErrUnsupported when no screen can be
// opened, e.g. on a host without a display.
func (s *ScreenSource) Run(ctx context.Context, sink Sink) error {
	if _, err := screenshot.ScreenRect(); err != nil {
		return fmt.Errorf("%w: screen: %v", ErrUnsupported, err)
	}
	return s.pollSource.Run(ctx, sink)
}

func (s *ScreenSource) captureFrame() (RawFrame, error) {
	img, err := grabScreen(s.selection)
	if err != nil {
		return RawFrame{}, err
	}
	return RawFrame{
		Width:     img.Rect.Dx(),
		Height:    img.Rect.Dy(),
		Pix:       packedPix(img),
		Timestamp: time.Now(),
	}, nil
}

func grabScreen(sel image.Rectangle) (*image.RGBA, error) {
	if sel.Empty() {
		return screenshot.CaptureScreen()
	}
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, err
	}
	r := sel.Intersect(screen)
	if r.Empty() {
		return nil, fmt.Errorf("capture: selection out of bounds sel=%v screen=%v", sel, screen)
	}
	return screenshot.CaptureRect(r)
}

// packedPix returns img's pixels as a contiguous row-major buffer, copying
// only when the stride carries padding.
func packedPix(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	row := w * 4
	if img.Stride == row {
		return img.Pix[:row*h]
	}
	out := make([]byte, row*h)
	for y := 0; y < h; y++ {
		copy(out[y*row:(y+1)*row], img.Pix[y*img.Stride:y*img.Stride+row])
	}
	return out
}
