package capture

import (
	"log/slog"
	"time"
)

// PatternSource emits a synthetic scrolling gradient. It stands in for the
// screen on headless hosts and in end-to-end runs.
type PatternSource struct {
	*pollSource
	width, height int
	offset        int
}

// NewPatternSource returns a width x height gradient source ticking at fps.
func NewPatternSource(width, height int, fps float64, logger *slog.Logger) *PatternSource {
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 240
	}
	s := &PatternSource{width: width, height: height}
	s.pollSource = newPollSource("pattern", fps, s.next, logger)
	return s
}

func (s *PatternSource) next() (RawFrame, error) {
	pix := make([]byte, s.width*s.height*4)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			i := (y*s.width + x) * 4
			pix[i] = byte(x + s.offset)
			pix[i+1] = byte(y + s.offset)
			pix[i+2] = byte(x + y)
			pix[i+3] = 0xFF
		}
	}
	s.offset++
	return RawFrame{Width: s.width, Height: s.height, Pix: pix, Timestamp: time.Now()}, nil
}
