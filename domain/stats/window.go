package stats

import "time"

// DefaultWindowSize is the number of samples kept per stage when no size is configured.
const DefaultWindowSize = 100

// Window is a fixed-capacity FIFO of duration samples. Once full, each Record
// evicts the oldest sample. Mean and Max are computed on demand.
//
// Window is not safe for concurrent use; Timings serialises access.
type Window struct {
	samples []time.Duration
	next    int
	full    bool
}

// NewWindow returns a window holding at most size samples. Non-positive sizes
// fall back to DefaultWindowSize.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{samples: make([]time.Duration, size)}
}

// Record appends d, dropping the oldest sample when at capacity.
func (w *Window) Record(d time.Duration) {
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

// Len reports the number of samples currently held.
func (w *Window) Len() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

// Cap reports the window capacity.
func (w *Window) Cap() int { return len(w.samples) }

// Samples returns a copy of the held samples, oldest first.
func (w *Window) Samples() []time.Duration {
	out := make([]time.Duration, 0, w.Len())
	if w.full {
		out = append(out, w.samples[w.next:]...)
	}
	return append(out, w.samples[:w.next]...)
}

// Mean returns the average sample, or zero for an empty window.
func (w *Window) Mean() time.Duration {
	n := w.Len()
	if n == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range w.samples[:n] {
		total += d
	}
	return total / time.Duration(n)
}

// Max returns the largest sample, or zero for an empty window.
func (w *Window) Max() time.Duration {
	var max time.Duration
	for _, d := range w.samples[:w.Len()] {
		if d > max {
			max = d
		}
	}
	return max
}
