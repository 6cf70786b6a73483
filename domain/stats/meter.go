package stats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Report is one reporting interval worth of throughput.
type Report struct {
	Frames    uint64
	Bytes     uint64
	LastSize  int
	Elapsed   time.Duration
	FPS       float64
	Mbps      float64
	AvgFrameB float64
}

// LogAttrs renders the report for slog.
func (r Report) LogAttrs() []any {
	return []any{
		slog.Float64("fps", round1(r.FPS)),
		slog.Float64("mbps", round2(r.Mbps)),
		slog.Uint64("frames", r.Frames),
		slog.String("frame_size", humanize.IBytes(uint64(r.LastSize))),
		slog.String("interval_bytes", humanize.IBytes(r.Bytes)),
	}
}

// Meter holds session counters (frames and bytes since the last report) and
// emits a Report once per interval, resetting itself. It only drives rate
// display; nothing in the pipeline depends on it.
type Meter struct {
	mu       sync.Mutex
	interval time.Duration
	since    time.Time
	frames   uint64
	bytes    uint64
	lastSize int
}

// NewMeter returns a meter reporting every interval (minimum one second).
func NewMeter(interval time.Duration, now time.Time) *Meter {
	if interval < time.Second {
		interval = time.Second
	}
	return &Meter{interval: interval, since: now}
}

// Add counts one frame of size bytes.
func (m *Meter) Add(size int) {
	m.mu.Lock()
	m.frames++
	m.bytes += uint64(size)
	m.lastSize = size
	m.mu.Unlock()
}

// Tick returns a report and resets the counters when the interval has
// elapsed at now; otherwise ok is false.
func (m *Meter) Tick(now time.Time) (r Report, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := now.Sub(m.since)
	if elapsed < m.interval {
		return Report{}, false
	}
	r = Report{
		Frames:   m.frames,
		Bytes:    m.bytes,
		LastSize: m.lastSize,
		Elapsed:  elapsed,
	}
	secs := elapsed.Seconds()
	r.FPS = float64(m.frames) / secs
	r.Mbps = float64(m.bytes) * 8 / (1024 * 1024) / secs
	if m.frames > 0 {
		r.AvgFrameB = float64(m.bytes) / float64(m.frames)
	}
	m.resetLocked(now)
	return r, true
}

// Reset clears the counters and restarts the interval at now.
func (m *Meter) Reset(now time.Time) {
	m.mu.Lock()
	m.resetLocked(now)
	m.mu.Unlock()
}

func (m *Meter) resetLocked(now time.Time) {
	m.frames = 0
	m.bytes = 0
	m.since = now
}

func round1(v float64) float64 { return float64(int64(v*10+0.5)) / 10 }
func round2(v float64) float64 { return float64(int64(v*100+0.5)) / 100 }
