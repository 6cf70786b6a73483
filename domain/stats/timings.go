package stats

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Stage names recorded by the pipeline.
const (
	StageBufferCopy   = "capture-buffer-copy"
	StageEncode       = "encode"
	StagePublish      = "publish"
	StageCaptureTotal = "capture-total"
	StageFetch        = "fetch"
	StageSend         = "send"
	StageCycle        = "cycle"
)

// Summary is a derived view of one stage window.
type Summary struct {
	Count int
	Mean  time.Duration
	Max   time.Duration
}

// Timings aggregates named stage durations into bounded sliding windows.
// It is safe for concurrent use by the producer and the delivery loop.
type Timings struct {
	mu      sync.Mutex
	size    int
	windows map[string]*Window
}

// NewTimings returns an aggregator whose per-stage windows hold size samples.
func NewTimings(size int) *Timings {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Timings{size: size, windows: make(map[string]*Window)}
}

// Record adds one sample for stage. A nil *Timings discards samples.
func (t *Timings) Record(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	w, ok := t.windows[stage]
	if !ok {
		w = NewWindow(t.size)
		t.windows[stage] = w
	}
	w.Record(d)
	t.mu.Unlock()
}

// Since records time.Since(start) for stage and returns the current time,
// so consecutive stages can be chained.
func (t *Timings) Since(stage string, start time.Time) time.Time {
	now := time.Now()
	t.Record(stage, now.Sub(start))
	return now
}

// Summary returns the derived metrics for one stage.
func (t *Timings) Summary(stage string) (Summary, bool) {
	if t == nil {
		return Summary{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[stage]
	if !ok {
		return Summary{}, false
	}
	return Summary{Count: w.Len(), Mean: w.Mean(), Max: w.Max()}, true
}

// Snapshot returns summaries for every stage seen so far.
func (t *Timings) Snapshot() map[string]Summary {
	out := make(map[string]Summary)
	if t == nil {
		return out
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, w := range t.windows {
		out[name] = Summary{Count: w.Len(), Mean: w.Mean(), Max: w.Max()}
	}
	return out
}

// LogAttrs renders the given stages as slog groups ("mean", "max" in ms).
// Stages without samples are omitted.
func (t *Timings) LogAttrs(stages ...string) []any {
	snap := t.Snapshot()
	if len(stages) == 0 {
		for name := range snap {
			stages = append(stages, name)
		}
		sort.Strings(stages)
	}
	attrs := make([]any, 0, len(stages))
	for _, name := range stages {
		s, ok := snap[name]
		if !ok || s.Count == 0 {
			continue
		}
		attrs = append(attrs, slog.Group(name,
			slog.Float64("mean_ms", millis(s.Mean)),
			slog.Float64("max_ms", millis(s.Max)),
		))
	}
	return attrs
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
