package stats

import (
	"sync"
	"testing"
	"time"
)

func TestWindow_BoundedFIFO(t *testing.T) {
	w := NewWindow(100)
	for i := 1; i <= 500; i++ {
		w.Record(time.Duration(i))
	}
	if w.Len() != 100 {
		t.Fatalf("expected 100 samples, got %d", w.Len())
	}
	samples := w.Samples()
	for i, d := range samples {
		want := time.Duration(401 + i)
		if d != want {
			t.Fatalf("sample %d: expected %v got %v", i, want, d)
		}
	}
	if w.Max() != 500 {
		t.Fatalf("expected max 500, got %v", w.Max())
	}
	if w.Mean() != 450 { // mean of 401..500 = 450.5, integer division truncates
		t.Fatalf("expected mean 450, got %v", w.Mean())
	}
}

func TestWindow_PartialAndEmpty(t *testing.T) {
	w := NewWindow(0)
	if w.Cap() != DefaultWindowSize {
		t.Fatalf("expected default cap %d, got %d", DefaultWindowSize, w.Cap())
	}
	if w.Len() != 0 || w.Mean() != 0 || w.Max() != 0 {
		t.Fatalf("empty window should report zeros: len=%d mean=%v max=%v", w.Len(), w.Mean(), w.Max())
	}
	w.Record(2 * time.Millisecond)
	w.Record(4 * time.Millisecond)
	if w.Len() != 2 || w.Mean() != 3*time.Millisecond || w.Max() != 4*time.Millisecond {
		t.Fatalf("unexpected partial stats: len=%d mean=%v max=%v", w.Len(), w.Mean(), w.Max())
	}
}

func TestTimings_ConcurrentRecord(t *testing.T) {
	tm := NewTimings(10)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(stage string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tm.Record(stage, time.Millisecond)
			}
		}([]string{StageEncode, StageFetch}[g%2])
	}
	wg.Wait()
	snap := tm.Snapshot()
	for _, stage := range []string{StageEncode, StageFetch} {
		s, ok := snap[stage]
		if !ok || s.Count != 10 || s.Mean != time.Millisecond {
			t.Fatalf("stage %s: unexpected summary %+v ok=%v", stage, s, ok)
		}
	}
	if _, ok := tm.Summary("missing"); ok {
		t.Fatalf("unknown stage should not report a summary")
	}
	if attrs := tm.LogAttrs(StageEncode, "missing"); len(attrs) != 1 {
		t.Fatalf("expected one log group, got %d", len(attrs))
	}
}

func TestTimings_NilDiscards(t *testing.T) {
	var tm *Timings
	tm.Record(StageEncode, time.Second)
	if len(tm.Snapshot()) != 0 {
		t.Fatalf("nil timings should have empty snapshot")
	}
}

func TestMeter_TickResets(t *testing.T) {
	base := time.Unix(0, 0)
	m := NewMeter(time.Second, base)
	for i := 0; i < 30; i++ {
		m.Add(1000)
	}
	if _, ok := m.Tick(base.Add(500 * time.Millisecond)); ok {
		t.Fatalf("report should not be emitted before interval elapses")
	}
	r, ok := m.Tick(base.Add(time.Second))
	if !ok {
		t.Fatalf("expected report after one second")
	}
	if r.Frames != 30 || r.Bytes != 30000 || r.FPS != 30 || r.AvgFrameB != 1000 {
		t.Fatalf("unexpected report %+v", r)
	}
	r2, ok := m.Tick(base.Add(2 * time.Second))
	if !ok || r2.Frames != 0 || r2.Bytes != 0 {
		t.Fatalf("counters should reset after report: %+v ok=%v", r2, ok)
	}
}

func TestMeter_MinimumInterval(t *testing.T) {
	base := time.Unix(0, 0)
	m := NewMeter(10*time.Millisecond, base)
	if _, ok := m.Tick(base.Add(500 * time.Millisecond)); ok {
		t.Fatalf("interval should be clamped to at least one second")
	}
}
