package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/pixel-stream-go/domain/cache"
	"github.com/soocke/pixel-stream-go/domain/codec"
	"github.com/soocke/pixel-stream-go/domain/stats"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeSource delivers frames pushed through emit on its Run goroutine.
type fakeSource struct {
	frames  chan RawFrame
	handled chan struct{}
	stop    chan struct{}
	once    sync.Once
	stops   atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan RawFrame), handled: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (s *fakeSource) Run(ctx context.Context, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case f := <-s.frames:
			sink(f)
			s.handled <- struct{}{}
		}
	}
}

func (s *fakeSource) Stop() {
	s.stops.Add(1)
	s.once.Do(func() { close(s.stop) })
}

func (s *fakeSource) emit(t *testing.T, f RawFrame) {
	t.Helper()
	select {
	case s.frames <- f:
	case <-time.After(time.Second):
		t.Fatalf("source not running")
	}
	<-s.handled
}

type failingEncoder struct{}

func (failingEncoder) Mode() codec.Mode { return codec.ModeText }
func (failingEncoder) EncodeFrame(int, int, []byte) (codec.Encoded, error) {
	return codec.Encoded{}, errors.New("boom")
}

// panicOnceEncoder panics on its first frame and encodes as text afterwards.
type panicOnceEncoder struct {
	calls atomic.Int32
}

func (e *panicOnceEncoder) Mode() codec.Mode { return codec.ModeText }
func (e *panicOnceEncoder) EncodeFrame(w, h int, pix []byte) (codec.Encoded, error) {
	if e.calls.Add(1) == 1 {
		panic("corrupt frame")
	}
	return codec.TextCodec{}.EncodeFrame(w, h, pix)
}

func startProducer(t *testing.T, enc codec.FrameEncoder) (*Producer, *fakeSource, *cache.Cache, chan error) {
	t.Helper()
	src := newFakeSource()
	c := cache.New()
	p := NewProducer(src, enc, c, stats.NewTimings(10), time.Second, discardLogger)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	t.Cleanup(p.Stop)
	return p, src, c, done
}

func TestProducer_PublishesEncodedFrames(t *testing.T) {
	p, src, c, _ := startProducer(t, codec.TextCodec{})
	raw := []byte{0, 4, 8, 255, 1, 2, 3, 4}
	src.emit(t, RawFrame{Width: 2, Height: 1, Pix: raw})

	f, fr := c.Consume(50 * time.Millisecond)
	if fr != cache.Fresh {
		t.Fatalf("expected fresh frame, got %v", fr)
	}
	if f.Width != 2 || f.Height != 1 || f.Sequence != 1 || f.CapturedAt.IsZero() {
		t.Fatalf("unexpected frame metadata %+v", f)
	}
	want := codec.EncodeText(raw)
	if string(f.Payload) != string(want) {
		t.Fatalf("payload mismatch: %q vs %q", f.Payload, want)
	}
	raw[0] = 0xFF
	if f.Payload[0] != want[0] {
		t.Fatalf("published payload aliases the source buffer")
	}
	if s := p.Stats(); s.Captures != 1 || s.Sequence != 1 || !s.Ready {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestProducer_SkipsEmptyBuffers(t *testing.T) {
	p, src, c, _ := startProducer(t, codec.TextCodec{})
	src.emit(t, RawFrame{Width: 10, Height: 10})
	if c.Ready() {
		t.Fatalf("empty capture must not publish")
	}
	if s := p.Stats(); s.Captures != 0 || s.Sequence != 0 || s.Ready {
		t.Fatalf("empty capture must not advance counters: %+v", s)
	}
}

func TestProducer_RecordsStageTimings(t *testing.T) {
	src := newFakeSource()
	timings := stats.NewTimings(10)
	p := NewProducer(src, codec.TextCodec{}, cache.New(), timings, time.Second, discardLogger)
	go p.Run(context.Background())
	defer p.Stop()
	src.emit(t, RawFrame{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}})
	for _, stage := range []string{stats.StageBufferCopy, stats.StageEncode, stats.StagePublish, stats.StageCaptureTotal} {
		if s, ok := timings.Summary(stage); !ok || s.Count != 1 {
			t.Fatalf("stage %s not recorded: %+v", stage, s)
		}
	}
}

func TestProducer_EncodeErrorIsCounted(t *testing.T) {
	p, src, c, _ := startProducer(t, failingEncoder{})
	src.emit(t, RawFrame{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}})
	if c.Ready() {
		t.Fatalf("failed encode must not publish")
	}
	if s := p.Stats(); s.EncodeErrors != 1 || s.Captures != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestProducer_SurvivesEncoderPanic(t *testing.T) {
	p, src, c, done := startProducer(t, &panicOnceEncoder{})
	src.emit(t, RawFrame{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}})
	if c.Ready() {
		t.Fatalf("panicking frame must not publish")
	}
	src.emit(t, RawFrame{Width: 1, Height: 1, Pix: []byte{5, 6, 7, 8}})
	f, fr := c.Consume(100 * time.Millisecond)
	if fr != cache.Fresh || f.Sequence != 1 || f.Width != 1 {
		t.Fatalf("frame after the panic should be published, got #%d (%v)", f.Sequence, fr)
	}
	select {
	case err := <-done:
		t.Fatalf("producer stopped after a panic: %v", err)
	default:
	}
	if !p.Running() || p.Stats().Captures != 1 {
		t.Fatalf("unexpected producer state: running=%v stats=%+v", p.Running(), p.Stats())
	}
}

func TestProducer_WaitReady(t *testing.T) {
	p, src, c, _ := startProducer(t, codec.TextCodec{})
	if p.WaitReady(context.Background(), 20*time.Millisecond) {
		t.Fatalf("should not be ready before any frame")
	}
	src.emit(t, RawFrame{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}})
	if !p.WaitReady(context.Background(), time.Second) {
		t.Fatalf("expected ready after first frame")
	}
	c.Consume(10 * time.Millisecond)
	if f, fr := c.Consume(10 * time.Millisecond); fr != cache.Stale || f.Sequence != 1 {
		t.Fatalf("handshake should pin the first frame as fallback, got #%d (%v)", f.Sequence, fr)
	}
}

func TestProducer_StopIsIdempotent(t *testing.T) {
	p, src, _, done := startProducer(t, codec.TextCodec{})
	p.Stop()
	p.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("clean stop returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("producer did not stop")
	}
	if n := src.stops.Load(); n != 1 {
		t.Fatalf("expected exactly one source stop, got %d", n)
	}
	if p.Running() {
		t.Fatalf("producer should report stopped")
	}
}

func TestProducer_CancelIsClean(t *testing.T) {
	src := newFakeSource()
	p := NewProducer(src, codec.TextCodec{}, cache.New(), nil, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancel should be a clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("producer did not return after cancel")
	}
}

func TestPatternSource_EmitsFrames(t *testing.T) {
	src := NewPatternSource(8, 4, 200, discardLogger)
	var got atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- src.Run(context.Background(), func(f RawFrame) {
			if f.Width != 8 || f.Height != 4 || len(f.Pix) != 8*4*4 {
				t.Errorf("unexpected pattern frame %dx%d len=%d", f.Width, f.Height, len(f.Pix))
			}
			if got.Add(1) == 3 {
				src.Stop()
			}
		})
	}()
	select {
	case err := <-done:
		if err != nil || got.Load() < 3 {
			t.Fatalf("pattern source: err=%v frames=%d", err, got.Load())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pattern source did not stop")
	}
}
