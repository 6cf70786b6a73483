package capture

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-stream-go/domain/cache"
	"github.com/soocke/pixel-stream-go/domain/codec"
	"github.com/soocke/pixel-stream-go/domain/stats"
)

// Producer drives a Source, encodes each frame and publishes it into the
// frame cache. It never waits on the consumer.
type Producer struct {
	source  Source
	encoder codec.FrameEncoder
	cache   *cache.Cache
	timings *stats.Timings
	meter   *stats.Meter
	logger  *slog.Logger

	running   atomic.Bool
	stopOnce  sync.Once
	ready     chan struct{}
	readyOnce sync.Once

	captures     atomic.Uint64
	encodeErrors atomic.Uint64
	sequence     atomic.Uint64
	lastCapture  atomic.Int64
}

// NewProducer wires a source to the cache. reportInterval controls how often
// capture.stats is logged.
func NewProducer(src Source, enc codec.FrameEncoder, c *cache.Cache, timings *stats.Timings, reportInterval time.Duration, logger *slog.Logger) *Producer {
	p := &Producer{
		source:  src,
		encoder: enc,
		cache:   c,
		timings: timings,
		meter:   stats.NewMeter(reportInterval, time.Now()),
		logger:  logger,
		ready:   make(chan struct{}),
	}
	p.running.Store(true)
	return p
}

// Run blocks on the source until it stops. A cancelled context is a clean stop.
func (p *Producer) Run(ctx context.Context) error {
	if !p.running.Load() {
		return nil
	}
	err := p.source.Run(ctx, p.handle)
	p.running.Store(false)
	if p.logger != nil {
		p.logger.Info("capture closed", "captures", p.captures.Load())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop asks the source to halt. Safe to call more than once.
func (p *Producer) Stop() {
	p.running.Store(false)
	p.stopOnce.Do(p.source.Stop)
}

// Running reports whether the producer still accepts capture events.
func (p *Producer) Running() bool { return p.running.Load() }

// WaitReady blocks until the first non-empty frame is published, the timeout
// elapses or ctx is done. On success the frame is pinned as the cache fallback.
// A false return is not fatal: delivery copes with an empty cache.
func (p *Producer) WaitReady(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.ready:
		p.cache.SeedFallback()
		return true
	case <-timer.C:
	case <-ctx.Done():
	}
	if p.logger != nil {
		p.logger.Warn("capture not ready, continuing", "timeout", timeout)
	}
	return false
}

// Stats returns a snapshot of the producer counters.
func (p *Producer) Stats() ProducerStats {
	var last time.Time
	if ns := p.lastCapture.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	ready := false
	select {
	case <-p.ready:
		ready = true
	default:
	}
	return ProducerStats{
		Captures:     p.captures.Load(),
		EncodeErrors: p.encodeErrors.Load(),
		Sequence:     p.sequence.Load(),
		LastCapture:  last,
		Ready:        ready,
		Running:      p.running.Load(),
	}
}

func (p *Producer) handle(raw RawFrame) {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error("capture handler panic", "error", r, "stack", string(debug.Stack()))
		}
	}()
	if !p.running.Load() {
		p.Stop()
		return
	}
	if len(raw.Pix) == 0 {
		return
	}

	start := time.Now()
	scratch := acquireBuffer(len(raw.Pix))
	defer recycleBuffer(scratch)
	copy(*scratch, raw.Pix)
	t := p.timings.Since(stats.StageBufferCopy, start)

	enc, err := p.encoder.EncodeFrame(raw.Width, raw.Height, *scratch)
	if err != nil {
		p.encodeErrors.Add(1)
		if p.logger != nil {
			p.logger.Error("capture encode", "width", raw.Width, "height", raw.Height, "error", err)
		}
		return
	}
	t = p.timings.Since(stats.StageEncode, t)

	capturedAt := raw.Timestamp
	if capturedAt.IsZero() {
		capturedAt = start
	}
	p.cache.Publish(cache.Frame{
		Width:      enc.Width,
		Height:     enc.Height,
		Payload:    enc.Payload,
		Mode:       enc.Mode,
		Sequence:   p.sequence.Add(1),
		CapturedAt: capturedAt,
	})
	t = p.timings.Since(stats.StagePublish, t)
	p.timings.Record(stats.StageCaptureTotal, t.Sub(start))

	p.captures.Add(1)
	p.lastCapture.Store(t.UnixNano())
	if len(enc.Payload) > 0 {
		p.readyOnce.Do(func() { close(p.ready) })
	}

	p.meter.Add(len(enc.Payload))
	if r, ok := p.meter.Tick(t); ok {
		p.logStats(r)
	}
}

func (p *Producer) logStats(r stats.Report) {
	if p.logger == nil {
		return
	}
	attrs := append(r.LogAttrs(), p.timings.LogAttrs(
		stats.StageBufferCopy, stats.StageEncode, stats.StagePublish, stats.StageCaptureTotal,
	)...)
	p.logger.Info("capture.stats", attrs...)
}
