package cache

import (
	"sync"
	"time"

	"github.com/soocke/pixel-stream-go/domain/codec"
)

// Frame is an encoded, immutable snapshot. Payload must not be modified after
// Publish; frames are replaced wholesale, never patched.
type Frame struct {
	Width      int
	Height     int
	Payload    []byte
	Mode       codec.Mode
	Sequence   uint64
	CapturedAt time.Time
}

// Empty reports whether f carries no payload (the cold-start placeholder).
func (f Frame) Empty() bool { return len(f.Payload) == 0 }

// Freshness tells a consumer what Consume actually handed back.
type Freshness int

const (
	// NotReady: nothing has been published or pinned yet; the frame is empty.
	NotReady Freshness = iota
	// Stale: no new frame arrived within the timeout; the fallback was returned.
	Stale
	// Fresh: a newly published frame was consumed.
	Fresh
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "not-ready"
	}
}

// Stats counts cache activity since creation.
type Stats struct {
	Published uint64
	Consumed  uint64
	// Overwritten counts frames replaced before anyone consumed them.
	Overwritten uint64
	StaleReads  uint64
	EmptyReads  uint64
}

// Cache is a two-slot, most-recent-wins frame store shared by one producer
// and one consumer. Publish never blocks on the consumer; a slow consumer
// simply sees fewer frames.
type Cache struct {
	mu       sync.Mutex
	current  Frame
	fallback Frame
	ready    bool
	signal   chan struct{}
	stats    Stats
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{signal: make(chan struct{}, 1)}
}

// Publish makes f the current frame, demoting the previous current frame to
// fallback, and raises the readiness signal.
func (c *Cache) Publish(f Frame) {
	c.mu.Lock()
	if !c.current.Empty() {
		c.fallback = c.current
	}
	if c.ready {
		c.stats.Overwritten++
	}
	c.current = f
	c.ready = true
	c.stats.Published++
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// SeedFallback pins the current frame as fallback if no fallback exists yet.
// Called once the startup handshake has seen a first real frame, so a stalled
// source keeps serving that frame instead of the empty placeholder.
func (c *Cache) SeedFallback() {
	c.mu.Lock()
	if c.fallback.Empty() && !c.current.Empty() {
		c.fallback = c.current
	}
	c.mu.Unlock()
}

// Consume waits up to timeout for a newly published frame. On success the
// readiness signal is cleared and the frame is returned as Fresh. On timeout
// the fallback is returned as Stale, or an empty frame as NotReady.
func (c *Cache) Consume(timeout time.Duration) (Frame, Freshness) {
	if f, ok := c.take(); ok {
		return f, Fresh
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-c.signal:
			if f, ok := c.take(); ok {
				return f, Fresh
			}
		case <-timer.C:
			return c.fallbackFrame()
		}
	}
}

// Ready reports whether an unconsumed frame is waiting.
func (c *Cache) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) take() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return Frame{}, false
	}
	c.ready = false
	c.stats.Consumed++
	return c.current, true
}

func (c *Cache) fallbackFrame() (Frame, Freshness) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback.Empty() {
		c.stats.EmptyReads++
		return Frame{}, NotReady
	}
	c.stats.StaleReads++
	return c.fallback, Stale
}
