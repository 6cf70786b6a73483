package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/pixel-stream-go/domain/cache"
	"github.com/soocke/pixel-stream-go/domain/codec"
	"github.com/soocke/pixel-stream-go/domain/stats"
)

// Config parameterises a delivery loop.
type Config struct {
	Addr           string
	TargetFPS      float64
	MinSleep       time.Duration
	PollTimeout    time.Duration
	ReportInterval time.Duration
	Wire           codec.Wire
}

// LoopStats counts what the loop has shipped.
type LoopStats struct {
	Sent         uint64
	Distinct     uint64
	StaleReads   uint64
	EmptyReads   uint64
	LastSequence uint64
}

// Loop is the paced consumer: it pulls the freshest frame from the cache,
// ships it, and sleeps the rest of the frame budget.
type Loop struct {
	cfg     Config
	cache   *cache.Cache
	dialer  Dialer
	timings *stats.Timings
	meter   *stats.Meter
	pacer   Pacer
	logger  *slog.Logger

	state    atomic.Int32
	sent     atomic.Uint64
	distinct atomic.Uint64
	stale    atomic.Uint64
	empty    atomic.Uint64
	lastSeq  atomic.Uint64
	warned   bool
}

// NewLoop builds a loop reading from c and sending through dialer.
func NewLoop(cfg Config, c *cache.Cache, dialer Dialer, timings *stats.Timings, logger *slog.Logger) *Loop {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 100 * time.Millisecond
	}
	if cfg.Wire == "" {
		cfg.Wire = codec.WireText
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		cfg:     cfg,
		cache:   c,
		dialer:  dialer,
		timings: timings,
		meter:   stats.NewMeter(cfg.ReportInterval, time.Now()),
		pacer:   NewPacer(cfg.TargetFPS, cfg.MinSleep),
		logger:  logger,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Sent:         l.sent.Load(),
		Distinct:     l.distinct.Load(),
		StaleReads:   l.stale.Load(),
		EmptyReads:   l.empty.Load(),
		LastSequence: l.lastSeq.Load(),
	}
}

// Run connects and streams until the remote closes (StateClosed with an
// error wrapping ErrClosed), the transport faults (StateErrored), or ctx is
// cancelled (StateClosed, nil). It never reconnects.
func (l *Loop) Run(ctx context.Context) (State, error) {
	log := l.logger.With("session", uuid.NewString(), "addr", l.cfg.Addr)
	l.setState(StateConnecting)
	log.Info("delivery connecting")

	conn, err := l.dialer.Dial(ctx, l.cfg.Addr)
	if err != nil {
		if ctx.Err() != nil {
			return l.finish(log, StateClosed, nil)
		}
		return l.finish(log, StateErrored, fmt.Errorf("delivery: connect %s: %w", l.cfg.Addr, err))
	}
	defer conn.Close()

	l.setState(StateStreaming)
	log.Info("delivery streaming", "target_fps", l.cfg.TargetFPS, "wire", string(l.cfg.Wire))
	for {
		if ctx.Err() != nil {
			return l.finish(log, StateClosed, nil)
		}
		start := time.Now()
		if err := l.cycle(conn, log); err != nil {
			if errors.Is(err, ErrClosed) {
				return l.finish(log, StateClosed, err)
			}
			return l.finish(log, StateErrored, err)
		}
		elapsed := time.Since(start)
		l.timings.Record(stats.StageCycle, elapsed)
		if err := sleepContext(ctx, l.pacer.Next(elapsed)); err != nil {
			return l.finish(log, StateClosed, nil)
		}
	}
}

func (l *Loop) cycle(conn Conn, log *slog.Logger) error {
	fetchStart := time.Now()
	f, fresh := l.cache.Consume(l.cfg.PollTimeout)
	switch fresh {
	case cache.Fresh:
		l.timings.Since(stats.StageFetch, fetchStart)
	case cache.Stale:
		l.stale.Add(1)
	case cache.NotReady:
		l.empty.Add(1)
		if !l.warned {
			l.warned = true
			log.Warn("delivery: no frame available yet")
		}
	}

	if !f.Empty() {
		kind, data := l.marshal(f)
		sendStart := time.Now()
		if err := conn.Send(kind, data); err != nil {
			return err
		}
		l.timings.Since(stats.StageSend, sendStart)
		l.sent.Add(1)
		if l.lastSeq.Swap(f.Sequence) != f.Sequence {
			l.distinct.Add(1)
		}
		l.meter.Add(len(data))
	}

	if r, ok := l.meter.Tick(time.Now()); ok {
		attrs := append(r.LogAttrs(),
			slog.Uint64("stale", l.stale.Load()),
			slog.Uint64("empty", l.empty.Load()),
		)
		attrs = append(attrs, l.timings.LogAttrs(stats.StageFetch, stats.StageSend, stats.StageCycle)...)
		log.Info("delivery.stats", attrs...)
	}
	return nil
}

func (l *Loop) marshal(f cache.Frame) (Kind, []byte) {
	m := codec.Message{Width: f.Width, Height: f.Height, Mode: f.Mode, Payload: f.Payload}
	if l.cfg.Wire == codec.WireBinary {
		return KindBinary, codec.MarshalBinary(m)
	}
	return KindText, codec.MarshalText(m)
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

func (l *Loop) finish(log *slog.Logger, s State, err error) (State, error) {
	l.setState(s)
	st := l.Stats()
	if err != nil && s == StateErrored {
		log.Error("delivery errored", "error", err, "sent", st.Sent)
	} else {
		log.Info("delivery closed", "sent", st.Sent, "remote", err != nil)
	}
	return s, err
}
