package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// pollSource turns a grab function into an event-driven Source by calling it
// on a fixed cadence. A failing tick is skipped; only the first error of a
// failure streak is logged, and recovery is logged with the streak length.
type pollSource struct {
	name     string
	interval time.Duration
	grab     func() (RawFrame, error)
	logger   *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

func newPollSource(name string, fps float64, grab func() (RawFrame, error), logger *slog.Logger) *pollSource {
	if fps <= 0 {
		fps = 30
	}
	return &pollSource{
		name:     name,
		interval: time.Duration(float64(time.Second) / fps),
		grab:     grab,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

func (s *pollSource) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	var failures int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.C:
		}
		f, err := s.grab()
		if err != nil {
			if failures == 0 && s.logger != nil {
				s.logger.Error("capture grab failed, suppressing repeats", "source", s.name, "error", err)
			}
			failures++
			continue
		}
		if failures > 0 {
			if s.logger != nil {
				s.logger.Info("capture grab recovered", "source", s.name, "failed_ticks", failures)
			}
			failures = 0
		}
		sink(f)
	}
}

func (s *pollSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
