package delivery

import (
	"context"
	"time"
)

// DefaultMinSleep is the floor applied to every pacing sleep.
const DefaultMinSleep = time.Millisecond

// Pacer converts the time spent on a cycle into the remaining sleep needed to
// converge on the target rate.
type Pacer struct {
	Interval time.Duration
	Min      time.Duration
}

// NewPacer returns a pacer for fps frames per second.
func NewPacer(fps float64, min time.Duration) Pacer {
	if fps <= 0 {
		fps = 60
	}
	if min <= 0 {
		min = DefaultMinSleep
	}
	return Pacer{Interval: time.Duration(float64(time.Second) / fps), Min: min}
}

// Next returns max(Min, Interval-elapsed); never negative.
func (p Pacer) Next(elapsed time.Duration) time.Duration {
	d := p.Interval - elapsed
	if d < p.Min {
		d = p.Min
	}
	if d < 0 {
		d = 0
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
