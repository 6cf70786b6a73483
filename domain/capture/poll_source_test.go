package capture

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPollSource_LogsFailureStreakOnce(t *testing.T) {
	var out lockedBuffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	calls := 0
	grab := func() (RawFrame, error) {
		calls++
		if calls <= 5 {
			return RawFrame{}, errors.New("no display")
		}
		return RawFrame{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}}, nil
	}
	src := newPollSource("test", 500, grab, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frames := 0
	err := src.Run(ctx, func(RawFrame) {
		frames++
		src.Stop()
	})
	if err != nil {
		t.Fatalf("stop should be clean, got %v", err)
	}
	if frames < 1 {
		t.Fatalf("expected a frame after recovery")
	}
	logs := out.String()
	if n := strings.Count(logs, "capture grab failed"); n != 1 {
		t.Fatalf("expected one failure record for the streak, got %d:\n%s", n, logs)
	}
	if !strings.Contains(logs, `"failed_ticks":5`) {
		t.Fatalf("expected recovery record with streak length:\n%s", logs)
	}
}
