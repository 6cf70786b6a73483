package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/soocke/pixel-stream-go/config"
	"github.com/soocke/pixel-stream-go/debug"
	"github.com/soocke/pixel-stream-go/domain/codec"
	"github.com/soocke/pixel-stream-go/domain/delivery"
	"github.com/soocke/pixel-stream-go/domain/receiver"
)

const shutdownTimeout = 5 * time.Second

// Stream captures frames and delivers them to cfg.Addr until the connection
// ends or ctx is cancelled. The producer is stopped once the loop terminates.
func Stream(ctx context.Context, cfg *config.Config, logger *slog.Logger) (delivery.State, error) {
	c := BuildContainer(cfg, logger)
	startDebug(ctx, cfg, logger)
	return stream(ctx, c)
}

// stream runs c's producer and loop. A producer failure ends the loop and is
// reported as StateErrored.
func stream(ctx context.Context, c *Container) (delivery.State, error) {
	logger := c.Logger
	capCtx, cancelCapture := context.WithCancel(ctx)
	defer cancelCapture()
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	var wg sync.WaitGroup
	var capErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Producer.Run(capCtx); err != nil {
			capErr = err
			logger.Error("capture failed", "error", err)
			cancelLoop()
		}
	}()

	if c.Producer.WaitReady(loopCtx, c.Config.ReadyTimeout()) {
		logger.Info("capture ready", "encoder", c.Encoder.Mode().String())
	}

	state, err := c.Loop.Run(loopCtx)

	c.Producer.Stop()
	cancelCapture()
	wg.Wait()

	ps := c.Producer.Stats()
	ls := c.Loop.Stats()
	logger.Info("stream finished",
		"state", state.String(),
		"captures", ps.Captures,
		"sent", ls.Sent,
		"distinct", ls.Distinct,
	)
	if capErr != nil && ctx.Err() == nil {
		return delivery.StateErrored, fmt.Errorf("capture: %w", capErr)
	}
	return state, err
}

// Receive serves the websocket receiver on cfg.ListenAddr until ctx is done.
func Receive(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	_ = cfg.Validate()
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	return Serve(ctx, ln, cfg, logger)
}

// Serve runs the receiver on an existing listener until ctx is done.
func Serve(ctx context.Context, ln net.Listener, cfg *config.Config, logger *slog.Logger) error {
	c := BuildContainer(cfg, logger)
	startDebug(ctx, cfg, logger)

	srv := &http.Server{Handler: c.Receiver, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("receiver listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Hijacked websocket connections are not tracked by Shutdown.
		_ = srv.Close()
	}
	st := c.Receiver.Stats()
	logger.Info("receiver stopped", "connections", st.Connections, "frames", st.Frames, "malformed", st.Malformed)
	if cfg.SnapshotPath != "" {
		if err := writeSnapshot(c.Receiver, cfg.SnapshotPath); err != nil {
			logger.Warn("snapshot not written", "path", cfg.SnapshotPath, "error", err)
		} else {
			logger.Info("snapshot written", "path", cfg.SnapshotPath)
		}
	}
	return nil
}

// writeSnapshot stores the receiver's last frame as a PNG file.
func writeSnapshot(r *receiver.Receiver, path string) error {
	img, err := r.Snapshot()
	if err != nil {
		return err
	}
	data, err := codec.EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func startDebug(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if !cfg.Debug {
		return
	}
	debug.StartGoroutineLogger(ctx, 5*time.Second, logger.With("component", "debug"))
	debug.StartMemLogger(ctx, 5*time.Second, logger.With("component", "debug"))
}
