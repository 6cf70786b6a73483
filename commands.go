package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/soocke/pixel-stream-go/app"
	"github.com/soocke/pixel-stream-go/config"
	"github.com/soocke/pixel-stream-go/domain/delivery"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.GlobalBool("debug") {
		cfg.Debug = true
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("fps") {
		cfg.TargetFPS = c.Float64("fps")
	}
	if c.IsSet("capture-fps") {
		cfg.CaptureFPS = c.Float64("capture-fps")
	}
	if c.IsSet("mode") {
		cfg.CodecMode = c.String("mode")
	}
	if c.IsSet("wire") {
		cfg.Wire = c.String("wire")
	}
	if c.IsSet("scale") {
		cfg.ScaleFactor = c.Float64("scale")
	}
	if c.IsSet("quality") {
		cfg.Quality = c.Int("quality")
	}
	if c.IsSet("color") {
		cfg.ColorMode = c.String("color")
	}
	if c.IsSet("source") {
		cfg.Source = c.String("source")
	}
	if c.IsSet("listen") {
		cfg.ListenAddr = c.String("listen")
	}
	if c.IsSet("max-frames") {
		cfg.MaxFrames = c.Int("max-frames")
	}
	if c.IsSet("snapshot") {
		cfg.SnapshotPath = c.String("snapshot")
	}
	_ = cfg.Validate()
	return cfg, nil
}

func runStream(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	logger := NewLogger(levelFor(cfg.Debug), c.GlobalString("log-format"))
	ctx, stop := signalContext()
	defer stop()

	logger.Info("stream starting",
		"addr", cfg.Addr,
		"codec", cfg.CodecMode,
		"wire", cfg.Wire,
		"source", cfg.Source,
		"target_fps", cfg.TargetFPS,
	)
	state, err := app.Stream(ctx, cfg, logger)
	switch {
	case state == delivery.StateClosed && (err == nil || errors.Is(err, delivery.ErrClosed)):
		return nil
	case err != nil:
		return cli.NewExitError(fmt.Sprintf("stream %s: %v", state, err), 1)
	}
	return nil
}

func runReceive(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	logger := NewLogger(levelFor(cfg.Debug), c.GlobalString("log-format"))
	ctx, stop := signalContext()
	defer stop()

	logger.Debug("receiver config", "listen", cfg.ListenAddr, "max_frames", cfg.MaxFrames)
	if err := app.Receive(ctx, cfg, logger); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
