package app

import (
	"log/slog"

	"github.com/soocke/pixel-stream-go/config"
	"github.com/soocke/pixel-stream-go/domain/cache"
	"github.com/soocke/pixel-stream-go/domain/capture"
	"github.com/soocke/pixel-stream-go/domain/codec"
	"github.com/soocke/pixel-stream-go/domain/delivery"
	"github.com/soocke/pixel-stream-go/domain/receiver"
	"github.com/soocke/pixel-stream-go/domain/stats"
)

// Container assembles the streaming pipeline and the receiving endpoint.
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Timings  *stats.Timings
	Cache    *cache.Cache
	Encoder  codec.FrameEncoder
	Source   capture.Source
	Producer *capture.Producer
	Loop     *delivery.Loop
	Receiver *receiver.Receiver
}

// BuildContainer constructs all components. No goroutines are started and no
// connection is opened; Stream and Receive drive the result.
func BuildContainer(cfg *config.Config, logger *slog.Logger) *Container {
	_ = cfg.Validate()
	c := &Container{Config: cfg, Logger: logger}
	c.Timings = stats.NewTimings(cfg.StatsWindow)
	c.Cache = cache.New()
	c.Encoder = newEncoder(cfg)
	c.Source = newSource(cfg, logger)
	c.Producer = capture.NewProducer(c.Source, c.Encoder, c.Cache, c.Timings, cfg.ReportInterval(), logger.With("component", "capture"))
	c.Loop = delivery.NewLoop(delivery.Config{
		Addr:           cfg.Addr,
		TargetFPS:      cfg.TargetFPS,
		MinSleep:       cfg.MinSleep(),
		PollTimeout:    cfg.PollTimeout(),
		ReportInterval: cfg.ReportInterval(),
		Wire:           codec.Wire(cfg.Wire),
	}, c.Cache, delivery.NewWebsocketDialer(), c.Timings, logger.With("component", "delivery"))
	c.Receiver = receiver.New(receiver.Options{
		ReportInterval: cfg.ReportInterval(),
		MaxFrames:      cfg.MaxFrames,
	}, logger.With("component", "receiver"))
	return c
}

func newEncoder(cfg *config.Config) codec.FrameEncoder {
	if mode, err := codec.ParseMode(cfg.CodecMode); err == nil && mode == codec.ModeJPEG {
		return codec.NewImageCodec(cfg.ScaleFactor, cfg.Quality, codec.ColorMode(cfg.ColorMode))
	}
	return codec.TextCodec{}
}

func newSource(cfg *config.Config, logger *slog.Logger) capture.Source {
	l := logger.With("component", "source")
	if cfg.Source == "pattern" {
		return capture.NewPatternSource(cfg.PatternWidth, cfg.PatternHeight, cfg.CaptureFPS, l)
	}
	return capture.NewScreenSource(cfg.CaptureFPS, cfg.Selection(), l)
}
