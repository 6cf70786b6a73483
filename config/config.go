package config

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soocke/pixel-stream-go/domain/codec"
)

// Config holds runtime configuration for capture, encoding and delivery.
// Fields may be loaded from a JSON or YAML file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug" yaml:"debug"`

	// Transport
	Addr       string `json:"addr" yaml:"addr"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	Wire       string `json:"wire" yaml:"wire"` // text | binary

	// Pacing and diagnostics
	TargetFPS       float64 `json:"target_fps" yaml:"target_fps"`
	CaptureFPS      float64 `json:"capture_fps" yaml:"capture_fps"`
	StatsWindow     int     `json:"stats_window" yaml:"stats_window"`
	ReportIntervalS float64 `json:"report_interval_s" yaml:"report_interval_s"`
	PollTimeoutMS   int     `json:"poll_timeout_ms" yaml:"poll_timeout_ms"`
	ReadyTimeoutMS  int     `json:"ready_timeout_ms" yaml:"ready_timeout_ms"`
	MinSleepMS      int     `json:"min_sleep_ms" yaml:"min_sleep_ms"`

	// Codec
	CodecMode   string  `json:"codec_mode" yaml:"codec_mode"` // text | jpeg (alias: image)
	ScaleFactor float64 `json:"scale_factor" yaml:"scale_factor"`
	Quality     int     `json:"quality" yaml:"quality"`
	ColorMode   string  `json:"color_mode" yaml:"color_mode"` // rgb | gray

	// Source
	Source        string `json:"source" yaml:"source"` // screen | pattern
	PatternWidth  int    `json:"pattern_width" yaml:"pattern_width"`
	PatternHeight int    `json:"pattern_height" yaml:"pattern_height"`

	// Capture region; zero size means full screen.
	SelectionX int `json:"selection_x" yaml:"selection_x"`
	SelectionY int `json:"selection_y" yaml:"selection_y"`
	SelectionW int `json:"selection_w" yaml:"selection_w"`
	SelectionH int `json:"selection_h" yaml:"selection_h"`

	// Receiver
	MaxFrames    int    `json:"max_frames" yaml:"max_frames"`
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"` // last frame written here on shutdown
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:           false,
		Addr:            "ws://localhost:8080",
		ListenAddr:      ":8080",
		Wire:            "text",
		TargetFPS:       60,
		CaptureFPS:      30,
		StatsWindow:     100,
		ReportIntervalS: 1,
		PollTimeoutMS:   100,
		ReadyTimeoutMS:  5000,
		MinSleepMS:      1,
		CodecMode:       "text",
		ScaleFactor:     0.5,
		Quality:         50,
		ColorMode:       "rgb",
		Source:          "screen",
		PatternWidth:    320,
		PatternHeight:   240,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = "ws://localhost:8080"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	c.Wire = strings.ToLower(c.Wire)
	if c.Wire != "binary" {
		c.Wire = "text"
	}
	if c.TargetFPS <= 0 || c.TargetFPS > 1000 {
		c.TargetFPS = 60
	}
	if c.CaptureFPS <= 0 || c.CaptureFPS > 1000 {
		c.CaptureFPS = 30
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = 100
	}
	if c.ReportIntervalS < 1 {
		c.ReportIntervalS = 1
	}
	if c.PollTimeoutMS <= 0 {
		c.PollTimeoutMS = 100
	}
	if c.ReadyTimeoutMS <= 0 {
		c.ReadyTimeoutMS = 5000
	}
	if c.MinSleepMS <= 0 {
		c.MinSleepMS = 1
	}
	c.CodecMode = strings.ToLower(c.CodecMode)
	if mode, err := codec.ParseMode(c.CodecMode); err != nil {
		c.CodecMode = codec.ModeText.String()
	} else {
		c.CodecMode = mode.String()
	}
	if c.ScaleFactor <= 0 || c.ScaleFactor > 1 {
		c.ScaleFactor = 0.5
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = 50
	}
	c.ColorMode = strings.ToLower(c.ColorMode)
	if c.ColorMode != "gray" {
		c.ColorMode = "rgb"
	}
	c.Source = strings.ToLower(c.Source)
	if c.Source != "pattern" {
		c.Source = "screen"
	}
	if c.PatternWidth <= 0 {
		c.PatternWidth = 320
	}
	if c.PatternHeight <= 0 {
		c.PatternHeight = 240
	}
	if c.SelectionW < 0 || c.SelectionH < 0 {
		c.SelectionW, c.SelectionH = 0, 0
	}
	if c.MaxFrames < 0 {
		c.MaxFrames = 0
	}
	return nil
}

// Selection returns the configured capture region (empty for full screen).
func (c *Config) Selection() image.Rectangle {
	if c.SelectionW <= 0 || c.SelectionH <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(c.SelectionX, c.SelectionY, c.SelectionX+c.SelectionW, c.SelectionY+c.SelectionH)
}

// ReportInterval returns the stats reporting interval.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalS * float64(time.Second))
}

// PollTimeout returns the cache poll timeout.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMS) * time.Millisecond
}

// ReadyTimeout returns the startup handshake timeout.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMS) * time.Millisecond
}

// MinSleep returns the pacing sleep floor.
func (c *Config) MinSleep() time.Duration {
	return time.Duration(c.MinSleepMS) * time.Millisecond
}

// Load attempts to read configuration from the given file path. Files ending in
// .yaml or .yml are parsed as YAML, anything else as JSON. If the file does not
// exist it returns DefaultConfig(). On decode error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path, as YAML or JSON by extension.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
