package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.TargetFPS != 60 || cfg.StatsWindow != 100 || cfg.PollTimeout() != 100*time.Millisecond || cfg.ReadyTimeout() != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.yaml")
	data := []byte("target_fps: 24\ncodec_mode: JPEG\nquality: 80\nselection_x: 10\nselection_y: 20\nselection_w: 100\nselection_h: 50\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TargetFPS != 24 || cfg.CodecMode != "jpeg" || cfg.Quality != 80 {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Selection() != image.Rect(10, 20, 110, 70) {
		t.Fatalf("unexpected selection %v", cfg.Selection())
	}
	if cfg.Addr != "ws://localhost:8080" {
		t.Fatalf("unset fields should keep defaults, addr=%q", cfg.Addr)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if cfg == nil || cfg.TargetFPS != 60 {
		t.Fatalf("defaults should accompany the error")
	}
}

func TestSaveLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.json")
	cfg := DefaultConfig()
	cfg.Wire = "binary"
	cfg.ScaleFactor = 0.25
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Wire != "binary" || got.ScaleFactor != 0.25 {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestValidate_Clamps(t *testing.T) {
	cfg := &Config{TargetFPS: -1, ScaleFactor: 2, Quality: 500, ReportIntervalS: 0.1, Wire: "carrier-pigeon", SelectionW: -5, CodecMode: "png"}
	_ = cfg.Validate()
	if cfg.CodecMode != "text" {
		t.Fatalf("unknown codec should fall back to text, got %q", cfg.CodecMode)
	}
	alias := &Config{CodecMode: "Image"}
	_ = alias.Validate()
	if alias.CodecMode != "jpeg" {
		t.Fatalf("image alias should normalize to jpeg, got %q", alias.CodecMode)
	}
	if cfg.TargetFPS != 60 || cfg.ScaleFactor != 0.5 || cfg.Quality != 50 || cfg.ReportIntervalS != 1 || cfg.Wire != "text" {
		t.Fatalf("values not clamped: %+v", cfg)
	}
	if !cfg.Selection().Empty() || cfg.MinSleep() != time.Millisecond || cfg.ReportInterval() != time.Second {
		t.Fatalf("derived values wrong: sel=%v min=%v report=%v", cfg.Selection(), cfg.MinSleep(), cfg.ReportInterval())
	}
}
