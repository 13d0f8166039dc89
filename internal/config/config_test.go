package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.CorrectionDelayMS != 800 {
		t.Fatalf("expected default correction delay 800, got %d", cfg.Pipeline.CorrectionDelayMS)
	}
	if cfg.Pipeline.MinBoundary != 3 {
		t.Fatalf("expected default min boundary 3, got %d", cfg.Pipeline.MinBoundary)
	}
	if cfg.Source.Command != "whisper-cpp-stream" {
		t.Fatalf("expected default source command, got %q", cfg.Source.Command)
	}
	if cfg.Sink.Command != "wtype" {
		t.Fatalf("expected default sink command, got %q", cfg.Sink.Command)
	}
}

func TestDefaultModelPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	want := filepath.Join("/tmp/xdg", "yapper", "ggml-base.en.bin")
	if got := DefaultModelPath(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("YAPPER_BUS_ENABLED", "true")
	t.Setenv("YAPPER_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("YAPPER_BUS_USERNAME", "alice")
	t.Setenv("YAPPER_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("YAPPER_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("YAPPER_EVENT_STORE_MAX_SESSIONS", "123")
	t.Setenv("YAPPER_SOURCE_MODEL_PATH", "/models/ggml-small.bin")
	t.Setenv("YAPPER_SOURCE_EXTRA_ARGS", "-t, 4")
	t.Setenv("YAPPER_PIPELINE_CORRECTION_DELAY_MS", "1200")
	t.Setenv("YAPPER_SOURCE_STARTUP_GRACE_MS", "0")
	t.Setenv("YAPPER_SINK_MODE", "stdout")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Bus.Enabled {
		t.Fatal("expected bus enabled override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" {
		t.Fatalf("expected username override")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected event store retention mode override")
	}
	if cfg.EventStore.MaxSessions != 123 {
		t.Fatalf("expected event store max sessions override")
	}
	if cfg.Source.ModelPath != "/models/ggml-small.bin" {
		t.Fatalf("expected model path override, got %q", cfg.Source.ModelPath)
	}
	if len(cfg.Source.ExtraArgs) != 2 || cfg.Source.ExtraArgs[1] != "4" {
		t.Fatalf("expected extra args override, got %v", cfg.Source.ExtraArgs)
	}
	if cfg.Source.StartupGraceMS != 0 {
		t.Fatalf("expected startup grace override, got %d", cfg.Source.StartupGraceMS)
	}
	if cfg.Pipeline.CorrectionDelayMS != 1200 {
		t.Fatalf("expected correction delay override, got %d", cfg.Pipeline.CorrectionDelayMS)
	}
	if cfg.Sink.Mode != "stdout" {
		t.Fatalf("expected sink mode override")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yapper.yaml")
	data := []byte(`source:
  mode: mock
  script_path: ./script.txt
sink:
  mode: webhook
  webhook_url: http://localhost:9000/hook
pipeline:
  correction_delay_ms: 250
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Source.Mode != "mock" || cfg.Source.ScriptPath != "./script.txt" {
		t.Fatalf("unexpected source config %+v", cfg.Source)
	}
	if cfg.Sink.WebhookURL != "http://localhost:9000/hook" {
		t.Fatalf("unexpected webhook url %q", cfg.Sink.WebhookURL)
	}
	if cfg.Pipeline.CorrectionDelayMS != 250 {
		t.Fatalf("expected delay 250, got %d", cfg.Pipeline.CorrectionDelayMS)
	}
	if cfg.Pipeline.MinBoundary != 3 {
		t.Fatalf("expected unset fields to keep defaults")
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	cases := map[string]func(*Config){
		"source mode":    func(c *Config) { c.Source.Mode = "grpc" },
		"sink mode":      func(c *Config) { c.Sink.Mode = "clipboard" },
		"webhook url":    func(c *Config) { c.Sink.Mode = "webhook" },
		"retention mode": func(c *Config) { c.EventStore.RetentionMode = "forever" },
		"negative delay": func(c *Config) { c.Pipeline.CorrectionDelayMS = -1 },
		"stop grace":     func(c *Config) { c.Source.StopGraceMS = 0 },
		"startup grace":  func(c *Config) { c.Source.StartupGraceMS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
