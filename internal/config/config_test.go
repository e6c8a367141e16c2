package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel info, got %s", cfg.LogLevel)
	}
	if cfg.Pipeline.Workers != 0 {
		t.Errorf("expected Workers 0, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.MaxPackets != 5_000_000 {
		t.Errorf("expected MaxPackets 5000000, got %d", cfg.Pipeline.MaxPackets)
	}
	if cfg.Pipeline.MaxFlows != 500_000 {
		t.Errorf("expected MaxFlows 500000, got %d", cfg.Pipeline.MaxFlows)
	}
	if cfg.Classifier.Type != "static" {
		t.Errorf("expected classifier type static, got %s", cfg.Classifier.Type)
	}
	if cfg.Classifier.Timeout != 30*time.Second {
		t.Errorf("expected classifier timeout 30s, got %s", cfg.Classifier.Timeout)
	}
	if cfg.Report.Path != "report.json" || !cfg.Report.Summary {
		t.Errorf("unexpected report defaults: %+v", cfg.Report)
	}
	if cfg.Storage.SQLitePath != "" {
		t.Errorf("expected SQLite store disabled by default, got %s", cfg.Storage.SQLitePath)
	}
	if cfg.Storage.Retention != 30*24*time.Hour {
		t.Errorf("expected Retention 720h, got %s", cfg.Storage.Retention)
	}
	if cfg.Publish.NATSURL != "" || cfg.Publish.Subject != "netscapex.flows" {
		t.Errorf("unexpected publish defaults: %+v", cfg.Publish)
	}
	if cfg.Web.Listen != ":8080" {
		t.Errorf("expected Listen :8080, got %s", cfg.Web.Listen)
	}
	if cfg.Web.MaxUploadMB != 256 {
		t.Errorf("expected MaxUploadMB 256, got %d", cfg.Web.MaxUploadMB)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
pipeline:
  workers: 4
  max_flows: 1000
classifier:
  type: http
  url: "http://scorer:9000/score"
  timeout: 5s
storage:
  sqlite_path: "/tmp/test.db"
  retention: 24h
web:
  listen: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Overridden values
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel debug, got %s", cfg.LogLevel)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("expected Workers 4, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.MaxFlows != 1000 {
		t.Errorf("expected MaxFlows 1000, got %d", cfg.Pipeline.MaxFlows)
	}
	if cfg.Classifier.Type != "http" || cfg.Classifier.URL != "http://scorer:9000/score" {
		t.Errorf("unexpected classifier: %+v", cfg.Classifier)
	}
	if cfg.Classifier.Timeout != 5*time.Second {
		t.Errorf("expected classifier timeout 5s, got %s", cfg.Classifier.Timeout)
	}
	if cfg.Storage.SQLitePath != "/tmp/test.db" {
		t.Errorf("expected SQLitePath /tmp/test.db, got %s", cfg.Storage.SQLitePath)
	}
	if cfg.Storage.Retention != 24*time.Hour {
		t.Errorf("expected Retention 24h, got %s", cfg.Storage.Retention)
	}
	if cfg.Web.Listen != ":9090" {
		t.Errorf("expected Listen :9090, got %s", cfg.Web.Listen)
	}

	// Default values should be preserved for unset fields
	if cfg.Pipeline.MaxPackets != 5_000_000 {
		t.Errorf("expected default MaxPackets, got %d", cfg.Pipeline.MaxPackets)
	}
	if cfg.Storage.PruneInterval != time.Hour {
		t.Errorf("expected default PruneInterval 1h, got %s", cfg.Storage.PruneInterval)
	}
	if cfg.Report.Path != "report.json" {
		t.Errorf("expected default report path, got %s", cfg.Report.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOptional should tolerate a missing file: %v", err)
	}
	if cfg.Web.Listen != ":8080" {
		t.Errorf("expected defaults, got %+v", cfg.Web)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  workers: [invalid")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
	if _, err := LoadOptional(path); err == nil {
		t.Fatal("LoadOptional should still fail on invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Pipeline.Workers = -1 }},
		{"negative max packets", func(c *Config) { c.Pipeline.MaxPackets = -1 }},
		{"probability above one", func(c *Config) { c.Classifier.Probability = 1.5 }},
		{"http without url", func(c *Config) { c.Classifier.Type = "http" }},
		{"unknown classifier", func(c *Config) { c.Classifier.Type = "onnx" }},
		{"negative upload limit", func(c *Config) { c.Web.MaxUploadMB = -1 }},
	}
	for _, tt := range tests {
		cfg := Defaults()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
