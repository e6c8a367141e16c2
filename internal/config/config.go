package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all NetscapeX configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Report     ReportConfig     `yaml:"report"`
	Storage    StorageConfig    `yaml:"storage"`
	Publish    PublishConfig    `yaml:"publish"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Web        WebConfig        `yaml:"web"`
}

// PipelineConfig bounds and parallelises a single analysis run.
type PipelineConfig struct {
	Workers    int `yaml:"workers"`     // per-flow worker goroutines (0 = NumCPU)
	MaxPackets int `yaml:"max_packets"` // packet records accepted per run (0 = unbounded)
	MaxFlows   int `yaml:"max_flows"`   // flows accepted per run (0 = unbounded)
}

// ClassifierConfig selects the external probability model.
type ClassifierConfig struct {
	Type        string        `yaml:"type"`        // "static" (default) or "http"
	Probability float64       `yaml:"probability"` // constant probability for "static"
	URL         string        `yaml:"url"`         // scoring endpoint for "http"
	Timeout     time.Duration `yaml:"timeout"`
}

// ReportConfig controls the JSON report and console summary.
type ReportConfig struct {
	Path    string `yaml:"path"`
	Summary bool   `yaml:"summary"`
}

// StorageConfig holds settings for the optional SQLite result store.
type StorageConfig struct {
	SQLitePath    string        `yaml:"sqlite_path"` // empty disables the store
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// PublishConfig holds settings for publishing scored flows to NATS.
type PublishConfig struct {
	NATSURL string `yaml:"nats_url"` // empty disables publishing
	Subject string `yaml:"subject"`
}

// MetricsConfig holds settings for Prometheus metrics output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // write metrics here after a batch run
}

// WebConfig holds settings for the HTTP service mode.
type WebConfig struct {
	Listen      string `yaml:"listen"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			MaxPackets: 5_000_000,
			MaxFlows:   500_000,
		},
		Classifier: ClassifierConfig{
			Type:    "static",
			Timeout: 30 * time.Second,
		},
		Report: ReportConfig{
			Path:    "report.json",
			Summary: true,
		},
		Storage: StorageConfig{
			Retention:     30 * 24 * time.Hour,
			PruneInterval: time.Hour,
		},
		Publish: PublishConfig{
			Subject: "netscapex.flows",
		},
		Web: WebConfig{
			Listen:      ":8080",
			MaxUploadMB: 256,
		},
	}
}

// Load reads a YAML configuration file from path and returns a Config.
// Values not specified in the file retain their defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config file: %w", err)
	}

	return cfg, nil
}

// LoadOptional behaves like Load but returns the defaults when the file
// does not exist.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must be >= 0, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxPackets < 0 || c.Pipeline.MaxFlows < 0 {
		return fmt.Errorf("pipeline limits must be >= 0")
	}
	switch c.Classifier.Type {
	case "", "static":
		if c.Classifier.Probability < 0 || c.Classifier.Probability > 1 {
			return fmt.Errorf("classifier.probability must be in [0,1], got %v", c.Classifier.Probability)
		}
	case "http":
		if c.Classifier.URL == "" {
			return fmt.Errorf("classifier.url is required for type http")
		}
	default:
		return fmt.Errorf("unknown classifier.type %q", c.Classifier.Type)
	}
	if c.Web.MaxUploadMB < 0 {
		return fmt.Errorf("web.max_upload_mb must be >= 0, got %d", c.Web.MaxUploadMB)
	}
	return nil
}
