package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the triage engine.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Kube    KubeConfig    `yaml:"kube"`
	Logging LoggingConfig `yaml:"logging"`
	Rules   RulesConfig   `yaml:"rules"`
	Triage  TriageConfig  `yaml:"triage"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// KubeConfig configures the Kubernetes API client. An empty Kubeconfig
// tries in-cluster credentials first.
type KubeConfig struct {
	Kubeconfig string        `yaml:"kubeconfig"`
	Context    string        `yaml:"context"`
	Timeout    time.Duration `yaml:"timeout"`
	QPS        float32       `yaml:"qps"`
	Burst      int           `yaml:"burst"`
	PageSize   int64         `yaml:"pageSize"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig points at an optional event rule pack.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// TriageConfig bounds a single triage request.
type TriageConfig struct {
	DefaultEventLimit int           `yaml:"defaultEventLimit"`
	MaxEventLimit     int           `yaml:"maxEventLimit"`
	ParallelDetectors bool          `yaml:"parallelDetectors"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PLATFORMTRIAGE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied, for commands that run without a config file.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	return &cfg
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Triage.DefaultEventLimit <= 0 {
		errs = append(errs, errors.New("triage.defaultEventLimit must be positive"))
	}
	if c.Triage.MaxEventLimit <= 0 {
		errs = append(errs, errors.New("triage.maxEventLimit must be positive"))
	} else if c.Triage.DefaultEventLimit > c.Triage.MaxEventLimit {
		errs = append(errs, errors.New("triage.defaultEventLimit exceeds triage.maxEventLimit"))
	}
	if c.Triage.RequestTimeout <= 0 {
		errs = append(errs, errors.New("triage.requestTimeout must be positive"))
	}
	if c.Kube.PageSize < 0 {
		errs = append(errs, errors.New("kube.pageSize must not be negative"))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sampleRatio must be within [0,1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Kube: KubeConfig{
			Timeout:  15 * time.Second,
			QPS:      20,
			Burst:    40,
			PageSize: 500,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Rules:   RulesConfig{Path: "configs/rules/default.yaml"},
		Triage: TriageConfig{
			DefaultEventLimit: 50,
			MaxEventLimit:     500,
			RequestTimeout:    20 * time.Second,
		},
		Tracing: TracingConfig{SampleRatio: 1},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLATFORMTRIAGE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PLATFORMTRIAGE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("PLATFORMTRIAGE_KUBECONFIG"); v != "" {
		cfg.Kube.Kubeconfig = v
	} else if v := os.Getenv("KUBECONFIG"); v != "" && cfg.Kube.Kubeconfig == "" {
		cfg.Kube.Kubeconfig = v
	}
	if v := os.Getenv("PLATFORMTRIAGE_KUBE_CONTEXT"); v != "" {
		cfg.Kube.Context = v
	}
	if v := os.Getenv("PLATFORMTRIAGE_KUBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Kube.Timeout = d
		}
	}
	if v := os.Getenv("PLATFORMTRIAGE_KUBE_QPS"); v != "" {
		if qps, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Kube.QPS = float32(qps)
		}
	}
	if v := os.Getenv("PLATFORMTRIAGE_KUBE_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil {
			cfg.Kube.Burst = burst
		}
	}
	if v := os.Getenv("PLATFORMTRIAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PLATFORMTRIAGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PLATFORMTRIAGE_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("PLATFORMTRIAGE_EVENT_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Triage.DefaultEventLimit = limit
		}
	}
	if v := os.Getenv("PLATFORMTRIAGE_MAX_EVENT_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Triage.MaxEventLimit = limit
		}
	}
	if v := os.Getenv("PLATFORMTRIAGE_PARALLEL_DETECTORS"); v != "" {
		cfg.Triage.ParallelDetectors = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("PLATFORMTRIAGE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Triage.RequestTimeout = d
		}
	}
	if v := os.Getenv("PLATFORMTRIAGE_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("PLATFORMTRIAGE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("PLATFORMTRIAGE_TRACING_INSECURE"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Tracing.Insecure = true
	}
}
