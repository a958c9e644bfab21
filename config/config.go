package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the bondingd / bonding-cli runtime configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress" yaml:"listen"`
	DataDir       string `toml:"DataDir" yaml:"data_dir"`
	Environment   string `toml:"Environment" yaml:"environment"`
	LogLevel      string `toml:"LogLevel" yaml:"log_level"`
	// LogFile, when set, receives logs through a size-rotated file instead of
	// stdout.
	LogFile string `toml:"LogFile" yaml:"log_file"`
	// ProgramID overrides the program that owns derived addresses.
	ProgramID      string `toml:"ProgramID" yaml:"program_id"`
	MetricsEnabled bool   `toml:"MetricsEnabled" yaml:"metrics_enabled"`
	// EventHistory bounds the committed events kept for the event feed.
	EventHistory int `toml:"EventHistory" yaml:"event_history"`
	// HistoryDSN enables the trade index. postgres:// URLs use postgres,
	// anything else is opened as sqlite.
	HistoryDSN string `toml:"HistoryDSN" yaml:"history_dsn"`

	ReadTimeoutSeconds  int `toml:"ReadTimeoutSeconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `toml:"WriteTimeoutSeconds" yaml:"write_timeout_seconds"`

	RateLimit RateLimit `toml:"rate_limit" yaml:"rate_limit"`
	Auth      Auth      `toml:"auth" yaml:"auth"`
	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
}

// Telemetry points span export at an OTLP/HTTP collector. An empty endpoint
// keeps tracing local to the process.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	// Headers is a comma separated key=value list.
	Headers string `toml:"Headers" yaml:"headers"`
}

// Auth configures bearer tokens for the trade endpoints. An empty secret
// disables buy and sell over HTTP.
type Auth struct {
	HMACSecret       string `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer           string `toml:"Issuer" yaml:"issuer"`
	Audience         string `toml:"Audience" yaml:"audience"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds" yaml:"clock_skew_seconds"`
}

// RateLimit bounds per-client request rates on the HTTP API.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// SecretEnv overrides Auth.HMACSecret so the secret can stay out of files.
const SecretEnv = "BONDINGD_HMAC_SECRET"

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		ListenAddress:       ":8090",
		DataDir:             "./bonding-data",
		Environment:         "local",
		LogLevel:            "info",
		MetricsEnabled:      true,
		EventHistory:        2048,
		ReadTimeoutSeconds:  10,
		WriteTimeoutSeconds: 10,
		RateLimit: RateLimit{
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Load loads the configuration from the given path, writing the defaults when
// no file exists yet. Files ending in .yaml or .yml are decoded as YAML,
// everything else as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if isYAML(path) {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := Default()
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaults.ListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaults.DataDir
	}
	cfg.HistoryDSN = strings.TrimSpace(cfg.HistoryDSN)
	if secret := strings.TrimSpace(os.Getenv(SecretEnv)); secret != "" {
		cfg.Auth.HMACSecret = secret
	}
	cfg.LogFile = strings.TrimSpace(cfg.LogFile)
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.EventHistory <= 0 {
		cfg.EventHistory = defaults.EventHistory
	}
	if cfg.ReadTimeoutSeconds <= 0 {
		cfg.ReadTimeoutSeconds = defaults.ReadTimeoutSeconds
	}
	if cfg.WriteTimeoutSeconds <= 0 {
		cfg.WriteTimeoutSeconds = defaults.WriteTimeoutSeconds
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
