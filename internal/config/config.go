package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultServiceURL = "http://127.0.0.1:8000"

const (
	EnvServiceURL     = "NEURODX_SERVICE_URL"
	EnvLogLevel       = "NEURODX_LOG_LEVEL"
	EnvRequestTimeout = "NEURODX_REQUEST_TIMEOUT"
	EnvHistory        = "NEURODX_HISTORY"
)

type Config struct {
	ServiceURL string `yaml:"service_url"`
	LogLevel   string `yaml:"log_level"`
	// RequestTimeout of zero means requests are bounded only by cancellation.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	History        bool          `yaml:"history"`
}

func Default() Config {
	return Config{
		ServiceURL: DefaultServiceURL,
		LogLevel:   "info",
		History:    true,
	}
}

// LoadDotEnv loads .env from the working directory into the process
// environment. A missing file is not an error; existing variables win.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads the yaml file at path, if any, on top of Default, then applies
// NEURODX_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServiceURL); ok && v != "" {
		cfg.ServiceURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup(EnvRequestTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRequestTimeout, v, err)
		}
		cfg.RequestTimeout = d
	}
	if v, ok := lookup(EnvHistory); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvHistory, v, err)
		}
		cfg.History = b
	}
	return nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.ServiceURL)
	if err != nil {
		return fmt.Errorf("invalid service url %q: %w", c.ServiceURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid service url %q: scheme must be http or https", c.ServiceURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid service url %q: missing host", c.ServiceURL)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout)
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (c Config) Level() (zap.AtomicLevel, error) {
	level := strings.TrimSpace(c.LogLevel)
	if level == "" {
		return zap.NewAtomicLevelAt(zap.InfoLevel), nil
	}
	parsed, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return parsed, nil
}

// Save writes cfg to path atomically with 0600 permissions, creating the
// parent directory.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", configDir, err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Chmod(0600); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	if dir, err := os.Open(configDir); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	success = true
	return nil
}
