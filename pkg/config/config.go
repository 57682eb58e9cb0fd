// Package config loads explorer settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Source  SourceConfig  `yaml:"source"`
	Cache   CacheConfig   `yaml:"cache"`
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port              string        `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
}

type SourceConfig struct {
	BaseURL        string        `yaml:"base_url"`
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PageSize       int           `yaml:"page_size"`
	CategoryLimit  int           `yaml:"category_limit"`
}

type CacheConfig struct {
	DBPath string        `yaml:"db_path"`
	TTL    time.Duration `yaml:"ttl"`
}

type CaptureConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	Quality int           `yaml:"quality"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "9090",
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       120 * time.Second,
			SessionTTL:        24 * time.Hour,
		},
		Source: SourceConfig{
			BaseURL:        "https://world.openfoodfacts.org",
			UserAgent:      "food-explorer/1.0 (+https://world.openfoodfacts.org)",
			RequestTimeout: 30 * time.Second,
			PageSize:       20,
			CategoryLimit:  50,
		},
		Cache: CacheConfig{
			DBPath: "./cache.db",
			TTL:    1440 * time.Minute,
		},
		Capture: CaptureConfig{
			Timeout: 45 * time.Second,
			Width:   1920,
			Height:  1080,
			Quality: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CACHE_DB_PATH"); v != "" {
		c.Cache.DBPath = v
	}
	if v := os.Getenv("CACHE_TTL_MINUTES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Cache.TTL = time.Duration(parsed) * time.Minute
		}
	}
	if v := os.Getenv("OFF_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return errors.New("config: source.base_url is required")
	}
	if c.Source.PageSize <= 0 {
		return fmt.Errorf("config: source.page_size must be positive, got %d", c.Source.PageSize)
	}
	if c.Source.CategoryLimit <= 0 {
		return fmt.Errorf("config: source.category_limit must be positive, got %d", c.Source.CategoryLimit)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return fmt.Errorf("config: capture.quality must be between 1 and 100, got %d", c.Capture.Quality)
	}
	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
