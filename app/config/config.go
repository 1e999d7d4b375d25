// Package config loads startup configuration of the cookiestash CLI from yaml or toml files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/umputun/cookiestash/lib/cookiestash"
)

// Config holds client and store settings. Values are fixed once the client is built.
type Config struct {
	BaseURL        string        `yaml:"base_url" toml:"base_url"`
	LoginMarker    string        `yaml:"login_marker" toml:"login_marker"`
	RegisterMarker string        `yaml:"register_marker" toml:"register_marker"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	UserAgent      string        `yaml:"user_agent" toml:"user_agent"`

	Store     string        `yaml:"store" toml:"store"`           // store location, see store.Open
	CacheTTL  time.Duration `yaml:"cache_ttl" toml:"cache_ttl"`   // 0 disables the cache
	SecretKey string        `yaml:"secret_key" toml:"secret_key"` // empty disables encryption
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	c := cookiestash.DefaultConfig()
	return Config{
		BaseURL:        c.BaseURL,
		LoginMarker:    c.LoginMarker,
		RegisterMarker: c.RegisterMarker,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		Store:          "cookiestash.db",
	}
}

// Load reads the file over the defaults. The format is picked by extension: .yml/.yaml or .toml.
// Fields missing in the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base_url is required")
	case c.LoginMarker == "" && c.RegisterMarker == "":
		return errors.New("at least one of login_marker and register_marker is required")
	case c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.CacheTTL < 0:
		return errors.New("timeouts can't be negative")
	case c.SecretKey != "" && len(c.SecretKey) < 16:
		return errors.New("secret_key must be at least 16 bytes")
	}
	return nil
}

// Client returns the cookie client part of the config.
func (c Config) Client() cookiestash.Config {
	return cookiestash.Config{
		BaseURL:        c.BaseURL,
		LoginMarker:    c.LoginMarker,
		RegisterMarker: c.RegisterMarker,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
	}
}
