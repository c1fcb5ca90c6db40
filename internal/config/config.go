// Package config loads and manages the Dispatch CLI configuration file
// stored at ~/.dispatch/config.yaml (or config.toml).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is the directory under the user's home for CLI state.
const DefaultConfigDir = ".dispatch"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// TOMLConfigFile is read when DefaultConfigFile does not exist.
const TOMLConfigFile = "config.toml"

// DefaultAPIURL is the server address used when none is configured.
const DefaultAPIURL = "http://localhost:8000"

// DefaultRateLimit is the default client request rate, per second.
const DefaultRateLimit = 10.0

// Config represents the contents of the CLI config file.
type Config struct {
	APIURL    string  `yaml:"api_url" toml:"api_url"`
	Email     string  `yaml:"email,omitempty" toml:"email,omitempty"`
	Token     string  `yaml:"token,omitempty" toml:"token,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"`

	path string
}

// Path returns the file the config was loaded from, or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// configDir returns the path to the config directory.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// Load reads ~/.dispatch/config.yaml, falling back to config.toml.
// Returns a default config if neither file exists.
func Load() (*Config, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	yamlPath := filepath.Join(dir, DefaultConfigFile)
	for _, path := range []string{yamlPath, filepath.Join(dir, TOMLConfigFile)} {
		cfg, err := LoadFrom(path)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	cfg := defaultConfig()
	cfg.path = yamlPath
	return cfg, nil
}

// LoadFrom reads a config file. Files ending in .toml are parsed as TOML,
// everything else as YAML.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.path = path
	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault reads path like LoadFrom but returns a default config bound to
// path when the file does not exist yet, so a later Save creates it.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadFrom(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = defaultConfig()
		cfg.path = path
		return cfg, nil
	}
	return cfg, err
}

// Save writes the config back to the file it was loaded from, keeping its format.
func Save(cfg *Config) error {
	path := cfg.path
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, DefaultConfigFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}

	// the file holds an auth token
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	cfg.path = path
	return nil
}

// ApplyEnv overrides file values with DISPATCH_API_URL and DISPATCH_TOKEN.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DISPATCH_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("DISPATCH_TOKEN"); v != "" {
		c.Token = v
	}
}

// HasToken reports whether a login token is stored.
func (c *Config) HasToken() bool {
	return c.Token != ""
}

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultConfig() *Config {
	return &Config{APIURL: DefaultAPIURL, RateLimit: DefaultRateLimit}
}
