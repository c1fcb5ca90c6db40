package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api_url: https://cms.example.com/
email: editor@example.com
token: v2.local.abc
rate_limit: 2.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.APIURL != "https://cms.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if cfg.Token != "v2.local.abc" || cfg.Email != "editor@example.com" {
		t.Errorf("unexpected credentials: %+v", cfg)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("expected rate limit 2.5, got %v", cfg.RateLimit)
	}
	if cfg.Path() != path {
		t.Errorf("expected path %q, got %q", path, cfg.Path())
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
api_url = "https://cms.example.com"
token = "v2.local.xyz"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.APIURL != "https://cms.example.com" || cfg.Token != "v2.local.xyz" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.RateLimit != DefaultRateLimit {
		t.Errorf("expected default rate limit, got %v", cfg.RateLimit)
	}
}

func TestLoadFromMissing(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new", "config.yaml")

	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL || cfg.Path() != path {
		t.Errorf("unexpected config: %+v path=%q", cfg, cfg.Path())
	}

	cfg.Token = "tok"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	back, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if back.Token != "tok" {
		t.Errorf("expected saved token, got %q", back.Token)
	}
}

func TestLoadFromInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_url: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL || cfg.HasToken() {
		t.Errorf("unexpected default config: %+v", cfg)
	}
	if filepath.Base(cfg.Path()) != DefaultConfigFile {
		t.Errorf("expected default path, got %q", cfg.Path())
	}
}

func TestLoadPrefersYAMLOverTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, DefaultConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, TOMLConfigFile), []byte(`token = "from-toml"`), 0o644)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token != "from-toml" {
		t.Errorf("expected TOML fallback, got %q", cfg.Token)
	}

	os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(`token: from-yaml`), 0o644)
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token != "from-yaml" {
		t.Errorf("expected YAML to win, got %q", cfg.Token)
	}
}

func TestSaveRoundTripKeepsFormat(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := &Config{APIURL: "http://cms.test", Token: "tok", RateLimit: 3, path: path}
			if err := Save(cfg); err != nil {
				t.Fatalf("Save() error: %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Errorf("expected 0600, got %v", info.Mode().Perm())
			}

			back, err := LoadFrom(path)
			if err != nil {
				t.Fatalf("LoadFrom() error: %v", err)
			}
			if back.Token != "tok" || back.APIURL != "http://cms.test" || back.RateLimit != 3 {
				t.Errorf("round trip mismatch: %+v", back)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DISPATCH_API_URL", "http://env.test")
	t.Setenv("DISPATCH_TOKEN", "env-token")

	cfg := defaultConfig()
	cfg.ApplyEnv()
	if cfg.APIURL != "http://env.test" || cfg.Token != "env-token" {
		t.Errorf("env not applied: %+v", cfg)
	}
}
