package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Build.GapMs != 200 {
		t.Fatalf("default gap = %d, want 200", cfg.Build.GapMs)
	}
	if cfg.Build.MaxSilenceMs != 150 {
		t.Fatalf("default max silence = %d, want 150", cfg.Build.MaxSilenceMs)
	}
	if cfg.Build.SilenceThresholdDB != -50 {
		t.Fatalf("default threshold = %g, want -50", cfg.Build.SilenceThresholdDB)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
sounds_dir = "` + filepath.Join(dir, "sounds") + `"
dist_dir = "` + filepath.Join(dir, "dist") + `"
state_dir = "` + filepath.Join(dir, "state") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[build]
gap_ms = 120

[runtime]
base_url = "http://cdn.example.net/sounds/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Build.GapMs != 120 {
		t.Fatalf("gap = %d, want 120", cfg.Build.GapMs)
	}
	if strings.HasSuffix(cfg.Runtime.BaseURL, "/") {
		t.Fatalf("base url not trimmed: %q", cfg.Runtime.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative gap", func(c *Config) { c.Build.GapMs = -1 }},
		{"positive threshold", func(c *Config) { c.Build.SilenceThresholdDB = 3 }},
		{"bad channels", func(c *Config) { c.Build.Channels = 5 }},
		{"bad format", func(c *Config) { c.Logging.Format = "yaml" }},
		{"empty sounds dir", func(c *Config) { c.Paths.SoundsDir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "gap_ms") {
		t.Fatal("sample config missing gap_ms")
	}
}
