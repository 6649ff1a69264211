// Package config loads and validates the soundloom TOML configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for the build pipeline.
type Paths struct {
	// SoundsDir holds the raw per-speaker recordings, one subdirectory per
	// speaker.
	SoundsDir string `toml:"sounds_dir"`
	// DistDir receives the packed sprite blobs and manifests.
	DistDir string `toml:"dist_dir"`
	// StateDir holds the tracking snapshot and build history database.
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Build contains sprite packing parameters.
type Build struct {
	// ConfigFile is the JSON sound-group declaration file.
	ConfigFile string `toml:"config_file"`
	// GapMs is the silence inserted between consecutive clips in a sprite.
	GapMs int `toml:"gap_ms"`
	// TrimSilence toggles leading/trailing silence removal per clip.
	TrimSilence bool `toml:"trim_silence"`
	// SilenceThresholdDB is the amplitude below which audio counts as
	// silence, in dBFS.
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
	// MaxSilenceMs caps how much silence may be trimmed from each end of a
	// clip.
	MaxSilenceMs int `toml:"max_silence_ms"`
	// Parallelism bounds concurrent per-speaker pipelines. Zero means one
	// worker per CPU.
	Parallelism int `toml:"parallelism"`
	// StrictAudit makes missing files and unverified sounds fatal.
	StrictAudit bool `toml:"strict_audit"`
	// SampleRate and Channels describe the intermediate PCM format used
	// while trimming and concatenating.
	SampleRate int `toml:"sample_rate"`
	Channels   int `toml:"channels"`
}

// Serve contains the static file server settings.
type Serve struct {
	Bind string `toml:"bind"`
}

// Publish contains object-store upload settings for the dist directory.
type Publish struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

// Runtime contains loader and playback settings.
type Runtime struct {
	// BaseURL is where manifests and sprite blobs are fetched from.
	BaseURL string `toml:"base_url"`
	// SkipUnverified drops sounds whose build-time verification failed
	// instead of attempting to play them.
	SkipUnverified bool `toml:"skip_unverified"`
	// FetchTimeoutSeconds bounds each manifest/blob fetch.
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for soundloom.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Build   Build   `toml:"build"`
	Serve   Serve   `toml:"serve"`
	Publish Publish `toml:"publish"`
	Runtime Runtime `toml:"runtime"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/soundloom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("soundloom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DistDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// TrackingPath returns the tracking snapshot location.
func (c *Config) TrackingPath() string {
	return filepath.Join(c.Paths.StateDir, "tracking.json")
}

// HistoryPath returns the sqlite build history location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the single-writer build lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "build.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
