package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.SoundsDir, err = expandPath(c.Paths.SoundsDir); err != nil {
		return err
	}
	if c.Paths.DistDir, err = expandPath(c.Paths.DistDir); err != nil {
		return err
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Build.ConfigFile, err = expandPath(c.Build.ConfigFile); err != nil {
		return err
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Runtime.BaseURL = strings.TrimRight(strings.TrimSpace(c.Runtime.BaseURL), "/")
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.SoundsDir) == "" {
		return errors.New("config: sounds_dir is required")
	}
	if strings.TrimSpace(c.Paths.DistDir) == "" {
		return errors.New("config: dist_dir is required")
	}
	if c.Build.GapMs < 0 {
		return fmt.Errorf("config: gap_ms must be >= 0, got %d", c.Build.GapMs)
	}
	if c.Build.MaxSilenceMs < 0 {
		return fmt.Errorf("config: max_silence_ms must be >= 0, got %d", c.Build.MaxSilenceMs)
	}
	if c.Build.SilenceThresholdDB > 0 {
		return fmt.Errorf("config: silence_threshold_db must be <= 0 dBFS, got %g", c.Build.SilenceThresholdDB)
	}
	if c.Build.Parallelism < 0 {
		return fmt.Errorf("config: parallelism must be >= 0, got %d", c.Build.Parallelism)
	}
	if c.Build.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.Build.SampleRate)
	}
	if c.Build.Channels != 1 && c.Build.Channels != 2 {
		return fmt.Errorf("config: channels must be 1 or 2, got %d", c.Build.Channels)
	}
	if c.Runtime.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("config: fetch_timeout_seconds must be positive, got %d", c.Runtime.FetchTimeoutSeconds)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: unsupported log format %q", c.Logging.Format)
	}
	return nil
}
