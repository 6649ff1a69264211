// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"soundloom/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SoundsDir = filepath.Join(base, "sounds")
	cfgVal.Paths.DistDir = filepath.Join(base, "dist")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Serve.Bind = "127.0.0.1:0"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithParallelism bounds concurrent speaker pipelines on the test config.
func WithParallelism(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Build.Parallelism = n
	}
}

// WithTrimDisabled turns silence trimming off.
func WithTrimDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Build.TrimSilence = false
	}
}

// WithStubbedBinaries writes stub ffmpeg/ffprobe executables and prepends
// them to PATH so external-tool plumbing can run without real media tools.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WriteClip writes one audio file under the config's sounds directory. The
// relative path is slash-separated "{speaker}/{name}.mp3".
func WriteClip(t testing.TB, cfg *config.Config, relPath, content string) {
	t.Helper()
	path := filepath.Join(cfg.Paths.SoundsDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", relPath, err)
	}
}
