package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"soundloom/internal/config"
	"soundloom/internal/soundgroups"
	"soundloom/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv builds a temp-dir config, writes it to disk as TOML, and
// points HOME away from the real one so default-path lookups stay contained.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Build.ConfigFile = filepath.Join(home, "sound-groups.json")

	configPath := filepath.Join(home, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) writeGroups(t *testing.T, groups []soundgroups.SoundGroup) {
	t.Helper()
	if err := soundgroups.WriteFile(env.cfg.Build.ConfigFile, groups); err != nil {
		t.Fatalf("write sound groups: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}
