package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"soundloom/internal/config"
	"soundloom/internal/logging"
	"soundloom/internal/soundgroups"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		level := cfg.Logging.Level
		if c.verboseFlag != nil && *c.verboseFlag {
			level = "debug"
		}
		logger, err := logging.New(logging.Options{
			Level:  level,
			Format: cfg.Logging.Format,
			OutputPaths: []string{
				"stderr",
				filepath.Join(cfg.Paths.LogDir, "soundloom.log"),
			},
		})
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// loadGroups reads the declarative sound-group config the build and audit
// commands operate on.
func (c *commandContext) loadGroups() ([]soundgroups.SoundGroup, string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	path := cfg.Build.ConfigFile
	groups, err := soundgroups.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return groups, path, nil
}
