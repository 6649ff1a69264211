package config

// Default returns the built-in configuration values applied before a config
// file is decoded over them.
func Default() Config {
	return Config{
		Paths: Paths{
			SoundsDir: "sounds",
			DistDir:   "dist/sounds",
			StateDir:  "~/.local/state/soundloom",
			LogDir:    "~/.local/state/soundloom/logs",
		},
		Build: Build{
			ConfigFile:         "sound-groups.json",
			GapMs:              200,
			TrimSilence:        true,
			SilenceThresholdDB: -50,
			MaxSilenceMs:       150,
			Parallelism:        0,
			StrictAudit:        false,
			SampleRate:         44100,
			Channels:           1,
		},
		Serve: Serve{
			Bind: "127.0.0.1:8734",
		},
		Runtime: Runtime{
			BaseURL:             "http://127.0.0.1:8734",
			SkipUnverified:      true,
			FetchTimeoutSeconds: 30,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
