package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"soundloom/internal/loader"
	"soundloom/internal/playback"
	"soundloom/internal/services"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var (
		baseURL string
		volume  float64
	)

	cmd := &cobra.Command{
		Use:   "play <speaker> <sound>",
		Short: "Fetch a published sprite and play one sound through the speakers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			speaker, key := args[0], args[1]
			if baseURL == "" {
				baseURL = cfg.Runtime.BaseURL
			}
			fetchTimeout := time.Duration(cfg.Runtime.FetchTimeoutSeconds) * time.Second

			sprites, err := loader.New(loader.Options{
				BaseURL:      baseURL,
				FetchTimeout: fetchTimeout,
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			if _, err := sprites.Initialize(runCtx); err != nil {
				return err
			}
			if err := sprites.LoadWordTier(runCtx, speaker); err != nil {
				return err
			}
			sprites.LoadLongTiersInBackground(runCtx, []string{speaker})

			engine := playback.NewEngine(sprites, playback.NewOtoSink(), nil, logger)

			// Long sounds may still be fetching; retry while the miss is
			// recoverable, bounded by the fetch timeout.
			deadline := time.Now().Add(fetchTimeout)
			var handle *playback.Handle
			for {
				handle, err = engine.Play(speaker, key, playback.Options{VolumeFactor: volume})
				if err == nil {
					break
				}
				if !services.Recoverable(err) || time.Now().After(deadline) {
					return err
				}
				select {
				case <-runCtx.Done():
					return runCtx.Err()
				case <-time.After(100 * time.Millisecond):
				}
			}

			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-handle.Done():
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Played %s/%s (%s tier, %dms)\n",
				speaker, key, handle.Tier, handle.DurationMs)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Manifest base URL (defaults to the configured runtime.base_url)")
	cmd.Flags().Float64Var(&volume, "volume", 1.0, "Playback volume factor")
	return cmd
}
