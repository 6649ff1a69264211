package main

import (
	"fmt"
	"io"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"soundloom/internal/builder"
	"soundloom/internal/history"
	"soundloom/internal/media/ffmpeg"
	"soundloom/internal/sprite"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var (
		force        bool
		debug        bool
		maxSilenceMs int
		trimSilence  bool
		speakers     []string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Regenerate sprite blobs and manifests for changed speakers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("maxSilenceMs") {
				cfg.Build.MaxSilenceMs = maxSilenceMs
			}
			if cmd.Flags().Changed("trimSilence") {
				cfg.Build.TrimSilence = trimSilence
			}

			groups, configPath, err := ctx.loadGroups()
			if err != nil {
				return err
			}

			// One builder per dist directory; concurrent builds would race
			// on the staged renames and the tracking snapshot.
			buildLock := flock.New(cfg.LockPath())
			locked, err := buildLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire build lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another build is running (lock held at %s)", cfg.LockPath())
			}
			defer func() { _ = buildLock.Unlock() }()

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				logger.Warn("build history unavailable", "error", err)
				store = nil
			}
			if store != nil {
				defer store.Close()
			}

			tools := ffmpeg.NewCLI(ffmpeg.WithBinaries(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
			packer := sprite.NewPacker(tools, sprite.Options{
				GapMs:        cfg.Build.GapMs,
				TrimSilence:  cfg.Build.TrimSilence,
				ThresholdDB:  cfg.Build.SilenceThresholdDB,
				MaxSilenceMs: cfg.Build.MaxSilenceMs,
				SampleRate:   cfg.Build.SampleRate,
				Channels:     cfg.Build.Channels,
			}, logger)

			report, err := builder.New(cfg, packer, store, logger).Build(cmd.Context(), groups, builder.Options{
				Force:    force,
				Debug:    debug,
				Speakers: speakers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printBuildReport(out, report)

			missing := report.MissingFiles()
			if cfg.Build.StrictAudit && (len(missing) > 0 || report.Failed()) {
				return fmt.Errorf("strict mode: %d missing files, %d failed speakers (config %s)",
					len(missing), report.Count(history.StatusFailed), configPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Regenerate every speaker, ignoring the fingerprint cache")
	cmd.Flags().BoolVar(&debug, "debug", false, "Preserve per-speaker staging directories")
	cmd.Flags().IntVar(&maxSilenceMs, "maxSilenceMs", 150, "Maximum silence trimmed from each clip end")
	cmd.Flags().BoolVar(&trimSilence, "trimSilence", true, "Trim leading/trailing silence per clip")
	cmd.Flags().StringSliceVar(&speakers, "speaker", nil, "Restrict the build to the given speakers")
	return cmd
}

func printBuildReport(out io.Writer, report *builder.Report) {
	rows := make([][]string, 0, len(report.Outcomes))
	for _, outcome := range report.Sorted() {
		detail := ""
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		} else if len(outcome.Missing) > 0 {
			detail = fmt.Sprintf("%d missing files", len(outcome.Missing))
		}
		rows = append(rows, []string{
			outcome.Speaker,
			outcome.Status,
			fmt.Sprintf("%d", outcome.TotalFiles),
			outcome.Fingerprint,
			outcome.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Speaker", "Status", "Files", "Fingerprint", "Took", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Run %s: %d regenerated, %d skipped, %d failed\n",
		report.RunID,
		report.Count(history.StatusRegenerated),
		report.Count(history.StatusSkipped),
		report.Count(history.StatusFailed))

	if missing := report.MissingFiles(); len(missing) > 0 {
		fmt.Fprintf(out, "Missing files (%d):\n", len(missing))
		for _, path := range missing {
			fmt.Fprintf(out, "  %s\n", path)
		}
	}
}
