// Package builder orchestrates the sprite build pipeline: fingerprint-gated
// change detection, pattern expansion, per-speaker packing, and manifest
// publication. Speakers are independent units of work; one speaker's failure
// never aborts the others, and a failed speaker keeps its previously
// published output.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"soundloom/internal/config"
	"soundloom/internal/fingerprint"
	"soundloom/internal/history"
	"soundloom/internal/logging"
	"soundloom/internal/manifest"
	"soundloom/internal/soundgroups"
	"soundloom/internal/sprite"
	"soundloom/internal/tracking"
)

// Options adjusts one build invocation.
type Options struct {
	// Force ignores the fingerprint cache and regenerates every speaker.
	Force bool
	// Debug preserves per-speaker staging directories for inspection.
	Debug bool
	// Speakers restricts the build to the listed speakers; empty means all.
	Speakers []string
}

// Outcome is one speaker's result within a run.
type Outcome struct {
	Speaker     string
	Status      string
	Fingerprint string
	TotalFiles  int
	Missing     []string
	Duration    time.Duration
	Err         error
}

// Report aggregates a whole run.
type Report struct {
	RunID    string
	Outcomes []Outcome
	Master   *manifest.Master
}

// Builder runs the sprite pipeline.
type Builder struct {
	cfg     *config.Config
	packer  *sprite.Packer
	history *history.Store
	logger  *slog.Logger
}

// New constructs a builder. The history store may be nil; run recording is
// then skipped.
func New(cfg *config.Config, packer *sprite.Packer, store *history.Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		cfg:     cfg,
		packer:  packer,
		history: store,
		logger:  logging.WithComponent(logger, "builder"),
	}
}

// Build expands the groups, regenerates every speaker whose fingerprint
// changed, and publishes a master manifest covering this run's successes
// plus all previously published speakers.
func (b *Builder) Build(ctx context.Context, groups []soundgroups.SoundGroup, opts Options) (*Report, error) {
	expanded := soundgroups.ExpandAll(groups)

	plans, err := planSpeakers(expanded, b.cfg.Paths.SoundsDir, opts.Speakers)
	if err != nil {
		return nil, err
	}

	previousTracking, err := tracking.Load(b.cfg.TrackingPath())
	if err != nil {
		return nil, err
	}
	previousMaster, err := manifest.Load(filepath.Join(b.cfg.Paths.DistDir, manifest.Filename))
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := b.logger.With(slog.String(logging.FieldRunID, runID))
	logger.Info("build starting", "speakers", len(plans), "force", opts.Force)

	var mu sync.Mutex
	outcomes := make([]Outcome, 0, len(plans))
	newTracking := tracking.Snapshot{}
	entries := map[string]manifest.SpeakerEntry{}

	parallelism := b.cfg.Build.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for _, speaker := range sortedSpeakers(plans) {
		plan := plans[speaker]
		group.Go(func() error {
			outcome, entry, files := b.processSpeaker(groupCtx, logger, plan, previousTracking, opts)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			if outcome.Status == history.StatusRegenerated {
				entries[plan.speaker] = entry
				newTracking[plan.speaker] = tracking.SpeakerState{
					Files:         files,
					Hash:          outcome.Fingerprint,
					LastGenerated: time.Now().UTC().Format(time.RFC3339),
				}
			}
			mu.Unlock()

			b.record(ctx, runID, outcome)
			// Per-speaker failures are reported, not propagated; returning
			// an error here would cancel sibling speakers.
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	master := manifest.New(runID)
	for speaker, entry := range entries {
		master.Sprites[speaker] = entry
	}
	master.MergePrevious(previousMaster)
	if err := master.Write(filepath.Join(b.cfg.Paths.DistDir, manifest.Filename)); err != nil {
		return nil, err
	}

	// Carry forward tracking state for speakers that were skipped or failed
	// this run, so they are retried (failed) or stay cached (skipped).
	merged := tracking.Snapshot{}
	for speaker, state := range previousTracking {
		merged[speaker] = state
	}
	for speaker, state := range newTracking {
		merged[speaker] = state
	}
	if err := merged.Write(b.cfg.TrackingPath()); err != nil {
		return nil, err
	}

	report := &Report{RunID: runID, Outcomes: outcomes, Master: master}
	logger.Info("build finished",
		"regenerated", report.Count(history.StatusRegenerated),
		"skipped", report.Count(history.StatusSkipped),
		"failed", report.Count(history.StatusFailed))
	return report, nil
}

// processSpeaker runs one speaker's pipeline end to end. All outputs are
// staged in a temporary directory and only renamed into the dist directory
// after every tier packed successfully, so a crash or failure mid-speaker
// leaves the previous publication intact.
func (b *Builder) processSpeaker(ctx context.Context, logger *slog.Logger, plan *speakerPlan, prior tracking.Snapshot, opts Options) (Outcome, manifest.SpeakerEntry, fingerprint.Snapshot) {
	started := time.Now()
	speakerLogger := logger.With(slog.String(logging.FieldSpeaker, plan.speaker))
	outcome := Outcome{Speaker: plan.speaker, Missing: plan.missing}

	fail := func(err error) (Outcome, manifest.SpeakerEntry, fingerprint.Snapshot) {
		speakerLogger.Error("speaker build failed", "error", err)
		outcome.Status = history.StatusFailed
		outcome.Err = err
		outcome.Duration = time.Since(started)
		return outcome, manifest.SpeakerEntry{}, nil
	}

	files, err := fingerprint.Scan(filepath.Join(b.cfg.Paths.SoundsDir, plan.speaker), speakerLogger)
	if err != nil {
		return fail(err)
	}
	outcome.Fingerprint = fingerprint.Compute(files)

	if !prior.NeedsRegen(plan.speaker, outcome.Fingerprint, opts.Force) {
		speakerLogger.Debug("speaker unchanged, skipping")
		outcome.Status = history.StatusSkipped
		outcome.Duration = time.Since(started)
		return outcome, manifest.SpeakerEntry{}, nil
	}

	if plan.empty() {
		return fail(fmt.Errorf("speaker %s: no packable files referenced by config", plan.speaker))
	}

	stageDir, err := os.MkdirTemp(b.cfg.Paths.DistDir, ".stage-"+plan.speaker+"-")
	if err != nil {
		return fail(fmt.Errorf("create staging dir: %w", err))
	}
	if !opts.Debug {
		defer os.RemoveAll(stageDir)
	}

	generatedAt := time.Now().UTC().Format(time.RFC3339)
	entry := manifest.SpeakerEntry{}

	type tierJob struct {
		tier  sprite.Tier
		files []sprite.InputFile
		ref   **manifest.TierRef
	}
	jobs := []tierJob{
		{sprite.TierWord, plan.word, &entry.Word},
		{sprite.TierLong, plan.long, &entry.Long},
	}

	var staged []string
	for _, job := range jobs {
		if len(job.files) == 0 {
			continue
		}
		tierDir := filepath.Join(stageDir, string(job.tier))
		if err := os.MkdirAll(tierDir, 0o755); err != nil {
			return fail(fmt.Errorf("create tier staging dir: %w", err))
		}

		blobName := sprite.BlobFilename(plan.speaker, job.tier)
		result, err := b.packer.Pack(ctx, plan.speaker, job.files, tierDir, blobName)
		if err != nil {
			return fail(err)
		}

		tierManifest := &sprite.Manifest{
			Speaker:       plan.speaker,
			GeneratedAt:   generatedAt,
			TotalFiles:    result.TotalFiles,
			TotalDuration: result.TotalDurationMs,
			Src:           []string{blobName},
			SpriteMap:     result.Map,
		}
		manifestName := sprite.ManifestFilename(plan.speaker, job.tier)
		if err := sprite.WriteManifest(filepath.Join(tierDir, manifestName), tierManifest); err != nil {
			return fail(err)
		}

		*job.ref = &manifest.TierRef{
			AudioFile:     blobName,
			ManifestFile:  manifestName,
			TotalFiles:    result.TotalFiles,
			TotalDuration: result.TotalDurationMs,
			GeneratedAt:   generatedAt,
		}
		entry.TotalFiles += result.TotalFiles
		entry.TotalDuration += result.TotalDurationMs
		staged = append(staged,
			filepath.Join(tierDir, blobName),
			filepath.Join(tierDir, manifestName),
		)
	}

	// Publish: every tier packed, move the staged files into place.
	for _, stagedPath := range staged {
		target := filepath.Join(b.cfg.Paths.DistDir, filepath.Base(stagedPath))
		if err := os.Rename(stagedPath, target); err != nil {
			return fail(fmt.Errorf("publish %s: %w", filepath.Base(stagedPath), err))
		}
	}

	speakerLogger.Info("speaker regenerated",
		"files", entry.TotalFiles,
		"duration_ms", entry.TotalDuration,
		"missing", len(plan.missing))

	outcome.Status = history.StatusRegenerated
	outcome.TotalFiles = entry.TotalFiles
	outcome.Duration = time.Since(started)
	return outcome, entry, files
}

func (b *Builder) record(ctx context.Context, runID string, outcome Outcome) {
	if b.history == nil {
		return
	}
	errText := ""
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	record := history.Record{
		RunID:       runID,
		Speaker:     outcome.Speaker,
		Status:      outcome.Status,
		Fingerprint: outcome.Fingerprint,
		TotalFiles:  outcome.TotalFiles,
		DurationMs:  outcome.Duration.Milliseconds(),
		Error:       errText,
	}
	if err := b.history.Append(ctx, record); err != nil {
		b.logger.Warn("record build history", "error", err)
	}
}
