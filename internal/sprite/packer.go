package sprite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"soundloom/internal/logging"
	"soundloom/internal/media/ffmpeg"
)

// ErrNoFiles is returned when a speaker tier would be packed from zero
// files. An empty sprite cannot be produced.
var ErrNoFiles = errors.New("sprite: no input files")

// InputFile is one clip to pack, in packing order.
type InputFile struct {
	// Path is the absolute location of the source clip.
	Path string
	// Key is the logical sound name: the base name without extension.
	Key string
	// OriginalPath is the speaker-relative source path recorded in the
	// manifest for auditing.
	OriginalPath string
}

// Options carries packing parameters.
type Options struct {
	// GapMs is the silence inserted between consecutive clips.
	GapMs int
	// TrimSilence toggles per-clip leading/trailing silence removal.
	TrimSilence bool
	// ThresholdDB is the silence amplitude threshold in dBFS.
	ThresholdDB float64
	// MaxSilenceMs caps the trim per clip end.
	MaxSilenceMs int
	SampleRate   int
	Channels     int
}

// Result is the outcome of packing one speaker tier.
type Result struct {
	// BlobPath is the encoded sprite blob written into the work directory.
	BlobPath string
	// Map holds each input's segment, keyed by sound key.
	Map Map
	// TotalFiles is the number of clips packed.
	TotalFiles int
	// TotalDurationMs is the maximum start+length across entries. Measuring
	// this way tolerates any packer-introduced trailing padding.
	TotalDurationMs int
}

// Packer concatenates trimmed clips into sprite blobs.
type Packer struct {
	tools  ffmpeg.Client
	opts   Options
	logger *slog.Logger
}

// NewPacker constructs a packer over the given audio tooling.
func NewPacker(tools ffmpeg.Client, opts Options, logger *slog.Logger) *Packer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Packer{tools: tools, opts: opts, logger: logging.WithComponent(logger, "packer")}
}

// Pack processes files in the given order into one blob written to workDir
// under blobName, returning the sprite map measured against the blob
// timeline. Trimming failures degrade to the untrimmed original per clip;
// any other failure aborts the whole pack.
func (p *Packer) Pack(ctx context.Context, speaker string, files []InputFile, workDir, blobName string) (*Result, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: speaker %s", ErrNoFiles, speaker)
	}

	trimOpts := ffmpeg.TrimOptions{
		ThresholdDB: p.opts.ThresholdDB,
		MaxTrim:     time.Duration(p.opts.MaxSilenceMs) * time.Millisecond,
		SampleRate:  p.opts.SampleRate,
		Channels:    p.opts.Channels,
	}

	segments := make([]string, 0, len(files))
	spriteMap := make(Map, len(files))
	cursor := 0
	maxEnd := 0

	for i, file := range files {
		if _, exists := spriteMap[file.Key]; exists {
			return nil, fmt.Errorf("sprite: duplicate sound key %q for speaker %s", file.Key, speaker)
		}

		segment := filepath.Join(workDir, fmt.Sprintf("seg-%03d.wav", i))
		if err := p.prepareSegment(ctx, file, segment, trimOpts); err != nil {
			return nil, err
		}

		durationMs, err := p.tools.DurationMs(ctx, segment)
		if err != nil {
			return nil, fmt.Errorf("sprite: probe segment for %q: %w", file.Key, err)
		}

		spriteMap[file.Key] = Entry{
			Start:        cursor,
			Length:       durationMs,
			OriginalPath: file.OriginalPath,
		}
		if end := cursor + durationMs; end > maxEnd {
			maxEnd = end
		}
		cursor += durationMs
		if i < len(files)-1 {
			cursor += p.opts.GapMs
		}
		segments = append(segments, segment)
	}

	blobWav := filepath.Join(workDir, "blob.wav")
	gap := time.Duration(p.opts.GapMs) * time.Millisecond
	if err := p.tools.Concat(ctx, segments, gap, blobWav, trimOpts); err != nil {
		return nil, fmt.Errorf("sprite: concat speaker %s: %w", speaker, err)
	}

	blobPath := filepath.Join(workDir, blobName)
	if err := p.tools.Encode(ctx, blobWav, blobPath); err != nil {
		return nil, fmt.Errorf("sprite: encode speaker %s: %w", speaker, err)
	}

	return &Result{
		BlobPath:        blobPath,
		Map:             spriteMap,
		TotalFiles:      len(files),
		TotalDurationMs: maxEnd,
	}, nil
}

// prepareSegment trims a clip into the normalized intermediate format,
// falling back to a plain conversion when trimming fails.
func (p *Packer) prepareSegment(ctx context.Context, file InputFile, dst string, opts ffmpeg.TrimOptions) error {
	if p.opts.TrimSilence {
		err := p.tools.Trim(ctx, file.Path, dst, opts)
		if err == nil {
			return nil
		}
		p.logger.Warn("silence trim failed, using original clip",
			"path", file.Path, "error", err)
	}
	if err := p.tools.Convert(ctx, file.Path, dst, opts); err != nil {
		return fmt.Errorf("sprite: prepare %q: %w", file.Key, err)
	}
	return nil
}
