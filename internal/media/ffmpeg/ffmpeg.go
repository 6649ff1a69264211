// Package ffmpeg wraps the ffmpeg and ffprobe command line tools behind the
// capabilities the sprite packer needs: duration probing, silence trimming,
// segment concatenation with gap insertion, and final encoding.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"soundloom/internal/services"
)

var commandContext = exec.CommandContext

// Client defines the audio tooling behaviour the packer depends on.
type Client interface {
	// DurationMs reports a file's duration in integer milliseconds.
	DurationMs(ctx context.Context, path string) (int, error)
	// Trim writes a silence-trimmed, format-normalized WAV copy of src to
	// dst. Trimming is capped per end by opts.MaxTrim.
	Trim(ctx context.Context, src, dst string, opts TrimOptions) error
	// Convert writes a format-normalized WAV copy of src to dst without
	// trimming. Used as the fallback when trimming fails.
	Convert(ctx context.Context, src, dst string, opts TrimOptions) error
	// Concat joins the input WAV files in order into one WAV at dst,
	// inserting gap of silence between consecutive clips.
	Concat(ctx context.Context, inputs []string, gap time.Duration, dst string, opts TrimOptions) error
	// Encode converts a WAV blob into the published MP3 sprite.
	Encode(ctx context.Context, src, dst string) error
}

// TrimOptions carries silence detection thresholds and the intermediate PCM
// format.
type TrimOptions struct {
	// ThresholdDB is the amplitude (dBFS) below which audio counts as
	// silence.
	ThresholdDB float64
	// MaxTrim caps how much may be cut from each end of a clip.
	MaxTrim    time.Duration
	SampleRate int
	Channels   int
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinaries overrides the default executable names.
func WithBinaries(ffmpegBin, ffprobeBin string) Option {
	return func(c *CLI) {
		if ffmpegBin != "" {
			c.ffmpeg = ffmpegBin
		}
		if ffprobeBin != "" {
			c.ffprobe = ffprobeBin
		}
	}
}

// CLI invokes the ffmpeg/ffprobe binaries.
type CLI struct {
	ffmpeg  string
	ffprobe string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Trim detects leading and trailing silence below the threshold, clamps each
// cut to opts.MaxTrim, and writes the trimmed clip as normalized WAV.
func (c *CLI) Trim(ctx context.Context, src, dst string, opts TrimOptions) error {
	durationMs, err := c.DurationMs(ctx, src)
	if err != nil {
		return err
	}
	duration := float64(durationMs) / 1000

	silences, err := c.detectSilences(ctx, src, opts.ThresholdDB)
	if err != nil {
		return err
	}

	lead, tail := trimWindows(silences, duration, opts.MaxTrim.Seconds())
	keepEnd := duration - tail

	args := []string{"-hide_banner", "-y", "-i", src}
	filter := fmt.Sprintf("atrim=start=%.4f:end=%.4f,asetpts=PTS-STARTPTS", lead, keepEnd)
	args = append(args, "-af", filter)
	args = append(args, normalizeArgs(opts)...)
	args = append(args, dst)

	return c.runFFmpeg(ctx, "trim", args)
}

// Convert writes a normalized WAV copy of src without trimming.
func (c *CLI) Convert(ctx context.Context, src, dst string, opts TrimOptions) error {
	args := []string{"-hide_banner", "-y", "-i", src}
	args = append(args, normalizeArgs(opts)...)
	args = append(args, dst)
	return c.runFFmpeg(ctx, "convert", args)
}

// Concat joins inputs in order, inserting a generated silence clip between
// consecutive entries, using the concat demuxer with stream copy. All inputs
// must already share the normalized WAV format.
func (c *CLI) Concat(ctx context.Context, inputs []string, gap time.Duration, dst string, opts TrimOptions) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "concat", "no input files", nil)
	}

	workDir := filepath.Dir(dst)

	gapPath := ""
	if gap > 0 && len(inputs) > 1 {
		gapPath = filepath.Join(workDir, "gap.wav")
		if err := c.makeSilence(ctx, gapPath, gap, opts); err != nil {
			return err
		}
	}

	listPath := filepath.Join(workDir, "concat.txt")
	var list strings.Builder
	for i, input := range inputs {
		if i > 0 && gapPath != "" {
			fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(gapPath))
		}
		fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(input))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	args := []string{
		"-hide_banner", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		dst,
	}
	return c.runFFmpeg(ctx, "concat", args)
}

// Encode converts the concatenated WAV into the published MP3 blob.
func (c *CLI) Encode(ctx context.Context, src, dst string) error {
	args := []string{
		"-hide_banner", "-y",
		"-i", src,
		"-codec:a", "libmp3lame",
		"-qscale:a", "4",
		dst,
	}
	return c.runFFmpeg(ctx, "encode", args)
}

// makeSilence generates a silence-only WAV of the given duration.
func (c *CLI) makeSilence(ctx context.Context, dst string, d time.Duration, opts TrimOptions) error {
	source := fmt.Sprintf("anullsrc=r=%d:cl=%s", opts.SampleRate, channelLayout(opts.Channels))
	args := []string{
		"-hide_banner", "-y",
		"-f", "lavfi", "-i", source,
		"-t", fmt.Sprintf("%.3f", d.Seconds()),
	}
	args = append(args, normalizeArgs(opts)...)
	args = append(args, dst)
	return c.runFFmpeg(ctx, "silence", args)
}

func (c *CLI) runFFmpeg(ctx context.Context, operation string, args []string) error {
	cmd := commandContext(ctx, c.ffmpeg, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, strings.TrimSpace(tail(string(output), 400)), err)
	}
	return nil
}

func normalizeArgs(opts TrimOptions) []string {
	return []string{
		"-ar", fmt.Sprintf("%d", opts.SampleRate),
		"-ac", fmt.Sprintf("%d", opts.Channels),
		"-c:a", "pcm_s16le",
	}
}

func channelLayout(channels int) string {
	if channels == 2 {
		return "stereo"
	}
	return "mono"
}

// escapeConcatPath escapes single quotes for the concat demuxer list format.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
