package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"soundloom/internal/services"
)

// DurationMs executes ffprobe against the provided path and returns the
// container duration in integer milliseconds.
func (c *CLI) DurationMs(ctx context.Context, path string) (int, error) {
	cmd := commandContext(ctx, c.ffprobe,
		"-v", "error", "-hide_banner",
		"-show_entries", "format=duration",
		"-of", "json",
		"--", path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "ffprobe", "duration", strings.TrimSpace(string(output)), err)
	}

	var result struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", result.Format.Duration, err)
	}
	return int(math.Round(seconds * 1000)), nil
}
