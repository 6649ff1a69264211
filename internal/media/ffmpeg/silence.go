package ffmpeg

import (
	"context"
	"strconv"
	"strings"

	"soundloom/internal/services"
)

// silenceSpan is one detected silence region, in seconds.
type silenceSpan struct {
	start float64
	end   float64
}

// detectSilences runs ffmpeg's silencedetect filter and parses its report.
// The filter writes to stderr and the command "fails" into the null muxer
// successfully, so only a non-zero exit is an error.
func (c *CLI) detectSilences(ctx context.Context, src string, thresholdDB float64) ([]silenceSpan, error) {
	filter := "silencedetect=noise=" + strconv.FormatFloat(thresholdDB, 'f', -1, 64) + "dB:d=0.02"
	cmd := commandContext(ctx, c.ffmpeg,
		"-hide_banner",
		"-i", src,
		"-af", filter,
		"-f", "null", "-",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "silencedetect", strings.TrimSpace(tail(string(output), 400)), err)
	}
	return parseSilences(string(output)), nil
}

// parseSilences extracts silence_start/silence_end pairs from silencedetect
// output. A trailing silence_start without a matching end runs to the end of
// the file and is returned with end < 0 so callers can clamp it themselves.
func parseSilences(output string) []silenceSpan {
	var spans []silenceSpan
	var pending *silenceSpan

	for _, line := range strings.Split(output, "\n") {
		if idx := strings.Index(line, "silence_start:"); idx >= 0 {
			value := firstField(line[idx+len("silence_start:"):])
			if start, err := strconv.ParseFloat(value, 64); err == nil {
				pending = &silenceSpan{start: start, end: -1}
			}
			continue
		}
		if idx := strings.Index(line, "silence_end:"); idx >= 0 {
			value := firstField(line[idx+len("silence_end:"):])
			if end, err := strconv.ParseFloat(value, 64); err == nil {
				if pending != nil {
					pending.end = end
					spans = append(spans, *pending)
					pending = nil
				} else {
					// End without a start means silence from the very top.
					spans = append(spans, silenceSpan{start: 0, end: end})
				}
			}
		}
	}
	if pending != nil {
		spans = append(spans, *pending)
	}
	return spans
}

// trimWindows turns detected silences into leading and trailing cut amounts,
// each clamped to maxTrim seconds. Only silence touching the clip edges is
// eligible; interior pauses are never cut.
func trimWindows(spans []silenceSpan, duration, maxTrim float64) (lead, tail float64) {
	const edgeTolerance = 0.02

	for _, span := range spans {
		if span.start <= edgeTolerance {
			end := span.end
			if end < 0 || end > duration {
				end = duration
			}
			lead = minFloat(end, maxTrim)
			break
		}
	}

	for i := len(spans) - 1; i >= 0; i-- {
		span := spans[i]
		end := span.end
		if end < 0 {
			end = duration
		}
		if end >= duration-edgeTolerance {
			tail = minFloat(duration-span.start, maxTrim)
			break
		}
	}

	// A clip that is entirely silence must keep at least a sliver of audio.
	const minKeep = 0.05
	if lead+tail > duration-minKeep {
		lead = minFloat(lead, (duration-minKeep)/2)
		tail = minFloat(tail, duration-minKeep-lead)
		if tail < 0 {
			tail = 0
		}
	}
	return lead, tail
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
