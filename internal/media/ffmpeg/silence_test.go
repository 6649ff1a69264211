package ffmpeg

import (
	"math"
	"testing"
)

const sampleDetectOutput = `
[mp3 @ 0x55] Estimating duration from bitrate
[silencedetect @ 0x56] silence_start: 0
[silencedetect @ 0x56] silence_end: 0.31 | silence_duration: 0.31
[silencedetect @ 0x56] silence_start: 1.2
[silencedetect @ 0x56] silence_end: 1.35 | silence_duration: 0.15
[silencedetect @ 0x56] silence_start: 2.6
size=N/A time=00:00:02.80 bitrate=N/A speed= 500x
`

func TestParseSilences(t *testing.T) {
	spans := parseSilences(sampleDetectOutput)
	if len(spans) != 3 {
		t.Fatalf("parsed %d spans, want 3", len(spans))
	}
	if spans[0].start != 0 || spans[0].end != 0.31 {
		t.Fatalf("leading span = %+v", spans[0])
	}
	if spans[2].end != -1 {
		t.Fatalf("open trailing span end = %v, want -1", spans[2].end)
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTrimWindowsClampsToMax(t *testing.T) {
	spans := parseSilences(sampleDetectOutput)
	lead, tail := trimWindows(spans, 2.8, 0.15)
	if !approx(lead, 0.15) {
		t.Fatalf("lead = %v, want clamp to 0.15", lead)
	}
	if !approx(tail, 0.15) {
		t.Fatalf("tail = %v, want clamp to 0.15", tail)
	}
}

func TestTrimWindowsIgnoresInteriorSilence(t *testing.T) {
	spans := []silenceSpan{{start: 1.2, end: 1.4}}
	lead, tail := trimWindows(spans, 3.0, 0.5)
	if lead != 0 || tail != 0 {
		t.Fatalf("interior silence trimmed: lead=%v tail=%v", lead, tail)
	}
}

func TestTrimWindowsFullTrailing(t *testing.T) {
	spans := []silenceSpan{{start: 2.5, end: -1}}
	lead, tail := trimWindows(spans, 2.8, 1.0)
	if lead != 0 {
		t.Fatalf("lead = %v, want 0", lead)
	}
	if !approx(tail, 0.3) {
		t.Fatalf("tail = %v, want 0.3", tail)
	}
}

func TestTrimWindowsAllSilentClip(t *testing.T) {
	spans := []silenceSpan{{start: 0, end: -1}}
	lead, tail := trimWindows(spans, 1.0, 5.0)
	if lead+tail >= 1.0 {
		t.Fatalf("whole clip trimmed away: lead=%v tail=%v", lead, tail)
	}
}
