package sprite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"soundloom/internal/logging"
	"soundloom/internal/media/ffmpeg"
)

// fakeTools satisfies ffmpeg.Client without invoking any binary. Segment
// durations are canned per source base name; trim failures are scripted.
type fakeTools struct {
	durationsMs map[string]int // by source base name
	failTrim    map[string]bool
	trimmed     []string
	converted   []string

	segmentSource map[string]string // segment path -> source base name
}

func newFakeTools(durations map[string]int) *fakeTools {
	return &fakeTools{
		durationsMs:   durations,
		failTrim:      map[string]bool{},
		segmentSource: map[string]string{},
	}
}

func (f *fakeTools) DurationMs(_ context.Context, path string) (int, error) {
	base := filepath.Base(path)
	if src, ok := f.segmentSource[path]; ok {
		base = src
	}
	ms, ok := f.durationsMs[base]
	if !ok {
		return 0, errors.New("unknown file " + base)
	}
	return ms, nil
}

func (f *fakeTools) Trim(_ context.Context, src, dst string, _ ffmpeg.TrimOptions) error {
	base := filepath.Base(src)
	if f.failTrim[base] {
		return errors.New("trim blew up")
	}
	f.trimmed = append(f.trimmed, base)
	f.segmentSource[dst] = base
	return os.WriteFile(dst, []byte("wav:"+base), 0o644)
}

func (f *fakeTools) Convert(_ context.Context, src, dst string, _ ffmpeg.TrimOptions) error {
	base := filepath.Base(src)
	f.converted = append(f.converted, base)
	f.segmentSource[dst] = base
	return os.WriteFile(dst, []byte("wav:"+base), 0o644)
}

func (f *fakeTools) Concat(_ context.Context, inputs []string, _ time.Duration, dst string, _ ffmpeg.TrimOptions) error {
	var parts []string
	for _, input := range inputs {
		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
	}
	return os.WriteFile(dst, []byte(strings.Join(parts, "|")), 0o644)
}

func (f *fakeTools) Encode(_ context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("mp3:"), data...), 0o644)
}

func defaultOptions() Options {
	return Options{
		GapMs:        200,
		TrimSilence:  true,
		ThresholdDB:  -50,
		MaxSilenceMs: 150,
		SampleRate:   44100,
		Channels:     1,
	}
}

func inputs(names ...string) []InputFile {
	files := make([]InputFile, 0, len(names))
	for _, name := range names {
		files = append(files, InputFile{
			Path:         filepath.Join("/src/kh", name),
			Key:          strings.TrimSuffix(name, filepath.Ext(name)),
			OriginalPath: "kh/" + name,
		})
	}
	return files
}

func TestPackOffsetsNonOverlappingWithGap(t *testing.T) {
	tools := newFakeTools(map[string]int{
		"ka 1.mp3":  500,
		"ka 2.mp3":  720,
		"kha 1.mp3": 610,
	})
	packer := NewPacker(tools, defaultOptions(), logging.NewNop())

	result, err := packer.Pack(context.Background(), "kh", inputs("ka 1.mp3", "ka 2.mp3", "kha 1.mp3"), t.TempDir(), "kh-word-sprite.mp3")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if result.TotalFiles != 3 {
		t.Fatalf("total files = %d", result.TotalFiles)
	}

	// Sort entries by start and check strict ordering plus gap separation.
	type span struct {
		key        string
		start, end int
	}
	var spans []span
	for key, entry := range result.Map {
		spans = append(spans, span{key, entry.Start, entry.Start + entry.Length})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	for i := 1; i < len(spans); i++ {
		gap := spans[i].start - spans[i-1].end
		if gap < 200 {
			t.Fatalf("gap between %q and %q = %dms, want >= 200", spans[i-1].key, spans[i].key, gap)
		}
	}

	if spans[0].start != 0 {
		t.Fatalf("first entry starts at %d, want 0", spans[0].start)
	}
	want := Entry{Start: 0, Length: 500, OriginalPath: "kh/ka 1.mp3"}
	if result.Map["ka 1"] != want {
		t.Fatalf("entry = %+v, want %+v", result.Map["ka 1"], want)
	}
	if result.Map["ka 2"].Start != 700 {
		t.Fatalf("second start = %d, want 700", result.Map["ka 2"].Start)
	}
	if result.Map["kha 1"].Start != 1620 {
		t.Fatalf("third start = %d, want 1620", result.Map["kha 1"].Start)
	}
	if result.TotalDurationMs != 1620+610 {
		t.Fatalf("total duration = %d, want %d", result.TotalDurationMs, 1620+610)
	}
}

func TestPackTrimFailureFallsBackPerFile(t *testing.T) {
	tools := newFakeTools(map[string]int{"ka 1.mp3": 500, "ka 2.mp3": 400})
	tools.failTrim["ka 2.mp3"] = true
	packer := NewPacker(tools, defaultOptions(), logging.NewNop())

	result, err := packer.Pack(context.Background(), "kh", inputs("ka 1.mp3", "ka 2.mp3"), t.TempDir(), "blob.mp3")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(result.Map) != 2 {
		t.Fatalf("map size = %d", len(result.Map))
	}
	if len(tools.trimmed) != 1 || tools.trimmed[0] != "ka 1.mp3" {
		t.Fatalf("trimmed = %v", tools.trimmed)
	}
	if len(tools.converted) != 1 || tools.converted[0] != "ka 2.mp3" {
		t.Fatalf("converted fallback = %v", tools.converted)
	}
}

func TestPackZeroFilesIsHardError(t *testing.T) {
	packer := NewPacker(newFakeTools(nil), defaultOptions(), logging.NewNop())
	_, err := packer.Pack(context.Background(), "kh", nil, t.TempDir(), "blob.mp3")
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestPackDuplicateKeyRejected(t *testing.T) {
	tools := newFakeTools(map[string]int{"ka 1.mp3": 100})
	packer := NewPacker(tools, defaultOptions(), logging.NewNop())
	files := []InputFile{
		{Path: "/src/kh/ka 1.mp3", Key: "ka 1", OriginalPath: "kh/ka 1.mp3"},
		{Path: "/src/other/ka 1.mp3", Key: "ka 1", OriginalPath: "other/ka 1.mp3"},
	}
	if _, err := packer.Pack(context.Background(), "kh", files, t.TempDir(), "blob.mp3"); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestPackWritesEncodedBlob(t *testing.T) {
	tools := newFakeTools(map[string]int{"ka 1.mp3": 500})
	packer := NewPacker(tools, defaultOptions(), logging.NewNop())
	workDir := t.TempDir()

	result, err := packer.Pack(context.Background(), "kh", inputs("ka 1.mp3"), workDir, "kh-word-sprite.mp3")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	data, err := os.ReadFile(result.BlobPath)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if !strings.HasPrefix(string(data), "mp3:") {
		t.Fatalf("blob not encoded: %q", data)
	}
	if filepath.Base(result.BlobPath) != "kh-word-sprite.mp3" {
		t.Fatalf("blob name = %s", filepath.Base(result.BlobPath))
	}
}
