package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"soundloom/internal/loader"
	"soundloom/internal/services"
	"soundloom/internal/sprite"
)

// fakeResolver serves canned segments and typed misses.
type fakeResolver struct {
	segments map[string]*loader.Segment // by speaker+"/"+key
	pending  map[string]bool            // keys behind an unloaded long tier
}

func (f *fakeResolver) Resolve(speaker, key string) (*loader.Segment, error) {
	id := speaker + "/" + key
	if f.pending[id] {
		return nil, services.Wrap(services.ErrNotYetAvailable, "loader", "resolve", id, nil)
	}
	segment, ok := f.segments[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "loader", "resolve", id, nil)
	}
	return segment, nil
}

// syncSink plays synchronously: it records the PCM and volume, then invokes
// done before returning.
type syncSink struct {
	mu     sync.Mutex
	starts []sinkStart
}

type sinkStart struct {
	pcmLen     int
	sampleRate int
	volume     float64
}

func (s *syncSink) Start(pcm []byte, sampleRate int, volume float64, done func()) error {
	s.mu.Lock()
	s.starts = append(s.starts, sinkStart{len(pcm), sampleRate, volume})
	s.mu.Unlock()
	done()
	return nil
}

func (s *syncSink) last(t *testing.T) sinkStart {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.starts) == 0 {
		t.Fatal("sink never started")
	}
	return s.starts[len(s.starts)-1]
}

// fakeDecode produces one second of PCM per 1000ms of declared blob length.
// The blob bytes encode the length as their count in milliseconds.
func fakeDecode(calls *int) DecodeFunc {
	return func(blob []byte) ([]byte, int, error) {
		*calls++
		const sampleRate = 1000 // 1 frame per ms keeps the math visible
		return make([]byte, len(blob)*bytesPerFrame), sampleRate, nil
	}
}

func segment(speaker, key string, tier sprite.Tier, blobMs, start, length int) *loader.Segment {
	return &loader.Segment{
		Speaker: speaker,
		Key:     key,
		Tier:    tier,
		Blob:    make([]byte, blobMs),
		StartMs: start,
		LenMs:   length,
	}
}

func TestPlayBoundedSegment(t *testing.T) {
	resolver := &fakeResolver{segments: map[string]*loader.Segment{
		"kh/ka 1": segment("kh", "ka 1", sprite.TierWord, 2000, 700, 500),
	}}
	sink := &syncSink{}
	calls := 0
	engine := NewEngine(resolver, sink, fakeDecode(&calls), nil)

	ended := false
	handle, err := engine.Play("kh", "ka 1", Options{OnEnded: func() { ended = true }})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("handle never completed")
	}
	if !ended {
		t.Fatal("OnEnded not invoked")
	}
	if handle.DurationMs != 500 {
		t.Fatalf("duration = %d, want 500", handle.DurationMs)
	}

	// 500ms at 1000Hz stereo 16-bit: 500 frames.
	start := sink.last(t)
	if start.pcmLen != 500*bytesPerFrame {
		t.Fatalf("pcm length = %d, want %d", start.pcmLen, 500*bytesPerFrame)
	}
	if start.volume != 1 {
		t.Fatalf("default volume = %v, want 1", start.volume)
	}
}

func TestPlayAppliesVolumeFactor(t *testing.T) {
	resolver := &fakeResolver{segments: map[string]*loader.Segment{
		"kh/ka 1": segment("kh", "ka 1", sprite.TierWord, 1000, 0, 400),
	}}
	sink := &syncSink{}
	calls := 0
	engine := NewEngine(resolver, sink, fakeDecode(&calls), nil)

	if _, err := engine.Play("kh", "ka 1", Options{VolumeFactor: 0.25}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := sink.last(t).volume; got != 0.25 {
		t.Fatalf("volume = %v, want 0.25", got)
	}
}

func TestDecodeSharedAcrossSegments(t *testing.T) {
	word := segment("kh", "ka 1", sprite.TierWord, 3000, 0, 500)
	resolver := &fakeResolver{segments: map[string]*loader.Segment{
		"kh/ka 1":  word,
		"kh/kha 1": segment("kh", "kha 1", sprite.TierWord, 3000, 700, 600),
	}}
	// Same blob backs both keys, as with a real sprite.
	resolver.segments["kh/kha 1"].Blob = word.Blob

	sink := &syncSink{}
	calls := 0
	engine := NewEngine(resolver, sink, fakeDecode(&calls), nil)

	if _, err := engine.Play("kh", "ka 1", Options{}); err != nil {
		t.Fatalf("first Play: %v", err)
	}
	if _, err := engine.Play("kh", "kha 1", Options{}); err != nil {
		t.Fatalf("second Play: %v", err)
	}
	if _, err := engine.Play("kh", "ka 1", Options{}); err != nil {
		t.Fatalf("repeat Play: %v", err)
	}
	if calls != 1 {
		t.Fatalf("blob decoded %d times, want 1", calls)
	}
}

func TestPlayTierResolutionErrors(t *testing.T) {
	resolver := &fakeResolver{
		segments: map[string]*loader.Segment{},
		pending:  map[string]bool{"kh/ka vs kha": true},
	}
	engine := NewEngine(resolver, &syncSink{}, fakeDecode(new(int)), nil)

	// Behind a background long load: recoverable, caller retries later.
	_, err := engine.Play("kh", "ka vs kha", Options{})
	if !errors.Is(err, services.ErrNotYetAvailable) {
		t.Fatalf("pending err = %v, want not-yet-available", err)
	}

	// Genuinely unknown key: never recoverable, never plays anything.
	_, err = engine.Play("kh", "nope", Options{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown err = %v, want not-found", err)
	}
}

func TestOnEndedAtMostOnce(t *testing.T) {
	resolver := &fakeResolver{segments: map[string]*loader.Segment{
		"kh/ka 1": segment("kh", "ka 1", sprite.TierWord, 1000, 0, 200),
	}}
	// A sink that fires done twice; the handle must still complete once.
	doubleSink := sinkFunc(func(pcm []byte, rate int, volume float64, done func()) error {
		done()
		done()
		return nil
	})
	engine := NewEngine(resolver, doubleSink, fakeDecode(new(int)), nil)

	endedCount := 0
	handle, err := engine.Play("kh", "ka 1", Options{OnEnded: func() { endedCount++ }})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	<-handle.Done()
	if endedCount != 1 {
		t.Fatalf("OnEnded fired %d times, want 1", endedCount)
	}
}

func TestConcurrentPlaysOfSameKey(t *testing.T) {
	resolver := &fakeResolver{segments: map[string]*loader.Segment{
		"kh/ka 1": segment("kh", "ka 1", sprite.TierWord, 1000, 0, 200),
	}}
	sink := &syncSink{}
	engine := NewEngine(resolver, sink, fakeDecode(new(int)), nil)

	first, err := engine.Play("kh", "ka 1", Options{})
	if err != nil {
		t.Fatalf("first Play: %v", err)
	}
	second, err := engine.Play("kh", "ka 1", Options{})
	if err != nil {
		t.Fatalf("second Play: %v", err)
	}
	if first == second {
		t.Fatal("both plays share one handle")
	}
	<-first.Done()
	<-second.Done()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.starts) != 2 {
		t.Fatalf("sink starts = %d, want 2", len(sink.starts))
	}
}

// sinkFunc adapts a function to the Sink interface.
type sinkFunc func(pcm []byte, sampleRate int, volume float64, done func()) error

func (f sinkFunc) Start(pcm []byte, sampleRate int, volume float64, done func()) error {
	return f(pcm, sampleRate, volume, done)
}
