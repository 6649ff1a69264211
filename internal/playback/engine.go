// Package playback resolves sound keys against loaded sprite tiers and plays
// bounded-duration segments. Each speaker tier's blob is decoded to PCM once
// and the decoded buffer is shared by every segment played from it.
package playback

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hajimehoshi/go-mp3"

	"soundloom/internal/loader"
	"soundloom/internal/logging"
	"soundloom/internal/services"
	"soundloom/internal/sprite"
)

// bytesPerFrame is the go-mp3 output frame size: 16-bit little-endian
// stereo.
const bytesPerFrame = 4

// Resolver locates a sound key across a speaker's loaded tiers.
type Resolver interface {
	Resolve(speaker, key string) (*loader.Segment, error)
}

// Sink consumes decoded PCM. Start returns once playback has begun; done is
// invoked exactly once when the samples have been consumed.
type Sink interface {
	Start(pcm []byte, sampleRate int, volume float64, done func()) error
}

// DecodeFunc turns an encoded blob into 16-bit little-endian stereo PCM.
type DecodeFunc func(blob []byte) (pcm []byte, sampleRate int, err error)

// DecodeMP3 is the default DecodeFunc, backed by go-mp3.
func DecodeMP3(blob []byte) ([]byte, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(blob))
	if err != nil {
		return nil, 0, err
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, err
	}
	return pcm, decoder.SampleRate(), nil
}

// Options describes how one segment should play.
type Options struct {
	// VolumeFactor scales output amplitude; zero means full volume.
	VolumeFactor float64
	// OnEnded is invoked at most once when the segment finishes.
	OnEnded func()
}

// Handle is one in-flight segment playback. Two plays of the same sound
// proceed independently; each gets its own handle.
type Handle struct {
	Speaker    string
	Key        string
	Tier       sprite.Tier
	DurationMs int

	once    sync.Once
	done    chan struct{}
	onEnded func()
}

// Done is closed when playback completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) complete() {
	h.once.Do(func() {
		if h.onEnded != nil {
			h.onEnded()
		}
		close(h.done)
	})
}

type decodedBlob struct {
	once       sync.Once
	err        error
	pcm        []byte
	sampleRate int
}

// Engine plays sprite segments through a Sink. Construct one per process and
// share it; the decode cache lives for the engine's lifetime.
type Engine struct {
	resolver Resolver
	sink     Sink
	decode   DecodeFunc
	logger   *slog.Logger

	mu    sync.Mutex
	blobs map[string]*decodedBlob
}

// NewEngine constructs a playback engine. A nil decode falls back to MP3.
func NewEngine(resolver Resolver, sink Sink, decode DecodeFunc, logger *slog.Logger) *Engine {
	if decode == nil {
		decode = DecodeMP3
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		resolver: resolver,
		sink:     sink,
		decode:   decode,
		logger:   logging.WithComponent(logger, "playback"),
		blobs:    map[string]*decodedBlob{},
	}
}

// Play resolves the sound key, decodes its blob if this is the first segment
// played from it, and starts bounded playback of exactly the mapped range.
// An unknown key is always an error; a key pending behind a background long
// tier load returns a recoverable not-yet-available error.
func (e *Engine) Play(speaker, key string, opts Options) (*Handle, error) {
	segment, err := e.resolver.Resolve(speaker, key)
	if err != nil {
		return nil, err
	}

	blob, err := e.decodedBlob(segment)
	if err != nil {
		return nil, err
	}

	pcm, err := slicePCM(blob, segment)
	if err != nil {
		return nil, err
	}

	volume := opts.VolumeFactor
	if volume <= 0 {
		volume = 1
	}

	handle := &Handle{
		Speaker:    speaker,
		Key:        key,
		Tier:       segment.Tier,
		DurationMs: segment.LenMs,
		done:       make(chan struct{}),
		onEnded:    opts.OnEnded,
	}

	if err := e.sink.Start(pcm, blob.sampleRate, volume, handle.complete); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "playback", "play",
			fmt.Sprintf("sound %q for speaker %q", key, speaker), err)
	}

	e.logger.Debug("segment started",
		slog.String(logging.FieldSpeaker, speaker),
		slog.String(logging.FieldSoundKey, key),
		slog.String(logging.FieldPhase, string(segment.Tier)),
		"length_ms", segment.LenMs)
	return handle, nil
}

// decodedBlob returns the cached PCM for a segment's blob, decoding at most
// once per speaker tier regardless of how many segments play from it.
func (e *Engine) decodedBlob(segment *loader.Segment) (*decodedBlob, error) {
	cacheKey := segment.Speaker + "/" + string(segment.Tier)

	e.mu.Lock()
	blob, ok := e.blobs[cacheKey]
	if !ok {
		blob = &decodedBlob{}
		e.blobs[cacheKey] = blob
	}
	e.mu.Unlock()

	blob.once.Do(func() {
		pcm, sampleRate, err := e.decode(segment.Blob)
		if err != nil {
			blob.err = services.Wrap(services.ErrDecode, "playback", "decode",
				fmt.Sprintf("%s tier for speaker %q", segment.Tier, segment.Speaker), err)
			return
		}
		blob.pcm = pcm
		blob.sampleRate = sampleRate
	})
	if blob.err != nil {
		// A failed decode is not cached as permanent; the next play retries.
		e.mu.Lock()
		delete(e.blobs, cacheKey)
		e.mu.Unlock()
		return nil, blob.err
	}
	return blob, nil
}

// slicePCM extracts the segment's byte range from the decoded blob, aligned
// to whole frames and clamped to the blob's actual length.
func slicePCM(blob *decodedBlob, segment *loader.Segment) ([]byte, error) {
	start := msToBytes(segment.StartMs, blob.sampleRate)
	end := msToBytes(segment.StartMs+segment.LenMs, blob.sampleRate)
	if start >= len(blob.pcm) {
		return nil, services.Wrap(services.ErrIntegrity, "playback", "slice",
			fmt.Sprintf("segment %q starts at %dms beyond decoded blob", segment.Key, segment.StartMs), nil)
	}
	if end > len(blob.pcm) {
		end = len(blob.pcm)
	}
	return blob.pcm[start:end], nil
}

func msToBytes(ms, sampleRate int) int {
	frames := ms * sampleRate / 1000
	return frames * bytesPerFrame
}
