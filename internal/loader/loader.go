// Package loader fetches the published master manifest and sprite tiers over
// HTTP and tracks per-speaker loading state. Word tiers load eagerly and
// concurrently; long tiers load in the background after every word tier has
// settled.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"soundloom/internal/logging"
	"soundloom/internal/manifest"
	"soundloom/internal/services"
	"soundloom/internal/sprite"
)

// State is one speaker's loading progress. WordLoaded is a valid terminal
// state for speakers without a long tier.
type State int

const (
	NotLoaded State = iota
	WordLoading
	WordLoaded
	LongLoading
	LongLoaded
)

func (s State) String() string {
	switch s {
	case WordLoading:
		return "word-loading"
	case WordLoaded:
		return "word-loaded"
	case LongLoading:
		return "long-loading"
	case LongLoaded:
		return "long-loaded"
	default:
		return "not-loaded"
	}
}

// Progress is emitted after each speaker's word tier settles.
type Progress struct {
	Loaded  int
	Total   int
	Failed  int
	Speaker string
	Phase   sprite.Tier
}

// Percent returns the deterministic load percentage for UI display.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return (p.Loaded + p.Failed) * 100 / p.Total
}

// TierData is one fetched and decoded tier: its manifest plus the raw
// encoded blob bytes. Decoding to PCM happens lazily in the playback engine.
type TierData struct {
	Manifest *sprite.Manifest
	Blob     []byte
}

// Segment locates one playable sound inside a loaded tier blob.
type Segment struct {
	Speaker string
	Key     string
	Tier    sprite.Tier
	Blob    []byte
	StartMs int
	LenMs   int
}

// Options configures a Loader.
type Options struct {
	// BaseURL is the static file root serving manifest.json and the sprites.
	BaseURL string
	// HTTPClient overrides the default client; nil uses a client with
	// FetchTimeout applied.
	HTTPClient *http.Client
	// FetchTimeout bounds each individual manifest or blob fetch.
	FetchTimeout time.Duration
	// OnProgress, when set, receives a snapshot after each word tier settles.
	OnProgress func(Progress)
	Logger     *slog.Logger
}

type speakerEntry struct {
	state   State
	entry   manifest.SpeakerEntry
	word    *TierData
	long    *TierData
	longErr error
}

// Loader tracks per-speaker tier loading over a fetched master manifest.
// Safe for concurrent use; in-flight fetches for the same speaker and tier
// are coalesced.
type Loader struct {
	baseURL    string
	httpClient *http.Client
	onProgress func(Progress)
	logger     *slog.Logger

	flight singleflight.Group

	mu       sync.Mutex
	master   *manifest.Master
	speakers map[string]*speakerEntry
}

// New constructs a loader. Initialize must be called before any tier load.
func New(opts Options) (*Loader, error) {
	if opts.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "loader", "new", "base URL is required", nil)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "loader", "new", "invalid base URL", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.FetchTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		onProgress: opts.OnProgress,
		logger:     logging.WithComponent(logger, "loader"),
		speakers:   map[string]*speakerEntry{},
	}, nil
}

// Initialize fetches the master manifest once per loader. Concurrent calls
// coalesce; subsequent calls return the cached manifest.
func (l *Loader) Initialize(ctx context.Context) (*manifest.Master, error) {
	l.mu.Lock()
	if l.master != nil {
		master := l.master
		l.mu.Unlock()
		return master, nil
	}
	l.mu.Unlock()

	result, err, _ := l.flight.Do("master", func() (any, error) {
		data, fetchErr := l.fetch(ctx, manifest.Filename)
		if fetchErr != nil {
			return nil, fetchErr
		}
		master, parseErr := manifest.Parse(data)
		if parseErr != nil {
			return nil, services.Wrap(services.ErrDecode, "loader", "initialize", "master manifest", parseErr)
		}

		l.mu.Lock()
		l.master = master
		for speaker, entry := range master.Sprites {
			l.speakers[speaker] = &speakerEntry{state: NotLoaded, entry: entry}
		}
		l.mu.Unlock()

		l.logger.Info("master manifest loaded", "speakers", len(master.Sprites), "version", master.Version)
		return master, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*manifest.Master), nil
}

// LoadWordTier fetches one speaker's word tier. Concurrent calls for the
// same speaker share one in-flight fetch. A speaker without a word tier ref
// loads trivially.
func (l *Loader) LoadWordTier(ctx context.Context, speaker string) error {
	return l.loadTier(ctx, speaker, sprite.TierWord)
}

// LoadAllWordTiers loads every listed speaker's word tier concurrently and
// waits until all of them settle, success or failure. Per-speaker failures
// are counted and logged, never propagated: one broken speaker must not keep
// the rest from becoming playable. The returned Progress is the final
// settled snapshot.
func (l *Loader) LoadAllWordTiers(ctx context.Context, speakers []string) Progress {
	total := len(speakers)
	var mu sync.Mutex
	progress := Progress{Total: total, Phase: sprite.TierWord}

	var wg sync.WaitGroup
	for _, speaker := range speakers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.LoadWordTier(ctx, speaker)

			mu.Lock()
			if err != nil {
				progress.Failed++
				l.logger.Warn("word tier failed",
					slog.String(logging.FieldSpeaker, speaker), "error", err)
			} else {
				progress.Loaded++
			}
			progress.Speaker = speaker
			snapshot := progress
			mu.Unlock()

			if l.onProgress != nil {
				l.onProgress(snapshot)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	final := progress
	mu.Unlock()
	return final
}

// LoadLongTiersInBackground starts background long-tier loads for the listed
// speakers and returns immediately. Failures are recorded per speaker and
// surfaced through Resolve; they never block other speakers.
func (l *Loader) LoadLongTiersInBackground(ctx context.Context, speakers []string) {
	for _, speaker := range speakers {
		go func() {
			if err := l.loadTier(ctx, speaker, sprite.TierLong); err != nil {
				l.logger.Warn("long tier failed",
					slog.String(logging.FieldSpeaker, speaker), "error", err)
			}
		}()
	}
}

// IsLongTierReady reports, without blocking, whether the speaker's long
// sounds can play. A speaker with no long tier is trivially ready.
func (l *Loader) IsLongTierReady(speaker string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.speakers[speaker]
	if !ok {
		return false
	}
	if entry.entry.Long == nil {
		return true
	}
	return entry.long != nil
}

// SpeakerState returns the speaker's current loading state.
func (l *Loader) SpeakerState(speaker string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.speakers[speaker]
	if !ok {
		return NotLoaded
	}
	return entry.state
}

// Resolve locates a sound key across the speaker's loaded tiers, word tier
// first. A key absent from loaded tiers while a long tier is still pending
// returns a recoverable not-yet-available error; a key absent with all tiers
// settled returns not-found.
func (l *Loader) Resolve(speaker, key string) (*Segment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.speakers[speaker]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "loader", "resolve",
			fmt.Sprintf("unknown speaker %q", speaker), nil)
	}

	for _, tier := range []struct {
		tier sprite.Tier
		data *TierData
	}{
		{sprite.TierWord, entry.word},
		{sprite.TierLong, entry.long},
	} {
		if tier.data == nil {
			continue
		}
		if segment, ok := tier.data.Manifest.SpriteMap[key]; ok {
			return &Segment{
				Speaker: speaker,
				Key:     key,
				Tier:    tier.tier,
				Blob:    tier.data.Blob,
				StartMs: segment.Start,
				LenMs:   segment.Length,
			}, nil
		}
	}

	if entry.entry.Long != nil && entry.long == nil {
		return nil, services.Wrap(services.ErrNotYetAvailable, "loader", "resolve",
			fmt.Sprintf("sound %q for speaker %q: long tier still loading", key, speaker), entry.longErr)
	}
	return nil, services.Wrap(services.ErrNotFound, "loader", "resolve",
		fmt.Sprintf("sound %q not packed for speaker %q", key, speaker), nil)
}

func (l *Loader) loadTier(ctx context.Context, speaker string, tier sprite.Tier) error {
	l.mu.Lock()
	entry, ok := l.speakers[speaker]
	if !ok {
		l.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "loader", "load",
			fmt.Sprintf("speaker %q not in master manifest", speaker), nil)
	}

	var ref *manifest.TierRef
	switch tier {
	case sprite.TierLong:
		if entry.long != nil {
			l.mu.Unlock()
			return nil
		}
		ref = entry.entry.Long
	default:
		if entry.word != nil {
			l.mu.Unlock()
			return nil
		}
		ref = entry.entry.Word
	}
	if ref == nil {
		// Degenerate single-tier speaker: nothing to fetch for this tier.
		l.advanceState(entry, tier, true)
		l.mu.Unlock()
		return nil
	}
	l.advanceState(entry, tier, false)
	l.mu.Unlock()

	_, err, _ := l.flight.Do(speaker+"/"+string(tier), func() (any, error) {
		data, fetchErr := l.fetchTier(ctx, speaker, ref)
		if fetchErr != nil {
			l.mu.Lock()
			if tier == sprite.TierLong {
				entry.longErr = fetchErr
			}
			l.rollbackState(entry, tier)
			l.mu.Unlock()
			return nil, fetchErr
		}

		l.mu.Lock()
		switch tier {
		case sprite.TierLong:
			entry.long = data
			entry.longErr = nil
		default:
			entry.word = data
		}
		l.advanceState(entry, tier, true)
		l.mu.Unlock()

		l.logger.Debug("tier loaded",
			slog.String(logging.FieldSpeaker, speaker),
			slog.String(logging.FieldPhase, string(tier)),
			"sounds", len(data.Manifest.SpriteMap),
			"blob_bytes", len(data.Blob))
		return nil, nil
	})
	return err
}

// advanceState moves the speaker's state machine forward. Callers hold l.mu.
func (l *Loader) advanceState(entry *speakerEntry, tier sprite.Tier, done bool) {
	if tier == sprite.TierLong {
		if done {
			entry.state = LongLoaded
		} else if entry.state == WordLoaded {
			entry.state = LongLoading
		}
		return
	}
	if done {
		if entry.state < WordLoaded {
			entry.state = WordLoaded
		}
	} else if entry.state == NotLoaded {
		entry.state = WordLoading
	}
}

func (l *Loader) rollbackState(entry *speakerEntry, tier sprite.Tier) {
	if tier == sprite.TierLong {
		if entry.state == LongLoading {
			entry.state = WordLoaded
		}
		return
	}
	if entry.state == WordLoading {
		entry.state = NotLoaded
	}
}

func (l *Loader) fetchTier(ctx context.Context, speaker string, ref *manifest.TierRef) (*TierData, error) {
	manifestData, err := l.fetch(ctx, ref.ManifestFile)
	if err != nil {
		return nil, err
	}
	tierManifest, err := sprite.ParseManifest(manifestData)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "loader", "fetch",
			fmt.Sprintf("manifest for speaker %q", speaker), err)
	}
	blob, err := l.fetch(ctx, ref.AudioFile)
	if err != nil {
		return nil, err
	}
	return &TierData{Manifest: tierManifest, Blob: blob}, nil
}

func (l *Loader) fetch(ctx context.Context, name string) ([]byte, error) {
	target, err := url.JoinPath(l.baseURL, name)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "loader", "fetch", "build URL for "+name, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "loader", "fetch", name, err)
	}
	response, err := l.httpClient.Do(request)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "loader", "fetch", name, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "loader", "fetch", name, nil)
	}
	if response.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransport, "loader", "fetch",
			fmt.Sprintf("%s: unexpected status %d", name, response.StatusCode), nil)
	}
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "loader", "fetch", name, err)
	}
	return data, nil
}
