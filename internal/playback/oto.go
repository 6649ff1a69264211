package playback

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoSink plays PCM through the system audio device via oto. The underlying
// audio context is process-global and created lazily on first playback with
// that playback's sample rate; all sprite blobs share one rate because the
// build pipeline normalizes them.
type OtoSink struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
}

// NewOtoSink returns an uninitialized sink. No audio device is touched until
// the first Start call.
func NewOtoSink() *OtoSink {
	return &OtoSink{}
}

// Start begins playback and polls the player for completion in a background
// goroutine. done fires once the device has consumed the samples.
func (s *OtoSink) Start(pcm []byte, sampleRate int, volume float64, done func()) error {
	ctx, err := s.context(sampleRate)
	if err != nil {
		return err
	}

	player := ctx.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(volume)
	player.Play()

	go func() {
		defer done()
		defer player.Close()
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if !player.IsPlaying() {
				return
			}
		}
	}()
	return nil
}

func (s *OtoSink) context(sampleRate int) (*oto.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		if s.sampleRate != sampleRate {
			return nil, fmt.Errorf("audio context runs at %dHz, segment decoded at %dHz", s.sampleRate, sampleRate)
		}
		return s.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio context: %w", err)
	}
	<-ready

	s.ctx = ctx
	s.sampleRate = sampleRate
	return ctx, nil
}
