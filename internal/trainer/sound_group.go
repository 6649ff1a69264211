package trainer

import (
	"errors"
	"math/rand/v2"
	"sync"

	"soundloom/internal/playback"
)

// Player starts bounded segment playback. *playback.Engine satisfies it.
type Player interface {
	Play(speaker, key string, opts playback.Options) (*playback.Handle, error)
}

// ErrNoTarget is returned by PlayTarget and CheckAnswer before a target has
// been set.
var ErrNoTarget = errors.New("trainer: no current target")

// ErrEmptyGroup is returned when a target cannot be chosen because every
// version group is empty.
var ErrEmptyGroup = errors.New("trainer: sound group has no playable sounds")

// SoundGroup is one quiz row. Its lifecycle is a small state machine:
// idle (no target) -> target set -> resolved (answer checked) -> idle.
// At most one version group is the current target at a time, and isPlaying
// always returns to false, on success, error, and cancel alike.
type SoundGroup struct {
	Name          string
	VersionGroups []*VersionGroup
	LongSounds    []Sound

	mu            sync.Mutex
	currentTarget *VersionGroup
	playing       bool
	rng           func(n int) int
}

// NewSoundGroup builds a quiz row over its version groups.
func NewSoundGroup(name string, versionGroups []*VersionGroup, longSounds []Sound) *SoundGroup {
	return &SoundGroup{
		Name:          name,
		VersionGroups: versionGroups,
		LongSounds:    longSounds,
		rng:           rand.IntN,
	}
}

// SetRandomTarget chooses a random non-empty version group as the quiz
// target and clears previous answer feedback. Setting a new target replaces
// the old one; there is never more than one.
func (s *SoundGroup) SetRandomTarget() (*VersionGroup, error) {
	var candidates []*VersionGroup
	for _, group := range s.VersionGroups {
		if group.Len() > 0 {
			candidates = append(candidates, group)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrEmptyGroup
	}

	for _, group := range s.VersionGroups {
		group.setAnswer(Unanswered)
	}

	s.mu.Lock()
	target := candidates[s.rng(len(candidates))]
	s.currentTarget = target
	s.mu.Unlock()
	return target, nil
}

// CurrentTarget returns the target version group, or nil when idle.
func (s *SoundGroup) CurrentTarget() *VersionGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTarget
}

// IsPlaying reports whether a target playback is in flight.
func (s *SoundGroup) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// PlayTarget plays a random variant of the current target. isPlaying is true
// only while the segment is audible; every exit path, including resolution
// and playback errors, returns it to false.
func (s *SoundGroup) PlayTarget(player Player) (*playback.Handle, error) {
	s.mu.Lock()
	target := s.currentTarget
	s.mu.Unlock()
	if target == nil {
		return nil, ErrNoTarget
	}

	pick, ok := target.GetRandom()
	if !ok {
		return nil, ErrEmptyGroup
	}
	sound := pick()

	s.setPlaying(true)
	handle, err := player.Play(sound.Speaker, sound.SoundKey, playback.Options{
		OnEnded: func() { s.setPlaying(false) },
	})
	if err != nil {
		s.setPlaying(false)
		return nil, err
	}
	return handle, nil
}

// CheckAnswer resolves the quiz round: the guessed version group gets
// Correct or Incorrect feedback and the group returns to idle. Calling it
// without a target is an error, not a no-op, so UI races surface.
func (s *SoundGroup) CheckAnswer(guess *VersionGroup) (bool, error) {
	s.mu.Lock()
	target := s.currentTarget
	if target == nil {
		s.mu.Unlock()
		return false, ErrNoTarget
	}
	s.currentTarget = nil
	s.playing = false
	s.mu.Unlock()

	correct := guess == target
	if guess != nil {
		if correct {
			guess.setAnswer(Correct)
		} else {
			guess.setAnswer(Incorrect)
		}
	}
	return correct, nil
}

// Reset cancels the current round: target cleared, feedback cleared,
// playback flag dropped. Used by the UI's inactivity timeout and explicit
// cancel.
func (s *SoundGroup) Reset() {
	s.mu.Lock()
	s.currentTarget = nil
	s.playing = false
	s.mu.Unlock()
	for _, group := range s.VersionGroups {
		group.setAnswer(Unanswered)
	}
}

func (s *SoundGroup) setPlaying(playing bool) {
	s.mu.Lock()
	s.playing = playing
	s.mu.Unlock()
}
