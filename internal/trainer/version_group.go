// Package trainer holds the quiz-facing runtime model: version groups with
// rotation state and sound groups with the answer-checking state machine.
package trainer

import (
	"math/rand/v2"
	"sync"
)

// Sound identifies one playable clip.
type Sound struct {
	Speaker  string
	SoundKey string
}

// Answer is the tri-state feedback on a version group. It is UI state, never
// persisted.
type Answer int

const (
	Unanswered Answer = iota
	Correct
	Incorrect
)

// Pick is a deferred selection: it captures which sound was chosen without
// starting playback, so the caller can play it later or not at all.
type Pick func() Sound

// VersionGroup is one quiz answer with its recorded variants and rotation
// cursors. All methods are safe for concurrent use; cursor mutation is
// serialized per group.
type VersionGroup struct {
	Name string

	mu            sync.Mutex
	sounds        []Sound
	cursor        int
	speakerCursor map[string]int
	answer        Answer
	rng           func(n int) int
}

// NewVersionGroup builds a group over an ordered sound list.
func NewVersionGroup(name string, sounds []Sound) *VersionGroup {
	return &VersionGroup{
		Name:          name,
		sounds:        append([]Sound(nil), sounds...),
		speakerCursor: map[string]int{},
		rng:           rand.IntN,
	}
}

// Sounds returns a copy of the ordered sound list.
func (g *VersionGroup) Sounds() []Sound {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Sound(nil), g.sounds...)
}

// Len returns the number of variants.
func (g *VersionGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sounds)
}

// GetRandom picks a uniformly random variant over the full list and returns
// a thunk capturing it. Returns false when the group is empty.
func (g *VersionGroup) GetRandom() (Pick, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sounds) == 0 {
		return nil, false
	}
	sound := g.sounds[g.rng(len(g.sounds))]
	return func() Sound { return sound }, true
}

// GetNext advances the full-list round-robin cursor and returns the sound at
// its previous position. N consecutive calls on a group of N sounds visit
// every variant exactly once.
func (g *VersionGroup) GetNext() (Sound, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sounds) == 0 {
		return Sound{}, false
	}
	sound := g.sounds[g.cursor%len(g.sounds)]
	g.cursor++
	return sound, true
}

// GetRandomFromSpeaker picks uniformly over the sublist for one speaker.
func (g *VersionGroup) GetRandomFromSpeaker(speaker string) (Pick, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	subset := g.speakerSubset(speaker)
	if len(subset) == 0 {
		return nil, false
	}
	sound := subset[g.rng(len(subset))]
	return func() Sound { return sound }, true
}

// GetNextFromSpeaker round-robins over one speaker's sublist. Each speaker
// has its own cursor; advancing one speaker's rotation never moves
// another's.
func (g *VersionGroup) GetNextFromSpeaker(speaker string) (Sound, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	subset := g.speakerSubset(speaker)
	if len(subset) == 0 {
		return Sound{}, false
	}
	cursor := g.speakerCursor[speaker]
	sound := subset[cursor%len(subset)]
	g.speakerCursor[speaker] = cursor + 1
	return sound, true
}

// Answer returns the current tri-state feedback.
func (g *VersionGroup) Answer() Answer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.answer
}

func (g *VersionGroup) setAnswer(answer Answer) {
	g.mu.Lock()
	g.answer = answer
	g.mu.Unlock()
}

// speakerSubset returns the sounds for one speaker in list order. Callers
// hold g.mu.
func (g *VersionGroup) speakerSubset(speaker string) []Sound {
	var subset []Sound
	for _, sound := range g.sounds {
		if sound.Speaker == speaker {
			subset = append(subset, sound)
		}
	}
	return subset
}
