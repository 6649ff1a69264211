package trainer

import (
	"errors"
	"testing"

	"soundloom/internal/manifest"
	"soundloom/internal/playback"
	"soundloom/internal/services"
	"soundloom/internal/soundgroups"
	"soundloom/internal/sprite"
)

func sounds(pairs ...string) []Sound {
	var out []Sound
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Sound{Speaker: pairs[i], SoundKey: pairs[i+1]})
	}
	return out
}

func TestGetNextVisitsEverySoundOnce(t *testing.T) {
	group := NewVersionGroup("ka", sounds("kh", "ka 1", "kh", "ka 2", "dl", "ka 1"))

	seen := map[Sound]int{}
	var order []Sound
	for i := 0; i < 3; i++ {
		sound, ok := group.GetNext()
		if !ok {
			t.Fatalf("GetNext failed at call %d", i)
		}
		seen[sound]++
		order = append(order, sound)
	}
	if len(seen) != 3 {
		t.Fatalf("visited %d distinct sounds in 3 calls, want 3", len(seen))
	}
	for sound, count := range seen {
		if count != 1 {
			t.Fatalf("sound %v visited %d times", sound, count)
		}
	}

	// The fourth call wraps back to the first sound.
	wrapped, _ := group.GetNext()
	if wrapped != order[0] {
		t.Fatalf("after full cycle got %v, want %v", wrapped, order[0])
	}
}

func TestPerSpeakerCursorsIndependent(t *testing.T) {
	group := NewVersionGroup("ka", sounds(
		"kh", "ka 1", "kh", "ka 2",
		"dl", "ka 1", "dl", "ka 2",
	))

	// Advance speaker kh twice.
	if _, ok := group.GetNextFromSpeaker("kh"); !ok {
		t.Fatal("kh rotation empty")
	}
	if _, ok := group.GetNextFromSpeaker("kh"); !ok {
		t.Fatal("kh rotation empty")
	}

	// dl's first call still starts at its first sound.
	first, ok := group.GetNextFromSpeaker("dl")
	if !ok {
		t.Fatal("dl rotation empty")
	}
	want := Sound{Speaker: "dl", SoundKey: "ka 1"}
	if first != want {
		t.Fatalf("dl first = %v, want %v", first, want)
	}

	// And the full-list cursor was never touched.
	full, _ := group.GetNext()
	if full != (Sound{Speaker: "kh", SoundKey: "ka 1"}) {
		t.Fatalf("full-list cursor moved: got %v", full)
	}
}

func TestGetRandomReturnsThunk(t *testing.T) {
	group := NewVersionGroup("ka", sounds("kh", "ka 1", "kh", "ka 2"))
	group.rng = func(n int) int { return 1 }

	pick, ok := group.GetRandom()
	if !ok {
		t.Fatal("GetRandom on non-empty group failed")
	}
	// Mutating rotation state between pick and invocation must not change
	// the captured selection.
	group.GetNext()
	group.GetNext()
	if got := pick(); got != (Sound{Speaker: "kh", SoundKey: "ka 2"}) {
		t.Fatalf("pick = %v", got)
	}
}

func TestGetRandomFromSpeakerRestrictsSublist(t *testing.T) {
	group := NewVersionGroup("ka", sounds("kh", "ka 1", "dl", "ka 1", "dl", "ka 2"))
	for i := 0; i < 20; i++ {
		pick, ok := group.GetRandomFromSpeaker("dl")
		if !ok {
			t.Fatal("dl sublist empty")
		}
		if sound := pick(); sound.Speaker != "dl" {
			t.Fatalf("picked %v from dl sublist", sound)
		}
	}
	if _, ok := group.GetRandomFromSpeaker("zz"); ok {
		t.Fatal("unknown speaker produced a pick")
	}
}

func TestEmptyGroupSelections(t *testing.T) {
	group := NewVersionGroup("empty", nil)
	if _, ok := group.GetNext(); ok {
		t.Fatal("GetNext on empty group succeeded")
	}
	if _, ok := group.GetRandom(); ok {
		t.Fatal("GetRandom on empty group succeeded")
	}
	if _, ok := group.GetNextFromSpeaker("kh"); ok {
		t.Fatal("GetNextFromSpeaker on empty group succeeded")
	}
}

// playerFunc adapts a function to the Player interface.
type playerFunc func(speaker, key string, opts playback.Options) (*playback.Handle, error)

func (f playerFunc) Play(speaker, key string, opts playback.Options) (*playback.Handle, error) {
	return f(speaker, key, opts)
}

func quizGroup() *SoundGroup {
	ka := NewVersionGroup("ka", sounds("kh", "ka 1"))
	kha := NewVersionGroup("kha", sounds("kh", "kha 1"))
	return NewSoundGroup("ka vs kha", []*VersionGroup{ka, kha}, sounds("kh", "ka vs kha"))
}

func TestQuizRoundTrip(t *testing.T) {
	group := quizGroup()
	group.rng = func(n int) int { return 0 }

	if group.CurrentTarget() != nil {
		t.Fatal("fresh group has a target")
	}
	if _, err := group.CheckAnswer(group.VersionGroups[0]); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("CheckAnswer while idle = %v, want ErrNoTarget", err)
	}

	target, err := group.SetRandomTarget()
	if err != nil {
		t.Fatalf("SetRandomTarget: %v", err)
	}
	if group.CurrentTarget() != target {
		t.Fatal("target not recorded")
	}

	correct, err := group.CheckAnswer(target)
	if err != nil {
		t.Fatalf("CheckAnswer: %v", err)
	}
	if !correct {
		t.Fatal("correct guess judged wrong")
	}
	if target.Answer() != Correct {
		t.Fatalf("target answer = %v, want Correct", target.Answer())
	}
	if group.CurrentTarget() != nil {
		t.Fatal("group not idle after resolution")
	}
	if group.IsPlaying() {
		t.Fatal("isPlaying stuck after resolution")
	}
}

func TestWrongAnswerMarksIncorrect(t *testing.T) {
	group := quizGroup()
	group.rng = func(n int) int { return 0 } // target is "ka"

	if _, err := group.SetRandomTarget(); err != nil {
		t.Fatalf("SetRandomTarget: %v", err)
	}
	guess := group.VersionGroups[1] // "kha"
	correct, err := group.CheckAnswer(guess)
	if err != nil {
		t.Fatalf("CheckAnswer: %v", err)
	}
	if correct {
		t.Fatal("wrong guess judged correct")
	}
	if guess.Answer() != Incorrect {
		t.Fatalf("guess answer = %v, want Incorrect", guess.Answer())
	}

	// The next round clears feedback.
	if _, err := group.SetRandomTarget(); err != nil {
		t.Fatalf("second SetRandomTarget: %v", err)
	}
	if guess.Answer() != Unanswered {
		t.Fatal("feedback not cleared by new target")
	}
}

func TestPlayTargetTogglesIsPlaying(t *testing.T) {
	group := quizGroup()
	if _, err := group.SetRandomTarget(); err != nil {
		t.Fatalf("SetRandomTarget: %v", err)
	}

	var finish func()
	player := playerFunc(func(speaker, key string, opts playback.Options) (*playback.Handle, error) {
		finish = opts.OnEnded
		return &playback.Handle{Speaker: speaker, Key: key}, nil
	})

	if _, err := group.PlayTarget(player); err != nil {
		t.Fatalf("PlayTarget: %v", err)
	}
	if !group.IsPlaying() {
		t.Fatal("isPlaying false during playback")
	}
	finish()
	if group.IsPlaying() {
		t.Fatal("isPlaying stuck true after completion")
	}
}

func TestPlayTargetErrorClearsIsPlaying(t *testing.T) {
	group := quizGroup()
	if _, err := group.SetRandomTarget(); err != nil {
		t.Fatalf("SetRandomTarget: %v", err)
	}

	player := playerFunc(func(speaker, key string, opts playback.Options) (*playback.Handle, error) {
		return nil, services.Wrap(services.ErrNotYetAvailable, "loader", "resolve", key, nil)
	})
	if _, err := group.PlayTarget(player); err == nil {
		t.Fatal("PlayTarget swallowed the playback error")
	}
	if group.IsPlaying() {
		t.Fatal("isPlaying stuck true after error")
	}
}

func TestResetCancelsRound(t *testing.T) {
	group := quizGroup()
	target, err := group.SetRandomTarget()
	if err != nil {
		t.Fatalf("SetRandomTarget: %v", err)
	}
	group.setPlaying(true)

	group.Reset()
	if group.CurrentTarget() != nil {
		t.Fatal("target survived reset")
	}
	if group.IsPlaying() {
		t.Fatal("isPlaying stuck true after reset")
	}
	if target.Answer() != Unanswered {
		t.Fatal("feedback survived reset")
	}
}

func TestPlayTargetWithoutTarget(t *testing.T) {
	group := quizGroup()
	player := playerFunc(func(string, string, playback.Options) (*playback.Handle, error) {
		t.Fatal("player invoked without a target")
		return nil, nil
	})
	if _, err := group.PlayTarget(player); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("err = %v, want ErrNoTarget", err)
	}
}

func TestBuildGroupsAppliesPolicies(t *testing.T) {
	master := manifest.New("run")
	master.Sprites["kh"] = manifest.SpeakerEntry{Word: &manifest.TierRef{AudioFile: sprite.BlobFilename("kh", sprite.TierWord)}}

	processed := []soundgroups.SoundGroup{{
		Name: "ka vs kha",
		VersionGroups: []soundgroups.VersionGroup{{
			Name: "ka",
			Sounds: []soundgroups.SoundRef{
				{Speaker: "kh", SoundKey: "ka 1", Verified: true},
				{Speaker: "kh", SoundKey: "ka 2", Verified: false},
				{Speaker: "gone", SoundKey: "ka 1", Verified: true},
			},
		}},
		LongSounds: []soundgroups.SoundRef{
			{Speaker: "kh", SoundKey: "ka vs kha", Verified: true},
		},
	}}

	strict := BuildGroups(master, processed, BuildOptions{SkipUnverified: true})
	if len(strict) != 1 {
		t.Fatalf("groups = %d, want 1", len(strict))
	}
	got := strict[0].VersionGroups[0].Sounds()
	if len(got) != 1 || got[0].SoundKey != "ka 1" {
		t.Fatalf("strict sounds = %v", got)
	}
	if len(strict[0].LongSounds) != 1 {
		t.Fatalf("long sounds = %v", strict[0].LongSounds)
	}

	// With the policy off, unverified sounds stay playable, but sounds for
	// speakers missing from the master are still dropped.
	lenient := BuildGroups(master, processed, BuildOptions{SkipUnverified: false})
	got = lenient[0].VersionGroups[0].Sounds()
	if len(got) != 2 {
		t.Fatalf("lenient sounds = %v", got)
	}
}
