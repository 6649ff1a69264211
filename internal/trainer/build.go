package trainer

import (
	"soundloom/internal/manifest"
	"soundloom/internal/soundgroups"
)

// BuildOptions controls how the processed config becomes runtime groups.
type BuildOptions struct {
	// SkipUnverified drops sounds whose build-time verification failed
	// instead of letting playback discover the missing key. Unverified
	// entries survive in the config either way; this only affects what the
	// runtime offers.
	SkipUnverified bool
}

// BuildGroups materializes the quiz model from the processed config and the
// fetched master manifest. Sounds for speakers absent from the master are
// always dropped; they have no published sprite to play from.
func BuildGroups(master *manifest.Master, processed []soundgroups.SoundGroup, opts BuildOptions) []*SoundGroup {
	known := map[string]bool{}
	if master != nil {
		for _, speaker := range master.Speakers() {
			known[speaker] = true
		}
	}

	keep := func(ref soundgroups.SoundRef) bool {
		if !known[ref.Speaker] {
			return false
		}
		if opts.SkipUnverified && !ref.Verified {
			return false
		}
		return true
	}

	groups := make([]*SoundGroup, 0, len(processed))
	for _, group := range processed {
		versionGroups := make([]*VersionGroup, 0, len(group.VersionGroups))
		for _, versionGroup := range group.VersionGroups {
			var sounds []Sound
			for _, ref := range versionGroup.Sounds {
				if keep(ref) {
					sounds = append(sounds, Sound{Speaker: ref.Speaker, SoundKey: ref.SoundKey})
				}
			}
			versionGroups = append(versionGroups, NewVersionGroup(versionGroup.Name, sounds))
		}

		var longSounds []Sound
		for _, ref := range group.LongSounds {
			if keep(ref) {
				longSounds = append(longSounds, Sound{Speaker: ref.Speaker, SoundKey: ref.SoundKey})
			}
		}

		groups = append(groups, NewSoundGroup(group.Name, versionGroups, longSounds))
	}
	return groups
}
