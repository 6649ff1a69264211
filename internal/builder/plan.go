package builder

import (
	"fmt"
	"path/filepath"
	"sort"

	"soundloom/internal/fileutil"
	"soundloom/internal/soundgroups"
	"soundloom/internal/sprite"
)

// speakerPlan is the ordered per-tier file list derived from the expanded
// sound-group config for one speaker.
type speakerPlan struct {
	speaker string
	word    []sprite.InputFile
	long    []sprite.InputFile
	// missing lists referenced relative paths that do not resolve on disk.
	// They are excluded from packing but surfaced in the report.
	missing []string
}

// planSpeakers walks the expanded groups in declaration order and collects
// each speaker's word and long tier inputs, de-duplicated by path. Sound
// keys must be unique per speaker across both tiers: a key lives in exactly
// one tier.
func planSpeakers(groups []soundgroups.SoundGroup, soundsDir string, only []string) (map[string]*speakerPlan, error) {
	include := map[string]bool{}
	for _, speaker := range only {
		include[speaker] = true
	}
	wanted := func(speaker string) bool {
		return len(include) == 0 || include[speaker]
	}

	plans := map[string]*speakerPlan{}
	planFor := func(speaker string) *speakerPlan {
		plan, ok := plans[speaker]
		if !ok {
			plan = &speakerPlan{speaker: speaker}
			plans[speaker] = plan
		}
		return plan
	}

	seen := map[string]bool{}
	add := func(relPath string, tier sprite.Tier) {
		speaker := soundgroups.SpeakerOf(relPath)
		if speaker == "" || !wanted(speaker) {
			return
		}
		if seen[relPath] {
			return
		}
		seen[relPath] = true

		plan := planFor(speaker)
		absolute := filepath.Join(soundsDir, filepath.FromSlash(relPath))
		if !fileutil.Exists(absolute) {
			plan.missing = append(plan.missing, relPath)
			return
		}
		input := sprite.InputFile{
			Path:         absolute,
			Key:          soundgroups.KeyOf(relPath),
			OriginalPath: relPath,
		}
		switch tier {
		case sprite.TierLong:
			plan.long = append(plan.long, input)
		default:
			plan.word = append(plan.word, input)
		}
	}

	for _, group := range groups {
		for _, versionGroup := range group.VersionGroups {
			for _, relPath := range versionGroup.ResolvedFiles() {
				add(relPath, sprite.TierWord)
			}
		}
		for _, relPath := range group.Long.Paths() {
			add(relPath, sprite.TierLong)
		}
		for _, ref := range group.LongSounds {
			if ref.OriginalPath != "" {
				add(ref.OriginalPath, sprite.TierLong)
			}
		}
	}

	for _, plan := range plans {
		if err := plan.checkTierCollisions(); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// checkTierCollisions rejects a sound key appearing in both tiers.
func (p *speakerPlan) checkTierCollisions() error {
	wordKeys := make(map[string]struct{}, len(p.word))
	for _, input := range p.word {
		wordKeys[input.Key] = struct{}{}
	}
	for _, input := range p.long {
		if _, ok := wordKeys[input.Key]; ok {
			return fmt.Errorf("speaker %s: sound key %q present in both word and long tiers", p.speaker, input.Key)
		}
	}
	return nil
}

// empty reports whether the plan references no packable files at all.
func (p *speakerPlan) empty() bool {
	return len(p.word) == 0 && len(p.long) == 0
}

// sortedSpeakers returns plan keys in stable order for deterministic
// scheduling and reporting.
func sortedSpeakers(plans map[string]*speakerPlan) []string {
	speakers := make([]string, 0, len(plans))
	for speaker := range plans {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	return speakers
}
