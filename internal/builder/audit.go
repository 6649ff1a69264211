package builder

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"soundloom/internal/config"
	"soundloom/internal/fileutil"
	"soundloom/internal/logging"
	"soundloom/internal/manifest"
	"soundloom/internal/soundgroups"
	"soundloom/internal/sprite"
)

// AuditResult is the outcome of verifying an expanded config against the
// published sprite manifests and the files on disk.
type AuditResult struct {
	// Groups is the processed config: every legacy file list converted to
	// verified sound references. Unverified references are retained with
	// Verified set to false, never dropped.
	Groups []soundgroups.SoundGroup
	// PatternsExpanded counts applyPattern declarations resolved this pass.
	PatternsExpanded int
	// MissingFiles lists referenced paths absent from the sounds directory.
	MissingFiles []string
	// Unverified lists "speaker/key" references absent from the published
	// sprite maps.
	Unverified []string
}

// OK reports whether the audit found no problems.
func (r *AuditResult) OK() bool {
	return len(r.MissingFiles) == 0 && len(r.Unverified) == 0
}

// Audit expands the groups, checks every referenced file against the sounds
// directory and every sound key against the published sprite manifests, and
// returns the processed config plus problem counts. It never fails on a bad
// reference; problems aggregate into the result so one pass reports
// everything.
func Audit(cfg *config.Config, groups []soundgroups.SoundGroup, logger *slog.Logger) (*AuditResult, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "audit")

	patterns := 0
	for _, group := range groups {
		patterns += len(group.ApplyPattern)
	}
	expanded := soundgroups.ExpandAll(groups)

	keys, err := loadSpriteKeys(cfg.Paths.DistDir)
	if err != nil {
		return nil, err
	}

	result := &AuditResult{PatternsExpanded: patterns}
	missingSeen := map[string]bool{}
	unverifiedSeen := map[string]bool{}

	verify := func(relPath string, tier sprite.Tier) soundgroups.SoundRef {
		speaker := soundgroups.SpeakerOf(relPath)
		key := soundgroups.KeyOf(relPath)
		ref := soundgroups.SoundRef{
			Speaker:      speaker,
			SoundKey:     key,
			OriginalPath: relPath,
		}

		absolute := filepath.Join(cfg.Paths.SoundsDir, filepath.FromSlash(relPath))
		if !fileutil.Exists(absolute) && !missingSeen[relPath] {
			missingSeen[relPath] = true
			result.MissingFiles = append(result.MissingFiles, relPath)
		}

		ref.Verified = keys.contains(speaker, tier, key)
		if !ref.Verified {
			id := speaker + "/" + key
			if !unverifiedSeen[id] {
				unverifiedSeen[id] = true
				result.Unverified = append(result.Unverified, id)
			}
		}
		return ref
	}

	processed := make([]soundgroups.SoundGroup, 0, len(expanded))
	for _, group := range expanded {
		out := soundgroups.SoundGroup{Name: group.Name, Note: group.Note}

		for _, versionGroup := range group.VersionGroups {
			converted := soundgroups.VersionGroup{Name: versionGroup.Name}
			for _, relPath := range versionGroup.ResolvedFiles() {
				converted.Sounds = append(converted.Sounds, verify(relPath, sprite.TierWord))
			}
			out.VersionGroups = append(out.VersionGroups, converted)
		}

		longPaths := group.Long.Paths()
		for _, ref := range group.LongSounds {
			if ref.OriginalPath != "" {
				longPaths = append(longPaths, ref.OriginalPath)
			}
		}
		longSeen := map[string]bool{}
		for _, relPath := range longPaths {
			if longSeen[relPath] {
				continue
			}
			longSeen[relPath] = true
			out.LongSounds = append(out.LongSounds, verify(relPath, sprite.TierLong))
		}

		processed = append(processed, out)
	}

	sort.Strings(result.MissingFiles)
	sort.Strings(result.Unverified)
	result.Groups = processed

	logger.Info("audit complete",
		"patterns_expanded", result.PatternsExpanded,
		"missing_files", len(result.MissingFiles),
		"unverified", len(result.Unverified))
	return result, nil
}

// spriteKeys indexes published sound keys by speaker and tier.
type spriteKeys map[string]map[sprite.Tier]map[string]bool

func (k spriteKeys) contains(speaker string, tier sprite.Tier, key string) bool {
	tiers, ok := k[speaker]
	if !ok {
		return false
	}
	return tiers[tier][key]
}

// loadSpriteKeys reads the master manifest and every referenced tier manifest
// from the dist directory. A missing master yields an empty index, which
// marks every reference unverified; audit before first build is legal.
func loadSpriteKeys(distDir string) (spriteKeys, error) {
	master, err := manifest.Load(filepath.Join(distDir, manifest.Filename))
	if err != nil {
		return nil, err
	}
	keys := spriteKeys{}
	if master == nil {
		return keys, nil
	}

	for speaker, entry := range master.Sprites {
		tiers := map[sprite.Tier]map[string]bool{}
		refs := map[sprite.Tier]*manifest.TierRef{
			sprite.TierWord: entry.Word,
			sprite.TierLong: entry.Long,
		}
		for tier, ref := range refs {
			if ref == nil {
				continue
			}
			tierManifest, loadErr := sprite.LoadManifest(filepath.Join(distDir, ref.ManifestFile))
			if loadErr != nil {
				return nil, fmt.Errorf("load %s manifest for speaker %s: %w", tier, speaker, loadErr)
			}
			set := make(map[string]bool, len(tierManifest.SpriteMap))
			for key := range tierManifest.SpriteMap {
				set[key] = true
			}
			tiers[tier] = set
		}
		keys[speaker] = tiers
	}
	return keys, nil
}
