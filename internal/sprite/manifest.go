// Package sprite packs ordered audio clips into one blob with a
// millisecond-accurate sprite map, and models the per-speaker tier manifests
// the runtime loader consumes.
package sprite

import (
	"encoding/json"
	"fmt"
	"os"

	"soundloom/internal/fileutil"
)

// Tier partitions one speaker's sounds by loading priority.
type Tier string

const (
	// TierWord holds the short syllable clips, loaded eagerly.
	TierWord Tier = "word"
	// TierLong holds comparison phrases, loaded lazily in the background.
	TierLong Tier = "long"
)

// Entry locates one sound inside a sprite blob. Start and Length are integer
// milliseconds measured against the blob's timeline.
type Entry struct {
	Start        int    `json:"start"`
	Length       int    `json:"length"`
	OriginalPath string `json:"originalPath,omitempty"`
}

// Map maps logical sound keys to their blob segments.
type Map map[string]Entry

// Manifest is the per-speaker, per-tier sprite manifest published next to
// the blob.
type Manifest struct {
	Speaker       string   `json:"speaker"`
	GeneratedAt   string   `json:"generatedAt"`
	TotalFiles    int      `json:"totalFiles"`
	TotalDuration int      `json:"totalDuration"`
	Src           []string `json:"src"`
	SpriteMap     Map      `json:"spritemap"`
}

// BlobFilename is the published audio blob name for a speaker tier.
func BlobFilename(speaker string, tier Tier) string {
	return fmt.Sprintf("%s-%s-sprite.mp3", speaker, tier)
}

// ManifestFilename is the published manifest name for a speaker tier.
func ManifestFilename(speaker string, tier Tier) string {
	return fmt.Sprintf("%s-%s-sprite.json", speaker, tier)
}

// WriteManifest publishes the manifest as indented JSON, atomically.
func WriteManifest(path string, m *Manifest) error {
	return fileutil.WriteJSONAtomic(path, m)
}

// LoadManifest reads a published sprite manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sprite manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse sprite manifest: %w", err)
	}
	return &m, nil
}

// ParseManifest decodes a manifest from raw bytes (runtime fetch path).
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse sprite manifest: %w", err)
	}
	return &m, nil
}
