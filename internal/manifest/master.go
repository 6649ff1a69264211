// Package manifest models the master manifest: the single entry point the
// runtime loader reads to discover every speaker's sprite tiers.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"soundloom/internal/fileutil"
)

// Version is the current master manifest format version.
const Version = 2

// TierRef points at one published blob + manifest pair.
type TierRef struct {
	AudioFile     string `json:"audioFile"`
	ManifestFile  string `json:"manifestFile"`
	TotalFiles    int    `json:"totalFiles"`
	TotalDuration int    `json:"totalDuration"`
	GeneratedAt   string `json:"generatedAt"`
}

// SpeakerEntry indexes one speaker's tiers. A speaker without long sounds
// has a nil Long ref; the runtime treats that as the degenerate single-tier
// case (always "ready").
type SpeakerEntry struct {
	Word          *TierRef `json:"word,omitempty"`
	Long          *TierRef `json:"long,omitempty"`
	TotalFiles    int      `json:"totalFiles"`
	TotalDuration int      `json:"totalDuration"`
}

// Master is the top-level manifest written once per successful build.
type Master struct {
	Version     int                     `json:"version"`
	GeneratedAt string                  `json:"generatedAt"`
	RunID       string                  `json:"runId,omitempty"`
	Sprites     map[string]SpeakerEntry `json:"sprites"`
}

// New returns an empty master stamped with the current time and run id.
func New(runID string) *Master {
	return &Master{
		Version:     Version,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RunID:       runID,
		Sprites:     map[string]SpeakerEntry{},
	}
}

// Filename is the published master manifest name.
const Filename = "manifest.json"

// Load reads a master manifest from disk. A missing file returns (nil, nil)
// so first builds start from an empty previous state.
func Load(path string) (*Master, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read master manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a master manifest from raw bytes.
func Parse(data []byte) (*Master, error) {
	var m Master
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse master manifest: %w", err)
	}
	if m.Sprites == nil {
		m.Sprites = map[string]SpeakerEntry{}
	}
	return &m, nil
}

// Write publishes the master atomically.
func (m *Master) Write(path string) error {
	return fileutil.WriteJSONAtomic(path, m)
}

// MergePrevious carries forward entries from a previous master for speakers
// absent from this run, so a failed or skipped speaker keeps its last
// published tiers.
func (m *Master) MergePrevious(previous *Master) {
	if previous == nil {
		return
	}
	for speaker, entry := range previous.Sprites {
		if _, ok := m.Sprites[speaker]; !ok {
			m.Sprites[speaker] = entry
		}
	}
}

// Speakers returns the indexed speaker ids in sorted order.
func (m *Master) Speakers() []string {
	speakers := make([]string, 0, len(m.Sprites))
	for speaker := range m.Sprites {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	return speakers
}
