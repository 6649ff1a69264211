// Package tracking persists the per-speaker fingerprint snapshot between
// builds. The snapshot is a single JSON document read and written wholesale
// each run.
package tracking

import (
	"encoding/json"
	"fmt"
	"os"

	"soundloom/internal/fileutil"
	"soundloom/internal/fingerprint"
)

// SpeakerState is the recorded outcome of one speaker's last build.
type SpeakerState struct {
	Files         fingerprint.Snapshot `json:"files"`
	Hash          string               `json:"hash"`
	LastGenerated string               `json:"lastGenerated"`
}

// Snapshot maps speaker ids to their recorded state.
type Snapshot map[string]SpeakerState

// Load reads the tracking snapshot. A missing file yields an empty snapshot,
// which forces every speaker to regenerate.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("read tracking snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse tracking snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	return snapshot, nil
}

// Write persists the whole snapshot atomically.
func (s Snapshot) Write(path string) error {
	return fileutil.WriteJSONAtomic(path, s)
}

// NeedsRegen applies the change-detection policy: a speaker is regenerated
// iff forced, no prior fingerprint is recorded, or the fingerprint differs.
// Unrelated speakers are unaffected by one speaker's changes.
func (s Snapshot) NeedsRegen(speaker, hash string, force bool) bool {
	if force {
		return true
	}
	prior, ok := s[speaker]
	if !ok {
		return true
	}
	return prior.Hash != hash
}
