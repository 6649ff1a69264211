package tracking

import (
	"path/filepath"
	"testing"

	"soundloom/internal/fingerprint"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	snapshot, err := Load(filepath.Join(t.TempDir(), "tracking.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(snapshot))
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	snapshot := Snapshot{
		"kh": {
			Files: fingerprint.Snapshot{
				"ka 1.mp3": {Path: "ka 1.mp3", SizeBytes: 10, ModTime: "2026-08-01T10:00:00Z", ContentHash: "abcdef0123456789"},
			},
			Hash:          "0123456789ab",
			LastGenerated: "2026-08-01T10:00:05Z",
		},
	}
	if err := snapshot.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	state, ok := loaded["kh"]
	if !ok {
		t.Fatal("missing kh entry")
	}
	if state.Hash != "0123456789ab" {
		t.Fatalf("hash = %q", state.Hash)
	}
	if state.Files["ka 1.mp3"].ContentHash != "abcdef0123456789" {
		t.Fatalf("file record = %+v", state.Files["ka 1.mp3"])
	}
}

func TestNeedsRegenPolicy(t *testing.T) {
	snapshot := Snapshot{"kh": {Hash: "aaa"}}

	if !snapshot.NeedsRegen("kh", "aaa", true) {
		t.Fatal("force must regenerate")
	}
	if !snapshot.NeedsRegen("new", "bbb", false) {
		t.Fatal("unknown speaker must regenerate")
	}
	if !snapshot.NeedsRegen("kh", "changed", false) {
		t.Fatal("changed fingerprint must regenerate")
	}
	if snapshot.NeedsRegen("kh", "aaa", false) {
		t.Fatal("unchanged fingerprint must skip")
	}
}
