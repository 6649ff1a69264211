// Package soundgroups models the declarative sound-group configuration and
// its expansion from compact pattern declarations into explicit file lists.
package soundgroups

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"soundloom/internal/fileutil"
)

// PatternRef applies a numbered-file pattern across one speaker.
type PatternRef struct {
	Speaker   string `json:"speaker"`
	FileCount int    `json:"fileCount"`
}

// SoundRef is a preprocessed reference to one packed sound.
type SoundRef struct {
	Speaker      string `json:"speaker"`
	SoundKey     string `json:"soundKey"`
	Verified     bool   `json:"verified"`
	OriginalPath string `json:"originalPath,omitempty"`
}

// Source identifies which form a version group's sound list is in. The
// config format migrated from a bare file list to preprocessed sound
// references; both are handled at this one conversion boundary.
type Source int

const (
	// SourceEmpty means the group carries neither files nor sounds yet.
	SourceEmpty Source = iota
	// SourceLegacy means the group carries relative file paths.
	SourceLegacy
	// SourcePreprocessed means the group carries verified sound references.
	SourcePreprocessed
)

// VersionGroup is one set of audio variants that all represent the same
// answer in the quiz.
type VersionGroup struct {
	Name   string     `json:"name"`
	Files  []string   `json:"files,omitempty"`
	Sounds []SoundRef `json:"sounds,omitempty"`
}

// Source reports which representation this group carries. A group holding
// both is treated as preprocessed; the file list is then redundant input.
func (g *VersionGroup) Source() Source {
	switch {
	case len(g.Sounds) > 0:
		return SourcePreprocessed
	case len(g.Files) > 0:
		return SourceLegacy
	default:
		return SourceEmpty
	}
}

// ResolvedFiles returns the speaker-relative paths this group refers to,
// regardless of representation.
func (g *VersionGroup) ResolvedFiles() []string {
	switch g.Source() {
	case SourcePreprocessed:
		files := make([]string, 0, len(g.Sounds))
		for _, sound := range g.Sounds {
			if sound.OriginalPath != "" {
				files = append(files, sound.OriginalPath)
				continue
			}
			files = append(files, path.Join(sound.Speaker, sound.SoundKey+".mp3"))
		}
		return files
	case SourceLegacy:
		return append([]string(nil), g.Files...)
	default:
		return nil
	}
}

// LongField accepts either a single string or a list of strings in JSON and
// always marshals back in the same shape it was read.
type LongField struct {
	paths  []string
	single bool
}

// NewLongField builds a LongField from explicit paths.
func NewLongField(paths ...string) LongField {
	return LongField{paths: paths, single: len(paths) == 1}
}

// Paths returns the long-sound relative paths.
func (f LongField) Paths() []string {
	return append([]string(nil), f.paths...)
}

// IsZero reports whether no long sounds are declared.
func (f LongField) IsZero() bool {
	return len(f.paths) == 0
}

func (f *LongField) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		f.paths = []string{single}
		f.single = true
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("long: expected string or list of strings: %w", err)
	}
	f.paths = many
	f.single = false
	return nil
}

func (f LongField) MarshalJSON() ([]byte, error) {
	if f.single && len(f.paths) == 1 {
		return json.Marshal(f.paths[0])
	}
	return json.Marshal(f.paths)
}

// SoundGroup is the source-of-truth declarative unit: one quiz row.
type SoundGroup struct {
	Name          string         `json:"name"`
	Note          string         `json:"note,omitempty"`
	ApplyPattern  []PatternRef   `json:"applyPattern,omitempty"`
	VersionGroups []VersionGroup `json:"versionGroups,omitempty"`
	Long          LongField      `json:"long,omitempty"`
	LongSounds    []SoundRef     `json:"longSounds,omitempty"`
}

// LoadFile reads a JSON list of sound groups.
func LoadFile(path string) ([]SoundGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sound groups: %w", err)
	}
	var groups []SoundGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse sound groups: %w", err)
	}
	return groups, nil
}

// WriteFile writes groups as indented JSON, atomically.
func WriteFile(path string, groups []SoundGroup) error {
	return fileutil.WriteJSONAtomic(path, groups)
}

// SpeakerOf extracts the speaker component from a "{speaker}/{file}" relative
// path. Returns "" when the path has no directory component.
func SpeakerOf(relPath string) string {
	relPath = strings.TrimPrefix(path.Clean(strings.ReplaceAll(relPath, "\\", "/")), "/")
	if idx := strings.IndexByte(relPath, '/'); idx > 0 {
		return relPath[:idx]
	}
	return ""
}

// KeyOf derives the logical sound key from a relative path: the base name
// without its extension.
func KeyOf(relPath string) string {
	base := path.Base(strings.ReplaceAll(relPath, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
