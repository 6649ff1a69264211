package soundgroups

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Expand resolves a group's applyPattern declaration into explicit version
// groups and removes the pattern. It is a pure, idempotent transform: a group
// without a pattern is returned unchanged, and expanding twice yields the
// same result as expanding once.
//
// Candidate sound names come from the group's display name: split on " vs "
// when present, otherwise on whitespace, with parenthetical annotations and
// stray punctuation stripped. For each name and each {speaker, fileCount}
// pattern entry, relative paths "{speaker}/{name} {i}.mp3" are synthesized
// for i in 1..fileCount and merged into the version group of that name by
// path-set union.
func Expand(group SoundGroup) SoundGroup {
	if len(group.ApplyPattern) == 0 {
		return group
	}

	expanded := group
	expanded.ApplyPattern = nil
	expanded.VersionGroups = append([]VersionGroup(nil), group.VersionGroups...)

	for _, name := range CandidateNames(group.Name) {
		for _, pattern := range group.ApplyPattern {
			if pattern.FileCount <= 0 || strings.TrimSpace(pattern.Speaker) == "" {
				continue
			}
			files := make([]string, 0, pattern.FileCount)
			for i := 1; i <= pattern.FileCount; i++ {
				files = append(files, fmt.Sprintf("%s/%s %d.mp3", pattern.Speaker, name, i))
			}
			expanded.VersionGroups = mergeVersionGroup(expanded.VersionGroups, name, files)
		}
	}

	return expanded
}

// ExpandAll expands every group in the list.
func ExpandAll(groups []SoundGroup) []SoundGroup {
	out := make([]SoundGroup, 0, len(groups))
	for _, group := range groups {
		out = append(out, Expand(group))
	}
	return out
}

// mergeVersionGroup unions files into the version group named name, creating
// it when absent. Existing files win their position; new paths append in
// generated order, de-duplicated.
func mergeVersionGroup(groups []VersionGroup, name string, files []string) []VersionGroup {
	for i := range groups {
		if groups[i].Name != name {
			continue
		}
		seen := make(map[string]struct{}, len(groups[i].Files))
		merged := append([]string(nil), groups[i].Files...)
		for _, file := range merged {
			seen[file] = struct{}{}
		}
		for _, file := range files {
			if _, ok := seen[file]; ok {
				continue
			}
			seen[file] = struct{}{}
			merged = append(merged, file)
		}
		groups[i].Files = merged
		return groups
	}
	return append(groups, VersionGroup{Name: name, Files: files})
}

// CandidateNames derives the per-answer sound names from a group display
// name. Names containing Tibetan script are reduced to their Tibetan runes;
// plain names keep letters and digits. Empty results are dropped.
func CandidateNames(displayName string) []string {
	displayName = norm.NFC.String(displayName)

	var parts []string
	if strings.Contains(displayName, " vs ") {
		parts = strings.Split(displayName, " vs ")
	} else {
		parts = strings.Fields(displayName)
	}

	names := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := cleanName(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// isTibetan reports whether r falls in the Tibetan Unicode block
// (U+0F00..U+0FFF).
func isTibetan(r rune) bool {
	return r >= 0x0F00 && r <= 0x0FFF
}

// cleanName strips parenthetical annotations, then reduces the remainder to
// the target script: if any Tibetan runes are present only those survive,
// otherwise letters, digits, and inner spaces are kept.
func cleanName(raw string) string {
	raw = stripParentheticals(raw)

	hasTibetan := strings.ContainsFunc(raw, isTibetan)

	var b strings.Builder
	for _, r := range raw {
		switch {
		case hasTibetan:
			if isTibetan(r) {
				b.WriteRune(r)
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '\'':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// stripParentheticals removes "(...)" spans, tolerating unbalanced input by
// dropping everything after an unclosed paren.
func stripParentheticals(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
