// Package fingerprint detects per-speaker source changes between builds.
//
// A speaker's fingerprint is a content-derived hash over every recognized
// audio file in its directory. The hash input is sorted by path, so
// filesystem iteration order never affects the result: only adding, removing,
// or modifying a file changes the fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"soundloom/internal/logging"
)

// Empty is the sentinel fingerprint for a speaker directory with no audio
// files. It is distinct from any real hash.
const Empty = "empty"

// FileRecord is an immutable snapshot of one audio file at scan time.
type FileRecord struct {
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size"`
	ModTime     string `json:"mtime"`
	ContentHash string `json:"hash"`
}

// Snapshot maps speaker-relative paths to their file records.
type Snapshot map[string]FileRecord

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".ogg":  {},
	".flac": {},
}

// IsAudioFile reports whether the path carries a recognized audio extension.
func IsAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan walks a speaker directory and records every recognized audio file.
// Unreadable files are skipped with a warning rather than failing the whole
// speaker; a missing directory is an error.
func Scan(dir string, logger *slog.Logger) (Snapshot, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scan speaker dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan speaker dir: %q is not a directory", dir)
	}

	snapshot := Snapshot{}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}

		record, err := recordFile(dir, path)
		if err != nil {
			logger.Warn("skipping unreadable audio file", "path", path, "error", err)
			return nil
		}
		snapshot[record.Path] = record
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan speaker dir: %w", walkErr)
	}
	return snapshot, nil
}

func recordFile(base, path string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, err
	}

	hash, err := hashFileContent(path)
	if err != nil {
		return FileRecord{}, err
	}

	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = path
	}

	return FileRecord{
		Path:        filepath.ToSlash(rel),
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime().UTC().Format(time.RFC3339),
		ContentHash: hash,
	}, nil
}

// hashFileContent hashes the full file bytes and returns the first 16 hex
// characters of the SHA-256 digest. Full-content hashing is proportional to
// total audio bytes, which is acceptable for a build-time tool.
func hashFileContent(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Compute derives the speaker fingerprint from a scan snapshot: SHA-256 over
// sorted "path:hash:mtime:size" tuples joined by "|", truncated to 12 hex
// characters. An empty snapshot yields the Empty sentinel.
func Compute(snapshot Snapshot) string {
	if len(snapshot) == 0 {
		return Empty
	}

	paths := make([]string, 0, len(snapshot))
	for path := range snapshot {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	tuples := make([]string, 0, len(paths))
	for _, path := range paths {
		record := snapshot[path]
		tuples = append(tuples, fmt.Sprintf("%s:%s:%s:%d", record.Path, record.ContentHash, record.ModTime, record.SizeBytes))
	}

	sum := sha256.Sum256([]byte(strings.Join(tuples, "|")))
	return hex.EncodeToString(sum[:])[:12]
}
