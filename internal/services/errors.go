package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for error classification. Build-side and runtime
// components wrap their failures with one of these so callers can branch on
// error kind without string matching.
var (
	// ErrScan marks filesystem scan failures (unreadable file, missing
	// directory). These are usually skippable per file.
	ErrScan = errors.New("scan error")
	// ErrIntegrity marks referenced-but-missing content: a config path that
	// does not resolve on disk, or a sound key absent from a packed sprite.
	ErrIntegrity = errors.New("integrity error")
	// ErrExternalTool marks ffmpeg/ffprobe invocation failures.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup miss that will not resolve by waiting.
	ErrNotFound = errors.New("not found")
	// ErrNotYetAvailable marks a lookup miss that may resolve once a
	// background tier load completes. Callers should retry after the long
	// tier settles.
	ErrNotYetAvailable = errors.New("not yet available")
	// ErrTransport marks network fetch failures on the runtime side.
	ErrTransport = errors.New("transport error")
	// ErrDecode marks audio decode failures on the runtime side.
	ErrDecode = errors.New("decode error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether a runtime resolution failure may clear on its
// own once background loading settles.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNotYetAvailable)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
