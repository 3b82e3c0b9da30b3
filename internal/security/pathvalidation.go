package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports whether filePath resolves to a
// location inside dir. Symlinks are resolved on both sides, so a link
// planted inside dir cannot redirect the path out of it. The detection
// image handler uses this to keep a stored image_path from reading
// outside the snapshot directory.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, resolveExisting(absPath))
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}

	return nil
}

// resolveExisting resolves symlinks in path. When path itself does not
// exist yet, symlinks are resolved in its nearest existing ancestor and
// the remaining components re-joined, so a symlinked parent cannot point
// a new file somewhere else.
func resolveExisting(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	probe := path
	for {
		parent := filepath.Dir(probe)
		if parent == probe {
			// Walked to the root without finding an existing directory.
			return path
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, path)
			return filepath.Join(resolved, rel)
		}
		probe = parent
	}
}

// SanitizeFilename reduces an arbitrary identifier to characters safe in
// a file name: ASCII letters, digits, dot, underscore and dash. Runs of
// other characters collapse to a single underscore and the result is
// capped at 128 bytes. Track IDs pass through unchanged.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	substituted := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		if safe {
			b.WriteRune(r)
			substituted = false
		} else if !substituted {
			b.WriteByte('_')
			substituted = true
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
