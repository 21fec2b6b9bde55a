// Package security guards the paths packets and exports are written to.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned when a path resolves outside its directory.
var ErrOutsideDir = errors.New("path escapes output directory")

// maxNameLen bounds sanitized file names.
const maxNameLen = 128

// CheckWithinDir returns ErrOutsideDir if path, with symlinks resolved,
// is not inside dir. dir must exist. path need not: its deepest existing
// ancestor is resolved instead, so a symlinked parent cannot redirect a
// file that is about to be created.
func CheckWithinDir(path, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	target, err := canonical(path)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s not in %s", ErrOutsideDir, path, dir)
	}
	return nil
}

// canonical resolves symlinks in the longest existing prefix of path and
// appends the rest unchanged.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	var rest []string
	for cur := abs; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// OutputPath joins dir and a sanitized form of name and checks that the
// result stays inside dir. Video identifiers come from file names on disk
// and packet ids from the database, so neither is trusted as a path.
func OutputPath(dir, name string) (string, error) {
	p := filepath.Join(dir, SanitizeFilename(name))
	if err := CheckWithinDir(p, dir); err != nil {
		return "", err
	}
	return p, nil
}

// SanitizeFilename maps name onto ASCII letters, digits, '.', '_' and '-'.
// Runs of other characters become a single underscore, leading and
// trailing dots and underscores are dropped, and the result is capped at
// 128 bytes. It never returns an empty string.
func SanitizeFilename(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range name {
		if b.Len() >= maxNameLen {
			break
		}
		if isNameRune(r) {
			b.WriteRune(r)
			pending = false
			continue
		}
		if !pending {
			b.WriteByte('_')
			pending = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
