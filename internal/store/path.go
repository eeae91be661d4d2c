package store

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultRoot returns the root directory for local vault state.
// Defaults to ~/.vault, falls back to ./.vault if home dir unavailable.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".vault")
	}
	return filepath.Join(home, ".vault")
}

// DBPath returns the default path of the local database file.
func DBPath() string {
	return filepath.Join(DefaultRoot(), "vault.db")
}

// ArtifactDir returns the default directory receiving per-record artifacts.
func ArtifactDir() string {
	return filepath.Join(DefaultRoot(), "artifacts")
}

// EncodeFileComponent makes a producer-supplied value safe to embed in a
// file name. Path separators and characters rejected by common filesystems
// become "-", and the result never starts with a dot.
func EncodeFileComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteByte('-')
		case r < 0x20 || r == 0x7f:
			b.WriteByte('-')
		case r == ' ':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "-"
	}
	const maxLen = 96
	if len(out) > maxLen {
		// Cut on a rune boundary so the name stays valid UTF-8.
		n := maxLen
		for n > 0 && !utf8.RuneStart(out[n]) {
			n--
		}
		out = out[:n]
	}
	return out
}
