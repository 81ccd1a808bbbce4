package reporting

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputDir returns results/<name> with the name sanitised for use
// as a directory.
func DefaultOutputDir(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		s = "replay"
	}
	return filepath.Join("results", s)
}

// EnsureDirectoryExists creates the parent directory of path
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
