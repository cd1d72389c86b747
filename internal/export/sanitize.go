package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// ErrBadOutputDir is returned for export directories that are missing,
// unclean or not directories.
var ErrBadOutputDir = errors.New("invalid export directory")

// SanitizeName turns a media title or cut id into a file name. Control
// characters are dropped, anything but letters, digits and " -_.,()" becomes
// an underscore, and the result is cut to maxLen runes when maxLen > 0.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s)
	cleaned = strings.TrimSpace(cleaned)

	if runes := []rune(cleaned); maxLen > 0 && len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}

// OutputPath returns base/<media>/<name><ext>, creating the directory. Both
// path elements are sanitised so neither can escape base.
func OutputPath(base, mediaID, name, ext string) (string, error) {
	if err := ValidateOutputDir(base); err != nil {
		return "", err
	}
	sub := SanitizeName(mediaID, 64)
	file := SanitizeName(name, 120)
	if strings.Trim(sub, ".") == "" || strings.Trim(file, ".") == "" {
		return "", fmt.Errorf("invalid output name %q/%q", mediaID, name)
	}

	dir := filepath.Join(base, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return filepath.Join(dir, file+ext), nil
}

// ValidateOutputDir checks that dir is a clean path to an existing directory.
func ValidateOutputDir(dir string) error {
	switch {
	case strings.TrimSpace(dir) == "":
		return fmt.Errorf("%w: empty path", ErrBadOutputDir)
	case slices.Contains(strings.Split(filepath.ToSlash(dir), "/"), ".."):
		return fmt.Errorf("%w: %s contains ..", ErrBadOutputDir, dir)
	case filepath.Clean(dir) != dir:
		return fmt.Errorf("%w: %s is not clean", ErrBadOutputDir, dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadOutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBadOutputDir, dir)
	}
	return nil
}
