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

var (
	ErrOutputDirRequired = errors.New("output_dir is required")
	ErrOutputDirRelative = errors.New("output_dir must be an absolute path")
	ErrOutputDirUnclean  = errors.New("output_dir must be a clean path without ..")
	ErrOutputDirMissing  = errors.New("output_dir does not exist")
	ErrOutputDirNotDir   = errors.New("output_dir is not a directory")
)

// defaultFileStem names exports of rows without a usable title.
const defaultFileStem = "heimdex_labels_export"

// SanitizeName makes feature names and titles safe for EDL comments and
// file names. Control characters are dropped, anything outside letters,
// digits and " -_.,()" becomes an underscore, and the result is cut to
// maxLen runes when maxLen is positive.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s))
	if maxLen <= 0 {
		return cleaned
	}
	if runes := []rune(cleaned); len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return cleaned
}

// ValidateOutputDir accepts an existing directory given as a clean absolute
// path; the agent's working directory means nothing to API callers.
func ValidateOutputDir(dir string) error {
	switch {
	case strings.TrimSpace(dir) == "":
		return ErrOutputDirRequired
	case !filepath.IsAbs(dir):
		return ErrOutputDirRelative
	case slices.Contains(strings.Split(filepath.ToSlash(dir), "/"), ".."), filepath.Clean(dir) != dir:
		return ErrOutputDirUnclean
	}

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return ErrOutputDirMissing
	}
	if err != nil {
		return fmt.Errorf("stat output_dir: %w", err)
	}
	if !info.IsDir() {
		return ErrOutputDirNotDir
	}
	return nil
}

// EDLFileName returns the file an export of the named project is written to.
func EDLFileName(projectName string) string {
	name := SanitizeName(projectName, 120)
	if name == "" {
		name = defaultFileStem
	}
	return strings.ReplaceAll(name, " ", "_") + ".edl"
}
