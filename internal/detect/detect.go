// Package detect classifies project paths by on-disk format and migrates
// legacy layouts forward. Migration is one-directional: legacy archives
// become single-file stores, single-file stores become bundles, never the
// reverse.
package detect

import (
	"fmt"
	"os"

	"github.com/vasolab/vasostore/internal/archive"
	"github.com/vasolab/vasostore/internal/bundle"
	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// Format classifications returned by DetectProjectFormat.
const (
	FormatSingleFile = types.FormatSingleFile
	FormatBundle     = types.FormatBundle
	FormatLegacy     = "legacy-archive"
)

// DetectProjectFormat classifies a path as a bundle directory, a single-file
// store, or a legacy zip archive. Anything else is ErrInvalidFormat.
func DetectProjectFormat(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("project path: %w", err)
	}
	if info.IsDir() {
		if bundle.IsBundle(path) {
			return FormatBundle, nil
		}
		return "", fmt.Errorf("%s is a directory without bundle markers: %w", path, types.ErrInvalidFormat)
	}
	if sqlite.HasMagic(path) {
		return FormatSingleFile, nil
	}
	if archive.IsLegacyArchive(path) {
		return FormatLegacy, nil
	}
	return "", fmt.Errorf("%s matches no known project format: %w", path, types.ErrInvalidFormat)
}

// IsLegacyProject reports whether path is a legacy zip archive in either
// generation of the layout.
func IsLegacyProject(path string) bool {
	return archive.IsLegacyArchive(path)
}
