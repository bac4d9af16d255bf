package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IndexVersion is the schema version of everything stored in the cache
// directory. Bumping it discards existing caches on the next start.
const IndexVersion = 1

const versionFileName = "index_version"

// CheckAndMigrateCache prepares cacheDir for the current IndexVersion. A
// missing, unreadable or different version empties the directory. It
// returns true when the cache was cleared and must be rebuilt.
func CheckAndMigrateCache(cacheDir string) (bool, error) {
	versionFile := filepath.Join(cacheDir, versionFileName)

	data, err := os.ReadFile(versionFile)
	switch {
	case err == nil:
		stored, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && stored == IndexVersion {
			return false, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("failed to read version file: %w", err)
	}

	if err := clearCacheDir(cacheDir); err != nil {
		return false, fmt.Errorf("failed to clear cache: %w", err)
	}
	if err := os.WriteFile(versionFile, []byte(strconv.Itoa(IndexVersion)), 0o644); err != nil {
		return false, fmt.Errorf("failed to write version: %w", err)
	}
	return true, nil
}

// clearCacheDir empties cacheDir, creating it when missing.
func clearCacheDir(cacheDir string) error {
	entries, err := os.ReadDir(cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(cacheDir, 0o755)
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := filepath.Join(cacheDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
