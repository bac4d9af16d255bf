package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ProjectCacheDir returns the per-project cache directory below the user
// cache directory, creating it if needed.
func ProjectCacheDir(projectRoot string) (string, error) {
	cacheDir, err := userCacheDir()
	if err != nil {
		return "", err
	}

	projectSlug := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(projectRoot)
	dir := filepath.Join(cacheDir, "phpls", projectSlug)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return dir, nil
}

func userCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		return cacheDir, nil
	}

	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(usr.HomeDir, ".cache"), nil
}
