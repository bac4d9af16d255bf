package indexer

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndMigrateCache(t *testing.T) {
	current := strconv.Itoa(IndexVersion)

	tests := []struct {
		name        string
		version     string // empty: no version file
		wantCleared bool
	}{
		{name: "fresh cache", wantCleared: true},
		{name: "matching version", version: current, wantCleared: false},
		{name: "matching version with whitespace", version: current + "\n", wantCleared: false},
		{name: "old version", version: "0", wantCleared: true},
		{name: "corrupted version", version: "not-a-number", wantCleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cacheDir := t.TempDir()
			versionFile := filepath.Join(cacheDir, versionFileName)
			if tt.version != "" {
				require.NoError(t, os.WriteFile(versionFile, []byte(tt.version), 0o644))
			}

			dbFile := filepath.Join(cacheDir, "classes.db")
			require.NoError(t, os.WriteFile(dbFile, []byte("data"), 0o644))
			nested := filepath.Join(cacheDir, "nested")
			require.NoError(t, os.MkdirAll(nested, 0o755))

			cleared, err := CheckAndMigrateCache(cacheDir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCleared, cleared)

			_, dbErr := os.Stat(dbFile)
			_, nestedErr := os.Stat(nested)
			if tt.wantCleared {
				assert.True(t, os.IsNotExist(dbErr), "cache files are removed")
				assert.True(t, os.IsNotExist(nestedErr), "subdirectories are removed")
			} else {
				assert.NoError(t, dbErr)
				assert.NoError(t, nestedErr)
			}

			data, err := os.ReadFile(versionFile)
			require.NoError(t, err)
			assert.Equal(t, current, string(data)[:len(current)])
		})
	}
}

func TestCheckAndMigrateCacheCreatesMissingDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "phpls", "cache")

	cleared, err := CheckAndMigrateCache(cacheDir)
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = CheckAndMigrateCache(cacheDir)
	require.NoError(t, err)
	assert.False(t, cleared, "second start reuses the cache")
}
