package indexer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	Name  string `msgpack:"name"`
	Value int    `msgpack:"value"`
}

func setupTestDB(t *testing.T, path string) *DataIndexer[testItem] {
	t.Helper()

	idx, err := NewDataIndexer[testItem](path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestDataIndexerReplaceFiles(t *testing.T) {
	idx := setupTestDB(t, "")

	require.NoError(t, idx.ReplaceFiles([]FileItems[testItem]{
		{Path: "a.php", Hash: 1, Items: map[string][]testItem{
			"keyA": {{Name: "a1", Value: 1}},
			"keyB": {{Name: "a2", Value: 2}, {Name: "a3", Value: 3}},
		}},
		{Path: "b.php", Hash: 2, Items: map[string][]testItem{
			"keyA": {{Name: "b1", Value: 4}},
		}},
	}))

	values, err := idx.GetValues("keyA")
	require.NoError(t, err)
	assert.ElementsMatch(t, []testItem{{Name: "a1", Value: 1}, {Name: "b1", Value: 4}}, values)

	keys, err := idx.GetAllKeys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keyA", "keyB"}, keys)

	all, err := idx.GetAllValues()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// replacing a file drops everything it contributed before
	require.NoError(t, idx.ReplaceFiles([]FileItems[testItem]{
		{Path: "a.php", Hash: 3, Items: map[string][]testItem{
			"keyC": {{Name: "a4", Value: 5}},
		}},
	}))

	keys, err = idx.GetAllKeysByPath("a.php")
	require.NoError(t, err)
	assert.Equal(t, []string{"keyC"}, keys)

	values, err = idx.GetValues("keyA")
	require.NoError(t, err)
	assert.Equal(t, []testItem{{Name: "b1", Value: 4}}, values)

	hashes, err := idx.FileHashes()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"a.php": 3, "b.php": 2}, hashes)
}

func TestDataIndexerKeepsFullHashRange(t *testing.T) {
	idx := setupTestDB(t, "")

	const hash = uint64(0xfedcba9876543210)
	require.NoError(t, idx.ReplaceFiles([]FileItems[testItem]{{Path: "big.php", Hash: hash}}))

	hashes, err := idx.FileHashes()
	require.NoError(t, err)
	assert.Equal(t, hash, hashes["big.php"])
}

func TestDataIndexerDeleteAndClear(t *testing.T) {
	idx := setupTestDB(t, "")

	require.NoError(t, idx.ReplaceFiles([]FileItems[testItem]{
		{Path: "a.php", Hash: 1, Items: map[string][]testItem{"key": {{Name: "a"}}}},
		{Path: "b.php", Hash: 2, Items: map[string][]testItem{"key": {{Name: "b"}}}},
		{Path: "c.php", Hash: 3, Items: map[string][]testItem{"key": {{Name: "c"}}}},
	}))

	require.NoError(t, idx.BatchDeleteByFilePaths([]string{"a.php", "c.php"}))
	require.NoError(t, idx.BatchDeleteByFilePaths(nil))

	values, err := idx.GetValues("key")
	require.NoError(t, err)
	assert.Equal(t, []testItem{{Name: "b"}}, values)

	hashes, err := idx.FileHashes()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"b.php": 2}, hashes)

	require.NoError(t, idx.Clear())

	keys, err := idx.GetAllKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDataIndexerPersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "index.db")

	idx, err := NewDataIndexer[testItem](path)
	require.NoError(t, err)
	require.NoError(t, idx.ReplaceFiles([]FileItems[testItem]{
		{Path: "a.php", Hash: 7, Items: map[string][]testItem{"key": {{Name: "kept", Value: 1}}}},
	}))
	require.NoError(t, idx.Close())

	reopened := setupTestDB(t, path)

	values, err := reopened.GetValues("key")
	require.NoError(t, err)
	assert.Equal(t, []testItem{{Name: "kept", Value: 1}}, values)
}
