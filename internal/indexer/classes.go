package indexer

import (
	"fmt"
	"strings"
)

// ClassLocation is one entry of the persistent class index.
type ClassLocation struct {
	FQN  string `msgpack:"fqn"`
	File string `msgpack:"file"`
}

// IndexedFile is the outcome of indexing a single file.
type IndexedFile struct {
	Path    string
	Hash    uint64
	Classes []string
}

// ClassStore persists class locations so that a restart starts with the
// global class index already filled.
type ClassStore struct {
	data *DataIndexer[ClassLocation]
}

// OpenClassStore opens the store at dbPath; an empty path keeps it in memory.
func OpenClassStore(dbPath string) (*ClassStore, error) {
	data, err := NewDataIndexer[ClassLocation](dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open class store: %w", err)
	}
	return &ClassStore{data: data}, nil
}

func classKey(fqn string) string {
	return strings.ToLower(strings.TrimPrefix(fqn, "\\"))
}

// Hydrate replays every stored location into recorder and returns how many
// there were.
func (s *ClassStore) Hydrate(recorder Recorder) (int, error) {
	locations, err := s.data.GetAllValues()
	if err != nil {
		return 0, fmt.Errorf("failed to load class locations: %w", err)
	}

	for _, location := range locations {
		recorder.RecordClass(location.FQN, location.File)
	}
	return len(locations), nil
}

// Save replaces the stored classes of every given file.
func (s *ClassStore) Save(files []IndexedFile) error {
	batch := make([]FileItems[ClassLocation], 0, len(files))
	for _, file := range files {
		items := make(map[string][]ClassLocation, len(file.Classes))
		for _, fqn := range file.Classes {
			key := classKey(fqn)
			items[key] = append(items[key], ClassLocation{FQN: strings.TrimPrefix(fqn, "\\"), File: file.Path})
		}
		batch = append(batch, FileItems[ClassLocation]{Path: file.Path, Hash: file.Hash, Items: items})
	}
	return s.data.ReplaceFiles(batch)
}

// Remove forgets the given files.
func (s *ClassStore) Remove(paths []string) error {
	return s.data.BatchDeleteByFilePaths(paths)
}

// Lookup returns every stored location of fqn, case-insensitively.
func (s *ClassStore) Lookup(fqn string) ([]ClassLocation, error) {
	return s.data.GetValues(classKey(fqn))
}

// Hashes returns the content hash of every stored file.
func (s *ClassStore) Hashes() (map[string]uint64, error) {
	return s.data.FileHashes()
}

// ClassesOf returns the lower-cased names stored for a file.
func (s *ClassStore) ClassesOf(path string) ([]string, error) {
	return s.data.GetAllKeysByPath(path)
}

func (s *ClassStore) Clear() error {
	return s.data.Clear()
}

func (s *ClassStore) Close() error {
	return s.data.Close()
}
