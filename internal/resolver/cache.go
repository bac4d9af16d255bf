package resolver

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/shopware/phpls/internal/metrics"
	"github.com/shopware/phpls/internal/php"
)

// Entry is the cached extraction result of one file. The three parts are
// always replaced together.
type Entry struct {
	Declarations []*php.Declaration
	Imports      *php.ImportTable
	Namespace    string
}

type cacheEntry struct {
	file *php.File
	hash uint64
}

// FileCache stores the extraction result per file identifier. Entries are
// immutable once stored: an update swaps the whole entry, so readers see
// either the old or the new parse, never a mix.
type FileCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

func NewFileCache() *FileCache {
	return &FileCache{entries: make(map[string]*cacheEntry)}
}

// Update re-extracts source and replaces the entry of fileID. Parsing happens
// outside the lock. An unchanged source keeps the existing entry.
func (c *FileCache) Update(fileID string, source []byte) *php.File {
	hash := xxhash.Sum64(source)

	if existing := c.file(fileID); existing != nil && existing.hash == hash {
		return existing.file
	}

	file := php.Extract(fileID, source)
	c.Store(fileID, file, hash)
	return file
}

// Store replaces the entry of fileID with an already extracted file.
func (c *FileCache) Store(fileID string, file *php.File, hash uint64) {
	if file.Imports == nil {
		file.Imports = php.NewImportTable()
	}

	entry := &cacheEntry{file: file, hash: hash}
	guarded("file cache store", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.entries[fileID] = entry
		return true
	})
	metrics.FileCacheUpdates.Inc()
}

// Get returns the cached triple of fileID, or empty defaults.
func (c *FileCache) Get(fileID string) Entry {
	entry := c.file(fileID)
	if entry == nil {
		return Entry{Imports: php.NewImportTable()}
	}
	return Entry{
		Declarations: entry.file.Declarations,
		Imports:      entry.file.Imports,
		Namespace:    entry.file.Namespace,
	}
}

// File returns the full extraction result of fileID, or nil.
func (c *FileCache) File(fileID string) *php.File {
	entry := c.file(fileID)
	if entry == nil {
		return nil
	}
	return entry.file
}

// Has reports whether fileID is cached.
func (c *FileCache) Has(fileID string) bool {
	return c.file(fileID) != nil
}

func (c *FileCache) file(fileID string) *cacheEntry {
	return guarded("file cache read", func() *cacheEntry {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.entries[fileID]
	})
}

// Remove destroys the entry of fileID.
func (c *FileCache) Remove(fileID string) {
	guarded("file cache remove", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.entries, fileID)
		return true
	})
}

// Find scans every cached file for a declaration with the given namespace
// and short name.
func (c *FileCache) Find(namespace, name string) *php.Declaration {
	return guarded("file cache scan", func() *php.Declaration {
		c.mu.RLock()
		defer c.mu.RUnlock()

		for _, entry := range c.entries {
			for _, decl := range entry.file.Declarations {
				if strings.EqualFold(decl.Name, name) && strings.EqualFold(decl.Namespace, namespace) {
					return decl
				}
			}
		}
		return nil
	})
}

// Files returns the identifiers of all cached files.
func (c *FileCache) Files() []string {
	return guarded("file cache list", func() []string {
		c.mu.RLock()
		defer c.mu.RUnlock()

		files := make([]string, 0, len(c.entries))
		for fileID := range c.entries {
			files = append(files, fileID)
		}
		return files
	})
}

// Declarations returns all cached declarations. The slice is a copy; the
// declarations themselves are shared and must not be mutated.
func (c *FileCache) Declarations() []*php.Declaration {
	return guarded("file cache list", func() []*php.Declaration {
		c.mu.RLock()
		defer c.mu.RUnlock()

		var result []*php.Declaration
		for _, entry := range c.entries {
			result = append(result, entry.file.Declarations...)
		}
		return result
	})
}
