package resolver

import (
	"strings"
	"sync"

	"github.com/shopware/phpls/internal/metrics"
)

// ClassIndex maps fully-qualified class names to the file that declares
// them. It holds locations only, never declarations.
type ClassIndex struct {
	mu      sync.RWMutex
	classes map[string]string
	files   map[string][]string
}

func NewClassIndex() *ClassIndex {
	return &ClassIndex{
		classes: make(map[string]string),
		files:   make(map[string][]string),
	}
}

func indexKey(fqn string) string {
	return strings.ToLower(strings.TrimPrefix(fqn, "\\"))
}

// RecordClass remembers that fqn is declared in fileID.
func (i *ClassIndex) RecordClass(fqn, fileID string) {
	guarded("class index write", func() bool {
		i.mu.Lock()
		defer i.mu.Unlock()

		key := indexKey(fqn)
		if previous, ok := i.classes[key]; ok && previous == fileID {
			return true
		}
		i.classes[key] = fileID
		i.files[fileID] = append(i.files[fileID], key)
		metrics.IndexedClasses.Set(float64(len(i.classes)))
		return true
	})
}

// ForgetFile drops every class recorded for fileID.
func (i *ClassIndex) ForgetFile(fileID string) {
	guarded("class index write", func() bool {
		i.mu.Lock()
		defer i.mu.Unlock()

		for _, key := range i.files[fileID] {
			if i.classes[key] == fileID {
				delete(i.classes, key)
			}
		}
		delete(i.files, fileID)
		metrics.IndexedClasses.Set(float64(len(i.classes)))
		return true
	})
}

// Lookup returns the file recorded for fqn.
func (i *ClassIndex) Lookup(fqn string) (string, bool) {
	type result struct {
		file string
		ok   bool
	}

	r := guarded("class index read", func() result {
		i.mu.RLock()
		defer i.mu.RUnlock()

		file, ok := i.classes[indexKey(fqn)]
		return result{file, ok}
	})
	return r.file, r.ok
}

func (i *ClassIndex) Len() int {
	return guarded("class index read", func() int {
		i.mu.RLock()
		defer i.mu.RUnlock()
		return len(i.classes)
	})
}
