package resolver

import (
	"strings"
	"sync"

	"github.com/shopware/phpls/internal/php"
)

// FunctionCache holds the functions of all cached files keyed by their
// fully-qualified name. It has its own lock so that function lookups never
// contend with class lookups.
type FunctionCache struct {
	mu        sync.RWMutex
	functions map[string]*php.Function
	files     map[string][]string
}

func NewFunctionCache() *FunctionCache {
	return &FunctionCache{
		functions: make(map[string]*php.Function),
		files:     make(map[string][]string),
	}
}

func functionKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "\\"))
}

// Replace swaps the functions recorded for fileID.
func (c *FunctionCache) Replace(fileID string, functions []*php.Function) {
	guarded("function cache write", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.removeLocked(fileID)
		keys := make([]string, 0, len(functions))
		for _, fn := range functions {
			key := functionKey(fn.FQN())
			c.functions[key] = fn
			keys = append(keys, key)
		}
		if len(keys) > 0 {
			c.files[fileID] = keys
		}
		return true
	})
}

// Remove drops the functions recorded for fileID.
func (c *FunctionCache) Remove(fileID string) {
	guarded("function cache write", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.removeLocked(fileID)
		return true
	})
}

func (c *FunctionCache) removeLocked(fileID string) {
	for _, key := range c.files[fileID] {
		if fn, ok := c.functions[key]; ok && fn.File == fileID {
			delete(c.functions, key)
		}
	}
	delete(c.files, fileID)
}

// Get returns the function with the fully-qualified name fqn.
func (c *FunctionCache) Get(fqn string) *php.Function {
	return guarded("function cache read", func() *php.Function {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.functions[functionKey(fqn)]
	})
}
