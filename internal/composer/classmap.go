// Package composer reads the autoload information of a Composer project:
// the generated class map, the PSR-4 rules of composer.json and of the
// installed packages.
package composer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default locations relative to the project root.
const (
	DefaultComposerJSON  = "composer.json"
	DefaultClassMap      = "vendor/composer/autoload_classmap.php"
	DefaultInstalledPSR4 = "vendor/composer/autoload_psr4.php"
)

// ClassMap is an immutable snapshot of the generated class map. Lookups are
// case-insensitive like class names.
type ClassMap struct {
	classes map[string]string
}

// NewClassMap builds a snapshot from fully-qualified names to paths.
func NewClassMap(classes map[string]string) *ClassMap {
	m := &ClassMap{classes: make(map[string]string, len(classes))}
	for fqn, path := range classes {
		m.classes[classKey(fqn)] = path
	}
	return m
}

func classKey(fqn string) string {
	return strings.ToLower(strings.TrimPrefix(fqn, "\\"))
}

// LoadClassMap reads autoload_classmap.php. Paths are made absolute
// relative to the directory of the file.
func LoadClassMap(path string) (*ClassMap, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class map: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve class map directory: %w", err)
	}

	return ParseClassMap(content, dir), nil
}

// ParseClassMap evaluates the content of autoload_classmap.php as if it
// lived in dir. Entries that cannot be evaluated are skipped.
func ParseClassMap(content []byte, dir string) *ClassMap {
	m := &ClassMap{classes: make(map[string]string)}
	for _, entry := range parseGeneratedArray("autoload_classmap.php", content, dir) {
		m.classes[classKey(entry.Key)] = filepath.Clean(entry.Values[0])
	}
	return m
}

// Lookup returns the file declaring fqn.
func (m *ClassMap) Lookup(fqn string) (string, bool) {
	if m == nil {
		return "", false
	}
	path, ok := m.classes[classKey(fqn)]
	return path, ok
}

func (m *ClassMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.classes)
}
