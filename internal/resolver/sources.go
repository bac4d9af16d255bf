package resolver

import (
	"net/url"
	"os"
	"strings"
	"sync"
)

// SourceProvider returns the current text of an open file.
type SourceProvider interface {
	Source(fileID string) ([]byte, bool)
}

// AutoloadProvider maps fully-qualified class names to file paths, usually
// from the package manager's generated class map.
type AutoloadProvider interface {
	Lookup(fqn string) (string, bool)
}

// PathResolver derives candidate file paths for a fully-qualified class name
// from namespace prefix rules.
type PathResolver interface {
	Resolve(fqn string) []string
}

// StubSource returns the source text of bundled standard declarations.
// Classes are keyed by short name, functions by their (possibly namespaced)
// name.
type StubSource interface {
	ClassSource(name string) ([]byte, bool)
	FunctionSource(name string) ([]byte, bool)
}

// stubScheme prefixes the synthetic file identifiers of promoted stubs.
const stubScheme = "phpls-stub://"

// StubFileID returns the synthetic file identifier a standard declaration is
// cached under.
func StubFileID(kind, name string) string {
	return stubScheme + kind + "/" + strings.ToLower(strings.TrimPrefix(name, "\\"))
}

// IsStubFile reports whether fileID belongs to a promoted standard declaration.
func IsStubFile(fileID string) bool {
	return strings.HasPrefix(fileID, stubScheme)
}

// OpenFiles holds the buffers of files opened by the host. Their content is
// authoritative over the disk.
type OpenFiles struct {
	mu      sync.RWMutex
	buffers map[string][]byte
}

func NewOpenFiles() *OpenFiles {
	return &OpenFiles{buffers: make(map[string][]byte)}
}

func (o *OpenFiles) Open(fileID string, content []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buffers[fileID] = content
}

func (o *OpenFiles) Close(fileID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.buffers, fileID)
}

func (o *OpenFiles) Source(fileID string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	content, ok := o.buffers[fileID]
	return content, ok
}

// PathFromFileID turns a "file://" URI into a local path. Other identifiers
// are returned unchanged.
func PathFromFileID(fileID string) string {
	if !strings.HasPrefix(fileID, "file://") {
		return fileID
	}
	parsed, err := url.Parse(fileID)
	if err != nil {
		return strings.TrimPrefix(fileID, "file://")
	}
	return parsed.Path
}

// readSource returns the open buffer of fileID or its content on disk. It
// must be called without holding any cache lock.
func (r *Resolver) readSource(fileID string) ([]byte, bool) {
	if IsStubFile(fileID) {
		return nil, false
	}
	if r.sources != nil {
		if content, ok := r.sources.Source(fileID); ok {
			return content, true
		}
	}

	content, err := os.ReadFile(PathFromFileID(fileID))
	if err != nil {
		return nil, false
	}
	return content, true
}

// Source returns the current text of fileID: the open buffer when there is
// one, the file on disk otherwise.
func (r *Resolver) Source(fileID string) ([]byte, bool) {
	return r.readSource(fileID)
}
