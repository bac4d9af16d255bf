// Package resolver turns class and function references into declarations.
//
// Class lookups run through five phases in strict order: the global class
// index, a scan of every cached file, the autoload map, PSR-4 path
// derivation and finally the bundled standard declarations. Every phase that
// parses a file caches the result, so repeated lookups are answered from the
// cache.
package resolver

import (
	"log"
	"strings"
	"sync"

	"github.com/shopware/phpls/internal/metrics"
	"github.com/shopware/phpls/internal/php"
)

// DefaultMaxDepth bounds ancestor walks.
const DefaultMaxDepth = 20

type Resolver struct {
	Files     *FileCache
	Functions *FunctionCache
	Index     *ClassIndex

	autoloadMu sync.RWMutex
	autoload   AutoloadProvider

	paths    PathResolver
	stubs    StubSource
	sources  SourceProvider
	maxDepth int
}

type Option func(*Resolver)

// WithAutoload sets the initial autoload map.
func WithAutoload(autoload AutoloadProvider) Option {
	return func(r *Resolver) { r.autoload = autoload }
}

func WithPathResolver(paths PathResolver) Option {
	return func(r *Resolver) { r.paths = paths }
}

func WithStubs(stubs StubSource) Option {
	return func(r *Resolver) { r.stubs = stubs }
}

// WithSources sets the provider of open file buffers.
func WithSources(sources SourceProvider) Option {
	return func(r *Resolver) { r.sources = sources }
}

func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithClassIndex shares an existing class index, e.g. one hydrated from the
// persistent store.
func WithClassIndex(index *ClassIndex) Option {
	return func(r *Resolver) {
		if index != nil {
			r.Index = index
		}
	}
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		Files:     NewFileCache(),
		Functions: NewFunctionCache(),
		Index:     NewClassIndex(),
		maxDepth:  DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxDepth returns the bound for ancestor walks.
func (r *Resolver) MaxDepth() int {
	return r.maxDepth
}

// SetAutoload swaps the autoload map snapshot.
func (r *Resolver) SetAutoload(autoload AutoloadProvider) {
	r.autoloadMu.Lock()
	defer r.autoloadMu.Unlock()
	r.autoload = autoload
}

func (r *Resolver) lookupAutoload(fqn string) (string, bool) {
	type result struct {
		path string
		ok   bool
	}

	res := guarded("autoload lookup", func() result {
		r.autoloadMu.RLock()
		defer r.autoloadMu.RUnlock()
		if r.autoload == nil {
			return result{}
		}
		path, ok := r.autoload.Lookup(fqn)
		return result{path, ok}
	})
	return res.path, res.ok
}

// Update re-parses fileID and replaces its cache entries, its functions and
// its class index records.
func (r *Resolver) Update(fileID string, source []byte) *php.File {
	previous := r.Files.File(fileID)
	file := r.Files.Update(fileID, source)
	if file == previous {
		return file
	}

	r.Functions.Replace(fileID, file.Functions)
	r.Index.ForgetFile(fileID)
	for _, decl := range file.Declarations {
		r.Index.RecordClass(decl.FQN(), fileID)
	}
	return file
}

// Close drops everything cached for fileID.
func (r *Resolver) Close(fileID string) {
	r.Files.Remove(fileID)
	r.Functions.Remove(fileID)
}

// ResolveClass resolves a class reference as written in a file with the
// given local declarations, imports and namespace. Unqualified names never
// fall back to the global namespace while a namespace is active.
func (r *Resolver) ResolveClass(name string, local []*php.Declaration, imports *php.ImportTable, namespace string) *php.Declaration {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	if fqn, ok := strings.CutPrefix(name, "\\"); ok {
		return r.FindOrLoadClass(fqn)
	}

	first, rest, qualified := strings.Cut(name, "\\")
	if !qualified {
		if fqn, ok := imports.Class(name); ok {
			return r.FindOrLoadClass(fqn)
		}
		if decl := php.FindDeclaration(local, name); decl != nil {
			return decl
		}
		return r.FindOrLoadClass(php.JoinName(namespace, name))
	}

	if strings.EqualFold(first, "namespace") {
		return r.FindOrLoadClass(php.JoinName(namespace, rest))
	}
	if fqn, ok := imports.Class(first); ok {
		return r.FindOrLoadClass(fqn + "\\" + rest)
	}
	if namespace != "" {
		if decl := r.FindOrLoadClass(namespace + "\\" + name); decl != nil {
			return decl
		}
	}
	return r.FindOrLoadClass(name)
}

// FindOrLoadClass looks a fully-qualified class name up through all phases.
func (r *Resolver) FindOrLoadClass(fqn string) *php.Declaration {
	fqn = strings.TrimPrefix(strings.TrimSpace(fqn), "\\")
	if fqn == "" {
		return nil
	}
	namespace, name := php.SplitName(fqn)

	if fileID, ok := r.Index.Lookup(fqn); ok {
		if decl := findIn(r.Files.Get(fileID).Declarations, namespace, name); decl != nil {
			metrics.ClassResolutions.WithLabelValues(metrics.PhaseIndex).Inc()
			return decl
		}
		if decl := r.loadClassFrom(fileID, namespace, name); decl != nil {
			metrics.ClassResolutions.WithLabelValues(metrics.PhaseIndex).Inc()
			return decl
		}
	}

	if decl := r.Files.Find(namespace, name); decl != nil {
		r.Index.RecordClass(fqn, decl.File)
		metrics.ClassResolutions.WithLabelValues(metrics.PhaseCache).Inc()
		return decl
	}

	if path, ok := r.lookupAutoload(fqn); ok {
		if decl := r.loadClassFrom(path, namespace, name); decl != nil {
			metrics.ClassResolutions.WithLabelValues(metrics.PhaseAutoload).Inc()
			return decl
		}
	}

	if r.paths != nil {
		for _, path := range r.paths.Resolve(fqn) {
			if decl := r.loadClassFrom(path, namespace, name); decl != nil {
				metrics.ClassResolutions.WithLabelValues(metrics.PhasePSR4).Inc()
				return decl
			}
		}
	}

	// standard declarations live in the global namespace only
	if namespace == "" && r.stubs != nil {
		if decl := r.loadClassStub(name); decl != nil {
			metrics.ClassResolutions.WithLabelValues(metrics.PhaseStubs).Inc()
			return decl
		}
	}

	metrics.ClassResolutions.WithLabelValues(metrics.PhaseMiss).Inc()
	return nil
}

func findIn(declarations []*php.Declaration, namespace, name string) *php.Declaration {
	for _, decl := range declarations {
		if strings.EqualFold(decl.Name, name) && strings.EqualFold(decl.Namespace, namespace) {
			return decl
		}
	}
	return nil
}

// loadClassFrom parses fileID (unless cached) and returns the wanted
// declaration from it. The source is read without holding any lock.
func (r *Resolver) loadClassFrom(fileID, namespace, name string) *php.Declaration {
	if decl := findIn(r.Files.Get(fileID).Declarations, namespace, name); decl != nil {
		return decl
	}

	content, ok := r.readSource(fileID)
	if !ok {
		return nil
	}

	file := r.Update(fileID, content)
	return findIn(file.Declarations, namespace, name)
}

func (r *Resolver) loadClassStub(name string) *php.Declaration {
	fileID := StubFileID("class", name)
	if decl := findIn(r.Files.Get(fileID).Declarations, "", name); decl != nil {
		return decl
	}

	source, ok := r.stubs.ClassSource(name)
	if !ok {
		return nil
	}

	file := r.Update(fileID, source)
	if decl := findIn(file.Declarations, "", name); decl != nil {
		return decl
	}

	log.Printf("Stub for class %s does not declare it", name)
	return nil
}

// ResolveFunction resolves a function reference. Unlike classes, the exact
// name, the import-resolved name and the namespace-qualified name are tried
// in that order and the first hit wins.
func (r *Resolver) ResolveFunction(name string, imports *php.ImportTable, namespace string) *php.Function {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	if fqn, ok := strings.CutPrefix(name, "\\"); ok {
		return r.FindOrLoadFunction(fqn)
	}

	candidates := []string{name}
	first, rest, qualified := strings.Cut(name, "\\")
	if !qualified {
		if fqn, ok := imports.Function(name); ok {
			candidates = append(candidates, fqn)
		}
	} else if fqn, ok := imports.Class(first); ok {
		candidates = append(candidates, fqn+"\\"+rest)
	}
	if namespace != "" {
		candidates = append(candidates, namespace+"\\"+name)
	}

	for _, candidate := range candidates {
		if fn := r.FindOrLoadFunction(candidate); fn != nil {
			return fn
		}
	}
	return nil
}

// FindOrLoadFunction looks a function up among the cached functions and then
// among the standard declarations, parsing and caching a stub on first use.
func (r *Resolver) FindOrLoadFunction(name string) *php.Function {
	name = strings.TrimPrefix(strings.TrimSpace(name), "\\")
	if name == "" {
		return nil
	}

	if fn := r.Functions.Get(name); fn != nil {
		metrics.FunctionResolutions.WithLabelValues(metrics.PhaseCache).Inc()
		return fn
	}

	if r.stubs != nil {
		if source, ok := r.stubs.FunctionSource(name); ok {
			r.Update(StubFileID("function", name), source)
			if fn := r.Functions.Get(name); fn != nil {
				metrics.FunctionResolutions.WithLabelValues(metrics.PhaseStubs).Inc()
				return fn
			}
		}
	}

	metrics.FunctionResolutions.WithLabelValues(metrics.PhaseMiss).Inc()
	return nil
}

// Loader returns a class loader bound to one resolution context.
func (r *Resolver) Loader(local []*php.Declaration, imports *php.ImportTable, namespace string) php.ClassLoader {
	return php.ClassLoaderFunc(func(name string) *php.Declaration {
		return r.ResolveClass(name, local, imports, namespace)
	})
}

// LoaderFor returns a class loader bound to the cached context of fileID.
// The context is read once; later updates of the file are not observed.
func (r *Resolver) LoaderFor(fileID string) php.ClassLoader {
	entry := r.Files.Get(fileID)
	if !r.Files.Has(fileID) {
		if content, ok := r.readSource(fileID); ok {
			r.Update(fileID, content)
			entry = r.Files.Get(fileID)
		}
	}
	return r.Loader(entry.Declarations, entry.Imports, entry.Namespace)
}

// DeclarationLoader returns a loader resolving names in the context of the
// file decl was extracted from.
func (r *Resolver) DeclarationLoader(decl *php.Declaration) php.ClassLoader {
	if decl == nil {
		return php.ClassLoaderFunc(nil)
	}
	return r.LoaderFor(decl.File)
}

// IsSubclassOf reports whether ancestor (a fully-qualified name) is a parent,
// implemented interface or used trait of decl, directly or transitively. The
// walk is bounded by the maximum depth; exceeding it reports false.
func (r *Resolver) IsSubclassOf(decl *php.Declaration, ancestor string) bool {
	ancestor = strings.TrimPrefix(ancestor, "\\")
	if decl == nil || ancestor == "" {
		return false
	}

	visited := map[string]bool{strings.ToLower(decl.FQN()): true}
	level := []*php.Declaration{decl}

	for depth := 0; depth < r.maxDepth && len(level) > 0; depth++ {
		var next []*php.Declaration
		for _, current := range level {
			for _, name := range supertypes(current) {
				if strings.EqualFold(name, ancestor) {
					return true
				}
				key := strings.ToLower(name)
				if visited[key] {
					continue
				}
				visited[key] = true

				if found := r.FindOrLoadClass(name); found != nil {
					next = append(next, found)
				}
			}
		}
		level = next
	}

	return false
}

func supertypes(decl *php.Declaration) []string {
	names := make([]string, 0, 1+len(decl.Interfaces)+len(decl.Traits))
	if decl.Parent != "" {
		names = append(names, decl.Parent)
	}
	names = append(names, decl.Interfaces...)
	names = append(names, decl.Traits...)
	return names
}
