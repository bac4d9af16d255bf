package resolver

import (
	"github.com/shopware/phpls/internal/php"
)

// FileContext resolves names the way they are written in one file: through
// its imports, its namespace and its own declarations.
type FileContext struct {
	r      *Resolver
	fileID string
	entry  Entry
}

// Context returns the resolution context of fileID. The cached entry is read
// once; a file that is not cached yet is loaded first.
func (r *Resolver) Context(fileID string) *FileContext {
	if !r.Files.Has(fileID) {
		if content, ok := r.readSource(fileID); ok {
			r.Update(fileID, content)
		}
	}
	return &FileContext{r: r, fileID: fileID, entry: r.Files.Get(fileID)}
}

func (c *FileContext) FileID() string {
	return c.fileID
}

func (c *FileContext) Namespace() string {
	return c.entry.Namespace
}

func (c *FileContext) Imports() *php.ImportTable {
	return c.entry.Imports
}

func (c *FileContext) Declarations() []*php.Declaration {
	return c.entry.Declarations
}

func (c *FileContext) LoadClass(name string) *php.Declaration {
	return c.r.ResolveClass(name, c.entry.Declarations, c.entry.Imports, c.entry.Namespace)
}

func (c *FileContext) LoadFunction(name string) *php.Function {
	return c.r.ResolveFunction(name, c.entry.Imports, c.entry.Namespace)
}

// LoaderFor returns the loader of another file, used for types written in
// the file a member or function was declared in.
func (c *FileContext) LoaderFor(fileID string) php.ClassLoader {
	if fileID == c.fileID {
		return c
	}
	return c.r.LoaderFor(fileID)
}

// MaxDepth is the ancestor walk bound of the underlying resolver.
func (c *FileContext) MaxDepth() int {
	return c.r.maxDepth
}
