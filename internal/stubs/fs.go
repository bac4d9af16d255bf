package stubs

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shopware/phpls/internal/php"
	"golang.org/x/sync/errgroup"
)

// FSSource serves stubs from a tree of PHP files, such as a checkout of
// the phpstorm-stubs. The tree is indexed once; file contents are read on
// demand.
type FSSource struct {
	fsys fs.FS

	mu        sync.RWMutex
	classes   map[string]string
	functions map[string]string
}

// Dir indexes the stub files below root.
func Dir(root string, workers int) (*FSSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open stub directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("stub path %s is not a directory", root)
	}
	return Load(os.DirFS(root), workers)
}

// Load indexes every .php file of fsys with up to workers parsers. Zero
// workers means one per CPU.
func Load(fsys fs.FS, workers int) (*FSSource, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".php") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk stubs: %w", err)
	}

	if workers <= 0 {
		workers = min(runtime.NumCPU(), 16)
	}

	s := &FSSource{
		fsys:      fsys,
		classes:   make(map[string]string),
		functions: make(map[string]string),
	}

	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, path := range files {
		g.Go(func() error {
			content, err := fs.ReadFile(fsys, path)
			if err != nil {
				return fmt.Errorf("failed to read stub %s: %w", path, err)
			}
			s.record(path, php.Extract(path, content))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Printf("Indexed %d stub classes and %d stub functions from %d files in %s", len(s.classes), len(s.functions), len(files), time.Since(start))
	return s, nil
}

// record keeps the first file that declares a name. Stubs for several PHP
// versions may repeat a declaration.
func (s *FSSource) record(path string, file *php.File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, decl := range file.Declarations {
		// standard classes live in the global namespace
		if decl.Namespace != "" {
			continue
		}
		key := stubKey(decl.Name)
		if _, ok := s.classes[key]; !ok {
			s.classes[key] = path
		}
	}
	for _, fn := range file.Functions {
		key := stubKey(fn.FQN())
		if _, ok := s.functions[key]; !ok {
			s.functions[key] = path
		}
	}
}

func (s *FSSource) read(index map[string]string, name string) ([]byte, bool) {
	s.mu.RLock()
	path, ok := index[stubKey(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	content, err := fs.ReadFile(s.fsys, path)
	if err != nil {
		log.Printf("Failed to read stub %s: %v", path, err)
		return nil, false
	}
	return content, true
}

func (s *FSSource) ClassSource(name string) ([]byte, bool) {
	return s.read(s.classes, name)
}

func (s *FSSource) FunctionSource(name string) ([]byte, bool) {
	return s.read(s.functions, name)
}

// Classes lists the indexed class names, lower-cased.
func (s *FSSource) Classes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	return names
}
