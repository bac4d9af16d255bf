package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/shopware/phpls/internal/php"
	"golang.org/x/sync/errgroup"
)

var defaultSkipDirs = map[string]bool{
	"node_modules": true,
	"var":          true,
	"vendor-bin":   true,
	"cache":        true,
	".git":         true,
	".github":      true,
	".gitlab":      true,
	".idea":        true,
	".vscode":      true,
}

const defaultDebounce = 200 * time.Millisecond

// Options configure a FileScanner.
type Options struct {
	// Roots are the directories to scan, usually the PSR-4 directories.
	Roots []string
	// Exclude holds doublestar patterns matched against paths relative to
	// their root.
	Exclude []string
	// Workers bounds the parallel parsers. Zero means one per CPU.
	Workers int
}

// Stats summarize an indexing run.
type Stats struct {
	Files    int
	Indexed  int
	Skipped  int
	Removed  int
	Classes  int
	Duration time.Duration
}

// FileScanner walks the project roots, records the classes of every PHP file
// and keeps them current while files change.
type FileScanner struct {
	roots    []string
	exclude  []string
	workers  int
	recorder Recorder
	store    *ClassStore

	mu     sync.Mutex
	hashes map[string]uint64

	watcher    *fsnotify.Watcher
	watcherCtx context.Context
	cancel     context.CancelFunc
	watcherWg  sync.WaitGroup
	debounce   time.Duration
	onUpdate   func(changed, removed []string)
}

// NewFileScanner creates a scanner recording into recorder. The store is
// optional; with a store, the recorder is filled from it first and files
// whose content did not change since the last run are skipped.
func NewFileScanner(recorder Recorder, store *ClassStore, opts Options) (*FileScanner, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
		}
		if !slices.Contains(roots, abs) {
			roots = append(roots, abs)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 16)
	}

	hashes := make(map[string]uint64)
	if store != nil {
		stored, err := store.Hashes()
		if err != nil {
			return nil, err
		}
		hashes = stored

		count, err := store.Hydrate(recorder)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded %d class locations from the index store", count)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileScanner{
		roots:      roots,
		exclude:    opts.Exclude,
		workers:    workers,
		recorder:   recorder,
		store:      store,
		hashes:     hashes,
		watcherCtx: ctx,
		cancel:     cancel,
		debounce:   defaultDebounce,
	}, nil
}

// SetOnUpdate registers a callback that runs after files were re-indexed or
// removed.
func (s *FileScanner) SetOnUpdate(onUpdate func(changed, removed []string)) {
	s.onUpdate = onUpdate
}

// rootOf returns the root containing path and the slash-separated path
// relative to it.
func (s *FileScanner) rootOf(path string) (string, string, bool) {
	best := ""
	for _, root := range s.roots {
		if (path == root || strings.HasPrefix(path, root+string(os.PathSeparator))) && len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return "", "", false
	}
	rel, err := filepath.Rel(best, path)
	if err != nil {
		return "", "", false
	}
	return best, filepath.ToSlash(rel), true
}

func (s *FileScanner) skipped(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if defaultSkipDirs[part] {
			return true
		}
	}
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func isPHPFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".php") && !strings.HasSuffix(path, ".phar.php")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// accepts reports whether path is a PHP file the scanner is responsible for.
func (s *FileScanner) accepts(path string) bool {
	if !isPHPFile(path) {
		return false
	}
	_, rel, ok := s.rootOf(path)
	return ok && !s.skipped(rel)
}

// collect walks every root and returns the PHP files to index.
func (s *FileScanner) collect() ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, root := range s.roots {
		if !dirExists(root) {
			log.Printf("Skipping missing root %s", root)
			continue
		}

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				return nil
			}

			_, rel, ok := s.rootOf(path)
			if !ok {
				return nil
			}

			if d.IsDir() {
				if path != root && s.skipped(rel) {
					return filepath.SkipDir
				}
				return nil
			}

			if isPHPFile(path) && !s.skipped(rel) && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	return files, nil
}

// IndexAll indexes every PHP file below the roots and forgets files that
// disappeared since the last run.
func (s *FileScanner) IndexAll(ctx context.Context) (Stats, error) {
	start := time.Now()

	files, err := s.collect()
	if err != nil {
		return Stats{}, err
	}

	log.Printf("Found %d PHP files to index", len(files))

	stats, err := s.IndexFiles(ctx, files)
	if err != nil {
		return stats, fmt.Errorf("failed to index files: %w", err)
	}

	present := make(map[string]bool, len(files))
	for _, file := range files {
		present[file] = true
	}

	s.mu.Lock()
	var stale []string
	for path := range s.hashes {
		if !present[path] {
			stale = append(stale, path)
		}
	}
	s.mu.Unlock()

	if len(stale) > 0 {
		if err := s.RemoveFiles(stale); err != nil {
			return stats, err
		}
		stats.Removed = len(stale)
	}

	stats.Duration = time.Since(start)
	log.Printf("Indexed %d of %d files (%d classes, %d unchanged, %d removed) in %s",
		stats.Indexed, stats.Files, stats.Classes, stats.Skipped, stats.Removed, stats.Duration)

	return stats, nil
}

// IndexFiles parses the given files in parallel and records their classes.
// Files whose content hash is unchanged are skipped.
func (s *FileScanner) IndexFiles(ctx context.Context, files []string) (Stats, error) {
	start := time.Now()
	stats := Stats{Files: len(files)}
	if len(files) == 0 {
		return stats, nil
	}

	results := make([]*IndexedFile, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(path)
			if err != nil {
				// the file may be gone already; the watcher reports the removal
				return nil
			}

			hash := xxhash.Sum64(content)
			if s.unchanged(path, hash) {
				return nil
			}

			file := php.Extract(path, content)
			indexed := &IndexedFile{Path: path, Hash: hash}
			for _, decl := range file.Declarations {
				indexed.Classes = append(indexed.Classes, decl.FQN())
			}
			results[i] = indexed
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	changed := make([]IndexedFile, 0, len(results))
	for _, result := range results {
		if result == nil {
			continue
		}
		changed = append(changed, *result)
	}

	s.mu.Lock()
	for _, file := range changed {
		s.recorder.ForgetFile(file.Path)
		for _, fqn := range file.Classes {
			s.recorder.RecordClass(fqn, file.Path)
		}
		s.hashes[file.Path] = file.Hash
		stats.Classes += len(file.Classes)
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(changed); err != nil {
			return stats, fmt.Errorf("failed to persist class locations: %w", err)
		}
	}

	stats.Indexed = len(changed)
	stats.Skipped = stats.Files - stats.Indexed
	stats.Duration = time.Since(start)

	if s.onUpdate != nil && len(changed) > 0 {
		paths := make([]string, 0, len(changed))
		for _, file := range changed {
			paths = append(paths, file.Path)
		}
		s.onUpdate(paths, nil)
	}

	return stats, nil
}

func (s *FileScanner) unchanged(path string, hash uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.hashes[path]
	return ok && stored == hash
}

// RemoveFiles forgets the classes of the given files.
func (s *FileScanner) RemoveFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, path := range paths {
		s.recorder.ForgetFile(path)
		delete(s.hashes, path)
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Remove(paths); err != nil {
			return fmt.Errorf("failed to remove class locations: %w", err)
		}
	}

	if s.onUpdate != nil {
		s.onUpdate(nil, paths)
	}

	return nil
}

// StartWatcher re-indexes PHP files below the roots when they change.
func (s *FileScanner) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	s.watcher = watcher

	for _, root := range s.roots {
		if !dirExists(root) {
			continue
		}
		if err := s.addDirectoryToWatcher(root); err != nil {
			_ = watcher.Close()
			s.watcher = nil
			return err
		}
	}

	s.watcherWg.Add(1)
	go s.watch(watcher)

	return nil
}

func (s *FileScanner) watch(watcher *fsnotify.Watcher) {
	defer s.watcherWg.Done()
	defer func() { _ = watcher.Close() }()

	pendingAdds := make(map[string]bool)
	pendingRemoves := make(map[string]bool)
	debounceTimer := time.NewTimer(time.Hour)
	debounceTimer.Stop()

	resetTimer := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(s.debounce)
	}

	processChanges := func() {
		if len(pendingAdds) > 0 {
			files := make([]string, 0, len(pendingAdds))
			for file := range pendingAdds {
				files = append(files, file)
			}
			pendingAdds = make(map[string]bool)

			if _, err := s.IndexFiles(s.watcherCtx, files); err != nil && s.watcherCtx.Err() == nil {
				log.Printf("Error indexing files: %v", err)
			}
		}

		if len(pendingRemoves) > 0 {
			files := make([]string, 0, len(pendingRemoves))
			for file := range pendingRemoves {
				files = append(files, file)
			}
			pendingRemoves = make(map[string]bool)

			if err := s.RemoveFiles(files); err != nil {
				log.Printf("Error removing files: %v", err)
			}
		}
	}

	for {
		select {
		case <-s.watcherCtx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && s.accepts(event.Name) {
					pendingRemoves[event.Name] = true
					delete(pendingAdds, event.Name)
					resetTimer()
				}
				continue
			}

			if info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					if _, rel, ok := s.rootOf(event.Name); ok && !s.skipped(rel) {
						if err := s.addDirectoryToWatcher(event.Name); err != nil {
							log.Printf("Error adding directory to watcher: %v", err)
						}
					}
				}
				continue
			}

			if !s.accepts(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pendingAdds[event.Name] = true
				delete(pendingRemoves, event.Name)
				resetTimer()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)

		case <-debounceTimer.C:
			processChanges()
		}
	}
}

// addDirectoryToWatcher adds dir and its subdirectories to the watcher.
func (s *FileScanner) addDirectoryToWatcher(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if _, rel, ok := s.rootOf(path); ok && path != dir && s.skipped(rel) {
			return filepath.SkipDir
		}

		if err := s.watcher.Add(path); err != nil {
			log.Printf("Error watching directory %s: %v", path, err)
		}
		return nil
	})
}

// StopWatcher stops the file watcher and waits for it to finish.
func (s *FileScanner) StopWatcher() {
	s.cancel()
	s.watcherWg.Wait()
	s.watcher = nil
}

// Close stops the watcher. The store stays open; it belongs to the caller.
func (s *FileScanner) Close() error {
	s.StopWatcher()
	return nil
}
