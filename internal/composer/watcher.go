package composer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the class map whenever Composer rewrites it and hands
// every new snapshot to a callback.
type Watcher struct {
	path     string
	onReload func(*ClassMap)
	debounce time.Duration

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for the class map at path.
func NewWatcher(path string, onReload func(*ClassMap)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		debounce: reloadDebounce,
		stop:     make(chan struct{}),
	}
}

// Start watches the directory of the class map, so the atomic renames
// Composer performs are seen, until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { _ = watcher.Close() }()

		timer := time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Class map watcher error: %v", err)

			case <-timer.C:
				w.reload()
			}
		}
	}()

	return nil
}

// Stop ends the watch and waits for the watcher goroutine.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *Watcher) reload() {
	start := time.Now()

	classMap, err := LoadClassMap(w.path)
	if err != nil {
		log.Printf("Failed to reload class map: %v", err)
		return
	}

	log.Printf("Reloaded class map with %d classes in %s", classMap.Len(), time.Since(start))
	if w.onReload != nil {
		w.onReload(classMap)
	}
}
