package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"

	"github.com/shopware/phpls/internal/composer"
	"github.com/shopware/phpls/internal/config"
	"github.com/shopware/phpls/internal/indexer"
	"github.com/shopware/phpls/internal/resolver"
	"github.com/shopware/phpls/internal/stubs"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the project configuration and applies the global flags
// over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", c.String("root"), err)
	}

	var cfg *config.Config
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
		if err == nil && c.IsSet("root") {
			cfg.Project.Root = root
		}
	} else {
		cfg, err = config.LoadProject(root)
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("stubs") {
		cfg.Project.Stubs = c.String("stubs")
	}
	if c.IsSet("database") {
		cfg.Index.Database = c.String("database")
	}
	if c.IsSet("workers") {
		cfg.Index.Workers = c.Int("workers")
	}
	return cfg, cfg.Validate()
}

// project is a resolver wired to the autoload information, stubs and class
// index of one project.
type project struct {
	cfg      *config.Config
	files    *resolver.OpenFiles
	resolver *resolver.Resolver
	psr4     *composer.PSR4

	store   *indexer.ClassStore
	scanner *indexer.FileScanner
	watcher *composer.Watcher
}

func openProject(ctx context.Context, cfg *config.Config, scan bool) (*project, error) {
	p := &project{
		cfg:   cfg,
		files: resolver.NewOpenFiles(),
		psr4:  loadPSR4(cfg),
	}

	source, err := loadStubs(cfg)
	if err != nil {
		return nil, err
	}

	opts := []resolver.Option{
		resolver.WithSources(p.files),
		resolver.WithStubs(source),
		resolver.WithPathResolver(p.psr4),
		resolver.WithMaxDepth(cfg.Resolver.MaxAncestorDepth),
	}
	if classMap := loadClassMap(cfg); classMap != nil {
		opts = append(opts, resolver.WithAutoload(classMap))
	}
	p.resolver = resolver.New(opts...)

	if scan {
		if err := p.index(ctx); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

// optional reports whether err only means a missing file, which is normal
// for autoload files before composer install.
func optional(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func loadPSR4(cfg *config.Config) *composer.PSR4 {
	psr4 := composer.NewPSR4()

	if rules, err := composer.LoadComposerJSON(cfg.Path(cfg.Autoload.ComposerJSON)); err == nil {
		psr4.Merge(rules)
	} else if !optional(err) {
		log.Printf("Warning: %v", err)
	}

	if cfg.Autoload.InstalledPSR4 != "" {
		if rules, err := composer.LoadInstalledPSR4(cfg.Path(cfg.Autoload.InstalledPSR4)); err == nil {
			psr4.Merge(rules)
		} else if !optional(err) {
			log.Printf("Warning: %v", err)
		}
	}

	for prefix, dir := range cfg.Autoload.PSR4 {
		psr4.Add(prefix, cfg.Path(dir))
	}
	return psr4
}

func loadClassMap(cfg *config.Config) *composer.ClassMap {
	if cfg.Autoload.ClassMap == "" {
		return nil
	}

	classMap, err := composer.LoadClassMap(cfg.Path(cfg.Autoload.ClassMap))
	if err != nil {
		if !optional(err) {
			log.Printf("Warning: %v", err)
		}
		return nil
	}
	return classMap
}

// loadStubs puts a configured stub directory in front of the bundled stubs.
func loadStubs(cfg *config.Config) (resolver.StubSource, error) {
	if cfg.Project.Stubs == "" {
		return stubs.Builtin(), nil
	}

	dir, err := stubs.Dir(cfg.Path(cfg.Project.Stubs), cfg.Index.Workers)
	if err != nil {
		return nil, err
	}
	return stubs.Chain{dir, stubs.Builtin()}, nil
}

// index records the classes below every PSR-4 directory in the class index,
// starting from the persistent store when one is configured.
func (p *project) index(ctx context.Context) error {
	dbPath, err := p.cfg.DatabasePath()
	if err != nil {
		return err
	}

	if dbPath != "" && p.cfg.Index.Database == config.AutoDatabase {
		cleared, err := indexer.CheckAndMigrateCache(filepath.Dir(dbPath))
		if err != nil {
			return fmt.Errorf("failed to prepare index cache: %w", err)
		}
		if cleared {
			log.Printf("Index cache at %s was reset", filepath.Dir(dbPath))
		}
	}

	store, err := indexer.OpenClassStore(dbPath)
	if err != nil {
		return err
	}
	p.store = store

	scanner, err := indexer.NewFileScanner(p.resolver.Index, store, indexer.Options{
		Roots:   p.psr4.Dirs(),
		Exclude: p.cfg.Index.Exclude,
		Workers: p.cfg.Index.Workers,
	})
	if err != nil {
		return err
	}
	p.scanner = scanner

	stats, err := scanner.IndexAll(ctx)
	if err != nil {
		return err
	}
	log.Printf("Indexed %d of %d files (%d classes, %d removed) in %s", stats.Indexed, stats.Files, stats.Classes, stats.Removed, stats.Duration)
	return nil
}

// watch keeps the class index and the autoload map current. Failures only
// disable watching.
func (p *project) watch(ctx context.Context) {
	if p.scanner != nil && p.cfg.Index.Watch {
		p.scanner.SetOnUpdate(func(changed, removed []string) {
			for _, path := range changed {
				p.resolver.Close(path)
			}
			for _, path := range removed {
				p.resolver.Close(path)
			}
		})
		if err := p.scanner.StartWatcher(); err != nil {
			log.Printf("Warning: file watcher disabled: %v", err)
		}
	}

	if p.cfg.Autoload.Watch && p.cfg.Autoload.ClassMap != "" {
		watcher := composer.NewWatcher(p.cfg.Path(p.cfg.Autoload.ClassMap), func(classMap *composer.ClassMap) {
			p.resolver.SetAutoload(classMap)
		})
		if err := watcher.Start(ctx); err != nil {
			log.Printf("Warning: class map watcher disabled: %v", err)
			return
		}
		p.watcher = watcher
	}
}

// fileID returns the identity of the file at path once it is readable.
func (p *project) fileID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", path, err)
	}
	if _, ok := p.resolver.Source(abs); !ok {
		return "", fmt.Errorf("failed to read %s", path)
	}
	return abs, nil
}

func (p *project) Close() {
	if p.watcher != nil {
		p.watcher.Stop()
	}
	if p.scanner != nil {
		if err := p.scanner.Close(); err != nil {
			log.Printf("Error closing file scanner: %v", err)
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			log.Printf("Error closing class store: %v", err)
		}
	}
}
