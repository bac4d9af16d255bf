// Package config loads the project configuration from .phpls.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopware/phpls/internal/composer"
	"github.com/shopware/phpls/internal/resolver"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".phpls.toml"

// AutoDatabase places the class index database in the user cache directory.
const AutoDatabase = "auto"

type Config struct {
	Project  Project  `toml:"project"`
	Autoload Autoload `toml:"autoload"`
	Index    Index    `toml:"index"`
	Resolver Resolver `toml:"resolver"`
	Metrics  Metrics  `toml:"metrics"`
}

type Project struct {
	Root  string `toml:"root"`
	Stubs string `toml:"stubs"` // directory of standard declaration stubs; empty uses the bundled ones
}

type Autoload struct {
	ComposerJSON  string            `toml:"composer_json"`
	ClassMap      string            `toml:"classmap"`
	InstalledPSR4 string            `toml:"installed_psr4"`
	PSR4          map[string]string `toml:"psr4"`
	Watch         bool              `toml:"watch"`
}

type Index struct {
	Database string   `toml:"database"`
	Exclude  []string `toml:"exclude"`
	Workers  int      `toml:"workers"`
	Watch    bool     `toml:"watch"`
}

type Resolver struct {
	MaxAncestorDepth int `toml:"max_ancestor_depth"`
}

type Metrics struct {
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Project: Project{Root: "."},
		Autoload: Autoload{
			ComposerJSON:  composer.DefaultComposerJSON,
			ClassMap:      composer.DefaultClassMap,
			InstalledPSR4: composer.DefaultInstalledPSR4,
			Watch:         true,
		},
		Index: Index{
			Exclude: []string{"**/tests/**", "**/Tests/**"},
			Watch:   true,
		},
		Resolver: Resolver{MaxAncestorDepth: resolver.DefaultMaxDepth},
	}
}

// Load reads the file at path over the defaults. A relative project root is
// taken relative to the directory of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(filepath.Dir(path), cfg.Project.Root)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result. Unknown
// keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadProject loads FileName from root, falling back to the defaults when
// the file does not exist.
func LoadProject(root string) (*Config, error) {
	cfg, err := Load(filepath.Join(root, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.Project.Root = root
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Resolver.MaxAncestorDepth <= 0 {
		return fmt.Errorf("resolver.max_ancestor_depth must be positive, got %d", c.Resolver.MaxAncestorDepth)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers)
	}
	for _, pattern := range c.Index.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("index.exclude: invalid pattern %q", pattern)
		}
	}
	return nil
}

// Path resolves p against the project root. Empty stays empty.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// DatabasePath returns where the class index is persisted, or "" to keep
// it in memory.
func (c *Config) DatabasePath() (string, error) {
	switch c.Index.Database {
	case "":
		return "", nil
	case AutoDatabase:
		root, err := filepath.Abs(c.Project.Root)
		if err != nil {
			return "", fmt.Errorf("failed to resolve project root: %w", err)
		}
		dir, err := ProjectCacheDir(root)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "classes.db"), nil
	default:
		return c.Path(c.Index.Database), nil
	}
}
