package composer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_json "github.com/tree-sitter/tree-sitter-json/bindings/go"
)

type psr4Rule struct {
	prefix string
	dirs   []string
}

// PSR4 derives candidate files for a class from namespace prefix rules.
// The longest matching prefix is tried first.
type PSR4 struct {
	mu    sync.RWMutex
	rules []psr4Rule
}

func NewPSR4() *PSR4 {
	return &PSR4{}
}

// Add maps a namespace prefix such as "App\" to directories. An empty
// prefix is the fallback for every class.
func (p *PSR4) Add(prefix string, dirs ...string) {
	prefix = strings.Trim(prefix, "\\")
	if prefix != "" {
		prefix += "\\"
	}

	cleaned := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if dir != "" {
			cleaned = append(cleaned, filepath.Clean(dir))
		}
	}
	if len(cleaned) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.rules {
		if strings.EqualFold(p.rules[i].prefix, prefix) {
			p.rules[i].dirs = append(p.rules[i].dirs, cleaned...)
			return
		}
	}

	p.rules = append(p.rules, psr4Rule{prefix: prefix, dirs: cleaned})
	slices.SortStableFunc(p.rules, func(a, b psr4Rule) int {
		return len(b.prefix) - len(a.prefix)
	})
}

// Merge appends the rules of other.
func (p *PSR4) Merge(other *PSR4) {
	if other == nil || other == p {
		return
	}

	other.mu.RLock()
	rules := slices.Clone(other.rules)
	other.mu.RUnlock()

	for _, rule := range rules {
		p.Add(rule.prefix, rule.dirs...)
	}
}

// Resolve returns the candidate paths for fqn, most specific prefix first.
// The files are not checked for existence.
func (p *PSR4) Resolve(fqn string) []string {
	if p == nil {
		return nil
	}
	fqn = strings.TrimPrefix(fqn, "\\")
	lower := strings.ToLower(fqn)

	p.mu.RLock()
	defer p.mu.RUnlock()

	var paths []string
	for _, rule := range p.rules {
		if !strings.HasPrefix(lower, strings.ToLower(rule.prefix)) {
			continue
		}
		relative := strings.ReplaceAll(fqn[len(rule.prefix):], "\\", string(filepath.Separator)) + ".php"
		for _, dir := range rule.dirs {
			paths = append(paths, filepath.Join(dir, relative))
		}
	}
	return paths
}

// Prefixes lists the configured namespace prefixes.
func (p *PSR4) Prefixes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	prefixes := make([]string, 0, len(p.rules))
	for _, rule := range p.rules {
		prefixes = append(prefixes, rule.prefix)
	}
	return prefixes
}

// Dirs lists every directory of every rule, e.g. to scan them.
func (p *PSR4) Dirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var dirs []string
	for _, rule := range p.rules {
		for _, dir := range rule.dirs {
			if !slices.Contains(dirs, dir) {
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// LoadComposerJSON reads the "autoload" and "autoload-dev" PSR-4 sections
// of a composer.json.
func LoadComposerJSON(path string) (*PSR4, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read composer.json: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	return ParseComposerJSON(content, dir)
}

// ParseComposerJSON reads the PSR-4 sections of composer.json content.
// Directories are relative to dir.
func ParseComposerJSON(content []byte, dir string) (*PSR4, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_json.Language())); err != nil {
		return nil, fmt.Errorf("failed to set json language: %w", err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse composer.json")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.Kind() == "document" && root.NamedChildCount() > 0 {
		root = root.NamedChild(0)
	}
	if root.Kind() != "object" {
		return nil, fmt.Errorf("composer.json root is not an object: %s", root.Kind())
	}

	p := NewPSR4()
	for _, section := range []string{"autoload", "autoload-dev"} {
		autoload := objectValue(root, section, content)
		if autoload == nil || autoload.Kind() != "object" {
			continue
		}
		rules := objectValue(autoload, "psr-4", content)
		if rules == nil || rules.Kind() != "object" {
			continue
		}

		for i := uint(0); i < rules.NamedChildCount(); i++ {
			pair := rules.NamedChild(i)
			if pair == nil || pair.Kind() != "pair" {
				continue
			}
			prefix := jsonString(pair.ChildByFieldName("key"), content)

			var dirs []string
			for _, relative := range jsonStrings(pair.ChildByFieldName("value"), content) {
				dirs = append(dirs, filepath.Join(dir, relative))
			}
			if len(dirs) == 0 {
				// "App\\": "" maps to the project root
				dirs = []string{dir}
			}
			p.Add(prefix, dirs...)
		}
	}

	return p, nil
}

// LoadInstalledPSR4 reads vendor/composer/autoload_psr4.php, the merged
// rules of all installed packages.
func LoadInstalledPSR4(path string) (*PSR4, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read installed psr-4 map: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve psr-4 map directory: %w", err)
	}

	p := NewPSR4()
	for _, entry := range parseGeneratedArray("autoload_psr4.php", content, dir) {
		p.Add(entry.Key, entry.Values...)
	}
	return p, nil
}

func objectValue(object *tree_sitter.Node, key string, content []byte) *tree_sitter.Node {
	for i := uint(0); i < object.NamedChildCount(); i++ {
		pair := object.NamedChild(i)
		if pair == nil || pair.Kind() != "pair" {
			continue
		}
		if jsonString(pair.ChildByFieldName("key"), content) == key {
			return pair.ChildByFieldName("value")
		}
	}
	return nil
}

// jsonStrings returns a string value or the strings of an array value.
func jsonStrings(node *tree_sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}

	switch node.Kind() {
	case "string":
		if s := jsonString(node, content); s != "" {
			return []string{s}
		}
	case "array":
		var values []string
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if s := jsonString(node.NamedChild(i), content); s != "" {
				values = append(values, s)
			}
		}
		return values
	}
	return nil
}

func jsonString(node *tree_sitter.Node, content []byte) string {
	if node == nil || node.Kind() != "string" {
		return ""
	}

	var value string
	if err := json.Unmarshal([]byte(node.Utf8Text(content)), &value); err != nil {
		return ""
	}
	return value
}
