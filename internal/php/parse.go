package php

import (
	"fmt"
	"log"
	"time"

	"github.com/shopware/phpls/internal/metrics"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// Parse parses PHP source into a syntax tree. The caller owns the tree and
// must close it. Parsers are not shared between goroutines.
func Parse(content []byte) (*tree_sitter.Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())); err != nil {
		return nil, fmt.Errorf("failed to set php language: %w", err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse php source")
	}

	return tree, nil
}

// SafeParse runs fn on the parsed tree of content. A parser error or a panic
// inside the parser or fn is logged and reported as false, so that hostile
// input never takes the process down.
func SafeParse(name string, content []byte, fn func(tree *tree_sitter.Tree)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic while parsing %s: %v", name, r)
			metrics.ParseFailures.Inc()
			ok = false
		}
	}()

	tree, err := Parse(content)
	if err != nil {
		log.Printf("Error parsing %s: %v", name, err)
		metrics.ParseFailures.Inc()
		return false
	}
	defer tree.Close()

	start := time.Now()
	fn(tree)
	metrics.ParseDuration.Observe(time.Since(start).Seconds())
	return true
}
