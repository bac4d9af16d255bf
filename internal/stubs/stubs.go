// Package stubs provides the source of the standard declarations: built-in
// classes and functions that exist without a file in the project.
package stubs

import (
	"embed"
	"io/fs"
	"strings"
)

//go:embed builtin/*.php
var builtinFS embed.FS

// Source is what the resolver asks for standard declarations. Classes are
// keyed by short name, functions by their possibly namespaced name.
type Source interface {
	ClassSource(name string) ([]byte, bool)
	FunctionSource(name string) ([]byte, bool)
}

func stubKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "\\"))
}

// MapSource serves stubs kept in memory.
type MapSource struct {
	classes   map[string][]byte
	functions map[string][]byte
}

func NewMapSource() *MapSource {
	return &MapSource{
		classes:   make(map[string][]byte),
		functions: make(map[string][]byte),
	}
}

// AddClass registers the source declaring the class name.
func (m *MapSource) AddClass(name string, source []byte) *MapSource {
	m.classes[stubKey(name)] = source
	return m
}

// AddFunction registers the source declaring the function name.
func (m *MapSource) AddFunction(name string, source []byte) *MapSource {
	m.functions[stubKey(name)] = source
	return m
}

func (m *MapSource) ClassSource(name string) ([]byte, bool) {
	source, ok := m.classes[stubKey(name)]
	return source, ok
}

func (m *MapSource) FunctionSource(name string) ([]byte, bool) {
	source, ok := m.functions[stubKey(name)]
	return source, ok
}

// Chain asks each source in turn.
type Chain []Source

func (c Chain) ClassSource(name string) ([]byte, bool) {
	for _, source := range c {
		if content, ok := source.ClassSource(name); ok {
			return content, true
		}
	}
	return nil, false
}

func (c Chain) FunctionSource(name string) ([]byte, bool) {
	for _, source := range c {
		if content, ok := source.FunctionSource(name); ok {
			return content, true
		}
	}
	return nil, false
}

// Builtin returns the small set of core declarations shipped with the
// binary. It is the fallback when no stub directory is configured.
func Builtin() *FSSource {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(err)
	}

	source, err := Load(sub, 0)
	if err != nil {
		panic(err)
	}
	return source
}
