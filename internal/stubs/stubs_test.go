package stubs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopware/phpls/internal/inheritance"
	"github.com/shopware/phpls/internal/php"
	"github.com/shopware/phpls/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSource(t *testing.T) {
	m := NewMapSource().
		AddClass("\\ArrayObject", []byte("<?php class ArrayObject {}")).
		AddFunction("Vendor\\helper", []byte("<?php namespace Vendor; function helper() {}"))

	source, ok := m.ClassSource("arrayobject")
	assert.True(t, ok)
	assert.Contains(t, string(source), "class ArrayObject")

	_, ok = m.FunctionSource("vendor\\HELPER")
	assert.True(t, ok)

	_, ok = m.ClassSource("Missing")
	assert.False(t, ok)
}

func TestChain(t *testing.T) {
	first := NewMapSource().AddClass("Foo", []byte("first"))
	second := NewMapSource().AddClass("Foo", []byte("second")).AddFunction("bar", []byte("bar"))

	chain := Chain{first, second}

	source, ok := chain.ClassSource("Foo")
	require.True(t, ok)
	assert.Equal(t, "first", string(source))

	source, ok = chain.FunctionSource("bar")
	require.True(t, ok)
	assert.Equal(t, "bar", string(source))

	_, ok = chain.FunctionSource("baz")
	assert.False(t, ok)
}

func TestBuiltin(t *testing.T) {
	builtin := Builtin()

	assert.Contains(t, builtin.Classes(), "runtimeexception")

	source, ok := builtin.ClassSource("RuntimeException")
	require.True(t, ok)
	assert.Contains(t, string(source), "class RuntimeException extends Exception")

	_, ok = builtin.FunctionSource("STRLEN")
	assert.True(t, ok)
}

func TestDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Core"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Core", "Core_c.php"), []byte(`<?php
class ArrayObject implements IteratorAggregate {}
function array_flip(array $array): array {}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Namespaced.php"), []byte(`<?php
namespace Ds;
class Vector {}
function helper() {}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# stubs"), 0o644))

	source, err := Dir(root, 2)
	require.NoError(t, err)

	_, ok := source.ClassSource("ArrayObject")
	assert.True(t, ok)
	_, ok = source.ClassSource("Vector")
	assert.False(t, ok, "namespaced classes are not standard declarations")
	_, ok = source.FunctionSource("Ds\\helper")
	assert.True(t, ok)
	_, ok = source.FunctionSource("array_flip")
	assert.True(t, ok)

	_, err = Dir(filepath.Join(root, "missing"), 0)
	assert.Error(t, err)
	_, err = Dir(filepath.Join(root, "README.md"), 0)
	assert.Error(t, err)
}

func TestBuiltinWithResolver(t *testing.T) {
	r := resolver.New(resolver.WithStubs(Builtin()))
	r.Update("demo.php", []byte(`<?php
namespace Demo;

class Failure extends \RuntimeException {}

function run() {
    return new PDO();
}
`))

	failure := r.FindOrLoadClass("Demo\\Failure")
	require.NotNil(t, failure)

	merged := inheritance.Merge(failure, r.DeclarationLoader(failure))
	require.NotNil(t, merged.Method("getMessage"))
	assert.Equal(t, "Exception", merged.Method("getMessage").DeclaringClass.Name)

	entry := r.Files.Get("demo.php")
	assert.Nil(t, r.ResolveClass("PDO", entry.Declarations, entry.Imports, entry.Namespace),
		"unqualified class names never fall back to the global namespace")
	assert.NotNil(t, r.ResolveClass("\\PDO", entry.Declarations, entry.Imports, entry.Namespace))

	fn := r.ResolveFunction("strlen", php.NewImportTable(), "Demo")
	require.NotNil(t, fn)
	assert.Equal(t, "int", fn.Type())
}
