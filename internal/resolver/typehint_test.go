package resolver

import (
	"testing"

	"github.com/shopware/phpls/internal/php"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeMembers(t *testing.T) {
	tests := map[string][]string{
		"?Foo":                  {"Foo"},
		"Foo|null":              {"Foo"},
		"(A&B)|C":               {"A", "B", "C"},
		"Collection<int, Foo>":  {"Collection"},
		"Foo[]|Bar":             {"Bar"},
		"\\App\\User|false":     {"\\App\\User", "false"},
		"":                      nil,
		"static":                {"static"},
		"array{id: int}|string": {"array", "string"},
	}

	for input, expected := range tests {
		assert.Equal(t, expected, TypeMembers(input), "members of %q", input)
	}
}

func TestTypeHintToDeclarations(t *testing.T) {
	r := New()
	r.Update("models.php", []byte(`<?php
namespace App;

use Lib\Base;

class Product extends Base {}
class Category {}
`))
	r.Update("base.php", []byte("<?php\nnamespace Lib;\nclass Base {}\n"))

	entry := r.Files.Get("models.php")
	product := php.FindDeclaration(entry.Declarations, "Product")
	require.NotNil(t, product)

	loader := r.LoaderFor("models.php")
	decls := TypeHintToDeclarations("?Category|int|static|parent|Missing|Category", product, entry.Declarations, loader)

	names := make([]string, 0, len(decls))
	for _, decl := range decls {
		names = append(names, decl.FQN())
	}
	assert.Equal(t, []string{"App\\Category", "App\\Product", "Lib\\Base"}, names)
}

func TestTypeHintToDeclarationsWithoutLoader(t *testing.T) {
	all := []*php.Declaration{{Name: "Foo"}, {Name: "Bar"}}

	decls := TypeHintToDeclarations("Foo&Bar|$this", all[0], all, nil)
	require.Len(t, decls, 2)
	assert.Equal(t, "Foo", decls[0].Name)
	assert.Equal(t, "Bar", decls[1].Name)
}
