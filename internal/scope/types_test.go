package scope

import (
	"testing"

	"github.com/shopware/phpls/internal/inheritance"
	"github.com/shopware/phpls/internal/php"
	"github.com/shopware/phpls/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileContext(t *testing.T, source string) *resolver.FileContext {
	t.Helper()

	r := resolver.New()
	r.Update("app.php", []byte(source))
	return r.Context("app.php")
}

func fqns(decls []*php.Declaration) []string {
	names := make([]string, 0, len(decls))
	for _, decl := range decls {
		names = append(names, decl.FQN())
	}
	return names
}

const shop = `<?php
namespace App;

class A
{
    public function fromA(): B {}
}

class B
{
    public function fromB() {}
}

class Builder
{
    /**
     * @return static<
     */
    public function fresh() {}

    public function build(A $a, ?B $maybe)
    {
        if ($a) {
            $x = new A();
        } else {
            $x = new B();
        }
        $copy = $x;
        $chained = $a->fromA();
        $self = $this->fresh();
        /** @var A $documented */
        $documented = unknown();
        $callback = function () use ($a) {
            /*|closure*/
        };
        /*|cursor*/
        $late = new A();
    }
}
`

func TestVariableTypes(t *testing.T) {
	ctx := fileContext(t, shop)
	offset := cursor(t, shop, "/*|cursor*/")

	tests := []struct {
		variable string
		want     []string
	}{
		{"$x", []string{"App\\A", "App\\B"}},
		{"$copy", []string{"App\\A", "App\\B"}},
		{"$chained", []string{"App\\B"}},
		{"$self", []string{"App\\Builder"}},
		{"$this", []string{"App\\Builder"}},
		{"documented", []string{"App\\A"}},
		{"$maybe", []string{"App\\B"}},
		{"$late", []string{}},
		{"$missing", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.variable, func(t *testing.T) {
			assert.Equal(t, tt.want, fqns(VariableTypes([]byte(shop), offset, tt.variable, ctx)))
		})
	}
}

func TestVariableTypesInsideClosure(t *testing.T) {
	ctx := fileContext(t, shop)
	offset := cursor(t, shop, "/*|closure*/")

	assert.Equal(t, []string{"App\\A"}, fqns(VariableTypes([]byte(shop), offset, "$a", ctx)))
	assert.Equal(t, []string{"App\\Builder"}, fqns(VariableTypes([]byte(shop), offset, "$this", ctx)))
	assert.Empty(t, VariableTypes([]byte(shop), offset, "$x", ctx))
}

func TestBranchTypesUnionMembers(t *testing.T) {
	ctx := fileContext(t, shop)
	offset := cursor(t, shop, "/*|cursor*/")

	var methods []string
	for _, decl := range VariableTypes([]byte(shop), offset, "$x", ctx) {
		merged := inheritance.Merge(decl, ctx)
		for _, method := range merged.VisibleMethods(inheritance.Filter{Access: inheritance.External}) {
			methods = append(methods, method.Name)
		}
	}

	assert.ElementsMatch(t, []string{"fromA", "fromB"}, methods)
}

func TestReassignmentReplacesType(t *testing.T) {
	source := `<?php
namespace App;

class A
{
    public function toB(): B {}
}

class B {}

function convert(bool $flag)
{
    $v = new A();
    $v = $v->toB();
    /*|sequential*/
    $w = new A();
    if ($flag) {
        $w = new B();
    }
    /*|branch*/
    foreach ([1] as $n) {
        $w = new B();
    }
    $w = new A();
    /*|replaced*/
}
`
	ctx := fileContext(t, source)

	assert.Equal(t, []string{"App\\B"}, fqns(VariableTypes([]byte(source), cursor(t, source, "/*|sequential*/"), "$v", ctx)))
	assert.Equal(t, []string{"App\\A", "App\\B"}, fqns(VariableTypes([]byte(source), cursor(t, source, "/*|branch*/"), "$w", ctx)))
	assert.Equal(t, []string{"App\\A"}, fqns(VariableTypes([]byte(source), cursor(t, source, "/*|replaced*/"), "$w", ctx)))
}

func TestVariableTypesFromGenericsAndConditionalReturns(t *testing.T) {
	source := `<?php
namespace App;

class Product {}
class Category {}

/**
 * @template T
 */
class Collection
{
    /** @return T */
    public function first() {}
}

class Container
{
    /**
     * @template TService
     * @param class-string<TService> $id
     * @return TService
     */
    public function get(string $id) {}
}

/**
 * @template T
 * @param class-string<T> $class
 * @return T
 */
function make(string $class) {}

enum Suit: string
{
    case Hearts = 'H';
}

/**
 * @param Product[] $items
 */
function run(Container $container, array $items)
{
    $service = $container->get(Product::class);
    $made = make(Category::class);
    /** @var Collection<Product> $products */
    $first = $products->first();
    $suit = Suit::Hearts;
    foreach ($items as $item) {
        /*|loop*/
    }
    /*|cursor*/
}
`
	ctx := fileContext(t, source)
	offset := cursor(t, source, "/*|cursor*/")

	tests := []struct {
		variable string
		want     []string
	}{
		{"$service", []string{"App\\Product"}},
		{"$made", []string{"App\\Category"}},
		{"$products", []string{"App\\Collection"}},
		{"$first", []string{"App\\Product"}},
		{"$suit", []string{"App\\Suit"}},
		{"$item", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.variable, func(t *testing.T) {
			assert.Equal(t, tt.want, fqns(VariableTypes([]byte(source), offset, tt.variable, ctx)))
		})
	}

	loop := cursor(t, source, "/*|loop*/")
	assert.Equal(t, []string{"App\\Product"}, fqns(VariableTypes([]byte(source), loop, "$item", ctx)))
	assert.Equal(t, []string{"Product"}, TypeStrings([]byte(source), loop, "$item", ctx))
}

func TestTypeStrings(t *testing.T) {
	ctx := fileContext(t, shop)
	offset := cursor(t, shop, "/*|cursor*/")

	assert.Equal(t, []string{"A", "B"}, TypeStrings([]byte(shop), offset, "$x", ctx))
	assert.Equal(t, []string{"?B"}, TypeStrings([]byte(shop), offset, "$maybe", ctx))
	assert.Nil(t, TypeStrings([]byte(shop), offset, "$x", nil))
}

func TestVariableTypesWithoutEnvironment(t *testing.T) {
	require.Nil(t, VariableTypes([]byte(shop), 0, "$x", nil))
}
