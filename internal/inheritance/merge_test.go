package inheritance

import (
	"testing"

	"github.com/shopware/phpls/internal/php"
	"github.com/shopware/phpls/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, source, fqn string) (*resolver.Resolver, *php.Declaration) {
	t.Helper()

	r := resolver.New()
	r.Update("test.php", []byte(source))
	decl := r.FindOrLoadClass(fqn)
	require.NotNil(t, decl, "class %s should be extracted", fqn)
	return r, decl
}

func methodNames(methods []Method) []string {
	names := make([]string, 0, len(methods))
	for _, method := range methods {
		names = append(names, method.Name)
	}
	return names
}

const chain = `<?php
namespace Shop;

class A
{
    public function a() {}
    private function secret() {}
    protected function guarded() {}
    public function __construct() {}
}

class B extends A
{
    public function b() {}
    public function a() {}
}

class C extends B
{
    public $c;
}
`

func TestMergeParentChain(t *testing.T) {
	r, c := load(t, chain, "Shop\\C")

	merged := Merge(c, r.DeclarationLoader(c))
	require.NotNil(t, merged)

	assert.Equal(t, []string{"b", "a", "secret", "guarded", "__construct"}, methodNames(merged.Methods))

	a := merged.Method("A")
	require.NotNil(t, a)
	assert.Equal(t, "B", a.DeclaringClass.Name, "B overrides a() from A")
	assert.True(t, a.Inherited)

	secret := merged.Method("secret")
	require.NotNil(t, secret)
	assert.Equal(t, "A", secret.DeclaringClass.Name)

	require.NotNil(t, merged.Property("$c"))
	assert.False(t, merged.Property("c").Inherited)

	require.Len(t, merged.Ancestors, 2)
	assert.Equal(t, "Shop\\B", merged.Ancestors[0].FQN())
	assert.Equal(t, "Shop\\A", merged.Ancestors[1].FQN())
}

func TestVisibleMembers(t *testing.T) {
	r, c := load(t, chain, "Shop\\C")
	merged := Merge(c, r.DeclarationLoader(c))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"external", Filter{Access: External}, []string{"b", "a", "__construct"}},
		{"self", Filter{Access: Self}, []string{"b", "a", "guarded", "__construct"}},
		{"parent", Filter{Access: Parent}, []string{"b", "a", "guarded"}},
		{"parent with magic", Filter{Access: Parent, IncludeMagic: true}, []string{"b", "a", "guarded", "__construct"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, methodNames(merged.VisibleMethods(tt.filter)))
		})
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	r, c := load(t, chain, "Shop\\C")
	loader := r.DeclarationLoader(c)

	first := Merge(c, loader)
	second := Merge(first.AsDeclaration(), loader)

	assert.ElementsMatch(t, methodNames(first.Methods), methodNames(second.Methods))
	assert.Len(t, second.Properties, len(first.Properties))
	assert.Len(t, second.Constants, len(first.Constants))
}

func TestMergeTerminatesOnCycles(t *testing.T) {
	r, a := load(t, `<?php
class A extends B { public function fromA() {} }
class B extends A { public function fromB() {} }
class Loop extends Loop { public function own() {} }
interface I extends J {}
interface J extends I { public function fromJ(); }
class WithInterfaces implements I {}
`, "A")

	merged := Merge(a, r.DeclarationLoader(a), WithMaxDepth(5))
	assert.Equal(t, []string{"fromA", "fromB"}, methodNames(merged.Methods))

	loop := r.FindOrLoadClass("Loop")
	require.NotNil(t, loop)
	assert.Equal(t, []string{"own"}, methodNames(Merge(loop, r.DeclarationLoader(loop)).Methods))

	withInterfaces := r.FindOrLoadClass("WithInterfaces")
	require.NotNil(t, withInterfaces)
	merged = Merge(withInterfaces, r.DeclarationLoader(withInterfaces))
	assert.Equal(t, []string{"fromJ"}, methodNames(merged.Methods))
	assert.Len(t, merged.Ancestors, 2)
}

func TestMergeTraitsAndTemplates(t *testing.T) {
	r, repo := load(t, `<?php
namespace Repo;

/**
 * @template T
 */
interface Repository
{
    const VERSION = 1;

    /** @return T|null */
    public function find(int $id);
}

trait Logs
{
    private function log(string $message): void {}
}

/**
 * @template TEntity
 * @implements Repository<TEntity>
 */
abstract class BaseRepository implements Repository
{
    use Logs;

    /** @var list<TEntity> */
    protected array $items = [];

    /** @return TEntity */
    public function first() {}
}

class Product {}

/**
 * @extends BaseRepository<Product>
 */
class ProductRepository extends BaseRepository
{
    use Counts;
}

trait Counts
{
    private int $counter = 0;
}
`, "Repo\\ProductRepository")

	merged := Merge(repo, r.DeclarationLoader(repo))

	first := merged.Method("first")
	require.NotNil(t, first)
	assert.Equal(t, "\\Repo\\Product", first.Type())

	find := merged.Method("find")
	require.NotNil(t, find)
	assert.Equal(t, "\\Repo\\Product|null", find.Type())
	assert.Equal(t, "Repository", find.DeclaringClass.Name)

	items := merged.Property("items")
	require.NotNil(t, items)
	assert.Equal(t, "list<\\Repo\\Product>", items.Type())

	log := merged.Method("log")
	require.NotNil(t, log)
	assert.Equal(t, "Logs", log.DeclaringClass.Name)
	assert.True(t, log.Inherited)
	assert.NotContains(t, methodNames(merged.VisibleMethods(Filter{Access: Self})), "log")

	counter := merged.Property("counter")
	require.NotNil(t, counter)
	assert.False(t, counter.Inherited, "trait members belong to the using class")
	assert.Len(t, merged.VisibleProperties(Filter{Access: Self}), 2)
	assert.Empty(t, merged.VisibleProperties(Filter{Access: External}))

	version := merged.Constant("VERSION")
	require.NotNil(t, version)
	assert.True(t, version.Inherited)

	base := r.FindOrLoadClass("Repo\\BaseRepository")
	require.NotNil(t, base)
	assert.Equal(t, "TEntity", base.Method("first").Type(), "substitution must not touch the source declaration")
}

func TestUnboundTemplatesFallBackToConstraint(t *testing.T) {
	r, child := load(t, `<?php
namespace Model;

class Entity {}

/**
 * @template T of Entity
 */
class Collection
{
    /** @return T */
    public function first() {}

    /**
     * @template T
     * @param T $value
     * @return T
     */
    public function identity($value) {}
}

class Products extends Collection {}
`, "Model\\Products")

	merged := Merge(child, r.DeclarationLoader(child))
	assert.Equal(t, "Entity", merged.Method("first").Type())
	assert.Equal(t, "T", merged.Method("identity").Type(), "method templates shadow class templates")
}

func TestParseAccess(t *testing.T) {
	assert.Equal(t, Self, ParseAccess("$this"))
	assert.Equal(t, Self, ParseAccess("static"))
	assert.Equal(t, Parent, ParseAccess("PARENT"))
	assert.Equal(t, External, ParseAccess("$product"))
	assert.Equal(t, "parent", Parent.String())
}

func TestMergeWithoutLoader(t *testing.T) {
	decl := &php.Declaration{
		Name:    "Lonely",
		Parent:  "Missing",
		Methods: []*php.Method{{Name: "own"}},
	}

	merged := Merge(decl, nil)
	assert.Equal(t, []string{"own"}, methodNames(merged.Methods))
	assert.Empty(t, merged.Ancestors)
	assert.Nil(t, Merge(nil, nil))
}
