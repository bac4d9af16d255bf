package docblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditionalReturn(t *testing.T) {
	concrete := ParseConditionalReturn("Foo|null")
	require.NotNil(t, concrete)
	assert.False(t, concrete.IsConditional())
	assert.Equal(t, "Foo|null", concrete.String())

	conditional := ParseConditionalReturn("($id is null ? Collection : Entity)")
	require.NotNil(t, conditional)
	assert.True(t, conditional.IsConditional())
	assert.Equal(t, "id", conditional.Param)
	assert.Equal(t, IsType, conditional.Condition)
	assert.Equal(t, "null", conditional.Subject)
	assert.Equal(t, "Collection", conditional.Then.Concrete)
	assert.Equal(t, "Entity", conditional.Else.Concrete)
	assert.Equal(t, "($id is null ? Collection : Entity)", conditional.String())

	negated := ParseConditionalReturn("($value is not string ? int : string)")
	require.NotNil(t, negated)
	assert.Equal(t, IsNotType, negated.Condition)
	assert.Equal(t, "string", negated.Subject)

	classString := ParseConditionalReturn("($class is class-string<T> ? T : object)")
	require.NotNil(t, classString)
	assert.Equal(t, IsClassString, classString.Condition)
	assert.Equal(t, "T", classString.Subject)

	nested := ParseConditionalReturn("($a is int ? ($b is int ? int : float) : string)")
	require.NotNil(t, nested)
	assert.True(t, nested.Then.IsConditional())
	assert.Equal(t, "b", nested.Then.Param)

	assert.Nil(t, ParseConditionalReturn("($id is null ? Collection"))
	assert.Nil(t, ParseConditionalReturn(""))
}

func TestResolveConditionalReturn(t *testing.T) {
	classString := ParseConditionalReturn("($class is class-string<T> ? T : object)")

	resolved := classString.Resolve(func(param string) (Argument, bool) {
		if param == "class" {
			return Argument{Class: "\\App\\Product"}, true
		}
		return Argument{}, false
	})
	assert.Equal(t, "\\App\\Product", resolved)

	assert.Equal(t, "object", classString.Resolve(nil))

	nullCheck := ParseConditionalReturn("($id is null ? Collection : Entity)")
	assert.Equal(t, "Collection", nullCheck.Resolve(nil))
	assert.Equal(t, "Entity", nullCheck.Resolve(func(string) (Argument, bool) {
		return Argument{Type: "string"}, true
	}))
	assert.Equal(t, "Collection", nullCheck.Resolve(func(string) (Argument, bool) {
		return Argument{Type: "null"}, true
	}))

	var missing *ConditionalReturn
	assert.Equal(t, "", missing.Resolve(nil))
}

func TestSynthesizeConditionalReturn(t *testing.T) {
	t.Run("class-string template", func(t *testing.T) {
		comment := `/**
		 * @template T of object
		 * @param class-string<T> $id
		 * @return T
		 */`

		synthesized := SynthesizeConditionalReturn(comment, "object")
		require.NotNil(t, synthesized)
		assert.Equal(t, "id", synthesized.Param)
		assert.Equal(t, IsClassString, synthesized.Condition)
		assert.Equal(t, "T", synthesized.Subject)
		assert.Equal(t, "T", synthesized.Then.Concrete)
		assert.Equal(t, "mixed", synthesized.Else.Concrete)

		resolved := synthesized.Resolve(func(string) (Argument, bool) {
			return Argument{Class: "\\App\\Mailer"}, true
		})
		assert.Equal(t, "\\App\\Mailer", resolved)
	})

	t.Run("explicit conditional wins", func(t *testing.T) {
		comment := `/**
		 * @template T
		 * @param class-string<T> $id
		 * @return T
		 * @phpstan-return ($id is class-string<T> ? T : null)
		 */`

		synthesized := SynthesizeConditionalReturn(comment, "")
		require.NotNil(t, synthesized)
		assert.Equal(t, "null", synthesized.Else.Concrete)
	})

	t.Run("nullable template return", func(t *testing.T) {
		comment := `/**
		 * @template T
		 * @param class-string<T> $class
		 */`

		synthesized := SynthesizeConditionalReturn(comment, "")
		assert.Nil(t, synthesized)

		comment = `/**
		 * @template T
		 * @param class-string<T> $class
		 * @return ?T
		 */`
		synthesized = SynthesizeConditionalReturn(comment, "")
		require.NotNil(t, synthesized)
		assert.Equal(t, "class", synthesized.Param)
	})

	t.Run("no templates", func(t *testing.T) {
		assert.Nil(t, SynthesizeConditionalReturn("/** @return Foo */", "Foo"))
	})
}

func TestReturnTypeRecoversBrokenGenerics(t *testing.T) {
	comment := `/**
	 * Creates a copy.
	 *
	 * @return static<
	 * @throws \RuntimeException
	 */`

	assert.Equal(t, "static", ReturnType(comment))

	prefixed := `/**
	 * @return array
	 * @psalm-return list<Task>
	 */`
	assert.Equal(t, "list<Task>", ReturnType(prefixed))
}

func TestParams(t *testing.T) {
	comment := `/**
	 * @param string $name
	 * @param int ...$ids
	 * @param array $options
	 * @phpstan-param array{force?: bool} $options
	 * @param $untyped
	 */`

	params := Params(comment)
	require.Len(t, params, 4)
	assert.Equal(t, Param{Name: "name", Type: "string"}, params[0])
	assert.Equal(t, Param{Name: "ids", Type: "int", Variadic: true}, params[1])
	assert.Equal(t, Param{Name: "options", Type: "array{force?: bool}"}, params[2])
	assert.Equal(t, Param{Name: "untyped"}, params[3])

	types := ParamTypes(comment)
	assert.Equal(t, "string", types["name"])
	assert.NotContains(t, types, "untyped")
}

func TestVars(t *testing.T) {
	assert.Equal(t, "Foo", VarType("/** @var Foo $foo */", "foo"))
	assert.Equal(t, "Foo", VarType("/** @var Foo */", "anything"))
	assert.Equal(t, "Bar[]", VarType("/** @var $bars Bar[] */", "bars"))
	assert.Equal(t, "", VarType("/** @var Foo $foo */", "other"))
}

func TestMethodsAndProperties(t *testing.T) {
	comment := `/**
	 * @method string getName()
	 * @method static Builder query(array $filters = [], string ...$columns)
	 * @method static create()
	 * @method setTitle(string $title)
	 * @property int $id
	 * @property-read \DateTimeImmutable $createdAt
	 * @property-write string $password
	 */`

	methods := Methods(comment)
	require.Len(t, methods, 4)

	assert.Equal(t, MethodTag{Name: "getName", ReturnType: "string"}, methods[0])

	assert.Equal(t, "query", methods[1].Name)
	assert.True(t, methods[1].Static)
	assert.Equal(t, "Builder", methods[1].ReturnType)
	assert.Equal(t, []Param{
		{Name: "filters", Type: "array"},
		{Name: "columns", Type: "string", Variadic: true},
	}, methods[1].Params)

	assert.Equal(t, "create", methods[2].Name)
	assert.False(t, methods[2].Static)
	assert.Equal(t, "static", methods[2].ReturnType)

	assert.Equal(t, "setTitle", methods[3].Name)
	assert.Equal(t, "", methods[3].ReturnType)

	properties := Properties(comment)
	require.Len(t, properties, 3)
	assert.Equal(t, PropertyTag{Name: "id", Type: "int", Access: ReadWrite}, properties[0])
	assert.Equal(t, PropertyTag{Name: "createdAt", Type: "\\DateTimeImmutable", Access: ReadOnly}, properties[1])
	assert.Equal(t, PropertyTag{Name: "password", Type: "string", Access: WriteOnly}, properties[2])
}
