package docblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrip(t *testing.T) {
	comment := `/**
	 * Loads a product.
	 *
	 * @param string $id
	 */`

	assert.Equal(t, []string{"Loads a product.", "", "@param string $id"}, Strip(comment))
	assert.Equal(t, "Loads a product.", Summary(comment))
}

func TestTagsJoinsBracketContinuations(t *testing.T) {
	comment := `/**
	 * @return array<
	 *     string,
	 *     int
	 * >
	 * @deprecated
	 */`

	tags := Tags(comment)
	require.Len(t, tags, 2)
	assert.Equal(t, "return", tags[0].Name)
	assert.Equal(t, "array<string, int >", tags[0].Value)
	assert.Equal(t, "deprecated", tags[1].Name)
	assert.True(t, IsDeprecated(comment))
}

func TestCanonicalTagNames(t *testing.T) {
	tests := map[string]string{
		"phpstan-return":      "return",
		"psalm-param":         "param",
		"template-extends":    "extends",
		"template-covariant":  "template-covariant",
		"phpstan-import-type": "import-type",
		"Return":              "return",
	}

	for name, expected := range tests {
		assert.Equal(t, expected, Tag{Name: name}.Canonical(), "canonical name of %s", name)
	}
}

func TestSplitType(t *testing.T) {
	tests := []struct {
		input string
		typ   string
		rest  string
	}{
		{"string $id the id", "string", "$id the id"},
		{"array<int, Foo> $items", "array<int, Foo>", "$items"},
		{"Foo | null $x", "Foo | null", "$x"},
		{"callable(int): string $fn", "callable(int): string", "$fn"},
		{"$id missing type", "", "$id missing type"},
		{"...$values", "", "...$values"},
		{"($id is int ? A : B)", "($id is int ? A : B)", ""},
		{"$this", "$this", ""},
	}

	for _, tt := range tests {
		typ, rest := SplitType(tt.input)
		assert.Equal(t, tt.typ, typ, "type of %q", tt.input)
		assert.Equal(t, tt.rest, rest, "rest of %q", tt.input)
	}
}

func TestRecover(t *testing.T) {
	assert.Equal(t, "static", Recover("static<"))
	assert.Equal(t, "Collection", Recover("Collection<int, Foo<"))
	assert.Equal(t, "array", Recover("array{foo: int"))
	assert.Equal(t, "Collection<int, Foo>", Recover("Collection<int, Foo>"))
	assert.Equal(t, "array<string, callable(): void>", Recover("array<string, callable(): void>"))
}

func TestStripNullable(t *testing.T) {
	typ, nullable := StripNullable("?Foo")
	assert.Equal(t, "Foo", typ)
	assert.True(t, nullable)

	typ, nullable = StripNullable("null|Foo|Bar")
	assert.Equal(t, "Foo|Bar", typ)
	assert.True(t, nullable)

	typ, nullable = StripNullable("Foo")
	assert.Equal(t, "Foo", typ)
	assert.False(t, nullable)
}

func TestMapClassNames(t *testing.T) {
	upper := func(name string) string { return "\\App\\" + name }

	assert.Equal(t, "array<int, \\App\\Task>", MapClassNames("array<int, Task>", upper))
	assert.Equal(t, "?\\App\\Foo|null", MapClassNames("?Foo|null", upper))
	assert.Equal(t, "array{name: string, task: \\App\\Task}", MapClassNames("array{name: string, task: Task}", upper))
	assert.Equal(t, "class-string<\\App\\T>", MapClassNames("class-string<T>", upper))
	assert.Equal(t, "$this", MapClassNames("$this", upper))
}

func TestSubstitute(t *testing.T) {
	bindings := map[string]string{"TKey": "int", "TValue": "\\App\\Language"}

	assert.Equal(t, "\\App\\Language", Substitute("TValue", bindings))
	assert.Equal(t, "array<int, \\App\\Language>", Substitute("array<TKey, TValue>", bindings))
	assert.Equal(t, "?\\App\\Language", Substitute("?TValue", bindings))
	assert.Equal(t, "Other", Substitute("Other", bindings))
}

func TestIterableValueType(t *testing.T) {
	tests := map[string]string{
		"Foo[]":                  "Foo",
		"?Foo[]":                 "Foo",
		"array<int, Foo>":        "Foo",
		"list<Foo>":              "Foo",
		"iterable<string, Bar>":  "Bar",
		"Collection<int, Task>":  "Task",
		"Foo[]|Bar[]":            "Foo|Bar",
		"array":                  "",
		"string":                 "",
		"array<int, array<Foo>>": "array<Foo>",
	}

	for input, expected := range tests {
		assert.Equal(t, expected, IterableValueType(input), "element type of %s", input)
	}
}
