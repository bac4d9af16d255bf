package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClassName(t *testing.T) {
	imports := NewImportTable()
	imports.Classes["FB"] = "Foo\\Bar"
	imports.Classes["Connection"] = "Doctrine\\DBAL\\Connection"
	imports.Classes["Models"] = "App\\Models"

	tests := []struct {
		name      string
		namespace string
		expected  string
	}{
		{"FB", "App", "Foo\\Bar"},
		{"fb", "App", "Foo\\Bar"},
		{"Connection", "", "Doctrine\\DBAL\\Connection"},
		{"Local", "App\\Service", "App\\Service\\Local"},
		{"Local", "", "Local"},
		{"\\PDO", "App", "PDO"},
		{"Models\\User", "App", "App\\Models\\User"},
		{"Sub\\Thing", "App", "App\\Sub\\Thing"},
		{"namespace\\Thing", "App", "App\\Thing"},
		{"self", "App", "self"},
		{"static", "App", "static"},
		{"string", "App", "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, imports.ResolveClassName(tt.name, tt.namespace))
		})
	}
}

func TestImportTableClone(t *testing.T) {
	imports := NewImportTable()
	imports.Classes["A"] = "X\\A"

	clone := imports.Clone()
	clone.Classes["B"] = "X\\B"

	assert.NotContains(t, imports.Classes, "B")
	assert.Equal(t, "X\\A", clone.Classes["A"])

	var missing *ImportTable
	_, ok := missing.Class("A")
	assert.False(t, ok)
	assert.NotNil(t, missing.Clone())
}

func TestNameHelpers(t *testing.T) {
	namespace, name := SplitName("\\App\\Service\\Loader")
	assert.Equal(t, "App\\Service", namespace)
	assert.Equal(t, "Loader", name)

	namespace, name = SplitName("PDO")
	assert.Equal(t, "", namespace)
	assert.Equal(t, "PDO", name)

	assert.Equal(t, "App\\Loader", JoinName("App", "Loader"))
	assert.Equal(t, "Loader", JoinName("", "Loader"))
	assert.Equal(t, "\\App\\Loader", FullyQualified("App\\Loader"))
	assert.Equal(t, "\\App\\Loader", FullyQualified("\\App\\Loader"))
}
