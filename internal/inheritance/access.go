package inheritance

import (
	"strings"

	"github.com/shopware/phpls/internal/php"
)

// Access is the perspective members are listed from.
type Access int

const (
	// External is access through an instance from outside the class
	// hierarchy, e.g. $product->. Only public members are visible.
	External Access = iota
	// Self is access from inside the class, e.g. $this->, self:: and
	// static::. Private members of ancestors are hidden.
	Self
	// Parent is parent:: access. Only ancestor members are listed, without
	// private ones and without magic methods unless requested.
	Parent
)

func (a Access) String() string {
	switch a {
	case Self:
		return "self"
	case Parent:
		return "parent"
	default:
		return "external"
	}
}

// ParseAccess maps the receiver text of a member access to its perspective.
func ParseAccess(receiver string) Access {
	switch strings.ToLower(strings.TrimSpace(receiver)) {
	case "$this", "self", "static":
		return Self
	case "parent":
		return Parent
	default:
		return External
	}
}

// Filter selects members for one access perspective.
type Filter struct {
	Access Access
	// IncludeMagic keeps double-underscore methods for Parent access.
	IncludeMagic bool
	// StaticOnly keeps only static methods and properties, and constants.
	StaticOnly bool
}

func (f Filter) visible(visibility php.Visibility, inherited bool) bool {
	switch f.Access {
	case External:
		return visibility == php.Public
	case Parent:
		return inherited && visibility != php.Private
	default:
		return !inherited || visibility != php.Private
	}
}

// VisibleMethods lists the methods visible under f.
func (m *MergedDeclaration) VisibleMethods(f Filter) []Method {
	var result []Method
	for _, method := range m.Methods {
		if !f.visible(method.Visibility, method.Inherited) {
			continue
		}
		if f.StaticOnly && !method.Static {
			continue
		}
		if f.Access == Parent && !f.IncludeMagic && method.IsMagic() {
			continue
		}
		result = append(result, method)
	}
	return result
}

func (m *MergedDeclaration) VisibleProperties(f Filter) []Property {
	var result []Property
	for _, property := range m.Properties {
		if !f.visible(property.Visibility, property.Inherited) {
			continue
		}
		if f.StaticOnly && !property.Static {
			continue
		}
		result = append(result, property)
	}
	return result
}

func (m *MergedDeclaration) VisibleConstants(f Filter) []Constant {
	var result []Constant
	for _, constant := range m.Constants {
		if f.visible(constant.Visibility, constant.Inherited) {
			result = append(result, constant)
		}
	}
	return result
}

// Method finds a merged method by name, case-insensitively.
func (m *MergedDeclaration) Method(name string) *Method {
	for i := range m.Methods {
		if strings.EqualFold(m.Methods[i].Name, name) {
			return &m.Methods[i]
		}
	}
	return nil
}

// Property finds a merged property by name, with or without '$'.
func (m *MergedDeclaration) Property(name string) *Property {
	name = strings.TrimPrefix(name, "$")
	for i := range m.Properties {
		if m.Properties[i].Name == name {
			return &m.Properties[i]
		}
	}
	return nil
}

func (m *MergedDeclaration) Constant(name string) *Constant {
	for i := range m.Constants {
		if m.Constants[i].Name == name {
			return &m.Constants[i]
		}
	}
	return nil
}

// AsDeclaration flattens the merged view into a declaration that carries
// every reachable member as its own. Supertype names are kept, so merging
// the result again yields the same member set.
func (m *MergedDeclaration) AsDeclaration() *php.Declaration {
	flat := *m.Declaration

	flat.Methods = make([]*php.Method, 0, len(m.Methods))
	for _, method := range m.Methods {
		flat.Methods = append(flat.Methods, method.Method)
	}
	flat.Properties = make([]*php.Property, 0, len(m.Properties))
	for _, property := range m.Properties {
		flat.Properties = append(flat.Properties, property.Property)
	}
	flat.Constants = make([]*php.Constant, 0, len(m.Constants))
	for _, constant := range m.Constants {
		flat.Constants = append(flat.Constants, constant.Constant)
	}

	return &flat
}
