package php

import (
	"strings"

	"github.com/shopware/phpls/internal/docblock"
)

// Kind is the flavour of a class-like declaration.
type Kind int

const (
	KindClass Kind = iota
	KindInterface
	KindTrait
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindEnum:
		return "enum"
	default:
		return "class"
	}
}

// Visibility of a class member.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// Span is a byte range in the source text.
type Span struct {
	Start uint
	End   uint
}

// Contains reports whether offset lies within the span.
func (s Span) Contains(offset uint) bool {
	return offset >= s.Start && offset <= s.End
}

// Parameter of a method or function. Name is stored without the '$' sigil.
type Parameter struct {
	Name         string
	TypeHint     string
	DocType      string
	Required     bool
	Variadic     bool
	Reference    bool
	DefaultValue string
}

// Type returns the documented type when present, the native hint otherwise.
func (p Parameter) Type() string {
	if p.DocType != "" {
		return p.DocType
	}
	return p.TypeHint
}

type Method struct {
	Name          string
	Parameters    []Parameter
	ReturnType    string
	DocReturnType string
	Visibility    Visibility
	Static        bool
	Abstract      bool
	Final         bool
	Deprecated    bool
	// Virtual is set for methods declared with a @method tag
	Virtual           bool
	Templates         []string
	ConditionalReturn *docblock.ConditionalReturn
	DocComment        string
	Span              Span
}

// Type returns the effective return type: the documented type wins over the
// native hint.
func (m *Method) Type() string {
	if m.DocReturnType != "" {
		return m.DocReturnType
	}
	return m.ReturnType
}

// IsMagic reports whether the method is one of the double-underscore methods
// such as __construct or __get.
func (m *Method) IsMagic() bool {
	return strings.HasPrefix(m.Name, "__")
}

type Property struct {
	// Name without the '$' sigil
	Name       string
	TypeHint   string
	DocType    string
	Visibility Visibility
	Static     bool
	Readonly   bool
	Virtual    bool
	Deprecated bool
	Span       Span
}

func (p *Property) Type() string {
	if p.DocType != "" {
		return p.DocType
	}
	return p.TypeHint
}

type Constant struct {
	Name       string
	TypeHint   string
	Value      string
	Visibility Visibility
	// EnumCase is set for the cases of an enum
	EnumCase bool
	Span     Span
}

// Declaration is a class, interface, trait or enum. Parent, Interfaces and
// Traits hold fully-qualified names without a leading separator.
type Declaration struct {
	Name      string
	Namespace string
	Kind      Kind
	Abstract  bool
	Final     bool
	Readonly  bool

	Parent     string
	Interfaces []string
	Traits     []string

	Methods    []*Method
	Properties []*Property
	Constants  []*Constant

	Templates  []docblock.Template
	Extends    []docblock.Generic
	Implements []docblock.Generic
	Uses       []docblock.Generic

	TypeAliases     map[string]string
	ImportedAliases []docblock.ImportedAlias

	BackingType string
	Deprecated  bool
	DocComment  string
	Span        Span
	File        string
}

// FQN returns the fully-qualified name without a leading separator.
func (d *Declaration) FQN() string {
	return JoinName(d.Namespace, d.Name)
}

// Method finds an own method by name. Method names are case-insensitive.
func (d *Declaration) Method(name string) *Method {
	for _, method := range d.Methods {
		if strings.EqualFold(method.Name, name) {
			return method
		}
	}
	return nil
}

// Property finds an own property by name (without '$').
func (d *Declaration) Property(name string) *Property {
	name = strings.TrimPrefix(name, "$")
	for _, property := range d.Properties {
		if property.Name == name {
			return property
		}
	}
	return nil
}

// Constant finds an own constant or enum case by name.
func (d *Declaration) Constant(name string) *Constant {
	for _, constant := range d.Constants {
		if constant.Name == name {
			return constant
		}
	}
	return nil
}

// TemplateNames returns the names of the class-level template parameters.
func (d *Declaration) TemplateNames() []string {
	names := make([]string, 0, len(d.Templates))
	for _, tmpl := range d.Templates {
		names = append(names, tmpl.Name)
	}
	return names
}

// Function is a standalone function declaration.
type Function struct {
	Name              string
	Namespace         string
	Parameters        []Parameter
	ReturnType        string
	DocReturnType     string
	ConditionalReturn *docblock.ConditionalReturn
	Deprecated        bool
	Templates         []string
	DocComment        string
	Span              Span
	File              string
}

func (f *Function) FQN() string {
	return JoinName(f.Namespace, f.Name)
}

func (f *Function) Type() string {
	if f.DocReturnType != "" {
		return f.DocReturnType
	}
	return f.ReturnType
}

// File is everything extracted from one source file.
type File struct {
	Declarations []*Declaration
	Functions    []*Function
	Imports      *ImportTable
	Namespace    string
}

// Declaration looks a declaration of the file up by short name.
func (f *File) Declaration(name string) *Declaration {
	return FindDeclaration(f.Declarations, name)
}

// FindDeclaration returns the declaration with the given short name.
// Class names are case-insensitive.
func FindDeclaration(declarations []*Declaration, name string) *Declaration {
	for _, decl := range declarations {
		if strings.EqualFold(decl.Name, name) {
			return decl
		}
	}
	return nil
}

// ClassLoader resolves a class name in some fixed context (a file's imports
// and namespace) to its declaration. A leading separator marks a
// fully-qualified name. Returns nil when the name does not resolve.
type ClassLoader interface {
	LoadClass(name string) *Declaration
}

// ClassLoaderFunc adapts a function to ClassLoader.
type ClassLoaderFunc func(name string) *Declaration

func (f ClassLoaderFunc) LoadClass(name string) *Declaration {
	if f == nil {
		return nil
	}
	return f(name)
}

// JoinName joins a namespace and a short name.
func JoinName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "\\" + name
}

// SplitName splits a fully-qualified name into namespace and short name.
func SplitName(fqn string) (string, string) {
	fqn = strings.TrimPrefix(fqn, "\\")
	if idx := strings.LastIndexByte(fqn, '\\'); idx != -1 {
		return fqn[:idx], fqn[idx+1:]
	}
	return "", fqn
}

// FullyQualified prefixes name with the root separator so it resolves the
// same in every context.
func FullyQualified(name string) string {
	if name == "" || strings.HasPrefix(name, "\\") {
		return name
	}
	return "\\" + name
}
