package inheritance

import (
	"strings"

	"github.com/shopware/phpls/internal/docblock"
	"github.com/shopware/phpls/internal/php"
)

// DefaultMaxDepth bounds the parent chain, trait nesting and interface
// levels walked by Merge.
const DefaultMaxDepth = 20

// Method is a method of a merged declaration together with its provenance.
type Method struct {
	*php.Method
	// DeclaringClass is the class, trait or interface the method was written in.
	DeclaringClass *php.Declaration
	// Inherited is set for members reached through a parent or an interface.
	// Trait members count as declared by the class using the trait.
	Inherited bool
}

type Property struct {
	*php.Property
	DeclaringClass *php.Declaration
	Inherited      bool
}

type Constant struct {
	*php.Constant
	DeclaringClass *php.Declaration
	Inherited      bool
}

// MergedDeclaration is a declaration with every member reachable through
// its traits, parents and interfaces. Own members shadow inherited ones of
// the same name.
type MergedDeclaration struct {
	Declaration *php.Declaration
	Methods     []Method
	Properties  []Property
	Constants   []Constant
	// Ancestors lists every trait, parent and interface that contributed, in
	// walk order.
	Ancestors []*php.Declaration
}

type Option func(*merger)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(m *merger) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

type merger struct {
	loader   php.ClassLoader
	maxDepth int

	result  *MergedDeclaration
	visited map[string]bool

	methods    map[string]bool
	properties map[string]bool
	constants  map[string]bool
}

// pending is an interface waiting to be merged together with the template
// bindings of the class that listed it.
type pending struct {
	name     string
	owner    *php.Declaration
	bindings map[string]string
}

// Merge collects the members of decl and its ancestors. The walk order is
// own members, used traits, the parent chain (each parent with its traits)
// and finally all interfaces. Names are looked up through loader. A missing
// ancestor or a cycle ends that branch of the walk.
func Merge(decl *php.Declaration, loader php.ClassLoader, opts ...Option) *MergedDeclaration {
	if decl == nil {
		return nil
	}

	m := &merger{
		loader:     loader,
		maxDepth:   DefaultMaxDepth,
		result:     &MergedDeclaration{Declaration: decl},
		visited:    map[string]bool{strings.ToLower(decl.FQN()): true},
		methods:    make(map[string]bool),
		properties: make(map[string]bool),
		constants:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}

	var interfaces []pending
	queue := func(owner *php.Declaration, bindings map[string]string) {
		for _, name := range owner.Interfaces {
			interfaces = append(interfaces, pending{name: name, owner: owner, bindings: bindings})
		}
	}

	m.addMembers(decl, decl, nil, false)
	m.mergeTraits(decl, nil, false, 0)
	queue(decl, nil)

	current, bindings := decl, map[string]string(nil)
	for depth := 0; depth < m.maxDepth && current.Parent != ""; depth++ {
		parent := m.load(current.Parent)
		if parent == nil {
			break
		}

		bindings = bind(parent, current.Extends, bindings)
		m.result.Ancestors = append(m.result.Ancestors, parent)
		m.addMembers(parent, parent, bindings, true)
		m.mergeTraits(parent, bindings, true, 0)
		queue(parent, bindings)
		current = parent
	}

	for depth := 0; depth < m.maxDepth && len(interfaces) > 0; depth++ {
		var next []pending
		for _, item := range interfaces {
			iface := m.load(item.name)
			if iface == nil {
				continue
			}

			generics := item.owner.Implements
			if item.owner.Kind == php.KindInterface {
				generics = item.owner.Extends
			}
			ifaceBindings := bind(iface, generics, item.bindings)

			m.result.Ancestors = append(m.result.Ancestors, iface)
			m.addMembers(iface, iface, ifaceBindings, true)
			for _, name := range iface.Interfaces {
				next = append(next, pending{name: name, owner: iface, bindings: ifaceBindings})
			}
		}
		interfaces = next
	}

	return m.result
}

// load resolves an ancestor once; names already merged report nil.
func (m *merger) load(name string) *php.Declaration {
	if m.loader == nil || name == "" {
		return nil
	}

	key := strings.ToLower(strings.TrimPrefix(name, "\\"))
	if m.visited[key] {
		return nil
	}
	m.visited[key] = true

	decl := m.loader.LoadClass(php.FullyQualified(name))
	if decl != nil {
		m.visited[strings.ToLower(decl.FQN())] = true
	}
	return decl
}

func (m *merger) mergeTraits(user *php.Declaration, bindings map[string]string, inherited bool, depth int) {
	if depth >= m.maxDepth {
		return
	}

	for _, name := range user.Traits {
		trait := m.load(name)
		if trait == nil {
			continue
		}

		traitBindings := bind(trait, user.Uses, bindings)
		m.result.Ancestors = append(m.result.Ancestors, trait)
		m.addMembers(trait, trait, traitBindings, inherited)
		m.mergeTraits(trait, traitBindings, inherited, depth+1)
	}
}

func (m *merger) addMembers(from, declaring *php.Declaration, bindings map[string]string, inherited bool) {
	for _, method := range from.Methods {
		key := strings.ToLower(method.Name)
		if m.methods[key] {
			continue
		}
		m.methods[key] = true
		m.result.Methods = append(m.result.Methods, Method{
			Method:         substituteMethod(method, bindings),
			DeclaringClass: declaring,
			Inherited:      inherited,
		})
	}

	for _, property := range from.Properties {
		if m.properties[property.Name] {
			continue
		}
		m.properties[property.Name] = true
		m.result.Properties = append(m.result.Properties, Property{
			Property:       substituteProperty(property, bindings),
			DeclaringClass: declaring,
			Inherited:      inherited,
		})
	}

	for _, constant := range from.Constants {
		if m.constants[constant.Name] {
			continue
		}
		m.constants[constant.Name] = true
		m.result.Constants = append(m.result.Constants, Constant{
			Constant:       constant,
			DeclaringClass: declaring,
			Inherited:      inherited,
		})
	}
}

// bind maps the template parameters of ancestor to the arguments the child
// passed in its generic tags. Arguments are first rewritten through the
// child's own bindings so templates forward along the chain. Templates
// without an argument fall back to their default, then their constraint.
func bind(ancestor *php.Declaration, generics []docblock.Generic, outer map[string]string) map[string]string {
	if len(ancestor.Templates) == 0 {
		return nil
	}

	var args []string
	for _, generic := range generics {
		if sameClass(generic.Base, ancestor) {
			args = generic.Args
			break
		}
	}

	bindings := make(map[string]string, len(ancestor.Templates))
	for i, tmpl := range ancestor.Templates {
		switch {
		case i < len(args):
			bindings[tmpl.Name] = docblock.Substitute(args[i], outer)
		case tmpl.Default != "":
			bindings[tmpl.Name] = tmpl.Default
		case tmpl.Constraint != "":
			bindings[tmpl.Name] = tmpl.Constraint
		}
	}
	return bindings
}

func sameClass(name string, decl *php.Declaration) bool {
	name = strings.TrimPrefix(name, "\\")
	if strings.Contains(name, "\\") {
		return strings.EqualFold(name, decl.FQN())
	}
	return strings.EqualFold(name, decl.Name)
}

// without drops the method-level templates, they shadow class templates of
// the same name.
func without(bindings map[string]string, names []string) map[string]string {
	if len(names) == 0 {
		return bindings
	}

	result := make(map[string]string, len(bindings))
	for name, typ := range bindings {
		result[name] = typ
	}
	for _, name := range names {
		delete(result, name)
	}
	return result
}

func substituteMethod(method *php.Method, bindings map[string]string) *php.Method {
	bindings = without(bindings, method.Templates)
	if len(bindings) == 0 {
		return method
	}

	copied := *method
	copied.DocReturnType = docblock.Substitute(method.DocReturnType, bindings)
	copied.Parameters = make([]php.Parameter, len(method.Parameters))
	for i, param := range method.Parameters {
		param.DocType = docblock.Substitute(param.DocType, bindings)
		copied.Parameters[i] = param
	}
	return &copied
}

func substituteProperty(property *php.Property, bindings map[string]string) *php.Property {
	if len(bindings) == 0 || property.DocType == "" {
		return property
	}

	copied := *property
	copied.DocType = docblock.Substitute(property.DocType, bindings)
	return &copied
}
