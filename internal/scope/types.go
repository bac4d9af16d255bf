package scope

import (
	"strings"

	"github.com/shopware/phpls/internal/docblock"
	"github.com/shopware/phpls/internal/inheritance"
	"github.com/shopware/phpls/internal/php"
	"github.com/shopware/phpls/internal/resolver"
	treesitterhelper "github.com/shopware/phpls/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// maxInferenceDepth bounds chains like $a = $b; $b = $c->foo(); ...
const maxInferenceDepth = 8

// Env resolves the names met while typing variables. *resolver.FileContext
// implements it for the file being edited.
type Env interface {
	// LoadClass resolves a class name as written in the edited file.
	LoadClass(name string) *php.Declaration
	// LoadFunction resolves a function name as written in the edited file.
	LoadFunction(name string) *php.Function
	// LoaderFor returns the class loader of another file, for types written
	// where a member or function was declared.
	LoaderFor(fileID string) php.ClassLoader
}

// candidate is a type expression together with the context its class names
// resolve in. self is the class that self, static and $this refer to.
type candidate struct {
	typ    string
	loader php.ClassLoader
	self   *php.Declaration
}

// typedClass is a class reached through a type, with the template bindings
// taken from the generic arguments of that type.
type typedClass struct {
	decl     *php.Declaration
	bindings map[string]string
}

type typer struct {
	root    *tree_sitter.Node
	content []byte
	env     Env
	self    *php.Declaration
	depth   int
}

// VariableTypes returns the classes the variable name (with or without '$')
// may hold at offset. Every binding visible at the cursor contributes, so a
// variable assigned different classes in different branches yields all of
// them.
func VariableTypes(source []byte, offset uint, name string, env Env) []*php.Declaration {
	if env == nil {
		return nil
	}
	name = "$" + strings.TrimPrefix(name, "$")

	var result []*php.Declaration
	php.SafeParse("scope", source, func(tree *tree_sitter.Tree) {
		t := &typer{root: tree.RootNode(), content: source, env: env}
		t.self = t.enclosingClass(offset)
		result = t.declarations(t.variable(name, offset))
	})
	return result
}

// TypeStrings returns the type expressions bound to a variable at offset,
// before they are resolved to classes. Duplicates are dropped.
func TypeStrings(source []byte, offset uint, name string, env Env) []string {
	if env == nil {
		return nil
	}
	name = "$" + strings.TrimPrefix(name, "$")

	var result []string
	php.SafeParse("scope", source, func(tree *tree_sitter.Tree) {
		t := &typer{root: tree.RootNode(), content: source, env: env}
		t.self = t.enclosingClass(offset)

		seen := make(map[string]bool)
		for _, c := range t.variable(name, offset) {
			if c.typ != "" && !seen[c.typ] {
				seen[c.typ] = true
				result = append(result, c.typ)
			}
		}
	})
	return result
}

func (t *typer) text(node *tree_sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Utf8Text(t.content)
}

func (t *typer) enclosingClass(offset uint) *php.Declaration {
	class := treesitterhelper.InnermostMatching(t.root, offset, treesitterhelper.PHPClassLikePattern, t.content)
	if class == nil {
		return nil
	}
	return t.env.LoadClass(t.text(class.ChildByFieldName("name")))
}

func (t *typer) declarations(candidates []candidate) []*php.Declaration {
	var result []*php.Declaration
	seen := make(map[*php.Declaration]bool)

	for _, c := range candidates {
		for _, decl := range resolver.TypeHintToDeclarations(c.typ, c.self, nil, c.loader) {
			if !seen[decl] {
				seen[decl] = true
				result = append(result, decl)
			}
		}
	}
	return result
}

func (t *typer) variable(name string, offset uint) []candidate {
	if t.depth >= maxInferenceDepth {
		return nil
	}
	t.depth++
	defer func() { t.depth-- }()

	w := analyze(t.root, t.content, offset)

	var result []candidate
	for _, b := range w.vars[name] {
		result = append(result, t.binding(b)...)
	}
	return result
}

func (t *typer) binding(b binding) []candidate {
	switch b.kind {
	case bindThis:
		return []candidate{{typ: "$this", loader: t.env, self: t.self}}
	case bindType:
		return []candidate{{typ: b.typ, loader: t.env, self: t.self}}
	case bindExpression:
		return t.expression(b.node, b.start)
	case bindElement:
		var result []candidate
		for _, c := range t.expression(b.node, b.start) {
			if element := docblock.IterableValueType(c.typ); element != "" {
				result = append(result, candidate{typ: element, loader: c.loader, self: c.self})
			}
		}
		return result
	}
	return nil
}

// expression infers the types of an expression. at is where the binding
// using the expression starts; variables inside are read as they were just
// before it.
func (t *typer) expression(node *tree_sitter.Node, at uint) []candidate {
	if node == nil {
		return nil
	}

	switch node.Kind() {
	case "parenthesized_expression", "clone_expression":
		return t.expression(node.NamedChild(0), at)
	case "assignment_expression", "reference_assignment_expression":
		return t.expression(node.ChildByFieldName("right"), at)
	case "object_creation_expression":
		designator := node.NamedChild(0)
		if designator == nil {
			return nil
		}
		switch designator.Kind() {
		case "name", "qualified_name", "relative_scope":
			return []candidate{{typ: t.text(designator), loader: t.env, self: t.self}}
		}
		return nil
	case "variable_name":
		name := t.text(node)
		if name == "$this" {
			return []candidate{{typ: "$this", loader: t.env, self: t.self}}
		}
		if at == 0 {
			return nil
		}
		return t.variable(name, at-1)
	case "conditional_expression":
		then := node.ChildByFieldName("body")
		if then == nil {
			then = node.ChildByFieldName("condition")
		}
		return append(t.expression(then, at), t.expression(node.ChildByFieldName("alternative"), at)...)
	case "binary_expression":
		if operator := node.ChildByFieldName("operator"); operator != nil && operator.Kind() == "??" {
			return append(t.expression(node.ChildByFieldName("left"), at), t.expression(node.ChildByFieldName("right"), at)...)
		}
		return nil
	case "match_expression":
		return t.match(node, at)
	case "member_call_expression", "nullsafe_member_call_expression":
		receivers := t.expression(node.ChildByFieldName("object"), at)
		return t.methodCall(receivers, t.text(node.ChildByFieldName("name")), node.ChildByFieldName("arguments"), at)
	case "scoped_call_expression":
		receivers := t.scope(node.ChildByFieldName("scope"), at)
		return t.methodCall(receivers, t.text(node.ChildByFieldName("name")), node.ChildByFieldName("arguments"), at)
	case "member_access_expression", "nullsafe_member_access_expression":
		receivers := t.expression(node.ChildByFieldName("object"), at)
		return t.property(receivers, t.text(node.ChildByFieldName("name")))
	case "scoped_property_access_expression":
		receivers := t.scope(node.ChildByFieldName("scope"), at)
		return t.property(receivers, t.text(node.ChildByFieldName("name")))
	case "class_constant_access_expression":
		return t.enumCase(node, at)
	case "function_call_expression":
		return t.functionCall(node, at)
	}

	return nil
}

func (t *typer) match(node *tree_sitter.Node, at uint) []candidate {
	var result []candidate
	for _, arm := range treesitterhelper.FindAll(node, treesitterhelper.AnyNodeKind("match_conditional_expression", "match_default_expression"), t.content) {
		result = append(result, t.expression(arm.ChildByFieldName("return_expression"), at)...)
	}
	return result
}

// scope types the left side of "X::", where self, static and parent name
// the enclosing class.
func (t *typer) scope(node *tree_sitter.Node, at uint) []candidate {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "name", "qualified_name", "relative_scope":
		return []candidate{{typ: t.text(node), loader: t.env, self: t.self}}
	}
	return t.expression(node, at)
}

// classes resolves a candidate to its classes. Generic arguments bind the
// templates of the class; they are qualified in the candidate's context so
// that they survive substitution into members declared elsewhere.
func (t *typer) classes(c candidate) []typedClass {
	typ, _ := docblock.StripNullable(c.typ)

	var result []typedClass
	for _, member := range docblock.SplitUnion(typ) {
		member = strings.TrimSuffix(strings.TrimPrefix(member, "("), ")")
		for _, item := range docblock.SplitTopLevel(member, '&') {
			item = strings.TrimPrefix(strings.TrimSpace(item), "?")
			if item == "" || strings.HasSuffix(item, "[]") {
				continue
			}

			generic := docblock.ParseGeneric(item)
			for _, decl := range resolver.TypeHintToDeclarations(generic.Base, c.self, nil, c.loader) {
				result = append(result, typedClass{decl: decl, bindings: bindArguments(decl, generic.Args, c.loader)})
			}
		}
	}
	return result
}

func bindArguments(decl *php.Declaration, args []string, loader php.ClassLoader) map[string]string {
	if len(decl.Templates) == 0 || len(args) == 0 {
		return nil
	}

	bindings := make(map[string]string, len(decl.Templates))
	for i, tmpl := range decl.Templates {
		if i < len(args) {
			bindings[tmpl.Name] = qualify(args[i], loader)
		}
	}
	return bindings
}

// qualify rewrites the class names of typ to fully-qualified names.
func qualify(typ string, loader php.ClassLoader) string {
	if loader == nil {
		return typ
	}
	return docblock.MapClassNames(typ, func(name string) string {
		if docblock.IsKeywordType(name) {
			return name
		}
		if decl := loader.LoadClass(name); decl != nil {
			return php.FullyQualified(decl.FQN())
		}
		return name
	})
}

func (t *typer) merge(decl *php.Declaration) *inheritance.MergedDeclaration {
	return inheritance.Merge(decl, t.env.LoaderFor(decl.File))
}

func (t *typer) methodCall(receivers []candidate, name string, args *tree_sitter.Node, at uint) []candidate {
	if name == "" {
		return nil
	}

	var result []candidate
	for _, receiver := range receivers {
		for _, class := range t.classes(receiver) {
			method := t.merge(class.decl).Method(name)
			if method == nil {
				continue
			}

			typ := t.returnType(method.Type(), method.ConditionalReturn, method.Parameters, args, at)
			result = append(result, candidate{
				typ:    docblock.Substitute(typ, class.bindings),
				loader: t.env.LoaderFor(method.DeclaringClass.File),
				self:   class.decl,
			})
		}
	}
	return result
}

func (t *typer) property(receivers []candidate, name string) []candidate {
	name = strings.TrimPrefix(name, "$")
	if name == "" {
		return nil
	}

	var result []candidate
	for _, receiver := range receivers {
		for _, class := range t.classes(receiver) {
			property := t.merge(class.decl).Property(name)
			if property == nil {
				continue
			}
			result = append(result, candidate{
				typ:    docblock.Substitute(property.Type(), class.bindings),
				loader: t.env.LoaderFor(property.DeclaringClass.File),
				self:   class.decl,
			})
		}
	}
	return result
}

// enumCase types Suit::Hearts as Suit. Plain class constants and ::class
// literals carry no class.
func (t *typer) enumCase(node *tree_sitter.Node, at uint) []candidate {
	if node.NamedChildCount() < 2 {
		return nil
	}
	name := t.text(node.NamedChild(node.NamedChildCount() - 1))

	var result []candidate
	for _, receiver := range t.scope(node.NamedChild(0), at) {
		for _, class := range t.classes(receiver) {
			if constant := class.decl.Constant(name); constant != nil && constant.EnumCase {
				result = append(result, candidate{typ: php.FullyQualified(class.decl.FQN()), loader: t.env, self: class.decl})
			}
		}
	}
	return result
}

func (t *typer) functionCall(node *tree_sitter.Node, at uint) []candidate {
	callee := node.ChildByFieldName("function")
	if callee == nil {
		return nil
	}
	switch callee.Kind() {
	case "name", "qualified_name":
	default:
		return nil
	}

	fn := t.env.LoadFunction(t.text(callee))
	if fn == nil {
		return nil
	}

	typ := t.returnType(fn.Type(), fn.ConditionalReturn, fn.Parameters, node.ChildByFieldName("arguments"), at)
	return []candidate{{typ: typ, loader: t.env.LoaderFor(fn.File), self: t.self}}
}

// returnType applies a conditional return descriptor to the arguments of a
// call, falling back to the declared type.
func (t *typer) returnType(declared string, conditional *docblock.ConditionalReturn, params []php.Parameter, args *tree_sitter.Node, at uint) string {
	if conditional.IsConditional() {
		if typ := conditional.Resolve(t.arguments(params, args, at)); typ != "" {
			return typ
		}
	}
	return declared
}

func (t *typer) arguments(params []php.Parameter, args *tree_sitter.Node, at uint) func(string) (docblock.Argument, bool) {
	var positional []*tree_sitter.Node
	named := make(map[string]*tree_sitter.Node)

	if args != nil {
		for i := uint(0); i < args.NamedChildCount(); i++ {
			arg := args.NamedChild(i)
			if arg == nil || arg.Kind() != "argument" || arg.NamedChildCount() == 0 {
				continue
			}
			value := arg.NamedChild(arg.NamedChildCount() - 1)
			if name := arg.ChildByFieldName("name"); name != nil {
				named[t.text(name)] = value
				continue
			}
			positional = append(positional, value)
		}
	}

	return func(param string) (docblock.Argument, bool) {
		value, ok := named[param]
		if !ok {
			for i, p := range params {
				if p.Name == param && i < len(positional) {
					value, ok = positional[i], true
					break
				}
			}
		}
		if !ok {
			return docblock.Argument{}, false
		}
		return t.argument(value, at), true
	}
}

var literalTypes = map[string]string{
	"string":                    "string",
	"encapsed_string":           "string",
	"heredoc":                   "string",
	"nowdoc":                    "string",
	"integer":                   "int",
	"float":                     "float",
	"boolean":                   "bool",
	"null":                      "null",
	"array_creation_expression": "array",
}

func (t *typer) argument(value *tree_sitter.Node, at uint) docblock.Argument {
	if typ, ok := literalTypes[value.Kind()]; ok {
		return docblock.Argument{Type: typ}
	}

	if treesitterhelper.PHPClassConstantPattern.Matches(value, t.content) {
		for _, receiver := range t.scope(value.NamedChild(0), at) {
			if classes := t.classes(receiver); len(classes) > 0 {
				return docblock.Argument{Class: php.FullyQualified(classes[0].decl.FQN())}
			}
		}
		return docblock.Argument{Class: t.text(value.NamedChild(0))}
	}

	if candidates := t.expression(value, at); len(candidates) == 1 {
		return docblock.Argument{Type: candidates[0].typ}
	}
	return docblock.Argument{}
}
