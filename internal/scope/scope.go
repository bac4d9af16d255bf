// Package scope finds the local variables visible at a cursor offset and the
// classes they may hold.
package scope

import (
	"strings"

	"github.com/shopware/phpls/internal/docblock"
	"github.com/shopware/phpls/internal/php"
	treesitterhelper "github.com/shopware/phpls/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type bindingKind int

const (
	// bindUntyped introduces a variable without anything known about it
	bindUntyped bindingKind = iota
	// bindExpression assigns the value of node
	bindExpression
	// bindType declares typ, from a parameter hint, a catch clause or @var
	bindType
	// bindElement assigns one element of the iterable node
	bindElement
	// bindThis is the receiver of a non-static method
	bindThis
)

type binding struct {
	kind  bindingKind
	node  *tree_sitter.Node
	typ   string
	start uint
}

var (
	scopePattern = treesitterhelper.Or(
		treesitterhelper.AnyNodeKind("function_definition", "method_declaration"),
		treesitterhelper.PHPClassLikePattern,
	)

	// nested declarations open scopes of their own and are never walked
	declarationKinds = map[string]bool{
		"function_definition":       true,
		"class_declaration":         true,
		"interface_declaration":     true,
		"trait_declaration":         true,
		"enum_declaration":          true,
		"anonymous_class":           true,
		"namespace_use_declaration": true,
		"const_declaration":         true,
	}

	constructKinds = map[string]bool{
		"if_statement":      true,
		"else_if_clause":    true,
		"else_clause":       true,
		"while_statement":   true,
		"do_statement":      true,
		"for_statement":     true,
		"switch_statement":  true,
		"switch_block":      true,
		"case_statement":    true,
		"default_statement": true,
		"try_statement":     true,
		"finally_clause":    true,
		"declare_statement": true,
	}
)

// walker collects the bindings of one scope up to the cursor.
type walker struct {
	content []byte
	offset  uint

	vars  map[string][]binding
	order []string

	// depth counts the branch and loop bodies around the current statement;
	// assignments at depth 0 replace earlier values
	depth int

	// override holds the @var types of the doc comment in front of the
	// current statement; "" is an unnamed @var
	override map[string]string
}

// VariablesInScope returns the names (with '$') of the variables visible at
// offset, in the order they were introduced. Assignments that start after
// the cursor are not visible yet.
func VariablesInScope(source []byte, offset uint) []string {
	var names []string
	php.SafeParse("scope", source, func(tree *tree_sitter.Tree) {
		w := analyze(tree.RootNode(), source, offset)
		names = w.names()
	})
	return names
}

// analyze locates the innermost scope around offset and walks it.
func analyze(root *tree_sitter.Node, content []byte, offset uint) *walker {
	w := &walker{
		content: content,
		offset:  offset,
		vars:    make(map[string][]binding),
	}

	fn := treesitterhelper.InnermostMatching(root, offset, scopePattern, content)
	if fn == nil {
		w.statements(root)
		return w
	}
	if treesitterhelper.PHPClassLikePattern.Matches(fn, content) {
		// class bodies outside of methods have no variables
		return w
	}

	if fn.Kind() == "method_declaration" && !treesitterhelper.HasChildKind(fn, "static_modifier") {
		w.bind("$this", binding{kind: bindThis, start: fn.StartByte()})
	}
	w.parameters(fn, treesitterhelper.PHPDocComment(fn, content))

	if body := fn.ChildByFieldName("body"); body != nil && body.StartByte() <= offset {
		w.statements(body)
	}
	return w
}

func (w *walker) names() []string {
	names := make([]string, 0, len(w.order))
	for _, name := range w.order {
		if len(w.vars[name]) > 0 {
			names = append(names, name)
		}
	}
	return names
}

func (w *walker) text(node *tree_sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Utf8Text(w.content)
}

func (w *walker) bind(name string, b binding) {
	if name == "" {
		return
	}
	if _, ok := w.vars[name]; !ok {
		w.order = append(w.order, name)
	}
	w.vars[name] = append(w.vars[name], b)
}

// rebind replaces all earlier bindings of name.
func (w *walker) rebind(name string, b binding) {
	if _, ok := w.vars[name]; ok {
		w.vars[name] = nil
	}
	w.bind(name, b)
}

// set records an assignment. Inside a branch or loop body it adds to the
// values of name from elsewhere.
func (w *walker) set(name string, b binding) {
	if w.depth > 0 {
		w.bind(name, b)
		return
	}
	w.rebind(name, b)
}

func (w *walker) parameters(fn *tree_sitter.Node, doc string) {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	docTypes := docblock.ParamTypes(doc)

	for i := uint(0); i < params.NamedChildCount(); i++ {
		param := params.NamedChild(i)
		if param == nil {
			continue
		}
		switch param.Kind() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}

		name := treesitterhelper.PHPVariableName(param.ChildByFieldName("name"), w.content)
		if name == "" {
			name = treesitterhelper.PHPVariableName(treesitterhelper.GetFirstNodeOfKind(param, "variable_name"), w.content)
		}
		if name == "" {
			continue
		}

		typ := docTypes[strings.TrimPrefix(name, "$")]
		if typ == "" {
			if hint := param.ChildByFieldName("type"); hint != nil {
				typ = treesitterhelper.CanonicalText(hint, w.content)
			}
		}
		if typ != "" && param.Kind() == "variadic_parameter" {
			typ = "array<" + typ + ">"
		}

		b := binding{kind: bindUntyped, start: param.StartByte()}
		if typ != "" {
			b = binding{kind: bindType, typ: typ, start: param.StartByte()}
		}
		w.rebind(name, b)
	}
}

// statements walks a statement list in order and stops at the first
// statement starting after the cursor. It reports true once a closure around
// the cursor took the walk over.
func (w *walker) statements(block *tree_sitter.Node) bool {
	for i := uint(0); i < block.NamedChildCount(); i++ {
		stmt := block.NamedChild(i)
		if stmt == nil {
			continue
		}
		if stmt.StartByte() > w.offset {
			break
		}

		if stmt.Kind() == "comment" {
			w.docComment(stmt)
			continue
		}

		entered := w.statement(stmt)
		w.override = nil
		if entered {
			return true
		}
	}
	return false
}

func (w *walker) docComment(comment *tree_sitter.Node) {
	w.override = nil

	text := w.text(comment)
	if !strings.HasPrefix(text, "/**") {
		return
	}

	vars := docblock.Vars(text)
	if len(vars) == 0 {
		return
	}

	w.override = make(map[string]string, len(vars))
	for _, v := range vars {
		if v.Name == "" {
			w.override[""] = v.Type
			continue
		}
		name := "$" + v.Name
		w.bind(name, binding{kind: bindType, typ: v.Type, start: comment.StartByte()})
		w.override[name] = v.Type
	}
}

func (w *walker) statement(stmt *tree_sitter.Node) bool {
	kind := stmt.Kind()
	switch {
	case kind == "compound_statement" || kind == "colon_block":
		return w.statements(stmt)
	case declarationKinds[kind]:
		return false
	case kind == "namespace_definition":
		if body := stmt.ChildByFieldName("body"); body != nil {
			return w.statements(body)
		}
		return false
	case kind == "foreach_statement":
		return w.foreach(stmt)
	case kind == "catch_clause":
		return w.catch(stmt)
	case kind == "global_declaration":
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			if child := stmt.NamedChild(i); child != nil && child.Kind() == "variable_name" {
				w.bind(w.text(child), binding{kind: bindUntyped, start: child.StartByte()})
			}
		}
		return false
	case kind == "function_static_declaration":
		w.staticVariables(stmt)
		return false
	case constructKinds[kind]:
		return w.construct(stmt)
	}

	if closure := w.closureAround(stmt); closure != nil {
		w.enterClosure(closure)
		return true
	}
	w.expression(stmt)
	return false
}

// construct walks the children of a branching or looping statement. Every
// branch is walked, the walk does not follow control flow.
func (w *walker) construct(node *tree_sitter.Node) bool {
	w.depth++
	defer func() { w.depth-- }()

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		if child.StartByte() > w.offset {
			return false
		}

		if isStatement(child.Kind()) {
			if w.statement(child) {
				return true
			}
			continue
		}

		if closure := w.closureAround(child); closure != nil {
			w.enterClosure(closure)
			return true
		}
		w.expression(child)
	}
	return false
}

func isStatement(kind string) bool {
	if strings.HasSuffix(kind, "_statement") || constructKinds[kind] || declarationKinds[kind] {
		return true
	}
	switch kind {
	case "colon_block", "catch_clause", "global_declaration", "function_static_declaration":
		return true
	}
	return false
}

func (w *walker) foreach(stmt *tree_sitter.Node) bool {
	iterable := stmt.NamedChild(0)
	if iterable == nil {
		return false
	}
	if closure := w.closureAround(iterable); closure != nil {
		w.enterClosure(closure)
		return true
	}
	w.expression(iterable)

	target := stmt.NamedChild(1)
	if target == nil || w.offset <= target.EndByte() {
		return false
	}

	w.depth++
	defer func() { w.depth-- }()

	// the key and value only exist inside the loop body
	if w.offset <= stmt.EndByte() {
		value := target
		if target.Kind() == "pair" {
			if key := target.NamedChild(0); key != nil {
				w.bind(treesitterhelper.PHPVariableName(key, w.content), binding{kind: bindUntyped, start: key.StartByte()})
			}
			value = target.NamedChild(target.NamedChildCount() - 1)
		}
		w.element(value, iterable)
	}

	for i := uint(2); i < stmt.NamedChildCount(); i++ {
		child := stmt.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		if child.StartByte() > w.offset {
			break
		}
		if w.statement(child) {
			return true
		}
	}
	return false
}

// element binds a foreach value or destructuring target to one element of
// iterable. Nested destructuring binds untyped variables.
func (w *walker) element(target, iterable *tree_sitter.Node) {
	if target == nil {
		return
	}

	switch target.Kind() {
	case "variable_name", "by_ref":
		name := treesitterhelper.PHPVariableName(target, w.content)
		if iterable == nil {
			w.set(name, binding{kind: bindUntyped, start: target.StartByte()})
			return
		}
		w.set(name, binding{kind: bindElement, node: iterable, start: target.StartByte()})
	case "list_literal", "array_creation_expression":
		for i := uint(0); i < target.NamedChildCount(); i++ {
			w.element(target.NamedChild(i), nil)
		}
	case "array_element_initializer", "pair":
		if count := target.NamedChildCount(); count > 0 {
			w.element(target.NamedChild(count-1), iterable)
		}
	}
}

func (w *walker) catch(clause *tree_sitter.Node) bool {
	name := treesitterhelper.PHPVariableName(clause.ChildByFieldName("name"), w.content)
	if name == "" {
		name = treesitterhelper.PHPVariableName(treesitterhelper.GetFirstNodeOfKind(clause, "variable_name"), w.content)
	}
	if name != "" {
		typ := ""
		if types := clause.ChildByFieldName("type"); types != nil {
			typ = treesitterhelper.CanonicalText(types, w.content)
		}
		w.bind(name, binding{kind: bindType, typ: typ, start: clause.StartByte()})
	}

	if body := clause.ChildByFieldName("body"); body != nil && body.StartByte() <= w.offset {
		w.depth++
		defer func() { w.depth-- }()
		return w.statements(body)
	}
	return false
}

func (w *walker) staticVariables(stmt *tree_sitter.Node) {
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		decl := stmt.NamedChild(i)
		if decl == nil || decl.Kind() != "static_variable_declaration" {
			continue
		}

		name := treesitterhelper.PHPVariableName(decl.ChildByFieldName("name"), w.content)
		if value := decl.ChildByFieldName("value"); value != nil {
			w.bind(name, binding{kind: bindExpression, node: value, start: decl.StartByte()})
			continue
		}
		w.bind(name, binding{kind: bindUntyped, start: decl.StartByte()})
	}
}

// expression collects the assignments inside an expression. Closures and
// anonymous classes are not entered.
func (w *walker) expression(node *tree_sitter.Node) {
	if node == nil || node.StartByte() > w.offset {
		return
	}

	switch node.Kind() {
	case "anonymous_function", "anonymous_function_creation_expression", "arrow_function", "anonymous_class":
		return
	case "assignment_expression", "reference_assignment_expression":
		right := node.ChildByFieldName("right")
		w.expression(right)
		w.assign(node.ChildByFieldName("left"), right, node.StartByte())
		return
	case "augmented_assignment_expression":
		right := node.ChildByFieldName("right")
		w.expression(right)

		name := treesitterhelper.PHPVariableName(node.ChildByFieldName("left"), w.content)
		if operator := node.ChildByFieldName("operator"); operator != nil && operator.Kind() == "??=" {
			w.bind(name, binding{kind: bindExpression, node: right, start: node.StartByte()})
		} else if _, ok := w.vars[name]; !ok {
			w.bind(name, binding{kind: bindUntyped, start: node.StartByte()})
		}
		return
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		w.expression(node.NamedChild(i))
	}
}

func (w *walker) assign(left, right *tree_sitter.Node, start uint) {
	if left == nil {
		return
	}

	switch left.Kind() {
	case "variable_name", "by_ref":
		name := treesitterhelper.PHPVariableName(left, w.content)
		if w.override != nil {
			if _, ok := w.override[name]; ok {
				return
			}
			if typ, ok := w.override[""]; ok {
				delete(w.override, "")
				w.set(name, binding{kind: bindType, typ: typ, start: start})
				return
			}
		}
		w.set(name, binding{kind: bindExpression, node: right, start: start})
	case "list_literal", "array_creation_expression":
		w.element(left, right)
	}
}

// closureAround returns the outermost closure inside node whose body holds
// the cursor.
func (w *walker) closureAround(node *tree_sitter.Node) *tree_sitter.Node {
	if node == nil || !treesitterhelper.ContainsOffset(node, w.offset) {
		return nil
	}

	if declarationKinds[node.Kind()] {
		return nil
	}
	// past the declarations only closures are function-like
	if treesitterhelper.PHPFunctionLikePattern.Matches(node, w.content) {
		if treesitterhelper.ContainsOffset(node.ChildByFieldName("body"), w.offset) {
			return node
		}
		return nil
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		if found := w.closureAround(node.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}

// enterClosure replaces the visible set with the scope of closure. Arrow
// functions see every outer variable, anonymous functions only $this and
// the variables of their use clause.
func (w *walker) enterClosure(closure *tree_sitter.Node) {
	outer, outerOrder := w.vars, w.order
	w.vars = make(map[string][]binding)
	w.order = nil
	w.override = nil
	w.depth = 0

	static := treesitterhelper.HasChildKind(closure, "static_modifier") || treesitterhelper.HasChildKind(closure, "static")
	capture := func(name string) {
		bindings := outer[name]
		if len(bindings) == 0 {
			w.bind(name, binding{kind: bindUntyped, start: closure.StartByte()})
			return
		}
		for _, b := range bindings {
			w.bind(name, b)
		}
	}

	if closure.Kind() == "arrow_function" {
		for _, name := range outerOrder {
			if name == "$this" && static {
				continue
			}
			if len(outer[name]) > 0 {
				capture(name)
			}
		}
	} else {
		if len(outer["$this"]) > 0 && !static {
			capture("$this")
		}
		if use := treesitterhelper.GetFirstNodeOfKind(closure, "anonymous_function_use_clause"); use != nil {
			for i := uint(0); i < use.NamedChildCount(); i++ {
				capture(treesitterhelper.PHPVariableName(use.NamedChild(i), w.content))
			}
		}
	}

	w.parameters(closure, "")

	body := closure.ChildByFieldName("body")
	if body == nil {
		return
	}
	if body.Kind() == "compound_statement" {
		w.statements(body)
		return
	}
	if inner := w.closureAround(body); inner != nil {
		w.enterClosure(inner)
		return
	}
	w.expression(body)
}
