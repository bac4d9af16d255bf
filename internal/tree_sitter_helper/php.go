package treesitterhelper

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

var (
	// PHPFunctionLikePattern matches every node that opens a new variable scope.
	PHPFunctionLikePattern = AnyNodeKind(
		"function_definition",
		"method_declaration",
		"anonymous_function",
		"anonymous_function_creation_expression",
		"arrow_function",
	)

	// PHPClassLikePattern matches class, interface, trait and enum declarations.
	PHPClassLikePattern = AnyNodeKind(
		"class_declaration",
		"interface_declaration",
		"trait_declaration",
		"enum_declaration",
	)

	// PHPClassConstantPattern matches Foo::class
	PHPClassConstantPattern = And(
		NodeKind("class_constant_access_expression"),
		FuncPattern(func(node *tree_sitter.Node, content []byte) bool {
			if node.NamedChildCount() < 2 {
				return false
			}
			last := node.NamedChild(node.NamedChildCount() - 1)
			return last != nil && strings.EqualFold(last.Utf8Text(content), "class")
		}),
	)
)

// ContainsOffset reports whether the byte offset lies inside the node.
func ContainsOffset(node *tree_sitter.Node, offset uint) bool {
	return node != nil && node.StartByte() <= offset && offset <= node.EndByte()
}

// InnermostMatching descends from root towards offset and returns the deepest
// node containing offset that matches pattern.
func InnermostMatching(root *tree_sitter.Node, offset uint, pattern Pattern, content []byte) *tree_sitter.Node {
	var found *tree_sitter.Node

	current := root
	for current != nil {
		if pattern.Matches(current, content) {
			found = current
		}

		var next *tree_sitter.Node
		for i := uint(0); i < current.NamedChildCount(); i++ {
			child := current.NamedChild(i)
			if ContainsOffset(child, offset) {
				next = child
				break
			}
		}
		current = next
	}

	return found
}

// CanonicalText renders a node by concatenating its leaf tokens without
// whitespace, skipping comments. For type hints this yields "?Foo", "A|B",
// "A&B" and "(A&B)|null".
func CanonicalText(node *tree_sitter.Node, content []byte) string {
	var b strings.Builder
	writeLeaves(node, content, &b)
	return b.String()
}

func writeLeaves(node *tree_sitter.Node, content []byte, b *strings.Builder) {
	if node == nil || node.Kind() == "comment" {
		return
	}
	if node.ChildCount() == 0 {
		b.WriteString(node.Utf8Text(content))
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		writeLeaves(node.Child(i), content, b)
	}
}

// PHPDocComment returns the "/** ... */" comment directly preceding node, or
// "" when there is none.
func PHPDocComment(node *tree_sitter.Node, content []byte) string {
	prev := node.PrevNamedSibling()
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}

	text := prev.Utf8Text(content)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return text
}

// PHPVariableName returns the name of a variable_name node including its '$'.
func PHPVariableName(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "variable_name":
		return node.Utf8Text(content)
	case "by_ref", "reference_modifier":
		return PHPVariableName(GetFirstNodeOfKind(node, "variable_name"), content)
	}
	return ""
}

// HasChildKind reports whether one of the direct children (named or not) of
// node has the given kind.
func HasChildKind(node *tree_sitter.Node, kind string) bool {
	return GetFirstNodeOfKind(node, kind) != nil
}
