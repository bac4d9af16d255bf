package php

import (
	"strings"

	treesitterhelper "github.com/shopware/phpls/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ImportTable maps the short (possibly aliased) names introduced by `use`
// statements to fully-qualified names. Class, function and constant imports
// live in separate tables, as in PHP.
type ImportTable struct {
	Classes   map[string]string
	Functions map[string]string
	Constants map[string]string
}

func NewImportTable() *ImportTable {
	return &ImportTable{
		Classes:   make(map[string]string),
		Functions: make(map[string]string),
		Constants: make(map[string]string),
	}
}

// Class returns the import registered for a short class name. Class aliases
// are case-insensitive.
func (t *ImportTable) Class(alias string) (string, bool) {
	if t == nil {
		return "", false
	}
	if fqn, ok := t.Classes[alias]; ok {
		return fqn, true
	}
	for name, fqn := range t.Classes {
		if strings.EqualFold(name, alias) {
			return fqn, true
		}
	}
	return "", false
}

// Function returns the import registered for a short function name.
func (t *ImportTable) Function(alias string) (string, bool) {
	if t == nil {
		return "", false
	}
	if fqn, ok := t.Functions[alias]; ok {
		return fqn, true
	}
	for name, fqn := range t.Functions {
		if strings.EqualFold(name, alias) {
			return fqn, true
		}
	}
	return "", false
}

// Clone returns an independent copy of the table.
func (t *ImportTable) Clone() *ImportTable {
	clone := NewImportTable()
	if t == nil {
		return clone
	}
	for k, v := range t.Classes {
		clone.Classes[k] = v
	}
	for k, v := range t.Functions {
		clone.Functions[k] = v
	}
	for k, v := range t.Constants {
		clone.Constants[k] = v
	}
	return clone
}

// ResolveClassName turns a class reference as written in a file into a
// fully-qualified name (without leading separator), following PHP's name
// resolution rules. self, static, parent and keyword types are returned
// unchanged.
func (t *ImportTable) ResolveClassName(name, namespace string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(name, "\\"); ok {
		return rest
	}

	if isRelativeType(name) || isPrimitiveType(name) {
		return name
	}

	if rest, ok := strings.CutPrefix(name, "namespace\\"); ok {
		return JoinName(namespace, rest)
	}

	first, rest, qualified := strings.Cut(name, "\\")
	if !qualified {
		if fqn, ok := t.Class(name); ok {
			return fqn
		}
		return JoinName(namespace, name)
	}

	if fqn, ok := t.Class(first); ok {
		return fqn + "\\" + rest
	}
	return JoinName(namespace, name)
}

// isPrimitiveType checks if the given type is a PHP type keyword that is
// never a class.
func isPrimitiveType(typeName string) bool {
	switch strings.ToLower(typeName) {
	case "string", "int", "integer", "float", "double", "bool", "boolean",
		"array", "object", "callable", "iterable", "void", "null",
		"mixed", "never", "resource", "false", "true", "number":
		return true
	default:
		return false
	}
}

// isRelativeType checks if the given type refers to the current class context.
func isRelativeType(typeName string) bool {
	switch strings.ToLower(typeName) {
	case "self", "static", "parent", "$this":
		return true
	default:
		return false
	}
}

// collectImports adds the clauses of a namespace_use_declaration to table.
// Group uses (use A\{B, C as D}) are expanded against their common prefix.
func collectImports(node *tree_sitter.Node, content []byte, table *ImportTable) {
	declarationType := useType(node)

	prefix := ""
	group := treesitterhelper.GetFirstNodeOfKind(node, "namespace_use_group")
	if group != nil {
		if prefixNode := treesitterhelper.GetFirstNodeOfKind(node, "namespace_name"); prefixNode != nil {
			prefix = strings.TrimPrefix(prefixNode.Utf8Text(content), "\\")
		}
		node = group
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		clause := node.NamedChild(i)
		if clause == nil || clause.Kind() != "namespace_use_clause" {
			continue
		}

		clauseType := useType(clause)
		if clauseType == "" {
			clauseType = declarationType
		}

		fqn, alias := useClause(clause, content)
		if fqn == "" {
			continue
		}
		if prefix != "" {
			fqn = prefix + "\\" + fqn
		}
		if alias == "" {
			_, alias = SplitName(fqn)
		}

		switch clauseType {
		case "function":
			table.Functions[alias] = fqn
		case "const":
			table.Constants[alias] = fqn
		default:
			table.Classes[alias] = fqn
		}
	}
}

// useType returns "function" or "const" when the node carries that keyword.
func useType(node *tree_sitter.Node) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.IsNamed() {
			continue
		}
		switch strings.ToLower(child.Kind()) {
		case "function":
			return "function"
		case "const":
			return "const"
		}
	}
	return ""
}

func useClause(clause *tree_sitter.Node, content []byte) (string, string) {
	aliasNode := clause.ChildByFieldName("alias")

	fqn := ""
	alias := ""
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		if aliasNode != nil && child.StartByte() == aliasNode.StartByte() {
			continue
		}
		switch child.Kind() {
		case "name", "qualified_name", "namespace_name":
			if fqn == "" {
				fqn = strings.TrimPrefix(child.Utf8Text(content), "\\")
			} else if aliasNode == nil && alias == "" && child.Kind() == "name" {
				// older grammars expose the alias as a second name node
				alias = child.Utf8Text(content)
			}
		}
	}

	if aliasNode != nil {
		alias = aliasNode.Utf8Text(content)
	}

	return fqn, alias
}
