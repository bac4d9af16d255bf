package composer

import (
	"path/filepath"
	"strings"

	"github.com/shopware/phpls/internal/php"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// generatedArray evaluates the files Composer writes to vendor/composer:
// a few path variables followed by "return array(...)". Only the constructs
// Composer emits are understood: string literals, __DIR__, dirname(),
// concatenation and nested arrays.
type generatedArray struct {
	content []byte
	dir     string
	vars    map[string]string
}

// arrayEntry is one key of the returned array with its value. A value that
// is itself an array yields all of its strings.
type arrayEntry struct {
	Key    string
	Values []string
}

func parseGeneratedArray(name string, content []byte, dir string) []arrayEntry {
	var entries []arrayEntry

	php.SafeParse(name, content, func(tree *tree_sitter.Tree) {
		g := &generatedArray{content: content, dir: dir, vars: make(map[string]string)}
		entries = g.statements(tree.RootNode())
	})

	return entries
}

func (g *generatedArray) statements(root *tree_sitter.Node) []arrayEntry {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil {
			continue
		}

		switch stmt.Kind() {
		case "expression_statement":
			expr := stmt.NamedChild(0)
			if expr == nil || expr.Kind() != "assignment_expression" {
				continue
			}
			left := expr.ChildByFieldName("left")
			if left != nil && left.Kind() == "variable_name" {
				g.vars[left.Utf8Text(g.content)] = g.value(expr.ChildByFieldName("right"))
			}
		case "return_statement":
			if array := stmt.NamedChild(0); array != nil && array.Kind() == "array_creation_expression" {
				return g.array(array)
			}
			return nil
		}
	}
	return nil
}

func (g *generatedArray) array(array *tree_sitter.Node) []arrayEntry {
	var entries []arrayEntry

	for i := uint(0); i < array.NamedChildCount(); i++ {
		element := array.NamedChild(i)
		if element == nil || element.Kind() != "array_element_initializer" || element.NamedChildCount() < 2 {
			continue
		}

		key := g.value(element.NamedChild(0))
		value := element.NamedChild(element.NamedChildCount() - 1)

		entry := arrayEntry{Key: key}
		if value.Kind() == "array_creation_expression" {
			for j := uint(0); j < value.NamedChildCount(); j++ {
				item := value.NamedChild(j)
				if item == nil || item.Kind() != "array_element_initializer" {
					continue
				}
				if v := g.value(item.NamedChild(item.NamedChildCount() - 1)); v != "" {
					entry.Values = append(entry.Values, v)
				}
			}
		} else if v := g.value(value); v != "" {
			entry.Values = []string{v}
		}

		if entry.Key != "" && len(entry.Values) > 0 {
			entries = append(entries, entry)
		}
	}

	return entries
}

func (g *generatedArray) value(node *tree_sitter.Node) string {
	if node == nil {
		return ""
	}

	switch node.Kind() {
	case "string", "encapsed_string":
		return unquotePHP(node.Utf8Text(g.content))
	case "variable_name":
		return g.vars[node.Utf8Text(g.content)]
	case "name":
		if node.Utf8Text(g.content) == "__DIR__" {
			return g.dir
		}
		return ""
	case "parenthesized_expression":
		return g.value(node.NamedChild(0))
	case "binary_expression":
		operator := node.ChildByFieldName("operator")
		if operator == nil || operator.Kind() != "." {
			return ""
		}
		return g.value(node.ChildByFieldName("left")) + g.value(node.ChildByFieldName("right"))
	case "function_call_expression":
		callee := node.ChildByFieldName("function")
		if callee == nil || !strings.EqualFold(callee.Utf8Text(g.content), "dirname") {
			return ""
		}
		args := node.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			return ""
		}
		arg := args.NamedChild(0)
		if arg.Kind() == "argument" {
			arg = arg.NamedChild(arg.NamedChildCount() - 1)
		}
		return filepath.Dir(g.value(arg))
	}

	return ""
}

// unquotePHP decodes a quoted string literal. Composer only escapes
// backslashes and quotes.
func unquotePHP(text string) string {
	if len(text) < 2 {
		return ""
	}
	quote := text[0]
	if quote != '\'' && quote != '"' {
		return ""
	}
	body := text[1 : len(text)-1]

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			next := body[i+1]
			if next == '\\' || next == quote || (quote == '"' && next == '$') {
				b.WriteByte(next)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
