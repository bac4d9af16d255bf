package docblock

import (
	"strings"
)

// keywordTypes are type names that never refer to a class.
var keywordTypes = map[string]bool{
	"string": true, "int": true, "integer": true, "float": true, "double": true,
	"bool": true, "boolean": true, "array": true, "object": true, "callable": true,
	"iterable": true, "void": true, "null": true, "mixed": true, "never": true,
	"resource": true, "false": true, "true": true, "number": true, "numeric": true,
	"scalar": true, "self": true, "static": true, "parent": true, "$this": true,
	"class-string": true, "interface-string": true, "trait-string": true, "enum-string": true,
	"array-key": true, "list": true, "non-empty-array": true, "non-empty-list": true,
	"non-empty-string": true, "non-falsy-string": true, "truthy-string": true,
	"numeric-string": true, "literal-string": true, "lowercase-string": true,
	"callable-string": true, "callable-array": true, "callable-object": true,
	"positive-int": true, "negative-int": true, "non-positive-int": true,
	"non-negative-int": true, "non-zero-int": true, "int-mask": true, "int-mask-of": true,
	"key-of": true, "value-of": true, "closed-resource": true, "open-resource": true,
	"pure-callable": true, "empty": true, "noreturn": true, "never-return": true,
	"never-returns": true, "no-return": true, "min": true, "max": true,
}

// IsKeywordType reports whether name is a scalar, pseudo or relative type
// keyword rather than a class reference.
func IsKeywordType(name string) bool {
	return keywordTypes[strings.ToLower(strings.TrimSpace(name))]
}

// SplitType reads one type expression from the start of s and returns it
// together with the remaining text. Brackets are balanced, spaces around
// '|' and '&' and after a callable's ':' stay part of the type. A value that
// starts with a variable carries no type and yields an empty type.
func SplitType(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if s[0] == '$' && !strings.HasPrefix(s, "$this") {
		return "", s
	}
	if strings.HasPrefix(s, "...$") || strings.HasPrefix(s, "&$") {
		return "", s
	}

	depth := 0
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '<', '(', '{', '[':
			depth++
		case '>':
			if i > 0 && (s[i-1] == '=' || s[i-1] == '-') {
				break
			}
			if depth > 0 {
				depth--
			}
		case ')', '}', ']':
			if depth > 0 {
				depth--
			}
		case ' ', '\t':
			if depth > 0 {
				break
			}
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			if j < len(s) && (s[j] == '|' || s[j] == '&') && j+1 < len(s) && s[j+1] != '$' && s[j+1] != '.' {
				i = j
				continue
			}
			if prev := s[i-1]; prev == '|' || prev == '&' || prev == ':' {
				i = j
				continue
			}
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
		}
		i++
	}

	return strings.TrimSpace(s), ""
}

// Recover returns typ unchanged when its brackets are balanced. For an
// unterminated expression it returns the base type in front of the outermost
// bracket that was never closed, e.g. "static<" recovers to "static" and
// "Collection<int, Foo<" to "Collection".
func Recover(typ string) string {
	var open []int
	for i := 0; i < len(typ); i++ {
		switch typ[i] {
		case '<', '(', '{', '[':
			open = append(open, i)
		case '>':
			if i > 0 && (typ[i-1] == '=' || typ[i-1] == '-') {
				continue
			}
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		case ')', '}', ']':
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}

	if len(open) == 0 {
		return typ
	}
	return strings.TrimSpace(typ[:open[0]])
}

// ReadType is SplitType followed by Recover.
func ReadType(s string) (string, string) {
	typ, rest := SplitType(s)
	return Recover(typ), rest
}

// SplitTopLevel splits s at every sep that is not nested inside brackets.
// Parts are trimmed; empty parts are dropped.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '{', '[':
			depth++
		case '>':
			if i > 0 && (s[i-1] == '=' || s[i-1] == '-') {
				continue
			}
			if depth > 0 {
				depth--
			}
		case ')', '}', ']':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				if part := strings.TrimSpace(s[start:i]); part != "" {
					parts = append(parts, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

// SplitUnion splits a type at its top-level '|' separators.
func SplitUnion(typ string) []string {
	return SplitTopLevel(typ, '|')
}

// StripNullable removes a leading '?' and any top-level "null" member,
// returning the remaining type and whether it was nullable.
func StripNullable(typ string) (string, bool) {
	typ = strings.TrimSpace(typ)
	if rest, ok := strings.CutPrefix(typ, "?"); ok {
		return strings.TrimSpace(rest), true
	}

	members := SplitUnion(typ)
	if len(members) < 2 {
		return typ, false
	}

	kept := members[:0:0]
	nullable := false
	for _, member := range members {
		if strings.EqualFold(member, "null") {
			nullable = true
			continue
		}
		kept = append(kept, member)
	}
	return strings.Join(kept, "|"), nullable
}

// BaseName returns the part of a generic type in front of its argument list:
// "Collection<int, Foo>" yields "Collection", "Foo[]" stays "Foo[]".
func BaseName(typ string) string {
	typ = strings.TrimSpace(typ)
	if idx := strings.IndexAny(typ, "<{("); idx > 0 {
		return strings.TrimSpace(typ[:idx])
	}
	return typ
}

// MapClassNames rewrites every class-like identifier of a type expression
// through fn. Keywords, variables and array-shape keys are left untouched.
func MapClassNames(typ string, fn func(name string) string) string {
	var b strings.Builder
	b.Grow(len(typ))

	shapeDepth := 0
	i := 0
	for i < len(typ) {
		c := typ[i]
		if c == '{' {
			shapeDepth++
		} else if c == '}' && shapeDepth > 0 {
			shapeDepth--
		}

		if !isIdentStart(c) {
			b.WriteByte(c)
			i++
			continue
		}

		j := i
		for j < len(typ) && isIdentPart(typ[j]) {
			j++
		}
		// a trailing '-' belongs to an arrow, not to the identifier
		for j > i+1 && typ[j-1] == '-' {
			j--
		}
		token := typ[i:j]

		if token[0] == '$' {
			b.WriteString(token)
			i = j
			continue
		}
		if shapeDepth > 0 && isShapeKey(typ, j) {
			b.WriteString(token)
			i = j
			continue
		}
		if IsKeywordType(token) || isNumeric(token) {
			b.WriteString(token)
			i = j
			continue
		}

		b.WriteString(fn(token))
		i = j
	}

	return b.String()
}

// Substitute replaces template names in typ with their bound types.
func Substitute(typ string, bindings map[string]string) string {
	if len(bindings) == 0 || typ == "" {
		return typ
	}
	return MapClassNames(typ, func(name string) string {
		if bound, ok := bindings[name]; ok {
			return bound
		}
		return name
	})
}

// IterableValueType returns the element type of an iterable type expression:
// "Foo[]", "array<int, Foo>", "list<Foo>", "iterable<Foo>" and generic
// collections like "Collection<int, Foo>" all yield "Foo". Union members are
// handled independently and joined with '|'. Unknown shapes yield "".
func IterableValueType(typ string) string {
	typ, _ = StripNullable(typ)

	var values []string
	for _, member := range SplitUnion(typ) {
		if value := memberValueType(member); value != "" {
			values = append(values, value)
		}
	}
	return strings.Join(values, "|")
}

func memberValueType(member string) string {
	member = strings.TrimSpace(member)
	if strings.HasPrefix(member, "(") && strings.HasSuffix(member, ")") {
		return IterableValueType(member[1 : len(member)-1])
	}
	if inner, ok := strings.CutSuffix(member, "[]"); ok {
		return inner
	}

	generic := ParseGeneric(member)
	if len(generic.Args) == 0 {
		return ""
	}
	return generic.Args[len(generic.Args)-1]
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '\\' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if (s[i] < '0' || s[i] > '9') && s[i] != '-' && s[i] != '.' {
			return false
		}
	}
	return true
}

func isShapeKey(typ string, end int) bool {
	for end < len(typ) && typ[end] == ' ' {
		end++
	}
	if end < len(typ) && typ[end] == ':' {
		return true
	}
	return end+1 < len(typ) && typ[end] == '?' && typ[end+1] == ':'
}
