// Package docblock extracts type information from PHP documentation comments:
// template parameters, generic bindings, local and imported type aliases,
// member tags and conditional return types.
//
// All functions operate on the raw comment text and never fail. Malformed
// input degrades to the longest usable prefix instead of being discarded.
package docblock

import (
	"strings"
)

// Tag is a single documentation tag with its (possibly multi-line) value.
type Tag struct {
	// Name as written, without the leading '@' (e.g. "phpstan-return")
	Name string
	// Value is the text after the tag name with continuation lines joined by a space
	Value string
}

// Canonical returns the tag name without tool prefixes, so that
// "phpstan-return" and "psalm-return" both become "return" and
// "template-extends" becomes "extends".
func (t Tag) Canonical() string {
	return canonicalTagName(t.Name)
}

// Prefixed reports whether the tag carries a tool prefix (phpstan-/psalm-).
func (t Tag) Prefixed() bool {
	return strings.HasPrefix(t.Name, "phpstan-") || strings.HasPrefix(t.Name, "psalm-")
}

func canonicalTagName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimPrefix(name, "phpstan-")
	name = strings.TrimPrefix(name, "psalm-")

	if rest, ok := strings.CutPrefix(name, "template-"); ok {
		switch rest {
		case "extends", "implements", "use":
			return rest
		}
	}

	return name
}

// Strip removes the comment delimiters and the leading asterisks of each line.
func Strip(comment string) []string {
	comment = strings.TrimSpace(comment)
	comment = strings.TrimPrefix(comment, "/**")
	comment = strings.TrimPrefix(comment, "/*")
	comment = strings.TrimSuffix(comment, "*/")

	rawLines := strings.Split(comment, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, line := range rawLines {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		line = strings.TrimPrefix(line, "*")
		lines = append(lines, strings.TrimSpace(line))
	}

	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// Tags returns every tag of the comment in document order. A tag whose value
// opens a bracket that is not closed on the same line continues on the
// following lines until the bracket is balanced, a new tag starts or the
// comment ends.
func Tags(comment string) []Tag {
	lines := Strip(comment)
	var tags []Tag

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, "@") {
			continue
		}

		name, value := splitTagLine(line[1:])
		if name == "" {
			continue
		}

		for bracketDepth(value) > 0 && i+1 < len(lines) && !strings.HasPrefix(lines[i+1], "@") {
			i++
			if lines[i] == "" {
				continue
			}
			value = joinContinuation(value, lines[i])
		}

		tags = append(tags, Tag{Name: name, Value: value})
	}

	return tags
}

// TagsNamed returns the tags whose canonical name equals one of names.
func TagsNamed(comment string, names ...string) []Tag {
	var result []Tag
	for _, tag := range Tags(comment) {
		canonical := tag.Canonical()
		for _, name := range names {
			if canonical == name {
				result = append(result, tag)
				break
			}
		}
	}
	return result
}

func splitTagLine(line string) (string, string) {
	end := strings.IndexAny(line, " \t(")
	if end == -1 {
		return line, ""
	}
	return line[:end], strings.TrimSpace(line[end:])
}

func joinContinuation(value, next string) string {
	if value == "" {
		return next
	}
	last := value[len(value)-1]
	if last == '<' || last == '(' || last == '{' || last == '[' {
		return value + next
	}
	return value + " " + next
}

// bracketDepth returns how many brackets are still open at the end of s.
// Arrows ("=>", "->") are not treated as closing brackets.
func bracketDepth(s string) int {
	depth := 0
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
		}
	}
	return depth
}

// IsDeprecated reports whether the comment carries a @deprecated tag.
func IsDeprecated(comment string) bool {
	if !strings.Contains(comment, "@deprecated") {
		return false
	}
	return len(TagsNamed(comment, "deprecated")) > 0
}

// Summary returns the free text before the first tag, joined into one line.
func Summary(comment string) string {
	var parts []string
	for _, line := range Strip(comment) {
		if strings.HasPrefix(line, "@") {
			break
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
