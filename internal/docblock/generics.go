package docblock

import (
	"strings"
)

// Variance of a template parameter.
type Variance int

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

// Template is a type parameter declared with @template.
type Template struct {
	Name       string
	Constraint string
	Default    string
	Variance   Variance
}

// Binding links a template parameter to the function parameter documented
// with it. ClassString is set for "class-string<T>" documentation.
type Binding struct {
	Template    string
	Param       string
	ClassString bool
}

// Generic is a type applied to arguments, e.g. Collection<int, Language>.
type Generic struct {
	Base string
	Args []string
}

// String renders the generic back into type syntax.
func (g Generic) String() string {
	if len(g.Args) == 0 {
		return g.Base
	}
	return g.Base + "<" + strings.Join(g.Args, ", ") + ">"
}

// GenericKind selects which generic tag family to read.
type GenericKind string

const (
	Extends    GenericKind = "extends"
	Implements GenericKind = "implements"
	Use        GenericKind = "use"
)

// ImportedAlias is a type alias borrowed from another class. The resolver
// looks Name up in the alias table of From.
type ImportedAlias struct {
	Name string
	From string
	As   string
}

// Local returns the name the alias is visible under in the importing class.
func (a ImportedAlias) Local() string {
	if a.As != "" {
		return a.As
	}
	return a.Name
}

// Templates returns the template parameters in declaration order.
func Templates(comment string) []Template {
	if !strings.Contains(comment, "template") {
		return nil
	}

	var templates []Template
	seen := make(map[string]bool)
	for _, tag := range Tags(comment) {
		variance, ok := templateVariance(tag.Canonical())
		if !ok {
			continue
		}

		tmpl, ok := parseTemplate(tag.Value)
		if !ok || seen[tmpl.Name] {
			continue
		}
		tmpl.Variance = variance
		seen[tmpl.Name] = true
		templates = append(templates, tmpl)
	}

	return templates
}

// TemplateNames returns only the names of Templates(comment).
func TemplateNames(comment string) []string {
	templates := Templates(comment)
	names := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		names = append(names, tmpl.Name)
	}
	return names
}

func templateVariance(canonical string) (Variance, bool) {
	switch canonical {
	case "template":
		return Invariant, true
	case "template-covariant":
		return Covariant, true
	case "template-contravariant":
		return Contravariant, true
	}
	return Invariant, false
}

func parseTemplate(value string) (Template, bool) {
	fields := strings.Fields(value)
	if len(fields) == 0 || !isIdentStart(fields[0][0]) || fields[0][0] == '$' {
		return Template{}, false
	}

	tmpl := Template{Name: fields[0]}
	rest := strings.TrimSpace(strings.TrimPrefix(value, fields[0]))

	if after, ok := cutKeyword(rest, "of"); ok {
		tmpl.Constraint, rest = ReadType(after)
	} else if after, ok := cutKeyword(rest, "as"); ok {
		tmpl.Constraint, rest = ReadType(after)
	}

	if after, ok := strings.CutPrefix(strings.TrimSpace(rest), "="); ok {
		tmpl.Default, _ = ReadType(after)
	}

	return tmpl, true
}

func cutKeyword(s, keyword string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, keyword+" ") {
		return s, false
	}
	return strings.TrimSpace(s[len(keyword):]), true
}

// TemplateBindings pairs every @param whose type is one of the templates
// (also as ?T, T|null or class-string<T>) with the parameter's name.
func TemplateBindings(comment string, templates []string) []Binding {
	if len(templates) == 0 {
		return nil
	}

	known := make(map[string]bool, len(templates))
	for _, name := range templates {
		known[name] = true
	}

	var bindings []Binding
	for _, param := range Params(comment) {
		typ, _ := StripNullable(param.Type)
		if known[typ] {
			bindings = append(bindings, Binding{Template: typ, Param: param.Name})
			continue
		}

		if inner, ok := classStringArgument(typ); ok && known[inner] {
			bindings = append(bindings, Binding{Template: inner, Param: param.Name, ClassString: true})
		}
	}

	return bindings
}

func classStringArgument(typ string) (string, bool) {
	generic := ParseGeneric(typ)
	if !strings.EqualFold(generic.Base, "class-string") || len(generic.Args) != 1 {
		return "", false
	}
	return generic.Args[0], true
}

// ParseGeneric parses "Base<Arg1, Arg2>" respecting nested generics. An
// unterminated argument list recovers to the bare base name.
func ParseGeneric(s string) Generic {
	typ, _ := SplitType(s)
	typ = strings.TrimSpace(typ)

	open := strings.IndexByte(typ, '<')
	if open == -1 {
		return Generic{Base: Recover(typ)}
	}

	base := strings.TrimSpace(typ[:open])
	if Recover(typ) != typ {
		return Generic{Base: Recover(typ)}
	}

	close := matchingClose(typ, open)
	if close == -1 {
		return Generic{Base: base}
	}

	return Generic{
		Base: base,
		Args: SplitTopLevel(typ[open+1:close], ','),
	}
}

func matchingClose(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '{', '[':
			depth++
		case '>':
			if i > 0 && (s[i-1] == '=' || s[i-1] == '-') {
				continue
			}
			depth--
		case ')', '}', ']':
			depth--
		default:
			continue
		}
		if depth == 0 {
			return i
		}
	}
	return -1
}

// GenericTags returns the generic references of one tag family
// (@extends, @implements or @use, including tool-prefixed variants).
func GenericTags(comment string, kind GenericKind) []Generic {
	if !strings.Contains(comment, string(kind)) {
		return nil
	}

	var generics []Generic
	for _, tag := range TagsNamed(comment, string(kind)) {
		generic := ParseGeneric(tag.Value)
		if generic.Base == "" {
			continue
		}
		generics = append(generics, generic)
	}
	return generics
}

// TypeAliases returns the local aliases (@phpstan-type, @psalm-type) and the
// imported aliases (@phpstan-import-type, @psalm-import-type) of a comment.
func TypeAliases(comment string) (map[string]string, []ImportedAlias) {
	if !strings.Contains(comment, "type") {
		return nil, nil
	}

	var local map[string]string
	var imported []ImportedAlias

	for _, tag := range Tags(comment) {
		switch tag.Canonical() {
		case "type":
			if !tag.Prefixed() {
				continue
			}
			name, definition, ok := parseLocalAlias(tag.Value)
			if !ok {
				continue
			}
			if local == nil {
				local = make(map[string]string)
			}
			local[name] = definition
		case "import-type":
			if alias, ok := parseImportedAlias(tag.Value); ok {
				imported = append(imported, alias)
			}
		}
	}

	return local, imported
}

func parseLocalAlias(value string) (string, string, bool) {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) && isIdentPart(value[end]) && value[end] != '-' {
		end++
	}
	if end == 0 {
		return "", "", false
	}

	name := value[:end]
	rest := strings.TrimSpace(value[end:])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "="))

	definition, _ := ReadType(rest)
	if definition == "" {
		definition = Recover(rest)
	}
	if definition == "" {
		return "", "", false
	}

	return name, definition, true
}

func parseImportedAlias(value string) (ImportedAlias, bool) {
	fields := strings.Fields(value)
	if len(fields) < 3 || !strings.EqualFold(fields[1], "from") {
		return ImportedAlias{}, false
	}

	alias := ImportedAlias{Name: fields[0], From: fields[2]}
	if len(fields) >= 5 && strings.EqualFold(fields[3], "as") {
		alias.As = fields[4]
	}
	return alias, true
}
