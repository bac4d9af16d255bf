package docblock

import (
	"strings"
)

// Condition is the test a conditional return type applies to a parameter.
type Condition int

const (
	// IsType tests "$param is Type"
	IsType Condition = iota
	// IsNotType tests "$param is not Type"
	IsNotType
	// IsClassString tests "$param is class-string<T>"; the template T is bound
	// to the class named by the argument.
	IsClassString
)

// ConditionalReturn describes a return type. It is either a concrete type
// (Concrete set, Param empty) or a condition on one parameter with a branch
// for each outcome.
type ConditionalReturn struct {
	Concrete string

	Param     string
	Condition Condition
	// Subject is the type tested against, or the template for IsClassString
	Subject string
	Then    *ConditionalReturn
	Else    *ConditionalReturn
}

// IsConditional reports whether the descriptor depends on an argument.
func (c *ConditionalReturn) IsConditional() bool {
	return c != nil && c.Param != ""
}

// String renders the descriptor in annotation syntax.
func (c *ConditionalReturn) String() string {
	if c == nil {
		return ""
	}
	if !c.IsConditional() {
		return c.Concrete
	}

	condition := c.Subject
	switch c.Condition {
	case IsNotType:
		condition = "not " + c.Subject
	case IsClassString:
		condition = "class-string<" + c.Subject + ">"
	}
	return "($" + c.Param + " is " + condition + " ? " + c.Then.String() + " : " + c.Else.String() + ")"
}

// Argument describes what is known about the value passed for a parameter
// at a call site.
type Argument struct {
	// Class is the fully-qualified class named by a "Foo::class" literal
	Class string
	// Type is the inferred type of any other argument expression
	Type string
}

// Resolve picks the concrete return type for a call. args reports what is
// known about the argument passed for a parameter. An unknown argument takes
// the else branch.
func (c *ConditionalReturn) Resolve(args func(param string) (Argument, bool)) string {
	return c.resolve(args, nil, 0)
}

func (c *ConditionalReturn) resolve(args func(param string) (Argument, bool), bindings map[string]string, depth int) string {
	if c == nil || depth > 8 {
		return ""
	}
	if !c.IsConditional() {
		return Substitute(c.Concrete, bindings)
	}

	var arg Argument
	var known bool
	if args != nil {
		arg, known = args(c.Param)
	}

	switch c.Condition {
	case IsClassString:
		if known && arg.Class != "" {
			next := make(map[string]string, len(bindings)+1)
			for k, v := range bindings {
				next[k] = v
			}
			next[c.Subject] = arg.Class
			return c.Then.resolve(args, next, depth+1)
		}
		return c.Else.resolve(args, bindings, depth+1)
	case IsNotType:
		if known && !typeMatches(arg, c.Subject) {
			return c.Then.resolve(args, bindings, depth+1)
		}
		return c.Else.resolve(args, bindings, depth+1)
	default:
		if (known && typeMatches(arg, c.Subject)) || (!known && strings.EqualFold(c.Subject, "null")) {
			return c.Then.resolve(args, bindings, depth+1)
		}
		return c.Else.resolve(args, bindings, depth+1)
	}
}

func typeMatches(arg Argument, subject string) bool {
	actual := arg.Type
	if actual == "" && arg.Class != "" {
		actual = "class-string"
	}
	actual = strings.TrimPrefix(actual, "\\")
	for _, member := range SplitUnion(subject) {
		if strings.EqualFold(strings.TrimPrefix(member, "\\"), actual) {
			return true
		}
	}
	return false
}

// ParseConditionalReturn parses "($param is Type ? Then : Else)". Plain types
// are returned as concrete descriptors; text that starts like a conditional
// but cannot be parsed yields nil.
func ParseConditionalReturn(s string) *ConditionalReturn {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "(") || !strings.Contains(s, " is ") {
		return &ConditionalReturn{Concrete: s}
	}

	close := matchingClose(s, 0)
	if close == -1 {
		return nil
	}
	inner := strings.TrimSpace(s[1:close])

	param, rest, ok := strings.Cut(inner, " is ")
	param = strings.TrimSpace(param)
	if !ok || !strings.HasPrefix(param, "$") {
		return nil
	}

	question := indexTopLevel(rest, " ? ")
	if question == -1 {
		return nil
	}
	condition := strings.TrimSpace(rest[:question])
	branches := rest[question+3:]

	colon := indexTopLevel(branches, " : ")
	if colon == -1 {
		return nil
	}

	then := ParseConditionalReturn(branches[:colon])
	otherwise := ParseConditionalReturn(branches[colon+3:])
	if then == nil || otherwise == nil {
		return nil
	}

	result := &ConditionalReturn{
		Param:     strings.TrimPrefix(param, "$"),
		Condition: IsType,
		Subject:   condition,
		Then:      then,
		Else:      otherwise,
	}

	if after, ok := strings.CutPrefix(condition, "not "); ok {
		result.Condition = IsNotType
		result.Subject = strings.TrimSpace(after)
	} else if inner, ok := classStringArgument(condition); ok {
		result.Condition = IsClassString
		result.Subject = inner
	}

	return result
}

func indexTopLevel(s, needle string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
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
		}
		if depth == 0 && strings.HasPrefix(s[i:], needle) {
			return i
		}
	}
	return -1
}

// SynthesizeConditionalReturn derives the return descriptor of a function
// from its comment. An explicit conditional @return always wins. Otherwise,
// when the return type is a template T and a parameter is documented as
// class-string<T>, a class-string conditional on that parameter is built so
// that "Foo::class" arguments produce Foo. Returns nil when neither applies.
func SynthesizeConditionalReturn(comment string, nativeReturn string) *ConditionalReturn {
	documented := ReturnType(comment)
	if explicit := ParseConditionalReturn(documented); explicit.IsConditional() {
		return explicit
	}

	templates := TemplateNames(comment)
	if len(templates) == 0 {
		return nil
	}

	returned := documented
	if returned == "" {
		returned = nativeReturn
	}
	returned, _ = StripNullable(returned)

	for _, binding := range TemplateBindings(comment, templates) {
		if !binding.ClassString || binding.Template != returned {
			continue
		}
		return &ConditionalReturn{
			Param:     binding.Param,
			Condition: IsClassString,
			Subject:   binding.Template,
			Then:      &ConditionalReturn{Concrete: binding.Template},
			Else:      &ConditionalReturn{Concrete: "mixed"},
		}
	}

	return nil
}
