package docblock

import (
	"strings"
)

// Param is a documented function parameter.
type Param struct {
	Name     string
	Type     string
	Variadic bool
}

// Var is a @var tag. Name is empty when the tag documents the next statement.
type Var struct {
	Name string
	Type string
}

// MethodTag is a virtual method declared with @method.
type MethodTag struct {
	Name       string
	ReturnType string
	Static     bool
	Params     []Param
}

// PropertyAccess tells which @property variant declared a virtual property.
type PropertyAccess int

const (
	ReadWrite PropertyAccess = iota
	ReadOnly
	WriteOnly
)

// PropertyTag is a virtual property declared with @property.
type PropertyTag struct {
	Name   string
	Type   string
	Access PropertyAccess
}

// ReturnType returns the documented return type. Tool-prefixed tags win
// over the plain @return tag. Broken generics recover to their base type.
func ReturnType(comment string) string {
	if !strings.Contains(comment, "return") {
		return ""
	}

	plain, prefixed := "", ""
	for _, tag := range TagsNamed(comment, "return") {
		typ, _ := ReadType(tag.Value)
		if typ == "" {
			continue
		}
		if tag.Prefixed() {
			if prefixed == "" {
				prefixed = typ
			}
		} else if plain == "" {
			plain = typ
		}
	}

	if prefixed != "" {
		return prefixed
	}
	return plain
}

// Params returns every @param tag that names a variable. Tool-prefixed tags
// replace a plain tag for the same parameter.
func Params(comment string) []Param {
	if !strings.Contains(comment, "param") {
		return nil
	}

	var params []Param
	index := make(map[string]int)
	fromPrefixed := make(map[string]bool)

	for _, tag := range TagsNamed(comment, "param") {
		typ, rest := ReadType(tag.Value)
		name, variadic := variableName(rest)
		if name == "" {
			continue
		}

		param := Param{Name: name, Type: typ, Variadic: variadic}
		if i, ok := index[name]; ok {
			if tag.Prefixed() || !fromPrefixed[name] {
				if param.Type != "" {
					params[i] = param
				}
			}
		} else {
			index[name] = len(params)
			params = append(params, param)
		}
		if tag.Prefixed() {
			fromPrefixed[name] = true
		}
	}

	return params
}

// ParamTypes maps parameter names (without '$') to their documented types.
func ParamTypes(comment string) map[string]string {
	params := Params(comment)
	if len(params) == 0 {
		return nil
	}

	types := make(map[string]string, len(params))
	for _, param := range params {
		if param.Type != "" {
			types[param.Name] = param.Type
		}
	}
	return types
}

// Vars returns the @var tags of a comment.
func Vars(comment string) []Var {
	if !strings.Contains(comment, "var") {
		return nil
	}

	var vars []Var
	for _, tag := range TagsNamed(comment, "var") {
		typ, rest := ReadType(tag.Value)
		if typ == "" {
			// "@var $name Type" is accepted as well
			name, _ := variableName(rest)
			if name == "" {
				continue
			}
			after := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "$"+name))
			typ, _ = ReadType(after)
			if typ == "" {
				continue
			}
			vars = append(vars, Var{Name: name, Type: typ})
			continue
		}

		name, _ := variableName(rest)
		vars = append(vars, Var{Name: name, Type: typ})
	}
	return vars
}

// VarType returns the type of the @var tag documenting variable (without '$').
// An unnamed @var tag matches any variable.
func VarType(comment string, variable string) string {
	for _, v := range Vars(comment) {
		if v.Name == variable || v.Name == "" {
			return v.Type
		}
	}
	return ""
}

// Methods returns the virtual methods declared with @method.
func Methods(comment string) []MethodTag {
	if !strings.Contains(comment, "@method") {
		return nil
	}

	var methods []MethodTag
	for _, tag := range TagsNamed(comment, "method") {
		if method, ok := parseMethodTag(tag.Value); ok {
			methods = append(methods, method)
		}
	}
	return methods
}

func parseMethodTag(value string) (MethodTag, bool) {
	open := strings.IndexByte(value, '(')
	if open == -1 {
		return MethodTag{}, false
	}

	head := strings.TrimSpace(value[:open])
	nameStart := strings.LastIndexAny(head, " \t") + 1
	name := head[nameStart:]
	if name == "" || !isIdentStart(name[0]) || name[0] == '$' {
		return MethodTag{}, false
	}

	method := MethodTag{Name: name}
	prefix := strings.TrimSpace(head[:nameStart])
	switch {
	case prefix == "static":
		method.ReturnType = "static"
	case strings.HasPrefix(prefix, "static "):
		method.Static = true
		method.ReturnType = Recover(strings.TrimSpace(prefix[len("static "):]))
	default:
		method.ReturnType = Recover(prefix)
	}

	close := matchingClose(value, open)
	if close == -1 {
		return method, true
	}

	for _, raw := range SplitTopLevel(value[open+1:close], ',') {
		raw, _, _ = strings.Cut(raw, "=")
		typ, rest := ReadType(raw)
		paramName, variadic := variableName(rest)
		if paramName == "" {
			continue
		}
		method.Params = append(method.Params, Param{Name: paramName, Type: typ, Variadic: variadic})
	}

	return method, true
}

// Properties returns the virtual properties declared with @property,
// @property-read and @property-write.
func Properties(comment string) []PropertyTag {
	if !strings.Contains(comment, "@property") {
		return nil
	}

	var properties []PropertyTag
	for _, tag := range TagsNamed(comment, "property", "property-read", "property-write") {
		typ, rest := ReadType(tag.Value)
		name, _ := variableName(rest)
		if name == "" {
			continue
		}

		access := ReadWrite
		switch tag.Canonical() {
		case "property-read":
			access = ReadOnly
		case "property-write":
			access = WriteOnly
		}

		properties = append(properties, PropertyTag{Name: name, Type: typ, Access: access})
	}
	return properties
}

// variableName reads a "$name", "...$name" or "&$name" token from the start of s.
func variableName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	variadic := false
	if rest, ok := strings.CutPrefix(s, "..."); ok {
		variadic = true
		s = rest
	}
	s = strings.TrimPrefix(s, "&")
	if rest, ok := strings.CutPrefix(s, "..."); ok {
		variadic = true
		s = rest
	}
	if !strings.HasPrefix(s, "$") {
		return "", false
	}

	end := 1
	for end < len(s) && (isIdentPart(s[end]) && s[end] != '-' && s[end] != '\\' && s[end] != '$') {
		end++
	}
	if end == 1 {
		return "", false
	}
	return s[1:end], variadic
}
