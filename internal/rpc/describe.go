package rpc

import (
	"github.com/shopware/phpls/internal/inheritance"
	"github.com/shopware/phpls/internal/php"
	"github.com/shopware/phpls/internal/resolver"
)

// Span is a byte range in a file.
type Span struct {
	Start uint `json:"start"`
	End   uint `json:"end"`
}

type ClassInfo struct {
	FQN        string   `json:"fqn"`
	Kind       string   `json:"kind"`
	File       string   `json:"file"`
	Span       Span     `json:"span"`
	Parent     string   `json:"parent,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
	Traits     []string `json:"traits,omitempty"`
	Templates  []string `json:"templates,omitempty"`
	Abstract   bool     `json:"abstract,omitempty"`
	Final      bool     `json:"final,omitempty"`
	Deprecated bool     `json:"deprecated,omitempty"`
}

type ParameterInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Variadic bool   `json:"variadic,omitempty"`
	ByRef    bool   `json:"byRef,omitempty"`
}

type FunctionInfo struct {
	FQN        string          `json:"fqn"`
	File       string          `json:"file"`
	Span       Span            `json:"span"`
	ReturnType string          `json:"returnType,omitempty"`
	Parameters []ParameterInfo `json:"parameters"`
	Deprecated bool            `json:"deprecated,omitempty"`
}

// MemberInfo is a method, property or constant of a merged declaration.
type MemberInfo struct {
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	Type           string          `json:"type,omitempty"`
	Visibility     string          `json:"visibility"`
	Static         bool            `json:"static,omitempty"`
	DeclaringClass string          `json:"declaringClass"`
	Inherited      bool            `json:"inherited,omitempty"`
	Virtual        bool            `json:"virtual,omitempty"`
	Deprecated     bool            `json:"deprecated,omitempty"`
	Parameters     []ParameterInfo `json:"parameters,omitempty"`
}

type MembersResult struct {
	Class     ClassInfo    `json:"class"`
	Ancestors []string     `json:"ancestors"`
	Members   []MemberInfo `json:"members"`
}

func span(s php.Span) Span {
	return Span{Start: s.Start, End: s.End}
}

// DescribeClass renders a declaration for clients. Nil stays nil.
func DescribeClass(decl *php.Declaration) *ClassInfo {
	if decl == nil {
		return nil
	}
	return &ClassInfo{
		FQN:        decl.FQN(),
		Kind:       decl.Kind.String(),
		File:       decl.File,
		Span:       span(decl.Span),
		Parent:     decl.Parent,
		Interfaces: decl.Interfaces,
		Traits:     decl.Traits,
		Templates:  decl.TemplateNames(),
		Abstract:   decl.Abstract,
		Final:      decl.Final,
		Deprecated: decl.Deprecated,
	}
}

// DescribeClasses renders every declaration; the result is never nil.
func DescribeClasses(decls []*php.Declaration) []ClassInfo {
	infos := make([]ClassInfo, 0, len(decls))
	for _, decl := range decls {
		if info := DescribeClass(decl); info != nil {
			infos = append(infos, *info)
		}
	}
	return infos
}

func describeParameters(params []php.Parameter) []ParameterInfo {
	infos := make([]ParameterInfo, 0, len(params))
	for _, param := range params {
		infos = append(infos, ParameterInfo{
			Name:     "$" + param.Name,
			Type:     param.Type(),
			Optional: !param.Required,
			Variadic: param.Variadic,
			ByRef:    param.Reference,
		})
	}
	return infos
}

func DescribeFunction(fn *php.Function) *FunctionInfo {
	if fn == nil {
		return nil
	}
	return &FunctionInfo{
		FQN:        fn.FQN(),
		File:       fn.File,
		Span:       span(fn.Span),
		ReturnType: fn.Type(),
		Parameters: describeParameters(fn.Parameters),
		Deprecated: fn.Deprecated,
	}
}

// DescribeMembers lists the members of merged visible under filter:
// constants first, then properties, then methods.
func DescribeMembers(merged *inheritance.MergedDeclaration, filter inheritance.Filter) *MembersResult {
	if merged == nil {
		return nil
	}

	result := &MembersResult{
		Class:     *DescribeClass(merged.Declaration),
		Ancestors: make([]string, 0, len(merged.Ancestors)),
		Members:   []MemberInfo{},
	}
	for _, ancestor := range merged.Ancestors {
		result.Ancestors = append(result.Ancestors, ancestor.FQN())
	}

	for _, constant := range merged.VisibleConstants(filter) {
		kind := "constant"
		if constant.EnumCase {
			kind = "case"
		}
		result.Members = append(result.Members, MemberInfo{
			Name:           constant.Name,
			Kind:           kind,
			Type:           constant.TypeHint,
			Visibility:     constant.Visibility.String(),
			Static:         true,
			DeclaringClass: constant.DeclaringClass.FQN(),
			Inherited:      constant.Inherited,
		})
	}

	for _, property := range merged.VisibleProperties(filter) {
		result.Members = append(result.Members, MemberInfo{
			Name:           "$" + property.Name,
			Kind:           "property",
			Type:           property.Type(),
			Visibility:     property.Visibility.String(),
			Static:         property.Static,
			DeclaringClass: property.DeclaringClass.FQN(),
			Inherited:      property.Inherited,
			Virtual:        property.Virtual,
			Deprecated:     property.Deprecated,
		})
	}

	for _, method := range merged.VisibleMethods(filter) {
		result.Members = append(result.Members, MemberInfo{
			Name:           method.Name,
			Kind:           "method",
			Type:           method.Type(),
			Visibility:     method.Visibility.String(),
			Static:         method.Static,
			DeclaringClass: method.DeclaringClass.FQN(),
			Inherited:      method.Inherited,
			Virtual:        method.Virtual,
			Deprecated:     method.Deprecated,
			Parameters:     describeParameters(method.Parameters),
		})
	}

	return result
}

// ClassMembers merges decl with its ancestors and describes what filter
// lets through.
func ClassMembers(r *resolver.Resolver, decl *php.Declaration, filter inheritance.Filter) *MembersResult {
	if decl == nil {
		return nil
	}
	merged := inheritance.Merge(decl, r.DeclarationLoader(decl), inheritance.WithMaxDepth(r.MaxDepth()))
	return DescribeMembers(merged, filter)
}
