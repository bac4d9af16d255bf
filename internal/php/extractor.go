package php

import (
	"strings"

	"github.com/shopware/phpls/internal/docblock"
	treesitterhelper "github.com/shopware/phpls/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Extract parses content and returns its declarations, functions, import
// table and namespace. A source that cannot be parsed yields an empty File.
func Extract(fileID string, content []byte) *File {
	result := &File{Imports: NewImportTable()}

	ok := SafeParse(fileID, content, func(tree *tree_sitter.Tree) {
		ExtractTree(fileID, tree.RootNode(), content, result)
	})
	if !ok {
		return &File{Imports: NewImportTable()}
	}

	return result
}

// ExtractTree fills result from an already parsed tree.
func ExtractTree(fileID string, root *tree_sitter.Node, content []byte, result *File) {
	if result.Imports == nil {
		result.Imports = NewImportTable()
	}
	e := &extractor{fileID: fileID, content: content, file: result, imports: NewImportTable()}
	e.statements(root, "")
}

type extractor struct {
	fileID  string
	content []byte
	file    *File

	// imports of the current namespace block, used to resolve names
	imports *ImportTable
}

func (e *extractor) text(node *tree_sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Utf8Text(e.content)
}

// statements walks a statement list. Declarations inside braced namespaces
// and conditional blocks are found as well; function bodies are not entered.
func (e *extractor) statements(parent *tree_sitter.Node, namespace string) {
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		child := parent.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "namespace_definition":
			name := strings.TrimPrefix(e.text(child.ChildByFieldName("name")), "\\")
			if e.file.Namespace == "" {
				e.file.Namespace = name
			}
			if body := child.ChildByFieldName("body"); body != nil {
				outer := e.imports
				e.imports = NewImportTable()
				e.statements(body, name)
				e.imports = outer
			} else {
				namespace = name
				e.imports = NewImportTable()
			}
		case "namespace_use_declaration":
			collectImports(child, e.content, e.imports)
			collectImports(child, e.content, e.file.Imports)
		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			if decl := e.declaration(child, namespace); decl != nil {
				e.file.Declarations = append(e.file.Declarations, decl)
			}
		case "function_definition":
			if fn := e.function(child, namespace); fn != nil {
				e.file.Functions = append(e.file.Functions, fn)
			}
		case "compound_statement", "if_statement", "else_clause", "else_if_clause", "colon_block", "declare_statement":
			e.statements(child, namespace)
		}
	}
}

func (e *extractor) resolveName(name, namespace string) string {
	return e.imports.ResolveClassName(name, namespace)
}

func (e *extractor) declaration(node *tree_sitter.Node, namespace string) *Declaration {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	decl := &Declaration{
		Name:      e.text(nameNode),
		Namespace: namespace,
		File:      e.fileID,
		Span:      span(node),
	}

	switch node.Kind() {
	case "interface_declaration":
		decl.Kind = KindInterface
	case "trait_declaration":
		decl.Kind = KindTrait
	case "enum_declaration":
		decl.Kind = KindEnum
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "abstract_modifier":
			decl.Abstract = true
		case "final_modifier":
			decl.Final = true
		case "readonly_modifier":
			decl.Readonly = true
		case "base_clause":
			names := e.names(child, namespace)
			if decl.Kind == KindInterface {
				decl.Interfaces = append(decl.Interfaces, names...)
			} else if len(names) > 0 {
				decl.Parent = names[0]
			}
		case "class_interface_clause":
			decl.Interfaces = append(decl.Interfaces, e.names(child, namespace)...)
		case "primitive_type", "named_type":
			if decl.Kind == KindEnum {
				decl.BackingType = treesitterhelper.CanonicalText(child, e.content)
			}
		}
	}

	if decl.Kind == KindEnum {
		decl.Interfaces = append(decl.Interfaces, "UnitEnum")
		if decl.BackingType != "" {
			decl.Interfaces = append(decl.Interfaces, "BackedEnum")
		}
	}

	doc := treesitterhelper.PHPDocComment(node, e.content)
	e.classDoc(decl, doc)

	body := node.ChildByFieldName("body")
	if body == nil {
		body = treesitterhelper.GetFirstNodeOfKind(node, "declaration_list")
	}
	if body == nil {
		body = treesitterhelper.GetFirstNodeOfKind(node, "enum_declaration_list")
	}
	if body != nil {
		e.members(body, decl)
	}

	e.virtualMembers(decl, doc)

	return decl
}

// names returns the resolved class names listed in an extends/implements clause.
func (e *extractor) names(clause *tree_sitter.Node, namespace string) []string {
	var names []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "name", "qualified_name":
			names = append(names, e.resolveName(e.text(child), namespace))
		}
	}
	return names
}

func (e *extractor) classDoc(decl *Declaration, doc string) {
	decl.DocComment = doc
	if doc == "" {
		return
	}

	decl.Deprecated = docblock.IsDeprecated(doc)
	decl.Templates = docblock.Templates(doc)
	decl.TypeAliases, decl.ImportedAliases = docblock.TypeAliases(doc)

	for i := range decl.ImportedAliases {
		decl.ImportedAliases[i].From = FullyQualified(e.resolveName(decl.ImportedAliases[i].From, decl.Namespace))
	}

	decl.Extends = e.generics(docblock.GenericTags(doc, docblock.Extends), decl)
	decl.Implements = e.generics(docblock.GenericTags(doc, docblock.Implements), decl)
	decl.Uses = e.generics(docblock.GenericTags(doc, docblock.Use), decl)
}

// generics qualifies the base and arguments of generic tags so that they
// can be substituted into members declared in other files.
func (e *extractor) generics(generics []docblock.Generic, decl *Declaration) []docblock.Generic {
	if len(generics) == 0 {
		return nil
	}

	result := make([]docblock.Generic, 0, len(generics))
	for _, generic := range generics {
		qualified := docblock.Generic{
			Base: e.qualifyType(generic.Base, decl),
		}
		for _, arg := range generic.Args {
			qualified.Args = append(qualified.Args, e.qualifyType(arg, decl))
		}
		result = append(result, qualified)
	}
	return result
}

// qualifyType rewrites every class name of a type expression to its
// fully-qualified form. Template parameters and type aliases of decl stay as
// they are, local aliases are expanded.
func (e *extractor) qualifyType(typ string, decl *Declaration) string {
	typ = docblock.Substitute(typ, decl.TypeAliases)

	templates := decl.TemplateNames()
	return docblock.MapClassNames(typ, func(name string) string {
		for _, tmpl := range templates {
			if tmpl == name {
				return name
			}
		}
		for _, alias := range decl.ImportedAliases {
			if alias.Local() == name {
				return name
			}
		}
		if isRelativeType(name) {
			return name
		}
		return FullyQualified(e.resolveName(name, decl.Namespace))
	})
}

func (e *extractor) members(body *tree_sitter.Node, decl *Declaration) {
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "method_declaration":
			method := e.method(child, decl)
			if method != nil {
				decl.Methods = append(decl.Methods, method)
			}
		case "property_declaration":
			decl.Properties = append(decl.Properties, e.properties(child, decl)...)
		case "const_declaration":
			decl.Constants = append(decl.Constants, e.constants(child)...)
		case "use_declaration":
			decl.Traits = append(decl.Traits, e.names(child, decl.Namespace)...)
		case "enum_case":
			name := child.ChildByFieldName("name")
			if name == nil {
				name = treesitterhelper.GetFirstNodeOfKind(child, "name")
			}
			if name == nil {
				continue
			}
			decl.Constants = append(decl.Constants, &Constant{
				Name:     e.text(name),
				Value:    e.text(child.ChildByFieldName("value")),
				EnumCase: true,
				Span:     span(child),
			})
		}
	}
}

func (e *extractor) method(node *tree_sitter.Node, decl *Declaration) *Method {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	method := &Method{
		Name:     e.text(nameNode),
		Abstract: decl.Kind == KindInterface,
		Span:     span(node),
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "visibility_modifier":
			method.Visibility = parseVisibility(e.text(child))
		case "static_modifier":
			method.Static = true
		case "abstract_modifier":
			method.Abstract = true
		case "final_modifier":
			method.Final = true
		}
	}

	if returnType := node.ChildByFieldName("return_type"); returnType != nil {
		method.ReturnType = treesitterhelper.CanonicalText(returnType, e.content)
	}

	doc := treesitterhelper.PHPDocComment(node, e.content)
	method.DocComment = doc

	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode != nil {
		method.Parameters = e.parameters(paramsNode, doc)
	}

	if doc != "" {
		method.Deprecated = docblock.IsDeprecated(doc)
		method.Templates = docblock.TemplateNames(doc)
		method.DocReturnType, method.ConditionalReturn = documentedReturn(doc, method.ReturnType)
		method.DocReturnType = docblock.Substitute(method.DocReturnType, decl.TypeAliases)
	}

	if paramsNode != nil && strings.EqualFold(method.Name, "__construct") {
		decl.Properties = append(decl.Properties, e.promotedProperties(paramsNode, doc)...)
	}

	return method
}

// documentedReturn returns the documented return type and the conditional
// return descriptor of a function-like. An unparsable conditional annotation
// leaves both empty so that callers fall back to the native hint.
func documentedReturn(doc, nativeReturn string) (string, *docblock.ConditionalReturn) {
	documented := docblock.ReturnType(doc)
	conditional := docblock.SynthesizeConditionalReturn(doc, nativeReturn)

	if strings.HasPrefix(documented, "(") {
		if parsed := docblock.ParseConditionalReturn(documented); parsed == nil || parsed.IsConditional() {
			documented = ""
		}
	}

	return documented, conditional
}

func (e *extractor) parameters(node *tree_sitter.Node, doc string) []Parameter {
	docTypes := docblock.ParamTypes(doc)

	var params []Parameter
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}

		param := Parameter{
			Variadic:  child.Kind() == "variadic_parameter",
			Reference: treesitterhelper.HasChildKind(child, "reference_modifier") || treesitterhelper.HasChildKind(child, "by_ref"),
		}

		if typeNode := child.ChildByFieldName("type"); typeNode != nil {
			param.TypeHint = treesitterhelper.CanonicalText(typeNode, e.content)
		}

		param.Name = strings.TrimPrefix(parameterVariable(child, e.content), "$")
		if param.Name == "" {
			continue
		}

		if defaultValue := child.ChildByFieldName("default_value"); defaultValue != nil {
			param.DefaultValue = e.text(defaultValue)
		}
		param.Required = param.DefaultValue == "" && !param.Variadic
		param.DocType = docTypes[param.Name]

		params = append(params, param)
	}

	return params
}

func parameterVariable(node *tree_sitter.Node, content []byte) string {
	if name := treesitterhelper.PHPVariableName(node.ChildByFieldName("name"), content); name != "" {
		return name
	}
	if name := treesitterhelper.PHPVariableName(treesitterhelper.GetFirstNodeOfKind(node, "variable_name"), content); name != "" {
		return name
	}
	return treesitterhelper.PHPVariableName(treesitterhelper.GetFirstNodeOfKind(node, "by_ref"), content)
}

func (e *extractor) promotedProperties(node *tree_sitter.Node, doc string) []*Property {
	docTypes := docblock.ParamTypes(doc)

	var properties []*Property
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() != "property_promotion_parameter" {
			continue
		}

		name := strings.TrimPrefix(parameterVariable(child, e.content), "$")
		if name == "" {
			continue
		}

		property := &Property{
			Name:     name,
			Readonly: treesitterhelper.HasChildKind(child, "readonly_modifier"),
			DocType:  docTypes[name],
			Span:     span(child),
		}
		if visibility := treesitterhelper.GetFirstNodeOfKind(child, "visibility_modifier"); visibility != nil {
			property.Visibility = parseVisibility(e.text(visibility))
		}
		if typeNode := child.ChildByFieldName("type"); typeNode != nil {
			property.TypeHint = treesitterhelper.CanonicalText(typeNode, e.content)
		}

		properties = append(properties, property)
	}
	return properties
}

func (e *extractor) properties(node *tree_sitter.Node, decl *Declaration) []*Property {
	template := Property{}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "visibility_modifier":
			template.Visibility = parseVisibility(e.text(child))
		case "static_modifier":
			template.Static = true
		case "readonly_modifier":
			template.Readonly = true
		}
	}

	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		template.TypeHint = treesitterhelper.CanonicalText(typeNode, e.content)
	}

	doc := treesitterhelper.PHPDocComment(node, e.content)
	template.Deprecated = docblock.IsDeprecated(doc)

	var properties []*Property
	for i := uint(0); i < node.NamedChildCount(); i++ {
		element := node.NamedChild(i)
		if element == nil || element.Kind() != "property_element" {
			continue
		}

		name := treesitterhelper.PHPVariableName(element.ChildByFieldName("name"), e.content)
		if name == "" {
			name = treesitterhelper.PHPVariableName(treesitterhelper.GetFirstNodeOfKind(element, "variable_name"), e.content)
		}
		if name == "" {
			continue
		}

		property := template
		property.Name = strings.TrimPrefix(name, "$")
		property.Span = span(element)
		if doc != "" {
			property.DocType = docblock.Substitute(docblock.VarType(doc, property.Name), decl.TypeAliases)
		}
		properties = append(properties, &property)
	}

	return properties
}

func (e *extractor) constants(node *tree_sitter.Node) []*Constant {
	template := Constant{}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "visibility_modifier" {
			template.Visibility = parseVisibility(e.text(child))
		}
	}

	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		template.TypeHint = treesitterhelper.CanonicalText(typeNode, e.content)
	}

	var constants []*Constant
	for i := uint(0); i < node.NamedChildCount(); i++ {
		element := node.NamedChild(i)
		if element == nil || element.Kind() != "const_element" {
			continue
		}

		name := treesitterhelper.GetFirstNodeOfKind(element, "name")
		if name == nil {
			continue
		}

		constant := template
		constant.Name = e.text(name)
		constant.Span = span(element)
		if count := element.NamedChildCount(); count > 1 {
			constant.Value = e.text(element.NamedChild(count - 1))
		}
		constants = append(constants, &constant)
	}

	return constants
}

// virtualMembers adds the @method and @property members of the class
// comment that are not declared in code.
func (e *extractor) virtualMembers(decl *Declaration, doc string) {
	if doc == "" {
		return
	}

	for _, tag := range docblock.Methods(doc) {
		if decl.Method(tag.Name) != nil {
			continue
		}
		method := &Method{
			Name:          tag.Name,
			DocReturnType: docblock.Substitute(tag.ReturnType, decl.TypeAliases),
			Static:        tag.Static,
			Virtual:       true,
			DocComment:    doc,
			Span:          decl.Span,
		}
		for _, param := range tag.Params {
			method.Parameters = append(method.Parameters, Parameter{
				Name:     param.Name,
				DocType:  param.Type,
				Variadic: param.Variadic,
				Required: !param.Variadic,
			})
		}
		decl.Methods = append(decl.Methods, method)
	}

	for _, tag := range docblock.Properties(doc) {
		if decl.Property(tag.Name) != nil {
			continue
		}
		decl.Properties = append(decl.Properties, &Property{
			Name:     tag.Name,
			DocType:  docblock.Substitute(tag.Type, decl.TypeAliases),
			Readonly: tag.Access == docblock.ReadOnly,
			Virtual:  true,
			Span:     decl.Span,
		})
	}
}

func (e *extractor) function(node *tree_sitter.Node, namespace string) *Function {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	fn := &Function{
		Name:      e.text(nameNode),
		Namespace: namespace,
		File:      e.fileID,
		Span:      span(node),
	}

	if returnType := node.ChildByFieldName("return_type"); returnType != nil {
		fn.ReturnType = treesitterhelper.CanonicalText(returnType, e.content)
	}

	doc := treesitterhelper.PHPDocComment(node, e.content)
	fn.DocComment = doc

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Parameters = e.parameters(params, doc)
	}

	if doc != "" {
		fn.Deprecated = docblock.IsDeprecated(doc)
		fn.Templates = docblock.TemplateNames(doc)
		fn.DocReturnType, fn.ConditionalReturn = documentedReturn(doc, fn.ReturnType)
	}

	return fn
}

func parseVisibility(text string) Visibility {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "protected":
		return Protected
	case "private":
		return Private
	default:
		return Public
	}
}

func span(node *tree_sitter.Node) Span {
	return Span{Start: node.StartByte(), End: node.EndByte()}
}
