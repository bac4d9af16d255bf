package resolver

import (
	"strings"

	"github.com/shopware/phpls/internal/docblock"
	"github.com/shopware/phpls/internal/php"
)

// TypeHintToDeclarations resolves every class named by a type expression.
// Unions and intersections are split, nullability and generic arguments are
// stripped, and self, static and $this map to currentClass while parent maps
// to its parent. Keyword types are skipped. Names are resolved through
// loader; without a loader only the short names of all are searched.
func TypeHintToDeclarations(typ string, currentClass *php.Declaration, all []*php.Declaration, loader php.ClassLoader) []*php.Declaration {
	var result []*php.Declaration
	seen := make(map[*php.Declaration]bool)

	add := func(decl *php.Declaration) {
		if decl != nil && !seen[decl] {
			seen[decl] = true
			result = append(result, decl)
		}
	}

	for _, member := range TypeMembers(typ) {
		switch strings.ToLower(member) {
		case "self", "static", "$this":
			add(currentClass)
			continue
		case "parent":
			if currentClass != nil && currentClass.Parent != "" && loader != nil {
				add(loader.LoadClass(php.FullyQualified(currentClass.Parent)))
			}
			continue
		}

		if docblock.IsKeywordType(member) {
			continue
		}

		if loader != nil {
			add(loader.LoadClass(member))
			continue
		}
		if !strings.Contains(member, "\\") {
			add(php.FindDeclaration(all, member))
		}
	}

	return result
}

// TypeMembers splits a type expression into the bare names of its union and
// intersection members: "?Foo", "Foo|null", "(A&B)|C" and
// "Collection<int, Foo>" yield "Foo", "Foo", "A", "B", "C" and "Collection".
// Array forms like "Foo[]" are not class references and are dropped.
func TypeMembers(typ string) []string {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return nil
	}

	var members []string
	for _, part := range docblock.SplitUnion(typ) {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "(") && strings.HasSuffix(part, ")") {
			members = append(members, TypeMembers(part[1:len(part)-1])...)
			continue
		}

		for _, item := range docblock.SplitTopLevel(part, '&') {
			item = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), "?"))
			if strings.HasPrefix(item, "(") && strings.HasSuffix(item, ")") {
				members = append(members, TypeMembers(item[1:len(item)-1])...)
				continue
			}
			if strings.HasSuffix(item, "[]") {
				continue
			}

			name := docblock.BaseName(item)
			if name == "" || strings.EqualFold(name, "null") {
				continue
			}
			members = append(members, name)
		}
	}

	return members
}
