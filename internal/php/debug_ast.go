package php

import (
	"fmt"
	"io"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// DumpAST writes the named node structure of content to w, one node per line
// with its byte range. Leaf nodes carry their text.
func DumpAST(w io.Writer, name string, content []byte) error {
	var writeErr error

	ok := SafeParse(name, content, func(tree *tree_sitter.Tree) {
		writeErr = printNodeStructure(w, tree.RootNode(), content, 0)
	})
	if !ok {
		return fmt.Errorf("failed to parse %s", name)
	}

	return writeErr
}

// printNodeStructure recursively prints the node structure
func printNodeStructure(w io.Writer, node *tree_sitter.Node, content []byte, depth int) error {
	if node == nil {
		return nil
	}

	indent := strings.Repeat("  ", depth)

	nodeText := ""
	if node.NamedChildCount() == 0 {
		nodeText = node.Utf8Text(content)
	}

	if _, err := fmt.Fprintf(w, "%s%s [%d-%d] %s\n", indent, node.Kind(), node.StartByte(), node.EndByte(), nodeText); err != nil {
		return fmt.Errorf("failed to write node: %w", err)
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		if err := printNodeStructure(w, node.NamedChild(i), content, depth+1); err != nil {
			return err
		}
	}

	return nil
}
