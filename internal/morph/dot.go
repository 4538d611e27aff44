package morph

import (
	"fmt"
	"strings"
)

// branchColors maps structural roles to DOT fill colors.
var branchColors = map[string]string{
	"root": "goldenrod",
	"fork": "steelblue",
	"leaf": "mediumseagreen",
}

// RenderDOT produces a Graphviz DOT representation of the branch tree for
// diagnostics. Each vertex is a branch labeled with its index and node
// count; edges follow parent -> child links.
func (t *Tree) RenderDOT(name string) string {
	if name == "" {
		name = "morphology"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\"];\n\n")

	for i, br := range t.branches {
		role := "fork"
		switch {
		case i == 0:
			role = "root"
		case len(br.children) == 0:
			role = "leaf"
		}
		fmt.Fprintf(&b, "  b%d [label=\"%d\\n%dn\", fillcolor=%q];\n", i, i, len(br.nodes), branchColors[role])
	}
	b.WriteString("\n")

	for i, br := range t.branches {
		for _, c := range br.children {
			fmt.Fprintf(&b, "  b%d -> b%d;\n", i, c)
		}
	}

	b.WriteString("}\n")
	return b.String()
}
