package ir

import (
	"fmt"
	"strings"
)

// String renders the block, its refinements and statements with
// indentation. Dependencies print as "deps=[i j]" with the indices of the
// target statements within their list.
func (b *Block) String() string {
	var sb strings.Builder
	b.print(&sb, 0, nil)
	return sb.String()
}

func (b *Block) print(sb *strings.Builder, indent int, stmtIdx map[*Stmt]int) {
	pad := strings.Repeat("  ", indent)
	fmt.Fprintf(sb, "%sblock %s", pad, b.Name)
	if len(b.Idxs) > 0 {
		parts := make([]string, len(b.Idxs))
		for i, idx := range b.Idxs {
			if idx.Affine.IsZero() {
				parts[i] = fmt.Sprintf("%s:%d", idx.Name, idx.Range)
			} else {
				parts[i] = fmt.Sprintf("%s:%d=%s", idx.Name, idx.Range, idx.Affine)
			}
		}
		fmt.Fprintf(sb, " [%s]", strings.Join(parts, ", "))
	}
	if b.Location.Name != "" {
		fmt.Fprintf(sb, " at %s", b.Location)
	}
	printDeps(sb, b.Deps, stmtIdx)
	sb.WriteString(" {\n")
	refPad := strings.Repeat("  ", indent+1)
	for _, ref := range b.Refs {
		fmt.Fprintf(sb, "%s%s\n", refPad, ref)
	}

	// Number this list's statements so deps can refer to them.
	innerIdx := make(map[*Stmt]int, b.Stmts.Len())
	i := 0
	for s := range b.Stmts.All {
		innerIdx[s] = i
		i++
	}
	i = 0
	for s := range b.Stmts.All {
		fmt.Fprintf(sb, "%s%d: ", refPad, i)
		i++
		printStmt(sb, s.Op, indent+1, innerIdx)
		sb.WriteString("\n")
	}
	fmt.Fprintf(sb, "%s}", pad)
}

func printStmt(sb *strings.Builder, op Statement, indent int, stmtIdx map[*Stmt]int) {
	switch stmt := op.(type) {
	case *Load:
		fmt.Fprintf(sb, "load %s -> %s", stmt.From, stmt.Into)
		printDeps(sb, stmt.Deps, stmtIdx)
	case *Store:
		fmt.Fprintf(sb, "store %s -> %s", stmt.From, stmt.Into)
		printDeps(sb, stmt.Deps, stmtIdx)
	case *Constant:
		fmt.Fprintf(sb, "const %s", stmt.Name)
		printDeps(sb, stmt.Deps, stmtIdx)
	case *Special:
		fmt.Fprintf(sb, "special %s(%s) -> (%s)", stmt.Name,
			strings.Join(stmt.Inputs, ", "), strings.Join(stmt.Outputs, ", "))
		printDeps(sb, stmt.Deps, stmtIdx)
	case *Intrinsic:
		fmt.Fprintf(sb, "intrinsic %s(%s) -> (%s)", stmt.Name,
			strings.Join(stmt.Inputs, ", "), strings.Join(stmt.Outputs, ", "))
		printDeps(sb, stmt.Deps, stmtIdx)
	case *Block:
		// Strip the indentation the nested block prints for its first line.
		var nested strings.Builder
		stmt.print(&nested, indent, stmtIdx)
		sb.WriteString(strings.TrimLeft(nested.String(), " "))
	default:
		fmt.Fprintf(sb, "<unknown statement %T>", op)
	}
}

func printDeps(sb *strings.Builder, deps []*Stmt, stmtIdx map[*Stmt]int) {
	if len(deps) == 0 {
		return
	}
	parts := make([]string, 0, len(deps))
	for _, dep := range deps {
		if idx, ok := stmtIdx[dep]; ok {
			parts = append(parts, fmt.Sprintf("%d", idx))
		} else {
			parts = append(parts, "?")
		}
	}
	fmt.Fprintf(sb, " deps=[%s]", strings.Join(parts, " "))
}
