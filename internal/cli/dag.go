package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/flatten"
	"github.com/mbolt/svgpress/pkg/lower"
)

// dagCommand creates the debug command rendering a document's flattened
// dependency graph: one node per distinct definition, one edge per
// parent-child dependency, annotated with kinds and reference counts.
func (c *CLI) dagCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dag [document.json]",
		Short: "Render the flattened dependency graph (debug)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := readDocument(args[0])
			if err != nil {
				return err
			}
			diags := errors.NewDiagnostics()
			tree, err := lower.Lower(ctx, d, diags)
			if err != nil {
				return err
			}
			m, err := flatten.Flatten(ctx, tree)
			if err != nil {
				return err
			}

			svg, err := renderDAG(ctx, m)
			if err != nil {
				return err
			}

			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".dag.svg"
			}
			if err := os.WriteFile(output, svg, 0644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			printSuccess("Rendered dependency graph (%d definitions)", m.Len())
			printFile(output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input name with .dag.svg)")
	return cmd
}

// moduleDOT converts a flattened module to Graphviz DOT format.
func moduleDOT(m *flatten.Module) string {
	var buf bytes.Buffer
	buf.WriteString("digraph module {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	for _, def := range m.Defs() {
		label := fmt.Sprintf("%s\n%s refs=%d", def.Addr.Short(), def.Content.Kind, def.RefCount)
		attrs := fmt.Sprintf("label=%q", label)
		if def.RefCount > 1 {
			attrs += ", fillcolor=lightblue"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", def.Addr.Short(), attrs)
	}

	buf.WriteString("\n")
	for _, def := range m.Defs() {
		for _, child := range def.Children {
			fmt.Fprintf(&buf, "  %q -> %q;\n", def.Addr.Short(), child.Addr.Short())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// renderDAG renders the module graph to SVG using Graphviz.
func renderDAG(ctx context.Context, m *flatten.Module) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(moduleDOT(m)))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
