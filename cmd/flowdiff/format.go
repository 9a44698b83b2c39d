package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jward/flowdiff"
	"github.com/jward/flowdiff/internal/calltree"
)

// writeJSON renders any result as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatAnalysisText prints entry points and indented call trees.
func formatAnalysisText(w io.Writer, analysis *flowdiff.ProjectAnalysis) {
	fmt.Fprintf(w, "Project: %s\n", analysis.Root)
	fmt.Fprintf(w, "Entry points: %d\n\n", len(analysis.EntryPoints))

	for _, tree := range analysis.Trees {
		formatTree(w, tree, "")
		fmt.Fprintln(w)
	}

	if len(analysis.Diagnostics) > 0 {
		fmt.Fprintf(w, "Diagnostics (%d):\n", len(analysis.Diagnostics))
		for _, d := range analysis.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d.String())
		}
	}
}

// formatTree prints one call tree with two-space indentation per depth.
func formatTree(w io.Writer, node *calltree.Node, indent string) {
	marker := ""
	if node.HasChanges {
		marker = " *"
	}
	fmt.Fprintf(w, "%s%s%s\n", indent, node.QualifiedName, marker)
	for _, child := range node.Children {
		formatTree(w, child, indent+"  ")
	}
}

// formatDiffText prints the diff summary, per-kind symbol lists, file
// changes, and both annotated forests. Changed nodes carry a * marker.
func formatDiffText(w io.Writer, result *flowdiff.DiffResult) {
	fmt.Fprintf(w, "Diff: %s -> %s\n", result.BeforeDescription, result.AfterDescription)
	fmt.Fprintf(w, "Symbols: %d added, %d deleted, %d modified, %d unchanged\n\n",
		result.Summary.Added, result.Summary.Deleted,
		result.Summary.Modified, result.Summary.Unchanged)

	if len(result.FileChanges) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tPATH")
		for _, fc := range result.FileChanges {
			path := fc.Path
			if fc.OldPath != "" {
				path = fc.OldPath + " -> " + fc.Path
			}
			fmt.Fprintf(tw, "%s\t%s\n", strings.ToUpper(string(fc.Kind)), path)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	for _, kind := range []flowdiff.ChangeKind{flowdiff.SymbolAdded, flowdiff.SymbolDeleted, flowdiff.SymbolModified} {
		formatChangeList(w, result, kind)
	}

	if len(result.BeforeTrees) > 0 {
		fmt.Fprintln(w, "Before:")
		for _, tree := range result.BeforeTrees {
			formatTree(w, tree, "  ")
		}
		fmt.Fprintln(w)
	}
	if len(result.AfterTrees) > 0 {
		fmt.Fprintln(w, "After:")
		for _, tree := range result.AfterTrees {
			formatTree(w, tree, "  ")
		}
	}
}

func formatChangeList(w io.Writer, result *flowdiff.DiffResult, kind flowdiff.ChangeKind) {
	var names []string
	for qname, change := range result.SymbolChanges {
		if change.Kind == kind {
			names = append(names, qname)
		}
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)
	title := strings.ToUpper(string(kind)[:1]) + string(kind)[1:]
	fmt.Fprintf(w, "%s:\n", title)
	for _, qname := range names {
		fmt.Fprintf(w, "  %s", qname)
		if expl := result.SymbolChanges[qname].Explanation; expl != "" {
			fmt.Fprintf(w, " (%s)", expl)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
