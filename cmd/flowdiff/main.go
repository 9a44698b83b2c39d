package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/flowdiff"
	"github.com/jward/flowdiff/internal/override"
	"github.com/jward/flowdiff/internal/symbol"
)

var (
	flagFormat      string
	flagVerbose     bool
	flagLanguages   string
	flagMaxDepth    int
	flagSerial      bool
	flagEntryFilter string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "flowdiff",
	Short:         "Cross-language call analysis and symbol-level git diffs",
	Long:          "FlowDiff extracts callable symbols from Python and shell sources, resolves calls across language boundaries, and diffs symbols between git references.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagFormat != "json" && flagFormat != "text" {
			return fmt.Errorf("invalid format %q: must be json or text", flagFormat)
		}
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. python,shell)")
	rootCmd.PersistentFlags().IntVar(&flagMaxDepth, "max-depth", 0, "call tree depth cap (0 = default)")
	rootCmd.PersistentFlags().BoolVar(&flagSerial, "serial", false, "disable parallel file analysis")
	rootCmd.PersistentFlags().StringVar(&flagEntryFilter, "entry-filter", "", "path to a Risor entry-point filter script")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(diffCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a project and print its call trees",
	Long:  "Runs the full pipeline on a project root and prints entry points, call trees, and diagnostics.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()
	root := targetDir(args)

	opts, err := engineOptions()
	if err != nil {
		return err
	}
	engine, err := flowdiff.New(root, opts...)
	if err != nil {
		return err
	}

	analysis, err := engine.AnalyzeProject(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Analyzed %s in %s\n", root, time.Since(start).Round(time.Millisecond))
	if flagFormat == "json" {
		return writeJSON(os.Stdout, analysis)
	}
	formatAnalysisText(os.Stdout, analysis)
	return nil
}

var (
	flagExplain string
)

var diffCmd = &cobra.Command{
	Use:   "diff [path]",
	Short: "Diff symbols between two git references",
	Long:  `Runs the full pipeline at two git references and reports added, deleted, and modified symbols with annotated before/after call trees. The ref "working" means the uncommitted working tree.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().String("before", "HEAD", "before reference")
	diffCmd.Flags().String("after", flowdiff.WorkingSentinel, "after reference")
	diffCmd.Flags().StringVar(&flagExplain, "explain", "", "path to a Risor diff-explanation script")
}

func runDiff(cmd *cobra.Command, args []string) error {
	root := targetDir(args)
	before, _ := cmd.Flags().GetString("before")
	after, _ := cmd.Flags().GetString("after")

	opts, err := engineOptions()
	if err != nil {
		return err
	}
	if flagExplain != "" {
		src, err := os.ReadFile(flagExplain)
		if err != nil {
			return fmt.Errorf("load explain script: %w", err)
		}
		opts = append(opts, flowdiff.WithExplainer(override.NewScriptExplainer(string(src))))
	}

	ctx := context.Background()
	differ, err := flowdiff.NewDiffer(ctx, root, opts...)
	if err != nil {
		return err
	}

	result, err := differ.AnalyzeDiff(ctx, before, after)
	if err != nil {
		return err
	}

	if flagFormat == "json" {
		return writeJSON(os.Stdout, result)
	}
	formatDiffText(os.Stdout, result)
	return nil
}

// targetDir returns the positional path argument or the current directory.
func targetDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// engineOptions translates the shared flags into engine options.
func engineOptions() ([]flowdiff.Option, error) {
	var opts []flowdiff.Option
	if flagLanguages != "" {
		var langs []symbol.Language
		for _, l := range strings.Split(flagLanguages, ",") {
			langs = append(langs, symbol.Language(strings.TrimSpace(l)))
		}
		opts = append(opts, flowdiff.WithLanguages(langs...))
	}
	if flagMaxDepth > 0 {
		opts = append(opts, flowdiff.WithMaxDepth(flagMaxDepth))
	}
	if flagSerial {
		opts = append(opts, flowdiff.WithParallel(false))
	}
	if flagEntryFilter != "" {
		filter, err := override.LoadScriptFilter(flagEntryFilter)
		if err != nil {
			return nil, err
		}
		opts = append(opts, flowdiff.WithEntryPointFilter(filter))
	}
	opts = append(opts, flowdiff.WithLogger(slog.Default()))
	return opts, nil
}
