package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/catmatch/internal/index"
)

var flagInspectLimit int

var inspectCmd = &cobra.Command{
	Use:   "inspect [index-dir]",
	Short: "Show the manifest and entries of a candidate index",
	Long: `Display a formatted summary of an index built by 'catmatch index': the
model that produced it, its dimension, the source directory and one row per
candidate image.

Without an argument the default index (config index_dir or
~/.catmatch/index) is inspected.`,
	Example: `  catmatch inspect
  catmatch inspect ./cats.idx --limit 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&flagInspectLimit, "limit", 0, "Show at most N entries (0 = all)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var dir string
	if len(args) > 0 {
		dir = args[0]
	}
	dir, err = resolveIndexDir(cfg, dir)
	if err != nil {
		return err
	}

	idx, err := index.Load(dir)
	if err != nil {
		return fmt.Errorf("%w\nRun 'catmatch index' first.", err)
	}
	printIndex(dir, idx)
	return nil
}

func printIndex(dir string, idx *index.Index) {
	m := idx.Manifest
	fmt.Fprintf(stdout, "Index:    %s\n", dir)
	fmt.Fprintf(stdout, "Model:    %s\n", m.ModelID)
	fmt.Fprintf(stdout, "Dim:      %d\n", m.Dim)
	fmt.Fprintf(stdout, "Source:   %s\n", m.SourceDir)
	fmt.Fprintf(stdout, "Created:  %s\n", m.CreatedAt)
	fmt.Fprintf(stdout, "Version:  %d\n", m.IndexVersion)
	fmt.Fprintf(stdout, "Entries:  %d\n", len(idx.Entries))

	entries := idx.Entries
	if flagInspectLimit > 0 && len(entries) > flagInspectLimit {
		entries = entries[:flagInspectLimit]
	}
	if len(entries) == 0 {
		return
	}

	fmt.Fprintln(stdout)
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tSIZE\tSHA256\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\t%d\t%s\t%s\n", e.Name, e.Size, shortHash(e.ContentHash), e.UpdatedAt)
	}
	_ = w.Flush()
	if rest := len(idx.Entries) - len(entries); rest > 0 {
		fmt.Fprintf(stdout, "  %s (%d more)\n", strings.Repeat(".", 3), rest)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
