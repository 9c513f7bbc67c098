package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kamusis/catmatch/internal/index"
	"github.com/kamusis/catmatch/internal/match"
)

var (
	flagIndexOut         string
	flagIndexForce       bool
	flagIndexAllFiles    bool
	flagIndexLockTimeout time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index [candidate-dir]",
	Short: "Precompute candidate embeddings into a reusable index",
	Long: `Embed every image in the candidate directory and store the vectors in an
index directory (default ~/.catmatch/index). 'catmatch match --index' then
compares the query against the stored vectors without re-running the model
on the candidates.

Unchanged files are reused from the previous index when the model is the same.`,
	Example: `  catmatch index ./handdrawn_cats
  catmatch index ./handdrawn_cats --out ./cats.idx --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagIndexOut, "out", "", "Index directory (default from config or ~/.catmatch/index)")
	indexCmd.Flags().BoolVar(&flagIndexForce, "force", false, "Re-embed every candidate even if unchanged")
	indexCmd.Flags().BoolVar(&flagIndexAllFiles, "all-files", false, "Treat every file in the candidate directory as an image (no extension filter)")
	indexCmd.Flags().DurationVar(&flagIndexLockTimeout, "lock-timeout", 10*time.Second, "How long to wait for another index build to finish")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	srcDir := cfg.CandidateDir
	if len(args) > 0 {
		srcDir = args[0]
	}
	exts := cfg.Extensions
	if flagIndexAllFiles {
		exts = nil
	}
	destDir, err := resolveIndexDir(cfg, flagIndexOut)
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(srcDir); err == nil {
		srcDir = abs
	}

	log := logger.WithFields(logrus.Fields{"run_id": uuid.NewString(), "index": destDir})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lockCtx, cancel := context.WithTimeout(ctx, flagIndexLockTimeout)
	unlock, err := index.Lock(lockCtx, destDir)
	cancel()
	if err != nil {
		return err
	}
	defer unlock()

	emb, err := loadEmbedder(ctx, log)
	if err != nil {
		return err
	}

	tmpBase := filepath.Dir(destDir)
	if err := os.MkdirAll(tmpBase, 0o755); err != nil {
		return fmt.Errorf("cannot create index parent dir: %w", err)
	}
	tmpDir, err := os.MkdirTemp(tmpBase, tempIndexPrefix(destDir)+"*")
	if err != nil {
		return fmt.Errorf("cannot create temp index dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	printInfo("", fmt.Sprintf("building candidate index using %s", emb.ModelID()))
	idx, stats, err := index.Build(ctx, emb, index.BuildOptions{
		SourceDir:  srcDir,
		OutDir:     tmpDir,
		Extensions: exts,
		PrevDir:    destDir,
		Force:      flagIndexForce,
	}, match.LogObserver{Log: log})
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}
	if err := index.AtomicSwap(tmpDir, destDir); err != nil {
		return fmt.Errorf("cannot install index: %w", err)
	}

	for _, name := range stats.Skipped {
		printSkip(name, "not a decodable image")
	}
	printOK("", fmt.Sprintf("index written: %s (%d candidates, %d embedded, %d reused)",
		destDir, len(idx.Entries), stats.Embedded, stats.Reused))
	log.WithFields(logrus.Fields{
		"candidates": len(idx.Entries),
		"embedded":   stats.Embedded,
		"reused":     stats.Reused,
		"skipped":    len(stats.Skipped),
	}).Info("index installed")
	return nil
}

// tempIndexPrefix names the build directories created next to dir.
func tempIndexPrefix(dir string) string {
	return "." + filepath.Base(filepath.Clean(dir)) + ".tmp-"
}
