package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kamusis/catmatch/internal/config"
	"github.com/kamusis/catmatch/internal/embeddings"
	"github.com/kamusis/catmatch/internal/index"
	"github.com/kamusis/catmatch/internal/match"
	"github.com/kamusis/catmatch/internal/report"
)

var (
	flagMatchCandidates string
	flagMatchOutput     string
	flagMatchIndex      string
	flagMatchUseIndex   bool
	flagMatchTop        int
	flagMatchAllFiles   bool
)

var matchCmd = &cobra.Command{
	Use:   "match [query-image]",
	Short: "Find the candidate image most similar to a query image",
	Long: `Embed every image in the candidate directory and the query image, compare
them by cosine similarity, print the best match and write it to a CSV file
with the header InputImage,BestHandDrawnMatch,Similarity.

With --index DIR (or --use-index for the default index), candidate
embeddings are read from an index built by 'catmatch index' instead of
being recomputed.`,
	Example: `  catmatch match ./cats/970807.jpeg
  catmatch match ./cats/970807.jpeg --candidates ./handdrawn_cats --output result.csv --top 5
  catmatch match ./cats/970807.jpeg --index ./cats.idx
  catmatch match ./cats/970807.jpeg --use-index`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&flagMatchCandidates, "candidates", "", "Directory of candidate images (default from config: ./handdrawn_cats)")
	matchCmd.Flags().StringVarP(&flagMatchOutput, "output", "o", "", "CSV output path (default from config: match_result.csv)")
	matchCmd.Flags().StringVar(&flagMatchIndex, "index", "", "Read candidate embeddings from this index directory")
	matchCmd.Flags().BoolVar(&flagMatchUseIndex, "use-index", false, "Read candidate embeddings from the default index (config index_dir or ~/.catmatch/index)")
	matchCmd.Flags().IntVar(&flagMatchTop, "top", 0, "Also print the N most similar candidates")
	matchCmd.Flags().BoolVar(&flagMatchAllFiles, "all-files", false, "Treat every file in the candidate directory as an image (no extension filter)")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, output := resolveMatchOptions(cmd, cfg, args)
	if opts.Query == "" {
		return errors.New("no query image given (pass it as an argument or set 'query' in the config file)")
	}
	if flagMatchTop < 0 {
		return errors.New("--top must not be negative")
	}

	log := logger.WithField("run_id", uuid.NewString())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	emb, err := loadEmbedder(ctx, log)
	if err != nil {
		return err
	}

	if flagMatchIndex != "" || flagMatchUseIndex {
		dir, err := resolveIndexDir(cfg, flagMatchIndex)
		if err != nil {
			return err
		}
		set, err := candidatesFromIndex(dir, emb.ModelID(), opts.CandidateDir, log)
		if err != nil {
			return err
		}
		opts.Candidates = set
	}

	outcome, err := match.Run(ctx, emb, opts, match.Observers{
		consoleObserver{},
		match.LogObserver{Log: log},
	})
	if err != nil {
		return err
	}
	if n := len(outcome.Skipped); n > 0 {
		log.WithField("skipped", n).Warn("some candidates were not images and were ignored")
	}

	res := outcome.Result
	if res.Found {
		printOK("", report.Summary(res))
	} else {
		printMiss("", report.Summary(res))
	}
	if len(outcome.Ranking) > 0 {
		printRanking(outcome.Ranking)
	}

	if err := report.WriteCSV(output, res); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"output": output,
		"match":  res.Match,
		"score":  res.Score,
		"found":  res.Found,
	}).Info("saved results")
	return nil
}

// resolveMatchOptions merges flags over the config file.
func resolveMatchOptions(cmd *cobra.Command, cfg *config.Config, args []string) (match.Options, string) {
	opts := match.Options{
		Query:        cfg.Query,
		CandidateDir: cfg.CandidateDir,
		Extensions:   cfg.Extensions,
		Top:          flagMatchTop,
	}
	if len(args) > 0 {
		opts.Query = args[0]
	}
	if cmd.Flags().Changed("candidates") {
		opts.CandidateDir = flagMatchCandidates
	}
	if flagMatchAllFiles {
		opts.Extensions = nil
	}
	output := cfg.Output
	if cmd.Flags().Changed("output") {
		output = flagMatchOutput
	}
	return opts, output
}

// loadEmbedder loads the configured model. Failure here is fatal for the run.
func loadEmbedder(ctx context.Context, log logrus.FieldLogger) (*embeddings.Embedder, error) {
	embCfg, err := embeddings.LoadConfig()
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"backend": embCfg.Backend,
		"model":   embCfg.Model,
		"url":     embCfg.BaseURL,
	}).Info("loading model")

	model, err := embeddings.Load(ctx, embCfg)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(model), nil
}

// resolveIndexDir returns dir, or the default index location when dir is empty.
func resolveIndexDir(cfg *config.Config, dir string) (string, error) {
	if dir != "" {
		return config.ExpandPath(dir)
	}
	if cfg.IndexDir != "" {
		return config.ExpandPath(cfg.IndexDir)
	}
	home, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "index"), nil
}

func candidatesFromIndex(dir, modelID, candidateDir string, log logrus.FieldLogger) (match.CandidateSet, error) {
	idx, err := index.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("%w\nRun 'catmatch index' first.", err)
	}
	if idx.Manifest.ModelID != modelID {
		return nil, fmt.Errorf("embeddings model mismatch: index=%s model=%s (index dir %s)", idx.Manifest.ModelID, modelID, dir)
	}
	if !samePath(idx.Manifest.SourceDir, candidateDir) {
		log.WithFields(logrus.Fields{
			"index_source": idx.Manifest.SourceDir,
			"candidates":   candidateDir,
		}).Warn("index was built from a different candidate directory")
	}
	log.WithFields(logrus.Fields{"index": dir, "candidates": len(idx.Entries)}).Debug("using candidate index")
	return idx.Candidates(), nil
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return aa == bb
}

func printRanking(ranking []match.Scored) {
	fmt.Fprintf(stdout, "\nTop %d:\n", len(ranking))
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for i, r := range ranking {
		fmt.Fprintf(w, "  %d.\t[%.4f]\t%s\n", i+1, r.Score, r.Name)
	}
	_ = w.Flush()
}

// consoleObserver prints the human-facing progress lines.
type consoleObserver struct{}

func (consoleObserver) Stage(s match.Stage) {
	switch s {
	case match.StageCandidates:
		printInfo("", "Computing candidate embeddings...")
	case match.StageQuery:
		printInfo("", "Computing query embedding...")
	}
}

func (consoleObserver) CandidateEmbedded(string)       {}
func (consoleObserver) CandidateSkipped(string, error) {}
