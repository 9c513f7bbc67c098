package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kamusis/catmatch/internal/config"
	"github.com/kamusis/catmatch/internal/logging"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
)

// logger is replaced in PersistentPreRunE once flags are parsed.
var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:          "catmatch",
	Short:        "catmatch — find the closest hand-drawn match for a photo",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `catmatch embeds a query image and a directory of candidate images with a
pretrained CLIP image encoder, then reports the most similar candidate and
writes it to a CSV file.

Paths are read from ~/.catmatch/catmatch.yaml; model settings from the
environment or ~/.catmatch/.env (see 'catmatch init').`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		l, err := logging.New(logging.Options{Level: flagLogLevel, Format: flagLogFormat})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.catmatch/catmatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format: text or json")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig returns the config selected by --config, falling back to
// defaults when the file does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	return cfg, nil
}
