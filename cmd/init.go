package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/catmatch/internal/config"
)

var flagInitCandidates string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catmatch config and .env template",
	Long: `Initialize catmatch's home directory (~/.catmatch, or $CATMATCH_HOME).

Writes catmatch.yaml with the default paths and a .env template for the
model backend settings. Existing files are never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&flagInitCandidates, "candidates", "", "Candidate directory to store in the new config")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	// ── 1. Resolve ~/.catmatch ────────────────────────────────────────────────
	home, err := config.HomeDir()
	if err != nil {
		return err
	}
	cfgPath := flagConfig
	if cfgPath == "" {
		if cfgPath, err = config.ConfigPath(); err != nil {
			return err
		}
	}

	// ── 2. Create it if it doesn't exist ─────────────────────────────────────
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", home, err)
	}
	printOK("", fmt.Sprintf("catmatch directory ready: %s", home))

	// ── 3. Write catmatch.yaml if missing ────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if flagInitCandidates != "" {
			cfg.CandidateDir = flagInitCandidates
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	// ── 4. .env template ─────────────────────────────────────────────────────
	envPath, err := config.DotEnvPath()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(envPath)
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	if os.IsNotExist(statErr) {
		printOK("", fmt.Sprintf(".env template written: %s", envPath))
	} else {
		printSkip("", fmt.Sprintf(".env already exists: %s", envPath))
	}

	fmt.Fprintln(stdout, "\n✓  catmatch init complete. Run 'catmatch doctor' to verify your environment.")
	return nil
}
