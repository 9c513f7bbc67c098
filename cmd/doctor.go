package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/catmatch/internal/config"
	"github.com/kamusis/catmatch/internal/embeddings"
	"github.com/kamusis/catmatch/internal/gallery"
	"github.com/kamusis/catmatch/internal/index"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that catmatch's config, candidate directory and model backend are
correctly set up. Run this command when a match fails before it starts.`,
	RunE: runDoctor,
}

var doctorFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Automatically fix detected issues",
	Long: `Fix detected issues in the catmatch environment.

Currently fixes:
  - Leftover temp and backup directories from interrupted index builds

Run 'catmatch doctor' first to see what will be fixed.`,
	RunE: runDoctorFix,
}

func init() {
	doctorCmd.AddCommand(doctorFixCmd)
	rootCmd.AddCommand(doctorCmd)
}

func runDoctorFix(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := resolveIndexDir(cfg, "")
	if err != nil {
		return err
	}

	printSection("catmatch doctor fix")
	fmt.Fprintln(stdout, "\n[ Index leftovers ]")
	leftovers := findIndexLeftovers(dir)
	if len(leftovers) == 0 {
		printOK("", "no leftover index directories found, nothing to fix")
		return nil
	}

	var failed int
	for _, p := range leftovers {
		if err := os.RemoveAll(p); err != nil {
			printErr("", fmt.Sprintf("cannot delete %s: %v", p, err))
			failed++
		} else {
			printOK("", fmt.Sprintf("deleted %s", p))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d director(ies) could not be deleted", failed)
	}
	return nil
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("catmatch doctor")
	fmt.Fprintln(stdout)

	// ── Check 1: config file ─────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ catmatch.yaml ]")
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath, _ = config.ConfigPath()
	}
	cfg, loadErr := loadConfig()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		printWarn("", fmt.Sprintf("%s not found, using defaults (run 'catmatch init' to create it)", cfgPath))
	} else if loadErr != nil {
		failD("cannot parse %s: %v", cfgPath, loadErr)
	} else {
		printOK("", fmt.Sprintf("valid YAML: %s", cfgPath))
	}
	fmt.Fprintln(stdout)

	// ── Check 2: dotenv ──────────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ .env ]")
	if p, err := config.DotEnvPath(); err != nil {
		failD("cannot determine dotenv path: %v", err)
	} else if _, err := config.LoadDotEnv(); err != nil {
		failD("cannot read %s: %v", p, err)
	} else if _, err := os.Stat(p); os.IsNotExist(err) {
		printSkip("", fmt.Sprintf("%s not found, model settings come from the environment only", p))
	} else {
		printOK("", p)
	}
	fmt.Fprintln(stdout)

	// ── Check 3: candidate directory ─────────────────────────────────────────
	fmt.Fprintln(stdout, "[ Candidates ]")
	if loadErr == nil {
		files, dups, err := gallery.Discover(cfg.CandidateDir, cfg.Extensions)
		switch {
		case err != nil:
			failD("%v", err)
		case len(files) == 0:
			printWarn("", fmt.Sprintf("%s contains no candidate images", cfg.CandidateDir))
		default:
			printOK("", fmt.Sprintf("%d candidate image(s) in %s", len(files), cfg.CandidateDir))
		}
		for _, d := range dups {
			printWarn(d.Name, "ignored: "+gallery.ErrDuplicateName.Error())
		}
	} else {
		printWarn("", "skipped (catmatch.yaml not loaded)")
	}
	fmt.Fprintln(stdout)

	// ── Check 4: model backend ───────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ Model ]")
	var modelID string
	embCfg, err := embeddings.LoadConfig()
	if err != nil {
		failD("invalid model config: %v", err)
	} else {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		m, err := embeddings.Load(ctx, embCfg)
		cancel()
		if err != nil {
			failD("%s backend at %s: %v", embCfg.Backend, embCfg.BaseURL, err)
		} else {
			modelID = m.Encoder.ModelID()
			msg := fmt.Sprintf("%s ready at %s", modelID, embCfg.BaseURL)
			if d := m.Encoder.Dim(); d > 0 {
				msg += fmt.Sprintf(" (dim %d)", d)
			}
			printOK("", msg)
		}
	}
	fmt.Fprintln(stdout)

	// ── Check 5: index ───────────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ Index ]")
	if loadErr == nil {
		dir, err := resolveIndexDir(cfg, "")
		if err != nil {
			failD("%v", err)
		} else if idx, err := index.Load(dir); err != nil {
			printSkip("", fmt.Sprintf("no usable index at %s", dir))
		} else if modelID != "" && idx.Manifest.ModelID != modelID {
			printWarn("", fmt.Sprintf("index built with %s, model is %s (run 'catmatch index')", idx.Manifest.ModelID, modelID))
		} else {
			printOK("", fmt.Sprintf("%d candidate(s) indexed at %s", len(idx.Entries), dir))
		}
		if n := len(findIndexLeftovers(dir)); n > 0 {
			printWarn("", fmt.Sprintf("%d leftover director(ies) from interrupted builds (run 'catmatch doctor fix')", n))
		}
	} else {
		printWarn("", "skipped (catmatch.yaml not loaded)")
	}
	fmt.Fprintln(stdout)

	// ── Summary ──────────────────────────────────────────────────────────────
	fmt.Fprintln(stdout, "===================")
	if allOK {
		fmt.Fprintln(stdout, "✓  All checks passed. catmatch is ready to use.")
	} else {
		fmt.Fprintln(stderr, "✗  One or more checks failed. See details above.")
		return fmt.Errorf("doctor found issues")
	}
	return nil
}

// findIndexLeftovers returns temp build dirs and stale backups next to the
// index installed at dir.
func findIndexLeftovers(dir string) []string {
	parent := filepath.Dir(filepath.Clean(dir))
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil
	}
	backup := filepath.Base(filepath.Clean(dir)) + ".bak"
	prefix := tempIndexPrefix(dir)
	var found []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) || name == backup {
			found = append(found, filepath.Join(parent, name))
		}
	}
	return found
}
