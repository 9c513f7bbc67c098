// Package report renders match results for people and for files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kamusis/catmatch/internal/match"
)

// Header is the CSV header row.
var Header = []string{"InputImage", "BestHandDrawnMatch", "Similarity"}

// Summary returns the one-line human-readable result.
func Summary(res match.Result) string {
	if !res.Found {
		return fmt.Sprintf("No match for %s: candidate set is empty", res.Query)
	}
	return fmt.Sprintf("Best match for %s: %s (similarity: %.4f)", res.Query, res.Match, res.Score)
}

// Row returns the CSV data row for res. Match and score are empty when
// there was no match.
func Row(res match.Result) []string {
	if !res.Found {
		return []string{res.Query, "", ""}
	}
	return []string{res.Query, res.Match, strconv.FormatFloat(res.Score, 'f', -1, 64)}
}

// WriteCSV writes the header and exactly one data row to path, replacing
// any existing file.
func WriteCSV(path string, res match.Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create output dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("cannot create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll([][]string{Header, Row(res)}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	return nil
}
