package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/catmatch/internal/match"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func TestWriteCSV_HeaderAndOneRow(t *testing.T) {
	p := filepath.Join(t.TempDir(), "match_result.csv")
	res := match.Result{Query: "./cats/970807.jpeg", Match: "tabby.png", Score: 0.8125, Found: true}

	require.NoError(t, WriteCSV(p, res))

	lines := readLines(t, p)
	require.Len(t, lines, 2)
	assert.Equal(t, "InputImage,BestHandDrawnMatch,Similarity", lines[0])
	assert.Equal(t, "./cats/970807.jpeg,tabby.png,0.8125", lines[1])
}

func TestWriteCSV_OverwritesExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(p, []byte("old\nrows\nhere\nand more\n"), 0o644))

	require.NoError(t, WriteCSV(p, match.Result{Query: "q.png", Match: "a.png", Score: 1, Found: true}))

	lines := readLines(t, p)
	require.Len(t, lines, 2)
	assert.Equal(t, "q.png,a.png,1", lines[1])

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestWriteCSV_NoMatchLeavesFieldsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, WriteCSV(p, match.Result{Query: "q.png"}))

	lines := readLines(t, p)
	require.Len(t, lines, 2)
	assert.Equal(t, "q.png,,", lines[1])
}

func TestWriteCSV_QuotesCommas(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(p, match.Result{Query: "a,b.png", Match: "c.png", Score: 0.5, Found: true}))
	assert.Equal(t, `"a,b.png",c.png,0.5`, readLines(t, p)[1])
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Best match for q.png: b.png (similarity: 0.9000)",
		Summary(match.Result{Query: "q.png", Match: "b.png", Score: 0.9, Found: true}))
	assert.Equal(t, "No match for q.png: candidate set is empty", Summary(match.Result{Query: "q.png"}))
}
