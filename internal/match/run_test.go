package match

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/catmatch/internal/embeddings"
	"github.com/kamusis/catmatch/internal/vector"
)

// hashEmbedder derives an embedding from the file's bytes, so byte-identical
// files embed identically. Files starting with "bad" are undecodable and
// files starting with "boom" fail like a backend outage.
type hashEmbedder struct {
	calls []string
}

func (h *hashEmbedder) ModelID() string { return "hash:test" }

func (h *hashEmbedder) EmbedFile(_ context.Context, path string) (vector.Embedding, error) {
	h.calls = append(h.calls, filepath.Base(path))
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(string(b), "bad"):
		return nil, fmt.Errorf("%s: %w", path, embeddings.ErrUndecodable)
	case strings.HasPrefix(string(b), "boom"):
		return nil, errors.New("inference request failed: HTTP 500")
	}
	sum := sha256.Sum256(b)
	raw := make([]float32, len(sum))
	for i, x := range sum {
		raw[i] = float32(x) - 127.5
	}
	return vector.Normalize(raw)
}

type recordingObserver struct {
	stages   []Stage
	embedded []string
	skipped  []string
}

func (r *recordingObserver) Stage(s Stage)                 { r.stages = append(r.stages, s) }
func (r *recordingObserver) CandidateEmbedded(name string) { r.embedded = append(r.embedded, name) }
func (r *recordingObserver) CandidateSkipped(name string, _ error) {
	r.skipped = append(r.skipped, name)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRun_IdenticalCopyWins(t *testing.T) {
	tmp := t.TempDir()
	query := filepath.Join(tmp, "970807.jpeg")
	writeFile(t, query, "pixels of a real cat")

	dir := filepath.Join(tmp, "handdrawn")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeFile(t, filepath.Join(dir, "copy.jpeg"), "pixels of a real cat")
	writeFile(t, filepath.Join(dir, "other.png"), "a sketch of a dog")

	obs := &recordingObserver{}
	out, err := Run(context.Background(), &hashEmbedder{}, Options{
		Query:        query,
		CandidateDir: dir,
		Extensions:   []string{".jpeg", ".png"},
		Top:          5,
	}, obs)
	require.NoError(t, err)

	assert.True(t, out.Result.Found)
	assert.Equal(t, "copy.jpeg", out.Result.Match)
	assert.InDelta(t, 1.0, out.Result.Score, 1e-5)
	assert.Equal(t, []Stage{StageCandidates, StageQuery, StageCompare}, obs.stages)
	assert.Equal(t, []string{"copy.jpeg", "other.png"}, obs.embedded)
	require.Len(t, out.Ranking, 2)
	assert.Equal(t, "copy.jpeg", out.Ranking[0].Name)
}

func TestRun_EmptyDirectoryIsNoMatch(t *testing.T) {
	tmp := t.TempDir()
	query := filepath.Join(tmp, "q.png")
	writeFile(t, query, "query")

	out, err := Run(context.Background(), &hashEmbedder{}, Options{Query: query, CandidateDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.False(t, out.Result.Found)
	assert.Empty(t, out.Result.Match)
}

func TestRun_SkipsUndecodableCandidates(t *testing.T) {
	tmp := t.TempDir()
	query := filepath.Join(tmp, "q.png")
	writeFile(t, query, "query")
	dir := filepath.Join(tmp, "c")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeFile(t, filepath.Join(dir, "broken.png"), "bad bytes")
	writeFile(t, filepath.Join(dir, "good.png"), "something")

	logger, hook := logtest.NewNullLogger()
	rec := &recordingObserver{}
	out, err := Run(context.Background(), &hashEmbedder{}, Options{Query: query, CandidateDir: dir},
		Observers{rec, LogObserver{Log: logger}})
	require.NoError(t, err)

	assert.Equal(t, "good.png", out.Result.Match)
	assert.Equal(t, []string{"broken.png"}, out.Skipped)
	assert.Equal(t, []string{"broken.png"}, rec.skipped)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "broken.png", hook.LastEntry().Data["candidate"])
}

func TestRun_BackendFailureAborts(t *testing.T) {
	tmp := t.TempDir()
	query := filepath.Join(tmp, "q.png")
	writeFile(t, query, "query")
	dir := filepath.Join(tmp, "c")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeFile(t, filepath.Join(dir, "a.png"), "boom")

	_, err := Run(context.Background(), &hashEmbedder{}, Options{Query: query, CandidateDir: dir}, nil)
	assert.ErrorContains(t, err, "cannot embed candidate a.png")
}

func TestRun_QueryFailuresAreFatal(t *testing.T) {
	tmp := t.TempDir()
	bad := filepath.Join(tmp, "q.png")
	writeFile(t, bad, "bad query")

	_, err := Run(context.Background(), &hashEmbedder{}, Options{Query: bad, CandidateDir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, embeddings.ErrUndecodable)

	_, err = Run(context.Background(), &hashEmbedder{}, Options{Query: filepath.Join(tmp, "missing.png"), CandidateDir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_MissingCandidateDir(t *testing.T) {
	_, err := Run(context.Background(), &hashEmbedder{}, Options{Query: "q.png", CandidateDir: filepath.Join(t.TempDir(), "nope")}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_PreloadedCandidatesSkipScan(t *testing.T) {
	tmp := t.TempDir()
	query := filepath.Join(tmp, "q.png")
	writeFile(t, query, "query")

	emb := &hashEmbedder{}
	q, err := emb.EmbedFile(context.Background(), query)
	require.NoError(t, err)
	emb.calls = nil

	out, err := Run(context.Background(), emb, Options{
		Query:      query,
		Candidates: CandidateSet{"cached.png": q},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cached.png", out.Result.Match)
	assert.Equal(t, []string{"q.png"}, emb.calls)
}

func TestRun_ReportsNFCCollisionsAsSkipped(t *testing.T) {
	tmp := t.TempDir()
	query := filepath.Join(tmp, "q.png")
	writeFile(t, query, "query")
	dir := filepath.Join(tmp, "c")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	decomposed := "cafe\u0301.png"
	composed := "caf\u00e9.png"
	writeFile(t, filepath.Join(dir, decomposed), "first")
	writeFile(t, filepath.Join(dir, composed), "second")

	rec := &recordingObserver{}
	emb := &hashEmbedder{}
	out, err := Run(context.Background(), emb, Options{Query: query, CandidateDir: dir}, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{composed}, out.Skipped)
	assert.Equal(t, []string{composed}, rec.skipped)
	assert.Equal(t, []string{composed}, rec.embedded)
	assert.Equal(t, []string{decomposed, "q.png"}, emb.calls)
	assert.Equal(t, composed, out.Result.Match)
}
