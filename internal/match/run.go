package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/kamusis/catmatch/internal/embeddings"
	"github.com/kamusis/catmatch/internal/gallery"
	"github.com/kamusis/catmatch/internal/vector"
)

// Embedder turns an image file into an embedding.
type Embedder interface {
	ModelID() string
	EmbedFile(ctx context.Context, path string) (vector.Embedding, error)
}

// Options configures a single match run.
type Options struct {
	// Query is the path of the reference image.
	Query string
	// CandidateDir is scanned non-recursively unless Candidates is set.
	CandidateDir string
	// Extensions filters CandidateDir entries; empty means no filtering.
	Extensions []string
	// Candidates, when non-nil, is used instead of scanning CandidateDir.
	Candidates CandidateSet
	// Top bounds the returned ranking; 0 disables ranking.
	Top int
}

// Outcome is everything a run produced.
type Outcome struct {
	Result  Result
	Ranking []Scored
	Skipped []string
}

// Run embeds the candidates and the query, then selects the best match.
//
// Candidate files that cannot be read or decoded are skipped and reported to
// obs; a query that cannot be embedded or any backend failure aborts the run.
func Run(ctx context.Context, emb Embedder, opts Options, obs Observer) (*Outcome, error) {
	if opts.Query == "" {
		return nil, errors.New("query image is required")
	}
	if obs == nil {
		obs = NopObserver{}
	}

	out := &Outcome{}
	set := opts.Candidates
	if set == nil {
		if opts.CandidateDir == "" {
			return nil, errors.New("candidate directory is required")
		}
		files, dups, err := gallery.Discover(opts.CandidateDir, opts.Extensions)
		if err != nil {
			return nil, err
		}
		obs.Stage(StageCandidates)
		out.Skipped = SkipDuplicates(dups, obs)
		var skipped []string
		set, skipped, err = EmbedCandidates(ctx, emb, files, obs)
		if err != nil {
			return nil, err
		}
		out.Skipped = append(out.Skipped, skipped...)
	}

	obs.Stage(StageQuery)
	q, err := emb.EmbedFile(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("cannot embed query image: %w", err)
	}

	obs.Stage(StageCompare)
	out.Result, err = Best(opts.Query, q, set)
	if err != nil {
		return nil, err
	}
	if opts.Top > 0 {
		ranking, err := Rank(q, set)
		if err != nil {
			return nil, err
		}
		if len(ranking) > opts.Top {
			ranking = ranking[:opts.Top]
		}
		out.Ranking = ranking
	}
	return out, nil
}

// SkipDuplicates reports files whose names collide after normalization and
// returns their names.
func SkipDuplicates(dups []gallery.File, obs Observer) []string {
	var names []string
	for _, d := range dups {
		obs.CandidateSkipped(d.Name, fmt.Errorf("%s: %w", d.Path, gallery.ErrDuplicateName))
		names = append(names, d.Name)
	}
	return names
}

// EmbedCandidates embeds files one after another and returns the candidate
// set along with the names of files that were skipped.
func EmbedCandidates(ctx context.Context, emb Embedder, files []gallery.File, obs Observer) (CandidateSet, []string, error) {
	set := make(CandidateSet, len(files))
	var skipped []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		e, err := emb.EmbedFile(ctx, f.Path)
		if err != nil {
			if embeddings.IsInputError(err) {
				obs.CandidateSkipped(f.Name, err)
				skipped = append(skipped, f.Name)
				continue
			}
			return nil, nil, fmt.Errorf("cannot embed candidate %s: %w", f.Name, err)
		}
		set[f.Name] = e
		obs.CandidateEmbedded(f.Name)
	}
	return set, skipped, nil
}
