// Package match compares a query embedding against a set of candidate
// embeddings and picks the most similar one.
package match

import (
	"fmt"
	"sort"

	"github.com/kamusis/catmatch/internal/vector"
)

// CandidateSet maps a candidate's file name to its embedding.
type CandidateSet map[string]vector.Embedding

// Names returns the candidate names in comparison order (lexicographic).
func (s CandidateSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of matching one query.
//
// Found is false when there were no candidates; Match and Score are then zero
// and must not be read as a real match.
type Result struct {
	Query string
	Match string
	Score float64
	Found bool
}

// Scored is one candidate with its similarity to the query.
type Scored struct {
	Name  string
	Score float64
}

// Best returns the candidate most similar to q.
//
// Candidates are visited in Names order and only a strictly greater score
// replaces the current best, so ties go to the lexicographically first name.
func Best(query string, q vector.Embedding, set CandidateSet) (Result, error) {
	res := Result{Query: query}
	for _, name := range set.Names() {
		score, err := vector.Similarity(q, set[name])
		if err != nil {
			return Result{}, fmt.Errorf("candidate %s: %w", name, err)
		}
		if !res.Found || score > res.Score {
			res.Match = name
			res.Score = score
			res.Found = true
		}
	}
	return res, nil
}

// Rank scores every candidate against q, most similar first.
// Equal scores are ordered by name.
func Rank(q vector.Embedding, set CandidateSet) ([]Scored, error) {
	out := make([]Scored, 0, len(set))
	for _, name := range set.Names() {
		score, err := vector.Similarity(q, set[name])
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", name, err)
		}
		out = append(out, Scored{Name: name, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
