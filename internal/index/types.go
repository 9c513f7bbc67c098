// Package index persists candidate embeddings so repeated matches against
// the same gallery do not re-run the model.
package index

import (
	"github.com/kamusis/catmatch/internal/match"
	"github.com/kamusis/catmatch/internal/vector"
)

const (
	manifestFile       = "index_manifest.json"
	defaultVectorFile  = "vectors.f32"
	defaultEntriesFile = "entries.jsonl"
)

// Manifest describes a candidate index and how to interpret it.
type Manifest struct {
	IndexVersion int    `json:"index_version"`
	CreatedAt    string `json:"created_at"`
	SourceDir    string `json:"source_dir"`
	ModelID      string `json:"model_id"`
	Dim          int    `json:"dim"`
	Normalize    bool   `json:"normalize"`
	VectorFile   string `json:"vector_file"`
	EntriesFile  string `json:"entries_file"`
}

// Entry represents one candidate image row in entries.jsonl.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
	UpdatedAt   string `json:"updated_at"`
}

// Index is a loaded candidate index. Entry i owns Vectors[i*Dim:(i+1)*Dim].
type Index struct {
	Manifest Manifest
	Entries  []Entry
	Vectors  []float32
}

// Vector returns the embedding of entry i.
func (idx *Index) Vector(i int) vector.Embedding {
	d := idx.Manifest.Dim
	return vector.Embedding(idx.Vectors[i*d : (i+1)*d : (i+1)*d])
}

// Candidates converts the index to a candidate set keyed by entry name.
func (idx *Index) Candidates() match.CandidateSet {
	set := make(match.CandidateSet, len(idx.Entries))
	for i, e := range idx.Entries {
		set[e.Name] = idx.Vector(i)
	}
	return set
}
