package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kamusis/catmatch/internal/embeddings"
	"github.com/kamusis/catmatch/internal/gallery"
	"github.com/kamusis/catmatch/internal/match"
)

// BuildOptions controls candidate index building.
type BuildOptions struct {
	SourceDir  string
	OutDir     string
	Extensions []string
	// PrevDir holds an existing index whose vectors may be reused.
	// Empty means OutDir.
	PrevDir string
	Force   bool
}

// BuildStats summarizes what a build did.
type BuildStats struct {
	Embedded int
	Reused   int
	Skipped  []string
}

// Build embeds the images in opts.SourceDir and writes an index to opts.OutDir.
//
// Vectors from an existing index are reused when the model and the file
// content hash are unchanged, unless Force is set. Candidates that are not
// decodable images are skipped. It is the caller's responsibility to apply
// an atomic swap strategy.
func Build(ctx context.Context, emb match.Embedder, opts BuildOptions, obs match.Observer) (*Index, BuildStats, error) {
	var stats BuildStats
	if opts.SourceDir == "" {
		return nil, stats, fmt.Errorf("source dir is required")
	}
	if opts.OutDir == "" {
		return nil, stats, fmt.Errorf("out dir is required")
	}
	if obs == nil {
		obs = match.NopObserver{}
	}

	files, dups, err := gallery.Discover(opts.SourceDir, opts.Extensions)
	if err != nil {
		return nil, stats, err
	}
	if len(files) == 0 {
		return nil, stats, fmt.Errorf("no candidate images found under %s", opts.SourceDir)
	}

	prevDir := opts.PrevDir
	if prevDir == "" {
		prevDir = opts.OutDir
	}
	reuse := map[string]int{}
	old, _ := Load(prevDir)
	if old != nil && !opts.Force && old.Manifest.ModelID == emb.ModelID() {
		for i, e := range old.Entries {
			reuse[e.ContentHash] = i
		}
	}

	var (
		entries []Entry
		vectors []float32
		dim     int
	)
	obs.Stage(match.StageCandidates)
	stats.Skipped = match.SkipDuplicates(dups, obs)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		h, err := fileHash(f.Path)
		if err != nil {
			obs.CandidateSkipped(f.Name, err)
			stats.Skipped = append(stats.Skipped, f.Name)
			continue
		}

		var v []float32
		if i, ok := reuse[h]; ok {
			v = old.Vector(i)
			stats.Reused++
		} else {
			e, err := emb.EmbedFile(ctx, f.Path)
			if err != nil {
				if embeddings.IsInputError(err) {
					obs.CandidateSkipped(f.Name, err)
					stats.Skipped = append(stats.Skipped, f.Name)
					continue
				}
				return nil, stats, fmt.Errorf("cannot embed candidate %s: %w", f.Name, err)
			}
			v = e
			stats.Embedded++
		}

		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, stats, fmt.Errorf("embedding dim changed mid-run: got %d want %d", len(v), dim)
		}
		entries = append(entries, Entry{
			Name:        f.Name,
			Path:        f.Path,
			ContentHash: h,
			Size:        f.Size,
			UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
		})
		vectors = append(vectors, v...)
		obs.CandidateEmbedded(f.Name)
	}
	if len(entries) == 0 {
		return nil, stats, fmt.Errorf("no decodable candidate images under %s", opts.SourceDir)
	}

	manifest := Manifest{
		IndexVersion: 1,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		SourceDir:    opts.SourceDir,
		ModelID:      emb.ModelID(),
		Dim:          dim,
		Normalize:    true,
		VectorFile:   defaultVectorFile,
		EntriesFile:  defaultEntriesFile,
	}
	if err := Write(opts.OutDir, manifest, entries, vectors); err != nil {
		return nil, stats, err
	}
	return &Index{Manifest: manifest, Entries: entries, Vectors: vectors}, stats, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
