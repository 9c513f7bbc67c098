package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/kamusis/catmatch/internal/vector"
)

// unitTolerance bounds how far a stored vector's norm may drift from 1.
const unitTolerance = 1e-3

// Load reads an index from dir containing manifest + entries + vectors.
func Load(dir string) (*Index, error) {
	manifestPath := filepath.Join(dir, manifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON %s: %w", manifestPath, err)
	}
	if m.Dim <= 0 {
		return nil, fmt.Errorf("invalid dim in manifest: %d", m.Dim)
	}
	if m.VectorFile == "" {
		m.VectorFile = defaultVectorFile
	}
	if m.EntriesFile == "" {
		m.EntriesFile = defaultEntriesFile
	}

	entries, err := loadEntries(filepath.Join(dir, m.EntriesFile))
	if err != nil {
		return nil, err
	}
	vectors, err := loadVectors(filepath.Join(dir, m.VectorFile), len(entries), m.Dim)
	if err != nil {
		return nil, err
	}
	if err := checkVectors(entries, vectors, m.Dim); err != nil {
		return nil, fmt.Errorf("corrupt index %s: %w", dir, err)
	}

	return &Index{Manifest: m, Entries: entries, Vectors: vectors}, nil
}

func loadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open entries file %s: %w", path, err)
	}
	defer f.Close()

	var out []Entry
	seen := map[string]struct{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("invalid entries JSONL %s: %w", path, err)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entry %q in %s", e.Name, path)
		}
		seen[e.Name] = struct{}{}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read entries file %s: %w", path, err)
	}
	return out, nil
}

func loadVectors(path string, nEntries, dim int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open vector file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat vector file %s: %w", path, err)
	}
	expected := int64(nEntries) * int64(dim) * 4
	if expected != st.Size() {
		return nil, fmt.Errorf("vector file size mismatch: got %d want %d (entries=%d dim=%d)", st.Size(), expected, nEntries, dim)
	}

	out := make([]float32, nEntries*dim)
	if err := binary.Read(bufio.NewReader(io.LimitReader(f, expected)), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("cannot read vectors from %s: %w", path, err)
	}
	return out, nil
}

// checkVectors rejects stored vectors that are non-finite or not unit length.
func checkVectors(entries []Entry, vectors []float32, dim int) error {
	for i, e := range entries {
		v := vectors[i*dim : (i+1)*dim]
		for _, x := range v {
			if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("entry %q: %w", e.Name, vector.ErrNonFinite)
			}
		}
		if n := vector.Norm(v); math.Abs(n-1) > unitTolerance {
			return fmt.Errorf("entry %q: vector norm %.4f is not unit length", e.Name, n)
		}
	}
	return nil
}
