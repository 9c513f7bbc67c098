// Package gallery discovers candidate image files in a directory.
package gallery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNotDirectory is returned when the candidate path exists but is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrDuplicateName marks a file whose NFC name collides with an earlier file.
	ErrDuplicateName = errors.New("name collides with another file after NFC normalization")
)

// DefaultExtensions lists the image extensions accepted when none are configured.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// File is one candidate image found in a gallery directory.
type File struct {
	// Name is the NFC-normalized base name; it is the candidate key.
	Name string
	Path string
	Size int64
}

// Discover lists dir non-recursively and returns candidate files sorted by Name.
//
// Subdirectories and dot-files are skipped. When exts is empty every regular
// file is returned; otherwise only files whose lower-cased extension is in exts.
// Files whose NFC name collides with an earlier file (in byte order of the raw
// names) are returned separately as dups, keyed by their raw name.
func Discover(dir string, exts []string) ([]File, []File, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot stat candidate directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("candidate path %s: %w", dir, ErrNotDirectory)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot list candidate directory %s: %w", dir, err)
	}

	allow := extensionSet(exts)
	out := make([]File, 0, len(entries))
	var dups []File
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
				continue
			}
		}
		fi, err := e.Info()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot stat %s: %w", filepath.Join(dir, e.Name()), err)
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		f := File{
			Name: norm.NFC.String(e.Name()),
			Path: filepath.Join(dir, e.Name()),
			Size: fi.Size(),
		}
		if _, dup := seen[f.Name]; dup {
			f.Name = e.Name()
			dups = append(dups, f)
			continue
		}
		seen[f.Name] = struct{}{}
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, dups, nil
}

// NormalizeExtensions lower-cases exts and ensures each has a leading dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range NormalizeExtensions(exts) {
		set[e] = struct{}{}
	}
	return set
}
