package shelter

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSVHeader is the header row of the cat metadata file.
var CSVHeader = []string{"AnimalId", "Name", "Type", "Breed", "Age", "Gender", "Location", "Status", "Photo"}

// Record is a fetched cat and where its photo was saved.
type Record struct {
	Animal Animal
	// Photo is the local photo path, empty when there is no photo or the
	// download failed.
	Photo string
	// Err is the download error, if any.
	Err error
}

// Row returns the CSV row for r.
func (r Record) Row() []string {
	a := r.Animal
	return []string{string(a.ID), a.Name, a.Type, a.Breed.Primary, a.Age.String(), a.Sex, a.Location, a.Status, r.Photo}
}

// FetchCats searches the shelter, keeps cats and kittens, and downloads
// each one's main photo into dir. A failed download is recorded on the
// Record and does not stop the fetch; a failed search does.
func (c *Client) FetchCats(ctx context.Context, dir string, progress func(Record)) ([]Record, error) {
	animals, err := c.Search(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create photo dir %s: %w", dir, err)
	}

	cats := Cats(animals)
	out := make([]Record, 0, len(cats))
	for _, a := range cats {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec := Record{Animal: a}
		if u := c.PhotoURL(a); u != "" {
			path := filepath.Join(dir, PhotoFilename(a, u))
			if err := c.Download(ctx, u, path); err != nil {
				rec.Err = fmt.Errorf("cannot download %s: %w", u, err)
			} else {
				rec.Photo = path
			}
		}
		out = append(out, rec)
		if progress != nil {
			progress(rec)
		}
	}
	return out, nil
}

// WriteCSV writes the header and one row per record to path, replacing any
// existing file.
func WriteCSV(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create output dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("cannot create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, CSVHeader)
	for _, r := range records {
		rows = append(rows, r.Row())
	}
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
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
	return os.Rename(tmp.Name(), path)
}
