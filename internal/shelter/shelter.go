// Package shelter fetches adoptable cats from an animal shelter's search API
// and downloads their photos, which become the query images for a match.
package shelter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultSearchURL = "https://tje3xq7eu2.execute-api.us-west-1.amazonaws.com/production/search"
	DefaultPhotoBase = "https://do31x39459kz9.cloudfront.net"
	DefaultTimeout   = 30 * time.Second

	maxPhotoBytes = 32 << 20
)

// DefaultLocations are the shelter campuses searched when none are given.
var DefaultLocations = []string{
	"El Cajon Campus",
	"Escondido Campus",
	"Oceanside Campus - Cats/Small Animals",
	"Oceanside Campus - Dogs",
	"San Diego Campus - 5500",
	"San Diego Campus - 5485",
	"San Diego Campus - Behavior Center",
	"San Diego Campus - 5480",
	"Nursery - San Diego",
	"San Diego Campus - 5495",
	"San Diego Campus - 5525",
}

// ID is an animal identifier. The API has served it both as a string and
// as a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid animal id %s: %w", b, err)
	}
	*id = ID(n.String())
	return nil
}

// Age is an animal's age as reported by the shelter.
type Age struct {
	Years  int `json:"Years"`
	Months int `json:"Months"`
	Weeks  int `json:"Weeks"`
}

func (a Age) String() string {
	return fmt.Sprintf("%dy %dm %dw", a.Years, a.Months, a.Weeks)
}

// Animal is one search result.
type Animal struct {
	ID    ID     `json:"AnimalId"`
	Name  string `json:"Name"`
	Type  string `json:"AnimalType"`
	Breed struct {
		Primary string `json:"Primary"`
	} `json:"Breed"`
	Age       Age    `json:"Age"`
	Sex       string `json:"Sex"`
	Location  string `json:"Location"`
	Status    string `json:"Status"`
	MainPhoto struct {
		Default []string `json:"default"`
	} `json:"MainPhoto"`
}

// IsCat reports whether the animal is a cat or a kitten.
func (a Animal) IsCat() bool {
	t := strings.ToLower(a.Type)
	return strings.Contains(t, "cat") || strings.Contains(t, "kitten")
}

type searchResponse struct {
	Response []Animal `json:"response"`
}

// Client talks to the shelter search API and photo CDN.
type Client struct {
	SearchURL string
	PhotoBase string
	Locations []string
	HTTP      *http.Client
}

// NewClient returns a Client with the default locations.
func NewClient(searchURL, photoBase string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		SearchURL: searchURL,
		PhotoBase: strings.TrimRight(photoBase, "/"),
		Locations: DefaultLocations,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// Search returns every available animal at c.Locations.
func (c *Client) Search(ctx context.Context) ([]Animal, error) {
	q := url.Values{}
	q.Set("AnimalType", "ALL")
	q.Set("StatusCategory", "available")
	for _, loc := range c.Locations {
		q.Add("Location", loc)
	}
	u := c.SearchURL
	if strings.Contains(u, "?") {
		u += "&" + q.Encode()
	} else {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	setBrowserHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shelter search failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("shelter search failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse shelter search response: %w", err)
	}
	return parsed.Response, nil
}

// Cats filters animals down to cats and kittens.
func Cats(animals []Animal) []Animal {
	var out []Animal
	for _, a := range animals {
		if a.IsCat() {
			out = append(out, a)
		}
	}
	return out
}

// PhotoURL returns the absolute URL of the animal's main photo, or "" when
// it has none. Paths under /storage are served from c.PhotoBase.
func (c *Client) PhotoURL(a Animal) string {
	if len(a.MainPhoto.Default) == 0 || a.MainPhoto.Default[0] == "" {
		return ""
	}
	p := a.MainPhoto.Default[0]
	if strings.HasPrefix(p, "/storage") {
		return c.PhotoBase + p
	}
	return p
}

var photoExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

// PhotoFilename names the local copy of a photo after the animal ID,
// keeping the URL's extension and defaulting to .jpeg.
func PhotoFilename(a Animal, photoURL string) string {
	ext := ".jpeg"
	p := photoURL
	if u, err := url.Parse(photoURL); err == nil {
		p = u.Path
	}
	if m := photoExt.FindString(p); m != "" {
		ext = m
	}
	return filepath.Base(string(a.ID)) + ext
}

// Download saves the body at photoURL to path, replacing any existing file.
func (c *Client) Download(ctx context.Context, photoURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return err
	}
	setBrowserHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("cannot create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxPhotoBytes)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cannot download %s: %w", photoURL, err)
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

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Origin", "https://sdhumane.org")
	req.Header.Set("Referer", "https://sdhumane.org/adopt/available-pets/")
}
