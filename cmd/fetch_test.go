package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeShelter(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": []map[string]any{
			{
				"AnimalId": "970807", "Name": "Biscuit", "AnimalType": "Cat",
				"Breed": map[string]any{"Primary": "Domestic Longhair"},
				"Age":   map[string]any{"Years": 4, "Months": 0, "Weeks": 0},
				"Sex":   "Male", "Location": "Escondido Campus", "Status": "Available",
				"MainPhoto": map[string]any{"default": []string{"/storage/970807.jpeg"}},
			},
			{"AnimalId": "1", "Name": "Rex", "AnimalType": "Dog"},
		}})
	})
	mux.HandleFunc("GET /storage/970807.jpeg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_DownloadsPhotosAndWritesCSV(t *testing.T) {
	model := fakeModel(t)
	setupEnv(t, model)
	shelterSrv := fakeShelter(t)
	t.Setenv("CATMATCH_SHELTER_URL", shelterSrv.URL+"/search")
	t.Setenv("CATMATCH_SHELTER_PHOTO_BASE", shelterSrv.URL)
	tmp := t.TempDir()
	outDir := filepath.Join(tmp, "cats")
	csvPath := filepath.Join(tmp, "cats.csv")

	stdoutText, err := runCLI(t, "fetch", "--out-dir", outDir, "--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, stdoutText, "Found 1 cats/kittens, 1 photo(s)")

	data, err := os.ReadFile(filepath.Join(outDir, "970807.jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	assert.Equal(t, [][]string{
		{"AnimalId", "Name", "Type", "Breed", "Age", "Gender", "Location", "Status", "Photo"},
		{"970807", "Biscuit", "Cat", "Domestic Longhair", "4y 0m 0w", "Male", "Escondido Campus", "Available", filepath.Join(outDir, "970807.jpeg")},
	}, readCSV(t, csvPath))
}

func TestFetch_SearchFailure(t *testing.T) {
	model := fakeModel(t)
	setupEnv(t, model)
	down := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(down.Close)
	tmp := t.TempDir()
	csvPath := filepath.Join(tmp, "cats.csv")

	_, err := runCLI(t, "fetch", "--url", down.URL, "--out-dir", filepath.Join(tmp, "cats"), "--csv", csvPath)
	require.Error(t, err)
	assert.NoFileExists(t, csvPath)
}
