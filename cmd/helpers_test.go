package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// fakeModel serves the clip-server protocol. The features of an image are
// the RGB of its center pixel plus a constant component, so identical
// solid-colour images embed identically.
func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /extract_features", func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b := img.Bounds()
		r0, g0, b0, _ := img.At(b.Dx()/2, b.Dy()/2).RGBA()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []float64{float64(r0), float64(g0), float64(b0), 1000},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupEnv isolates catmatch's home and points the model at srv.
func setupEnv(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CATMATCH_HOME", home)
	t.Setenv("CATMATCH_MODEL_BACKEND", "clip-server")
	t.Setenv("CATMATCH_MODEL_NAME", "test-clip")
	t.Setenv("CATMATCH_MODEL_URL", srv.URL)
	t.Setenv("CATMATCH_MODEL_API_KEY", "")
	t.Setenv("CATMATCH_MODEL_TIMEOUT", "5s")
	t.Setenv("CATMATCH_IMAGE_SIZE", "16")
	t.Setenv("LOG_LEVEL", "error")
	return home
}

func writeSolidPNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// makeCandidates writes a small gallery of solid-colour images.
func makeCandidates(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSolidPNG(t, filepath.Join(dir, "a_blue.png"), color.NRGBA{0, 0, 255, 255})
	writeSolidPNG(t, filepath.Join(dir, "b_red.png"), color.NRGBA{255, 0, 0, 255})
	writeSolidPNG(t, filepath.Join(dir, "c_green.png"), color.NRGBA{0, 255, 0, 255})
}

// runCLI executes the root command with args and returns what was printed
// to stdout. Flag values are reset first since cobra keeps them in globals.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	prevOut, prevErr := stdout, stderr
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })

	rootCmd.SetArgs(args)
	rootCmd.SetOut(&errOut)
	rootCmd.SetErr(&errOut)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			var def []string
			if d := strings.Trim(f.DefValue, "[]"); d != "" {
				def = strings.Split(d, ",")
			}
			_ = sv.Replace(def)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
