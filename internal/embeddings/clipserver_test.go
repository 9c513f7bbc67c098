package embeddings

import (
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/catmatch/internal/vector"
)

func fakeCLIPServer(t *testing.T) *httptest.Server {
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
			"model":    r.FormValue("model"),
			"features": []float64{float64(r0), float64(g0), float64(b0), float64(b.Dx())},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCLIPServer_EmbedsCroppedImage(t *testing.T) {
	srv := fakeCLIPServer(t)
	m, err := Load(context.Background(), &Config{
		Backend:   "clip-server",
		Model:     "ViT-H-14",
		BaseURL:   srv.URL + "/",
		Timeout:   5 * time.Second,
		ImageSize: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, "clip-server:ViT-H-14", m.Encoder.ModelID())

	p := filepath.Join(t.TempDir(), "drawing.png")
	writePNG(t, p, solidImage(40, 20, color.NRGBA{R: 255, A: 255}))

	emb, err := NewEmbedder(m).EmbedFile(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, emb, 4)
	assert.InDelta(t, 1.0, vector.Norm(emb), 1e-5)
	assert.Equal(t, 4, m.Encoder.Dim())
	assert.Zero(t, emb[1])
}

func TestCLIPServer_HealthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "warming up", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := Load(context.Background(), &Config{Backend: "clip-server", Model: "m", BaseURL: srv.URL, Timeout: time.Second, ImageSize: 8})
	assert.ErrorIs(t, err, ErrModelNotReady)
}
