package embeddings

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
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

// stubEncoder returns a fixed feature vector and records how often it ran.
type stubEncoder struct {
	features []float32
	err      error
	calls    int
}

func (s *stubEncoder) ModelID() string { return "stub:test" }
func (s *stubEncoder) Dim() int        { return len(s.features) }

func (s *stubEncoder) Encode(_ context.Context, _ *Input) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float32, len(s.features))
	copy(out, s.features)
	return out, nil
}
