package embeddings

import (
	"context"
	"fmt"
	"image"

	"github.com/kamusis/catmatch/internal/vector"
)

// Embedder maps image files to unit-length embeddings with a loaded model.
type Embedder struct {
	model *Model
}

// NewEmbedder returns an Embedder backed by m.
func NewEmbedder(m *Model) *Embedder {
	return &Embedder{model: m}
}

// ModelID identifies the model producing the embeddings.
func (e *Embedder) ModelID() string {
	return e.model.Encoder.ModelID()
}

// EmbedFile decodes the image at path and embeds it.
func (e *Embedder) EmbedFile(ctx context.Context, path string) (vector.Embedding, error) {
	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	emb, err := e.EmbedImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return emb, nil
}

// EmbedImage preprocesses img, runs the encoder and L2-normalizes the features.
func (e *Embedder) EmbedImage(ctx context.Context, img image.Image) (vector.Embedding, error) {
	in, err := e.model.Preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	raw, err := e.model.Encoder.Encode(ctx, in)
	if err != nil {
		return nil, err
	}
	emb, err := vector.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize features from %s: %w", e.ModelID(), err)
	}
	return emb, nil
}
