package embeddings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kamusis/catmatch/internal/config"
)

const (
	defaultBackend   = "kserve"
	defaultModel     = "laion/CLIP-ViT-H-14-laion2B-s32B-b79K"
	defaultBaseURL   = "http://127.0.0.1:8000"
	defaultTimeout   = 60 * time.Second
	defaultImageSize = 224
)

// Encoder runs the forward pass of an image model.
//
// Implementations must be deterministic for the same input and model.
type Encoder interface {
	ModelID() string
	// Dim is the feature dimension, or 0 until known.
	Dim() int
	Encode(ctx context.Context, in *Input) ([]float32, error)
}

// Model pairs an encoder with the preprocessing its inputs need.
type Model struct {
	Encoder    Encoder
	Preprocess Preprocessor
}

// Config contains the resolved model backend configuration.
type Config struct {
	Backend   string
	Model     string
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	ImageSize int
}

// LoadConfig resolves model config from environment variables first, then ~/.catmatch/.env.
func LoadConfig() (*Config, error) {
	get := func(key string) (string, error) {
		v, err := config.GetConfigValue(key)
		return strings.TrimSpace(v), err
	}

	cfg := &Config{
		Backend:   defaultBackend,
		Model:     defaultModel,
		BaseURL:   defaultBaseURL,
		Timeout:   defaultTimeout,
		ImageSize: defaultImageSize,
	}
	for key, dst := range map[string]*string{
		"CATMATCH_MODEL_BACKEND": &cfg.Backend,
		"CATMATCH_MODEL_NAME":    &cfg.Model,
		"CATMATCH_MODEL_URL":     &cfg.BaseURL,
		"CATMATCH_MODEL_API_KEY": &cfg.APIKey,
	} {
		v, err := get(key)
		if err != nil {
			return nil, err
		}
		if v != "" {
			*dst = v
		}
	}

	v, err := get("CATMATCH_MODEL_TIMEOUT")
	if err != nil {
		return nil, err
	}
	if v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid CATMATCH_MODEL_TIMEOUT %q: want a positive duration like 60s", v)
		}
		cfg.Timeout = d
	}

	v, err = get("CATMATCH_IMAGE_SIZE")
	if err != nil {
		return nil, err
	}
	if v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CATMATCH_IMAGE_SIZE %q: want a positive integer", v)
		}
		cfg.ImageSize = n
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// backend is an Encoder that must be loaded before use.
type backend interface {
	Encoder
	load(ctx context.Context) (Preprocessor, error)
}

// Load resolves the configured backend, verifies the model can serve requests
// and returns it with its preprocessing transform. Any error is fatal for a run.
func Load(ctx context.Context, cfg *Config) (*Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("model config is nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is not configured (set CATMATCH_MODEL_NAME)")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model URL is not configured (set CATMATCH_MODEL_URL)")
	}

	var b backend
	switch cfg.Backend {
	case "kserve", "triton":
		b = newKServe(cfg)
	case "clip-server":
		b = newCLIPServer(cfg)
	default:
		return nil, fmt.Errorf("unsupported model backend: %s", cfg.Backend)
	}

	pre, err := b.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load model %s: %w", b.ModelID(), err)
	}
	return &Model{Encoder: b, Preprocess: pre}, nil
}
