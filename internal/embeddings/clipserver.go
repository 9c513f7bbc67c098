package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// clipServerProvider calls a feature-extraction sidecar that wraps a CLIP
// model and normalizes pixels itself.
//
//	GET  {baseURL}/health
//	POST {baseURL}/extract_features   multipart field "image" (PNG)
//
// The response is JSON {"features": [...]}.
type clipServerProvider struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	size    int
	dim     int
}

type clipServerResponse struct {
	Model    string    `json:"model"`
	Features []float64 `json:"features"`
}

func newCLIPServer(cfg *Config) *clipServerProvider {
	return &clipServerProvider{
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		size:    cfg.ImageSize,
	}
}

func (p *clipServerProvider) ModelID() string {
	return "clip-server:" + p.model
}

func (p *clipServerProvider) Dim() int {
	return p.dim
}

func (p *clipServerProvider) load(ctx context.Context) (Preprocessor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	p.authorize(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrModelNotReady, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return CLIPPreprocess(p.size).ImagePreprocessor(), nil
}

func (p *clipServerProvider) Encode(ctx context.Context, in *Input) ([]float32, error) {
	if in == nil || in.Image == nil {
		return nil, fmt.Errorf("clip-server encoder needs an image input")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model", p.model); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, err
	}
	if err := png.Encode(fw, in.Image); err != nil {
		return nil, fmt.Errorf("cannot encode image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/extract_features", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feature extraction failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed clipServerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse feature response: %w", err)
	}
	if len(parsed.Features) == 0 {
		return nil, fmt.Errorf("feature response missing features")
	}

	out := make([]float32, len(parsed.Features))
	for i, v := range parsed.Features {
		out[i] = float32(v)
	}
	p.dim = len(out)
	return out, nil
}

func (p *clipServerProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}
