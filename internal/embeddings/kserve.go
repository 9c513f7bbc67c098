package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// kserveProvider talks the Open Inference Protocol (v2) used by Triton,
// KServe and MLServer.
type kserveProvider struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	size    int

	inputName  string
	outputName string
	dim        int
}

type v2Tensor struct {
	Name     string    `json:"name"`
	Datatype string    `json:"datatype"`
	Shape    []int64   `json:"shape"`
	Data     []float32 `json:"data,omitempty"`
}

type v2Metadata struct {
	Name     string     `json:"name"`
	Platform string     `json:"platform"`
	Inputs   []v2Tensor `json:"inputs"`
	Outputs  []v2Tensor `json:"outputs"`
}

type v2Output struct {
	Name string `json:"name"`
}

type v2InferRequest struct {
	Inputs  []v2Tensor `json:"inputs"`
	Outputs []v2Output `json:"outputs,omitempty"`
}

type v2InferResponse struct {
	ModelName string `json:"model_name"`
	Outputs   []struct {
		Name     string    `json:"name"`
		Datatype string    `json:"datatype"`
		Shape    []int64   `json:"shape"`
		Data     []float64 `json:"data"`
	} `json:"outputs"`
}

func newKServe(cfg *Config) *kserveProvider {
	return &kserveProvider{
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
		size:      cfg.ImageSize,
		inputName: "pixel_values",
	}
}

func (p *kserveProvider) ModelID() string {
	return "kserve:" + p.model
}

func (p *kserveProvider) Dim() int {
	return p.dim
}

func (p *kserveProvider) modelURL(suffix string) string {
	return p.baseURL + "/v2/models/" + url.PathEscape(p.model) + suffix
}

// load checks readiness and reads the model metadata to pick tensor names
// and the input resolution.
func (p *kserveProvider) load(ctx context.Context) (Preprocessor, error) {
	status, body, err := p.do(ctx, http.MethodGet, p.modelURL("/ready"), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrModelNotReady, status, strings.TrimSpace(string(body)))
	}

	status, body, err = p.do(ctx, http.MethodGet, p.modelURL(""), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("model metadata request failed: HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}
	var meta v2Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("cannot parse model metadata: %w", err)
	}
	if len(meta.Inputs) == 0 {
		return nil, fmt.Errorf("model metadata lists no inputs")
	}

	in := meta.Inputs[0]
	p.inputName = in.Name
	if in.Datatype != "" && in.Datatype != "FP32" {
		return nil, fmt.Errorf("unsupported input datatype %s (want FP32)", in.Datatype)
	}
	if n := len(in.Shape); n == 4 {
		if in.Shape[1] != 3 && in.Shape[1] > 0 {
			return nil, fmt.Errorf("unsupported input shape %v (want [N,3,H,W])", in.Shape)
		}
		if h, w := in.Shape[2], in.Shape[3]; h > 0 && h == w {
			p.size = int(h)
		}
	}
	if len(meta.Outputs) > 0 {
		out := meta.Outputs[0]
		p.outputName = out.Name
		if n := len(out.Shape); n > 0 && out.Shape[n-1] > 0 {
			p.dim = int(out.Shape[n-1])
		}
	}

	return CLIPPreprocess(p.size).TensorPreprocessor(), nil
}

func (p *kserveProvider) Encode(ctx context.Context, in *Input) ([]float32, error) {
	if in == nil || len(in.Tensor) == 0 {
		return nil, fmt.Errorf("kserve encoder needs a tensor input")
	}

	req := v2InferRequest{
		Inputs: []v2Tensor{{
			Name:     p.inputName,
			Datatype: "FP32",
			Shape:    in.Shape,
			Data:     in.Tensor,
		}},
	}
	if p.outputName != "" {
		req.Outputs = []v2Output{{Name: p.outputName}}
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	status, body, err := p.do(ctx, http.MethodPost, p.modelURL("/infer"), b)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("inference request failed: HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}

	var parsed v2InferResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse inference response: %w", err)
	}
	if len(parsed.Outputs) == 0 || len(parsed.Outputs[0].Data) == 0 {
		return nil, fmt.Errorf("inference response missing output tensor")
	}

	data := parsed.Outputs[0].Data
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v)
	}
	if p.dim != 0 && len(out) != p.dim {
		return nil, fmt.Errorf("inference output has %d values, model declares %d", len(out), p.dim)
	}
	p.dim = len(out)
	return out, nil
}

func (p *kserveProvider) do(ctx context.Context, method, u string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("cannot read response from %s: %w", u, err)
	}
	return resp.StatusCode, b, nil
}
