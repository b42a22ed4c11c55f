package ollama

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// Generate starts a streaming completion. The returned body yields one JSON
// object per line; the caller must close it.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	req.Stream = true
	resp, err := c.do(ctx, http.MethodPost, "/api/generate", req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Chat starts a streaming chat completion. Same contract as Generate.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	req.Stream = true
	resp, err := c.do(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Embeddings returns the embedding vector for prompt.
func (c *Client) Embeddings(ctx context.Context, model, prompt string) ([]float64, error) {
	body := map[string]string{"model": model, "prompt": prompt}
	var out struct {
		Embedding []float64 `json:"embedding"`
		Error     string    `json:"error"`
	}
	if err := c.getJSON(ctx, http.MethodPost, "/api/embeddings", body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	return out.Embedding, nil
}
