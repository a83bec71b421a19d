package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inferd/pkg/types"
)

// HTTPClient speaks the JSON completion protocol exposed by llama.cpp's
// server and compatible local runtimes. One client serves every tier; the
// tier carries its own base URL so mixed backends can coexist.
type HTTPClient struct {
	http *http.Client
}

// NewHTTPClient constructs a client with the given per-request timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{http: &http.Client{Timeout: timeout}}
}

type completionRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type completionResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Infer posts the prompt to {base}/completion and returns the content.
func (c *HTTPClient) Infer(ctx context.Context, tier types.ModelTier, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{Model: tier.Model, Prompt: prompt})
	if err != nil {
		return "", Errf(tier.ID, "encode", err)
	}
	url := strings.TrimRight(tier.BackendURL, "/") + "/completion"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", Errf(tier.ID, "request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", Errf(tier.ID, "completion", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		// Drain a short error body for the message; ignore read failures.
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", Errf(tier.ID, "completion", fmt.Errorf("status=%d body=%s", res.StatusCode, strings.TrimSpace(string(b))))
	}
	var out completionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", Errf(tier.ID, "decode", err)
	}
	if out.Error != "" {
		return "", Errf(tier.ID, "completion", fmt.Errorf("%s", out.Error))
	}
	return out.Content, nil
}

// Ping checks {base}/health, falling back to the base URL for servers that
// do not expose a health route. Any 2xx counts as reachable.
func (c *HTTPClient) Ping(ctx context.Context, tier types.ModelTier) error {
	for _, path := range []string{"/health", "/"} {
		url := strings.TrimRight(tier.BackendURL, "/") + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Errf(tier.ID, "ping", err)
		}
		res, err := c.http.Do(req)
		if err != nil {
			return Errf(tier.ID, "ping", err)
		}
		io.Copy(io.Discard, io.LimitReader(res.Body, 512))
		res.Body.Close()
		if res.StatusCode/100 == 2 {
			return nil
		}
		if path == "/" {
			return Errf(tier.ID, "ping", fmt.Errorf("status=%d", res.StatusCode))
		}
	}
	return nil
}
