// Package llm wraps the text-generation provider used to produce
// human-readable summaries (an Ollama-compatible endpoint).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webscout/internal/config"
	"webscout/internal/ports"
)

// Generator posts prompts to the generation endpoint.
type Generator struct {
	endpoint string
	model    string
	http     *http.Client
}

var _ ports.Generator = (*Generator)(nil)

// NewGenerator builds a client from configuration.
func NewGenerator(cfg config.GenerationConfig) *Generator {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
	}
}

// Generate sends one prompt and returns the trimmed response text.
// Callers are responsible for truncating the prompt to the configured
// input limit.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.endpoint == "" || g.model == "" {
		return "", fmt.Errorf("generator misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":  g.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("generation error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}
