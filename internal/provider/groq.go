package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultGroqBaseURL is the production endpoint for the Groq API.
const DefaultGroqBaseURL = "https://api.groq.com"

// Groq calls the Groq chat-completions API (the secondary provider). It
// speaks the OpenAI-compatible envelope: a messages list in, a choices list
// out.
type Groq struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGroq returns a Groq adapter. baseURL overrides the production endpoint
// (tests point it at an httptest server); pass "" for the default.
func NewGroq(apiKey, model, baseURL string, timeout time.Duration) *Groq {
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Groq{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Generator.
func (g *Groq) Name() string { return "groq" }

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
}

// Generate implements Generator. It requires a non-empty choices list with
// non-empty message content, and strips code-fence decoration from the
// returned document.
func (g *Groq) Generate(ctx context.Context, prompt string) (*Result, error) {
	body := groqRequest{
		Model: g.model,
		Messages: []groqMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("groq: encode request: %w", err)
	}

	url := g.baseURL + "/openai/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("groq: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("groq: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("groq: status %d: %s", resp.StatusCode, truncateErrBody(data))
	}

	var out groqResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("groq: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("groq: empty choices list")
	}

	clean := StripCodeFences(out.Choices[0].Message.Content)
	if clean == "" {
		return nil, fmt.Errorf("groq: choice has no content")
	}

	model := out.Model
	if model == "" {
		model = g.model
	}
	return &Result{Text: clean, Model: model, ResponseID: out.ID}, nil
}
