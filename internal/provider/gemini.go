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

// DefaultGeminiBaseURL is the production endpoint for the Gemini REST API.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini calls the Google generative-language REST API (the primary
// provider). The zero value is not usable; construct with NewGemini.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini returns a Gemini adapter for the given API key and model.
// baseURL overrides the production endpoint (tests point it at an httptest
// server); pass "" for the default.
func NewGemini(apiKey, model, baseURL string, timeout time.Duration) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Generator.
func (g *Gemini) Name() string { return "gemini" }

// --- wire types (request) ---

type geminiRequest struct {
	Contents         []geminiContent      `json:"contents"`
	GenerationConfig geminiGenConfig      `json:"generationConfig"`
	SafetySettings   []geminiSafetyFilter `json:"safetySettings,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiSafetyFilter struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// --- wire types (response) ---

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
	ResponseID   string `json:"responseId"`
}

// Generate implements Generator. It posts the prompt to the
// :generateContent endpoint, validates that at least one candidate with
// non-empty text exists, and returns the fence-stripped text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (*Result, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:     0.7,
			TopP:            0.95,
			MaxOutputTokens: 4096,
		},
		SafetySettings: []geminiSafetyFilter{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, truncateErrBody(data))
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: empty candidate list")
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	clean := StripCodeFences(text.String())
	if clean == "" {
		return nil, fmt.Errorf("gemini: candidate has no text")
	}

	model := out.ModelVersion
	if model == "" {
		model = g.model
	}
	return &Result{Text: clean, Model: model, ResponseID: out.ResponseID}, nil
}

// truncateErrBody keeps provider error payloads log-friendly.
func truncateErrBody(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
