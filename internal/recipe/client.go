package recipe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.5-flash"
	DefaultTimeout  = 60 * time.Second

	maxErrorBody = 4096
)

// Config holds the connection settings for Client.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration

	// HTTPClient overrides the default client; tests point it at httptest.
	HTTPClient *http.Client
}

// Client calls the Gemini generateContent API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

// NewClient creates a Client, filling in defaults for empty fields.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		http:     hc,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
	Temperature      float64        `json:"temperature"`
}

type generateRequest struct {
	SystemInstruction content          `json:"systemInstruction"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

// Generate validates the ingredients and asks the model for a recipe.
// Validation failures return ErrNoIngredients; everything after that is
// wrapped in ErrManifestationFailed.
func (c *Client) Generate(ctx context.Context, ingredients []Ingredient) (*Result, error) {
	clean, err := Validate(ingredients)
	if err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrManifestationFailed)
	}

	text, err := c.generateContent(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestationFailed, err)
	}

	res, err := parseResult(text, clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestationFailed, err)
	}
	return res, nil
}

func (c *Client) generateContent(ctx context.Context, ingredients []Ingredient) (string, error) {
	body, err := json.Marshal(generateRequest{
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: buildPrompt(ingredients)}},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
			Temperature:      0.9,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := gjson.GetBytes(raw, "error.message"); msg.Exists() {
			return "", fmt.Errorf("API status %d: %s", resp.StatusCode, msg.String())
		}
		return "", fmt.Errorf("API status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return extractText(raw)
}

// extractText joins the text parts of the first candidate.
func extractText(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", errors.New("response is not JSON")
	}
	if reason := gjson.GetBytes(raw, "promptFeedback.blockReason"); reason.Exists() {
		return "", fmt.Errorf("prompt blocked: %s", reason.String())
	}

	parts := gjson.GetBytes(raw, "candidates.0.content.parts.#.text")
	var b strings.Builder
	for _, p := range parts.Array() {
		b.WriteString(p.String())
	}
	if b.Len() == 0 {
		finish := gjson.GetBytes(raw, "candidates.0.finishReason").String()
		if finish == "" {
			finish = "no candidates"
		}
		return "", fmt.Errorf("empty response (%s)", finish)
	}
	return b.String(), nil
}
