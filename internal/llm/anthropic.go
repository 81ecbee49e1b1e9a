package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion  = "2023-06-01"
	defaultAnthropicModel = "claude-3-haiku-20240307"
)

// AnthropicClient implements TextProvider using the Anthropic Messages
// API. It does not implement EmbeddingProvider: Anthropic does not
// expose an embeddings endpoint, so the embedding gateway must be
// configured with a different provider (openai or local) when
// llm.provider is "anthropic".
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicClient creates an AnthropicClient. If cfg.APIKey is empty
// it falls back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &AnthropicClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *AnthropicClient) Available() bool {
	return c.apiKey != ""
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicClient) sendRequest(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 512,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in anthropic response")
}

// GenerateLabel asks the model to pick or synthesize a short canonical
// label for a set of wording variations of the same behavior.
func (c *AnthropicClient) GenerateLabel(ctx context.Context, wordingVariations []string) (LabelResult, error) {
	if !c.Available() {
		return LabelResult{}, fmt.Errorf("anthropic client not available: missing API key")
	}
	if len(wordingVariations) == 0 {
		return LabelResult{}, nil
	}

	text, err := c.sendRequest(ctx, LabelPrompt(wordingVariations))
	if err != nil {
		return LabelResult{}, fmt.Errorf("generating label: %w", err)
	}

	return LabelResult{Label: strings.TrimSpace(text), GeneratedByLLM: true}, nil
}

// GenerateArchetype asks the model to synthesize an overall archetype
// from a user's PRIMARY-tier cluster labels.
func (c *AnthropicClient) GenerateArchetype(ctx context.Context, primaryClusterLabels []string) (ArchetypeResult, error) {
	if !c.Available() {
		return ArchetypeResult{}, fmt.Errorf("anthropic client not available: missing API key")
	}
	if len(primaryClusterLabels) == 0 {
		return ArchetypeResult{}, nil
	}

	text, err := c.sendRequest(ctx, ArchetypePrompt(primaryClusterLabels))
	if err != nil {
		return ArchetypeResult{}, fmt.Errorf("generating archetype: %w", err)
	}

	label, description := splitArchetypeResponse(text)
	return ArchetypeResult{Label: label, Description: description, GeneratedByLLM: true}, nil
}

// splitArchetypeResponse expects "LABEL: description" on the first line
// and treats the rest of the remaining text as part of the description.
func splitArchetypeResponse(text string) (label, description string) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, ":"); idx > 0 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:])
	}
	return text, text
}
