package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Ensure OpenAIDrafter implements MergeDrafter
var _ driven.MergeDrafter = (*OpenAIDrafter)(nil)

// mergePromptTemplate instructs the model to consolidate two duplicate pages.
// The draft must stand alone, so the prompt forbids references to "the other
// page" and meta commentary.
const mergePromptTemplate = `You are a technical writer consolidating two near-duplicate documentation pages into one.

Page A: %q (%s)
---
%s
---

Page B: %q (%s)
---
%s
---

Write a single merged page that preserves every important fact, step, and caveat from both pages. Prefer the more recent or more detailed wording when the pages conflict, and keep the structure of the clearer page. Do not mention that the content was merged, do not refer to "Page A" or "Page B", and do not add commentary. Output only the merged page body.`

// OpenAIDrafter implements MergeDrafter using OpenAI's chat completions API
type OpenAIDrafter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// draftTemperature keeps merge output close to the source material
const draftTemperature = 0.3

// NewOpenAIDrafter creates a new OpenAI merge drafter
func NewOpenAIDrafter(apiKey, model, baseURL string) (driven.MergeDrafter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAIDrafter{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// chatRequest is the request body for the chat completions API
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions API
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// DraftMerge combines both documents' content into a single draft
func (d *OpenAIDrafter) DraftMerge(ctx context.Context, a, b *domain.DocumentSnapshot) (string, error) {
	if a == nil || b == nil {
		return "", domain.ErrInvalidInput
	}

	prompt := fmt.Sprintf(mergePromptTemplate,
		a.Title, a.URL, a.Content,
		b.Title, b.URL, b.Content)

	reqBody := chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: draftTemperature,
	}

	resp, err := d.doRequest(ctx, reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMergeDraftFailed, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrMergeDraftFailed)
	}
	draft := strings.TrimSpace(resp.Choices[0].Message.Content)
	if draft == "" {
		return "", fmt.Errorf("%w: empty draft returned", domain.ErrMergeDraftFailed)
	}
	return draft, nil
}

// Model returns the model name being used
func (d *OpenAIDrafter) Model() string {
	return d.model
}

// Ping verifies the drafting service is available
func (d *OpenAIDrafter) Ping(ctx context.Context) error {
	reqBody := chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "user", Content: "ping"},
		},
	}
	_, err := d.doRequest(ctx, reqBody)
	return err
}

// Close releases resources held by the drafting service
func (d *OpenAIDrafter) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// doRequest makes a request to the chat completions API
func (d *OpenAIDrafter) doRequest(ctx context.Context, reqBody chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s (type: %s, code: %s)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	return &chatResp, nil
}
