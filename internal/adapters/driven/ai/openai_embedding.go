package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

// maxEmbedBatch bounds how many document bodies go into one API call. A
// container ingest can fan out over hundreds of pages; oversized requests get
// rejected wholesale, so they are split here.
const maxEmbedBatch = 128

// OpenAIEmbedding generates document embeddings via OpenAI's embedding API.
// The vectors feed the similarity index, so every input must come back with a
// vector: a silently missing one would leave a document that can never pair.
type OpenAIEmbedding struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	client     *http.Client
}

var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewOpenAIEmbedding creates a new OpenAI embedding service.
func NewOpenAIEmbedding(apiKey, model, baseURL string) (driven.EmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	dimensions, ok := openAIModelDimensions[model]
	if !ok {
		dimensions = 1536
	}

	return &OpenAIEmbedding{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embeddingVector struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type embeddingResponse struct {
	Data  []embeddingVector `json:"data"`
	Model string            `json:"model"`
	Error *apiError         `json:"error,omitempty"`
}

// Embed generates one vector per input text, in input order. Inputs beyond
// maxEmbedBatch are split across requests.
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

func (e *OpenAIEmbedding) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.doRequest(ctx, embeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range for %d inputs", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return embeddings, nil
}

// EmbedDocument generates an embedding for a single document body.
func (e *OpenAIEmbedding) EmbedDocument(ctx context.Context, content string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{content})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for document")
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimension size.
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used.
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck makes a minimal embedding request to verify connectivity.
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedDocument(ctx, "health check")
	return err
}

func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// doRequest posts one embedding request. A rate-limited call is retried once
// after the advertised Retry-After: rescans triggered by undo batch many
// documents and routinely brush the per-minute limit.
func (e *OpenAIEmbedding) doRequest(ctx context.Context, reqBody embeddingRequest) (*embeddingResponse, error) {
	resp, retryAfter, err := e.post(ctx, reqBody)
	if err == nil || retryAfter < 0 {
		return resp, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryAfter):
	}
	resp, _, err = e.post(ctx, reqBody)
	return resp, err
}

// post returns retryAfter >= 0 only for a rate-limited response.
func (e *OpenAIEmbedding) post(ctx context.Context, reqBody embeddingRequest) (*embeddingResponse, time.Duration, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, -1, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("OpenAI API rate limited")
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, -1, fmt.Errorf("failed to parse response: %w", err)
	}

	if embResp.Error != nil {
		return nil, -1, fmt.Errorf("OpenAI API error: %s (type: %s, code: %s)",
			embResp.Error.Message, embResp.Error.Type, embResp.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, -1, fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}
	return &embResp, -1, nil
}

func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}
