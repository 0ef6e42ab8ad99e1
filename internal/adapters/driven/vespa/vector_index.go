package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// maxListHits bounds how many documents a single list query returns.
const maxListHits = 400

// VectorIndex implements driven.VectorIndex using Vespa.
// Documents live in the "page" document type; tenant partitioning is
// enforced by a tenant_id field that every query filters on.
type VectorIndex struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds Vespa connection configuration
type Config struct {
	// BaseURL is the Vespa query/feed endpoint (e.g., http://localhost:8080)
	BaseURL string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// NewVectorIndex creates a new Vespa-backed VectorIndex
func NewVectorIndex(cfg Config) *VectorIndex {
	return &VectorIndex{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ValidateEndpoint checks that the endpoint is a usable http(s) URL and
// normalizes it by stripping any trailing slash.
func ValidateEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", errors.New("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("endpoint must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("endpoint is missing a host")
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// vespaDocument represents a document in Vespa feed format
type vespaDocument struct {
	Fields vespaFields `json:"fields"`
}

type vespaFields struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Title       string       `json:"title"`
	ContentHash string       `json:"content_hash"`
	URL         string       `json:"url"`
	ContainerID string       `json:"container_id"`
	Embedding   *vespaTensor `json:"embedding,omitempty"`
	IndexedAt   int64        `json:"indexed_at"`
	UpdatedAt   int64        `json:"updated_at"`
}

// vespaTensor is the feed format for an indexed tensor field
type vespaTensor struct {
	Values []float32 `json:"values"`
}

// docID builds the composite Vespa document id so the same page id in two
// tenants never collides.
func docID(tenantID, id string) string {
	return tenantID + ":" + id
}

// Upsert adds or replaces a document in the tenant's partition
func (v *VectorIndex) Upsert(ctx context.Context, tenantID string, doc *domain.Document) error {
	if tenantID == "" {
		return domain.ErrInvalidInput
	}

	feed := vespaDocument{
		Fields: vespaFields{
			ID:          doc.ID,
			TenantID:    tenantID,
			Title:       doc.Title,
			ContentHash: doc.ContentHash,
			URL:         doc.URL,
			ContainerID: doc.ContainerID,
			IndexedAt:   doc.IndexedAt.Unix(),
			UpdatedAt:   doc.UpdatedAt.Unix(),
		},
	}
	if len(doc.Embedding) > 0 {
		feed.Fields.Embedding = &vespaTensor{Values: doc.Embedding}
	}

	body, err := json.Marshal(feed)
	if err != nil {
		return err
	}

	// Vespa document API: POST /document/v1/{namespace}/{doctype}/docid/{docid}
	reqURL := fmt.Sprintf("%s/document/v1/concatly/page/docid/%s",
		v.baseURL, url.PathEscape(docID(tenantID, doc.ID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa upsert failed: %s - %s", resp.Status, string(respBody))
	}
	return nil
}

// Delete removes a document from the tenant's partition
func (v *VectorIndex) Delete(ctx context.Context, tenantID, docIDValue string) error {
	if tenantID == "" {
		return domain.ErrInvalidInput
	}

	reqURL := fmt.Sprintf("%s/document/v1/concatly/page/docid/%s",
		v.baseURL, url.PathEscape(docID(tenantID, docIDValue)))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 is fine, the document is already gone
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa delete failed: %s - %s", resp.Status, string(respBody))
	}
	return nil
}

// Neighbors returns the k most similar documents within the tenant's partition
func (v *VectorIndex) Neighbors(ctx context.Context, tenantID string, embedding []float32, k int) ([]*driven.Neighbor, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	if k <= 0 || len(embedding) == 0 {
		return nil, domain.ErrInvalidInput
	}

	yql := fmt.Sprintf(
		`select * from page where tenant_id contains %q and ({targetHits:%d}nearestNeighbor(embedding,q))`,
		tenantID, k)

	searchReq := map[string]interface{}{
		"yql":             yql,
		"hits":            k,
		"input.query(q)":  embedding,
		"ranking.profile": "similarity",
	}

	searchResp, err := v.search(ctx, searchReq)
	if err != nil {
		return nil, err
	}

	neighbors := make([]*driven.Neighbor, 0, len(searchResp.Root.Children))
	for _, hit := range searchResp.Root.Children {
		neighbors = append(neighbors, &driven.Neighbor{
			Document: hit.Fields.toDomain(tenantID),
			// The similarity ranking profile scores hits by cosine
			// similarity, so relevance carries through directly.
			Similarity: hit.Relevance,
		})
	}
	return neighbors, nil
}

// ListDocuments returns the tenant's documents, optionally filtered to one
// container. Embeddings are included.
func (v *VectorIndex) ListDocuments(ctx context.Context, tenantID, containerID string) ([]*domain.Document, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}

	yql := fmt.Sprintf(`select * from page where tenant_id contains %q`, tenantID)
	if containerID != "" {
		yql += fmt.Sprintf(` and container_id contains %q`, containerID)
	}

	searchResp, err := v.search(ctx, map[string]interface{}{
		"yql":             yql,
		"hits":            maxListHits,
		"ranking.profile": "unranked",
	})
	if err != nil {
		return nil, err
	}

	docs := make([]*domain.Document, 0, len(searchResp.Root.Children))
	for _, hit := range searchResp.Root.Children {
		docs = append(docs, hit.Fields.toDomain(tenantID))
	}
	return docs, nil
}

// Count returns the number of documents in the tenant's partition
func (v *VectorIndex) Count(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, domain.ErrInvalidInput
	}

	searchResp, err := v.search(ctx, map[string]interface{}{
		"yql":  fmt.Sprintf(`select * from page where tenant_id contains %q`, tenantID),
		"hits": 0,
	})
	if err != nil {
		return 0, err
	}
	return int(searchResp.Root.Fields.TotalCount), nil
}

// HealthCheck verifies the index is available
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	reqURL := fmt.Sprintf("%s/state/v1/health", v.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vespa unhealthy: %s", resp.Status)
	}
	return nil
}

// search posts a query to the search API and decodes the response
func (v *VectorIndex) search(ctx context.Context, searchReq map[string]interface{}) (*vespaSearchResponse, error) {
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/search/", v.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vespa search failed: %s - %s", resp.Status, string(respBody))
	}

	var searchResp vespaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, err
	}
	return &searchResp, nil
}

// toDomain converts Vespa hit fields into a domain document
func (f *vespaHitFields) toDomain(tenantID string) *domain.Document {
	doc := &domain.Document{
		ID:          f.ID,
		TenantID:    tenantID,
		Title:       f.Title,
		ContentHash: f.ContentHash,
		URL:         f.URL,
		ContainerID: f.ContainerID,
		IndexedAt:   time.Unix(f.IndexedAt, 0).UTC(),
		UpdatedAt:   time.Unix(f.UpdatedAt, 0).UTC(),
	}
	if f.Embedding != nil {
		doc.Embedding = f.Embedding.Values
	}
	return doc
}

// vespaHitFields mirrors vespaFields for search responses, where tensor
// fields come back in the {"type": ..., "values": ...} form.
type vespaHitFields struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Title       string       `json:"title"`
	ContentHash string       `json:"content_hash"`
	URL         string       `json:"url"`
	ContainerID string       `json:"container_id"`
	Embedding   *vespaTensor `json:"embedding"`
	IndexedAt   int64        `json:"indexed_at"`
	UpdatedAt   int64        `json:"updated_at"`
}

// vespaSearchResponse represents Vespa's search response format
type vespaSearchResponse struct {
	Root struct {
		Fields struct {
			TotalCount int64 `json:"totalCount"`
		} `json:"fields"`
		Children []struct {
			Relevance float64        `json:"relevance"`
			Fields    vespaHitFields `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}
