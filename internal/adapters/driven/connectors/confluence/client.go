package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides low-level Confluence REST API operations.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
	perPage    int
	maxRetries int
}

// NewClient creates a new Confluence API client.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	perPage := cfg.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		username:   cfg.Username,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		perPage:    perPage,
		maxRetries: cfg.MaxRetries,
	}
}

// Page represents a Confluence content item.
type Page struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Title   string `json:"title"`
	Space   *Space `json:"space,omitempty"`
	Version *struct {
		Number int `json:"number"`
	} `json:"version,omitempty"`
	Body *struct {
		Storage struct {
			Value          string `json:"value"`
			Representation string `json:"representation"`
		} `json:"storage"`
	} `json:"body,omitempty"`
	Links map[string]string `json:"_links,omitempty"`
}

// Space represents a Confluence space.
type Space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// WebURL returns the page's UI link, when the API provided one.
func (p *Page) WebURL(baseURL string) string {
	if p.Links == nil {
		return ""
	}
	webui := p.Links["webui"]
	if webui == "" {
		return ""
	}
	return baseURL + webui
}

// pageList is the response envelope for content listing endpoints.
type pageList struct {
	Results []*Page `json:"results"`
	Size    int     `json:"size"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

// apiError is Confluence's error response body.
type apiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// GetContent fetches a content item. status may be "" (current) or "trashed".
func (c *Client) GetContent(ctx context.Context, id, status string) (*Page, error) {
	path := fmt.Sprintf("/rest/api/content/%s?expand=body.storage,version,space", url.PathEscape(id))
	if status != "" {
		path += "&status=" + url.QueryEscape(status)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &page, nil
}

// UpdateContent replaces a page's title and body, bumping its version.
func (c *Client) UpdateContent(ctx context.Context, id, title, content string, newVersion int) error {
	payload := map[string]any{
		"version": map[string]any{"number": newVersion},
		"title":   title,
		"type":    "page",
		"body": map[string]any{
			"storage": map[string]any{
				"value":          content,
				"representation": "storage",
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/rest/api/content/%s", url.PathEscape(id))
	resp, err := c.doRequest(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteContent moves a page to the trash.
func (c *Client) DeleteContent(ctx context.Context, id string) error {
	path := fmt.Sprintf("/rest/api/content/%s", url.PathEscape(id))
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RestoreContent restores a trashed page in place. Both restore endpoint
// variants are tried; some Confluence versions require a confirmation body
// and some reject it.
func (c *Client) RestoreContent(ctx context.Context, id string) error {
	path := fmt.Sprintf("/rest/api/content/%s/restore", url.PathEscape(id))

	confirm, _ := json.Marshal(map[string]any{"confirm": true, "restoreMode": "full"})
	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(confirm))
	if err == nil {
		resp.Body.Close()
		return nil
	}

	resp, err = c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CreateContent creates a new page in a space and returns it.
func (c *Client) CreateContent(ctx context.Context, spaceKey, title, content string) (*Page, error) {
	payload := map[string]any{
		"type":  "page",
		"title": title,
		"space": map[string]any{"key": spaceKey},
		"body": map[string]any{
			"storage": map[string]any{
				"value":          content,
				"representation": "storage",
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/rest/api/content", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode created content: %w", err)
	}
	return &page, nil
}

// ListSpaceContent lists pages in a space, following pagination up to limit.
// limit <= 0 means no limit.
func (c *Client) ListSpaceContent(ctx context.Context, spaceKey string, limit int) ([]*Page, error) {
	var pages []*Page
	start := 0

	for {
		perPage := c.perPage
		if limit > 0 && limit-len(pages) < perPage {
			perPage = limit - len(pages)
		}

		path := fmt.Sprintf("/rest/api/content?spaceKey=%s&type=page&expand=body.storage,version,space&limit=%d&start=%d",
			url.QueryEscape(spaceKey), perPage, start)

		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var list pageList
		err = json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode content list: %w", err)
		}

		pages = append(pages, list.Results...)
		if limit > 0 && len(pages) >= limit {
			return pages[:limit], nil
		}
		if list.Links.Next == "" || len(list.Results) == 0 {
			return pages, nil
		}
		start += len(list.Results)
	}
}

// ListSpaces lists up to limit spaces; used for connection checks.
func (c *Client) ListSpaces(ctx context.Context, limit int) ([]*Space, error) {
	if limit <= 0 {
		limit = 1
	}
	path := fmt.Sprintf("/rest/api/space?limit=%d", limit)

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list struct {
		Results []*Space `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode space list: %w", err)
	}
	return list.Results, nil
}

// StatusError carries the HTTP status of a failed API call so callers can
// map 404s onto not-found semantics.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("confluence API error %d: %s", e.StatusCode, e.Message)
}

// doRequest issues an authenticated request with retry on rate limiting and
// server errors.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		req.SetBasicAuth(c.username, c.apiToken)
		req.Header.Set("Accept", "application/json")
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		// Success or non-retryable error
		if resp.StatusCode < 500 {
			break
		}

		// Server error, retry with backoff
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var apiErr apiError
		message := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: message}
	}

	return resp, nil
}

// retryAfter reads the Retry-After header, defaulting to a short pause.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 && seconds <= 300 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 2 * time.Second
}
