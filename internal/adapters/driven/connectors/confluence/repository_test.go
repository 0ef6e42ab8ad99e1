package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

func testRepository(t *testing.T, handler http.Handler) (*Repository, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Username = "bot@example.com"
	cfg.APIToken = "token-123"
	cfg.MaxRetries = 0
	return NewRepository(cfg, "tenant-1"), server
}

func pageJSON(id, title, body string, version int) map[string]any {
	return map[string]any{
		"id":      id,
		"type":    "page",
		"status":  "current",
		"title":   title,
		"space":   map[string]any{"key": "DOCS", "name": "Docs"},
		"version": map[string]any{"number": version},
		"body": map[string]any{
			"storage": map[string]any{"value": body, "representation": "storage"},
		},
		"_links": map[string]any{"webui": "/spaces/DOCS/pages/" + id},
	}
}

func TestRepository_GetDocument(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/12345" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if user, token, ok := r.BasicAuth(); !ok || user != "bot@example.com" || token != "token-123" {
			t.Errorf("missing or wrong basic auth: %s %s", user, token)
		}
		json.NewEncoder(w).Encode(pageJSON("12345", "Setup Guide", "<p>body</p>", 4))
	}))

	snapshot, err := repo.GetDocument(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if snapshot.DocID != "12345" {
		t.Errorf("expected doc id 12345, got %s", snapshot.DocID)
	}
	if snapshot.TenantID != "tenant-1" {
		t.Errorf("expected tenant-1, got %s", snapshot.TenantID)
	}
	if snapshot.Title != "Setup Guide" || snapshot.Content != "<p>body</p>" {
		t.Errorf("unexpected title/content: %q %q", snapshot.Title, snapshot.Content)
	}
	if snapshot.ContainerID != "DOCS" {
		t.Errorf("expected container DOCS, got %s", snapshot.ContainerID)
	}
	if snapshot.Version != 4 {
		t.Errorf("expected version 4, got %d", snapshot.Version)
	}
	if snapshot.URL == "" {
		t.Error("expected webui URL to be set")
	}
}

func TestRepository_GetDocumentNotFound(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"statusCode": 404, "message": "no content"})
	}))

	_, err := repo.GetDocument(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_UpdateDocumentBumpsVersion(t *testing.T) {
	var gotUpdate map[string]any
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(pageJSON("99", "Old Title", "<p>old</p>", 7))
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&gotUpdate); err != nil {
				t.Fatalf("decode update body: %v", err)
			}
			json.NewEncoder(w).Encode(pageJSON("99", "Old Title", "<p>new</p>", 8))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	if err := repo.UpdateDocument(context.Background(), "99", "", "<p>new</p>"); err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}

	version := gotUpdate["version"].(map[string]any)["number"].(float64)
	if int(version) != 8 {
		t.Errorf("expected version bump to 8, got %v", version)
	}
	// Empty title keeps the existing one.
	if gotUpdate["title"] != "Old Title" {
		t.Errorf("expected title preserved, got %v", gotUpdate["title"])
	}
}

func TestRepository_DeleteDocumentReturnsToken(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := repo.DeleteDocument(context.Background(), "42")
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if token != "42" {
		t.Errorf("expected trash token 42, got %s", token)
	}
}

func TestRepository_RestoreDocumentInPlace(t *testing.T) {
	restoreCalled := false
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			if r.URL.Query().Get("status") != "trashed" {
				t.Errorf("expected trashed status query, got %q", r.URL.Query().Get("status"))
			}
			page := pageJSON("42", "Trashed Page", "<p>body</p>", 3)
			page["status"] = "trashed"
			json.NewEncoder(w).Encode(page)
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/content/42/restore":
			restoreCalled = true
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	restoredID, err := repo.RestoreDocument(context.Background(), "42")
	if err != nil {
		t.Fatalf("RestoreDocument failed: %v", err)
	}
	if restoredID != "42" {
		t.Errorf("expected original id back, got %s", restoredID)
	}
	if !restoreCalled {
		t.Error("expected restore endpoint to be called")
	}
}

func TestRepository_RestoreDocumentRecreatesWhenRestoreFails(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			page := pageJSON("42", "Trashed Page", "<p>original body</p>", 3)
			page["status"] = "trashed"
			json.NewEncoder(w).Encode(page)
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/content/42/restore":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"statusCode": 400, "message": "restore not supported"})
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/content":
			var created map[string]any
			json.NewDecoder(r.Body).Decode(&created)
			if created["title"] != "Trashed Page" {
				t.Errorf("expected recreated title, got %v", created["title"])
			}
			json.NewEncoder(w).Encode(pageJSON("777", "Trashed Page", "<p>original body</p>", 1))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	restoredID, err := repo.RestoreDocument(context.Background(), "42")
	if err != nil {
		t.Fatalf("RestoreDocument failed: %v", err)
	}
	if restoredID != "777" {
		t.Errorf("expected recreated page id 777, got %s", restoredID)
	}
}

func TestRepository_RestoreDocumentAlreadyCurrent(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pageJSON("42", "Live Page", "<p>body</p>", 3))
	}))

	restoredID, err := repo.RestoreDocument(context.Background(), "42")
	if err != nil {
		t.Fatalf("RestoreDocument failed: %v", err)
	}
	if restoredID != "42" {
		t.Errorf("expected id unchanged, got %s", restoredID)
	}
}

func TestRepository_ListContainerDocumentsPaginates(t *testing.T) {
	calls := 0
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("spaceKey") != "DOCS" {
			t.Errorf("expected spaceKey DOCS, got %s", r.URL.Query().Get("spaceKey"))
		}
		switch r.URL.Query().Get("start") {
		case "0":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []any{pageJSON("1", "A", "<p>a</p>", 1), pageJSON("2", "B", "<p>b</p>", 1)},
				"size":    2,
				"_links":  map[string]any{"next": "/rest/api/content?start=2"},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"results": []any{pageJSON("3", "C", "<p>c</p>", 1)},
				"size":    1,
				"_links":  map[string]any{},
			})
		}
	}))

	snapshots, err := repo.ListContainerDocuments(context.Background(), "DOCS", 0)
	if err != nil {
		t.Fatalf("ListContainerDocuments failed: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(snapshots))
	}
	if calls != 2 {
		t.Errorf("expected 2 page fetches, got %d", calls)
	}
	for _, s := range snapshots {
		if s.TenantID != "tenant-1" {
			t.Errorf("snapshot %s missing tenant stamp", s.DocID)
		}
	}
}

func TestRepository_ListContainerDocumentsHonorsLimit(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{pageJSON("1", "A", "<p>a</p>", 1), pageJSON("2", "B", "<p>b</p>", 1)},
			"size":    2,
			"_links":  map[string]any{"next": "/rest/api/content?start=2"},
		})
	}))

	snapshots, err := repo.ListContainerDocuments(context.Background(), "DOCS", 1)
	if err != nil {
		t.Fatalf("ListContainerDocuments failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Errorf("expected limit of 1 document, got %d", len(snapshots))
	}
}

func TestRepository_TestConnection(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/space" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{map[string]any{"key": "DOCS", "name": "Docs"}},
		})
	}))

	if err := repo.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestRepository_TestConnectionUnauthorized(t *testing.T) {
	repo, _ := testRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := repo.TestConnection(context.Background())
	if !errors.Is(err, domain.ErrRepositoryUnavailable) {
		t.Errorf("expected ErrRepositoryUnavailable, got %v", err)
	}
}

func TestFactory_ForTenant(t *testing.T) {
	factory := NewFactory()

	repo, err := factory.ForTenant(context.Background(), &domain.TenantCredentials{
		TenantID: "tenant-1",
		BaseURL:  "https://example.atlassian.net/wiki",
		Username: "bot@example.com",
		APIToken: "token",
	})
	if err != nil {
		t.Fatalf("ForTenant failed: %v", err)
	}
	if repo == nil {
		t.Fatal("expected repository, got nil")
	}
}

func TestFactory_ForTenantRejectsIncompleteCredentials(t *testing.T) {
	factory := NewFactory()

	tests := []struct {
		name  string
		creds *domain.TenantCredentials
	}{
		{"nil credentials", nil},
		{"missing token", &domain.TenantCredentials{TenantID: "t", BaseURL: "https://x", Username: "u"}},
		{"missing base URL", &domain.TenantCredentials{TenantID: "t", Username: "u", APIToken: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := factory.ForTenant(context.Background(), tt.creds); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestClient_RetriesOnRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(pageJSON("1", "A", "<p>a</p>", 1))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.MaxRetries = 2
	client := NewClient(cfg)

	if _, err := client.GetContent(context.Background(), "1", ""); err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected one retry, got %d calls", calls)
	}
}
