package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Document is a tenant-scoped mirror of a page in the content repository.
// It is created or updated on ingestion and removed when the page is deleted
// or consumed by a merge.
type Document struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	URL         string    `json:"url"`
	ContainerID string    `json:"container_id"` // space or folder in the repository
	Embedding   []float32 `json:"embedding,omitempty"`
	IndexedAt   time.Time `json:"indexed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentSnapshot is a full copy of a page's content and metadata captured
// immediately before a mutating step. It carries everything needed to put the
// page back the way it was.
type DocumentSnapshot struct {
	DocID       string            `json:"doc_id"`
	TenantID    string            `json:"tenant_id"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	ContainerID string            `json:"container_id"`
	URL         string            `json:"url"`
	Version     int               `json:"version"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CapturedAt  time.Time         `json:"captured_at"`
}

// ContentHash returns the canonical hash of document content, used to detect
// edits made after a snapshot was taken.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
