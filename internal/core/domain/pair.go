package domain

import "time"

// PairStatus is the lifecycle state of a duplicate pair.
type PairStatus string

const (
	PairStatusPending PairStatus = "pending"
	PairStatusIgnored PairStatus = "ignored"
	PairStatusMerged  PairStatus = "merged"
)

// DuplicatePair is a derived candidate: two documents whose embeddings exceed
// the similarity threshold. Pairs are cached for the UI but the merge ledger
// is authoritative about what was actually merged.
type DuplicatePair struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	DocAID     string     `json:"doc_a_id"` // canonical: DocAID < DocBID
	DocBID     string     `json:"doc_b_id"`
	Similarity float64    `json:"similarity"`
	Status     PairStatus `json:"status"`
	DetectedAt time.Time  `json:"detected_at"`
}

// CanonicalPair orders two document ids so that symmetric neighbor results
// collapse to a single pair.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PairKey returns the canonical key for an unordered document pair.
func PairKey(a, b string) string {
	a, b = CanonicalPair(a, b)
	return a + ":" + b
}

// Touches reports whether the pair involves the given document.
func (p *DuplicatePair) Touches(docID string) bool {
	return p.DocAID == docID || p.DocBID == docID
}
