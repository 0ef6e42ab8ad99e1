package domain

import "testing"

func TestCanonicalPair(t *testing.T) {
	tests := []struct {
		a, b       string
		wantA, wantB string
	}{
		{"doc-1", "doc-2", "doc-1", "doc-2"},
		{"doc-2", "doc-1", "doc-1", "doc-2"},
		{"doc-1", "doc-1", "doc-1", "doc-1"},
	}
	for _, tt := range tests {
		gotA, gotB := CanonicalPair(tt.a, tt.b)
		if gotA != tt.wantA || gotB != tt.wantB {
			t.Errorf("CanonicalPair(%s, %s) = (%s, %s), want (%s, %s)",
				tt.a, tt.b, gotA, gotB, tt.wantA, tt.wantB)
		}
	}
}

func TestPairKey_Symmetric(t *testing.T) {
	if PairKey("x", "y") != PairKey("y", "x") {
		t.Error("PairKey must be symmetric")
	}
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash("some page content")
	b := ContentHash("some page content")
	if a != b {
		t.Error("same content must hash identically")
	}
	if a == ContentHash("different content") {
		t.Error("different content must hash differently")
	}
}
