package domain

import (
	"testing"
	"time"
)

func opAt(id string, ts time.Time, kept, deleted string, status MergeStatus) *MergeOperation {
	return &MergeOperation{
		ID:           id,
		TenantID:     "org_1",
		Timestamp:    ts,
		KeptDocID:    kept,
		DeletedDocID: deleted,
		Status:       status,
	}
}

func TestComputeLineage_SingleChain(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	op1 := opAt("op1", base, "A", "B", MergeStatusCompleted)
	op2 := opAt("op2", base.Add(time.Hour), "A", "C", MergeStatusCompleted)
	ops := []*MergeOperation{op2, op1}

	lineage := ComputeLineage(ops, "A")
	if len(lineage) != 2 {
		t.Fatalf("expected 2 operations in lineage, got %d", len(lineage))
	}
	if lineage[0].ID != "op1" || lineage[1].ID != "op2" {
		t.Errorf("expected chronological order [op1 op2], got [%s %s]", lineage[0].ID, lineage[1].ID)
	}
}

func TestComputeLineage_DeletedSideChainIncluded(t *testing.T) {
	// B was itself the kept survivor of an earlier merge (B absorbed D),
	// then A absorbed B. Lineage of A must reach back through B to the
	// B<-D operation.
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	opBD := opAt("op-bd", base, "B", "D", MergeStatusCompleted)
	opAB := opAt("op-ab", base.Add(time.Hour), "A", "B", MergeStatusCompleted)

	lineage := ComputeLineage([]*MergeOperation{opAB, opBD}, "A")
	if len(lineage) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(lineage))
	}
	if lineage[0].ID != "op-bd" {
		t.Errorf("expected deleted-side origin op-bd first, got %s", lineage[0].ID)
	}
}

func TestComputeLineage_UnrelatedChainsExcluded(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	opAB := opAt("op-ab", base, "A", "B", MergeStatusCompleted)
	opXY := opAt("op-xy", base.Add(time.Minute), "X", "Y", MergeStatusCompleted)

	lineage := ComputeLineage([]*MergeOperation{opAB, opXY}, "A")
	if len(lineage) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(lineage))
	}
	if lineage[0].ID != "op-ab" {
		t.Errorf("expected op-ab, got %s", lineage[0].ID)
	}
}

func TestComputeLineage_RestoredAsNewStartsFreshChain(t *testing.T) {
	// An undone merge recorded a restore-as-new id. Operations against the
	// new id are only reachable through the new id itself, not through the
	// old deleted id.
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	old := opAt("op-old", base, "A", "B", MergeStatusUndone)
	old.RestoredAsNewID = "B2"
	fresh := opAt("op-fresh", base.Add(2*time.Hour), "C", "B2", MergeStatusCompleted)

	lineage := ComputeLineage([]*MergeOperation{old, fresh}, "A")
	for _, op := range lineage {
		if op.ID == "op-fresh" {
			t.Error("fresh chain via restored-as-new id must not splice into the old lineage")
		}
	}
}

func TestComputeLineage_NoOperations(t *testing.T) {
	if got := ComputeLineage(nil, "A"); len(got) != 0 {
		t.Errorf("expected empty lineage, got %d operations", len(got))
	}
}

func TestBlockingUndos(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	op1 := opAt("op1", base, "A", "B", MergeStatusCompleted)
	op2 := opAt("op2", base.Add(time.Hour), "A", "C", MergeStatusCompleted)
	op3 := opAt("op3", base.Add(2*time.Hour), "A", "D", MergeStatusUndone)
	lineage := []*MergeOperation{op1, op2, op3}

	blocking := BlockingUndos(lineage, op1)
	if len(blocking) != 1 {
		t.Fatalf("expected 1 blocking operation, got %d", len(blocking))
	}
	if blocking[0].ID != "op2" {
		t.Errorf("expected op2 to block, got %s", blocking[0].ID)
	}

	// The newest completed op has nothing blocking it.
	if got := BlockingUndos(lineage, op2); len(got) != 0 {
		t.Errorf("expected no blockers for op2, got %d", len(got))
	}
}

func TestMergeOperation_Touches(t *testing.T) {
	op := opAt("op1", time.Now(), "A", "B", MergeStatusCompleted)
	tests := []struct {
		docID string
		want  bool
	}{
		{"A", true},
		{"B", true},
		{"C", false},
	}
	for _, tt := range tests {
		if got := op.Touches(tt.docID); got != tt.want {
			t.Errorf("Touches(%s) = %v, want %v", tt.docID, got, tt.want)
		}
	}
}
