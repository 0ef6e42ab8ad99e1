package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRepositoryMutationError_Unwrap(t *testing.T) {
	inner := errors.New("503 from repository")
	err := &RepositoryMutationError{Side: MutationSideDelete, DocID: "doc-2", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}
	if !strings.Contains(err.Error(), "delete") {
		t.Errorf("error should name the failed side: %s", err.Error())
	}
}

func TestPartialMergeError_AsTarget(t *testing.T) {
	var wrapped error = fmt.Errorf("merge failed: %w", &PartialMergeError{
		KeptDocID:    "doc-1",
		DeletedDocID: "doc-2",
		Err:          errors.New("delete timed out"),
	})

	var pme *PartialMergeError
	if !errors.As(wrapped, &pme) {
		t.Fatal("expected errors.As to extract PartialMergeError")
	}
	if pme.KeptDocID != "doc-1" || pme.DeletedDocID != "doc-2" {
		t.Errorf("unexpected doc ids: %s, %s", pme.KeptDocID, pme.DeletedDocID)
	}
}

func TestSequentialUndoError_NamesNextUndo(t *testing.T) {
	next := &MergeOperation{ID: "op2", Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	err := &SequentialUndoError{
		OperationID:      "op1",
		NextRequiredUndo: next,
		Blocking:         []*MergeOperation{next},
	}
	if !strings.Contains(err.Error(), "op2") {
		t.Errorf("rejection must name the exact next required undo: %s", err.Error())
	}
}

func TestTenantIsolationError_Message(t *testing.T) {
	err := &TenantIsolationError{RequestedTenant: "org_1", ActualTenant: "org_2", Resource: "merge operation op-9"}
	msg := err.Error()
	if !strings.Contains(msg, "org_1") || !strings.Contains(msg, "org_2") {
		t.Errorf("isolation error must name both tenants: %s", msg)
	}
}
