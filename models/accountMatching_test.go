package models

import (
	"context"
	"testing"
)

// NOTE: These tests are intentionally DB-free. They pin the matching state
// machine; the persistence around it (exclusivity counts, locking) requires
// MySQL and Redis.

func TestCanTransition_Confirm(t *testing.T) {
	if !CanTransition(MatchingStatusMatched, MatchingActionConfirm) {
		t.Fatal("auto candidates must be confirmable")
	}
	if !CanTransition(MatchingStatusPendingConfirmation, MatchingActionConfirm) {
		t.Fatal("pending candidates must be confirmable")
	}
	if CanTransition(MatchingStatusConfirmed, MatchingActionConfirm) {
		t.Fatal("confirming twice must be rejected")
	}
	if CanTransition(MatchingStatusRejected, MatchingActionConfirm) {
		t.Fatal("rejected candidates must be reset before confirmation")
	}
}

func TestCanTransition_Reject(t *testing.T) {
	if !CanTransition(MatchingStatusMatched, MatchingActionReject) {
		t.Fatal("auto candidates must be rejectable")
	}
	if !CanTransition(MatchingStatusPendingConfirmation, MatchingActionReject) {
		t.Fatal("pending candidates must be rejectable")
	}
	// rejecting a confirmed match is the undo path
	if !CanTransition(MatchingStatusConfirmed, MatchingActionReject) {
		t.Fatal("confirmed matches must be rejectable")
	}
	if CanTransition(MatchingStatusRejected, MatchingActionReject) {
		t.Fatal("rejecting twice must be a no-op error")
	}
}

func TestDecideMatches_EmptyBatch(t *testing.T) {
	// an empty batch never touches the database and reports nothing applied
	applied, err := DecideMatches(context.Background(), nil, MatchingActionConfirm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no applied ids, got %v", applied)
	}
}

func TestParseMatchingAction(t *testing.T) {
	if action, err := ParseMatchingAction("Confirm"); err != nil || action != MatchingActionConfirm {
		t.Fatalf("Confirm should parse, got %v (%v)", action, err)
	}
	if action, err := ParseMatchingAction("Reject"); err != nil || action != MatchingActionReject {
		t.Fatalf("Reject should parse, got %v (%v)", action, err)
	}
	if _, err := ParseMatchingAction("Destroy"); err == nil {
		t.Fatal("unknown actions must not parse")
	}
}

func TestMatchingStatusValid(t *testing.T) {
	for _, status := range []MatchingStatus{
		MatchingStatusMatched, MatchingStatusPendingConfirmation,
		MatchingStatusConfirmed, MatchingStatusRejected,
	} {
		if !status.Valid() {
			t.Errorf("%s should be valid", status)
		}
	}
	if MatchingStatus("Deleted").Valid() {
		t.Error("unknown status must be invalid")
	}
}

func TestParseImportScope(t *testing.T) {
	if scope, err := ParseImportScope(""); err != nil || scope != ImportScopeChartOfAccounts {
		t.Fatalf("empty scope should default to chart, got %v (%v)", scope, err)
	}
	if scope, err := ParseImportScope("ledger"); err != nil || scope != ImportScopeGeneralLedger {
		t.Fatalf("ledger should parse, got %v (%v)", scope, err)
	}
	if _, err := ParseImportScope("payroll"); err == nil {
		t.Fatal("unknown scopes must not parse")
	}
}
