package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/reconcile_backend/models"
)

// NOTE: These tests are intentionally DB-free. Scoring and ranking are pure
// functions; persistence of the resulting candidates is covered by the model
// layer and exercised in environments that can run MySQL.

func shopAccount(number, name string) *models.ChartOfAccount {
	return &models.ChartOfAccount{AccountNumber: number, AccountName: name, ShopId: 7, ProgramId: 1}
}

func masterAccount(id int, number, name string) *models.ChartOfAccount {
	return &models.ChartOfAccount{ID: id, AccountNumber: number, AccountName: name, ProgramId: 1}
}

func TestScorePair_ExactMatchIsPerfect(t *testing.T) {
	confidence, _ := ScorePair(shopAccount("4000", "Sales Revenue"), masterAccount(1, "4000", "Sales Revenue"))
	if confidence != 1 {
		t.Fatalf("expected confidence 1.0 for exact match, got %v", confidence)
	}

	// normalization: case and extra whitespace must not matter
	confidence, _ = ScorePair(shopAccount("4000", "  sales   REVENUE "), masterAccount(1, "4000", "Sales Revenue"))
	if confidence != 1 {
		t.Fatalf("expected confidence 1.0 after normalization, got %v", confidence)
	}
}

func TestScorePair_NoSignalScoresZero(t *testing.T) {
	confidence, _ := ScorePair(shopAccount("9999", "Petty Cash"), masterAccount(1, "1000", "Inventory"))
	if confidence >= 0.5 {
		t.Fatalf("unrelated accounts should score low, got %v", confidence)
	}

	confidence, _ = ScorePair(shopAccount("", ""), masterAccount(1, "1000", "Inventory"))
	if confidence != 0 {
		t.Fatalf("empty shop account fields should score 0, got %v", confidence)
	}
}

func TestScorePair_NumberOutweighsName(t *testing.T) {
	// same number, different name
	numberHit, _ := ScorePair(shopAccount("4000", "Shop Sales"), masterAccount(1, "4000", "Revenue"))
	// same name, unrelated number
	nameHit, _ := ScorePair(shopAccount("9876", "Revenue"), masterAccount(1, "4000", "Revenue"))

	if numberHit <= nameHit {
		t.Fatalf("number match (%v) should outweigh name match (%v)", numberHit, nameHit)
	}
}

func TestScorePair_TokenOverlapBeatsEditDistance(t *testing.T) {
	// Reordered tokens are nearly unmatchable by edit distance alone.
	confidence, _ := ScorePair(shopAccount("4000", "Revenue Sales"), masterAccount(1, "4000", "Sales Revenue"))
	if confidence < 0.9 {
		t.Fatalf("reordered name tokens with exact number should score high, got %v", confidence)
	}
}

func TestRankCandidates_DeterministicOrder(t *testing.T) {
	shop := shopAccount("4000", "Sales")
	masters := []*models.ChartOfAccount{
		masterAccount(3, "4002", "Sales"),
		masterAccount(1, "4000", "Sales"),
		masterAccount(2, "4001", "Sales"),
	}

	first := RankCandidates(shop, masters, 0.5)
	if len(first) == 0 {
		t.Fatal("expected candidates")
	}
	if first[0].Master.AccountNumber != "4000" {
		t.Fatalf("expected exact number first, got %s", first[0].Master.AccountNumber)
	}

	// Same input in any order must produce the same ranking.
	for run := 0; run < 5; run++ {
		again := RankCandidates(shop, masters, 0.5)
		if len(again) != len(first) {
			t.Fatalf("run %d: candidate count changed: %d vs %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i].Master.ID != first[i].Master.ID {
				t.Fatalf("run %d: order changed at position %d", run, i)
			}
		}
	}
}

func TestRankCandidates_TieBreakByAccountNumber(t *testing.T) {
	shop := shopAccount("", "Utilities")
	// identical names and no numbers: confidences tie exactly
	masters := []*models.ChartOfAccount{
		masterAccount(9, "6200", "Utilities"),
		masterAccount(4, "6100", "Utilities"),
	}

	ranked := RankCandidates(shop, masters, 0.1)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ranked))
	}
	if ranked[0].Confidence != ranked[1].Confidence {
		t.Fatalf("expected a tie, got %v vs %v", ranked[0].Confidence, ranked[1].Confidence)
	}
	if ranked[0].Master.AccountNumber != "6100" {
		t.Fatalf("tie must break by ascending account number, got %s first", ranked[0].Master.AccountNumber)
	}
}

func TestRankCandidates_MinConfidenceFilters(t *testing.T) {
	shop := shopAccount("4000", "Sales Revenue")
	masters := []*models.ChartOfAccount{
		masterAccount(1, "4000", "Sales Revenue"), // exact
		masterAccount(2, "4100", "Service Revenue"),
	}

	loose := RankCandidates(shop, masters, 0.5)
	strict := RankCandidates(shop, masters, 0.99)

	if len(strict) >= len(loose) {
		t.Fatalf("raising min confidence should shrink the candidate set: %d vs %d", len(strict), len(loose))
	}
	if len(strict) != 1 || strict[0].Master.ID != 1 {
		t.Fatalf("only the exact match should survive a 0.99 threshold")
	}
}
