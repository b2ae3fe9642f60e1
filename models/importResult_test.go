package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestImportResultFinalize(t *testing.T) {
	clean := ImportResult{ProcessedRecords: 5, SuccessfulRecords: 5}
	clean.Finalize()
	if !clean.Success || !strings.Contains(clean.Message, "5") {
		t.Fatalf("unexpected clean result: %+v", clean)
	}

	partial := ImportResult{ProcessedRecords: 10, SuccessfulRecords: 9, FailedRecords: 1}
	partial.Finalize()
	if !partial.Success {
		t.Fatal("an accepted batch stays successful even with failed rows")
	}
	if !strings.Contains(partial.Message, "9 of 10") {
		t.Fatalf("message should report partial counts, got %q", partial.Message)
	}
}

func TestReconciliationStatsJsonContract(t *testing.T) {
	stats := ReconciliationStats{PotentialMatches: 3, MatchedAccounts: 2}

	payload, err := json.Marshal(&stats)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{"potential_matches", "matched_accounts", "match_rate"} {
		if !strings.Contains(string(payload), `"`+key+`"`) {
			t.Fatalf("stats payload must expose %q, got %s", key, payload)
		}
	}
}

func TestReconciliationStatsExportWorkbook(t *testing.T) {
	stats := ReconciliationStats{
		TotalShopAccounts: 10,
		MatchedAccounts:   4,
		UnmatchedAccounts: 6,
		MatchRate:         0.4,
		AverageConfidence: 0.8731,
	}

	file, err := stats.ExportWorkbook()
	if err != nil {
		t.Fatalf("ExportWorkbook: %v", err)
	}
	defer file.Close()

	rows, err := file.GetRows("Reconciliation")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) < 10 {
		t.Fatalf("expected a full metric sheet, got %d rows", len(rows))
	}
	if rows[0][0] != "Metric" || rows[0][1] != "Value" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}

	found := false
	for _, row := range rows {
		if len(row) >= 2 && row[0] == "Match rate" {
			found = true
			if row[1] != "40.00%" {
				t.Fatalf("match rate should render as a percentage, got %q", row[1])
			}
		}
	}
	if !found {
		t.Fatal("match rate row missing from export")
	}
}
