package workflow

import (
	"context"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/reconcile_backend/models"
)

// NOTE: These tests are intentionally DB-free. Row projection and the
// partial-failure accounting are pure; the database writes behind
// importRecord are exercised where MySQL is available.

func stagedJobFromCSV(t *testing.T, csv string) *models.StagedImportJob {
	t.Helper()
	wb, err := models.ParseWorkbook([]byte(csv), "upload.csv")
	if err != nil {
		t.Fatalf("ParseWorkbook: %v", err)
	}
	job, err := models.StageImport(context.Background(), wb, "Sheet1", models.ImportScopeChartOfAccounts, 7, 1, models.StagedImportMetadata{})
	if err != nil {
		t.Fatalf("StageImport: %v", err)
	}
	return job
}

func chartPlan(t *testing.T, job *models.StagedImportJob) models.MappingPlan {
	t.Helper()
	plan, err := models.ResolveMappings(job, []models.ColumnMapping{
		{SourceColumn: "Acct No", TargetField: "accountNumber"},
		{SourceColumn: "Acct Name", TargetField: "accountName"},
	})
	if err != nil {
		t.Fatalf("ResolveMappings: %v", err)
	}
	return plan
}

func TestBuildImportRecords_BadRowDoesNotBlockOthers(t *testing.T) {
	rows := []string{"Acct No,Acct Name"}
	for i := 0; i < 10; i++ {
		if i == 5 {
			// spreadsheet row 7: missing the required name
			rows = append(rows, "4005,")
			continue
		}
		rows = append(rows, "400"+string(rune('0'+i))+",Account "+string(rune('0'+i)))
	}
	job := stagedJobFromCSV(t, strings.Join(rows, "\n"))

	records, rowErrors := BuildImportRecords(job, chartPlan(t, job))

	if len(records) != 9 {
		t.Fatalf("expected 9 valid records, got %d", len(records))
	}
	if len(rowErrors) != 1 {
		t.Fatalf("expected 1 row error, got %d: %v", len(rowErrors), rowErrors)
	}
	if !strings.Contains(rowErrors[0], "row 7") || !strings.Contains(rowErrors[0], "accountName") {
		t.Fatalf("row error should name the spreadsheet row and field, got %q", rowErrors[0])
	}

	result := models.ImportResult{
		ProcessedRecords:  len(job.Rows),
		SuccessfulRecords: len(records),
		FailedRecords:     len(job.Rows) - len(records),
		Errors:            rowErrors,
	}
	result.Finalize()
	if !result.Success {
		t.Fatal("the batch was accepted, so failed rows must not clear success")
	}
	if result.ProcessedRecords != result.SuccessfulRecords+result.FailedRecords {
		t.Fatalf("processed (%d) must equal successful (%d) + failed (%d)",
			result.ProcessedRecords, result.SuccessfulRecords, result.FailedRecords)
	}
}

func TestBuildImportRecords_RowNumbersMatchSpreadsheet(t *testing.T) {
	job := stagedJobFromCSV(t, "Acct No,Acct Name\n1000,Cash\n2000,Payables")

	records, rowErrors := BuildImportRecords(job, chartPlan(t, job))
	if len(rowErrors) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrors)
	}
	// header is spreadsheet row 1, so data starts at 2
	if records[0].RowNumber != 2 || records[1].RowNumber != 3 {
		t.Fatalf("row numbers should be spreadsheet rows, got %d and %d",
			records[0].RowNumber, records[1].RowNumber)
	}
	if records[0].Fields["accountNumber"] != "1000" || records[0].Fields["accountName"] != "Cash" {
		t.Fatalf("unexpected projection: %v", records[0].Fields)
	}
}

func TestBuildImportRecords_ShortRowsArePadded(t *testing.T) {
	// second data row has no name cell at all
	job := stagedJobFromCSV(t, "Acct No,Acct Name\n1000,Cash\n2000")

	records, rowErrors := BuildImportRecords(job, chartPlan(t, job))
	if len(records) != 1 {
		t.Fatalf("expected 1 valid record, got %d", len(records))
	}
	if len(rowErrors) != 1 || !strings.Contains(rowErrors[0], "row 3") {
		t.Fatalf("short row should fail required validation for row 3, got %v", rowErrors)
	}
}

func TestBuildImportRecords_ValuesAreTrimmed(t *testing.T) {
	job := stagedJobFromCSV(t, "Acct No,Acct Name\n 1000 ,  Cash  ")

	records, _ := BuildImportRecords(job, chartPlan(t, job))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Fields["accountNumber"] != "1000" || records[0].Fields["accountName"] != "Cash" {
		t.Fatalf("cell values should be trimmed, got %v", records[0].Fields)
	}
}

func TestParseActiveFlag(t *testing.T) {
	for _, value := range []string{"false", "FALSE", "0", "no", "Inactive"} {
		if parseActiveFlag(value) {
			t.Fatalf("%q should parse as inactive", value)
		}
	}
	for _, value := range []string{"true", "1", "yes", "active", "anything-else"} {
		if !parseActiveFlag(value) {
			t.Fatalf("%q should parse as active", value)
		}
	}
}
