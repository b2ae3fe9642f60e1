package models

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func xlsxBytes(t *testing.T, sheets map[string][][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
			first = false
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatal(err)
			}
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseWorkbook_Xlsx(t *testing.T) {
	data := xlsxBytes(t, map[string][][]interface{}{
		"Accounts": {
			{"Account Number", "Account Name"},
			{"1000", "Cash"},
			{"2000", "Payables"},
		},
	})

	wb, err := ParseWorkbook(data, "chart.xlsx")
	if err != nil {
		t.Fatalf("ParseWorkbook: %v", err)
	}

	infos := wb.AnalyzeSheets()
	if len(infos) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(infos))
	}
	if infos[0].Name != "Accounts" || infos[0].Rows != 3 || infos[0].Columns != 2 {
		t.Fatalf("unexpected sheet info: %+v", infos[0])
	}

	rows, err := wb.SheetRows("Accounts")
	if err != nil {
		t.Fatalf("SheetRows: %v", err)
	}
	if rows[1][0] != "1000" || rows[1][1] != "Cash" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestParseWorkbook_CSV(t *testing.T) {
	wb, err := ParseWorkbook([]byte("Account Number,Account Name\n1000,Cash\n"), "chart.csv")
	if err != nil {
		t.Fatalf("ParseWorkbook: %v", err)
	}

	// CSV files get a single synthetic sheet
	infos := wb.AnalyzeSheets()
	if len(infos) != 1 || infos[0].Name != "Sheet1" {
		t.Fatalf("unexpected sheets: %+v", infos)
	}
	rows, err := wb.SheetRows("Sheet1")
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v (%v)", rows, err)
	}
}

func TestParseWorkbook_Garbage(t *testing.T) {
	if _, err := ParseWorkbook([]byte("not a spreadsheet"), "chart.xlsx"); !errors.Is(err, ErrUnreadableFile) {
		t.Fatalf("expected ErrUnreadableFile, got %v", err)
	}
}

func TestSheetRows_UnknownSheet(t *testing.T) {
	wb, err := ParseWorkbook([]byte("a,b\n1,2\n"), "x.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wb.SheetRows("Missing"); !errors.Is(err, ErrInvalidSheet) {
		t.Fatalf("expected ErrInvalidSheet, got %v", err)
	}
}

func TestPreviewSheet_LimitsAndPads(t *testing.T) {
	csv := "h1,h2,h3\n"
	for i := 0; i < 10; i++ {
		csv += "a,b,c\n"
	}
	csv += "short\n"
	wb, err := ParseWorkbook([]byte(csv), "x.csv")
	if err != nil {
		t.Fatal(err)
	}

	preview, err := wb.PreviewSheet("Sheet1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(preview.Rows) != PreviewRowLimit {
		t.Fatalf("expected %d preview rows, got %d", PreviewRowLimit, len(preview.Rows))
	}

	// ask for everything; the short row must be padded to header width
	preview, err = wb.PreviewSheet("Sheet1", 100)
	if err != nil {
		t.Fatal(err)
	}
	last := preview.Rows[len(preview.Rows)-1]
	if len(last) != 3 || last[0] != "short" || last[1] != "" || last[2] != "" {
		t.Fatalf("short row should be padded: %v", last)
	}
}

func TestStageImport_DetectsColumnsAndSamples(t *testing.T) {
	csv := "Account Number,Account Name,Notes\n"
	csv += "1000,Cash,first\n"
	csv += "2000,Payables,\n"
	csv += "3000,Equity,third\n"
	wb, err := ParseWorkbook([]byte(csv), "chart.csv")
	if err != nil {
		t.Fatal(err)
	}

	job, err := StageImport(context.Background(), wb, "Sheet1", ImportScopeChartOfAccounts, 7, 1, StagedImportMetadata{})
	if err != nil {
		t.Fatalf("StageImport: %v", err)
	}

	if job.JobId == "" {
		t.Fatal("staged job must carry a job id")
	}
	if len(job.Rows) != 3 {
		t.Fatalf("expected 3 data rows, got %d", len(job.Rows))
	}
	if len(job.DetectedColumns) != 3 {
		t.Fatalf("expected 3 detected columns, got %d", len(job.DetectedColumns))
	}

	byName := map[string]DetectedColumn{}
	for _, col := range job.DetectedColumns {
		byName[col.ColumnName] = col
	}
	if byName["Account Number"].SuggestedTargetField != "accountNumber" {
		t.Fatalf("expected suggestion for Account Number, got %q", byName["Account Number"].SuggestedTargetField)
	}
	if byName["Notes"].SuggestedTargetField != "" {
		t.Fatalf("Notes should have no suggestion, got %q", byName["Notes"].SuggestedTargetField)
	}
	// samples skip empty cells
	if len(byName["Notes"].SampleValues) != 2 {
		t.Fatalf("expected 2 non-empty samples for Notes, got %v", byName["Notes"].SampleValues)
	}

	summary := job.Summary()
	if summary.RowCount != 3 {
		t.Fatalf("summary row count should be 3, got %d", summary.RowCount)
	}
	if len(summary.SampleRows) != 3 {
		t.Fatalf("expected 3 sample rows, got %d", len(summary.SampleRows))
	}
}

func TestStageImport_EmptySheet(t *testing.T) {
	wb, err := ParseWorkbook([]byte("only,a,header\n"), "x.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := StageImport(context.Background(), wb, "Sheet1", ImportScopeChartOfAccounts, 7, 1, StagedImportMetadata{}); !errors.Is(err, ErrEmptyData) {
		t.Fatalf("expected ErrEmptyData, got %v", err)
	}
}
