// seed-master-chart loads the program-level master chart of accounts from a
// spreadsheet. Master rows are the reference side of matching; shops never
// edit them through the API.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/seed-master-chart -file master-chart.xlsx -program 1
//
// The first sheet is used. Expected headers: Account Number, Account Name,
// and optionally Description and Opening Balance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/models"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	filePath := flag.String("file", "", "path to the master chart spreadsheet (.xlsx or .csv)")
	programId := flag.Int("program", 0, "program id the master chart belongs to")
	flag.Parse()

	if *filePath == "" || *programId == 0 {
		fmt.Fprintln(os.Stderr, "usage: seed-master-chart -file <spreadsheet> -program <id>")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserNameInContext(ctx, "Seed")

	data, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *filePath, err)
		os.Exit(1)
	}
	wb, err := models.ParseWorkbook(data, *filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", *filePath, err)
		os.Exit(1)
	}
	sheets := wb.AnalyzeSheets()
	if len(sheets) == 0 {
		fmt.Fprintln(os.Stderr, "spreadsheet has no sheets")
		os.Exit(1)
	}
	rows, err := wb.SheetRows(sheets[0].Name)
	if err != nil || len(rows) < 2 {
		fmt.Fprintln(os.Stderr, "spreadsheet has no data rows")
		os.Exit(1)
	}

	// Resolve header positions through the shared catalog so the tool accepts
	// the same column spellings the import API does.
	headerIndex := map[string]int{}
	for idx, header := range rows[0] {
		if field := models.SuggestTargetField(models.ImportScopeChartOfAccounts, header); field != "" {
			headerIndex[field] = idx
		}
	}
	if _, ok := headerIndex["accountNumber"]; !ok {
		fmt.Fprintln(os.Stderr, "missing Account Number column")
		os.Exit(1)
	}
	if _, ok := headerIndex["accountName"]; !ok {
		fmt.Fprintln(os.Stderr, "missing Account Name column")
		os.Exit(1)
	}

	cell := func(row []string, field string) string {
		idx, ok := headerIndex[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	created := 0
	for i, row := range rows[1:] {
		number := cell(row, "accountNumber")
		name := cell(row, "accountName")
		if number == "" || name == "" {
			fmt.Fprintf(os.Stderr, "skipping row %d: account number and name are required\n", i+2)
			continue
		}
		openingBalance := decimal.Zero
		if raw := cell(row, "openingBalance"); raw != "" {
			if openingBalance, err = utils.ParseDecimal(raw); err != nil {
				fmt.Fprintf(os.Stderr, "skipping row %d: invalid opening balance %q\n", i+2, raw)
				continue
			}
		}
		_, err := models.UpsertChartOfAccount(ctx, &models.NewChartOfAccount{
			AccountNumber:  number,
			AccountName:    name,
			Description:    cell(row, "description"),
			ProgramId:      *programId,
			ShopId:         0,
			OpeningBalance: openingBalance,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "row %d: %v\n", i+2, err)
			continue
		}
		created++
	}
	fmt.Printf("seeded %d master accounts for program %d\n", created, *programId)
}
