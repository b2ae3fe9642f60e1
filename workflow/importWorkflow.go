package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/models"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const importWorkers = 4

type ImportInput struct {
	JobId     string                 `json:"job_id" binding:"required"`
	Mappings  []models.ColumnMapping `json:"mappings" binding:"required"`
	ShopId    int                    `json:"shop_id"`
	ProgramId int                    `json:"program_id"`
}

// ImportRecord is one data row projected through the mapping plan. RowNumber
// is the spreadsheet row (header is row 1) so error messages line up with
// what the user sees in their file.
type ImportRecord struct {
	RowNumber int
	Fields    map[string]string
}

// BuildImportRecords projects every staged row through the plan and validates
// required fields. Rows that fail validation become error strings instead of
// records; a bad row never blocks its neighbours.
func BuildImportRecords(job *models.StagedImportJob, plan models.MappingPlan) ([]ImportRecord, []string) {

	type column struct {
		targetField string
		index       int
	}
	columns := make([]column, 0, len(plan))
	for targetField, sourceColumn := range plan {
		if idx, ok := job.ColumnIndex(sourceColumn); ok {
			columns = append(columns, column{targetField: targetField, index: idx})
		}
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].targetField < columns[j].targetField })

	required := map[string]bool{}
	for _, field := range models.GetMappingFields(job.Scope) {
		if field.IsRequired {
			required[field.FieldName] = true
		}
	}

	var records []ImportRecord
	var rowErrors []string
	for i, row := range job.Rows {
		rowNumber := i + 2

		fields := make(map[string]string, len(columns))
		for _, col := range columns {
			value := ""
			if col.index < len(row) {
				value = strings.TrimSpace(row[col.index])
			}
			fields[col.targetField] = value
		}

		var missing []string
		for _, col := range columns {
			if required[col.targetField] && fields[col.targetField] == "" {
				missing = append(missing, col.targetField)
			}
		}
		if len(missing) > 0 {
			rowErrors = append(rowErrors,
				fmt.Sprintf("row %d: %s is required", rowNumber, strings.Join(missing, ", ")))
			continue
		}
		records = append(records, ImportRecord{RowNumber: rowNumber, Fields: fields})
	}
	return records, rowErrors
}

func parseActiveFlag(value string) bool {
	switch utils.NormalizeKey(value) {
	case "false", "0", "no", "n", "inactive":
		return false
	}
	return true
}

// importRecord writes one projected row to the database. Chart rows upsert
// the account; ledger rows additionally append a journal line.
func importRecord(ctx context.Context, job *models.StagedImportJob, input ImportInput, record ImportRecord) error {

	openingBalance := decimal.Zero
	if raw := record.Fields["openingBalance"]; raw != "" {
		parsed, err := utils.ParseDecimal(raw)
		if err != nil {
			return fmt.Errorf("invalid openingBalance %q", raw)
		}
		openingBalance = parsed
	}

	account, err := models.UpsertChartOfAccount(ctx, &models.NewChartOfAccount{
		AccountNumber:  record.Fields["accountNumber"],
		AccountName:    record.Fields["accountName"],
		Description:    record.Fields["description"],
		ProgramId:      input.ProgramId,
		ShopId:         input.ShopId,
		OpeningBalance: openingBalance,
	})
	if err != nil {
		return err
	}

	if raw, ok := record.Fields["isActive"]; ok && raw != "" && !parseActiveFlag(raw) {
		if _, err := models.MarkChartOfAccountActive(ctx, account.ID, false); err != nil {
			return err
		}
	}

	if job.Scope != models.ImportScopeGeneralLedger {
		return nil
	}

	entry := models.NewGeneralLedgerEntry{
		ChartOfAccountId: account.ID,
		Description:      record.Fields["description"],
	}
	if raw := record.Fields["debitAmount"]; raw != "" {
		if entry.DebitAmount, err = utils.ParseDecimal(raw); err != nil {
			return fmt.Errorf("invalid debitAmount %q", raw)
		}
	}
	if raw := record.Fields["creditAmount"]; raw != "" {
		if entry.CreditAmount, err = utils.ParseDecimal(raw); err != nil {
			return fmt.Errorf("invalid creditAmount %q", raw)
		}
	}
	switch {
	case record.Fields["ledgerDate"] != "":
		parsed, err := time.Parse("2006-01-02", record.Fields["ledgerDate"])
		if err != nil {
			return fmt.Errorf("invalid ledgerDate %q", record.Fields["ledgerDate"])
		}
		entry.LedgerDate = parsed
	case job.LedgerDate != nil:
		entry.LedgerDate = *job.LedgerDate
	default:
		return fmt.Errorf("ledgerDate is required")
	}
	_, err = models.CreateGeneralLedgerEntry(ctx, &entry)
	return err
}

// RunImport consumes a staged job: resolves the mapping plan, projects every
// row, and writes the valid rows. Partial failure is the contract here; bad
// rows are reported per row number and the rest commit anyway. The staged job
// is discarded once the run completes.
func RunImport(ctx context.Context, logger *logrus.Logger, input ImportInput) (*models.ImportResult, error) {

	job, err := models.GetStagedJob(input.JobId)
	if err != nil {
		return nil, err
	}
	if input.ShopId == 0 {
		input.ShopId = job.ShopId
	}
	if input.ProgramId == 0 {
		input.ProgramId = job.ProgramId
	}

	plan, err := models.ResolveMappings(job, input.Mappings)
	if err != nil {
		return nil, err
	}

	records, rowErrors := BuildImportRecords(job, plan)

	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"cid":        cid,
		"job_id":     job.JobId,
		"sheet":      job.SheetName,
		"rows":       len(job.Rows),
		"valid_rows": len(records),
	}).Info("[Import] run started")

	// Workers write concurrently; errors are indexed by record so the merged
	// report stays in row order no matter which worker hit them.
	importErrors := make([]string, len(records))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < importWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				record := records[idx]
				if err := importRecord(ctx, job, input, record); err != nil {
					importErrors[idx] = fmt.Sprintf("row %d: %v", record.RowNumber, err)
				}
			}
		}()
	}
	for idx := range records {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	result := models.ImportResult{
		ProcessedRecords: len(job.Rows),
		Errors:           rowErrors,
	}
	succeeded := 0
	for _, message := range importErrors {
		if message == "" {
			succeeded++
		} else {
			result.Errors = append(result.Errors, message)
		}
	}
	result.SuccessfulRecords = succeeded
	result.FailedRecords = result.ProcessedRecords - succeeded
	result.Finalize()

	if err := models.DiscardStagedJob(job.JobId); err != nil {
		config.LogError(logger, "importWorkflow.go", "RunImport", "Discarding staged job", job.JobId, err)
	}

	logger.WithFields(logrus.Fields{
		"cid":        cid,
		"job_id":     job.JobId,
		"processed":  result.ProcessedRecords,
		"successful": result.SuccessfulRecords,
		"failed":     result.FailedRecords,
	}).Info("[Import] run finished")
	return &result, nil
}

// RunImportAsync executes the import in the background, tracking progress in
// redis under the job id so clients can poll.
func RunImportAsync(ctx context.Context, logger *logrus.Logger, input ImportInput) error {

	status := models.ImportJobStatus{
		JobId:     input.JobId,
		State:     models.ImportJobStateProcessing,
		UpdatedAt: time.Now().UTC(),
	}
	if err := models.SetImportJobStatus(&status); err != nil {
		return err
	}

	go func() {
		// detach from the request context; the caller has already returned
		runCtx := context.WithoutCancel(ctx)
		result, err := RunImport(runCtx, logger, input)
		status := models.ImportJobStatus{
			JobId:     input.JobId,
			UpdatedAt: time.Now().UTC(),
		}
		if err != nil {
			status.State = models.ImportJobStateFailed
			status.Error = err.Error()
		} else {
			status.State = models.ImportJobStateCompleted
			status.Result = result
		}
		if err := models.SetImportJobStatus(&status); err != nil {
			config.LogError(logger, "importWorkflow.go", "RunImportAsync", "Updating job status", input.JobId, err)
		}
	}()
	return nil
}

// WaitForImport polls the status record written by RunImportAsync until the
// job leaves the Processing state, and returns the terminal status.
func WaitForImport(ctx context.Context, policy RetryPolicy, jobId string) (*models.ImportJobStatus, error) {

	var latest *models.ImportJobStatus
	outcome, err := policy.Poll(ctx, func(int) (bool, error) {
		status, err := models.GetImportJobStatus(jobId)
		if err != nil {
			return false, err
		}
		latest = status
		return status.State != models.ImportJobStateProcessing, nil
	})
	switch outcome {
	case PollSucceeded:
		return latest, nil
	case PollTimedOut:
		return latest, fmt.Errorf("import %s did not finish in time", jobId)
	default:
		return latest, err
	}
}
