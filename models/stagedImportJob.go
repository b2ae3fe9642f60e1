package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"github.com/google/uuid"
)

// sample values retained per detected column
const sampleValueLimit = 5

type DetectedColumn struct {
	ColumnName           string   `json:"column_name"`
	SampleValues         []string `json:"sample_values"`
	SuggestedTargetField string   `json:"suggested_target_field,omitempty"`
}

// StagedImportJob is the durable product of the staging phase. The full row
// set lives server-side; clients address it only by JobId and never re-upload
// the file. Jobs are read-only until consumed and expire after
// utils.StagedJobLifespan when abandoned.
type StagedImportJob struct {
	JobId           string              `json:"job_id"`
	SheetName       string              `json:"sheet_name"`
	Scope           ImportScope         `json:"scope"`
	ShopId          int                 `json:"shop_id"`
	ProgramId       int                 `json:"program_id"`
	Headers         []string            `json:"headers"`
	DetectedColumns []DetectedColumn    `json:"detected_columns"`
	SampleRows      []map[string]string `json:"sample_rows"`
	Rows            [][]string          `json:"rows"`
	ImportDate      *time.Time          `json:"import_date,omitempty"`
	LedgerDate      *time.Time          `json:"ledger_date,omitempty"`
	CreatedBy       string              `json:"created_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// StagedImportJobSummary is what the stage endpoint returns: everything the
// mapping UI needs, without the full row set.
type StagedImportJobSummary struct {
	JobId           string              `json:"job_id"`
	SheetName       string              `json:"sheet_name"`
	Scope           ImportScope         `json:"scope"`
	RowCount        int                 `json:"row_count"`
	DetectedColumns []DetectedColumn    `json:"detected_columns"`
	SampleRows      []map[string]string `json:"sample_rows"`
}

type StagedImportMetadata struct {
	ImportDate *time.Time
	LedgerDate *time.Time
}

// StageImport extracts the named sheet of a workbook into a StagedImportJob
// and persists it. The header row defines the detected columns; each column
// gets up to sampleValueLimit non-empty sample values and a best-guess target
// field from the catalog.
func StageImport(ctx context.Context, wb *Workbook, sheetName string, scope ImportScope, shopId int, programId int, meta StagedImportMetadata) (*StagedImportJob, error) {

	rows, err := wb.SheetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptyData
	}

	headers := rows[0]
	dataRows := rows[1:]

	job := &StagedImportJob{
		JobId:      uuid.NewString(),
		SheetName:  sheetName,
		Scope:      scope,
		ShopId:     shopId,
		ProgramId:  programId,
		Headers:    headers,
		Rows:       dataRows,
		ImportDate: meta.ImportDate,
		LedgerDate: meta.LedgerDate,
		CreatedAt:  time.Now().UTC(),
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		job.CreatedBy = userName
	}

	for colIdx, header := range headers {
		if header == "" {
			continue
		}
		col := DetectedColumn{
			ColumnName:           header,
			SuggestedTargetField: SuggestTargetField(scope, header),
		}
		for _, row := range dataRows {
			if len(col.SampleValues) >= sampleValueLimit {
				break
			}
			if colIdx < len(row) && row[colIdx] != "" {
				col.SampleValues = append(col.SampleValues, row[colIdx])
			}
		}
		job.DetectedColumns = append(job.DetectedColumns, col)
	}

	for i := 0; i < len(dataRows) && i < sampleValueLimit; i++ {
		sample := map[string]string{}
		for colIdx, header := range headers {
			if header == "" {
				continue
			}
			if colIdx < len(dataRows[i]) {
				sample[header] = dataRows[i][colIdx]
			} else {
				sample[header] = ""
			}
		}
		job.SampleRows = append(job.SampleRows, sample)
	}

	if err := saveStagedJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (job *StagedImportJob) Summary() *StagedImportJobSummary {
	return &StagedImportJobSummary{
		JobId:           job.JobId,
		SheetName:       job.SheetName,
		Scope:           job.Scope,
		RowCount:        len(job.Rows),
		DetectedColumns: job.DetectedColumns,
		SampleRows:      job.SampleRows,
	}
}

// ColumnIndex resolves a detected column name to its row index (first match).
func (job *StagedImportJob) ColumnIndex(columnName string) (int, bool) {
	for i, header := range job.Headers {
		if header == columnName {
			return i, true
		}
	}
	return 0, false
}

func stagedJobKey(jobId string) string {
	return "StagedImportJob:" + jobId
}

func saveStagedJob(job *StagedImportJob) error {
	return config.SetRedisObject(stagedJobKey(job.JobId), job, utils.StagedJobLifespan())
}

// GetStagedJob loads a staged job by id. Expired and consumed jobs surface as
// ErrJobNotFound.
func GetStagedJob(jobId string) (*StagedImportJob, error) {
	var job *StagedImportJob
	exists, err := config.GetRedisObject(stagedJobKey(jobId), &job)
	if err != nil {
		return nil, err
	}
	if !exists || job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// DiscardStagedJob removes a consumed job so it cannot be imported twice.
func DiscardStagedJob(jobId string) error {
	return config.RemoveRedisKey(stagedJobKey(jobId))
}

/* async import job status */

type ImportJobStatus struct {
	JobId     string         `json:"job_id"`
	State     ImportJobState `json:"state"`
	Result    *ImportResult  `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func importStatusKey(jobId string) string {
	return "ImportJobStatus:" + jobId
}

func SetImportJobStatus(status *ImportJobStatus) error {
	status.UpdatedAt = time.Now().UTC()
	return config.SetRedisObject(importStatusKey(status.JobId), status, utils.StagedJobLifespan())
}

func GetImportJobStatus(jobId string) (*ImportJobStatus, error) {
	var status *ImportJobStatus
	exists, err := config.GetRedisObject(importStatusKey(jobId), &status)
	if err != nil {
		return nil, err
	}
	if !exists || status == nil {
		return nil, ErrJobNotFound
	}
	return status, nil
}
