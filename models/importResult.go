package models

import "fmt"

// ImportResult summarizes one import run. ProcessedRecords is always
// SuccessfulRecords + FailedRecords; a run with failures still commits the
// rows that passed.
type ImportResult struct {
	Success           bool     `json:"success"`
	ProcessedRecords  int      `json:"processed_records"`
	SuccessfulRecords int      `json:"successful_records"`
	FailedRecords     int      `json:"failed_records"`
	Errors            []string `json:"errors,omitempty"`
	Message           string   `json:"message"`
}

// Finalize marks the batch as accepted and derives the human message from the
// counters. Per-row failures are reported through FailedRecords and Errors;
// they never clear the success flag.
func (result *ImportResult) Finalize() {
	result.Success = true
	if result.FailedRecords == 0 {
		result.Message = fmt.Sprintf("imported %d records", result.SuccessfulRecords)
	} else {
		result.Message = fmt.Sprintf("imported %d of %d records, %d failed",
			result.SuccessfulRecords, result.ProcessedRecords, result.FailedRecords)
	}
}
