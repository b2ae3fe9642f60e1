package models

import "errors"

// Error kinds returned by the staging/import/matching pipeline. Handlers map
// these onto HTTP statuses; everything here is scoped to a single operation.
var (
	ErrUnreadableFile    = errors.New("file could not be parsed as a spreadsheet")
	ErrInvalidSheet      = errors.New("sheet does not exist in workbook")
	ErrEmptyData         = errors.New("sheet contains no data rows")
	ErrUnknownColumn     = errors.New("mapped source column was not detected in the staged sheet")
	ErrIncompleteMapping = errors.New("required fields are missing from the column mapping")
	ErrJobNotFound       = errors.New("staged import job not found or expired")
	ErrAlreadyConfirmed  = errors.New("shop account already has a confirmed match")
	ErrInvalidConfidence = errors.New("matching confidence must be within [0,1]")
	ErrScopeMismatch     = errors.New("shop account and master account belong to different programs")
)
