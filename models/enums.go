package models

import "errors"

type MatchingStatus string

const (
	MatchingStatusMatched             MatchingStatus = "Matched"
	MatchingStatusPendingConfirmation MatchingStatus = "PendingConfirmation"
	MatchingStatusConfirmed           MatchingStatus = "Confirmed"
	MatchingStatusRejected            MatchingStatus = "Rejected"
)

func (s MatchingStatus) Valid() bool {
	switch s {
	case MatchingStatusMatched, MatchingStatusPendingConfirmation,
		MatchingStatusConfirmed, MatchingStatusRejected:
		return true
	}
	return false
}

type MatchingMethod string

const (
	MatchingMethodAuto   MatchingMethod = "Auto"
	MatchingMethodManual MatchingMethod = "Manual"
)

type MatchingAction string

const (
	MatchingActionConfirm MatchingAction = "Confirm"
	MatchingActionReject  MatchingAction = "Reject"
)

func ParseMatchingAction(s string) (MatchingAction, error) {
	switch MatchingAction(s) {
	case MatchingActionConfirm:
		return MatchingActionConfirm, nil
	case MatchingActionReject:
		return MatchingActionReject, nil
	}
	return "", errors.New("invalid matching action")
}

// ImportScope selects the mapping-field catalog for a staged import.
type ImportScope string

const (
	ImportScopeChartOfAccounts ImportScope = "chart"
	ImportScopeGeneralLedger   ImportScope = "ledger"
)

func ParseImportScope(s string) (ImportScope, error) {
	switch ImportScope(s) {
	case "", ImportScopeChartOfAccounts:
		return ImportScopeChartOfAccounts, nil
	case ImportScopeGeneralLedger:
		return ImportScopeGeneralLedger, nil
	}
	return "", errors.New("invalid import scope")
}

type ImportJobState string

const (
	ImportJobStateProcessing ImportJobState = "Processing"
	ImportJobStateCompleted  ImportJobState = "Completed"
	ImportJobStateFailed     ImportJobState = "Failed"
)
