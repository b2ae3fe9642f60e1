package models

import "bitbucket.org/mmdatafocus/reconcile_backend/utils"

// MappingField is one importable target field. The catalog is static; users
// never create fields, they only map spreadsheet columns onto them.
type MappingField struct {
	FieldName   string `json:"field_name"`
	DisplayName string `json:"display_name"`
	IsRequired  bool   `json:"is_required"`
	Description string `json:"description"`
}

var chartOfAccountFields = []MappingField{
	{FieldName: "accountNumber", DisplayName: "Account Number", IsRequired: true, Description: "Unique account number within the shop's chart"},
	{FieldName: "accountName", DisplayName: "Account Name", IsRequired: true, Description: "Display name of the account"},
	{FieldName: "description", DisplayName: "Description", IsRequired: false, Description: "Free-text account description"},
	{FieldName: "isActive", DisplayName: "Active", IsRequired: false, Description: "Whether the account is active (yes/no, true/false, 1/0)"},
	{FieldName: "openingBalance", DisplayName: "Opening Balance", IsRequired: false, Description: "Opening balance amount"},
}

var generalLedgerFields = append(append([]MappingField{}, chartOfAccountFields...),
	MappingField{FieldName: "debitAmount", DisplayName: "Debit", IsRequired: false, Description: "Debit amount column of the ledger export"},
	MappingField{FieldName: "creditAmount", DisplayName: "Credit", IsRequired: false, Description: "Credit amount column of the ledger export"},
	MappingField{FieldName: "ledgerDate", DisplayName: "Ledger Date", IsRequired: false, Description: "Posting date of the ledger row"},
)

// GetMappingFields returns the target-field catalog for the given scope.
func GetMappingFields(scope ImportScope) []MappingField {
	var src []MappingField
	if scope == ImportScopeGeneralLedger {
		src = generalLedgerFields
	} else {
		src = chartOfAccountFields
	}
	// copy so callers cannot mutate the catalog
	out := make([]MappingField, len(src))
	copy(out, src)
	return out
}

// SuggestTargetField matches a detected column name against the catalog using
// normalized comparison (case and whitespace insensitive, fieldName or
// displayName). Returns "" when nothing matches.
func SuggestTargetField(scope ImportScope, columnName string) string {
	normalized := utils.NormalizeKey(columnName)
	if normalized == "" {
		return ""
	}
	for _, field := range GetMappingFields(scope) {
		if normalized == utils.NormalizeKey(field.FieldName) ||
			normalized == utils.NormalizeKey(field.DisplayName) {
			return field.FieldName
		}
	}
	return ""
}

func requiredFields(scope ImportScope) []string {
	var names []string
	for _, field := range GetMappingFields(scope) {
		if field.IsRequired {
			names = append(names, field.FieldName)
		}
	}
	return names
}

func isKnownField(scope ImportScope, fieldName string) bool {
	for _, field := range GetMappingFields(scope) {
		if field.FieldName == fieldName {
			return true
		}
	}
	return false
}
