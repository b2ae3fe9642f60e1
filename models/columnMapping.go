package models

import (
	"fmt"
	"sort"
)

// ColumnMapping assigns a spreadsheet column to a catalog target field.
// IsRequired is a denormalized copy of the catalog flag for display.
type ColumnMapping struct {
	SourceColumn string `json:"source_column" binding:"required"`
	TargetField  string `json:"target_field" binding:"required"`
	IsRequired   bool   `json:"is_required"`
}

// MappingPlan is the resolved mapping keyed by target field. Keying by target
// makes the last-write-wins rule explicit: submitting two mappings for the
// same target field keeps the later one. A source column may feed any number
// of target fields.
type MappingPlan map[string]string

// SourceFor returns the source column mapped to a target field.
func (p MappingPlan) SourceFor(targetField string) (string, bool) {
	source, ok := p[targetField]
	return source, ok
}

// ResolveMappings validates caller-supplied mappings against a staged job and
// produces the plan used by the import executor. Pure guard; mutates nothing.
func ResolveMappings(job *StagedImportJob, mappings []ColumnMapping) (MappingPlan, error) {
	detected := make(map[string]bool, len(job.DetectedColumns))
	for _, col := range job.DetectedColumns {
		detected[col.ColumnName] = true
	}

	plan := make(MappingPlan, len(mappings))
	for _, m := range mappings {
		if !detected[m.SourceColumn] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, m.SourceColumn)
		}
		if !isKnownField(job.Scope, m.TargetField) {
			return nil, fmt.Errorf("unknown target field %q", m.TargetField)
		}
		// insertion overwrite: the last mapping submitted for a target wins
		plan[m.TargetField] = m.SourceColumn
	}

	var missing []string
	for _, name := range requiredFields(job.Scope) {
		if _, ok := plan[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %v", ErrIncompleteMapping, missing)
	}

	return plan, nil
}
