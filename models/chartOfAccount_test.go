package models

import (
	"reflect"
	"strings"
	"testing"
)

// NOTE: These tests are intentionally DB-free. They pin the schema contract
// that lets concurrent import workers upsert safely; exercising the race
// itself requires MySQL.

func TestChartOfAccountScopedUniqueIndex(t *testing.T) {
	// account identity is (account_number, program_id, shop_id); the
	// database enforces it so a check-then-create race cannot produce
	// duplicate accounts
	scopeFields := []string{"AccountNumber", "ProgramId", "ShopId"}

	accountType := reflect.TypeOf(ChartOfAccount{})
	for _, name := range scopeFields {
		field, ok := accountType.FieldByName(name)
		if !ok {
			t.Fatalf("ChartOfAccount is missing field %s", name)
		}
		if !strings.Contains(field.Tag.Get("gorm"), "uniqueIndex:uix_account_scope") {
			t.Fatalf("%s must be part of the uix_account_scope unique index, tag is %q",
				name, field.Tag.Get("gorm"))
		}
	}

	for i := 0; i < accountType.NumField(); i++ {
		field := accountType.Field(i)
		if !strings.Contains(field.Tag.Get("gorm"), "uniqueIndex:uix_account_scope") {
			continue
		}
		found := false
		for _, name := range scopeFields {
			if field.Name == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("unexpected field %s in the uix_account_scope index", field.Name)
		}
	}
}
