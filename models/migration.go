package models

import (
	"log"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ChartOfAccount{}, &AccountMatching{}, &GeneralLedgerEntry{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
