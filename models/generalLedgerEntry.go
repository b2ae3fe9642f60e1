package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"github.com/shopspring/decimal"
)

// GeneralLedgerEntry is one imported journal line, kept append-only. Entries
// reference accounts by id after the importer has upserted the account row.
type GeneralLedgerEntry struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ChartOfAccountId int             `gorm:"index;not null" json:"chart_of_account_id"`
	LedgerDate       time.Time       `gorm:"index;not null" json:"ledger_date"`
	Description      string          `gorm:"type:text" json:"description"`
	DebitAmount      decimal.Decimal `gorm:"type:decimal(24,6)" json:"debit_amount"`
	CreditAmount     decimal.Decimal `gorm:"type:decimal(24,6)" json:"credit_amount"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewGeneralLedgerEntry struct {
	ChartOfAccountId int             `json:"chart_of_account_id" binding:"required"`
	LedgerDate       time.Time       `json:"ledger_date" binding:"required"`
	Description      string          `json:"description"`
	DebitAmount      decimal.Decimal `json:"debit_amount"`
	CreditAmount     decimal.Decimal `json:"credit_amount"`
}

func CreateGeneralLedgerEntry(ctx context.Context, input *NewGeneralLedgerEntry) (*GeneralLedgerEntry, error) {

	if input.ChartOfAccountId == 0 {
		return nil, errors.New("chart of account id is required")
	}
	if input.LedgerDate.IsZero() {
		return nil, errors.New("ledger date is required")
	}

	entry := GeneralLedgerEntry{
		ChartOfAccountId: input.ChartOfAccountId,
		LedgerDate:       input.LedgerDate,
		Description:      input.Description,
		DebitAmount:      input.DebitAmount,
		CreditAmount:     input.CreditAmount,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
