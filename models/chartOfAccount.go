package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ChartOfAccount struct {
	ID              int             `gorm:"primary_key" json:"id"`
	AccountNumber   string          `gorm:"uniqueIndex:uix_account_scope;size:100;not null" json:"account_number" binding:"required"`
	AccountName     string          `gorm:"index;size:200;not null" json:"account_name" binding:"required"`
	Description     string          `gorm:"type:text" json:"description"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	IsMasterAccount *bool           `gorm:"not null;default:false;index" json:"is_master_account"`
	ProgramId       int             `gorm:"uniqueIndex:uix_account_scope;index;not null" json:"program_id"`
	ShopId          int             `gorm:"uniqueIndex:uix_account_scope;index" json:"shop_id"`
	OpeningBalance  decimal.Decimal `gorm:"type:decimal(24,6)" json:"opening_balance"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewChartOfAccount struct {
	AccountNumber  string          `json:"account_number" binding:"required"`
	AccountName    string          `json:"account_name" binding:"required"`
	Description    string          `json:"description"`
	ProgramId      int             `json:"program_id" binding:"required"`
	ShopId         int             `json:"shop_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewChartOfAccount) validate(ctx context.Context, id int) error {
	if input.AccountNumber == "" {
		return errors.New("account number is required")
	}
	if input.AccountName == "" {
		return errors.New("account name is required")
	}
	if id > 0 {
		if err := utils.ValidateResourceId[ChartOfAccount](ctx, id); err != nil {
			return err
		}
	}
	// account number is unique within its (program, shop) scope
	return utils.ValidateUnique[ChartOfAccount](ctx,
		"account_number = ? AND program_id = ? AND shop_id = ?",
		[]interface{}{input.AccountNumber, input.ProgramId, input.ShopId}, id)
}

func CreateChartOfAccount(ctx context.Context, input *NewChartOfAccount) (*ChartOfAccount, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	// master accounts are program-level rows without a shop
	isMaster := input.ShopId == 0

	account := ChartOfAccount{
		AccountNumber:   input.AccountNumber,
		AccountName:     input.AccountName,
		Description:     input.Description,
		ProgramId:       input.ProgramId,
		ShopId:          input.ShopId,
		OpeningBalance:  input.OpeningBalance,
		IsActive:        utils.NewTrue(),
		IsMasterAccount: &isMaster,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpsertChartOfAccount creates the account or, when an account with the same
// number already exists in the (program, shop) scope, updates its descriptive
// fields. Identity (number + scope) never changes on the update path.
func UpsertChartOfAccount(ctx context.Context, input *NewChartOfAccount) (*ChartOfAccount, error) {

	if input.AccountNumber == "" {
		return nil, errors.New("account number is required")
	}
	if input.AccountName == "" {
		return nil, errors.New("account name is required")
	}

	db := config.GetDB()

	var existing ChartOfAccount
	err := db.WithContext(ctx).
		Where("account_number = ? AND program_id = ? AND shop_id = ?",
			input.AccountNumber, input.ProgramId, input.ShopId).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account, createErr := CreateChartOfAccount(ctx, input)
		if createErr == nil {
			return account, nil
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return nil, createErr
		}
		// a concurrent import worker inserted the same (number, program,
		// shop) between the lookup and the insert; the unique index on that
		// scope rejected ours, so load the winner and update it instead
		err = db.WithContext(ctx).
			Where("account_number = ? AND program_id = ? AND shop_id = ?",
				input.AccountNumber, input.ProgramId, input.ShopId).
			Take(&existing).Error
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"AccountName":    input.AccountName,
		"Description":    input.Description,
		"OpeningBalance": input.OpeningBalance,
	}
	if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[ChartOfAccount](existing.ID); err != nil {
		return nil, err
	}
	return &existing, nil
}

func GetChartOfAccount(ctx context.Context, id int) (*ChartOfAccount, error) {

	// find in redis first
	result, err := utils.RetrieveRedis[ChartOfAccount](id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result, err = utils.FetchModel[ChartOfAccount](ctx, id)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[ChartOfAccount](result, id); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// GetShopAccounts lists shop-level accounts in scope. shopId or programId can
// be zero to widen the scope.
func GetShopAccounts(ctx context.Context, shopId int, programId int) ([]*ChartOfAccount, error) {

	db := config.GetDB()
	var results []*ChartOfAccount

	dbCtx := db.WithContext(ctx).Where("shop_id > 0 AND is_active = ?", true)
	if shopId > 0 {
		dbCtx = dbCtx.Where("shop_id = ?", shopId)
	}
	if programId > 0 {
		dbCtx = dbCtx.Where("program_id = ?", programId)
	}
	err := dbCtx.Order("account_number").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetMasterAccounts lists active master accounts of a program. A zero
// programId widens the scope, mirroring GetShopAccounts.
func GetMasterAccounts(ctx context.Context, programId int) ([]*ChartOfAccount, error) {

	db := config.GetDB()
	var results []*ChartOfAccount

	dbCtx := db.WithContext(ctx).
		Where("shop_id = 0 AND is_master_account = ? AND is_active = ?", true, true)
	if programId > 0 {
		dbCtx = dbCtx.Where("program_id = ?", programId)
	}
	err := dbCtx.Order("account_number").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func MarkChartOfAccountActive(ctx context.Context, id int, isActive bool) (*ChartOfAccount, error) {

	db := config.GetDB()
	var account ChartOfAccount

	if err := db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Model(&account).Updates(ChartOfAccount{
		IsActive: &isActive,
	}).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[ChartOfAccount](id); err != nil {
		return nil, err
	}
	return &account, nil
}
