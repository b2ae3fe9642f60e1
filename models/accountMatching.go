package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"gorm.io/gorm"
)

// AccountMatching is one proposed correspondence between a shop account and a
// master account. Candidates are never hard-deleted, only transitioned.
// Invariant: a shop account has at most one Confirmed match at any time.
type AccountMatching struct {
	ID                 int            `gorm:"primary_key" json:"matching_id"`
	ShopAccountId      int            `gorm:"index;not null" json:"shop_account_id"`
	MasterAccountId    int            `gorm:"index;not null" json:"master_account_id"`
	MatchingConfidence float64        `gorm:"not null" json:"matching_confidence"`
	MatchingMethod     MatchingMethod `gorm:"size:10;not null" json:"matching_method"`
	MatchingStatus     MatchingStatus `gorm:"size:30;not null;index" json:"matching_status"`
	MatchingDetails    string         `gorm:"type:text" json:"matching_details"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// CanTransition reports whether a candidate in the given status accepts the
// action. Confirm is only valid for live candidates; Reject additionally
// undoes a confirmation (the way back to pending is ResetToPending).
func CanTransition(status MatchingStatus, action MatchingAction) bool {
	switch action {
	case MatchingActionConfirm:
		return status == MatchingStatusMatched || status == MatchingStatusPendingConfirmation
	case MatchingActionReject:
		return status == MatchingStatusMatched || status == MatchingStatusPendingConfirmation ||
			status == MatchingStatusConfirmed
	}
	return false
}

// validateMatchScope checks both accounts exist, sit on the expected side of
// the chart, and belong to the same program.
func validateMatchScope(ctx context.Context, shopAccountId int, masterAccountId int) (*ChartOfAccount, *ChartOfAccount, error) {
	shopAccount, err := utils.FetchModel[ChartOfAccount](ctx, shopAccountId)
	if err != nil {
		return nil, nil, err
	}
	masterAccount, err := utils.FetchModel[ChartOfAccount](ctx, masterAccountId)
	if err != nil {
		return nil, nil, err
	}
	if shopAccount.ShopId == 0 || !utils.DereferencePtr(masterAccount.IsMasterAccount) {
		return nil, nil, errors.New("matching requires a shop account and a master account")
	}
	if shopAccount.ProgramId != masterAccount.ProgramId {
		return nil, nil, ErrScopeMismatch
	}
	return shopAccount, masterAccount, nil
}

func hasConfirmedMatch(ctx context.Context, db *gorm.DB, shopAccountId int) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&AccountMatching{}).
		Where("shop_account_id = ? AND matching_status = ?", shopAccountId, MatchingStatusConfirmed).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasConfirmedMatch reports whether the shop account already holds a
// confirmed match.
func HasConfirmedMatch(ctx context.Context, shopAccountId int) (bool, error) {
	return hasConfirmedMatch(ctx, config.GetDB(), shopAccountId)
}

// UpsertAutoCandidate creates or refreshes the automatic candidate for a
// shop/master pair. Candidates a user already decided on are left untouched,
// so re-running the matcher never overrides human judgement. Returns whether
// a new row was created.
func UpsertAutoCandidate(ctx context.Context, shopAccountId int, masterAccountId int, confidence float64, details string, confirmed bool) (bool, error) {

	db := config.GetDB()

	status := MatchingStatusMatched
	if confirmed {
		status = MatchingStatusConfirmed
	}

	var existing AccountMatching
	err := db.WithContext(ctx).
		Where("shop_account_id = ? AND master_account_id = ? AND matching_method = ?",
			shopAccountId, masterAccountId, MatchingMethodAuto).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		matching := AccountMatching{
			ShopAccountId:      shopAccountId,
			MasterAccountId:    masterAccountId,
			MatchingConfidence: confidence,
			MatchingMethod:     MatchingMethodAuto,
			MatchingStatus:     status,
			MatchingDetails:    details,
		}
		if err := db.WithContext(ctx).Create(&matching).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.MatchingStatus == MatchingStatusConfirmed || existing.MatchingStatus == MatchingStatusRejected {
		return false, nil
	}
	updates := map[string]interface{}{
		"MatchingConfidence": confidence,
		"MatchingDetails":    details,
		"MatchingStatus":     status,
	}
	if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return false, err
	}
	return false, nil
}

// CreateManualMatch records a user-chosen correspondence with confidence 1.0.
// Fails with ErrAlreadyConfirmed while another match is confirmed for the
// shop account; callers reset first.
func CreateManualMatch(ctx context.Context, shopAccountId int, masterAccountId int, confirmed bool) (*AccountMatching, error) {

	if _, _, err := validateMatchScope(ctx, shopAccountId, masterAccountId); err != nil {
		return nil, err
	}

	release, err := utils.AccountLock(ctx, shopAccountId, "accountMatching.go", "CreateManualMatch")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()

	exclusive, err := hasConfirmedMatch(ctx, db, shopAccountId)
	if err != nil {
		return nil, err
	}
	if exclusive {
		return nil, ErrAlreadyConfirmed
	}

	status := MatchingStatusPendingConfirmation
	if confirmed {
		status = MatchingStatusConfirmed
	}
	matching := AccountMatching{
		ShopAccountId:      shopAccountId,
		MasterAccountId:    masterAccountId,
		MatchingConfidence: 1.0,
		MatchingMethod:     MatchingMethodManual,
		MatchingStatus:     status,
		MatchingDetails:    "manually assigned",
	}
	if err := db.WithContext(ctx).Create(&matching).Error; err != nil {
		return nil, err
	}
	return &matching, nil
}

// DecideMatches transitions candidates to Confirmed or Rejected. Sibling
// candidates of a confirmed account stay pending; only the Confirmed row is
// authoritative for statistics. The whole batch is validated before anything
// is written, so a stale id or bad transition fails cleanly; errors that only
// surface mid-batch (a second confirmation for the same shop account) return
// the ids already transitioned so callers can report partial progress.
func DecideMatches(ctx context.Context, matchingIds []int, action MatchingAction) ([]int, error) {

	db := config.GetDB()

	ids := utils.UniqueSlice(matchingIds)
	matchings := make([]*AccountMatching, 0, len(ids))
	for _, id := range ids {
		matching, err := utils.FetchModel[AccountMatching](ctx, id)
		if err != nil {
			return nil, err
		}
		if !CanTransition(matching.MatchingStatus, action) {
			return nil, errors.New("matching cannot be " + string(action) + "ed from status " + string(matching.MatchingStatus))
		}
		matchings = append(matchings, matching)
	}

	applied := make([]int, 0, len(matchings))
	for _, matching := range matchings {
		release, err := utils.AccountLock(ctx, matching.ShopAccountId, "accountMatching.go", "DecideMatches")
		if err != nil {
			return applied, err
		}

		target := MatchingStatusRejected
		if action == MatchingActionConfirm {
			exclusive, err := hasConfirmedMatch(ctx, db, matching.ShopAccountId)
			if err != nil {
				release()
				return applied, err
			}
			if exclusive {
				release()
				return applied, ErrAlreadyConfirmed
			}
			target = MatchingStatusConfirmed
		}

		err = db.WithContext(ctx).Model(&AccountMatching{}).
			Where("id = ?", matching.ID).
			Update("matching_status", target).Error
		release()
		if err != nil {
			return applied, err
		}
		applied = append(applied, matching.ID)
	}
	return applied, nil
}

// ResetToPending moves matches back to PendingConfirmation, undoing a
// Confirm/Reject. Accepts explicit matching ids, account ids (for accounts
// that only hold terminal decisions), or both.
func ResetToPending(ctx context.Context, matchingIds []int, chartOfAccountIds []int) error {

	if len(matchingIds) == 0 && len(chartOfAccountIds) == 0 {
		return errors.New("matching ids or chart of account ids are required")
	}

	db := config.GetDB()

	if len(matchingIds) > 0 {
		ids := utils.UniqueSlice(matchingIds)
		if err := utils.ValidateResourcesId[AccountMatching](ctx, ids); err != nil {
			return err
		}
		if err := db.WithContext(ctx).Model(&AccountMatching{}).
			Where("id IN ?", ids).
			Update("matching_status", MatchingStatusPendingConfirmation).Error; err != nil {
			return err
		}
	}

	if len(chartOfAccountIds) > 0 {
		ids := utils.UniqueSlice(chartOfAccountIds)
		if err := utils.ValidateResourcesId[ChartOfAccount](ctx, ids); err != nil {
			return err
		}
		if err := db.WithContext(ctx).Model(&AccountMatching{}).
			Where("shop_account_id IN ?", ids).
			Where("matching_status IN ?", []MatchingStatus{MatchingStatusConfirmed, MatchingStatusRejected}).
			Update("matching_status", MatchingStatusPendingConfirmation).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetPendingMatches lists candidates awaiting human action, optionally scoped
// by shop and program.
func GetPendingMatches(ctx context.Context, shopId int, programId int) ([]*AccountMatching, error) {

	db := config.GetDB()
	var results []*AccountMatching

	dbCtx := db.WithContext(ctx).Model(&AccountMatching{}).
		Joins("JOIN chart_of_accounts ON chart_of_accounts.id = account_matchings.shop_account_id").
		Where("account_matchings.matching_status IN ?",
			[]MatchingStatus{MatchingStatusMatched, MatchingStatusPendingConfirmation})
	if shopId > 0 {
		dbCtx = dbCtx.Where("chart_of_accounts.shop_id = ?", shopId)
	}
	if programId > 0 {
		dbCtx = dbCtx.Where("chart_of_accounts.program_id = ?", programId)
	}
	err := dbCtx.Order("account_matchings.matching_confidence DESC, account_matchings.id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
