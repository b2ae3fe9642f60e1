package models

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const highConfidenceThreshold = 0.9

// ReconciliationStats is the progress snapshot for one shop/program scope.
// MatchedAccounts counts only Confirmed rows; pending siblings of a confirmed
// account do not move the rate.
type ReconciliationStats struct {
	ShopId                int     `json:"shop_id,omitempty"`
	ProgramId             int     `json:"program_id,omitempty"`
	TotalShopAccounts     int64   `json:"total_shop_accounts"`
	MatchedAccounts       int64   `json:"matched_accounts"`
	PotentialMatches      int64   `json:"potential_matches"`
	RejectedCandidates    int64   `json:"rejected_candidates"`
	UnmatchedAccounts     int64   `json:"unmatched_accounts"`
	HighConfidenceMatches int64   `json:"high_confidence_matches"`
	AutoMatches           int64   `json:"auto_matches"`
	ManualMatches         int64   `json:"manual_matches"`
	MatchRate             float64 `json:"match_rate"`
	AverageConfidence     float64 `json:"average_confidence"`
}

// GetReconciliationStats aggregates matching progress. A zero shopId or
// programId widens the scope, mirroring GetShopAccounts.
func GetReconciliationStats(ctx context.Context, shopId int, programId int) (*ReconciliationStats, error) {

	db := config.GetDB()
	stats := ReconciliationStats{ShopId: shopId, ProgramId: programId}

	accounts := db.WithContext(ctx).Model(&ChartOfAccount{}).
		Where("shop_id != 0").Where("is_active = ?", true)
	if shopId > 0 {
		accounts = accounts.Where("shop_id = ?", shopId)
	}
	if programId > 0 {
		accounts = accounts.Where("program_id = ?", programId)
	}
	if err := accounts.Count(&stats.TotalShopAccounts).Error; err != nil {
		return nil, err
	}

	scoped := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&AccountMatching{}).
			Joins("JOIN chart_of_accounts ON chart_of_accounts.id = account_matchings.shop_account_id")
		if shopId > 0 {
			q = q.Where("chart_of_accounts.shop_id = ?", shopId)
		}
		if programId > 0 {
			q = q.Where("chart_of_accounts.program_id = ?", programId)
		}
		return q
	}

	type countRow struct {
		MatchingStatus MatchingStatus
		MatchingMethod MatchingMethod
		Total          int64
	}
	var rows []countRow
	err := scoped().
		Select("matching_status, matching_method, COUNT(*) AS total").
		Group("matching_status, matching_method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		switch row.MatchingStatus {
		case MatchingStatusConfirmed:
			stats.MatchedAccounts += row.Total
		case MatchingStatusRejected:
			stats.RejectedCandidates += row.Total
		default:
			stats.PotentialMatches += row.Total
		}
		if row.MatchingStatus != MatchingStatusRejected {
			switch row.MatchingMethod {
			case MatchingMethodAuto:
				stats.AutoMatches += row.Total
			case MatchingMethodManual:
				stats.ManualMatches += row.Total
			}
		}
	}

	err = scoped().
		Where("account_matchings.matching_status != ?", MatchingStatusRejected).
		Where("account_matchings.matching_confidence >= ?", highConfidenceThreshold).
		Count(&stats.HighConfidenceMatches).Error
	if err != nil {
		return nil, err
	}

	type avgRow struct{ Average float64 }
	var avg avgRow
	err = scoped().
		Where("account_matchings.matching_status != ?", MatchingStatusRejected).
		Select("COALESCE(AVG(matching_confidence), 0) AS average").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	stats.AverageConfidence = avg.Average

	stats.UnmatchedAccounts = stats.TotalShopAccounts - stats.MatchedAccounts
	if stats.UnmatchedAccounts < 0 {
		stats.UnmatchedAccounts = 0
	}
	if stats.TotalShopAccounts > 0 {
		stats.MatchRate = float64(stats.MatchedAccounts) / float64(stats.TotalShopAccounts)
	}
	return &stats, nil
}

// ExportWorkbook renders the snapshot as a one-sheet xlsx for download.
func (stats *ReconciliationStats) ExportWorkbook() (*excelize.File, error) {

	file := excelize.NewFile()
	sheet := "Reconciliation"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	lines := [][]interface{}{
		{"Metric", "Value"},
		{"Total shop accounts", stats.TotalShopAccounts},
		{"Matched accounts", stats.MatchedAccounts},
		{"Unmatched accounts", stats.UnmatchedAccounts},
		{"Potential matches", stats.PotentialMatches},
		{"Rejected candidates", stats.RejectedCandidates},
		{"High confidence matches", stats.HighConfidenceMatches},
		{"Auto matches", stats.AutoMatches},
		{"Manual matches", stats.ManualMatches},
		{"Match rate", fmt.Sprintf("%.2f%%", stats.MatchRate*100)},
		{"Average confidence", fmt.Sprintf("%.4f", stats.AverageConfidence)},
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := file.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, err
		}
	}
	return file, nil
}
