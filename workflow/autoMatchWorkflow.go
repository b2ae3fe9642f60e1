package workflow

import (
	"context"
	"sync"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/models"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultMinConfidence = 0.7
	autoConfirmThreshold = 0.95
	autoMatchWorkers     = 4
	candidatesPerAccount = 5
)

type AutoMatchInput struct {
	ShopId        int     `json:"shop_id"`
	ProgramId     int     `json:"program_id"`
	MinConfidence float64 `json:"min_confidence"`
	ReviewMode    bool    `json:"review_mode"`
}

type AutoMatchResult struct {
	EvaluatedAccounts int `json:"evaluated_accounts"`
	SkippedAccounts   int `json:"skipped_accounts"`
	CreatedCandidates int `json:"created_candidates"`
	UpdatedCandidates int `json:"updated_candidates"`
	AutoConfirmed     int `json:"auto_confirmed"`
}

// RunAutoMatch scores every unconfirmed shop account in scope against the
// master chart and records the candidates as auto matches. Accounts that
// already hold a confirmed match are skipped, and re-running over the same
// data only refreshes existing candidates. High-confidence top candidates are
// confirmed directly unless review mode (or the feature flag) holds them for
// human sign-off.
func RunAutoMatch(ctx context.Context, logger *logrus.Logger, input AutoMatchInput) (*AutoMatchResult, error) {

	minConfidence := input.MinConfidence
	if minConfidence == 0 {
		minConfidence = defaultMinConfidence
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, models.ErrInvalidConfidence
	}

	masterAccounts, err := models.GetMasterAccounts(ctx, input.ProgramId)
	if err != nil {
		config.LogError(logger, "autoMatchWorkflow.go", "RunAutoMatch", "Querying master accounts", input, err)
		return nil, err
	}
	shopAccounts, err := models.GetShopAccounts(ctx, input.ShopId, input.ProgramId)
	if err != nil {
		config.LogError(logger, "autoMatchWorkflow.go", "RunAutoMatch", "Querying shop accounts", input, err)
		return nil, err
	}

	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"cid":           cid,
		"shop_id":       input.ShopId,
		"program_id":    input.ProgramId,
		"shop_accounts": len(shopAccounts),
		"masters":       len(masterAccounts),
	}).Info("[AutoMatch] scoring started")

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		result   AutoMatchResult
	)
	jobs := make(chan *models.ChartOfAccount)

	autoConfirm := !input.ReviewMode && config.MatchAutoConfirmEnabled()

	for i := 0; i < autoMatchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shopAccount := range jobs {
				created, updated, confirmed, skipped, err := matchOneAccount(ctx, shopAccount, masterAccounts, minConfidence, autoConfirm)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if skipped {
					result.SkippedAccounts++
				} else if err == nil {
					result.EvaluatedAccounts++
				}
				result.CreatedCandidates += created
				result.UpdatedCandidates += updated
				result.AutoConfirmed += confirmed
				mu.Unlock()
			}
		}()
	}
	for _, shopAccount := range shopAccounts {
		jobs <- shopAccount
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		config.LogError(logger, "autoMatchWorkflow.go", "RunAutoMatch", "Scoring shop accounts", input, firstErr)
		return nil, firstErr
	}

	logger.WithFields(logrus.Fields{
		"cid":            cid,
		"evaluated":      result.EvaluatedAccounts,
		"skipped":        result.SkippedAccounts,
		"created":        result.CreatedCandidates,
		"updated":        result.UpdatedCandidates,
		"auto_confirmed": result.AutoConfirmed,
	}).Info("[AutoMatch] scoring finished")
	return &result, nil
}

func matchOneAccount(ctx context.Context, shopAccount *models.ChartOfAccount, masterAccounts []*models.ChartOfAccount, minConfidence float64, autoConfirm bool) (created int, updated int, confirmed int, skipped bool, err error) {

	release, err := utils.AccountLock(ctx, shopAccount.ID, "autoMatchWorkflow.go", "matchOneAccount")
	if err != nil {
		return 0, 0, 0, false, err
	}
	defer release()

	alreadyConfirmed, err := models.HasConfirmedMatch(ctx, shopAccount.ID)
	if err != nil {
		return 0, 0, 0, false, err
	}
	if alreadyConfirmed {
		return 0, 0, 0, true, nil
	}

	candidates := RankCandidates(shopAccount, masterAccounts, minConfidence)
	if len(candidates) > candidatesPerAccount {
		candidates = candidates[:candidatesPerAccount]
	}

	for rank, candidate := range candidates {
		// only the single best candidate may bypass review
		confirm := autoConfirm && rank == 0 && candidate.Confidence >= autoConfirmThreshold
		wasCreated, err := models.UpsertAutoCandidate(ctx, shopAccount.ID, candidate.Master.ID,
			candidate.Confidence, candidate.Details, confirm)
		if err != nil {
			return created, updated, confirmed, false, err
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
		if confirm {
			confirmed++
		}
	}
	return created, updated, confirmed, false, nil
}
