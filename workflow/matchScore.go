package workflow

import (
	"fmt"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/reconcile_backend/models"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"github.com/agnivade/levenshtein"
)

// ScoredCandidate pairs a master account with the confidence computed for one
// shop account. Details carries the per-field breakdown shown to reviewers.
type ScoredCandidate struct {
	Master     *models.ChartOfAccount
	Confidence float64
	Details    string
}

// stringSimilarity blends token overlap with normalized edit distance and
// keeps the stronger signal. "4000 - Sales" vs "Sales (4000)" scores high on
// overlap even though edit distance is poor.
func stringSimilarity(a string, b string) float64 {
	a = utils.NormalizeKey(a)
	b = utils.NormalizeKey(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	overlap := tokenOverlap(a, b)

	distance := levenshtein.ComputeDistance(a, b)
	longer := len([]rune(a))
	if len([]rune(b)) > longer {
		longer = len([]rune(b))
	}
	editSimilarity := 1 - float64(distance)/float64(longer)
	if editSimilarity < 0 {
		editSimilarity = 0
	}

	if overlap > editSimilarity {
		return overlap
	}
	return editSimilarity
}

func tokenOverlap(a string, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	set := make(map[string]bool, len(tokensA))
	for _, token := range tokensA {
		set[token] = true
	}
	shared := 0
	for _, token := range utils.UniqueSlice(tokensB) {
		if set[token] {
			shared++
		}
	}
	longer := len(tokensA)
	if len(tokensB) > longer {
		longer = len(tokensB)
	}
	return float64(shared) / float64(longer)
}

// ScorePair computes the confidence that a shop account corresponds to a
// master account. Exact number and name (after normalization) is a perfect
// match; otherwise the number carries more weight than the name. A pair with
// no signal on either field scores zero and is discarded by callers.
func ScorePair(shopAccount *models.ChartOfAccount, masterAccount *models.ChartOfAccount) (float64, string) {

	numberSimilarity := stringSimilarity(shopAccount.AccountNumber, masterAccount.AccountNumber)
	nameSimilarity := stringSimilarity(shopAccount.AccountName, masterAccount.AccountName)

	details := fmt.Sprintf("number %.2f, name %.2f", numberSimilarity, nameSimilarity)

	if numberSimilarity == 1 && nameSimilarity == 1 {
		return 1, details
	}
	if numberSimilarity == 0 && nameSimilarity == 0 {
		return 0, details
	}
	return 0.6*numberSimilarity + 0.4*nameSimilarity, details
}

// RankCandidates scores a shop account against every master account and
// returns the candidates at or above minConfidence, best first. Ordering is
// deterministic: confidence descending, then master account number ascending,
// so repeated runs over the same data produce the same ranking.
func RankCandidates(shopAccount *models.ChartOfAccount, masterAccounts []*models.ChartOfAccount, minConfidence float64) []ScoredCandidate {

	candidates := make([]ScoredCandidate, 0, len(masterAccounts))
	for _, master := range masterAccounts {
		confidence, details := ScorePair(shopAccount, master)
		if confidence <= 0 || confidence < minConfidence {
			continue
		}
		candidates = append(candidates, ScoredCandidate{
			Master:     master,
			Confidence: confidence,
			Details:    details,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Master.AccountNumber < candidates[j].Master.AccountNumber
	})
	return candidates
}
