package config

import (
	"os"
	"strings"
)

// MatchAutoConfirmEnabled gates direct auto-confirmation of high-confidence
// matches when the caller did not request review mode. When disabled, every
// auto-match candidate waits for human confirmation regardless of confidence.
//
// Set via env:
// - MATCH_AUTO_CONFIRM=true
func MatchAutoConfirmEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("MATCH_AUTO_CONFIRM")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ImportAsyncEnabled allows bulk imports to run in the background with a
// redis-tracked job status that clients poll by job id.
//
// Set via env:
// - IMPORT_ASYNC=true
func ImportAsyncEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("IMPORT_ASYNC")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
