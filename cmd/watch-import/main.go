// watch-import follows an async import job until it finishes and prints the
// terminal status. Point it at the same redis the server uses.
//
// Usage (from backend directory):
//   REDIS_HOST=... REDIS_PORT=... go run ./cmd/watch-import -job <jobId>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/models"
	"bitbucket.org/mmdatafocus/reconcile_backend/workflow"
)

func main() {
	jobId := flag.String("job", "", "import job id to follow")
	interval := flag.Duration("interval", 5*time.Second, "delay between status checks")
	attempts := flag.Int("attempts", 60, "maximum number of status checks")
	flag.Parse()

	if *jobId == "" {
		fmt.Fprintln(os.Stderr, "usage: watch-import -job <jobId> [-interval 5s] [-attempts 60]")
		os.Exit(2)
	}

	config.ConnectRedisWithRetry()
	if config.GetRedisDB() == nil {
		fmt.Fprintln(os.Stderr, "redis not initialized (config.GetRedisDB returned nil). Set REDIS_* env vars.")
		os.Exit(1)
	}

	policy := workflow.RetryPolicy{Interval: *interval, MaxAttempts: *attempts}
	status, err := workflow.WaitForImport(context.Background(), policy, *jobId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch failed: %v\n", err)
		os.Exit(1)
	}

	payload, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render status: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(payload))

	if status.State == models.ImportJobStateFailed {
		os.Exit(1)
	}
}
