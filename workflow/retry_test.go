package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/models"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func TestPoll_SucceedsOnLaterAttempt(t *testing.T) {
	attempts := 0
	outcome, err := fastPolicy(10).Poll(context.Background(), func(attempt int) (bool, error) {
		attempts++
		return attempt == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != PollSucceeded {
		t.Fatalf("expected PollSucceeded, got %v", outcome)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPoll_TimesOutAfterBudget(t *testing.T) {
	attempts := 0
	outcome, err := fastPolicy(4).Poll(context.Background(), func(int) (bool, error) {
		attempts++
		return false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != PollTimedOut {
		t.Fatalf("timed-out polling must be distinguishable from failure, got %v", outcome)
	}
	if attempts != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", attempts)
	}
}

func TestPoll_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	outcome, err := fastPolicy(10).Poll(context.Background(), func(int) (bool, error) {
		attempts++
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error back, got %v", err)
	}
	if outcome != PollFailed {
		t.Fatalf("expected PollFailed, got %v", outcome)
	}
	if attempts != 1 {
		t.Fatalf("an error must stop the loop immediately, got %d attempts", attempts)
	}
}

func TestPoll_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	outcome, err := RetryPolicy{Interval: time.Hour, MaxAttempts: 10}.Poll(ctx, func(attempt int) (bool, error) {
		cancel()
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if outcome != PollCancelled {
		t.Fatalf("expected PollCancelled, got %v", outcome)
	}
}

func TestWaitForImport_UnknownJob(t *testing.T) {
	// no status record exists, so the first check fails and the wait stops
	status, err := WaitForImport(context.Background(), fastPolicy(3), "no-such-job")
	if !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if status != nil {
		t.Fatalf("no status should be returned for an unknown job, got %+v", status)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.Interval != 5*time.Second || p.MaxAttempts != 60 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}
