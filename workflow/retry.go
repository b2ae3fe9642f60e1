package workflow

import (
	"context"
	"time"
)

// RetryPolicy drives client-style polling loops, such as waiting for an async
// import to leave the Processing state.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: 5 * time.Second, MaxAttempts: 60}
}

// PollOutcome distinguishes "the condition failed" from "we stopped asking".
type PollOutcome int

const (
	PollSucceeded PollOutcome = iota
	PollTimedOut
	PollCancelled
	PollFailed
)

// Poll invokes fn every Interval until it reports done, the attempt budget
// runs out, or the context is cancelled. An error from fn stops the loop
// immediately.
func (p RetryPolicy) Poll(ctx context.Context, fn func(attempt int) (done bool, err error)) (PollOutcome, error) {

	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		done, err := fn(attempt)
		if err != nil {
			return PollFailed, err
		}
		if done {
			return PollSucceeded, nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return PollCancelled, ctx.Err()
		case <-ticker.C:
		}
	}
	return PollTimedOut, nil
}
