package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// NormalizeKey lowercases and collapses all whitespace. Column headers and
// account names are compared through this before any matching.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	// Remove any whitespace and check for empty strings
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	// thousands separators are common in exported ledgers
	value = strings.ReplaceAll(value, ",", "")

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// local fallback when the redis lock client is not initialized (tests, tools)
var (
	localLocksMu sync.Mutex
	localLocks   = map[string]*sync.Mutex{}
)

// AccountLock serializes writes to a single shop account's match state.
// Returns a release function. Prefers redislock; falls back to an in-process
// mutex so single-instance deployments and tests stay correct without redis.
func AccountLock(ctx context.Context, accountId int, moduleName string, functionName string) (func(), error) {
	lockKey := fmt.Sprintf("MatchLock:%d", accountId)

	locker := config.GetRedisLock()
	if locker == nil {
		localLocksMu.Lock()
		m := localLocks[lockKey]
		if m == nil {
			m = &sync.Mutex{}
			localLocks[lockKey] = m
		}
		localLocksMu.Unlock()
		m.Lock()
		return m.Unlock, nil
	}

	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(config.GetLogger(), moduleName, functionName, "Could not obtain match lock", lockKey, err)
		return nil, errors.New("could not obtain lock for account")
	} else if err != nil {
		config.LogError(config.GetLogger(), moduleName, functionName, "Error obtaining match lock", lockKey, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
