package utils

import (
	"context"
	"os"
	"strconv"
	"sync"
)

// DefaultSemaphoreLimit bounds concurrency when callers pass a non-positive limit.
const DefaultSemaphoreLimit = 20

// GetSemaphoreLimit returns the semaphore limit from environment variable or default
func GetSemaphoreLimit() int {
	val := os.Getenv("SEMAPHORE_LIMIT")
	if val == "" {
		return DefaultSemaphoreLimit
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit <= 0 {
		return DefaultSemaphoreLimit
	}
	return limit
}

// ExecuteWithResults runs functions with at most maxConcurrency in flight and
// returns results and errors indexed like functions. Functions that have not
// acquired a slot when ctx is done are skipped with ctx.Err().
// Panics in goroutines are recovered and converted to PanicError.
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func(ctx context.Context) (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = GetSemaphoreLimit()
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func(ctx context.Context) (T, error)) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				errs[index] = err
			})

			// Acquire semaphore
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}
			if err := ctx.Err(); err != nil {
				errs[index] = err
				return
			}

			results[index], errs[index] = function(ctx)
		}(i, fn)
	}

	wg.Wait()
	return results, errs
}
