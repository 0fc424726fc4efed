package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ForEach calls fn once for every item with at most limit calls in flight.
// A limit <= 0 means one slot per item. Every item is attempted even when
// others fail or panic; ForEach returns once all calls have finished, with
// the joined failures.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) error {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		errs      []error
		semaphore = make(chan struct{}, limit)
	)

	for _, item := range items {
		wg.Add(1)
		go func(it T) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := runIsolated(ctx, it, fn); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func runIsolated[T any](ctx context.Context, item T, fn func(ctx context.Context, item T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, item)
}
