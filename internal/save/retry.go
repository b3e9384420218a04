package save

import (
	"log"
	"time"
)

// retryWithBackoff runs op up to attempts times with a fixed pause between
// tries. The attempt count is the only bound — individual calls get no
// timeout. Shared by the save and recovery paths.
func retryWithBackoff[T any](name string, op func(attempt int) (T, error), attempts int, backoff time.Duration) (T, error) {
	var zero T
	var lastErr error

	for i := 1; i <= attempts; i++ {
		v, err := op(i)
		if err == nil {
			return v, nil
		}
		lastErr = err
		log.Printf("⚠️ %s attempt %d/%d failed: %v", name, i, attempts, err)
		if i < attempts {
			time.Sleep(backoff)
		}
	}
	return zero, lastErr
}
