package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a cache entry is not found
	ErrNotFound = errors.New("cache entry not found")
	// ErrExpired is returned when a cache entry has expired
	ErrExpired = errors.New("cache entry expired")
)

// runCleanup calls cleanup every freq until stopCh is closed. A non-positive
// frequency disables periodic cleanup.
func runCleanup(freq time.Duration, stopCh <-chan struct{}, cleanup func(context.Context) error, logger *zap.Logger) {
	if freq <= 0 {
		return
	}
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
