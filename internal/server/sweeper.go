package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const sweeperLogPrefix = "server:sweeper"

type expiryPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// runExpirySweeper deletes expired claims and locks every interval until
// ctx is done.
func runExpirySweeper(ctx context.Context, p expiryPurger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn(fmt.Sprintf("%s - purge failed: %v", sweeperLogPrefix, err))
				}
				continue
			}
			if n > 0 {
				slog.Info(fmt.Sprintf("%s - purged %d expired claims and locks", sweeperLogPrefix, n))
			}
		}
	}
}
