package telemetry

import (
	"context"
	"time"
)

// Pruner deletes history older than a retention window.
// *device.SQLiteTelemetryHistory implements it.
type Pruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RunRetention prunes history every interval until ctx is done. A
// non-positive retention disables pruning.
func RunRetention(ctx context.Context, p Pruner, retention, interval time.Duration, logger Logger) error {
	if retention <= 0 {
		return nil
	}
	if logger == nil {
		logger = noopLogger{}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.PruneHistory(ctx, retention)
			if err != nil {
				logger.Warn("telemetry history prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("telemetry history pruned", "rows", n)
			}
		}
	}
}
