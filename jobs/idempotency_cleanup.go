package jobs

import (
	"context"
	"log/slog"
	"time"
)

// KeyCleaner prunes stored idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// RunIdempotencyCleanup removes keys older than the retention window. Keys
// only guard retries of recent delivery events, so old ones are dead weight.
func RunIdempotencyCleanup(ctx context.Context, logger *slog.Logger, cleaner KeyCleaner, retention time.Duration) error {
	if err := cleaner.Cleanup(ctx, retention); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("idempotency keys pruned", slog.Duration("retention", retention))
	}
	return nil
}
