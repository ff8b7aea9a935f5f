package jobs

import (
	"context"
	"log/slog"
	"time"
)

// SettlementRepairer re-settles fully received requests. The restock service
// implements it; settlement is idempotent so repeated runs are safe.
type SettlementRepairer interface {
	SettleOverdue(ctx context.Context, before time.Time, limit int) (int, error)
}

// RunSettlementRepair settles requests that finished receiving at least
// maxAge ago and still have no payable. Crashes between receiving and
// settlement leave such requests behind; this job closes the gap.
func RunSettlementRepair(ctx context.Context, logger *slog.Logger, repairer SettlementRepairer, maxAge time.Duration, batch int) error {
	cutoff := time.Now().Add(-maxAge)
	created, err := repairer.SettleOverdue(ctx, cutoff, batch)
	if err != nil {
		if logger != nil {
			logger.Error("settlement repair failed", slog.Any("error", err), slog.Int("created", created))
		}
		return err
	}
	if logger != nil && created > 0 {
		logger.Info("settlement repair created payables", slog.Int("created", created))
	}
	return nil
}
