package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gasline-erp/gasline-erp/internal/ledger"
)

// IntegrityLister reports entries whose debits and credits do not sum equal.
type IntegrityLister interface {
	ListUnbalanced(ctx context.Context) ([]ledger.IntegrityIssue, error)
}

// RunLedgerIntegrityCheck scans posted entries for imbalance. Posting rejects
// unbalanced input, so a hit here means data was mutated outside the
// application and deserves an alert.
func RunLedgerIntegrityCheck(ctx context.Context, logger *slog.Logger, lister IntegrityLister) error {
	issues, err := lister.ListUnbalanced(ctx)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		if logger != nil {
			logger.Info("ledger integrity check passed")
		}
		return nil
	}
	for _, issue := range issues {
		if logger != nil {
			logger.Error("unbalanced ledger entry",
				slog.Int64("entry_id", issue.EntryID),
				slog.String("source_type", issue.SourceType),
				slog.String("debit", issue.Debit.String()),
				slog.String("credit", issue.Credit.String()))
		}
	}
	return fmt.Errorf("ledger integrity check found %d unbalanced entries", len(issues))
}
