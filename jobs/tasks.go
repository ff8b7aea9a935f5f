package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSettlementRepair re-runs settlement for requests that finished
	// receiving but have no payable yet.
	TaskSettlementRepair = "settlement:repair"
	// TaskLedgerIntegrity verifies that every posted entry balances.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewSettlementRepairTask constructs the repair task.
func NewSettlementRepairTask() *asynq.Task {
	return asynq.NewTask(TaskSettlementRepair, nil)
}

// NewLedgerIntegrityTask constructs the integrity check task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
