package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// AppliedOperationCleaner prunes old entries from the applied-operation
// ledger.
type AppliedOperationCleaner interface {
	DeleteOldAppliedOperations(retention time.Duration) (int64, error)
}

// CleanupAppliedOperationsTask removes applied-operation ledger entries
// older than the configured retention period. The ledger only needs to
// cover the window in which a client could still replay an operation.
type CleanupAppliedOperationsTask struct {
	RetentionHours int `json:"retention_hours"`
}

// Config returns the queue configuration for ledger cleanup tasks.
func (t CleanupAppliedOperationsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_applied_operations",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAppliedOperationsProcessor creates a processor function for
// CleanupAppliedOperationsTask.
func CleanupAppliedOperationsProcessor(cleaner AppliedOperationCleaner) backlite.QueueProcessor[CleanupAppliedOperationsTask] {
	return func(ctx context.Context, task CleanupAppliedOperationsTask) error {
		if cleaner == nil {
			return fmt.Errorf("applied operation cleaner not configured")
		}

		retentionHours := task.RetentionHours
		if retentionHours <= 0 {
			retentionHours = 720 // 30 days
		}
		retention := time.Duration(retentionHours) * time.Hour

		deleted, err := cleaner.DeleteOldAppliedOperations(retention)
		if err != nil {
			return fmt.Errorf("cleanup applied operations: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d applied operations older than %d hours", deleted, retentionHours)
		return nil
	}
}

// NewCleanupAppliedOperationsQueue creates a backlite queue for ledger
// cleanup tasks.
func NewCleanupAppliedOperationsQueue(cleaner AppliedOperationCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAppliedOperationsProcessor(cleaner))
}
