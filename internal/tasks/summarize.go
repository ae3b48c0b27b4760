package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/avolkau/studysync/internal/entities"
)

// SummaryRecalculator recomputes a user's progress rollup.
type SummaryRecalculator interface {
	RecalculateSummary(userID uint) (*entities.ProgressSummary, error)
}

// RecalculateSummaryTask recomputes the per-user progress summary after a
// progress write. Writes to the same user's summary are cheap and
// idempotent, so duplicate enqueues are harmless.
type RecalculateSummaryTask struct {
	UserID uint `json:"user_id"`
}

// Config returns the queue configuration for summary recalculation tasks.
func (t RecalculateSummaryTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "recalculate_summary",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RecalculateSummaryProcessor creates a processor function for
// RecalculateSummaryTask.
func RecalculateSummaryProcessor(recalc SummaryRecalculator) backlite.QueueProcessor[RecalculateSummaryTask] {
	return func(ctx context.Context, task RecalculateSummaryTask) error {
		if recalc == nil {
			return fmt.Errorf("summary recalculator not configured")
		}

		summary, err := recalc.RecalculateSummary(task.UserID)
		if err != nil {
			return fmt.Errorf("recalculate summary for user %d: %w", task.UserID, err)
		}

		log.Printf("[TASK] Recalculated summary for user %d: %d started, %d completed, %.1f%% average",
			task.UserID, summary.ChaptersStarted, summary.ChaptersCompleted, summary.AveragePercentage)
		return nil
	}
}

// NewRecalculateSummaryQueue creates a backlite queue for summary
// recalculation tasks.
func NewRecalculateSummaryQueue(recalc SummaryRecalculator) backlite.Queue {
	return backlite.NewQueue(RecalculateSummaryProcessor(recalc))
}
