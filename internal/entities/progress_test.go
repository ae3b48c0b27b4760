package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveProgressStatus(t *testing.T) {
	assert.Equal(t, ProgressStatusNotStarted, DeriveProgressStatus(0))
	assert.Equal(t, ProgressStatusNotStarted, DeriveProgressStatus(-5))
	assert.Equal(t, ProgressStatusInProgress, DeriveProgressStatus(1))
	assert.Equal(t, ProgressStatusInProgress, DeriveProgressStatus(50))
	assert.Equal(t, ProgressStatusInProgress, DeriveProgressStatus(99))
	assert.Equal(t, ProgressStatusCompleted, DeriveProgressStatus(100))
	assert.Equal(t, ProgressStatusCompleted, DeriveProgressStatus(120))
}

func TestProgressRecord_ApplyPercentage(t *testing.T) {
	now := time.Now()

	t.Run("clamps out of range values", func(t *testing.T) {
		var record ProgressRecord
		record.ApplyPercentage(150, now)
		assert.Equal(t, 100, record.CompletionPercentage)

		record.ApplyPercentage(-10, now)
		assert.Equal(t, 0, record.CompletionPercentage)
	})

	t.Run("status always matches percentage", func(t *testing.T) {
		var record ProgressRecord
		for _, pct := range []int{0, 1, 42, 99, 100} {
			record.ApplyPercentage(pct, now)
			assert.Equal(t, DeriveProgressStatus(pct), record.Status, "percentage %d", pct)
		}
	})

	t.Run("completed_at set exactly when completed", func(t *testing.T) {
		var record ProgressRecord

		record.ApplyPercentage(50, now)
		assert.Nil(t, record.CompletedAt)

		record.ApplyPercentage(100, now)
		require.NotNil(t, record.CompletedAt)
		assert.Equal(t, now, *record.CompletedAt)

		// Regressing below 100 clears the completion timestamp
		record.ApplyPercentage(80, now.Add(time.Minute))
		assert.Nil(t, record.CompletedAt)
	})

	t.Run("completion timestamp survives repeated completion", func(t *testing.T) {
		var record ProgressRecord
		record.ApplyPercentage(100, now)
		first := *record.CompletedAt

		record.ApplyPercentage(100, now.Add(time.Hour))
		assert.Equal(t, first, *record.CompletedAt)
	})

	t.Run("updated_at never moves backwards", func(t *testing.T) {
		var record ProgressRecord
		record.ApplyPercentage(50, now)
		assert.Equal(t, now, record.UpdatedAt)

		// A stale clock cannot regress the timestamp
		record.ApplyPercentage(60, now.Add(-time.Hour))
		assert.Equal(t, now, record.UpdatedAt)
		assert.Equal(t, 60, record.CompletionPercentage)

		later := now.Add(time.Minute)
		record.ApplyPercentage(70, later)
		assert.Equal(t, later, record.UpdatedAt)
	})
}

func TestNewOperationID(t *testing.T) {
	createdAt := time.Now()

	id1 := NewOperationID("/api/progress/chapter/ch-1", "PUT", `{"completion_percentage":40}`, createdAt)
	id2 := NewOperationID("/api/progress/chapter/ch-1", "PUT", `{"completion_percentage":40}`, createdAt)
	assert.Equal(t, id1, id2, "same inputs must derive the same ID")
	assert.Len(t, id1, 64)

	different := NewOperationID("/api/progress/chapter/ch-2", "PUT", `{"completion_percentage":40}`, createdAt)
	assert.NotEqual(t, id1, different)

	laterTime := NewOperationID("/api/progress/chapter/ch-1", "PUT", `{"completion_percentage":40}`, createdAt.Add(time.Nanosecond))
	assert.NotEqual(t, id1, laterTime)
}
