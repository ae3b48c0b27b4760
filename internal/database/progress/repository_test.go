package progress

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avolkau/studysync/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, func()) {
	dbPath := "./test_progress_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.User{},
		&entities.ProgressRecord{},
		&entities.AppliedOperation{},
		&entities.ProgressSummary{},
	)
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return db, repo, cleanup
}

func TestRepository_UpsertRecord(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()

	record, err := repo.UpsertRecord(1, "ch-1", "sec-1", 40, now)
	require.NoError(t, err)
	assert.Equal(t, 40, record.CompletionPercentage)
	assert.Equal(t, entities.ProgressStatusInProgress, record.Status)
	assert.Nil(t, record.CompletedAt)

	// Second upsert updates the same row
	record, err = repo.UpsertRecord(1, "ch-1", "", 100, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 100, record.CompletionPercentage)
	assert.Equal(t, entities.ProgressStatusCompleted, record.Status)
	require.NotNil(t, record.CompletedAt)
	// SectionID survives an update that omits it
	assert.Equal(t, "sec-1", record.SectionID)

	records, err := repo.ListRecords(1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRepository_UpsertRecordKeepsUpdatedAtMonotonic(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	record, err := repo.UpsertRecord(1, "ch-1", "", 50, now)
	require.NoError(t, err)
	firstUpdated := record.UpdatedAt

	// A write stamped in the past applies its value but not its clock
	record, err = repo.UpsertRecord(1, "ch-1", "", 60, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 60, record.CompletionPercentage)
	assert.False(t, record.UpdatedAt.Before(firstUpdated))
}

func TestRepository_RecordsAreScopedPerUser(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	_, err := repo.UpsertRecord(1, "ch-1", "", 40, now)
	require.NoError(t, err)
	_, err = repo.UpsertRecord(2, "ch-1", "", 90, now)
	require.NoError(t, err)

	record, err := repo.GetRecord(1, "ch-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 40, record.CompletionPercentage)

	records, err := repo.ListRecords(2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 90, records[0].CompletionPercentage)
}

func TestRepository_ResetRecord(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.UpsertRecord(1, "ch-1", "", 40, time.Now())
	require.NoError(t, err)

	require.NoError(t, repo.ResetRecord(1, "ch-1"))

	record, err := repo.GetRecord(1, "ch-1")
	require.NoError(t, err)
	assert.Nil(t, record)

	// Resetting again is not an error
	require.NoError(t, repo.ResetRecord(1, "ch-1"))
}

func TestRepository_AppliedOperationLedger(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	applied, err := repo.HasAppliedOperation("op-1")
	require.NoError(t, err)
	assert.False(t, applied)

	require.NoError(t, repo.RecordAppliedOperation("op-1", 1, "ch-1", "PUT"))

	applied, err = repo.HasAppliedOperation("op-1")
	require.NoError(t, err)
	assert.True(t, applied)

	// Backdate the entry and purge it
	require.NoError(t, db.Model(&entities.AppliedOperation{}).
		Where("operation_id = ?", "op-1").
		Update("applied_at", time.Now().Add(-48*time.Hour)).Error)

	deleted, err := repo.DeleteOldAppliedOperations(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	applied, err = repo.HasAppliedOperation("op-1")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRepository_RecalculateSummary(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	_, err := repo.UpsertRecord(1, "ch-1", "", 100, now)
	require.NoError(t, err)
	_, err = repo.UpsertRecord(1, "ch-2", "", 50, now)
	require.NoError(t, err)
	_, err = repo.UpsertRecord(1, "ch-3", "", 0, now)
	require.NoError(t, err)

	summary, err := repo.RecalculateSummary(1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ChaptersStarted)
	assert.Equal(t, 1, summary.ChaptersCompleted)
	assert.InDelta(t, 50.0, summary.AveragePercentage, 0.01)

	// Recalculation updates in place
	_, err = repo.UpsertRecord(1, "ch-3", "", 100, now.Add(time.Minute))
	require.NoError(t, err)

	summary, err = repo.RecalculateSummary(1)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ChaptersStarted)
	assert.Equal(t, 2, summary.ChaptersCompleted)

	stored, err := repo.GetSummary(1)
	require.NoError(t, err)
	assert.Equal(t, summary.ID, stored.ID)
	assert.Equal(t, 2, stored.ChaptersCompleted)
}

func TestRepository_GetSummaryWithoutRecords(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	summary, err := repo.GetSummary(42)
	require.NoError(t, err)
	assert.Equal(t, uint(42), summary.UserID)
	assert.Zero(t, summary.ChaptersStarted)
}
