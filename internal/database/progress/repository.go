// Package progress provides database operations for progress record
// management, the applied-operation ledger and per-user summaries.
//
// This package implements the ProgressStore interface defined in
// internal/http/progress.go.
package progress

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/avolkau/studysync/internal/entities"
)

// Repository handles all progress database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetRecord returns the progress record for one chapter, or nil when the
// user has no progress there.
func (r *Repository) GetRecord(userID uint, chapterID string) (*entities.ProgressRecord, error) {
	var record entities.ProgressRecord
	err := r.db.Where("user_id = ? AND chapter_id = ?", userID, chapterID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecords returns all progress records for a user, ordered by chapter.
func (r *Repository) ListRecords(userID uint) ([]entities.ProgressRecord, error) {
	var records []entities.ProgressRecord
	err := r.db.Where("user_id = ?", userID).
		Order("chapter_id ASC").
		Find(&records).Error
	return records, err
}

// UpsertRecord creates or updates the record for (userID, chapterID),
// keeping percentage, status and completion timestamp consistent. A stale
// update cannot move UpdatedAt backwards.
func (r *Repository) UpsertRecord(userID uint, chapterID, sectionID string, percentage int, now time.Time) (*entities.ProgressRecord, error) {
	var record entities.ProgressRecord
	err := r.db.Where("user_id = ? AND chapter_id = ?", userID, chapterID).First(&record).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record.UserID = userID
	record.ChapterID = chapterID
	if sectionID != "" {
		record.SectionID = sectionID
	}
	record.ApplyPercentage(percentage, now)

	if err := r.db.Save(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ResetRecord removes a user's progress for one chapter. Resetting a
// chapter with no record is not an error.
func (r *Repository) ResetRecord(userID uint, chapterID string) error {
	return r.db.Where("user_id = ? AND chapter_id = ?", userID, chapterID).
		Delete(&entities.ProgressRecord{}).Error
}

// HasAppliedOperation reports whether an operation ID was already processed.
func (r *Repository) HasAppliedOperation(operationID string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.AppliedOperation{}).
		Where("operation_id = ?", operationID).
		Count(&count).Error
	return count > 0, err
}

// RecordAppliedOperation adds an operation ID to the dedup ledger.
func (r *Repository) RecordAppliedOperation(operationID string, userID uint, chapterID, method string) error {
	return r.db.Create(&entities.AppliedOperation{
		OperationID: operationID,
		UserID:      userID,
		ChapterID:   chapterID,
		Method:      method,
		AppliedAt:   time.Now(),
	}).Error
}

// DeleteOldAppliedOperations prunes ledger entries older than the retention
// period and returns how many were removed.
func (r *Repository) DeleteOldAppliedOperations(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := r.db.Where("applied_at < ?", cutoff).Delete(&entities.AppliedOperation{})
	return result.RowsAffected, result.Error
}

// GetSummary returns the rollup for a user, or an empty summary when none
// has been computed yet.
func (r *Repository) GetSummary(userID uint) (*entities.ProgressSummary, error) {
	var summary entities.ProgressSummary
	err := r.db.Where("user_id = ?", userID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &entities.ProgressSummary{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// RecalculateSummary recomputes a user's rollup from their progress records.
func (r *Repository) RecalculateSummary(userID uint) (*entities.ProgressSummary, error) {
	records, err := r.ListRecords(userID)
	if err != nil {
		return nil, err
	}

	summary := entities.ProgressSummary{UserID: userID, UpdatedAt: time.Now()}
	total := 0
	for _, record := range records {
		total += record.CompletionPercentage
		if record.Status != entities.ProgressStatusNotStarted {
			summary.ChaptersStarted++
		}
		if record.Status == entities.ProgressStatusCompleted {
			summary.ChaptersCompleted++
		}
	}
	if len(records) > 0 {
		summary.AveragePercentage = float64(total) / float64(len(records))
	}

	var existing entities.ProgressSummary
	err = r.db.Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		summary.ID = existing.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := r.db.Save(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
