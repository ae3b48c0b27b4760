package entities

import (
	"time"

	"gorm.io/gorm"
)

type ProgressStatus string

const (
	ProgressStatusNotStarted ProgressStatus = "not_started"
	ProgressStatusInProgress ProgressStatus = "in_progress"
	ProgressStatusCompleted  ProgressStatus = "completed"
)

// DeriveProgressStatus maps a completion percentage to its status.
// 0 is not_started, 100 is completed, anything in between is in_progress.
func DeriveProgressStatus(percentage int) ProgressStatus {
	switch {
	case percentage <= 0:
		return ProgressStatusNotStarted
	case percentage >= 100:
		return ProgressStatusCompleted
	default:
		return ProgressStatusInProgress
	}
}

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:100" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:255" json:"email"`
	Token     string         `gorm:"uniqueIndex;size:64" json:"-"` // API token, hidden from JSON
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// ProgressRecord tracks a user's advancement through one chapter.
// At most one record exists per (UserID, ChapterID) pair; SectionID is an
// attribute of the record, not part of its identity.
type ProgressRecord struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UserID               uint           `gorm:"uniqueIndex:idx_user_chapter" json:"user_id"`
	ChapterID            string         `gorm:"uniqueIndex:idx_user_chapter;size:128" json:"chapter_id"`
	SectionID            string         `gorm:"size:128" json:"section_id,omitempty"`
	CompletionPercentage int            `json:"completion_percentage"`
	Status               ProgressStatus `gorm:"size:20" json:"status"`
	LastAccessedAt       time.Time      `json:"last_accessed_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}

// ApplyPercentage sets the completion percentage and keeps the derived
// fields consistent: status always matches the percentage, and CompletedAt
// is non-nil exactly when the status is completed.
func (p *ProgressRecord) ApplyPercentage(percentage int, now time.Time) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	p.CompletionPercentage = percentage
	p.Status = DeriveProgressStatus(percentage)
	p.LastAccessedAt = now

	if p.Status == ProgressStatusCompleted {
		if p.CompletedAt == nil {
			completedAt := now
			p.CompletedAt = &completedAt
		}
	} else {
		p.CompletedAt = nil
	}

	// UpdatedAt is monotonically non-decreasing per record.
	if now.After(p.UpdatedAt) {
		p.UpdatedAt = now
	}
}

// AppliedOperation is the server-side ledger of client operation IDs that
// have already been processed, used to make replays of the same operation
// idempotent after an ambiguous network failure.
type AppliedOperation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OperationID string    `gorm:"uniqueIndex;size:64" json:"operation_id"`
	UserID      uint      `gorm:"index" json:"user_id"`
	ChapterID   string    `gorm:"size:128" json:"chapter_id"`
	Method      string    `gorm:"size:10" json:"method"`
	AppliedAt   time.Time `gorm:"index" json:"applied_at"`
}

func (AppliedOperation) TableName() string {
	return "applied_operations"
}

// ProgressSummary is a per-user rollup over all progress records, recomputed
// in the background after progress writes.
type ProgressSummary struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"uniqueIndex" json:"user_id"`
	ChaptersStarted   int       `json:"chapters_started"`
	ChaptersCompleted int       `json:"chapters_completed"`
	AveragePercentage float64   `json:"average_percentage"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (ProgressSummary) TableName() string {
	return "progress_summaries"
}
