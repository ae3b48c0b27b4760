// Package snapshots stores the client's last known local version of each
// progress record. Snapshots are refreshed on live reads and on optimistic
// offline writes, and are the local side of merge resolution.
package snapshots

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/avolkau/studysync/internal/entities"
	"github.com/avolkau/studysync/internal/localstore"
)

// Repository handles all progress snapshot database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new snapshots repository.
func NewRepository(store *localstore.Store) *Repository {
	return &Repository{db: store.DB}
}

// Upsert stores or replaces the snapshot for a chapter. pending marks the
// snapshot as carrying an unsynced local write.
func (r *Repository) Upsert(snap *entities.ProgressSnapshot) error {
	var existing entities.ProgressSnapshot
	result := r.db.Where("chapter_id = ?", snap.ChapterID).First(&existing)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if snap.UpdatedAt.IsZero() {
			snap.UpdatedAt = time.Now()
		}
		return localstore.WrapStorage("snapshot upsert", r.db.Create(snap).Error)
	} else if result.Error != nil {
		return localstore.WrapStorage("snapshot upsert", result.Error)
	}

	existing.SectionID = snap.SectionID
	existing.CompletionPercentage = snap.CompletionPercentage
	existing.Status = snap.Status
	existing.CompletedAt = snap.CompletedAt
	existing.Pending = snap.Pending
	existing.UpdatedAt = snap.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = time.Now()
	}
	return localstore.WrapStorage("snapshot upsert", r.db.Save(&existing).Error)
}

// Get returns the snapshot for a chapter, or (nil, nil) when none exists.
func (r *Repository) Get(chapterID string) (*entities.ProgressSnapshot, error) {
	var snap entities.ProgressSnapshot
	err := r.db.Where("chapter_id = ?", chapterID).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, localstore.WrapStorage("snapshot get", err)
	}
	return &snap, nil
}

// GetAll returns every stored snapshot keyed by chapter.
func (r *Repository) GetAll() (map[string]entities.ProgressSnapshot, error) {
	var snaps []entities.ProgressSnapshot
	if err := r.db.Find(&snaps).Error; err != nil {
		return nil, localstore.WrapStorage("snapshot list", err)
	}
	byChapter := make(map[string]entities.ProgressSnapshot, len(snaps))
	for _, s := range snaps {
		byChapter[s.ChapterID] = s
	}
	return byChapter, nil
}

// MarkSynced clears the pending flag once the chapter's queued writes have
// been confirmed by the server.
func (r *Repository) MarkSynced(chapterID string) error {
	err := r.db.Model(&entities.ProgressSnapshot{}).
		Where("chapter_id = ?", chapterID).
		Update("pending", false).Error
	return localstore.WrapStorage("snapshot mark synced", err)
}

// Delete removes the snapshot for a chapter (e.g. after a confirmed reset).
func (r *Repository) Delete(chapterID string) error {
	err := r.db.Where("chapter_id = ?", chapterID).Delete(&entities.ProgressSnapshot{}).Error
	return localstore.WrapStorage("snapshot delete", err)
}
