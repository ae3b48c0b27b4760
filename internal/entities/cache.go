package entities

import (
	"time"
)

// CacheEntry is a durable snapshot of a previously fetched read result,
// keyed by request identity (method + URL). A cache entry is only ever
// served when no live response is obtainable.
type CacheEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:600" json:"key"`
	Content   string    `gorm:"type:text" json:"content"`
	FetchedAt time.Time `gorm:"index" json:"fetched_at"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}

// CacheKey builds the request identity key for a cache entry.
func CacheKey(method, resource string) string {
	return method + " " + resource
}

// ProgressSnapshot is the client's last known local version of a progress
// record, refreshed on live reads and on optimistic offline writes. It is
// what the merge resolver compares against a server-authoritative record.
type ProgressSnapshot struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	ChapterID            string         `gorm:"uniqueIndex;size:128" json:"chapter_id"`
	SectionID            string         `gorm:"size:128" json:"section_id,omitempty"`
	CompletionPercentage int            `json:"completion_percentage"`
	Status               ProgressStatus `gorm:"size:20" json:"status"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	Pending              bool           `json:"pending"` // true while an unsynced local write exists
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (ProgressSnapshot) TableName() string {
	return "progress_snapshots"
}
