package sync

import (
	"sort"

	"github.com/avolkau/studysync/internal/entities"
)

// Progress is treated as monotonic: when a server-authoritative record and a
// locally held version of the same chapter disagree, the more advanced one
// wins in its entirety, so completion never silently regresses. On equal
// percentages the later updated_at wins.

// ResolveRecord picks the winner between a server record and a local
// snapshot for the same chapter. The winner's status and timestamps travel
// with it; server identity fields are always preserved.
func ResolveRecord(server entities.ProgressRecord, local entities.ProgressSnapshot) entities.ProgressRecord {
	if localWins(server, local) {
		merged := server
		merged.SectionID = local.SectionID
		merged.CompletionPercentage = local.CompletionPercentage
		merged.Status = local.Status
		merged.CompletedAt = local.CompletedAt
		merged.UpdatedAt = local.UpdatedAt
		return merged
	}
	return server
}

func localWins(server entities.ProgressRecord, local entities.ProgressSnapshot) bool {
	if local.CompletionPercentage != server.CompletionPercentage {
		return local.CompletionPercentage > server.CompletionPercentage
	}
	return local.UpdatedAt.After(server.UpdatedAt)
}

// MergeProgressSet applies the per-chapter merge rule across a whole
// progress set fetched from the server. Chapters known only locally (e.g.
// first progress recorded while offline) are included from their snapshots.
func MergeProgressSet(server []entities.ProgressRecord, local map[string]entities.ProgressSnapshot) []entities.ProgressRecord {
	merged := make([]entities.ProgressRecord, 0, len(server))
	seen := make(map[string]bool, len(server))

	for _, record := range server {
		seen[record.ChapterID] = true
		if snap, ok := local[record.ChapterID]; ok {
			merged = append(merged, ResolveRecord(record, snap))
		} else {
			merged = append(merged, record)
		}
	}

	for chapterID, snap := range local {
		if seen[chapterID] || !snap.Pending {
			continue
		}
		merged = append(merged, entities.ProgressRecord{
			ChapterID:            snap.ChapterID,
			SectionID:            snap.SectionID,
			CompletionPercentage: snap.CompletionPercentage,
			Status:               snap.Status,
			CompletedAt:          snap.CompletedAt,
			LastAccessedAt:       snap.UpdatedAt,
			UpdatedAt:            snap.UpdatedAt,
		})
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ChapterID < merged[j].ChapterID
	})
	return merged
}
