package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avolkau/studysync/internal/entities"
	"github.com/avolkau/studysync/internal/tasks"
)

// HeaderOperationID carries the client-derived idempotency key. A write
// replayed with an already-seen operation ID is acknowledged without being
// applied again.
const HeaderOperationID = "X-Operation-ID"

// ProgressStore defines database operations for progress management.
type ProgressStore interface {
	GetRecord(userID uint, chapterID string) (*entities.ProgressRecord, error)
	ListRecords(userID uint) ([]entities.ProgressRecord, error)
	UpsertRecord(userID uint, chapterID, sectionID string, percentage int, now time.Time) (*entities.ProgressRecord, error)
	ResetRecord(userID uint, chapterID string) error
	HasAppliedOperation(operationID string) (bool, error)
	RecordAppliedOperation(operationID string, userID uint, chapterID, method string) error
	GetSummary(userID uint) (*entities.ProgressSummary, error)
}

// UpdateProgressRequest is the body of a progress upsert.
type UpdateProgressRequest struct {
	CompletionPercentage *int   `json:"completion_percentage" binding:"required"`
	SectionID            string `json:"section_id"`
}

type ProgressController struct {
	store      ProgressStore
	taskClient *tasks.Client
}

func NewProgressController(store ProgressStore, taskClient *tasks.Client) *ProgressController {
	return &ProgressController{store: store, taskClient: taskClient}
}

// ListProgress returns all progress records for the authenticated user.
// GET /api/progress
func (pc *ProgressController) ListProgress(c *gin.Context) {
	records, err := pc.store.ListRecords(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"progress": records,
		"total":    len(records),
	})
}

// GetChapterProgress returns one chapter's progress record.
// GET /api/progress/chapter/:chapterID
func (pc *ProgressController) GetChapterProgress(c *gin.Context) {
	chapterID := c.Param("chapterID")

	record, err := pc.store.GetRecord(GetUserID(c), chapterID)
	if err != nil {
		respondInternalError(c, err, "get chapter progress")
		return
	}
	if record == nil {
		respondNotFound(c, "progress record")
		return
	}

	c.JSON(http.StatusOK, record)
}

// UpdateChapterProgress creates or updates one chapter's progress record.
// PUT /api/progress/chapter/:chapterID
func (pc *ProgressController) UpdateChapterProgress(c *gin.Context) {
	chapterID := c.Param("chapterID")
	userID := GetUserID(c)

	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "completion_percentage is required")
		return
	}
	if *req.CompletionPercentage < 0 || *req.CompletionPercentage > 100 {
		respondBadRequest(c, "completion_percentage must be between 0 and 100")
		return
	}

	operationID := c.GetHeader(HeaderOperationID)
	if applied, done := pc.checkAlreadyApplied(c, operationID); done {
		return
	} else if applied {
		// Replay of a processed operation: acknowledge with the current
		// state instead of applying it twice.
		record, err := pc.store.GetRecord(userID, chapterID)
		if err != nil {
			respondInternalError(c, err, "get chapter progress")
			return
		}
		if record == nil {
			respondSuccess(c, "operation already applied")
			return
		}
		c.JSON(http.StatusOK, record)
		return
	}

	record, err := pc.store.UpsertRecord(userID, chapterID, req.SectionID, *req.CompletionPercentage, time.Now())
	if err != nil {
		respondInternalError(c, err, "update chapter progress")
		return
	}

	pc.markApplied(operationID, userID, chapterID, http.MethodPut)
	pc.enqueueSummaryRecalc(userID)

	c.JSON(http.StatusOK, record)
}

// ResetChapterProgress removes one chapter's progress record.
// DELETE /api/progress/chapter/:chapterID
func (pc *ProgressController) ResetChapterProgress(c *gin.Context) {
	chapterID := c.Param("chapterID")
	userID := GetUserID(c)

	operationID := c.GetHeader(HeaderOperationID)
	if applied, done := pc.checkAlreadyApplied(c, operationID); done {
		return
	} else if applied {
		respondSuccess(c, "operation already applied")
		return
	}

	if err := pc.store.ResetRecord(userID, chapterID); err != nil {
		respondInternalError(c, err, "reset chapter progress")
		return
	}

	pc.markApplied(operationID, userID, chapterID, http.MethodDelete)
	pc.enqueueSummaryRecalc(userID)

	respondSuccess(c, "progress reset")
}

// GetSummary returns the per-user rollup over all progress records.
// GET /api/progress/summary
func (pc *ProgressController) GetSummary(c *gin.Context) {
	summary, err := pc.store.GetSummary(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "get progress summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// checkAlreadyApplied looks up the operation ID in the dedup ledger. The
// second return value reports that an error response was already written.
func (pc *ProgressController) checkAlreadyApplied(c *gin.Context, operationID string) (applied bool, done bool) {
	if operationID == "" {
		return false, false
	}
	applied, err := pc.store.HasAppliedOperation(operationID)
	if err != nil {
		respondInternalError(c, err, "check applied operation")
		return false, true
	}
	return applied, false
}

func (pc *ProgressController) markApplied(operationID string, userID uint, chapterID, method string) {
	if operationID == "" {
		return
	}
	if err := pc.store.RecordAppliedOperation(operationID, userID, chapterID, method); err != nil {
		// The write itself succeeded; a ledger failure only weakens dedup.
		log.Printf("Failed to record applied operation %s: %v", operationID, err)
	}
}

func (pc *ProgressController) enqueueSummaryRecalc(userID uint) {
	if pc.taskClient == nil {
		return
	}
	_, _ = pc.taskClient.Add(tasks.RecalculateSummaryTask{UserID: userID}).Save()
}
