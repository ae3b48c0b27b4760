// Package outbox is the durable mutation queue: an ordered log of write
// operations made while the remote authority was unreachable, drained by the
// reconciliation engine.
//
// Ordering matters: operations against the same target carry full payloads
// rather than deltas, so they must replay in creation order and a later
// creation time must always win.
package outbox

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/avolkau/studysync/internal/entities"
	"github.com/avolkau/studysync/internal/localstore"
)

// Repository handles all queued operation database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new outbox repository.
func NewRepository(store *localstore.Store) *Repository {
	return &Repository{db: store.DB}
}

// Enqueue appends an operation to the durable log. The entry is persisted
// before Enqueue returns, so a crash cannot lose an accepted write.
func (r *Repository) Enqueue(op *entities.QueuedOperation) error {
	if op.State == "" {
		op.State = entities.OperationStatePending
	}
	return localstore.WrapStorage("enqueue", r.db.Create(op).Error)
}

// ListPending returns the current ordered snapshot of pending operations,
// oldest first.
func (r *Repository) ListPending() ([]entities.QueuedOperation, error) {
	var ops []entities.QueuedOperation
	err := r.db.
		Where("state IN ?", []entities.OperationState{
			entities.OperationStatePending,
			entities.OperationStateRetrying,
		}).
		Order("created_at ASC, id ASC").
		Find(&ops).Error
	if err != nil {
		return nil, localstore.WrapStorage("list pending", err)
	}
	return ops, nil
}

// Get returns one operation by its stable identifier, or (nil, nil) when it
// no longer exists.
func (r *Repository) Get(operationID string) (*entities.QueuedOperation, error) {
	var op entities.QueuedOperation
	err := r.db.Where("operation_id = ?", operationID).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, localstore.WrapStorage("get operation", err)
	}
	return &op, nil
}

// Remove deletes a completed or abandoned operation from the log.
func (r *Repository) Remove(operationID string) error {
	err := r.db.Where("operation_id = ?", operationID).Delete(&entities.QueuedOperation{}).Error
	return localstore.WrapStorage("remove operation", err)
}

// MarkInFlight transitions an operation to in_flight for the duration of a
// submission attempt.
func (r *Repository) MarkInFlight(operationID string) error {
	err := r.db.Model(&entities.QueuedOperation{}).
		Where("operation_id = ?", operationID).
		Update("state", entities.OperationStateInFlight).Error
	return localstore.WrapStorage("mark in flight", err)
}

// ReleaseStuck returns operations stranded in the in_flight state to
// pending. An attempt that never resolved (process death or a storage
// failure mid-submission) would otherwise leave its operation invisible to
// every future drain while still counting as pending.
func (r *Repository) ReleaseStuck() (int64, error) {
	res := r.db.Model(&entities.QueuedOperation{}).
		Where("state = ?", entities.OperationStateInFlight).
		Update("state", entities.OperationStatePending)
	if res.Error != nil {
		return 0, localstore.WrapStorage("release stuck", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateRetry records a failed submission attempt: increments the retry
// count, stamps the attempt time and returns the operation to the retrying
// state.
func (r *Repository) UpdateRetry(operationID string) error {
	now := time.Now()
	err := r.db.Model(&entities.QueuedOperation{}).
		Where("operation_id = ?", operationID).
		Updates(map[string]any{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_attempt_at": now,
			"state":           entities.OperationStateRetrying,
		}).Error
	return localstore.WrapStorage("update retry", err)
}

// Count returns the number of operations still awaiting sync.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.QueuedOperation{}).
		Where("state IN ?", []entities.OperationState{
			entities.OperationStatePending,
			entities.OperationStateRetrying,
			entities.OperationStateInFlight,
		}).
		Count(&count).Error
	if err != nil {
		return 0, localstore.WrapStorage("count pending", err)
	}
	return count, nil
}
