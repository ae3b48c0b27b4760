package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type OperationState string

const (
	OperationStatePending  OperationState = "pending"
	OperationStateInFlight OperationState = "in_flight"
	OperationStateRetrying OperationState = "retrying"
	OperationStateFailed   OperationState = "failed"
	OperationStateDone     OperationState = "done"
)

// QueuedOperation is a durable mutation awaiting submission to the remote
// authority. Each entry carries the full payload rather than a delta, so a
// replay is a complete re-statement of the write.
type QueuedOperation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OperationID    string         `gorm:"uniqueIndex;size:64" json:"operation_id"`
	TargetResource string         `gorm:"index;size:512" json:"target_resource"`
	Method         string         `gorm:"size:10" json:"method"`
	Payload        string         `gorm:"type:text" json:"payload,omitempty"`
	State          OperationState `gorm:"size:20" json:"state"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	LastAttemptAt  *time.Time     `json:"last_attempt_at,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (QueuedOperation) TableName() string {
	return "queued_operations"
}

// NewOperationID derives a stable identifier from the operation's target,
// method, payload and creation time. Retrying the same stored operation
// always submits the same ID, so the server can deduplicate replays.
func NewOperationID(target, method, payload string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", method, target, payload, createdAt.UnixNano())))
	return hex.EncodeToString(sum[:])
}
