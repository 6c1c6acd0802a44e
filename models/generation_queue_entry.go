package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// QueueStatus represents the state of a generation queue entry
type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// String returns the string representation of the status
func (s QueueStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusQueued, QueueStatusProcessing, QueueStatusCompleted, QueueStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for QueueStatus
func (s *QueueStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = QueueStatus(v)
	case []byte:
		*s = QueueStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into QueueStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for QueueStatus
func (s QueueStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid QueueStatus: %s", s)
	}
	return string(s), nil
}

// QueueEntry tracks generation attempts for one asset
type QueueEntry struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	AssetID     uint        `gorm:"not null;uniqueIndex:uk_generation_queue_entries_asset_id" json:"asset_id"`
	Priority    int         `gorm:"not null;default:0;index:idx_generation_queue_entries_priority" json:"priority"`
	Attempts    int         `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int         `gorm:"not null;default:3" json:"max_attempts"`
	Status      QueueStatus `gorm:"type:varchar(32);not null;default:'queued';index:idx_generation_queue_entries_status" json:"status"`
	LastError   *string     `gorm:"type:text" json:"last_error,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName returns the table name for the model
func (QueueEntry) TableName() string {
	return "generation_queue_entries"
}

// Exhausted reports whether no failed attempts remain
func (q *QueueEntry) Exhausted() bool {
	return q.MaxAttempts > 0 && q.Attempts >= q.MaxAttempts
}

// QueueEntryFilter represents filter criteria for queue queries
type QueueEntryFilter struct {
	ID      *uint
	AssetID *uint
	Status  *QueueStatus
}
