package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrImmutableRecord is returned by hooks guarding append-only tables
var ErrImmutableRecord = errors.New("record is append-only")

// RejectionRecord is one reviewer rejection of an asset
type RejectionRecord struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	AssetID                  uint      `gorm:"not null;index:idx_rejection_records_asset_id" json:"asset_id"`
	Reason                   string    `gorm:"type:text;not null" json:"reason"`
	PromptSnapshot           string    `gorm:"type:text;not null" json:"prompt_snapshot"`
	PromptVersionAtRejection int       `gorm:"not null" json:"prompt_version_at_rejection"`
	IncorporatedFeedback     bool      `gorm:"not null;default:true" json:"incorporated_feedback"`
	RejectedBy               string    `gorm:"size:255;not null" json:"rejected_by"`
	CreatedAt                time.Time `gorm:"index:idx_rejection_records_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (RejectionRecord) TableName() string {
	return "rejection_records"
}

func (r *RejectionRecord) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

func (r *RejectionRecord) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// RejectionRecordFilter represents filter criteria for rejection history queries
type RejectionRecordFilter struct {
	ID            *uint
	AssetID       *uint
	RejectedBy    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
