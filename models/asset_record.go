// Package models contains domain entities for the asset generation and compositing pipeline
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssetStatus represents the lifecycle state of an asset record
type AssetStatus string

const (
	AssetStatusPending        AssetStatus = "pending"
	AssetStatusGenerating     AssetStatus = "generating"
	AssetStatusAwaitingReview AssetStatus = "awaiting_review"
	AssetStatusApproved       AssetStatus = "approved"
	AssetStatusRejected       AssetStatus = "rejected"
	AssetStatusFailed         AssetStatus = "failed"
)

// String returns the string representation of the status
func (s AssetStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AssetStatus) Valid() bool {
	switch s {
	case AssetStatusPending, AssetStatusGenerating,
		AssetStatusAwaitingReview, AssetStatusApproved,
		AssetStatusRejected, AssetStatusFailed:
		return true
	default:
		return false
	}
}

// CanGenerate reports whether a generation attempt may start from this status
func (s AssetStatus) CanGenerate() bool {
	return s == AssetStatusPending || s == AssetStatusRejected || s == AssetStatusFailed
}

// CanRegenerate reports whether an explicit regenerate is allowed from this status
func (s AssetStatus) CanRegenerate() bool {
	return s == AssetStatusRejected || s == AssetStatusFailed
}

// CanResetPrompt reports whether accumulated feedback may be discarded from this status
func (s AssetStatus) CanResetPrompt() bool {
	return s == AssetStatusRejected || s == AssetStatusApproved
}

// Scan implements the sql.Scanner interface for AssetStatus
func (s *AssetStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AssetStatus(v)
	case []byte:
		*s = AssetStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AssetStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AssetStatus
func (s AssetStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AssetStatus: %s", s)
	}
	return string(s), nil
}

// AssetRecord is one generated visual unit and its review/publish state
type AssetRecord struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_asset_records_uuid" json:"uuid"`
	Category          string         `gorm:"size:64;not null;uniqueIndex:uk_asset_records_identity,priority:1;index:idx_asset_records_category" json:"category"`
	AssetKey          string         `gorm:"size:128;not null;uniqueIndex:uk_asset_records_identity,priority:2" json:"asset_key"`
	Variant           int            `gorm:"not null;default:1;uniqueIndex:uk_asset_records_identity,priority:3" json:"variant"`
	BasePrompt        string         `gorm:"type:text;not null" json:"base_prompt"`
	CurrentPrompt     string         `gorm:"type:text;not null" json:"current_prompt"`
	PromptVersion     int            `gorm:"not null;default:1" json:"prompt_version"`
	FeedbackNotes     datatypes.JSON `gorm:"type:json" json:"feedback_notes,omitempty"`
	Status            AssetStatus    `gorm:"type:varchar(32);not null;default:'pending';index:idx_asset_records_status" json:"status"`
	PrivateStorageKey *string        `gorm:"size:512" json:"private_storage_key,omitempty"`
	PublicStorageKey  *string        `gorm:"size:512" json:"public_storage_key,omitempty"`
	PublicURL         *string        `gorm:"size:1024" json:"public_url,omitempty"`
	BackgroundRemoved bool           `gorm:"not null;default:false" json:"background_removed"`
	RejectionCount    int            `gorm:"not null;default:0" json:"rejection_count"`
	ParentAssetID     *uint          `gorm:"index:idx_asset_records_parent_asset_id" json:"parent_asset_id,omitempty"`
	ApprovedAt        *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy        *string        `gorm:"size:255" json:"approved_by,omitempty"`
	PublishedAt       *time.Time     `json:"published_at,omitempty"`
	ErrorMessage      *string        `gorm:"type:text" json:"error_message,omitempty"`
	Version           int            `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time      `gorm:"index:idx_asset_records_created_at" json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName returns the table name for the model
func (AssetRecord) TableName() string {
	return "asset_records"
}

// BeforeCreate is called before creating a new record
func (a *AssetRecord) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.PromptVersion == 0 {
		a.PromptVersion = 1
	}
	if a.Version == 0 {
		a.Version = 1
	}
	if a.Variant == 0 {
		a.Variant = 1
	}
	if a.Status == "" {
		a.Status = AssetStatusPending
	}
	return nil
}

// Feedback returns the reviewer feedback currently folded into the prompt
func (a *AssetRecord) Feedback() []string {
	if len(a.FeedbackNotes) == 0 {
		return nil
	}
	var notes []string
	if err := json.Unmarshal(a.FeedbackNotes, &notes); err != nil {
		return nil
	}
	return notes
}

// SetFeedback replaces the stored feedback notes
func (a *AssetRecord) SetFeedback(notes []string) {
	if len(notes) == 0 {
		a.FeedbackNotes = nil
		return
	}
	raw, _ := json.Marshal(notes)
	a.FeedbackNotes = datatypes.JSON(raw)
}

// HasPrivateImage reports whether a generated image is stored privately
func (a *AssetRecord) HasPrivateImage() bool {
	return a.PrivateStorageKey != nil && *a.PrivateStorageKey != ""
}

// IsPublished reports whether the asset has a public copy
func (a *AssetRecord) IsPublished() bool {
	return a.PublicStorageKey != nil && *a.PublicStorageKey != ""
}

// AssetRecordFilter represents filter criteria for asset record queries
type AssetRecordFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Category      *string
	AssetKey      *string
	Variant       *int
	Status        *AssetStatus
	Statuses      []AssetStatus
	ParentAssetID *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
