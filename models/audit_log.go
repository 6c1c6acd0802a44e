package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Action       string         `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	AssetID      *uint          `gorm:"index:idx_audit_asset_id" json:"asset_id,omitempty"`
	TargetType   *string        `gorm:"size:64;index:idx_audit_target,priority:1" json:"target_type,omitempty"`
	TargetID     *string        `gorm:"size:255;index:idx_audit_target,priority:2" json:"target_id,omitempty"`
	Actor        string         `gorm:"size:255;not null;index:idx_audit_actor" json:"actor"`
	Details      datatypes.JSON `json:"details,omitempty"`
	IPAddress    *string        `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string        `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string        `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Success      *bool          `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// Audit action constants
const (
	AuditActionGenerationRequested     = "asset_generation_requested"
	AuditActionGenerationSucceeded     = "asset_generation_succeeded"
	AuditActionGenerationFailed        = "asset_generation_failed"
	AuditActionGenerationRestarted     = "asset_generation_restarted"
	AuditActionAssetApproved           = "asset_approved"
	AuditActionAssetRejected           = "asset_rejected"
	AuditActionAssetRegenerated        = "asset_regenerated"
	AuditActionPromptReset             = "asset_prompt_reset"
	AuditActionAssetDerived            = "asset_derived"
	AuditActionBackgroundRemoved       = "asset_background_removed"
	AuditActionAssetPublished          = "asset_published"
	AuditActionAssetPublishFailed      = "asset_publish_failed"
	AuditActionBuildingConfigUpdated   = "building_config_updated"
	AuditActionBuildingConfigPublish   = "building_config_published"
	AuditActionBuildingConfigUnpublish = "building_config_unpublished"
	AuditActionAvatarCompositeUpdated  = "avatar_composite_updated"
	AuditActionSceneTemplateUpdated    = "scene_template_updated"
	AuditActionSceneCompositeCached    = "scene_composite_cached"
	AuditActionSceneCacheEvicted       = "scene_cache_evicted"
)

// Audit target types for entries that do not reference an asset
const (
	AuditTargetBuildingConfig = "building_config"
	AuditTargetSceneTemplate  = "scene_template"
	AuditTargetSubject        = "subject"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	AssetID       *uint
	Action        *string
	Actor         *string
	TargetType    *string
	TargetID      *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// DetailsMap decodes the structured payload, returning nil when empty or malformed
func (a *AuditLog) DetailsMap() map[string]any {
	if len(a.Details) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(a.Details, &out); err != nil {
		return nil
	}
	return out
}
