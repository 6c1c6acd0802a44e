package models

import (
	"time"
)

// SceneComposedCacheEntry is a rendered scene for one subject on one template
type SceneComposedCacheEntry struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SceneTemplateID string    `gorm:"size:128;not null;uniqueIndex:uk_scene_composites_template_subject,priority:1;index:idx_scene_composites_template" json:"scene_template_id"`
	SubjectID       string    `gorm:"size:128;not null;uniqueIndex:uk_scene_composites_template_subject,priority:2;index:idx_scene_composites_subject" json:"subject_id"`
	AvatarHash      string    `gorm:"size:64;not null" json:"avatar_hash"`
	TemplateHash    string    `gorm:"size:64;not null" json:"template_hash"`
	StorageKey      string    `gorm:"size:512;not null" json:"storage_key"`
	PublicURL       string    `gorm:"size:1024;not null" json:"public_url"`
	LastAccessedAt  time.Time `gorm:"index:idx_scene_composites_last_accessed_at" json:"last_accessed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the table name for the model
func (SceneComposedCacheEntry) TableName() string {
	return "scene_composed_cache_entries"
}

// Matches reports whether the cached render was produced from these inputs
func (e *SceneComposedCacheEntry) Matches(templateHash, avatarHash string) bool {
	return e.TemplateHash == templateHash && e.AvatarHash == avatarHash
}

// SceneComposedCacheEntryFilter represents filter criteria for scene cache queries
type SceneComposedCacheEntryFilter struct {
	SceneTemplateID *string
	SubjectID       *string
	AccessedBefore  *time.Time
}
