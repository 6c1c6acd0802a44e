package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Default avatar composite context
const AvatarContextDefault = "default"

// AvatarCompositeCacheEntry is the rendered layer stack of one subject in one context
type AvatarCompositeCacheEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	SubjectID  string         `gorm:"size:128;not null;uniqueIndex:uk_avatar_composites_subject_context,priority:1" json:"subject_id"`
	Context    string         `gorm:"size:64;not null;uniqueIndex:uk_avatar_composites_subject_context,priority:2" json:"context"`
	AvatarHash string         `gorm:"size:64;not null;index:idx_avatar_composites_hash" json:"avatar_hash"`
	LayerIDs   datatypes.JSON `json:"layer_ids,omitempty"`
	StorageKey string         `gorm:"size:512;not null" json:"storage_key"`
	PublicURL  string         `gorm:"size:1024;not null" json:"public_url"`
	Width      int            `gorm:"not null" json:"width"`
	Height     int            `gorm:"not null" json:"height"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName returns the table name for the model
func (AvatarCompositeCacheEntry) TableName() string {
	return "avatar_composite_cache_entries"
}

// Layers decodes the stored layer selection
func (e *AvatarCompositeCacheEntry) Layers() []string {
	if len(e.LayerIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(e.LayerIDs, &ids); err != nil {
		return nil
	}
	return ids
}

// SetLayers stores the normalized layer selection
func (e *AvatarCompositeCacheEntry) SetLayers(ids []string) {
	raw, _ := json.Marshal(NormalizeLayerIDs(ids))
	e.LayerIDs = datatypes.JSON(raw)
}

// MatchesSelection reports whether the entry was rendered from exactly this selection
func (e *AvatarCompositeCacheEntry) MatchesSelection(layerIDs []string) bool {
	return e.AvatarHash == AvatarHash(layerIDs)
}
