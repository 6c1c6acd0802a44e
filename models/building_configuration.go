package models

import (
	"time"
)

// BuildingConfiguration binds an approved sprite and economy overrides to a building type
type BuildingConfiguration struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	BuildingTypeID string     `gorm:"size:128;not null;uniqueIndex:uk_building_configurations_type" json:"building_type_id"`
	ActiveSpriteID *uint      `gorm:"index:idx_building_configurations_sprite" json:"active_sprite_id,omitempty"`
	CostOverride   *int64     `json:"cost_override,omitempty"`
	ProfitOverride *int64     `json:"profit_override,omitempty"`
	IsPublished    bool       `gorm:"not null;default:false;index:idx_building_configurations_published" json:"is_published"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	PublishedBy    *string    `gorm:"size:255" json:"published_by,omitempty"`
	UpdatedBy      *string    `gorm:"size:255" json:"updated_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relations
	ActiveSprite *AssetRecord `gorm:"foreignKey:ActiveSpriteID;references:ID" json:"active_sprite,omitempty"`
}

// TableName returns the table name for the model
func (BuildingConfiguration) TableName() string {
	return "building_configurations"
}

// EffectiveCost returns the override when set, otherwise the building type default
func (b *BuildingConfiguration) EffectiveCost(bt BuildingType) int64 {
	if b.CostOverride != nil {
		return *b.CostOverride
	}
	return bt.DefaultCost
}

// EffectiveProfit returns the override when set, otherwise the building type default
func (b *BuildingConfiguration) EffectiveProfit(bt BuildingType) int64 {
	if b.ProfitOverride != nil {
		return *b.ProfitOverride
	}
	return bt.DefaultProfit
}

// BuildingConfigurationFilter represents filter criteria for building configuration queries
type BuildingConfigurationFilter struct {
	ID             *uint
	BuildingTypeID *string
	ActiveSpriteID *uint
	IsPublished    *bool
}
