package dto

// UpdateBuildingConfigRequest edits the draft configuration of a building type
// Nil fields are left unchanged; ClearCost/ClearProfit remove an override
type UpdateBuildingConfigRequest struct {
	BuildingTypeID string `json:"-" validate:"required,max=128"`
	ActiveSpriteID *uint  `json:"active_sprite_id,omitempty" validate:"omitempty,min=1"`
	CostOverride   *int64 `json:"cost_override,omitempty" validate:"omitempty,min=0"`
	ProfitOverride *int64 `json:"profit_override,omitempty" validate:"omitempty,min=0"`
	ClearCost      bool   `json:"clear_cost,omitempty"`
	ClearProfit    bool   `json:"clear_profit,omitempty"`
	Actor          string `json:"-"`
}

// BuildingConfigActionRequest addresses one building type for publish/unpublish
type BuildingConfigActionRequest struct {
	BuildingTypeID string `json:"-" validate:"required,max=128"`
	Actor          string `json:"-"`
}

// BuildingConfigDTO is a building configuration with effective economy values
type BuildingConfigDTO struct {
	BuildingTypeID  string  `json:"building_type_id"`
	DisplayName     string  `json:"display_name"`
	ActiveSpriteID  *uint   `json:"active_sprite_id,omitempty"`
	ActiveSpriteURL *string `json:"active_sprite_url,omitempty"`
	DefaultCost     int64   `json:"default_cost"`
	DefaultProfit   int64   `json:"default_profit"`
	CostOverride    *int64  `json:"cost_override,omitempty"`
	ProfitOverride  *int64  `json:"profit_override,omitempty"`
	EffectiveCost   int64   `json:"effective_cost"`
	EffectiveProfit int64   `json:"effective_profit"`
	IsPublished     bool    `json:"is_published"`
	PublishedAt     *string `json:"published_at,omitempty"`
	PublishedBy     *string `json:"published_by,omitempty"`
	UpdatedBy       *string `json:"updated_by,omitempty"`
	UpdatedAt       *string `json:"updated_at,omitempty"`
}

// BuildingConfigResponse wraps one configuration after a mutating operation
type BuildingConfigResponse struct {
	Message string            `json:"message"`
	Config  BuildingConfigDTO `json:"config"`
}

// ListBuildingConfigsResponse lists every catalog building type with its configuration
type ListBuildingConfigsResponse struct {
	Configs []BuildingConfigDTO `json:"configs"`
}
