package dto

// GenerateAssetRequest creates or refreshes an asset record and runs generation
// Re-requesting the same (category, asset_key, variant) updates the existing record
type GenerateAssetRequest struct {
	Category   string `json:"category" validate:"required,max=64"`
	AssetKey   string `json:"asset_key" validate:"required,max=128"`
	Variant    int    `json:"variant" validate:"omitempty,min=1,max=1000"`
	BasePrompt string `json:"base_prompt" validate:"required,max=8000"`
	Priority   *int   `json:"priority,omitempty" validate:"omitempty,min=-100,max=100"`
	// Internal: populated by handler from the authenticated reviewer
	Actor string `json:"-"`
}

// AssetDTO is the externally visible view of an asset record
type AssetDTO struct {
	ID                uint     `json:"id"`
	UUID              string   `json:"uuid"`
	Category          string   `json:"category"`
	AssetKey          string   `json:"asset_key"`
	Variant           int      `json:"variant"`
	BasePrompt        string   `json:"base_prompt"`
	CurrentPrompt     string   `json:"current_prompt"`
	PromptVersion     int      `json:"prompt_version"`
	FeedbackNotes     []string `json:"feedback_notes,omitempty"`
	Status            string   `json:"status"`
	PrivateStorageKey *string  `json:"private_storage_key,omitempty"`
	PublicStorageKey  *string  `json:"public_storage_key,omitempty"`
	PublicURL         *string  `json:"public_url,omitempty"`
	BackgroundRemoved bool     `json:"background_removed"`
	RejectionCount    int      `json:"rejection_count"`
	ParentAssetID     *uint    `json:"parent_asset_id,omitempty"`
	ApprovedAt        *string  `json:"approved_at,omitempty"`
	ApprovedBy        *string  `json:"approved_by,omitempty"`
	PublishedAt       *string  `json:"published_at,omitempty"`
	ErrorMessage      *string  `json:"error_message,omitempty"`
	Version           int      `json:"version"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// QueueEntryDTO exposes generation attempt bookkeeping
type QueueEntryDTO struct {
	Priority    int     `json:"priority"`
	Attempts    int     `json:"attempts"`
	MaxAttempts int     `json:"max_attempts"`
	Status      string  `json:"status"`
	LastError   *string `json:"last_error,omitempty"`
	StartedAt   *string `json:"started_at,omitempty"`
	FinishedAt  *string `json:"finished_at,omitempty"`
}

// AssetResponse wraps a single asset after a mutating operation
type AssetResponse struct {
	Message string         `json:"message"`
	Asset   AssetDTO       `json:"asset"`
	Queue   *QueueEntryDTO `json:"queue,omitempty"`
}

// GetAssetResponse returns one asset with its queue state
type GetAssetResponse struct {
	Asset AssetDTO       `json:"asset"`
	Queue *QueueEntryDTO `json:"queue,omitempty"`
}

// ListAssetsRequest filters asset listings by category; status and parent are optional
type ListAssetsRequest struct {
	Category      string  `json:"category" validate:"required,max=64"`
	Status        *string `json:"status,omitempty" validate:"omitempty,oneof=pending generating awaiting_review approved rejected failed"`
	ParentAssetID *uint   `json:"parent_asset_id,omitempty" validate:"omitempty,min=1"`
	Page          int     `json:"page,omitempty"`
	PageSize      int     `json:"page_size,omitempty"`
}

// ListAssetsResponse is one page of assets
type ListAssetsResponse struct {
	Items    []AssetDTO `json:"items"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// CategoryDTO describes one asset category
type CategoryDTO struct {
	Name                      string `json:"name"`
	DisplayName               string `json:"display_name"`
	ParentCategory            string `json:"parent_category,omitempty"`
	ChildCategory             string `json:"child_category,omitempty"`
	RequiresBackgroundRemoval bool   `json:"requires_background_removal"`
	TargetWidth               int    `json:"target_width"`
	TargetHeight              int    `json:"target_height"`
}

// ListCategoriesResponse lists the category registry
type ListCategoriesResponse struct {
	Categories []CategoryDTO `json:"categories"`
}

// DeriveAssetRequest generates a child asset from an approved reference
type DeriveAssetRequest struct {
	ParentAssetID uint   `json:"-"`
	SpritePrompt  string `json:"sprite_prompt" validate:"required,max=8000"`
	Variant       int    `json:"variant" validate:"omitempty,min=1,max=1000"`
	Actor         string `json:"-"`
}

// PublishAssetResponse reports the public location of a published asset
type PublishAssetResponse struct {
	Message   string   `json:"message"`
	Asset     AssetDTO `json:"asset"`
	PublicURL string   `json:"public_url"`
}
