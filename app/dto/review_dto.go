package dto

// AssetActionRequest addresses a single asset for approve, regenerate, reset-prompt, restart,
// remove-background and publish
type AssetActionRequest struct {
	AssetID uint   `json:"-" validate:"required,min=1"`
	Actor   string `json:"-"`
}

// RejectAssetRequest rejects an asset awaiting review
// IncorporateFeedback defaults to true when omitted
type RejectAssetRequest struct {
	AssetID             uint   `json:"-" validate:"required,min=1"`
	Reason              string `json:"reason" validate:"required,max=4000"`
	IncorporateFeedback *bool  `json:"incorporate_feedback,omitempty"`
	Actor               string `json:"-"`
}

// RejectionRecordDTO is one entry of an asset's rejection history
type RejectionRecordDTO struct {
	ID                       uint   `json:"id"`
	Reason                   string `json:"reason"`
	PromptSnapshot           string `json:"prompt_snapshot"`
	PromptVersionAtRejection int    `json:"prompt_version_at_rejection"`
	IncorporatedFeedback     bool   `json:"incorporated_feedback"`
	RejectedBy               string `json:"rejected_by"`
	CreatedAt                string `json:"created_at"`
}

// RejectionHistoryResponse lists rejections oldest first
type RejectionHistoryResponse struct {
	AssetID    uint                 `json:"asset_id"`
	Rejections []RejectionRecordDTO `json:"rejections"`
}
