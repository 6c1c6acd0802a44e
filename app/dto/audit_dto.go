package dto

// GetRecentAuditRequest filters the audit log; entries are returned newest first
type GetRecentAuditRequest struct {
	Limit   int     `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
	AssetID *uint   `json:"asset_id,omitempty" validate:"omitempty,min=1"`
	Action  *string `json:"action,omitempty" validate:"omitempty,max=64"`
	Actor   *string `json:"actor,omitempty" validate:"omitempty,max=255"`
}

// AuditLogDTO is one audit entry
type AuditLogDTO struct {
	ID           uint           `json:"id"`
	Action       string         `json:"action"`
	AssetID      *uint          `json:"asset_id,omitempty"`
	TargetType   *string        `json:"target_type,omitempty"`
	TargetID     *string        `json:"target_id,omitempty"`
	Actor        string         `json:"actor"`
	Details      map[string]any `json:"details,omitempty"`
	RequestID    *string        `json:"request_id,omitempty"`
	IPAddress    *string        `json:"ip_address,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

// RecentAuditResponse lists audit entries newest first
type RecentAuditResponse struct {
	Entries []AuditLogDTO `json:"entries"`
}

// ExportAuditResponse carries an xlsx workbook of audit entries
type ExportAuditResponse struct {
	Filename string
	Data     []byte
}
