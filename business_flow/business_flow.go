package businessflow

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/amirphl/asset-forge/utils"
	"gorm.io/datatypes"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ClientMetadata holds client information recorded on audit entries
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// auditEntry is the flow-level description of one audit row
type auditEntry struct {
	Action     string
	AssetID    *uint
	TargetType string
	TargetID   string
	Actor      string
	Details    map[string]any
	Err        error
}

// createAuditLog appends one audit row; it joins the caller's transaction when ctx carries one
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, entry auditEntry, metadata *ClientMetadata) error {
	audit := &models.AuditLog{
		Action:  entry.Action,
		AssetID: entry.AssetID,
		Actor:   actorOrSystem(entry.Actor),
		Success: utils.ToPtr(entry.Err == nil),
	}
	if entry.TargetType != "" {
		audit.TargetType = utils.ToPtr(entry.TargetType)
		audit.TargetID = utils.ToPtr(entry.TargetID)
	}
	if len(entry.Details) > 0 {
		if raw, err := json.Marshal(entry.Details); err == nil {
			audit.Details = datatypes.JSON(raw)
		}
	}
	if entry.Err != nil {
		audit.ErrorMessage = utils.ToPtr(utils.TruncateString(entry.Err.Error(), 2000))
	}

	if metadata != nil {
		if metadata.IPAddress != "" {
			audit.IPAddress = utils.ToPtr(metadata.IPAddress)
		}
		if metadata.UserAgent != "" {
			audit.UserAgent = utils.ToPtr(metadata.UserAgent)
		}
		if metadata.RequestID != "" {
			audit.RequestID = utils.ToPtr(metadata.RequestID)
		}
	}

	// Extract request ID from context if available
	if audit.RequestID == nil {
		if requestID := utils.StringFromContext(ctx, utils.RequestIDKey); requestID != "" {
			audit.RequestID = &requestID
		}
	}

	return auditRepo.Save(ctx, audit)
}

func actorOrSystem(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return utils.SystemActor
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, NewValidationError("INVALID_PAGE", ErrInvalidPage.Error(), ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, NewValidationError("INVALID_PAGE_SIZE", ErrInvalidPageSize.Error(), ErrInvalidPageSize)
	}
	return page, pageSize, nil
}

// ToAssetDTO converts an asset record to its API representation
func ToAssetDTO(record *models.AssetRecord) dto.AssetDTO {
	return dto.AssetDTO{
		ID:                record.ID,
		UUID:              record.UUID.String(),
		Category:          record.Category,
		AssetKey:          record.AssetKey,
		Variant:           record.Variant,
		BasePrompt:        record.BasePrompt,
		CurrentPrompt:     record.CurrentPrompt,
		PromptVersion:     record.PromptVersion,
		FeedbackNotes:     record.Feedback(),
		Status:            record.Status.String(),
		PrivateStorageKey: record.PrivateStorageKey,
		PublicStorageKey:  record.PublicStorageKey,
		PublicURL:         record.PublicURL,
		BackgroundRemoved: record.BackgroundRemoved,
		RejectionCount:    record.RejectionCount,
		ParentAssetID:     record.ParentAssetID,
		ApprovedAt:        formatTimePtr(record.ApprovedAt),
		ApprovedBy:        record.ApprovedBy,
		PublishedAt:       formatTimePtr(record.PublishedAt),
		ErrorMessage:      record.ErrorMessage,
		Version:           record.Version,
		CreatedAt:         formatTime(record.CreatedAt),
		UpdatedAt:         formatTime(record.UpdatedAt),
	}
}

// ToQueueEntryDTO converts a queue entry; nil stays nil
func ToQueueEntryDTO(entry *models.QueueEntry) *dto.QueueEntryDTO {
	if entry == nil {
		return nil
	}
	return &dto.QueueEntryDTO{
		Priority:    entry.Priority,
		Attempts:    entry.Attempts,
		MaxAttempts: entry.MaxAttempts,
		Status:      entry.Status.String(),
		LastError:   entry.LastError,
		StartedAt:   formatTimePtr(entry.StartedAt),
		FinishedAt:  formatTimePtr(entry.FinishedAt),
	}
}

func ToRejectionRecordDTO(r *models.RejectionRecord) dto.RejectionRecordDTO {
	return dto.RejectionRecordDTO{
		ID:                       r.ID,
		Reason:                   r.Reason,
		PromptSnapshot:           r.PromptSnapshot,
		PromptVersionAtRejection: r.PromptVersionAtRejection,
		IncorporatedFeedback:     r.IncorporatedFeedback,
		RejectedBy:               r.RejectedBy,
		CreatedAt:                formatTime(r.CreatedAt),
	}
}

func ToAuditLogDTO(a *models.AuditLog) dto.AuditLogDTO {
	return dto.AuditLogDTO{
		ID:           a.ID,
		Action:       a.Action,
		AssetID:      a.AssetID,
		TargetType:   a.TargetType,
		TargetID:     a.TargetID,
		Actor:        a.Actor,
		Details:      a.DetailsMap(),
		RequestID:    a.RequestID,
		IPAddress:    a.IPAddress,
		Success:      !a.IsFailed(),
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    formatTime(a.CreatedAt),
	}
}

func ToCategoryDTO(c models.AssetCategory) dto.CategoryDTO {
	out := dto.CategoryDTO{
		Name:                      c.Name,
		DisplayName:               c.DisplayName,
		ParentCategory:            c.ParentCategory,
		RequiresBackgroundRemoval: c.RequiresBackgroundRemoval,
		TargetWidth:               c.TargetWidth,
		TargetHeight:              c.TargetHeight,
	}
	if child, ok := models.ChildCategoryOf(c.Name); ok {
		out.ChildCategory = child.Name
	}
	return out
}

func toAvatarSlotDTO(s models.AvatarSlot) dto.AvatarSlotDTO {
	return dto.AvatarSlotDTO{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

func ToSceneTemplateDTO(t *models.SceneTemplate) dto.SceneTemplateDTO {
	return dto.SceneTemplateDTO{
		ID:            t.ID,
		Name:          t.Name,
		BackgroundKey: t.BackgroundKey,
		ForegroundKey: t.ForegroundKey,
		AvatarSlot:    toAvatarSlotDTO(t.AvatarSlot),
		Width:         t.Width,
		Height:        t.Height,
		TemplateHash:  t.TemplateHash(),
		UpdatedAt:     formatTime(t.UpdatedAt),
	}
}

func ToAvatarCompositeDTO(e *models.AvatarCompositeCacheEntry, cached bool) dto.AvatarCompositeDTO {
	return dto.AvatarCompositeDTO{
		SubjectID:  e.SubjectID,
		Context:    e.Context,
		AvatarHash: e.AvatarHash,
		LayerIDs:   e.Layers(),
		PublicURL:  e.PublicURL,
		Width:      e.Width,
		Height:     e.Height,
		UpdatedAt:  formatTime(e.UpdatedAt),
		Cached:     cached,
	}
}

func ToSceneCompositeDTO(e *models.SceneComposedCacheEntry) dto.SceneCompositeDTO {
	return dto.SceneCompositeDTO{
		SceneTemplateID: e.SceneTemplateID,
		SubjectID:       e.SubjectID,
		AvatarHash:      e.AvatarHash,
		TemplateHash:    e.TemplateHash,
		PublicURL:       e.PublicURL,
		LastAccessedAt:  formatTime(e.LastAccessedAt),
	}
}
