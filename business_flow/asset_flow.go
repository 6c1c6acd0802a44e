package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
)

// AssetFlow creates, generates and lists asset records
type AssetFlow interface {
	GenerateAsset(ctx context.Context, req *dto.GenerateAssetRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
	GenerateFromRef(ctx context.Context, req *dto.DeriveAssetRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
	GetAsset(ctx context.Context, id uint) (*dto.GetAssetResponse, error)
	ListAssets(ctx context.Context, req *dto.ListAssetsRequest) (*dto.ListAssetsResponse, error)
	GetRejectionHistory(ctx context.Context, id uint) (*dto.RejectionHistoryResponse, error)
	ListCategories(ctx context.Context) (*dto.ListCategoriesResponse, error)
}

// AssetFlowImpl implements AssetFlow
type AssetFlowImpl struct {
	orchestrator  *GenerationOrchestrator
	assetRepo     repository.AssetRecordRepository
	queueRepo     repository.QueueEntryRepository
	rejectionRepo repository.RejectionRecordRepository
}

func NewAssetFlow(
	orchestrator *GenerationOrchestrator,
	assetRepo repository.AssetRecordRepository,
	queueRepo repository.QueueEntryRepository,
	rejectionRepo repository.RejectionRecordRepository,
) AssetFlow {
	return &AssetFlowImpl{
		orchestrator:  orchestrator,
		assetRepo:     assetRepo,
		queueRepo:     queueRepo,
		rejectionRepo: rejectionRepo,
	}
}

// GenerateAsset upserts the record and runs one generation attempt
func (f *AssetFlowImpl) GenerateAsset(ctx context.Context, req *dto.GenerateAssetRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	record, _, err := f.orchestrator.upsert(ctx, upsertParams{
		Category:   req.Category,
		AssetKey:   req.AssetKey,
		Variant:    req.Variant,
		BasePrompt: req.BasePrompt,
		Priority:   req.Priority,
	}, req.Actor, metadata)
	if err != nil {
		return nil, err
	}

	record, entry, err := f.orchestrator.generate(ctx, record.ID, req.Actor, metadata)
	if err != nil {
		return nil, err
	}

	return &dto.AssetResponse{
		Message: "Asset generated and awaiting review",
		Asset:   ToAssetDTO(record),
		Queue:   ToQueueEntryDTO(entry),
	}, nil
}

// GenerateFromRef derives a child asset from an approved parent reference. The parent is not modified.
func (f *AssetFlowImpl) GenerateFromRef(ctx context.Context, req *dto.DeriveAssetRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	if strings.TrimSpace(req.SpritePrompt) == "" {
		return nil, NewValidationError("PROMPT_REQUIRED", "sprite prompt is required", ErrPromptRequired)
	}

	parent, err := f.assetRepo.ByID(ctx, req.ParentAssetID)
	if err != nil {
		return nil, NewBusinessError("ASSET_LOOKUP_FAILED", "Failed to load parent asset", err)
	}
	if parent == nil {
		return nil, NewNotFoundError("PARENT_ASSET_NOT_FOUND", fmt.Sprintf("parent asset %d not found", req.ParentAssetID), ErrParentAssetNotFound)
	}
	if parent.Status != models.AssetStatusApproved {
		return nil, NewDependencyError("PARENT_NOT_APPROVED",
			fmt.Sprintf("parent asset %d is %s, approval required before derivation", parent.ID, parent.Status),
			ErrParentNotApproved)
	}

	child, ok := models.ChildCategoryOf(parent.Category)
	if !ok {
		return nil, NewDependencyError("NO_CHILD_CATEGORY",
			fmt.Sprintf("category %s has no derived category", parent.Category),
			ErrNoChildCategory)
	}

	parentID := parent.ID
	record, _, err := f.orchestrator.upsert(ctx, upsertParams{
		Category:      child.Name,
		AssetKey:      parent.AssetKey,
		Variant:       req.Variant,
		BasePrompt:    req.SpritePrompt,
		ParentAssetID: &parentID,
	}, req.Actor, metadata)
	if err != nil {
		return nil, err
	}

	err = createAuditLog(ctx, f.orchestrator.auditRepo, auditEntry{
		Action:  models.AuditActionAssetDerived,
		AssetID: &record.ID,
		Actor:   req.Actor,
		Details: map[string]any{
			"parent_asset_id": parent.ID,
			"parent_category": parent.Category,
			"category":        record.Category,
		},
	}, metadata)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LOG_FAILED", "Failed to record derivation", err)
	}

	record, entry, err := f.orchestrator.generate(ctx, record.ID, req.Actor, metadata)
	if err != nil {
		return nil, err
	}

	return &dto.AssetResponse{
		Message: "Derived asset generated and awaiting review",
		Asset:   ToAssetDTO(record),
		Queue:   ToQueueEntryDTO(entry),
	}, nil
}

func (f *AssetFlowImpl) GetAsset(ctx context.Context, id uint) (*dto.GetAssetResponse, error) {
	record, err := f.orchestrator.getAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	entry, err := f.queueRepo.ByAssetID(ctx, record.ID)
	if err != nil {
		return nil, NewBusinessError("QUEUE_LOOKUP_FAILED", "Failed to load generation queue entry", err)
	}

	return &dto.GetAssetResponse{
		Asset: ToAssetDTO(record),
		Queue: ToQueueEntryDTO(entry),
	}, nil
}

// ListAssets lists one category, optionally narrowed by status and parent, oldest first
func (f *AssetFlowImpl) ListAssets(ctx context.Context, req *dto.ListAssetsRequest) (*dto.ListAssetsResponse, error) {
	category := strings.TrimSpace(req.Category)
	if _, ok := models.LookupCategory(category); !ok {
		return nil, NewValidationError("UNKNOWN_CATEGORY", fmt.Sprintf("unknown asset category %q", category), ErrUnknownCategory)
	}

	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.AssetRecordFilter{
		Category:      &category,
		ParentAssetID: req.ParentAssetID,
	}
	if req.Status != nil {
		status := models.AssetStatus(*req.Status)
		if !status.Valid() {
			return nil, NewValidationError("INVALID_STATUS", fmt.Sprintf("unknown asset status %q", *req.Status), nil)
		}
		filter.Status = &status
	}

	total, err := f.assetRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ASSET_LIST_FAILED", "Failed to count assets", err)
	}

	records, err := f.assetRepo.ByFilter(ctx, filter, "id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("ASSET_LIST_FAILED", "Failed to list assets", err)
	}

	items := make([]dto.AssetDTO, 0, len(records))
	for _, r := range records {
		items = append(items, ToAssetDTO(r))
	}

	return &dto.ListAssetsResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetRejectionHistory returns every rejection of the asset, oldest first
func (f *AssetFlowImpl) GetRejectionHistory(ctx context.Context, id uint) (*dto.RejectionHistoryResponse, error) {
	record, err := f.orchestrator.getAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	rejections, err := f.rejectionRepo.ListByAsset(ctx, record.ID)
	if err != nil {
		return nil, NewBusinessError("REJECTION_HISTORY_FAILED", "Failed to load rejection history", err)
	}

	out := make([]dto.RejectionRecordDTO, 0, len(rejections))
	for _, r := range rejections {
		out = append(out, ToRejectionRecordDTO(r))
	}

	return &dto.RejectionHistoryResponse{
		AssetID:    record.ID,
		Rejections: out,
	}, nil
}

func (f *AssetFlowImpl) ListCategories(ctx context.Context) (*dto.ListCategoriesResponse, error) {
	categories := models.Categories()
	out := make([]dto.CategoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, ToCategoryDTO(c))
	}
	return &dto.ListCategoriesResponse{Categories: out}, nil
}

