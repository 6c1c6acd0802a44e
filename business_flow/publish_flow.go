package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	"github.com/amirphl/asset-forge/app/services"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/amirphl/asset-forge/utils"
	"gorm.io/gorm"
)

// PublishFlow copies approved assets to the public store
type PublishFlow interface {
	Publish(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.PublishAssetResponse, error)
	RemoveBackground(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
}

// PublishFlowImpl implements PublishFlow
type PublishFlowImpl struct {
	db             *gorm.DB
	orchestrator   *GenerationOrchestrator
	privateStore   services.BlobStore
	publicStore    services.BlobStore
	remover        services.BackgroundRemover
	normalizer     services.ImageNormalizer
	removalTimeout time.Duration
	log            *logger.Logger
}

func NewPublishFlow(
	db *gorm.DB,
	orchestrator *GenerationOrchestrator,
	privateStore services.BlobStore,
	publicStore services.BlobStore,
	remover services.BackgroundRemover,
	normalizer services.ImageNormalizer,
	removalTimeout time.Duration,
	log *logger.Logger,
) PublishFlow {
	if removalTimeout <= 0 {
		removalTimeout = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PublishFlowImpl{
		db:             db,
		orchestrator:   orchestrator,
		privateStore:   privateStore,
		publicStore:    publicStore,
		remover:        remover,
		normalizer:     normalizer,
		removalTimeout: removalTimeout,
		log:            log,
	}
}

// Publish runs fetch, background removal, normalization and the public write.
// Every stage is idempotent and the public key is the same on each run.
func (f *PublishFlowImpl) Publish(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.PublishAssetResponse, error) {
	record, err := f.orchestrator.getAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.AssetStatusApproved {
		return nil, NewDependencyError("INVALID_ASSET_STATUS",
			fmt.Sprintf("only approved assets can be published, asset is %s", record.Status),
			ErrInvalidAssetStatus)
	}
	if !record.HasPrivateImage() {
		return nil, NewDependencyError("NO_PRIVATE_IMAGE", "asset has no generated image", ErrNoPrivateImage)
	}

	category, ok := models.LookupCategory(record.Category)
	if !ok {
		return nil, NewValidationError("UNKNOWN_CATEGORY", fmt.Sprintf("unknown asset category %q", record.Category), ErrUnknownCategory)
	}

	publicKey, publicURL, err := f.runPublishStages(ctx, record, category, req.Actor, metadata)
	if err != nil {
		publishTotal.WithLabelValues(record.Category, outcomeLabel(err)).Inc()
		f.recordPublishFailure(ctx, record, err, req.Actor, metadata)
		return nil, err
	}

	now := utils.UTCNow()
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		record.PublicStorageKey = &publicKey
		record.PublicURL = &publicURL
		record.PublishedAt = &now
		record.ErrorMessage = nil
		if err := f.orchestrator.updateAsset(txCtx, record); err != nil {
			return err
		}

		return createAuditLog(txCtx, f.orchestrator.auditRepo, auditEntry{
			Action:  models.AuditActionAssetPublished,
			AssetID: &record.ID,
			Actor:   req.Actor,
			Details: map[string]any{
				"public_key":         publicKey,
				"public_url":         publicURL,
				"background_removed": record.BackgroundRemoved,
			},
		}, metadata)
	})
	if err != nil {
		publishTotal.WithLabelValues(record.Category, outcomeLabel(err)).Inc()
		return nil, err
	}

	publishTotal.WithLabelValues(record.Category, outcomeLabel(nil)).Inc()
	f.log.Info("Asset published", "asset_id", record.ID, "category", record.Category, "public_key", publicKey)

	return &dto.PublishAssetResponse{
		Message:   "Asset published",
		Asset:     ToAssetDTO(record),
		PublicURL: publicURL,
	}, nil
}

func (f *PublishFlowImpl) runPublishStages(ctx context.Context, record *models.AssetRecord, category models.AssetCategory, actor string, metadata *ClientMetadata) (string, string, error) {
	// Stage 1: fetch
	data, err := f.fetchPrivate(ctx, record)
	if err != nil {
		return "", "", err
	}

	// Stage 2: background removal
	if category.RequiresBackgroundRemoval && !record.BackgroundRemoved {
		data, err = f.removeAndPersist(ctx, record, data, actor, metadata)
		if err != nil {
			return "", "", err
		}
	}

	// Stage 3: normalize
	normalized, err := f.normalizer.Normalize(data, category.TargetWidth, category.TargetHeight)
	if err != nil {
		return "", "", NewStorageError("IMAGE_NORMALIZE_FAILED", "Failed to normalize image", err)
	}

	// Stage 4: public write
	publicKey := publicImageKey(record)
	if err := f.publicStore.Put(ctx, publicKey, normalized, utils.PNGContentType); err != nil {
		return "", "", NewStorageError("PUBLIC_STORE_WRITE_FAILED", "Failed to write public image", err)
	}

	return publicKey, f.publicStore.PublicURL(publicKey), nil
}

// RemoveBackground runs background removal standalone; an already processed asset is returned as is
func (f *PublishFlowImpl) RemoveBackground(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	record, err := f.orchestrator.getAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.AssetStatusAwaitingReview && record.Status != models.AssetStatusApproved {
		return nil, NewDependencyError("INVALID_ASSET_STATUS",
			fmt.Sprintf("background removal needs an asset awaiting review or approved, asset is %s", record.Status),
			ErrInvalidAssetStatus)
	}
	if !record.HasPrivateImage() {
		return nil, NewDependencyError("NO_PRIVATE_IMAGE", "asset has no generated image", ErrNoPrivateImage)
	}

	if record.BackgroundRemoved {
		return &dto.AssetResponse{
			Message: "Background already removed",
			Asset:   ToAssetDTO(record),
		}, nil
	}

	data, err := f.fetchPrivate(ctx, record)
	if err != nil {
		return nil, err
	}
	if _, err := f.removeAndPersist(ctx, record, data, req.Actor, metadata); err != nil {
		return nil, err
	}

	return &dto.AssetResponse{
		Message: "Background removed",
		Asset:   ToAssetDTO(record),
	}, nil
}

func (f *PublishFlowImpl) fetchPrivate(ctx context.Context, record *models.AssetRecord) ([]byte, error) {
	data, err := f.privateStore.Get(ctx, *record.PrivateStorageKey)
	if err != nil {
		if errors.Is(err, services.ErrBlobNotFound) {
			return nil, NewStorageError("PRIVATE_IMAGE_MISSING", fmt.Sprintf("private image %s is missing", *record.PrivateStorageKey), err)
		}
		return nil, NewStorageError("PRIVATE_STORE_READ_FAILED", "Failed to read private image", err)
	}
	return data, nil
}

// removeAndPersist strips the background, stores the result next to the draft and flags the record
func (f *PublishFlowImpl) removeAndPersist(ctx context.Context, record *models.AssetRecord, data []byte, actor string, metadata *ClientMetadata) ([]byte, error) {
	removeCtx, cancel := context.WithTimeout(ctx, f.removalTimeout)
	processed, err := f.remover.RemoveBackground(removeCtx, data)
	cancel()
	if err != nil {
		return nil, NewExternalServiceError("BACKGROUND_REMOVAL_FAILED", "Background removal failed", err)
	}
	if len(processed) == 0 {
		return nil, NewExternalServiceError("BACKGROUND_REMOVAL_FAILED", "Background removal returned no image", nil)
	}

	key := backgroundRemovedKey(*record.PrivateStorageKey)
	if err := f.privateStore.Put(ctx, key, processed, utils.PNGContentType); err != nil {
		return nil, NewStorageError("PRIVATE_STORE_WRITE_FAILED", "Failed to store background-removed image", err)
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		source := *record.PrivateStorageKey
		record.PrivateStorageKey = &key
		record.BackgroundRemoved = true
		if err := f.orchestrator.updateAsset(txCtx, record); err != nil {
			record.PrivateStorageKey = &source
			record.BackgroundRemoved = false
			return err
		}

		return createAuditLog(txCtx, f.orchestrator.auditRepo, auditEntry{
			Action:  models.AuditActionBackgroundRemoved,
			AssetID: &record.ID,
			Actor:   actor,
			Details: map[string]any{"source_key": source, "storage_key": key},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	return processed, nil
}

// recordPublishFailure keeps status APPROVED and prior publish fields, setting only errorMessage
func (f *PublishFlowImpl) recordPublishFailure(ctx context.Context, record *models.AssetRecord, cause error, actor string, metadata *ClientMetadata) {
	message := utils.TruncateString(cause.Error(), 2000)

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.orchestrator.getAsset(txCtx, record.ID)
		if err != nil {
			return err
		}
		current.ErrorMessage = &message
		if err := f.orchestrator.updateAsset(txCtx, current); err != nil {
			return err
		}
		*record = *current

		return createAuditLog(txCtx, f.orchestrator.auditRepo, auditEntry{
			Action:  models.AuditActionAssetPublishFailed,
			AssetID: &record.ID,
			Actor:   actor,
			Details: map[string]any{"code": ErrorCodeOf(cause)},
			Err:     cause,
		}, metadata)
	})
	if err != nil {
		f.log.Error("Failed to record publish failure",
			"asset_id", record.ID, "category", record.Category, "cause", cause, "error", err)
		return
	}

	f.log.Warn("Asset publish failed",
		"asset_id", record.ID, "category", record.Category, "code", ErrorCodeOf(cause), "error", cause)
}
