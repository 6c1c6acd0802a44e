// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/asset-forge/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AssetRecordRepository defines operations for asset records
type AssetRecordRepository interface {
	Repository[models.AssetRecord, models.AssetRecordFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.AssetRecord, error)
	ByIdentity(ctx context.Context, category, assetKey string, variant int) (*models.AssetRecord, error)
	// Update persists all fields when the stored version still equals record.Version
	Update(ctx context.Context, record *models.AssetRecord) error
}

// RejectionRecordRepository defines operations for the append-only rejection history
type RejectionRecordRepository interface {
	Repository[models.RejectionRecord, models.RejectionRecordFilter]
	ListByAsset(ctx context.Context, assetID uint) ([]*models.RejectionRecord, error)
}

// QueueEntryRepository defines operations for generation queue entries
type QueueEntryRepository interface {
	Repository[models.QueueEntry, models.QueueEntryFilter]
	ByAssetID(ctx context.Context, assetID uint) (*models.QueueEntry, error)
	Update(ctx context.Context, entry *models.QueueEntry) error
}

// AuditLogRepository defines operations for the append-only audit log
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListRecent(ctx context.Context, filter models.AuditLogFilter, limit int) ([]*models.AuditLog, error)
}

// BuildingConfigurationRepository defines operations for building configurations
type BuildingConfigurationRepository interface {
	Repository[models.BuildingConfiguration, models.BuildingConfigurationFilter]
	ByBuildingTypeID(ctx context.Context, buildingTypeID string) (*models.BuildingConfiguration, error)
	Update(ctx context.Context, config *models.BuildingConfiguration) error
}

// AvatarCompositeRepository defines operations for avatar composite cache entries
type AvatarCompositeRepository interface {
	BySubjectContext(ctx context.Context, subjectID, avatarContext string) (*models.AvatarCompositeCacheEntry, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*models.AvatarCompositeCacheEntry, error)
	Upsert(ctx context.Context, entry *models.AvatarCompositeCacheEntry) error
}

// SceneTemplateRepository defines operations for scene templates
type SceneTemplateRepository interface {
	ByKey(ctx context.Context, id string) (*models.SceneTemplate, error)
	List(ctx context.Context, limit, offset int) ([]*models.SceneTemplate, error)
	Save(ctx context.Context, template *models.SceneTemplate) error
	Update(ctx context.Context, template *models.SceneTemplate) error
}

// SceneCompositeRepository defines operations for scene composite cache entries
type SceneCompositeRepository interface {
	ByFilter(ctx context.Context, filter models.SceneComposedCacheEntryFilter, orderBy string, limit, offset int) ([]*models.SceneComposedCacheEntry, error)
	ByTemplateSubject(ctx context.Context, templateID, subjectID string) (*models.SceneComposedCacheEntry, error)
	Upsert(ctx context.Context, entry *models.SceneComposedCacheEntry) error
	Touch(ctx context.Context, id uint, at time.Time) error
	Count(ctx context.Context, filter models.SceneComposedCacheEntryFilter) (int64, error)
	DeleteBySubject(ctx context.Context, subjectID string) (int64, error)
	DeleteByTemplate(ctx context.Context, templateID string) (int64, error)
	DeleteAccessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
