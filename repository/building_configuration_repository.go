package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/asset-forge/models"
	"gorm.io/gorm"
)

// BuildingConfigurationRepositoryImpl implements BuildingConfigurationRepository interface
type BuildingConfigurationRepositoryImpl struct {
	*BaseRepository[models.BuildingConfiguration, models.BuildingConfigurationFilter]
}

// NewBuildingConfigurationRepository creates a new building configuration repository
func NewBuildingConfigurationRepository(db *gorm.DB) BuildingConfigurationRepository {
	return &BuildingConfigurationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BuildingConfiguration, models.BuildingConfigurationFilter](db),
	}
}

// ByBuildingTypeID retrieves the configuration of a building type along with its active sprite
func (r *BuildingConfigurationRepositoryImpl) ByBuildingTypeID(ctx context.Context, buildingTypeID string) (*models.BuildingConfiguration, error) {
	db := r.getDB(ctx)

	var config models.BuildingConfiguration
	err := db.Preload("ActiveSprite").
		Where("building_type_id = ?", buildingTypeID).
		First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find building configuration %s: %w", buildingTypeID, err)
	}

	return &config, nil
}

// Update persists every field of the configuration
func (r *BuildingConfigurationRepositoryImpl) Update(ctx context.Context, config *models.BuildingConfiguration) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Omit("ActiveSprite").Save(config).Error
		if err != nil {
			return fmt.Errorf("failed to update building configuration %s: %w", config.BuildingTypeID, err)
		}
		return nil
	})
}

func (r *BuildingConfigurationRepositoryImpl) ByFilter(ctx context.Context, filter models.BuildingConfigurationFilter, orderBy string, limit, offset int) ([]*models.BuildingConfiguration, error) {
	db := r.getDB(ctx)

	var configs []*models.BuildingConfiguration
	query := paginate(r.applyFilter(db.Preload("ActiveSprite"), filter), orderBy, limit, offset)

	if err := query.Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to find building configurations: %w", err)
	}

	return configs, nil
}

func (r *BuildingConfigurationRepositoryImpl) Count(ctx context.Context, filter models.BuildingConfigurationFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.BuildingConfiguration{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count building configurations: %w", err)
	}

	return count, nil
}

func (r *BuildingConfigurationRepositoryImpl) Exists(ctx context.Context, filter models.BuildingConfigurationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BuildingConfigurationRepositoryImpl) applyFilter(db *gorm.DB, filter models.BuildingConfigurationFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.BuildingTypeID != nil {
		db = db.Where("building_type_id = ?", *filter.BuildingTypeID)
	}
	if filter.ActiveSpriteID != nil {
		db = db.Where("active_sprite_id = ?", *filter.ActiveSpriteID)
	}
	if filter.IsPublished != nil {
		db = db.Where("is_published = ?", *filter.IsPublished)
	}

	return db
}
