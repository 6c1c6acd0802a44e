package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/amirphl/asset-forge/utils"
	"gorm.io/gorm"
)

// BuildingConfigFlow binds approved sprites and economy overrides to building types
type BuildingConfigFlow interface {
	UpdateConfig(ctx context.Context, req *dto.UpdateBuildingConfigRequest, metadata *ClientMetadata) (*dto.BuildingConfigResponse, error)
	PublishConfig(ctx context.Context, req *dto.BuildingConfigActionRequest, metadata *ClientMetadata) (*dto.BuildingConfigResponse, error)
	UnpublishConfig(ctx context.Context, req *dto.BuildingConfigActionRequest, metadata *ClientMetadata) (*dto.BuildingConfigResponse, error)
	GetConfig(ctx context.Context, buildingTypeID string) (*dto.BuildingConfigDTO, error)
	ListConfigs(ctx context.Context) (*dto.ListBuildingConfigsResponse, error)
}

// BuildingConfigFlowImpl implements BuildingConfigFlow
type BuildingConfigFlowImpl struct {
	db         *gorm.DB
	configRepo repository.BuildingConfigurationRepository
	assetRepo  repository.AssetRecordRepository
	auditRepo  repository.AuditLogRepository
}

func NewBuildingConfigFlow(
	db *gorm.DB,
	configRepo repository.BuildingConfigurationRepository,
	assetRepo repository.AssetRecordRepository,
	auditRepo repository.AuditLogRepository,
) BuildingConfigFlow {
	return &BuildingConfigFlowImpl{
		db:         db,
		configRepo: configRepo,
		assetRepo:  assetRepo,
		auditRepo:  auditRepo,
	}
}

func lookupBuildingType(id string) (models.BuildingType, error) {
	bt, ok := models.LookupBuildingType(strings.TrimSpace(id))
	if !ok {
		return models.BuildingType{}, NewValidationError("UNKNOWN_BUILDING_TYPE", fmt.Sprintf("unknown building type %q", id), ErrUnknownBuildingType)
	}
	return bt, nil
}

// buildingSpriteCategory is the category derived from building references
func buildingSpriteCategory() string {
	if c, ok := models.ChildCategoryOf(models.CategoryBuildingRef); ok {
		return c.Name
	}
	return models.CategoryBuildingSprite
}

// loadSprite checks that id is an approved building sprite for the building type
func (f *BuildingConfigFlowImpl) loadSprite(ctx context.Context, id uint, bt models.BuildingType) (*models.AssetRecord, error) {
	sprite, err := f.assetRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("ASSET_LOOKUP_FAILED", "Failed to load sprite asset", err)
	}
	if sprite == nil {
		return nil, NewNotFoundError("SPRITE_NOT_FOUND", fmt.Sprintf("sprite asset %d not found", id), ErrSpriteNotFound)
	}
	if sprite.Category != buildingSpriteCategory() {
		return nil, NewValidationError("SPRITE_WRONG_CATEGORY",
			fmt.Sprintf("asset %d is a %s, expected %s", sprite.ID, sprite.Category, buildingSpriteCategory()),
			ErrSpriteWrongCategory)
	}
	if sprite.AssetKey != bt.ID {
		return nil, NewValidationError("SPRITE_WRONG_BUILDING_TYPE",
			fmt.Sprintf("sprite %d belongs to %s, not %s", sprite.ID, sprite.AssetKey, bt.ID),
			ErrSpriteWrongBuildingType)
	}
	if sprite.Status != models.AssetStatusApproved {
		return nil, NewDependencyError("SPRITE_NOT_APPROVED",
			fmt.Sprintf("sprite %d is %s, approval required", sprite.ID, sprite.Status),
			ErrSpriteNotApproved)
	}
	return sprite, nil
}

// UpdateConfig edits the draft; nil fields are left as they are
func (f *BuildingConfigFlowImpl) UpdateConfig(ctx context.Context, req *dto.UpdateBuildingConfigRequest, metadata *ClientMetadata) (*dto.BuildingConfigResponse, error) {
	bt, err := lookupBuildingType(req.BuildingTypeID)
	if err != nil {
		return nil, err
	}
	if req.CostOverride != nil && *req.CostOverride < 0 {
		return nil, NewValidationError("INVALID_COST_OVERRIDE", "cost override must not be negative", nil)
	}
	if req.ProfitOverride != nil && *req.ProfitOverride < 0 {
		return nil, NewValidationError("INVALID_PROFIT_OVERRIDE", "profit override must not be negative", nil)
	}

	var cfg *models.BuildingConfiguration
	var sprite *models.AssetRecord
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		cfg, err = f.configRepo.ByBuildingTypeID(txCtx, bt.ID)
		if err != nil {
			return NewBusinessError("BUILDING_CONFIG_LOOKUP_FAILED", "Failed to load building configuration", err)
		}
		created := cfg == nil
		if created {
			cfg = &models.BuildingConfiguration{BuildingTypeID: bt.ID}
		}
		sprite = cfg.ActiveSprite
		cfg.ActiveSprite = nil

		if req.ActiveSpriteID != nil {
			sprite, err = f.loadSprite(txCtx, *req.ActiveSpriteID, bt)
			if err != nil {
				return err
			}
			cfg.ActiveSpriteID = &sprite.ID
		}

		switch {
		case req.ClearCost:
			cfg.CostOverride = nil
		case req.CostOverride != nil:
			cfg.CostOverride = req.CostOverride
		}
		switch {
		case req.ClearProfit:
			cfg.ProfitOverride = nil
		case req.ProfitOverride != nil:
			cfg.ProfitOverride = req.ProfitOverride
		}
		cfg.UpdatedBy = utils.ToPtr(actorOrSystem(req.Actor))

		if created {
			err = f.configRepo.Save(txCtx, cfg)
		} else {
			err = f.configRepo.Update(txCtx, cfg)
		}
		if err != nil {
			return NewBusinessError("BUILDING_CONFIG_SAVE_FAILED", "Failed to save building configuration", err)
		}

		return createAuditLog(txCtx, f.auditRepo, auditEntry{
			Action:     models.AuditActionBuildingConfigUpdated,
			TargetType: models.AuditTargetBuildingConfig,
			TargetID:   bt.ID,
			Actor:      req.Actor,
			Details: map[string]any{
				"active_sprite_id": cfg.ActiveSpriteID,
				"cost_override":    cfg.CostOverride,
				"profit_override":  cfg.ProfitOverride,
				"created":          created,
			},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}
	cfg.ActiveSprite = sprite

	return &dto.BuildingConfigResponse{
		Message: "Building configuration updated",
		Config:  toBuildingConfigDTO(bt, cfg),
	}, nil
}

// PublishConfig requires an active sprite that is still approved
func (f *BuildingConfigFlowImpl) PublishConfig(ctx context.Context, req *dto.BuildingConfigActionRequest, metadata *ClientMetadata) (*dto.BuildingConfigResponse, error) {
	bt, err := lookupBuildingType(req.BuildingTypeID)
	if err != nil {
		return nil, err
	}

	var cfg *models.BuildingConfiguration
	var sprite *models.AssetRecord
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		cfg, err = f.existingConfig(txCtx, bt)
		if err != nil {
			return err
		}
		if cfg.ActiveSpriteID == nil {
			return NewDependencyError("NO_ACTIVE_SPRITE", fmt.Sprintf("building %s has no active sprite", bt.ID), ErrNoActiveSprite)
		}
		sprite, err = f.loadSprite(txCtx, *cfg.ActiveSpriteID, bt)
		if err != nil {
			return err
		}

		now := utils.UTCNow()
		cfg.ActiveSprite = nil
		cfg.IsPublished = true
		cfg.PublishedAt = &now
		cfg.PublishedBy = utils.ToPtr(actorOrSystem(req.Actor))
		if err := f.configRepo.Update(txCtx, cfg); err != nil {
			return NewBusinessError("BUILDING_CONFIG_SAVE_FAILED", "Failed to publish building configuration", err)
		}

		return createAuditLog(txCtx, f.auditRepo, auditEntry{
			Action:     models.AuditActionBuildingConfigPublish,
			TargetType: models.AuditTargetBuildingConfig,
			TargetID:   bt.ID,
			Actor:      req.Actor,
			Details: map[string]any{
				"active_sprite_id": sprite.ID,
				"effective_cost":   cfg.EffectiveCost(bt),
				"effective_profit": cfg.EffectiveProfit(bt),
			},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}
	cfg.ActiveSprite = sprite

	return &dto.BuildingConfigResponse{
		Message: "Building configuration published",
		Config:  toBuildingConfigDTO(bt, cfg),
	}, nil
}

// UnpublishConfig hides the configuration; sprite and overrides stay as a draft
func (f *BuildingConfigFlowImpl) UnpublishConfig(ctx context.Context, req *dto.BuildingConfigActionRequest, metadata *ClientMetadata) (*dto.BuildingConfigResponse, error) {
	bt, err := lookupBuildingType(req.BuildingTypeID)
	if err != nil {
		return nil, err
	}

	var cfg *models.BuildingConfiguration
	var sprite *models.AssetRecord
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		cfg, err = f.existingConfig(txCtx, bt)
		if err != nil {
			return err
		}
		sprite = cfg.ActiveSprite
		cfg.ActiveSprite = nil

		wasPublished := cfg.IsPublished
		cfg.IsPublished = false
		cfg.PublishedAt = nil
		cfg.PublishedBy = nil
		if err := f.configRepo.Update(txCtx, cfg); err != nil {
			return NewBusinessError("BUILDING_CONFIG_SAVE_FAILED", "Failed to unpublish building configuration", err)
		}

		return createAuditLog(txCtx, f.auditRepo, auditEntry{
			Action:     models.AuditActionBuildingConfigUnpublish,
			TargetType: models.AuditTargetBuildingConfig,
			TargetID:   bt.ID,
			Actor:      req.Actor,
			Details:    map[string]any{"was_published": wasPublished},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}
	cfg.ActiveSprite = sprite

	return &dto.BuildingConfigResponse{
		Message: "Building configuration unpublished",
		Config:  toBuildingConfigDTO(bt, cfg),
	}, nil
}

func (f *BuildingConfigFlowImpl) existingConfig(ctx context.Context, bt models.BuildingType) (*models.BuildingConfiguration, error) {
	cfg, err := f.configRepo.ByBuildingTypeID(ctx, bt.ID)
	if err != nil {
		return nil, NewBusinessError("BUILDING_CONFIG_LOOKUP_FAILED", "Failed to load building configuration", err)
	}
	if cfg == nil {
		return nil, NewNotFoundError("BUILDING_CONFIG_NOT_FOUND", fmt.Sprintf("building %s has no configuration", bt.ID), ErrBuildingConfigNotFound)
	}
	return cfg, nil
}

// GetConfig returns the configuration of one building type; an unconfigured type reports its defaults
func (f *BuildingConfigFlowImpl) GetConfig(ctx context.Context, buildingTypeID string) (*dto.BuildingConfigDTO, error) {
	bt, err := lookupBuildingType(buildingTypeID)
	if err != nil {
		return nil, err
	}

	cfg, err := f.configRepo.ByBuildingTypeID(ctx, bt.ID)
	if err != nil {
		return nil, NewBusinessError("BUILDING_CONFIG_LOOKUP_FAILED", "Failed to load building configuration", err)
	}

	out := toBuildingConfigDTO(bt, cfg)
	return &out, nil
}

// ListConfigs returns every catalog building type ordered by id
func (f *BuildingConfigFlowImpl) ListConfigs(ctx context.Context) (*dto.ListBuildingConfigsResponse, error) {
	configs, err := f.configRepo.ByFilter(ctx, models.BuildingConfigurationFilter{}, "building_type_id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("BUILDING_CONFIG_LIST_FAILED", "Failed to list building configurations", err)
	}

	byType := make(map[string]*models.BuildingConfiguration, len(configs))
	for _, c := range configs {
		byType[c.BuildingTypeID] = c
	}

	types := models.BuildingTypes()
	out := make([]dto.BuildingConfigDTO, 0, len(types))
	for _, bt := range types {
		out = append(out, toBuildingConfigDTO(bt, byType[bt.ID]))
	}

	return &dto.ListBuildingConfigsResponse{Configs: out}, nil
}

func toBuildingConfigDTO(bt models.BuildingType, cfg *models.BuildingConfiguration) dto.BuildingConfigDTO {
	out := dto.BuildingConfigDTO{
		BuildingTypeID:  bt.ID,
		DisplayName:     bt.DisplayName,
		DefaultCost:     bt.DefaultCost,
		DefaultProfit:   bt.DefaultProfit,
		EffectiveCost:   bt.DefaultCost,
		EffectiveProfit: bt.DefaultProfit,
	}
	if cfg == nil {
		return out
	}

	out.ActiveSpriteID = cfg.ActiveSpriteID
	if cfg.ActiveSprite != nil {
		out.ActiveSpriteURL = cfg.ActiveSprite.PublicURL
	}
	out.CostOverride = cfg.CostOverride
	out.ProfitOverride = cfg.ProfitOverride
	out.EffectiveCost = cfg.EffectiveCost(bt)
	out.EffectiveProfit = cfg.EffectiveProfit(bt)
	out.IsPublished = cfg.IsPublished
	out.PublishedAt = formatTimePtr(cfg.PublishedAt)
	out.PublishedBy = cfg.PublishedBy
	out.UpdatedBy = cfg.UpdatedBy
	if !cfg.UpdatedAt.IsZero() {
		out.UpdatedAt = utils.ToPtr(formatTime(cfg.UpdatedAt))
	}
	return out
}
