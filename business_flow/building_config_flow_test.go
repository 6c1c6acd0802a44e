package businessflow_test

import (
	"context"
	"testing"

	"github.com/amirphl/asset-forge/app/dto"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approvedSprite derives and approves a building sprite for buildingType
func (p *pipeline) approvedSprite(t *testing.T, buildingType string) dto.AssetDTO {
	t.Helper()
	ref := p.generate(t, models.CategoryBuildingRef, buildingType, "a "+buildingType)
	p.approve(t, ref.ID)

	derived, err := p.assets.GenerateFromRef(context.Background(), &dto.DeriveAssetRequest{
		ParentAssetID: ref.ID,
		SpritePrompt:  buildingType + " sprite",
	}, nil)
	require.NoError(t, err)
	return p.approve(t, derived.Asset.ID)
}

func TestUpdateBuildingConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("binds an approved sprite", func(t *testing.T) {
		p := newPipeline(t)
		sprite := p.approvedSprite(t, "bakery")

		resp, err := p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{
			BuildingTypeID: "bakery",
			ActiveSpriteID: &sprite.ID,
			CostOverride:   utils.ToPtr(int64(950)),
			Actor:          "designer@test",
		}, nil)
		require.NoError(t, err)

		cfg := resp.Config
		require.NotNil(t, cfg.ActiveSpriteID)
		assert.Equal(t, sprite.ID, *cfg.ActiveSpriteID)
		assert.Equal(t, int64(950), cfg.EffectiveCost)
		assert.Equal(t, int64(55), cfg.EffectiveProfit, "default profit without an override")
		assert.False(t, cfg.IsPublished)
		require.NotNil(t, cfg.UpdatedBy)
		assert.Equal(t, "designer@test", *cfg.UpdatedBy)

		// a partial update keeps the sprite and clears the cost
		resp, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{
			BuildingTypeID: "bakery",
			ProfitOverride: utils.ToPtr(int64(70)),
			ClearCost:      true,
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, resp.Config.ActiveSpriteID)
		assert.Equal(t, sprite.ID, *resp.Config.ActiveSpriteID)
		assert.Nil(t, resp.Config.CostOverride)
		assert.Equal(t, int64(800), resp.Config.EffectiveCost)
		assert.Equal(t, int64(70), resp.Config.EffectiveProfit)
	})

	t.Run("sprite checks", func(t *testing.T) {
		p := newPipeline(t)
		bakerySprite := p.approvedSprite(t, "bakery")

		_, err := p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "spaceport"}, nil)
		requireKind(t, err, businessflow.KindValidation, "UNKNOWN_BUILDING_TYPE")

		_, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "bakery", ActiveSpriteID: utils.ToPtr(uint(9999))}, nil)
		requireKind(t, err, businessflow.KindNotFound, "SPRITE_NOT_FOUND")

		ref, err := p.fixtures.CreateTestAsset(models.CategoryBuildingRef, models.AssetStatusApproved)
		require.NoError(t, err)
		_, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "bakery", ActiveSpriteID: &ref.ID}, nil)
		requireKind(t, err, businessflow.KindValidation, "SPRITE_WRONG_CATEGORY")

		_, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "farm", ActiveSpriteID: &bakerySprite.ID}, nil)
		requireKind(t, err, businessflow.KindValidation, "SPRITE_WRONG_BUILDING_TYPE")

		bankRef := p.approve(t, p.generate(t, models.CategoryBuildingRef, "bank", "a marble bank").ID)
		pending, err := p.assets.GenerateFromRef(ctx, &dto.DeriveAssetRequest{ParentAssetID: bankRef.ID, SpritePrompt: "bank sprite"}, nil)
		require.NoError(t, err)
		_, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "bank", ActiveSpriteID: &pending.Asset.ID}, nil)
		requireKind(t, err, businessflow.KindDependency, "SPRITE_NOT_APPROVED")

		_, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "bakery", CostOverride: utils.ToPtr(int64(-1))}, nil)
		requireKind(t, err, businessflow.KindValidation, "INVALID_COST_OVERRIDE")

		cfg, err := p.buildings.GetConfig(ctx, "bakery")
		require.NoError(t, err)
		assert.Nil(t, cfg.ActiveSpriteID, "failed updates leave nothing behind")
	})
}

func TestPublishBuildingConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("publish and unpublish", func(t *testing.T) {
		p := newPipeline(t)
		sprite := p.approvedSprite(t, "market")

		_, err := p.buildings.PublishConfig(ctx, &dto.BuildingConfigActionRequest{BuildingTypeID: "market"}, nil)
		requireKind(t, err, businessflow.KindNotFound, "BUILDING_CONFIG_NOT_FOUND")

		_, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "market", CostOverride: utils.ToPtr(int64(2100))}, nil)
		require.NoError(t, err)

		_, err = p.buildings.PublishConfig(ctx, &dto.BuildingConfigActionRequest{BuildingTypeID: "market"}, nil)
		requireKind(t, err, businessflow.KindDependency, "NO_ACTIVE_SPRITE")
		assert.True(t, businessflow.IsNoActiveSprite(err))

		_, err = p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "market", ActiveSpriteID: &sprite.ID}, nil)
		require.NoError(t, err)

		published, err := p.buildings.PublishConfig(ctx, &dto.BuildingConfigActionRequest{BuildingTypeID: "market", Actor: "lead@test"}, nil)
		require.NoError(t, err)
		assert.True(t, published.Config.IsPublished)
		assert.NotNil(t, published.Config.PublishedAt)
		require.NotNil(t, published.Config.PublishedBy)
		assert.Equal(t, "lead@test", *published.Config.PublishedBy)
		assert.Equal(t, int64(2100), published.Config.EffectiveCost)

		unpublished, err := p.buildings.UnpublishConfig(ctx, &dto.BuildingConfigActionRequest{BuildingTypeID: "market"}, nil)
		require.NoError(t, err)
		assert.False(t, unpublished.Config.IsPublished)
		assert.Nil(t, unpublished.Config.PublishedAt)
		require.NotNil(t, unpublished.Config.ActiveSpriteID)
		assert.Equal(t, sprite.ID, *unpublished.Config.ActiveSpriteID)
		require.NotNil(t, unpublished.Config.CostOverride)
		assert.Equal(t, int64(2100), *unpublished.Config.CostOverride)
	})

	t.Run("sprite must still be approved", func(t *testing.T) {
		p := newPipeline(t)
		sprite := p.approvedSprite(t, "tavern")

		_, err := p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "tavern", ActiveSpriteID: &sprite.ID}, nil)
		require.NoError(t, err)

		require.NoError(t, p.testDB.DB.Model(&models.AssetRecord{}).
			Where("id = ?", sprite.ID).
			Update("status", models.AssetStatusRejected).Error)

		_, err = p.buildings.PublishConfig(ctx, &dto.BuildingConfigActionRequest{BuildingTypeID: "tavern"}, nil)
		requireKind(t, err, businessflow.KindDependency, "SPRITE_NOT_APPROVED")

		cfg, err := p.buildings.GetConfig(ctx, "tavern")
		require.NoError(t, err)
		assert.False(t, cfg.IsPublished)
	})
}

func TestListBuildingConfigs(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	_, err := p.buildings.UpdateConfig(ctx, &dto.UpdateBuildingConfigRequest{BuildingTypeID: "farm", ProfitOverride: utils.ToPtr(int64(45))}, nil)
	require.NoError(t, err)

	resp, err := p.buildings.ListConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Configs, len(models.BuildingTypes()))

	for i := 1; i < len(resp.Configs); i++ {
		assert.Less(t, resp.Configs[i-1].BuildingTypeID, resp.Configs[i].BuildingTypeID)
	}
	for _, cfg := range resp.Configs {
		if cfg.BuildingTypeID == "farm" {
			assert.Equal(t, int64(45), cfg.EffectiveProfit)
			assert.Equal(t, int64(600), cfg.EffectiveCost)
			continue
		}
		assert.Equal(t, cfg.DefaultCost, cfg.EffectiveCost)
		assert.Nil(t, cfg.UpdatedBy)
	}

	_, err = p.buildings.GetConfig(ctx, "spaceport")
	requireKind(t, err, businessflow.KindValidation, "UNKNOWN_BUILDING_TYPE")
}
