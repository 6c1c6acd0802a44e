package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAsset(t *testing.T) {
	ctx := context.Background()

	t.Run("new asset lands in review with a private draft", func(t *testing.T) {
		p := newPipeline(t)

		asset := p.generate(t, models.CategoryBuildingRef, "restaurant", "a cozy restaurant")

		assert.Equal(t, string(models.AssetStatusAwaitingReview), asset.Status)
		assert.Equal(t, 1, asset.PromptVersion)
		assert.Equal(t, 1, asset.Variant)
		require.NotNil(t, asset.PrivateStorageKey)
		assert.Equal(t, "building_ref/restaurant/1/draft-v1.png", *asset.PrivateStorageKey)
		assert.Nil(t, asset.PublicURL)

		data, err := p.privateStore.Get(ctx, *asset.PrivateStorageKey)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		assert.Equal(t, "image/png", p.privateStore.ContentType(*asset.PrivateStorageKey))
		assert.Empty(t, p.publicStore.Keys())

		got := p.getAsset(t, asset.ID)
		require.NotNil(t, got.Queue)
		assert.Equal(t, string(models.QueueStatusCompleted), got.Queue.Status)
		assert.Equal(t, 0, got.Queue.Attempts)
		assert.Equal(t, 2, got.Queue.MaxAttempts)
	})

	t.Run("same identity reuses the record", func(t *testing.T) {
		p := newPipeline(t)

		first := p.generate(t, models.CategoryCharacterRef, "knight", "a brave knight")
		p.approve(t, first.ID)

		second := p.generate(t, models.CategoryCharacterRef, "knight", "a brave knight")
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, second.PromptVersion, "unchanged prompt keeps the version")
		assert.Equal(t, string(models.AssetStatusAwaitingReview), second.Status)
		assert.Nil(t, second.ApprovedAt)

		third := p.generate(t, models.CategoryCharacterRef, "knight", "a brave knight in silver armor")
		assert.Equal(t, first.ID, third.ID)
		assert.Equal(t, 2, third.PromptVersion)
		assert.Equal(t, "a brave knight in silver armor", third.CurrentPrompt)
		assert.Equal(t, "a brave knight in silver armor", third.BasePrompt)

		list, err := p.assets.ListAssets(ctx, &dto.ListAssetsRequest{Category: models.CategoryCharacterRef})
		require.NoError(t, err)
		assert.EqualValues(t, 1, list.Total)
	})

	t.Run("variants are distinct records", func(t *testing.T) {
		p := newPipeline(t)

		v1 := p.generate(t, models.CategoryBuildingRef, "bank", "a marble bank")
		resp, err := p.assets.GenerateAsset(ctx, &dto.GenerateAssetRequest{
			Category:   models.CategoryBuildingRef,
			AssetKey:   "bank",
			Variant:    2,
			BasePrompt: "a marble bank at night",
		}, nil)
		require.NoError(t, err)

		assert.NotEqual(t, v1.ID, resp.Asset.ID)
		assert.Equal(t, 2, resp.Asset.Variant)
	})

	t.Run("validation", func(t *testing.T) {
		p := newPipeline(t)

		tests := []struct {
			name string
			req  dto.GenerateAssetRequest
			code string
		}{
			{"unknown category", dto.GenerateAssetRequest{Category: "vehicle", AssetKey: "car", BasePrompt: "a car"}, "UNKNOWN_CATEGORY"},
			{"missing key", dto.GenerateAssetRequest{Category: models.CategoryBuildingRef, BasePrompt: "x"}, "ASSET_KEY_REQUIRED"},
			{"blank prompt", dto.GenerateAssetRequest{Category: models.CategoryBuildingRef, AssetKey: "farm", BasePrompt: "   "}, "PROMPT_REQUIRED"},
			{"negative variant", dto.GenerateAssetRequest{Category: models.CategoryBuildingRef, AssetKey: "farm", Variant: -1, BasePrompt: "a farm"}, "INVALID_VARIANT"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := p.assets.GenerateAsset(ctx, &tt.req, nil)
				requireKind(t, err, businessflow.KindValidation, tt.code)
			})
		}
		assert.Equal(t, 0, p.generator.calls())
	})

	t.Run("derived category needs an approved parent", func(t *testing.T) {
		p := newPipeline(t)

		for _, category := range []string{models.CategoryBuildingSprite, models.CategoryCharacterSprite} {
			_, err := p.assets.GenerateAsset(ctx, &dto.GenerateAssetRequest{
				Category:   category,
				AssetKey:   "restaurant",
				BasePrompt: "a sprite without a reference",
			}, nil)
			requireKind(t, err, businessflow.KindDependency, "PARENT_REQUIRED")
			assert.ErrorIs(t, err, businessflow.ErrParentRequired)
		}

		assert.Equal(t, 0, p.generator.calls())
		list, err := p.assets.ListAssets(ctx, &dto.ListAssetsRequest{Category: models.CategoryBuildingSprite})
		require.NoError(t, err)
		assert.EqualValues(t, 0, list.Total)
	})

	t.Run("upsert refuses an asset mid-generation", func(t *testing.T) {
		p := newPipeline(t)

		asset, err := p.fixtures.CreateTestAsset(models.CategoryBuildingRef, models.AssetStatusGenerating)
		require.NoError(t, err)

		_, err = p.assets.GenerateAsset(ctx, &dto.GenerateAssetRequest{
			Category:   asset.Category,
			AssetKey:   asset.AssetKey,
			BasePrompt: "another prompt",
		}, nil)
		requireKind(t, err, businessflow.KindDependency, "ASSET_GENERATION_IN_PROGRESS")
	})
}

func TestGenerationFailureAndAttempts(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	p.generator.fail(errServiceDown)
	_, err := p.assets.GenerateAsset(ctx, &dto.GenerateAssetRequest{
		Category:   models.CategoryBuildingRef,
		AssetKey:   "castle",
		BasePrompt: "a castle on a hill",
	}, nil)
	requireKind(t, err, businessflow.KindExternalService, "GENERATION_FAILED")
	assert.ErrorIs(t, err, errServiceDown)

	list, err := p.assets.ListAssets(ctx, &dto.ListAssetsRequest{Category: models.CategoryBuildingRef})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	id := list.Items[0].ID

	got := p.getAsset(t, id)
	assert.Equal(t, string(models.AssetStatusFailed), got.Asset.Status)
	require.NotNil(t, got.Asset.ErrorMessage)
	assert.Contains(t, *got.Asset.ErrorMessage, "service unavailable")
	assert.Nil(t, got.Asset.PrivateStorageKey)
	require.NotNil(t, got.Queue)
	assert.Equal(t, 1, got.Queue.Attempts)
	assert.Equal(t, string(models.QueueStatusFailed), got.Queue.Status)

	// second failure uses the last allowed attempt
	_, err = p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: id}, nil)
	requireKind(t, err, businessflow.KindExternalService, "GENERATION_FAILED")
	assert.Equal(t, 2, p.getAsset(t, id).Queue.Attempts)

	calls := p.generator.calls()
	_, err = p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: id}, nil)
	requireKind(t, err, businessflow.KindDependency, "GENERATION_ATTEMPTS_EXHAUSTED")
	assert.Equal(t, calls, p.generator.calls(), "exhausted entry must not reach the generator")

	restarted, err := p.review.RestartGeneration(ctx, &dto.AssetActionRequest{AssetID: id, Actor: "ops"}, nil)
	require.NoError(t, err)
	require.NotNil(t, restarted.Queue)
	assert.Equal(t, 0, restarted.Queue.Attempts)
	assert.Equal(t, string(models.QueueStatusQueued), restarted.Queue.Status)
	assert.Equal(t, string(models.AssetStatusFailed), restarted.Asset.Status)

	p.generator.fail(nil)
	regenerated, err := p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: id}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(models.AssetStatusAwaitingReview), regenerated.Asset.Status)
	assert.Nil(t, regenerated.Asset.ErrorMessage)
	assert.Equal(t, 1, regenerated.Asset.PromptVersion)
}

func TestGenerationTimeouts(t *testing.T) {
	t.Run("generation timeout counts as a failed attempt", func(t *testing.T) {
		p := newPipeline(t)
		p.genTimeout = 100 * time.Millisecond
		p.build(t)
		p.generator.block(true)

		_, err := p.assets.GenerateAsset(context.Background(), &dto.GenerateAssetRequest{
			Category:   models.CategoryBuildingRef,
			AssetKey:   "mill",
			BasePrompt: "a windmill",
		}, nil)
		requireKind(t, err, businessflow.KindExternalService, "GENERATION_FAILED")

		list, err := p.assets.ListAssets(context.Background(), &dto.ListAssetsRequest{Category: models.CategoryBuildingRef})
		require.NoError(t, err)
		require.Len(t, list.Items, 1)

		got := p.getAsset(t, list.Items[0].ID)
		assert.Equal(t, string(models.AssetStatusFailed), got.Asset.Status)
		require.NotNil(t, got.Asset.ErrorMessage)
		assert.Contains(t, *got.Asset.ErrorMessage, "timed out")
		require.NotNil(t, got.Queue)
		assert.Equal(t, 1, got.Queue.Attempts)
		assert.Equal(t, string(models.QueueStatusFailed), got.Queue.Status)
	})

	t.Run("request deadline still records the failure", func(t *testing.T) {
		p := newPipeline(t)
		p.generator.block(true)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, err := p.assets.GenerateAsset(ctx, &dto.GenerateAssetRequest{
			Category:   models.CategoryBuildingRef,
			AssetKey:   "harbor",
			BasePrompt: "a harbor",
		}, nil)
		requireKind(t, err, businessflow.KindExternalService, "GENERATION_FAILED")

		list, err := p.assets.ListAssets(context.Background(), &dto.ListAssetsRequest{Category: models.CategoryBuildingRef})
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		id := list.Items[0].ID

		got := p.getAsset(t, id)
		assert.Equal(t, string(models.AssetStatusFailed), got.Asset.Status)
		require.NotNil(t, got.Asset.ErrorMessage)
		assert.Contains(t, *got.Asset.ErrorMessage, "request ended")
		require.NotNil(t, got.Queue)
		assert.Equal(t, 1, got.Queue.Attempts)

		p.generator.block(false)
		regenerated, err := p.review.Regenerate(context.Background(), &dto.AssetActionRequest{AssetID: id}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.AssetStatusAwaitingReview), regenerated.Asset.Status)
	})
}

func TestRestartAbandonedGeneration(t *testing.T) {
	ctx := context.Background()

	stuckAsset := func(t *testing.T, p *pipeline, startedAt time.Time) uint {
		t.Helper()
		asset, err := p.fixtures.CreateTestAsset(models.CategoryBuildingRef, models.AssetStatusGenerating)
		require.NoError(t, err)
		entry, err := p.fixtures.CreateTestQueueEntry(asset.ID, 1, 2, models.QueueStatusProcessing)
		require.NoError(t, err)
		require.NoError(t, p.testDB.DB.Model(entry).Update("started_at", startedAt).Error)
		return asset.ID
	}

	t.Run("recent attempt is still in progress", func(t *testing.T) {
		p := newPipeline(t)
		id := stuckAsset(t, p, time.Now().UTC())

		_, err := p.review.RestartGeneration(ctx, &dto.AssetActionRequest{AssetID: id}, nil)
		requireKind(t, err, businessflow.KindDependency, "ASSET_GENERATION_IN_PROGRESS")
		assert.Equal(t, string(models.AssetStatusGenerating), p.getAsset(t, id).Asset.Status)
	})

	t.Run("attempt older than the lock ttl is released", func(t *testing.T) {
		p := newPipeline(t)
		id := stuckAsset(t, p, time.Now().UTC().Add(-time.Hour))

		restarted, err := p.review.RestartGeneration(ctx, &dto.AssetActionRequest{AssetID: id, Actor: "ops"}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.AssetStatusFailed), restarted.Asset.Status)
		require.NotNil(t, restarted.Asset.ErrorMessage)
		require.NotNil(t, restarted.Queue)
		assert.Equal(t, 0, restarted.Queue.Attempts)
		assert.Equal(t, string(models.QueueStatusQueued), restarted.Queue.Status)

		regenerated, err := p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: id}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.AssetStatusAwaitingReview), regenerated.Asset.Status)
	})
}

func TestGenerateFromRef(t *testing.T) {
	ctx := context.Background()

	t.Run("approved parent yields a linked child", func(t *testing.T) {
		p := newPipeline(t)

		parent := p.generate(t, models.CategoryBuildingRef, "bakery", "a small bakery")
		parent = p.approve(t, parent.ID)

		resp, err := p.assets.GenerateFromRef(ctx, &dto.DeriveAssetRequest{
			ParentAssetID: parent.ID,
			SpritePrompt:  "isometric sprite of the bakery",
			Actor:         "reviewer@test",
		}, nil)
		require.NoError(t, err)

		child := resp.Asset
		assert.Equal(t, models.CategoryBuildingSprite, child.Category)
		assert.Equal(t, "bakery", child.AssetKey)
		require.NotNil(t, child.ParentAssetID)
		assert.Equal(t, parent.ID, *child.ParentAssetID)
		assert.Equal(t, string(models.AssetStatusAwaitingReview), child.Status)

		after := p.getAsset(t, parent.ID).Asset
		assert.Equal(t, parent.Version, after.Version, "parent must not be written")
		assert.Equal(t, string(models.AssetStatusApproved), after.Status)

		children, err := p.assets.ListAssets(ctx, &dto.ListAssetsRequest{
			Category:      models.CategoryBuildingSprite,
			ParentAssetID: &parent.ID,
		})
		require.NoError(t, err)
		require.Len(t, children.Items, 1)
		assert.Equal(t, child.ID, children.Items[0].ID)
	})

	t.Run("unapproved parent is refused", func(t *testing.T) {
		p := newPipeline(t)

		parent := p.generate(t, models.CategoryCharacterRef, "wizard", "an old wizard")
		_, err := p.assets.GenerateFromRef(ctx, &dto.DeriveAssetRequest{ParentAssetID: parent.ID, SpritePrompt: "wizard sprite"}, nil)

		requireKind(t, err, businessflow.KindDependency, "PARENT_NOT_APPROVED")
		assert.True(t, businessflow.IsParentNotApproved(err))

		sprites, err := p.assets.ListAssets(ctx, &dto.ListAssetsRequest{Category: models.CategoryCharacterSprite})
		require.NoError(t, err)
		assert.Zero(t, sprites.Total)
	})

	t.Run("missing parent", func(t *testing.T) {
		p := newPipeline(t)

		_, err := p.assets.GenerateFromRef(ctx, &dto.DeriveAssetRequest{ParentAssetID: 4242, SpritePrompt: "anything"}, nil)
		requireKind(t, err, businessflow.KindNotFound, "PARENT_ASSET_NOT_FOUND")
	})

	t.Run("category without a child", func(t *testing.T) {
		p := newPipeline(t)

		parent := p.generate(t, models.CategorySceneBackground, "forest", "a misty forest")
		p.approve(t, parent.ID)

		_, err := p.assets.GenerateFromRef(ctx, &dto.DeriveAssetRequest{ParentAssetID: parent.ID, SpritePrompt: "sprite"}, nil)
		requireKind(t, err, businessflow.KindDependency, "NO_CHILD_CATEGORY")
	})
}

func TestListAssets(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	for _, key := range []string{"farm", "market", "tavern"} {
		p.generate(t, models.CategoryBuildingRef, key, "a "+key)
	}
	page, err := p.assets.ListAssets(ctx, &dto.ListAssetsRequest{Category: models.CategoryBuildingRef, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "farm", page.Items[0].AssetKey)

	p.approve(t, page.Items[1].ID)
	approved, err := p.assets.ListAssets(ctx, &dto.ListAssetsRequest{
		Category: models.CategoryBuildingRef,
		Status:   utils.ToPtr(string(models.AssetStatusApproved)),
	})
	require.NoError(t, err)
	require.Len(t, approved.Items, 1)
	assert.Equal(t, "market", approved.Items[0].AssetKey)

	_, err = p.assets.ListAssets(ctx, &dto.ListAssetsRequest{Category: "nope"})
	requireKind(t, err, businessflow.KindValidation, "UNKNOWN_CATEGORY")

	_, err = p.assets.ListAssets(ctx, &dto.ListAssetsRequest{Category: models.CategoryBuildingRef, PageSize: 1000})
	requireKind(t, err, businessflow.KindValidation, "INVALID_PAGE_SIZE")

	_, err = p.assets.GetAsset(ctx, 999)
	requireKind(t, err, businessflow.KindNotFound, "ASSET_NOT_FOUND")
	assert.True(t, businessflow.IsAssetNotFound(err))
}

func TestListCategories(t *testing.T) {
	p := newPipeline(t)

	resp, err := p.assets.ListCategories(context.Background())
	require.NoError(t, err)

	byName := map[string]dto.CategoryDTO{}
	for _, c := range resp.Categories {
		byName[c.Name] = c
	}
	require.Contains(t, byName, models.CategoryBuildingRef)
	assert.Equal(t, models.CategoryBuildingSprite, byName[models.CategoryBuildingRef].ChildCategory)
	assert.Equal(t, models.CategoryBuildingRef, byName[models.CategoryBuildingSprite].ParentCategory)
	assert.True(t, byName[models.CategoryBuildingSprite].RequiresBackgroundRemoval)
	assert.Empty(t, byName[models.CategorySceneBackground].ChildCategory)
}
