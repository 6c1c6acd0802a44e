package businessflow_test

import (
	"context"
	"testing"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/services"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference -> approve -> publish -> derive sprite -> approve -> publish
func TestReferenceToPublishedSprite(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	ref := p.generate(t, models.CategoryBuildingRef, "restaurant", "a cozy restaurant")
	p.approve(t, ref.ID)

	published, err := p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: ref.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/building_ref/restaurant/1.png", published.PublicURL)
	assert.False(t, published.Asset.BackgroundRemoved, "references keep their background")
	assert.Equal(t, 0, p.remover.calls)

	refImage, err := p.publicStore.Get(ctx, "building_ref/restaurant/1.png")
	require.NoError(t, err)
	bounds := decodeBounds(t, refImage)
	assert.Equal(t, 1024, bounds.Dx())
	assert.Equal(t, 1024, bounds.Dy())

	derived, err := p.assets.GenerateFromRef(ctx, &dto.DeriveAssetRequest{ParentAssetID: ref.ID, SpritePrompt: "restaurant sprite"}, nil)
	require.NoError(t, err)
	sprite := p.approve(t, derived.Asset.ID)

	spritePublished, err := p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: sprite.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/building_sprite/restaurant/1.png", spritePublished.PublicURL)
	assert.True(t, spritePublished.Asset.BackgroundRemoved)
	assert.Equal(t, string(models.AssetStatusApproved), spritePublished.Asset.Status)
	require.NotNil(t, spritePublished.Asset.PublishedAt)
	require.NotNil(t, spritePublished.Asset.PrivateStorageKey)
	assert.Equal(t, "building_sprite/restaurant/1/draft-v1-nobg.png", *spritePublished.Asset.PrivateStorageKey)
	assert.True(t, hasKeyWithSuffix(p.privateStore, "draft-v1-nobg.png"))
	assert.Equal(t, 1, p.remover.calls)

	spriteImage, err := p.publicStore.Get(ctx, "building_sprite/restaurant/1.png")
	require.NoError(t, err)
	img, err := services.DecodeImage(spriteImage)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	_, _, _, alpha := img.At(0, 0).RGBA()
	assert.Zero(t, alpha, "white backdrop is keyed out")

	// publishing again is idempotent and does not repeat background removal
	again, err := p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: sprite.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, spritePublished.PublicURL, again.PublicURL)
	assert.Equal(t, 1, p.remover.calls)
}

func TestPublishRequiresApproval(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	asset := p.generate(t, models.CategoryBuildingRef, "bank", "a bank")

	_, err := p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
	requireKind(t, err, businessflow.KindDependency, "INVALID_ASSET_STATUS")
	assert.Empty(t, p.publicStore.Keys(), "nothing is written for an unapproved asset")

	got := p.getAsset(t, asset.ID).Asset
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.PublicURL)
}

func TestPublishFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("background removal failure keeps approval", func(t *testing.T) {
		p := newPipeline(t)
		layer := p.generate(t, models.CategoryAvatarLayer, "hat", "a red hat")
		p.approve(t, layer.ID)

		p.remover.failErr = errServiceDown
		_, err := p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: layer.ID}, nil)
		requireKind(t, err, businessflow.KindExternalService, "BACKGROUND_REMOVAL_FAILED")

		got := p.getAsset(t, layer.ID).Asset
		assert.Equal(t, string(models.AssetStatusApproved), got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Contains(t, *got.ErrorMessage, "service unavailable")
		assert.Nil(t, got.PublicURL)
		assert.False(t, got.BackgroundRemoved)
		assert.Empty(t, p.publicStore.Keys())

		p.remover.failErr = nil
		resp, err := p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: layer.ID}, nil)
		require.NoError(t, err)
		assert.Nil(t, resp.Asset.ErrorMessage)
		assert.NotEmpty(t, resp.PublicURL)
	})

	t.Run("failure after a publish keeps the previous public fields", func(t *testing.T) {
		p := newPipeline(t)
		ref := p.generate(t, models.CategoryBuildingRef, "castle", "a castle")
		p.approve(t, ref.ID)

		first, err := p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: ref.ID}, nil)
		require.NoError(t, err)

		// corrupt the private draft so normalization fails
		require.NoError(t, p.privateStore.Put(ctx, *first.Asset.PrivateStorageKey, []byte("not an image"), "application/octet-stream"))

		_, err = p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: ref.ID}, nil)
		requireKind(t, err, businessflow.KindStorage, "IMAGE_NORMALIZE_FAILED")

		got := p.getAsset(t, ref.ID).Asset
		assert.Equal(t, string(models.AssetStatusApproved), got.Status)
		require.NotNil(t, got.PublicURL)
		assert.Equal(t, first.PublicURL, *got.PublicURL)
		require.NotNil(t, got.ErrorMessage)
	})

	t.Run("missing private image is a storage error", func(t *testing.T) {
		p := newPipeline(t)
		asset, err := p.fixtures.CreateTestAsset(models.CategoryBuildingRef, models.AssetStatusApproved)
		require.NoError(t, err)

		_, err = p.publish.Publish(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
		requireKind(t, err, businessflow.KindStorage, "PRIVATE_IMAGE_MISSING")
	})
}

func TestRemoveBackground(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	layer := p.generate(t, models.CategoryAvatarLayer, "cape", "a blue cape")

	resp, err := p.publish.RemoveBackground(ctx, &dto.AssetActionRequest{AssetID: layer.ID}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Asset.BackgroundRemoved)
	assert.Equal(t, string(models.AssetStatusAwaitingReview), resp.Asset.Status)
	assert.Equal(t, 1, p.remover.calls)

	resp, err = p.publish.RemoveBackground(ctx, &dto.AssetActionRequest{AssetID: layer.ID}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Asset.BackgroundRemoved)
	assert.Equal(t, 1, p.remover.calls, "second call is a no-op")

	_, err = p.review.Reject(ctx, &dto.RejectAssetRequest{AssetID: layer.ID, Reason: "wrong color"}, nil)
	require.NoError(t, err)
	_, err = p.publish.RemoveBackground(ctx, &dto.AssetActionRequest{AssetID: layer.ID}, nil)
	requireKind(t, err, businessflow.KindDependency, "INVALID_ASSET_STATUS")

	regenerated, err := p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: layer.ID}, nil)
	require.NoError(t, err)
	assert.False(t, regenerated.Asset.BackgroundRemoved, "a new draft needs its own removal")
}
