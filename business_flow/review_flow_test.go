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

func TestApprove(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	asset := p.generate(t, models.CategoryBuildingRef, "library", "a grand library")

	approved := p.approve(t, asset.ID)
	assert.Equal(t, string(models.AssetStatusApproved), approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "reviewer@test", *approved.ApprovedBy)

	// approving twice is refused rather than silently accepted
	_, err := p.review.Approve(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
	requireKind(t, err, businessflow.KindDependency, "INVALID_ASSET_STATUS")
	assert.True(t, businessflow.IsInvalidAssetStatus(err))

	pending, err := p.fixtures.CreateTestAsset(models.CategoryBuildingRef, models.AssetStatusPending)
	require.NoError(t, err)
	_, err = p.review.Approve(ctx, &dto.AssetActionRequest{AssetID: pending.ID}, nil)
	requireKind(t, err, businessflow.KindDependency, "INVALID_ASSET_STATUS")

	_, err = p.review.Approve(ctx, &dto.AssetActionRequest{AssetID: 9999}, nil)
	requireKind(t, err, businessflow.KindNotFound, "ASSET_NOT_FOUND")
}

func TestRejectAndRegenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("feedback is folded into the next prompt", func(t *testing.T) {
		p := newPipeline(t)
		asset := p.generate(t, models.CategoryCharacterRef, "archer", "an elven archer")

		resp, err := p.review.Reject(ctx, &dto.RejectAssetRequest{
			AssetID: asset.ID,
			Reason:  "bow is missing",
			Actor:   "lead@test",
		}, nil)
		require.NoError(t, err)

		rejected := resp.Asset
		assert.Equal(t, string(models.AssetStatusRejected), rejected.Status)
		assert.Equal(t, 1, rejected.RejectionCount)
		assert.Equal(t, 2, rejected.PromptVersion)
		assert.Equal(t, []string{"bow is missing"}, rejected.FeedbackNotes)
		assert.Equal(t, "an elven archer", rejected.BasePrompt)
		assert.True(t, len(rejected.CurrentPrompt) > len(rejected.BasePrompt))
		assert.Contains(t, rejected.CurrentPrompt, "REVIEWER FEEDBACK (must address):")
		assert.Contains(t, rejected.CurrentPrompt, "- bow is missing")

		history, err := p.assets.GetRejectionHistory(ctx, asset.ID)
		require.NoError(t, err)
		require.Len(t, history.Rejections, 1)
		assert.Equal(t, "bow is missing", history.Rejections[0].Reason)
		assert.Equal(t, 1, history.Rejections[0].PromptVersionAtRejection)
		assert.Equal(t, "an elven archer", history.Rejections[0].PromptSnapshot)
		assert.True(t, history.Rejections[0].IncorporatedFeedback)
		assert.Equal(t, "lead@test", history.Rejections[0].RejectedBy)

		regenerated, err := p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.AssetStatusAwaitingReview), regenerated.Asset.Status)
		assert.Equal(t, 2, regenerated.Asset.PromptVersion, "regenerate keeps the prompt version")
		assert.Equal(t, rejected.CurrentPrompt, p.generator.lastPrompt())
		require.NotNil(t, regenerated.Asset.PrivateStorageKey)
		assert.Equal(t, "character_ref/archer/1/draft-v2.png", *regenerated.Asset.PrivateStorageKey)

		// second rejection appends a second note
		resp, err = p.review.Reject(ctx, &dto.RejectAssetRequest{AssetID: asset.ID, Reason: "ears too short"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"bow is missing", "ears too short"}, resp.Asset.FeedbackNotes)
		assert.Equal(t, 2, resp.Asset.RejectionCount)
		assert.Equal(t, 3, resp.Asset.PromptVersion)
		assert.Contains(t, resp.Asset.CurrentPrompt, "- ears too short")
	})

	t.Run("feedback can be kept out of the prompt", func(t *testing.T) {
		p := newPipeline(t)
		asset := p.generate(t, models.CategoryCharacterRef, "monk", "a calm monk")

		resp, err := p.review.Reject(ctx, &dto.RejectAssetRequest{
			AssetID:             asset.ID,
			Reason:              "wrong robe color",
			IncorporateFeedback: utils.ToPtr(false),
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, asset.CurrentPrompt, resp.Asset.CurrentPrompt)
		assert.Empty(t, resp.Asset.FeedbackNotes)
		assert.Equal(t, 2, resp.Asset.PromptVersion)
		assert.Equal(t, 1, resp.Asset.RejectionCount)

		history, err := p.assets.GetRejectionHistory(ctx, asset.ID)
		require.NoError(t, err)
		require.Len(t, history.Rejections, 1)
		assert.False(t, history.Rejections[0].IncorporatedFeedback)
	})

	t.Run("invalid rejections", func(t *testing.T) {
		p := newPipeline(t)
		asset := p.generate(t, models.CategoryCharacterRef, "bard", "a cheerful bard")

		_, err := p.review.Reject(ctx, &dto.RejectAssetRequest{AssetID: asset.ID, Reason: "  "}, nil)
		requireKind(t, err, businessflow.KindValidation, "REJECTION_REASON_REQUIRED")

		p.approve(t, asset.ID)
		_, err = p.review.Reject(ctx, &dto.RejectAssetRequest{AssetID: asset.ID, Reason: "too late"}, nil)
		requireKind(t, err, businessflow.KindDependency, "INVALID_ASSET_STATUS")

		history, err := p.assets.GetRejectionHistory(ctx, asset.ID)
		require.NoError(t, err)
		assert.Empty(t, history.Rejections)
	})

	t.Run("regenerate needs a rejected or failed asset", func(t *testing.T) {
		p := newPipeline(t)
		asset := p.generate(t, models.CategoryCharacterRef, "smith", "a blacksmith")

		_, err := p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
		requireKind(t, err, businessflow.KindDependency, "INVALID_ASSET_STATUS")
	})
}

func TestResetPrompt(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	asset := p.generate(t, models.CategoryBuildingRef, "tavern", "a rustic tavern")

	_, err := p.review.ResetPrompt(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
	requireKind(t, err, businessflow.KindDependency, "INVALID_ASSET_STATUS")

	_, err = p.review.Reject(ctx, &dto.RejectAssetRequest{AssetID: asset.ID, Reason: "needs a sign"}, nil)
	require.NoError(t, err)

	resp, err := p.review.ResetPrompt(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a rustic tavern", resp.Asset.CurrentPrompt)
	assert.Empty(t, resp.Asset.FeedbackNotes)
	assert.Equal(t, 3, resp.Asset.PromptVersion)
	assert.Equal(t, string(models.AssetStatusRejected), resp.Asset.Status)
	assert.Equal(t, 1, resp.Asset.RejectionCount)

	_, err = p.review.Regenerate(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a rustic tavern", p.generator.lastPrompt())

	p.approve(t, asset.ID)
	resp, err = p.review.ResetPrompt(ctx, &dto.AssetActionRequest{AssetID: asset.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(models.AssetStatusApproved), resp.Asset.Status)
	assert.Equal(t, 4, resp.Asset.PromptVersion)
}

func TestReviewAuditTrail(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	asset := p.generate(t, models.CategoryBuildingRef, "farm", "a farm")
	_, err := p.review.Reject(ctx, &dto.RejectAssetRequest{AssetID: asset.ID, Reason: "more cows", Actor: "lead@test"}, nil)
	require.NoError(t, err)

	recent, err := p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{AssetID: &asset.ID})
	require.NoError(t, err)
	require.Len(t, recent.Entries, 3)

	assert.Equal(t, models.AuditActionAssetRejected, recent.Entries[0].Action)
	assert.Equal(t, "lead@test", recent.Entries[0].Actor)
	assert.Equal(t, "more cows", recent.Entries[0].Details["reason"])
	assert.Equal(t, models.AuditActionGenerationSucceeded, recent.Entries[1].Action)
	assert.Equal(t, models.AuditActionGenerationRequested, recent.Entries[2].Action)
}
