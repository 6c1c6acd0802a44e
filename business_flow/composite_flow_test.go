package businessflow_test

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.NRGBA{R: 255, A: 255}

func (p *pipeline) upsertAvatar(t *testing.T, subject string, layers ...string) *dto.AvatarCompositeDTO {
	t.Helper()
	out, err := p.composites.UpsertAvatarComposite(context.Background(), &dto.UpsertAvatarCompositeRequest{
		SubjectID: subject,
		LayerIDs:  layers,
		Image:     solidPNG(t, 32, 32, red),
	}, nil)
	require.NoError(t, err)
	return out
}

func (p *pipeline) upsertTemplate(t *testing.T, id, background string, foreground *string) *dto.UpsertSceneTemplateResponse {
	t.Helper()
	out, err := p.composites.UpsertSceneTemplate(context.Background(), &dto.UpsertSceneTemplateRequest{
		ID:            id,
		Name:          "Town square",
		BackgroundKey: background,
		ForegroundKey: foreground,
		AvatarSlot:    dto.AvatarSlotDTO{X: 10, Y: 10, Width: 100, Height: 100},
		Width:         640,
		Height:        480,
	}, nil)
	require.NoError(t, err)
	return out
}

// cacheScene composes the scene and stores a client render for the returned hashes
func (p *pipeline) cacheScene(t *testing.T, templateID, subject string) *dto.SceneCompositeDTO {
	t.Helper()
	ctx := context.Background()
	composed, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: templateID, SubjectID: subject})
	require.NoError(t, err)

	out, err := p.composites.CacheComposedScene(ctx, &dto.CacheComposedSceneRequest{
		SceneTemplateID: templateID,
		SubjectID:       subject,
		AvatarHash:      composed.AvatarHash,
		TemplateHash:    composed.TemplateHash,
		Image:           solidPNG(t, 64, 48, red),
	}, nil)
	require.NoError(t, err)
	return out
}

func TestAvatarComposite(t *testing.T) {
	ctx := context.Background()

	t.Run("hash ignores layer order", func(t *testing.T) {
		p := newPipeline(t)

		first := p.upsertAvatar(t, "player-1", "hair_02", "base_01", "hat_07")
		assert.False(t, first.Cached)
		assert.Equal(t, models.AvatarContextDefault, first.Context)
		assert.Equal(t, []string{"base_01", "hair_02", "hat_07"}, first.LayerIDs)
		assert.Equal(t, models.AvatarHash([]string{"base_01", "hair_02", "hat_07"}), first.AvatarHash)
		assert.Equal(t, 32, first.Width)

		second := p.upsertAvatar(t, "player-1", "hat_07", "hair_02", "base_01")
		assert.True(t, second.Cached)
		assert.Equal(t, first.AvatarHash, second.AvatarHash)
		assert.Equal(t, first.PublicURL, second.PublicURL)

		got, err := p.composites.GetAvatarComposite(ctx, "player-1", "")
		require.NoError(t, err)
		assert.Equal(t, first.AvatarHash, got.AvatarHash)
	})

	t.Run("contexts are independent", func(t *testing.T) {
		p := newPipeline(t)
		p.upsertAvatar(t, "player-1", "base_01")

		_, err := p.composites.GetAvatarComposite(ctx, "player-1", "portrait")
		requireKind(t, err, businessflow.KindNotFound, "AVATAR_COMPOSITE_NOT_FOUND")
	})

	t.Run("validation", func(t *testing.T) {
		p := newPipeline(t)

		_, err := p.composites.UpsertAvatarComposite(ctx, &dto.UpsertAvatarCompositeRequest{SubjectID: "player-1", LayerIDs: []string{" "}}, nil)
		requireKind(t, err, businessflow.KindValidation, "AVATAR_LAYERS_REQUIRED")

		_, err = p.composites.UpsertAvatarComposite(ctx, &dto.UpsertAvatarCompositeRequest{
			SubjectID: "player-1",
			LayerIDs:  []string{"base_01"},
			Image:     []byte("garbage"),
		}, nil)
		requireKind(t, err, businessflow.KindValidation, "INVALID_COMPOSITE_IMAGE")
	})

	t.Run("server side rendering from published layers", func(t *testing.T) {
		p := newPipeline(t)
		p.publishedLayer(t, "base_01")
		p.publishedLayer(t, "hat_07")

		out, err := p.composites.UpsertAvatarComposite(ctx, &dto.UpsertAvatarCompositeRequest{
			SubjectID: "player-2",
			LayerIDs:  []string{"base_01", "hat_07"},
		}, nil)
		require.NoError(t, err)
		assert.False(t, out.Cached)
		assert.Equal(t, 64, out.Width)
		assert.Equal(t, 64, out.Height)

		key := "composites/avatar/player-2/default/" + out.AvatarHash + ".png"
		raw, err := p.publicStore.Get(ctx, key)
		require.NoError(t, err)
		bounds := decodeBounds(t, raw)
		assert.Equal(t, 64, bounds.Dx())

		_, err = p.composites.UpsertAvatarComposite(ctx, &dto.UpsertAvatarCompositeRequest{
			SubjectID: "player-2",
			LayerIDs:  []string{"base_01", "wings_01"},
		}, nil)
		requireKind(t, err, businessflow.KindNotFound, "AVATAR_LAYER_NOT_FOUND")

		unpublished := p.generate(t, models.CategoryAvatarLayer, "boots_03", "leather boots")
		p.approve(t, unpublished.ID)
		_, err = p.composites.UpsertAvatarComposite(ctx, &dto.UpsertAvatarCompositeRequest{
			SubjectID: "player-2",
			LayerIDs:  []string{"boots_03"},
		}, nil)
		requireKind(t, err, businessflow.KindDependency, "AVATAR_LAYER_NOT_PUBLISHED")
	})

	t.Run("image is required when server rendering is off", func(t *testing.T) {
		p := newPipeline(t)
		p.pipelineCfg.ServerCompositorEnabled = false
		p.build(t)

		_, err := p.composites.UpsertAvatarComposite(ctx, &dto.UpsertAvatarCompositeRequest{
			SubjectID: "player-3",
			LayerIDs:  []string{"base_01"},
		}, nil)
		requireKind(t, err, businessflow.KindValidation, "COMPOSITE_IMAGE_REQUIRED")
	})
}

func TestSceneTemplate(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	created := p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", nil)
	assert.False(t, created.LayersChanged)
	assert.Zero(t, created.InvalidatedScenes)
	assert.Equal(t, models.TemplateHash("scene_background/plaza/1.png", nil), created.Template.TemplateHash)

	_, err := p.composites.UpsertSceneTemplate(ctx, &dto.UpsertSceneTemplateRequest{
		ID:            "plaza",
		Name:          "Town square",
		BackgroundKey: "scene_background/plaza/1.png",
		AvatarSlot:    dto.AvatarSlotDTO{X: 600, Y: 10, Width: 100, Height: 100},
		Width:         640,
		Height:        480,
	}, nil)
	requireKind(t, err, businessflow.KindValidation, "INVALID_AVATAR_SLOT")

	_, err = p.composites.UpsertSceneTemplate(ctx, &dto.UpsertSceneTemplateRequest{ID: "plaza", Name: "x", AvatarSlot: dto.AvatarSlotDTO{Width: 1, Height: 1}}, nil)
	requireKind(t, err, businessflow.KindValidation, "BACKGROUND_REQUIRED")

	// renaming keeps cached scenes
	renamed, err := p.composites.UpsertSceneTemplate(ctx, &dto.UpsertSceneTemplateRequest{
		ID:            "plaza",
		Name:          "Market square",
		BackgroundKey: "scene_background/plaza/1.png",
		AvatarSlot:    dto.AvatarSlotDTO{X: 20, Y: 20, Width: 100, Height: 100},
		Width:         640,
		Height:        480,
	}, nil)
	require.NoError(t, err)
	assert.False(t, renamed.LayersChanged)
	assert.Equal(t, "Market square", renamed.Template.Name)
	assert.Equal(t, created.Template.TemplateHash, renamed.Template.TemplateHash)
}

func TestComposeScene(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		p := newPipeline(t)
		avatar := p.upsertAvatar(t, "player-1", "base_01", "hat_07")
		p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", utils.ToPtr("scene_foreground/plaza/1.png"))

		miss, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "plaza", SubjectID: "player-1"})
		require.NoError(t, err)
		assert.False(t, miss.Cached)
		assert.Nil(t, miss.PublicURL)
		require.NotNil(t, miss.Layers)
		assert.Equal(t, "https://cdn.test/scene_background/plaza/1.png", miss.Layers.BackgroundURL)
		require.NotNil(t, miss.Layers.ForegroundURL)
		assert.Equal(t, "https://cdn.test/scene_foreground/plaza/1.png", *miss.Layers.ForegroundURL)
		require.NotNil(t, miss.Layers.AvatarURL)
		assert.Equal(t, avatar.PublicURL, *miss.Layers.AvatarURL)
		assert.Equal(t, []string{"base_01", "hat_07"}, miss.Layers.AvatarLayerIDs)
		assert.Equal(t, 100, miss.Layers.AvatarSlot.Width)
		assert.Equal(t, avatar.AvatarHash, miss.AvatarHash)

		cached := p.cacheScene(t, "plaza", "player-1")
		assert.Equal(t, avatar.AvatarHash, cached.AvatarHash)

		hit, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "plaza", SubjectID: "player-1"})
		require.NoError(t, err)
		assert.True(t, hit.Cached)
		require.NotNil(t, hit.PublicURL)
		assert.Equal(t, cached.PublicURL, *hit.PublicURL)
		assert.NotNil(t, hit.LastAccessedAt)
		assert.Nil(t, hit.Layers)
	})

	t.Run("missing inputs", func(t *testing.T) {
		p := newPipeline(t)
		p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", nil)

		_, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "plaza", SubjectID: "nobody"})
		requireKind(t, err, businessflow.KindNotFound, "AVATAR_COMPOSITE_NOT_FOUND")

		p.upsertAvatar(t, "player-1", "base_01")
		_, err = p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "harbor", SubjectID: "player-1"})
		requireKind(t, err, businessflow.KindNotFound, "SCENE_TEMPLATE_NOT_FOUND")
	})

	t.Run("stale hashes are refused", func(t *testing.T) {
		p := newPipeline(t)
		avatar := p.upsertAvatar(t, "player-1", "base_01")
		tmpl := p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", nil)

		_, err := p.composites.CacheComposedScene(ctx, &dto.CacheComposedSceneRequest{
			SceneTemplateID: "plaza",
			SubjectID:       "player-1",
			AvatarHash:      models.AvatarHash([]string{"base_02"}),
			TemplateHash:    tmpl.Template.TemplateHash,
			Image:           solidPNG(t, 8, 8, red),
		}, nil)
		requireKind(t, err, businessflow.KindDependency, "STALE_COMPOSITE_INPUTS")
		assert.True(t, businessflow.IsStaleCompositeInputs(err))

		_, err = p.composites.CacheComposedScene(ctx, &dto.CacheComposedSceneRequest{
			SceneTemplateID: "plaza",
			SubjectID:       "player-1",
			AvatarHash:      avatar.AvatarHash,
			TemplateHash:    tmpl.Template.TemplateHash,
		}, nil)
		requireKind(t, err, businessflow.KindValidation, "COMPOSITE_IMAGE_REQUIRED")
	})

	t.Run("avatar change invalidates every scene of the subject", func(t *testing.T) {
		p := newPipeline(t)
		p.upsertAvatar(t, "player-1", "base_01")
		p.upsertAvatar(t, "player-2", "base_01")
		p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", nil)
		p.upsertTemplate(t, "harbor", "scene_background/harbor/1.png", nil)

		p.cacheScene(t, "plaza", "player-1")
		p.cacheScene(t, "harbor", "player-1")
		p.cacheScene(t, "plaza", "player-2")

		// unchanged selection keeps the cache
		p.upsertAvatar(t, "player-1", "base_01")
		hit, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "harbor", SubjectID: "player-1"})
		require.NoError(t, err)
		assert.True(t, hit.Cached)

		changed := p.upsertAvatar(t, "player-1", "base_01", "hat_07")
		assert.False(t, changed.Cached)

		for _, id := range []string{"plaza", "harbor"} {
			resp, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: id, SubjectID: "player-1"})
			require.NoError(t, err)
			assert.False(t, resp.Cached, "scene %s should be invalidated", id)
			assert.Equal(t, changed.AvatarHash, resp.AvatarHash)
		}

		other, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "plaza", SubjectID: "player-2"})
		require.NoError(t, err)
		assert.True(t, other.Cached, "other subjects keep their scenes")

		recent, err := p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{Action: utils.ToPtr(models.AuditActionAvatarCompositeUpdated)})
		require.NoError(t, err)
		require.NotEmpty(t, recent.Entries)
		assert.EqualValues(t, 2, recent.Entries[0].Details["invalidated_scenes"])
	})

	t.Run("template layer change invalidates its scenes", func(t *testing.T) {
		p := newPipeline(t)
		p.upsertAvatar(t, "player-1", "base_01")
		p.upsertAvatar(t, "player-2", "base_01")
		p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", nil)
		p.upsertTemplate(t, "harbor", "scene_background/harbor/1.png", nil)

		p.cacheScene(t, "plaza", "player-1")
		p.cacheScene(t, "plaza", "player-2")
		p.cacheScene(t, "harbor", "player-1")

		updated := p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", utils.ToPtr("scene_foreground/plaza/2.png"))
		assert.True(t, updated.LayersChanged)
		assert.EqualValues(t, 2, updated.InvalidatedScenes)

		resp, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "plaza", SubjectID: "player-1"})
		require.NoError(t, err)
		assert.False(t, resp.Cached)
		assert.Equal(t, updated.Template.TemplateHash, resp.TemplateHash)

		harbor, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "harbor", SubjectID: "player-1"})
		require.NoError(t, err)
		assert.True(t, harbor.Cached)
	})
}

func TestEvictStaleScenes(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	_, err := p.composites.EvictStaleScenes(ctx, 0)
	requireKind(t, err, businessflow.KindValidation, "INVALID_EVICTION_AGE")

	p.upsertAvatar(t, "player-1", "base_01")
	p.upsertTemplate(t, "plaza", "scene_background/plaza/1.png", nil)
	p.upsertTemplate(t, "harbor", "scene_background/harbor/1.png", nil)
	p.cacheScene(t, "plaza", "player-1")
	p.cacheScene(t, "harbor", "player-1")

	evicted, err := p.composites.EvictStaleScenes(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, evicted)

	old := utils.UTCNow().Add(-48 * time.Hour)
	require.NoError(t, p.testDB.DB.Model(&models.SceneComposedCacheEntry{}).
		Where("scene_template_id = ?", "plaza").
		Update("last_accessed_at", old).Error)

	evicted, err = p.composites.EvictStaleScenes(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, evicted)

	plaza, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "plaza", SubjectID: "player-1"})
	require.NoError(t, err)
	assert.False(t, plaza.Cached)

	harbor, err := p.composites.ComposeScene(ctx, &dto.ComposeSceneRequest{SceneTemplateID: "harbor", SubjectID: "player-1"})
	require.NoError(t, err)
	assert.True(t, harbor.Cached)
}
