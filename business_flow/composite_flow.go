package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	"github.com/amirphl/asset-forge/app/services"
	"github.com/amirphl/asset-forge/config"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/amirphl/asset-forge/utils"
	"gorm.io/gorm"
)

// CompositeFlow manages the avatar and scene composite caches
type CompositeFlow interface {
	UpsertAvatarComposite(ctx context.Context, req *dto.UpsertAvatarCompositeRequest, metadata *ClientMetadata) (*dto.AvatarCompositeDTO, error)
	GetAvatarComposite(ctx context.Context, subjectID, avatarContext string) (*dto.AvatarCompositeDTO, error)
	UpsertSceneTemplate(ctx context.Context, req *dto.UpsertSceneTemplateRequest, metadata *ClientMetadata) (*dto.UpsertSceneTemplateResponse, error)
	ComposeScene(ctx context.Context, req *dto.ComposeSceneRequest) (*dto.ComposeSceneResponse, error)
	CacheComposedScene(ctx context.Context, req *dto.CacheComposedSceneRequest, metadata *ClientMetadata) (*dto.SceneCompositeDTO, error)
	EvictStaleScenes(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CompositeFlowImpl implements CompositeFlow
type CompositeFlowImpl struct {
	db           *gorm.DB
	avatarRepo   repository.AvatarCompositeRepository
	templateRepo repository.SceneTemplateRepository
	sceneRepo    repository.SceneCompositeRepository
	assetRepo    repository.AssetRecordRepository
	auditRepo    repository.AuditLogRepository
	publicStore  services.BlobStore
	compositor   services.LayerCompositor
	pipelineCfg  config.PipelineConfig
	log          *logger.Logger
}

func NewCompositeFlow(
	db *gorm.DB,
	avatarRepo repository.AvatarCompositeRepository,
	templateRepo repository.SceneTemplateRepository,
	sceneRepo repository.SceneCompositeRepository,
	assetRepo repository.AssetRecordRepository,
	auditRepo repository.AuditLogRepository,
	publicStore services.BlobStore,
	compositor services.LayerCompositor,
	pipelineCfg config.PipelineConfig,
	log *logger.Logger,
) CompositeFlow {
	if log == nil {
		log = logger.Nop()
	}
	return &CompositeFlowImpl{
		db:           db,
		avatarRepo:   avatarRepo,
		templateRepo: templateRepo,
		sceneRepo:    sceneRepo,
		assetRepo:    assetRepo,
		auditRepo:    auditRepo,
		publicStore:  publicStore,
		compositor:   compositor,
		pipelineCfg:  pipelineCfg,
		log:          log,
	}
}

func avatarContextOrDefault(c string) string {
	if c = strings.TrimSpace(c); c != "" {
		return c
	}
	return models.AvatarContextDefault
}

// UpsertAvatarComposite stores the composite for a layer selection. An unchanged selection
// returns the cached entry; a new one replaces it and drops every cached scene of the subject.
func (f *CompositeFlowImpl) UpsertAvatarComposite(ctx context.Context, req *dto.UpsertAvatarCompositeRequest, metadata *ClientMetadata) (*dto.AvatarCompositeDTO, error) {
	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		return nil, NewValidationError("SUBJECT_REQUIRED", "subject id is required", nil)
	}
	avatarContext := avatarContextOrDefault(req.Context)

	layerIDs := models.NormalizeLayerIDs(req.LayerIDs)
	if len(layerIDs) == 0 {
		return nil, NewValidationError("AVATAR_LAYERS_REQUIRED", "at least one layer id is required", ErrNoAvatarLayers)
	}
	avatarHash := models.AvatarHash(layerIDs)

	existing, err := f.avatarRepo.BySubjectContext(ctx, subjectID, avatarContext)
	if err != nil {
		return nil, NewBusinessError("AVATAR_LOOKUP_FAILED", "Failed to load avatar composite", err)
	}
	if existing != nil && existing.AvatarHash == avatarHash {
		compositeCacheLookupsTotal.WithLabelValues("avatar", hitLabel(true)).Inc()
		out := ToAvatarCompositeDTO(existing, true)
		return &out, nil
	}
	compositeCacheLookupsTotal.WithLabelValues("avatar", hitLabel(false)).Inc()

	data, width, height, err := f.avatarImage(ctx, req)
	if err != nil {
		return nil, err
	}

	key := avatarCompositeKey(subjectID, avatarContext, avatarHash)
	if err := f.publicStore.Put(ctx, key, data, utils.PNGContentType); err != nil {
		return nil, NewStorageError("PUBLIC_STORE_WRITE_FAILED", "Failed to store avatar composite", err)
	}

	entry := &models.AvatarCompositeCacheEntry{
		SubjectID:  subjectID,
		Context:    avatarContext,
		AvatarHash: avatarHash,
		StorageKey: key,
		PublicURL:  f.publicStore.PublicURL(key),
		Width:      width,
		Height:     height,
	}
	entry.SetLayers(layerIDs)

	var invalidated int64
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.avatarRepo.Upsert(txCtx, entry); err != nil {
			return NewBusinessError("AVATAR_SAVE_FAILED", "Failed to save avatar composite", err)
		}

		var err error
		invalidated, err = f.sceneRepo.DeleteBySubject(txCtx, subjectID)
		if err != nil {
			return NewBusinessError("SCENE_INVALIDATION_FAILED", "Failed to invalidate cached scenes", err)
		}

		return createAuditLog(txCtx, f.auditRepo, auditEntry{
			Action:     models.AuditActionAvatarCompositeUpdated,
			TargetType: models.AuditTargetSubject,
			TargetID:   subjectID,
			Actor:      req.Actor,
			Details: map[string]any{
				"context":            avatarContext,
				"avatar_hash":        avatarHash,
				"layer_ids":          layerIDs,
				"server_rendered":    len(req.Image) == 0,
				"invalidated_scenes": invalidated,
			},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	sceneInvalidationsTotal.WithLabelValues("avatar_changed").Add(float64(invalidated))
	f.log.Info("Avatar composite updated",
		"subject_id", subjectID, "context", avatarContext, "invalidated_scenes", invalidated)

	out := ToAvatarCompositeDTO(entry, false)
	return &out, nil
}

// avatarImage returns the caller's bytes or, when none were sent, renders the selection server-side
func (f *CompositeFlowImpl) avatarImage(ctx context.Context, req *dto.UpsertAvatarCompositeRequest) ([]byte, int, int, error) {
	if len(req.Image) > 0 {
		img, err := services.DecodeImage(req.Image)
		if err != nil {
			return nil, 0, 0, NewValidationError("INVALID_COMPOSITE_IMAGE", "composite image could not be decoded", err)
		}
		b := img.Bounds()
		return req.Image, b.Dx(), b.Dy(), nil
	}

	if !f.pipelineCfg.ServerCompositorEnabled || f.compositor == nil {
		return nil, 0, 0, NewValidationError("COMPOSITE_IMAGE_REQUIRED", "composite image bytes are required", ErrCompositeImageRequired)
	}

	keys, err := f.resolveLayerKeys(ctx, req.LayerIDs)
	if err != nil {
		return nil, 0, 0, err
	}

	width, height := req.Width, req.Height
	if width <= 0 {
		width = f.pipelineCfg.AvatarWidth
	}
	if height <= 0 {
		height = f.pipelineCfg.AvatarHeight
	}

	data, err := f.compositor.Compose(ctx, f.publicStore, keys, width, height)
	if err != nil {
		return nil, 0, 0, NewStorageError("AVATAR_RENDER_FAILED", "Failed to render avatar composite", err)
	}
	return data, width, height, nil
}

// resolveLayerKeys maps layer ids, in the caller's draw order, to the public keys of published
// avatar_layer assets. A layer id is the asset key of variant 1.
func (f *CompositeFlowImpl) resolveLayerKeys(ctx context.Context, layerIDs []string) ([]string, error) {
	keys := make([]string, 0, len(layerIDs))
	seen := make(map[string]struct{}, len(layerIDs))
	for _, id := range layerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		layer, err := f.assetRepo.ByIdentity(ctx, models.CategoryAvatarLayer, id, 1)
		if err != nil {
			return nil, NewBusinessError("ASSET_LOOKUP_FAILED", "Failed to load avatar layer", err)
		}
		if layer == nil {
			return nil, NewNotFoundError("AVATAR_LAYER_NOT_FOUND", fmt.Sprintf("avatar layer %q not found", id), ErrAssetNotFound)
		}
		if !layer.IsPublished() {
			return nil, NewDependencyError("AVATAR_LAYER_NOT_PUBLISHED", fmt.Sprintf("avatar layer %q is not published", id), ErrInvalidAssetStatus)
		}
		keys = append(keys, *layer.PublicStorageKey)
	}
	return keys, nil
}

func (f *CompositeFlowImpl) GetAvatarComposite(ctx context.Context, subjectID, avatarContext string) (*dto.AvatarCompositeDTO, error) {
	avatarContext = avatarContextOrDefault(avatarContext)
	entry, err := f.avatarRepo.BySubjectContext(ctx, subjectID, avatarContext)
	if err != nil {
		return nil, NewBusinessError("AVATAR_LOOKUP_FAILED", "Failed to load avatar composite", err)
	}
	if entry == nil {
		return nil, NewNotFoundError("AVATAR_COMPOSITE_NOT_FOUND",
			fmt.Sprintf("no avatar composite for %s in context %s", subjectID, avatarContext),
			ErrAvatarCompositeNotFound)
	}

	out := ToAvatarCompositeDTO(entry, true)
	return &out, nil
}

// UpsertSceneTemplate creates or edits a template; a background or foreground change drops
// every cached scene rendered from it
func (f *CompositeFlowImpl) UpsertSceneTemplate(ctx context.Context, req *dto.UpsertSceneTemplateRequest, metadata *ClientMetadata) (*dto.UpsertSceneTemplateResponse, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, NewValidationError("TEMPLATE_ID_REQUIRED", "scene template id is required", nil)
	}
	backgroundKey := strings.TrimSpace(req.BackgroundKey)
	if backgroundKey == "" {
		return nil, NewValidationError("BACKGROUND_REQUIRED", "background key is required", nil)
	}
	var foregroundKey *string
	if req.ForegroundKey != nil && strings.TrimSpace(*req.ForegroundKey) != "" {
		foregroundKey = utils.ToPtr(strings.TrimSpace(*req.ForegroundKey))
	}

	slot := models.AvatarSlot{
		X:      req.AvatarSlot.X,
		Y:      req.AvatarSlot.Y,
		Width:  req.AvatarSlot.Width,
		Height: req.AvatarSlot.Height,
	}
	if err := slot.Validate(req.Width, req.Height); err != nil {
		return nil, NewValidationError("INVALID_AVATAR_SLOT", err.Error(), errors.Join(ErrInvalidAvatarSlot, err))
	}

	var template *models.SceneTemplate
	var invalidated int64
	var layersChanged bool
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		existing, err := f.templateRepo.ByKey(txCtx, id)
		if err != nil {
			return NewBusinessError("SCENE_TEMPLATE_LOOKUP_FAILED", "Failed to load scene template", err)
		}

		if existing == nil {
			template = &models.SceneTemplate{ID: id}
		} else {
			template = existing
			layersChanged = existing.LayersDiffer(backgroundKey, foregroundKey)
		}
		template.Name = strings.TrimSpace(req.Name)
		template.BackgroundKey = backgroundKey
		template.ForegroundKey = foregroundKey
		template.AvatarSlot = slot
		template.Width = req.Width
		template.Height = req.Height
		template.UpdatedBy = utils.ToPtr(actorOrSystem(req.Actor))

		if existing == nil {
			if err := f.templateRepo.Save(txCtx, template); err != nil {
				return NewBusinessError("SCENE_TEMPLATE_SAVE_FAILED", "Failed to create scene template", err)
			}
		} else if err := f.templateRepo.Update(txCtx, template); err != nil {
			return NewBusinessError("SCENE_TEMPLATE_SAVE_FAILED", "Failed to update scene template", err)
		}

		if layersChanged {
			invalidated, err = f.sceneRepo.DeleteByTemplate(txCtx, id)
			if err != nil {
				return NewBusinessError("SCENE_INVALIDATION_FAILED", "Failed to invalidate cached scenes", err)
			}
		}

		return createAuditLog(txCtx, f.auditRepo, auditEntry{
			Action:     models.AuditActionSceneTemplateUpdated,
			TargetType: models.AuditTargetSceneTemplate,
			TargetID:   id,
			Actor:      req.Actor,
			Details: map[string]any{
				"created":            existing == nil,
				"layers_changed":     layersChanged,
				"template_hash":      template.TemplateHash(),
				"invalidated_scenes": invalidated,
			},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	sceneInvalidationsTotal.WithLabelValues("template_changed").Add(float64(invalidated))

	return &dto.UpsertSceneTemplateResponse{
		Message:           "Scene template saved",
		Template:          ToSceneTemplateDTO(template),
		InvalidatedScenes: invalidated,
		LayersChanged:     layersChanged,
	}, nil
}

// sceneInputs loads the template and avatar composite a scene is rendered from
func (f *CompositeFlowImpl) sceneInputs(ctx context.Context, templateID, subjectID, avatarContext string) (*models.SceneTemplate, *models.AvatarCompositeCacheEntry, error) {
	template, err := f.templateRepo.ByKey(ctx, templateID)
	if err != nil {
		return nil, nil, NewBusinessError("SCENE_TEMPLATE_LOOKUP_FAILED", "Failed to load scene template", err)
	}
	if template == nil {
		return nil, nil, NewNotFoundError("SCENE_TEMPLATE_NOT_FOUND", fmt.Sprintf("scene template %s not found", templateID), ErrSceneTemplateNotFound)
	}

	avatar, err := f.avatarRepo.BySubjectContext(ctx, subjectID, avatarContext)
	if err != nil {
		return nil, nil, NewBusinessError("AVATAR_LOOKUP_FAILED", "Failed to load avatar composite", err)
	}
	if avatar == nil {
		return nil, nil, NewNotFoundError("AVATAR_COMPOSITE_NOT_FOUND",
			fmt.Sprintf("no avatar composite for %s in context %s", subjectID, avatarContext),
			ErrAvatarCompositeNotFound)
	}

	return template, avatar, nil
}

// ComposeScene returns the cached render when both input hashes still match, otherwise the layers
// a client needs to render the scene itself
func (f *CompositeFlowImpl) ComposeScene(ctx context.Context, req *dto.ComposeSceneRequest) (*dto.ComposeSceneResponse, error) {
	template, avatar, err := f.sceneInputs(ctx, req.SceneTemplateID, req.SubjectID, avatarContextOrDefault(req.AvatarContext))
	if err != nil {
		return nil, err
	}
	templateHash := template.TemplateHash()

	cached, err := f.sceneRepo.ByTemplateSubject(ctx, template.ID, req.SubjectID)
	if err != nil {
		return nil, NewBusinessError("SCENE_LOOKUP_FAILED", "Failed to load cached scene", err)
	}

	if cached != nil && cached.Matches(templateHash, avatar.AvatarHash) {
		now := utils.UTCNow()
		if err := f.sceneRepo.Touch(ctx, cached.ID, now); err != nil {
			return nil, NewBusinessError("SCENE_TOUCH_FAILED", "Failed to refresh cached scene", err)
		}
		compositeCacheLookupsTotal.WithLabelValues("scene", hitLabel(true)).Inc()

		return &dto.ComposeSceneResponse{
			Cached:         true,
			PublicURL:      utils.ToPtr(cached.PublicURL),
			LastAccessedAt: utils.ToPtr(formatTime(now)),
			AvatarHash:     avatar.AvatarHash,
			TemplateHash:   templateHash,
		}, nil
	}
	compositeCacheLookupsTotal.WithLabelValues("scene", hitLabel(false)).Inc()

	layers := &dto.SceneLayersDTO{
		BackgroundKey:  template.BackgroundKey,
		BackgroundURL:  f.publicStore.PublicURL(template.BackgroundKey),
		ForegroundKey:  template.ForegroundKey,
		AvatarURL:      utils.ToPtr(avatar.PublicURL),
		AvatarLayerIDs: avatar.Layers(),
		AvatarSlot:     toAvatarSlotDTO(template.AvatarSlot),
		Width:          template.Width,
		Height:         template.Height,
	}
	if template.ForegroundKey != nil {
		layers.ForegroundURL = utils.ToPtr(f.publicStore.PublicURL(*template.ForegroundKey))
	}

	return &dto.ComposeSceneResponse{
		Cached:       false,
		AvatarHash:   avatar.AvatarHash,
		TemplateHash: templateHash,
		Layers:       layers,
	}, nil
}

// CacheComposedScene stores a client render, refusing inputs that no longer match the current hashes
func (f *CompositeFlowImpl) CacheComposedScene(ctx context.Context, req *dto.CacheComposedSceneRequest, metadata *ClientMetadata) (*dto.SceneCompositeDTO, error) {
	if len(req.Image) == 0 {
		return nil, NewValidationError("COMPOSITE_IMAGE_REQUIRED", "scene image bytes are required", ErrCompositeImageRequired)
	}

	template, avatar, err := f.sceneInputs(ctx, req.SceneTemplateID, req.SubjectID, avatarContextOrDefault(req.AvatarContext))
	if err != nil {
		return nil, err
	}

	templateHash := template.TemplateHash()
	if req.TemplateHash != templateHash || req.AvatarHash != avatar.AvatarHash {
		return nil, NewDependencyError("STALE_COMPOSITE_INPUTS",
			"scene was rendered from outdated inputs, compose the scene again",
			ErrStaleCompositeInputs)
	}

	if _, err := services.DecodeImage(req.Image); err != nil {
		return nil, NewValidationError("INVALID_COMPOSITE_IMAGE", "scene image could not be decoded", err)
	}

	key := sceneCompositeKey(template.ID, req.SubjectID, templateHash, avatar.AvatarHash)
	if err := f.publicStore.Put(ctx, key, req.Image, utils.PNGContentType); err != nil {
		return nil, NewStorageError("PUBLIC_STORE_WRITE_FAILED", "Failed to store scene composite", err)
	}

	entry := &models.SceneComposedCacheEntry{
		SceneTemplateID: template.ID,
		SubjectID:       req.SubjectID,
		AvatarHash:      avatar.AvatarHash,
		TemplateHash:    templateHash,
		StorageKey:      key,
		PublicURL:       f.publicStore.PublicURL(key),
		LastAccessedAt:  utils.UTCNow(),
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.sceneRepo.Upsert(txCtx, entry); err != nil {
			return NewBusinessError("SCENE_SAVE_FAILED", "Failed to save scene composite", err)
		}

		return createAuditLog(txCtx, f.auditRepo, auditEntry{
			Action:     models.AuditActionSceneCompositeCached,
			TargetType: models.AuditTargetSceneTemplate,
			TargetID:   template.ID,
			Actor:      req.Actor,
			Details: map[string]any{
				"subject_id":    req.SubjectID,
				"avatar_hash":   avatar.AvatarHash,
				"template_hash": templateHash,
				"storage_key":   key,
			},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	out := ToSceneCompositeDTO(entry)
	return &out, nil
}

// EvictStaleScenes removes cached scenes not served within olderThan
func (f *CompositeFlowImpl) EvictStaleScenes(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, NewValidationError("INVALID_EVICTION_AGE", "eviction age must be positive", nil)
	}
	cutoff := utils.UTCNow().Add(-olderThan)

	var evicted int64
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		evicted, err = f.sceneRepo.DeleteAccessedBefore(txCtx, cutoff)
		if err != nil {
			return NewBusinessError("SCENE_EVICTION_FAILED", "Failed to evict cached scenes", err)
		}
		if evicted == 0 {
			return nil
		}

		return createAuditLog(txCtx, f.auditRepo, auditEntry{
			Action: models.AuditActionSceneCacheEvicted,
			Actor:  utils.SystemActor,
			Details: map[string]any{
				"cutoff":  formatTime(cutoff),
				"evicted": evicted,
			},
		}, nil)
	})
	if err != nil {
		return 0, err
	}

	sceneInvalidationsTotal.WithLabelValues("evicted").Add(float64(evicted))
	return evicted, nil
}
