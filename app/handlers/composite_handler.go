package handlers

import (
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/gofiber/fiber/v3"
)

// CompositeHandlerInterface defines the contract for avatar and scene composite handlers
type CompositeHandlerInterface interface {
	UpsertAvatar(c fiber.Ctx) error
	GetAvatar(c fiber.Ctx) error
	UpsertSceneTemplate(c fiber.Ctx) error
	ComposeScene(c fiber.Ctx) error
	CacheScene(c fiber.Ctx) error
}

// CompositeHandler handles the composite cache endpoints
type CompositeHandler struct {
	baseHandler
	flow businessflow.CompositeFlow
}

// NewCompositeHandler creates a new composite handler
func NewCompositeHandler(flow businessflow.CompositeFlow, requestTimeout time.Duration, log *logger.Logger) *CompositeHandler {
	return &CompositeHandler{
		baseHandler: newBaseHandler(requestTimeout, log),
		flow:        flow,
	}
}

// UpsertAvatar stores the composite of a subject's layer selection
// @Summary Upsert Avatar Composite
// @Tags Composites
// @Accept json
// @Produce json
// @Param subject path string true "Subject ID"
// @Param context path string true "Avatar context"
// @Param request body dto.UpsertAvatarCompositeRequest true "Layer ids and optional base64 image"
// @Success 200 {object} dto.APIResponse{data=dto.AvatarCompositeDTO}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/avatars/{subject}/{context} [put]
func (h *CompositeHandler) UpsertAvatar(c fiber.Ctx) error {
	var req dto.UpsertAvatarCompositeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.SubjectID = c.Params("subject")
	req.Context = c.Params("context")
	req.Actor = reviewerOf(c)
	if err := h.validate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/avatars/:subject/:context")
	defer cancel()

	result, err := h.flow.UpsertAvatarComposite(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to store avatar composite", "AVATAR_COMPOSITE_FAILED")
	}

	message := "Avatar composite updated"
	if result.Cached {
		message = "Avatar composite unchanged"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, result)
}

// GetAvatar returns the current avatar composite of a subject
// @Summary Get Avatar Composite
// @Tags Composites
// @Produce json
// @Param subject path string true "Subject ID"
// @Param context path string true "Avatar context"
// @Success 200 {object} dto.APIResponse{data=dto.AvatarCompositeDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/avatars/{subject}/{context} [get]
func (h *CompositeHandler) GetAvatar(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/avatars/:subject/:context")
	defer cancel()

	result, err := h.flow.GetAvatarComposite(ctx, c.Params("subject"), c.Params("context"))
	if err != nil {
		return h.flowError(c, err, "Failed to load avatar composite", "GET_AVATAR_COMPOSITE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Avatar composite retrieved successfully", result)
}

// UpsertSceneTemplate creates or edits a scene template
// @Summary Upsert Scene Template
// @Tags Composites
// @Accept json
// @Produce json
// @Param id path string true "Scene template ID"
// @Param request body dto.UpsertSceneTemplateRequest true "Template layers and avatar slot"
// @Success 200 {object} dto.APIResponse{data=dto.UpsertSceneTemplateResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/scenes/templates/{id} [put]
func (h *CompositeHandler) UpsertSceneTemplate(c fiber.Ctx) error {
	var req dto.UpsertSceneTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.ID = c.Params("id")
	req.Actor = reviewerOf(c)
	if err := h.validate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/scenes/templates/:id")
	defer cancel()

	result, err := h.flow.UpsertSceneTemplate(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to save scene template", "SCENE_TEMPLATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ComposeScene returns a cached scene or the layers needed to render it
// @Summary Compose Scene
// @Tags Composites
// @Produce json
// @Param template path string true "Scene template ID"
// @Param subject path string true "Subject ID"
// @Param avatar_context query string false "Avatar context"
// @Success 200 {object} dto.APIResponse{data=dto.ComposeSceneResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/scenes/{template}/{subject} [get]
func (h *CompositeHandler) ComposeScene(c fiber.Ctx) error {
	req := dto.ComposeSceneRequest{
		SceneTemplateID: c.Params("template"),
		SubjectID:       c.Params("subject"),
		AvatarContext:   c.Query("avatar_context"),
	}
	if err := h.validate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/scenes/:template/:subject")
	defer cancel()

	result, err := h.flow.ComposeScene(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to compose scene", "COMPOSE_SCENE_FAILED")
	}

	message := "Scene layers returned"
	if result.Cached {
		message = "Cached scene returned"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, result)
}

// CacheScene stores a client-rendered scene for the hashes it was rendered from
// @Summary Cache Composed Scene
// @Tags Composites
// @Accept json
// @Produce json
// @Param template path string true "Scene template ID"
// @Param subject path string true "Subject ID"
// @Param request body dto.CacheComposedSceneRequest true "Input hashes and base64 image"
// @Success 200 {object} dto.APIResponse{data=dto.SceneCompositeDTO}
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/scenes/{template}/{subject} [put]
func (h *CompositeHandler) CacheScene(c fiber.Ctx) error {
	var req dto.CacheComposedSceneRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.SceneTemplateID = c.Params("template")
	req.SubjectID = c.Params("subject")
	req.Actor = reviewerOf(c)
	if err := h.validate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/scenes/:template/:subject")
	defer cancel()

	result, err := h.flow.CacheComposedScene(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to cache scene", "CACHE_SCENE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Scene cached", result)
}
