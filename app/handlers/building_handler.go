package handlers

import (
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/gofiber/fiber/v3"
)

// BuildingHandlerInterface defines the contract for building configuration handlers
type BuildingHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Publish(c fiber.Ctx) error
	Unpublish(c fiber.Ctx) error
}

// BuildingHandler handles building configuration requests
type BuildingHandler struct {
	baseHandler
	flow businessflow.BuildingConfigFlow
}

// NewBuildingHandler creates a new building configuration handler
func NewBuildingHandler(flow businessflow.BuildingConfigFlow, requestTimeout time.Duration, log *logger.Logger) *BuildingHandler {
	return &BuildingHandler{
		baseHandler: newBaseHandler(requestTimeout, log),
		flow:        flow,
	}
}

// List returns every catalog building type with its configuration
// @Summary List Building Configurations
// @Tags Buildings
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListBuildingConfigsResponse}
// @Router /api/v1/admin/buildings [get]
func (h *BuildingHandler) List(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/buildings")
	defer cancel()

	result, err := h.flow.ListConfigs(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to list building configurations", "LIST_BUILDING_CONFIGS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Building configurations retrieved successfully", result)
}

// Get returns the configuration of one building type
// @Summary Get Building Configuration
// @Tags Buildings
// @Produce json
// @Param type path string true "Building type"
// @Success 200 {object} dto.APIResponse{data=dto.BuildingConfigDTO}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/buildings/{type} [get]
func (h *BuildingHandler) Get(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/buildings/:type")
	defer cancel()

	result, err := h.flow.GetConfig(ctx, c.Params("type"))
	if err != nil {
		return h.flowError(c, err, "Failed to load building configuration", "GET_BUILDING_CONFIG_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Building configuration retrieved successfully", result)
}

// Update edits the draft configuration of a building type
// @Summary Update Building Configuration
// @Tags Buildings
// @Accept json
// @Produce json
// @Param type path string true "Building type"
// @Param request body dto.UpdateBuildingConfigRequest true "Sprite and overrides"
// @Success 200 {object} dto.APIResponse{data=dto.BuildingConfigResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/buildings/{type} [put]
func (h *BuildingHandler) Update(c fiber.Ctx) error {
	var req dto.UpdateBuildingConfigRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.BuildingTypeID = c.Params("type")
	req.Actor = reviewerOf(c)
	if err := h.validate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/buildings/:type")
	defer cancel()

	result, err := h.flow.UpdateConfig(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to update building configuration", "UPDATE_BUILDING_CONFIG_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Publish makes a building configuration live
// @Summary Publish Building Configuration
// @Tags Buildings
// @Produce json
// @Param type path string true "Building type"
// @Success 200 {object} dto.APIResponse{data=dto.BuildingConfigResponse}
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/buildings/{type}/publish [post]
func (h *BuildingHandler) Publish(c fiber.Ctx) error {
	req := dto.BuildingConfigActionRequest{BuildingTypeID: c.Params("type"), Actor: reviewerOf(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/buildings/:type/publish")
	defer cancel()

	result, err := h.flow.PublishConfig(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to publish building configuration", "PUBLISH_BUILDING_CONFIG_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Unpublish hides a building configuration without dropping its draft
// @Summary Unpublish Building Configuration
// @Tags Buildings
// @Produce json
// @Param type path string true "Building type"
// @Success 200 {object} dto.APIResponse{data=dto.BuildingConfigResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/buildings/{type}/unpublish [post]
func (h *BuildingHandler) Unpublish(c fiber.Ctx) error {
	req := dto.BuildingConfigActionRequest{BuildingTypeID: c.Params("type"), Actor: reviewerOf(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/buildings/:type/unpublish")
	defer cancel()

	result, err := h.flow.UnpublishConfig(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to unpublish building configuration", "UNPUBLISH_BUILDING_CONFIG_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
