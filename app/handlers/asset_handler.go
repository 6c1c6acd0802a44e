package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/utils"
	"github.com/gofiber/fiber/v3"
)

// AssetHandlerInterface defines the contract for asset generation and lookup handlers
type AssetHandlerInterface interface {
	Generate(c fiber.Ctx) error
	Derive(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	List(c fiber.Ctx) error
	RejectionHistory(c fiber.Ctx) error
	ListCategories(c fiber.Ctx) error
}

// AssetHandler handles asset generation and lookup requests
type AssetHandler struct {
	baseHandler
	flow businessflow.AssetFlow
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(flow businessflow.AssetFlow, requestTimeout time.Duration, log *logger.Logger) *AssetHandler {
	return &AssetHandler{
		baseHandler: newBaseHandler(requestTimeout, log),
		flow:        flow,
	}
}

// Generate creates or re-requests an asset and runs one generation attempt
// @Summary Generate Asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param request body dto.GenerateAssetRequest true "Asset identity and base prompt"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 502 {object} dto.APIResponse
// @Router /api/v1/admin/assets/generate [post]
func (h *AssetHandler) Generate(c fiber.Ctx) error {
	var req dto.GenerateAssetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validate(c, &req); err != nil {
		return err
	}
	req.Actor = reviewerOf(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assets/generate")
	defer cancel()

	result, err := h.flow.GenerateAsset(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Asset generation failed", "GENERATE_ASSET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Derive generates the child asset of an approved reference
// @Summary Derive Asset From Reference
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path int true "Parent asset ID"
// @Param request body dto.DeriveAssetRequest true "Sprite prompt"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/derive [post]
func (h *AssetHandler) Derive(c fiber.Ctx) error {
	parentID, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", "INVALID_ASSET_ID", err.Error())
	}

	var req dto.DeriveAssetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validate(c, &req); err != nil {
		return err
	}
	req.ParentAssetID = parentID
	req.Actor = reviewerOf(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assets/:id/derive")
	defer cancel()

	result, err := h.flow.GenerateFromRef(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Asset derivation failed", "DERIVE_ASSET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Get returns one asset with its queue entry
// @Summary Get Asset
// @Tags Assets
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.GetAssetResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id} [get]
func (h *AssetHandler) Get(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", "INVALID_ASSET_ID", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assets/:id")
	defer cancel()

	result, err := h.flow.GetAsset(ctx, id)
	if err != nil {
		return h.flowError(c, err, "Failed to load asset", "GET_ASSET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Asset retrieved successfully", result)
}

// List returns the assets of a category, optionally filtered by status and parent
// @Summary List Assets
// @Tags Assets
// @Produce json
// @Param category query string true "Asset category"
// @Param status query string false "Asset status"
// @Param parent_asset_id query int false "Parent asset ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListAssetsResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/assets [get]
func (h *AssetHandler) List(c fiber.Ctx) error {
	req := dto.ListAssetsRequest{Category: strings.TrimSpace(c.Query("category"))}
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		req.Status = utils.ToPtr(s)
	}
	if c.Query("parent_asset_id") != "" {
		parentID, err := intQuery(c, "parent_asset_id")
		if err != nil || parentID <= 0 {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid parent asset id", "INVALID_PARENT_ASSET_ID", nil)
		}
		req.ParentAssetID = utils.ToPtr(uint(parentID))
	}

	var err error
	if req.Page, err = intQuery(c, "page"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page", "INVALID_PAGE", err.Error())
	}
	if req.PageSize, err = intQuery(c, "page_size"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page size", "INVALID_PAGE_SIZE", err.Error())
	}
	if err := h.validate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assets")
	defer cancel()

	result, err := h.flow.ListAssets(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to list assets", "LIST_ASSETS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Assets retrieved successfully", result)
}

// RejectionHistory returns every rejection of an asset, oldest first
// @Summary Asset Rejection History
// @Tags Assets
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.RejectionHistoryResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/rejections [get]
func (h *AssetHandler) RejectionHistory(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", "INVALID_ASSET_ID", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assets/:id/rejections")
	defer cancel()

	result, err := h.flow.GetRejectionHistory(ctx, id)
	if err != nil {
		return h.flowError(c, err, "Failed to load rejection history", "REJECTION_HISTORY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rejection history retrieved successfully", result)
}

// ListCategories returns the category registry
// @Summary List Asset Categories
// @Tags Assets
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListCategoriesResponse}
// @Router /api/v1/admin/categories [get]
func (h *AssetHandler) ListCategories(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/categories")
	defer cancel()

	result, err := h.flow.ListCategories(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to list categories", "LIST_CATEGORIES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Categories retrieved successfully", result)
}
