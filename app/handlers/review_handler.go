package handlers

import (
	"context"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ReviewHandlerInterface defines the contract for review and publishing handlers
type ReviewHandlerInterface interface {
	Approve(c fiber.Ctx) error
	Reject(c fiber.Ctx) error
	Regenerate(c fiber.Ctx) error
	ResetPrompt(c fiber.Ctx) error
	Restart(c fiber.Ctx) error
	RemoveBackground(c fiber.Ctx) error
	Publish(c fiber.Ctx) error
}

// ReviewHandler handles reviewer decisions and publishing of single assets
type ReviewHandler struct {
	baseHandler
	reviewFlow  businessflow.ReviewFlow
	publishFlow businessflow.PublishFlow
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewFlow businessflow.ReviewFlow, publishFlow businessflow.PublishFlow, requestTimeout time.Duration, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		baseHandler: newBaseHandler(requestTimeout, log),
		reviewFlow:  reviewFlow,
		publishFlow: publishFlow,
	}
}

type assetAction func(ctx context.Context, req *dto.AssetActionRequest, metadata *businessflow.ClientMetadata) (*dto.AssetResponse, error)

// runAction parses the asset id, runs action and answers with the updated asset
func (h *ReviewHandler) runAction(c fiber.Ctx, endpoint, failMessage, failCode string, action assetAction) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", "INVALID_ASSET_ID", err.Error())
	}
	req := dto.AssetActionRequest{AssetID: id, Actor: reviewerOf(c)}

	ctx, cancel := h.createRequestContext(c, endpoint)
	defer cancel()

	result, err := action(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, failMessage, failCode)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Approve marks an asset awaiting review as approved
// @Summary Approve Asset
// @Tags Review
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/approve [post]
func (h *ReviewHandler) Approve(c fiber.Ctx) error {
	return h.runAction(c, "/api/v1/admin/assets/:id/approve", "Approval failed", "APPROVE_FAILED", h.reviewFlow.Approve)
}

// Reject records a rejection and optionally folds the reason into the prompt
// @Summary Reject Asset
// @Tags Review
// @Accept json
// @Produce json
// @Param id path int true "Asset ID"
// @Param request body dto.RejectAssetRequest true "Rejection reason"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/reject [post]
func (h *ReviewHandler) Reject(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", "INVALID_ASSET_ID", err.Error())
	}

	var req dto.RejectAssetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.AssetID = id
	req.Actor = reviewerOf(c)
	if err := h.validate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assets/:id/reject")
	defer cancel()

	result, err := h.reviewFlow.Reject(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Rejection failed", "REJECT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Regenerate runs a new attempt for a rejected or failed asset
// @Summary Regenerate Asset
// @Tags Review
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 409 {object} dto.APIResponse
// @Failure 502 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/regenerate [post]
func (h *ReviewHandler) Regenerate(c fiber.Ctx) error {
	return h.runAction(c, "/api/v1/admin/assets/:id/regenerate", "Regeneration failed", "REGENERATE_FAILED", h.reviewFlow.Regenerate)
}

// ResetPrompt drops accumulated feedback from the prompt
// @Summary Reset Asset Prompt
// @Tags Review
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/reset-prompt [post]
func (h *ReviewHandler) ResetPrompt(c fiber.Ctx) error {
	return h.runAction(c, "/api/v1/admin/assets/:id/reset-prompt", "Prompt reset failed", "RESET_PROMPT_FAILED", h.reviewFlow.ResetPrompt)
}

// Restart resets the attempt budget of an exhausted queue entry
// @Summary Restart Asset Generation
// @Tags Review
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/restart [post]
func (h *ReviewHandler) Restart(c fiber.Ctx) error {
	return h.runAction(c, "/api/v1/admin/assets/:id/restart", "Generation restart failed", "RESTART_FAILED", h.reviewFlow.RestartGeneration)
}

// RemoveBackground strips the background of the current draft
// @Summary Remove Asset Background
// @Tags Publishing
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.AssetResponse}
// @Failure 409 {object} dto.APIResponse
// @Failure 502 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/remove-background [post]
func (h *ReviewHandler) RemoveBackground(c fiber.Ctx) error {
	return h.runAction(c, "/api/v1/admin/assets/:id/remove-background", "Background removal failed", "REMOVE_BACKGROUND_FAILED", h.publishFlow.RemoveBackground)
}

// Publish writes the normalized image of an approved asset to the public store
// @Summary Publish Asset
// @Tags Publishing
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} dto.APIResponse{data=dto.PublishAssetResponse}
// @Failure 409 {object} dto.APIResponse
// @Failure 502 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /api/v1/admin/assets/{id}/publish [post]
func (h *ReviewHandler) Publish(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", "INVALID_ASSET_ID", err.Error())
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/assets/:id/publish", 2*h.requestTimeout)
	defer cancel()

	result, err := h.publishFlow.Publish(ctx, &dto.AssetActionRequest{AssetID: id, Actor: reviewerOf(c)}, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Publishing failed", "PUBLISH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
