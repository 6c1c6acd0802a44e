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

// AuditHandlerInterface defines the contract for audit log handlers
type AuditHandlerInterface interface {
	Recent(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// AuditHandler serves the audit log
type AuditHandler struct {
	baseHandler
	flow businessflow.AuditFlow
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(flow businessflow.AuditFlow, requestTimeout time.Duration, log *logger.Logger) *AuditHandler {
	return &AuditHandler{
		baseHandler: newBaseHandler(requestTimeout, log),
		flow:        flow,
	}
}

// auditRequest reads the shared audit filters from the query string
func (h *AuditHandler) auditRequest(c fiber.Ctx) (*dto.GetRecentAuditRequest, error) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid limit", "INVALID_AUDIT_LIMIT", err.Error())
	}
	req := &dto.GetRecentAuditRequest{Limit: limit}

	if c.Query("asset_id") != "" {
		assetID, err := intQuery(c, "asset_id")
		if err != nil || assetID <= 0 {
			return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", "INVALID_ASSET_ID", nil)
		}
		req.AssetID = utils.ToPtr(uint(assetID))
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		req.Action = &action
	}
	if actor := strings.TrimSpace(c.Query("actor")); actor != "" {
		req.Actor = &actor
	}
	return req, nil
}

// Recent returns the newest audit entries
// @Summary Recent Audit Entries
// @Tags Audit
// @Produce json
// @Param limit query int false "Maximum entries (1-500)"
// @Param asset_id query int false "Asset ID"
// @Param action query string false "Action"
// @Param actor query string false "Actor"
// @Success 200 {object} dto.APIResponse{data=dto.RecentAuditResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/audit [get]
func (h *AuditHandler) Recent(c fiber.Ctx) error {
	req, errResp := h.auditRequest(c)
	if req == nil {
		return errResp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/audit")
	defer cancel()

	result, err := h.flow.GetRecentAudit(ctx, req)
	if err != nil {
		return h.flowError(c, err, "Failed to list audit entries", "AUDIT_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audit entries retrieved successfully", result)
}

// Export returns the matching audit entries as an xlsx workbook
// @Summary Export Audit Log
// @Tags Audit
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param limit query int false "Maximum entries (1-500)"
// @Param asset_id query int false "Asset ID"
// @Success 200 {string} string "Excel file"
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/audit/export [get]
func (h *AuditHandler) Export(c fiber.Ctx) error {
	req, errResp := h.auditRequest(c)
	if req == nil {
		return errResp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/audit/export")
	defer cancel()

	result, err := h.flow.ExportAudit(ctx, req)
	if err != nil {
		return h.flowError(c, err, "Failed to export audit log", "AUDIT_EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+result.Filename)
	return c.Send(result.Data)
}
