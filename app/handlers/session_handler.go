package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	"github.com/amirphl/asset-forge/app/middleware"
	"github.com/amirphl/asset-forge/app/services"
	"github.com/gofiber/fiber/v3"
)

// SessionHandlerInterface defines the contract for reviewer session handlers
type SessionHandlerInterface interface {
	Current(c fiber.Ctx) error
	Revoke(c fiber.Ctx) error
}

// SessionHandler exposes the authenticated reviewer token
type SessionHandler struct {
	baseHandler
	tokenService services.TokenService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(tokenService services.TokenService, requestTimeout time.Duration, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		baseHandler:  newBaseHandler(requestTimeout, log),
		tokenService: tokenService,
	}
}

// Current returns the reviewer and token the request was authenticated with
// @Summary Current Reviewer Session
// @Tags Session
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.SessionResponse}
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/admin/session [get]
func (h *SessionHandler) Current(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Reviewer not authenticated", "UNAUTHENTICATED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Session retrieved successfully", dto.SessionResponse{
		Reviewer:  claims.Reviewer,
		TokenID:   claims.TokenID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	})
}

// Revoke invalidates the token the request was authenticated with
// @Summary Revoke Reviewer Token
// @Tags Session
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/admin/session/revoke [post]
func (h *SessionHandler) Revoke(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Reviewer not authenticated", "UNAUTHENTICATED", nil)
	}

	token := strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))
	if err := h.tokenService.RevokeToken(token); err != nil {
		h.log.Warn("Token revocation failed", "reviewer", claims.Reviewer, "request_id", requestIDOf(c), "error", err)
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Token could not be revoked", "TOKEN_REVOKE_FAILED", nil)
	}

	h.log.Info("Reviewer token revoked", "reviewer", claims.Reviewer, "token_id", claims.TokenID)
	return h.SuccessResponse(c, fiber.StatusOK, "Token revoked", fiber.Map{"token_id": claims.TokenID})
}
