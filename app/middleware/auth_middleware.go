// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/services"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// Locals keys set by ReviewerAuthenticate
const (
	ReviewerKey    = "reviewer"
	TokenIDKey     = "token_id"
	TokenClaimsKey = "token_claims"
)

// AuthMiddleware handles JWT token validation for the review endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.NewErrorResponse(message, code, nil, requestid.FromContext(c)))
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(c fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
	}
	return token, nil
}

// ReviewerAuthenticate validates reviewer JWT tokens and stores the reviewer for downstream handlers
func (m *AuthMiddleware) ReviewerAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, respErr := bearerToken(c)
		if token == "" {
			return respErr
		}

		// ValidateReviewerToken already checks for revocation
		claims, err := m.tokenService.ValidateReviewerToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			case errors.Is(err, services.ErrTokenRevoked):
				return unauthorized(c, "Access token has been revoked", "TOKEN_REVOKED")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals(ReviewerKey, claims.Reviewer)
		c.Locals(TokenIDKey, claims.TokenID)
		c.Locals(TokenClaimsKey, claims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// GetReviewerFromContext extracts the authenticated reviewer from the request context
func GetReviewerFromContext(c fiber.Ctx) (string, bool) {
	reviewer, ok := c.Locals(ReviewerKey).(string)
	return reviewer, ok && reviewer != ""
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.ReviewerTokenClaims, bool) {
	claims, ok := c.Locals(TokenClaimsKey).(*services.ReviewerTokenClaims)
	return claims, ok
}
