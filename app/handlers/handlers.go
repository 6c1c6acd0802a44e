// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/logger"
	"github.com/amirphl/asset-forge/app/middleware"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const defaultRequestTimeout = 60 * time.Second

// baseHandler carries what every handler needs to decode, validate and answer a request
type baseHandler struct {
	validator      *validator.Validate
	log            *logger.Logger
	requestTimeout time.Duration
}

// newBaseHandler falls back to defaultRequestTimeout when requestTimeout is not positive
func newBaseHandler(requestTimeout time.Duration, log *logger.Logger) baseHandler {
	if log == nil {
		log = logger.Nop()
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return baseHandler{validator: validator.New(), log: log, requestTimeout: requestTimeout}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.NewErrorResponse(message, errorCode, details, requestIDOf(c)))
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: requestIDOf(c),
	})
}

// validate runs struct validation and answers 400 with readable messages on failure
func (h *baseHandler) validate(c fiber.Ctx, req any) error {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// flowError answers a business flow error with the status of its kind
func (h *baseHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) || be.Kind == businessflow.KindInternal {
		h.log.Error(fallbackMessage, "path", c.Path(), "request_id", requestIDOf(c), "error", err)
		code := fallbackCode
		if be != nil && be.Code != "" {
			code = be.Code
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, code, nil)
	}

	status := StatusForError(err)
	if status >= fiber.StatusInternalServerError {
		h.log.Warn(fallbackMessage, "path", c.Path(), "request_id", requestIDOf(c), "code", be.Code, "error", err)
	}
	return h.ErrorResponse(c, status, be.Message, be.Code, nil)
}

// StatusForError maps a business error kind to its HTTP status
func StatusForError(err error) int {
	switch businessflow.ErrorKindOf(err) {
	case businessflow.KindValidation:
		return fiber.StatusBadRequest
	case businessflow.KindNotFound:
		return fiber.StatusNotFound
	case businessflow.KindDependency:
		return fiber.StatusConflict
	case businessflow.KindExternalService:
		return fiber.StatusBadGateway
	case businessflow.KindStorage:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, h.requestTimeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestIDOf(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	if reviewer := reviewerOf(c); reviewer != "" {
		ctx = utils.WithActor(ctx, reviewer)
	}
	return ctx, cancel
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestIDOf(c))
	return metadata
}

func requestIDOf(c fiber.Ctx) string {
	if id := requestid.FromContext(c); id != "" {
		return id
	}
	return c.Get("X-Request-ID")
}

func reviewerOf(c fiber.Ctx) string {
	reviewer, _ := middleware.GetReviewerFromContext(c)
	return reviewer
}

// uintParam parses a positive integer path parameter
func uintParam(c fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(v), nil
}

// intQuery parses an optional integer query parameter
func intQuery(c fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "hexadecimal":
		return err.Field() + " must be a hexadecimal string"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
