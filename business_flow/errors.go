// Package businessflow contains the asset pipeline use cases: generation, review, derivation, publishing and compositing
package businessflow

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a business error for callers and transports
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindDependency      ErrorKind = "dependency"
	KindExternalService ErrorKind = "external_service"
	KindStorage         ErrorKind = "storage"
	KindInternal        ErrorKind = "internal"
)

// Business flow error constants
var (
	// Asset-related errors
	ErrAssetNotFound         = errors.New("asset not found")
	ErrParentAssetNotFound   = errors.New("parent asset not found")
	ErrUnknownCategory       = errors.New("unknown asset category")
	ErrInvalidAssetStatus    = errors.New("asset is not in a valid status for this operation")
	ErrParentNotApproved     = errors.New("parent asset is not approved")
	ErrNoChildCategory       = errors.New("category has no derived category")
	ErrParentRequired        = errors.New("derived category requires an approved parent asset")
	ErrRejectionReasonEmpty  = errors.New("rejection reason is required")
	ErrPromptRequired        = errors.New("prompt is required")
	ErrAttemptsExhausted     = errors.New("generation attempts exhausted")
	ErrConcurrentAssetChange = errors.New("asset was modified concurrently")
	ErrGenerationInProgress  = errors.New("generation already in progress")
	ErrNoPrivateImage        = errors.New("asset has no generated image")

	// Building configuration errors
	ErrUnknownBuildingType     = errors.New("unknown building type")
	ErrBuildingConfigNotFound  = errors.New("building configuration not found")
	ErrSpriteNotFound          = errors.New("sprite asset not found")
	ErrSpriteNotApproved       = errors.New("sprite asset is not approved")
	ErrSpriteWrongCategory     = errors.New("sprite asset has the wrong category")
	ErrSpriteWrongBuildingType = errors.New("sprite asset belongs to another building type")
	ErrNoActiveSprite          = errors.New("building configuration has no active sprite")

	// Composite errors
	ErrSceneTemplateNotFound   = errors.New("scene template not found")
	ErrAvatarCompositeNotFound = errors.New("avatar composite not found")
	ErrCompositeImageRequired  = errors.New("composite image bytes are required")
	ErrStaleCompositeInputs    = errors.New("composite inputs changed since the scene was requested")
	ErrInvalidAvatarSlot       = errors.New("invalid avatar slot")
	ErrNoAvatarLayers          = errors.New("no avatar layers selected")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates an unclassified business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Kind:    KindInternal,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Kind:    KindInternal,
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func NewValidationError(code, message string, err error) *BusinessError {
	return &BusinessError{Kind: KindValidation, Code: code, Message: message, Err: err}
}

func NewNotFoundError(code, message string, err error) *BusinessError {
	return &BusinessError{Kind: KindNotFound, Code: code, Message: message, Err: err}
}

func NewDependencyError(code, message string, err error) *BusinessError {
	return &BusinessError{Kind: KindDependency, Code: code, Message: message, Err: err}
}

func NewExternalServiceError(code, message string, err error) *BusinessError {
	return &BusinessError{Kind: KindExternalService, Code: code, Message: message, Err: err}
}

func NewStorageError(code, message string, err error) *BusinessError {
	return &BusinessError{Kind: KindStorage, Code: code, Message: message, Err: err}
}

// ErrorKindOf returns the kind of the outermost BusinessError in err's chain
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// ErrorCodeOf returns the code of the outermost BusinessError in err's chain
func ErrorCodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsValidationError(err error) bool {
	return ErrorKindOf(err) == KindValidation
}

func IsNotFoundError(err error) bool {
	return ErrorKindOf(err) == KindNotFound
}

func IsDependencyError(err error) bool {
	return ErrorKindOf(err) == KindDependency
}

func IsExternalServiceError(err error) bool {
	return ErrorKindOf(err) == KindExternalService
}

func IsStorageError(err error) bool {
	return ErrorKindOf(err) == KindStorage
}

func IsAssetNotFound(err error) bool {
	return errors.Is(err, ErrAssetNotFound)
}

func IsParentNotApproved(err error) bool {
	return errors.Is(err, ErrParentNotApproved)
}

func IsInvalidAssetStatus(err error) bool {
	return errors.Is(err, ErrInvalidAssetStatus)
}

func IsConcurrentAssetChange(err error) bool {
	return errors.Is(err, ErrConcurrentAssetChange)
}

func IsNoActiveSprite(err error) bool {
	return errors.Is(err, ErrNoActiveSprite)
}

func IsStaleCompositeInputs(err error) bool {
	return errors.Is(err, ErrStaleCompositeInputs)
}
