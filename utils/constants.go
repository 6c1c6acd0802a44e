package utils

import (
	"time"
)

// Token constants
const (
	// ReviewerTokenTTL is the default time-to-live for reviewer access tokens (12 hours)
	ReviewerTokenTTL = 12 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Pipeline constants
const (
	// DefaultMaxGenerationAttempts bounds failed generation attempts per queue entry
	DefaultMaxGenerationAttempts = 3

	// DefaultAuditLimit is used when a caller asks for recent audit entries without a limit
	DefaultAuditLimit = 50

	// MaxAuditLimit caps a single audit page
	MaxAuditLimit = 500

	// PNGContentType is the content type of every normalized and composited image
	PNGContentType = "image/png"

	// SystemActor is recorded on audit entries emitted without an authenticated reviewer
	SystemActor = "system"
)
