// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/handlers"
	applogger "github.com/amirphl/asset-forge/app/logger"
	"github.com/amirphl/asset-forge/app/middleware"
	"github.com/amirphl/asset-forge/config"
	"github.com/amirphl/asset-forge/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handlers groups the request handlers served under /api/v1/admin
type Handlers struct {
	Assets     handlers.AssetHandlerInterface
	Review     handlers.ReviewHandlerInterface
	Composites handlers.CompositeHandlerInterface
	Buildings  handlers.BuildingHandlerInterface
	Audit      handlers.AuditHandlerInterface
	Session    handlers.SessionHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	healthChecks   map[string]HealthCheck
	staticDirs     map[string]string
	log            *applogger.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	h Handlers,
	authMiddleware *middleware.AuthMiddleware,
	healthChecks map[string]HealthCheck,
	log *applogger.Logger,
) Router {
	if log == nil {
		log = applogger.Nop()
	}

	r := &FiberRouter{
		cfg:            cfg,
		handlers:       h,
		authMiddleware: authMiddleware,
		healthChecks:   healthChecks,
		staticDirs:     map[string]string{},
		log:            log,
	}

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 16 * 1024 * 1024
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Asset Forge API",
		ServerHeader: "asset-forge",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.log.Info("Setting up routes")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	for prefix, dir := range r.staticDirs {
		r.app.Use(prefix, static.New(dir))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	admin := api.Group("/admin")
	admin.Use(r.authMiddleware.ReviewerAuthenticate())
	admin.Use(r.rateLimiter(r.cfg.Security.AdminRateLimit, nil))

	// Session
	admin.Get("/session", r.handlers.Session.Current)
	admin.Post("/session/revoke", r.handlers.Session.Revoke)

	// Assets
	admin.Get("/categories", r.handlers.Assets.ListCategories)
	admin.Post("/assets/generate", r.handlers.Assets.Generate)
	admin.Get("/assets", r.handlers.Assets.List)
	admin.Get("/assets/:id", r.handlers.Assets.Get)
	admin.Get("/assets/:id/rejections", r.handlers.Assets.RejectionHistory)
	admin.Post("/assets/:id/derive", r.handlers.Assets.Derive)

	// Review
	admin.Post("/assets/:id/approve", r.handlers.Review.Approve)
	admin.Post("/assets/:id/reject", r.handlers.Review.Reject)
	admin.Post("/assets/:id/regenerate", r.handlers.Review.Regenerate)
	admin.Post("/assets/:id/reset-prompt", r.handlers.Review.ResetPrompt)
	admin.Post("/assets/:id/restart", r.handlers.Review.Restart)

	// Publishing
	admin.Post("/assets/:id/remove-background", r.handlers.Review.RemoveBackground)
	admin.Post("/assets/:id/publish", r.handlers.Review.Publish)

	// Audit
	admin.Get("/audit", r.handlers.Audit.Recent)
	admin.Get("/audit/export", r.handlers.Audit.Export)

	// Buildings
	admin.Get("/buildings", r.handlers.Buildings.List)
	admin.Get("/buildings/:type", r.handlers.Buildings.Get)
	admin.Put("/buildings/:type", r.handlers.Buildings.Update)
	admin.Post("/buildings/:type/publish", r.handlers.Buildings.Publish)
	admin.Post("/buildings/:type/unpublish", r.handlers.Buildings.Unpublish)

	// Composites
	admin.Put("/avatars/:subject/:context", r.handlers.Composites.UpsertAvatar)
	admin.Get("/avatars/:subject/:context", r.handlers.Composites.GetAvatar)
	admin.Put("/scenes/templates/:id", r.handlers.Composites.UpsertSceneTemplate)
	admin.Get("/scenes/:template/:subject", r.handlers.Composites.ComposeScene)
	admin.Put("/scenes/:template/:subject", r.handlers.Composites.CacheScene)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.log.Info("Routes configured successfully")
}

// ServeStatic exposes the files under dir at prefix; call before SetupRoutes
func (r *FiberRouter) ServeStatic(prefix, dir string) {
	r.staticDirs[prefix] = dir
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: r.cfg.Logging.EnableStacktrace,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.log.Error("panic recovered",
				"request_id", requestid.FromContext(c),
				"error", e,
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))

	sec := r.cfg.Security
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             orDefault(sec.XFrameOptions, "DENY"),
		HSTSMaxAge:                sec.HSTSMaxAge,
		ContentSecurityPolicy:     orDefault(sec.CSPPolicy, "default-src 'self'"),
		ReferrerPolicy:            orDefault(sec.ReferrerPolicy, "strict-origin-when-cross-origin"),
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	maxAge := sec.CORSMaxAge
	if maxAge <= 0 {
		maxAge = utils.CORSMaxAge
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     append([]string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}, sec.AllowedHeaders...),
		ExposeHeaders:    []string{"X-Request-ID", "X-Response-Time", "Content-Disposition"},
		AllowCredentials: sec.AllowCredentials && !containsWildcard(sec.AllowedOrigins),
		MaxAge:           maxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.Level(r.cfg.Server.CompressionLevel),
			Next: func(c fiber.Ctx) bool {
				return strings.Contains(string(c.Response().Header.ContentType()), "image/")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath
			},
		}))
	}

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(r.securityMiddleware)
}

func (r *FiberRouter) rateLimiter(maxPerWindow int, next func(c fiber.Ctx) bool) fiber.Handler {
	if maxPerWindow <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        maxPerWindow,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.NewErrorResponse(
				"Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED", nil, requestid.FromContext(c)))
		},
		Next: next,
	})
}

func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
	return c.Next()
}

func (r *FiberRouter) Start(address string) error {
	r.log.Info("Starting server", "address", address)
	return r.app.Listen(address)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(r.healthChecks))
	healthy := true
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status := fiber.StatusOK
	message := "Service is healthy"
	state := "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		message = "Service is degraded"
		state = "degraded"
	}

	return c.Status(status).JSON(dto.APIResponse{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":    state,
			"checks":    checks,
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "asset-forge-api",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.NewErrorResponse(
		"The requested resource was not found", "NOT_FOUND",
		fiber.Map{"path": c.Path(), "method": c.Method()},
		requestid.FromContext(c)))
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.log.Error("Unhandled request error", "status", code, "path", c.Path(), "request_id", requestid.FromContext(c), "error", err)
	}

	return c.Status(code).JSON(dto.NewErrorResponse(message, errCode,
		fiber.Map{"timestamp": utils.UTCNow().Unix()},
		requestid.FromContext(c)))
}

func generateRequestID() string {
	return uuid.NewString()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
