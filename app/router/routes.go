// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/handlers"
	"github.com/ayatose/refbako/app/middleware"
	"github.com/ayatose/refbako/config"
	"github.com/ayatose/refbako/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app              *fiber.App
	authHandler      handlers.AuthHandlerInterface
	referenceHandler handlers.ReferenceHandlerInterface
	tagHandler       handlers.TagHandlerInterface
	scrapeHandler    handlers.ScrapeHandlerInterface
	authMiddleware   *middleware.AuthMiddleware
	metrics          config.MetricsConfig
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	authHandler handlers.AuthHandlerInterface,
	referenceHandler handlers.ReferenceHandlerInterface,
	tagHandler handlers.TagHandlerInterface,
	scrapeHandler handlers.ScrapeHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	metrics config.MetricsConfig,
) Router {
	// Configure Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "refbako API",
		ServerHeader: "refbako",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 150 * time.Second, // scrape runs can be slow
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:              app,
		authHandler:      authHandler,
		referenceHandler: referenceHandler,
		tagHandler:       tagHandler,
		scrapeHandler:    scrapeHandler,
		authMiddleware:   authMiddleware,
		metrics:          metrics,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Prometheus scrape endpoint, outside the /api group and rate limiting
	if r.metrics.Enabled {
		path := r.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API routes
	api := r.app.Group("/api")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// API documentation route (development only)
	if os.Getenv("APP_ENV") == "development" || os.Getenv("APP_ENV") == "local" {
		api.Get("/docs", r.getAPIDocumentation)
		log.Println("API documentation enabled for development")
	}

	// Apply general rate limiting to all API routes
	api.Use(limiter.New(limiter.Config{
		Max:        2000,            // Maximum 2000 requests
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks
			return c.Path() == "/api/health"
		},
	}))

	// Stricter rate limiting for credential endpoints
	authLimiter := limiter.New(limiter.Config{
		Max:        20,              // Maximum 20 requests
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	})

	// Auth endpoints
	api.Post("/signup", r.authHandler.Signup, authLimiter)
	api.Post("/login", r.authHandler.Login, authLimiter)

	// Protected endpoints
	authenticate := r.authMiddleware.Authenticate()

	api.Post("/logout", r.authHandler.Logout, authenticate)

	api.Get("/references/export", r.referenceHandler.Export, authenticate)
	api.Get("/references", r.referenceHandler.List, authenticate)
	api.Post("/references", r.referenceHandler.Create, authenticate)
	api.Get("/references/:id", r.referenceHandler.Get, authenticate)
	api.Delete("/references/:id", r.referenceHandler.Delete, authenticate)
	api.Post("/references/:id/copy", r.referenceHandler.Copy, authenticate)
	api.Post("/references/:id/analyze", r.referenceHandler.Analyze, authenticate)

	api.Get("/tags", r.tagHandler.List, authenticate)
	api.Post("/scrape", r.scrapeHandler.Scrape, authenticate)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' https:; connect-src 'self' https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"https://refbako.app",
			"https://www.refbako.app",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// Skip compression for certain content types
			contentType := c.Get("Content-Type")
			return contains(contentType, "image/") ||
				contains(contentType, "video/") ||
				contains(contentType, "audio/")
		},
	}))

	// Cache middleware for static content
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			// Only cache GET requests to specific endpoints
			return c.Method() != "GET" ||
				!contains(c.Path(), "/health") &&
					!contains(c.Path(), "/docs")
		},
		Expiration: 30 * time.Minute,
	}))

	// Advanced logging middleware
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/health"
		},
	}))

	// Prometheus HTTP metrics
	r.app.Use(middleware.Metrics())

	// Custom security middleware
	r.app.Use(r.securityMiddleware)

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Custom security middleware
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
	c.Set("Server", "refbako")

	return c.Next()
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "refbako-api",
		},
	})
}

// API documentation endpoint
func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	docs := GetRouteDocumentation()
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "refbako API Documentation",
			"version":     "1.0.0",
			"description": "Design reference bookmarking API",
			"endpoints":   docs,
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Log the error
	log.Printf("Error %d: %v", code, err)

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	// Return JSON error response
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// Helper functions

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// contains checks if a string contains a substring
func contains(str, substr string) bool {
	return strings.Contains(str, substr)
}

// GetRouteDocumentation returns API documentation
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/signup",
			"description": "Register a new account",
			"parameters": map[string]any{
				"username": "string (optional) - Display name, defaults to the email local part",
				"email":    "string (required) - Email address",
				"password": "string (required) - Password, minimum 8 characters",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/login",
			"description": "Authenticate with email and password",
			"parameters": map[string]any{
				"email":    "string (required) - Email address",
				"password": "string (required) - Password",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/logout",
			"description": "Acknowledge logout; the client discards its token",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/references",
			"description": "List references with optional text, tag, and source filters",
			"parameters": map[string]any{
				"query":  "string (optional) - Case-insensitive text filter",
				"tags":   "string (optional) - Comma-separated tag filter, any match",
				"source": "string (optional) - Exact source filter",
				"limit":  "number (optional) - Page size, 1-100, default 20",
				"offset": "number (optional) - Page offset",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/references",
			"description": "Add a reference; duplicate URLs merge into the existing row",
			"parameters": map[string]any{
				"url":         "string (required) - Reference URL",
				"title":       "string (optional) - Title",
				"description": "string (optional) - Description",
				"image_url":   "string (optional) - Screenshot URL",
				"tags":        "array (optional) - Tag names",
				"use_ai":      "boolean (optional) - Run AI analysis",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/references/:id",
			"description": "Fetch one reference",
			"parameters":  map[string]any{"id": "number (required) - Reference ID"},
		},
		{
			"method":      "DELETE",
			"path":        "/api/references/:id",
			"description": "Delete one reference",
			"parameters":  map[string]any{"id": "number (required) - Reference ID"},
		},
		{
			"method":      "POST",
			"path":        "/api/references/:id/copy",
			"description": "Return the reference as a shareable plain-text block",
			"parameters":  map[string]any{"id": "number (required) - Reference ID"},
		},
		{
			"method":      "POST",
			"path":        "/api/references/:id/analyze",
			"description": "Re-run AI analysis on a stored reference",
			"parameters":  map[string]any{"id": "number (required) - Reference ID"},
		},
		{
			"method":      "GET",
			"path":        "/api/references/export",
			"description": "Download the collection as an xlsx workbook",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/tags",
			"description": "List all tags ordered by usage count",
			"parameters":  map[string]any{},
		},
		{
			"method":      "POST",
			"path":        "/api/scrape",
			"description": "Scrape design galleries and ingest the results",
			"parameters": map[string]any{
				"source": "string (optional) - landbook|muzli|awwwards|all (default all)",
				"limit":  "number (optional) - Max candidates per gallery, 1-50",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/health",
			"description": "Health check endpoint",
			"parameters":  map[string]any{},
		},
	}
}
