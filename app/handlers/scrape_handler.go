package handlers

import (
	"context"
	"log"
	"time"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/middleware"
	"github.com/ayatose/refbako/app/services"
	businessflow "github.com/ayatose/refbako/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ScrapeHandlerInterface defines the contract for scrape handlers
type ScrapeHandlerInterface interface {
	Scrape(c fiber.Ctx) error
}

// ScrapeHandler handles gallery scrape-and-ingest HTTP requests
type ScrapeHandler struct {
	ingestionFlow businessflow.IngestionFlow
	validator     *validator.Validate
}

func (h *ScrapeHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ScrapeHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(ingestionFlow businessflow.IngestionFlow) *ScrapeHandler {
	return &ScrapeHandler{
		ingestionFlow: ingestionFlow,
		validator:     validator.New(),
	}
}

// Scrape handles a scrape-and-ingest run against one gallery or all of them
// @Summary Scrape Galleries
// @Description Scrape design galleries and ingest the candidates into the account's collection
// @Tags Scraping
// @Accept json
// @Produce json
// @Param request body dto.ScrapeRequest true "Scrape parameters"
// @Success 200 {object} dto.APIResponse{data=dto.ScrapeResponse} "Scrape finished, possibly with zero results"
// @Failure 400 {object} dto.APIResponse "Unknown source"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/scrape [post]
func (h *ScrapeHandler) Scrape(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok || accountID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	var req dto.ScrapeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	source := req.Source
	if source == "" {
		source = services.SourceAll
	}

	// Scraping external galleries plus analysis can take a while.
	ctx := h.createRequestContextWithTimeout(c, "/api/scrape", 120*time.Second)
	result, err := h.ingestionFlow.Scrape(ctx, &req, accountID)
	if err != nil {
		if businessflow.IsUnknownScrapeSource(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown scrape source", dto.ErrorInvalidSource, nil)
		}

		log.Println("Scrape failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Scrape failed", "SCRAPE_FAILED", nil)
	}

	middleware.ScrapeRunsTotal.WithLabelValues(source).Inc()
	for _, ref := range result.References {
		middleware.ReferencesIngestedTotal.WithLabelValues(ref.Source, "scraped").Inc()
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Scrape finished", result)
}

func (h *ScrapeHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	// Create context with custom timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "timeout", timeout)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
