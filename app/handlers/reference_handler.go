package handlers

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/middleware"
	businessflow "github.com/ayatose/refbako/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ReferenceHandlerInterface defines the contract for reference handlers
type ReferenceHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Copy(c fiber.Ctx) error
	Analyze(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// ReferenceHandler handles reference collection HTTP requests
type ReferenceHandler struct {
	referenceFlow businessflow.ReferenceFlow
	ingestionFlow businessflow.IngestionFlow
	validator     *validator.Validate
}

func (h *ReferenceHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ReferenceHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewReferenceHandler creates a new reference handler
func NewReferenceHandler(referenceFlow businessflow.ReferenceFlow, ingestionFlow businessflow.IngestionFlow) *ReferenceHandler {
	return &ReferenceHandler{
		referenceFlow: referenceFlow,
		ingestionFlow: ingestionFlow,
		validator:     validator.New(),
	}
}

// ownerID extracts the authenticated account, failing closed on a missing claim
func (h *ReferenceHandler) ownerID(c fiber.Ctx) (uint, error) {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok || accountID == 0 {
		return 0, h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}
	return accountID, nil
}

// referenceID parses the :id path parameter
func (h *ReferenceHandler) referenceID(c fiber.Ctx) (uint, error) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid reference id", "INVALID_REFERENCE_ID", nil)
	}
	return uint(id), nil
}

// mapReferenceError translates business errors shared by per-reference routes
func (h *ReferenceHandler) mapReferenceError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsReferenceNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Reference not found", dto.ErrorReferenceNotFound, nil)
	}
	if businessflow.IsReferenceAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Reference belongs to another account", dto.ErrorNotOwner, nil)
	}

	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// List handles filtered, paginated listing of the account's references
// @Summary List References
// @Description List the account's references with optional text, tag, and source filters
// @Tags References
// @Produce json
// @Param query query string false "Case-insensitive text filter over title, description, and tags"
// @Param tags query string false "Comma-separated tag filter, any match"
// @Param source query string false "Exact source filter"
// @Param limit query int false "Page size, 1-100, default 20"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.APIResponse{data=dto.ReferenceListResponse} "References listed"
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/references [get]
func (h *ReferenceHandler) List(c fiber.Ctx) error {
	ownerID, err := h.ownerID(c)
	if err != nil {
		return err
	}

	req := dto.SearchReferencesRequest{
		Query:  c.Query("query"),
		Source: c.Query("source"),
	}
	if raw := c.Query("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				req.Tags = append(req.Tags, tag)
			}
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid limit", "VALIDATION_ERROR", nil)
		}
		req.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid offset", "VALIDATION_ERROR", nil)
		}
		req.Offset = offset
	}

	result, err := h.referenceFlow.SearchReferences(h.createRequestContext(c, "/api/references"), &req, ownerID)
	if err != nil {
		if businessflow.IsInvalidLimit(err) || businessflow.IsInvalidOffset(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "VALIDATION_ERROR", nil)
		}

		log.Println("Listing references failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Listing references failed", "SEARCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "References listed", result)
}

// Get handles fetching a single reference
// @Summary Get Reference
// @Description Fetch one of the account's references by id
// @Tags References
// @Produce json
// @Param id path int true "Reference ID"
// @Success 200 {object} dto.APIResponse{data=dto.ReferenceDTO} "Reference found"
// @Failure 403 {object} dto.APIResponse "Owned by another account"
// @Failure 404 {object} dto.APIResponse "Not found"
// @Router /api/references/{id} [get]
func (h *ReferenceHandler) Get(c fiber.Ctx) error {
	ownerID, err := h.ownerID(c)
	if err != nil {
		return err
	}
	id, err := h.referenceID(c)
	if err != nil {
		return err
	}

	result, err := h.referenceFlow.GetReference(h.createRequestContext(c, "/api/references/:id"), id, ownerID)
	if err != nil {
		return h.mapReferenceError(c, err, "Fetching reference failed", "REFERENCE_LOOKUP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reference found", result)
}

// Create handles adding a reference manually
// @Summary Create Reference
// @Description Add a reference; a duplicate URL merges into the existing row
// @Tags References
// @Accept json
// @Produce json
// @Param request body dto.CreateReferenceRequest true "Reference data"
// @Success 200 {object} dto.APIResponse{data=dto.ReferenceDTO} "Merged into existing reference"
// @Success 201 {object} dto.APIResponse{data=dto.ReferenceDTO} "Reference created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/references [post]
func (h *ReferenceHandler) Create(c fiber.Ctx) error {
	ownerID, err := h.ownerID(c)
	if err != nil {
		return err
	}

	var req dto.CreateReferenceRequest
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

	result, created, err := h.ingestionFlow.CreateReference(h.createRequestContext(c, "/api/references"), &req, ownerID)
	if err != nil {
		if businessflow.IsReferenceURLRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "URL is required", "VALIDATION_ERROR", nil)
		}

		log.Println("Creating reference failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Creating reference failed", "INGEST_FAILED", nil)
	}

	if !created {
		middleware.ReferencesIngestedTotal.WithLabelValues(result.Source, "merged").Inc()
		return h.SuccessResponse(c, fiber.StatusOK, "Merged into existing reference", result)
	}
	middleware.ReferencesIngestedTotal.WithLabelValues(result.Source, "created").Inc()
	return h.SuccessResponse(c, fiber.StatusCreated, "Reference created", result)
}

// Delete handles removing a reference
// @Summary Delete Reference
// @Description Delete one of the account's references
// @Tags References
// @Produce json
// @Param id path int true "Reference ID"
// @Success 200 {object} dto.APIResponse "Reference deleted"
// @Failure 403 {object} dto.APIResponse "Owned by another account"
// @Failure 404 {object} dto.APIResponse "Not found"
// @Router /api/references/{id} [delete]
func (h *ReferenceHandler) Delete(c fiber.Ctx) error {
	ownerID, err := h.ownerID(c)
	if err != nil {
		return err
	}
	id, err := h.referenceID(c)
	if err != nil {
		return err
	}

	if err := h.referenceFlow.DeleteReference(h.createRequestContext(c, "/api/references/:id"), id, ownerID); err != nil {
		return h.mapReferenceError(c, err, "Deleting reference failed", "DELETE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reference deleted", nil)
}

// Copy handles the clipboard text export of a reference
// @Summary Copy Reference
// @Description Return the reference formatted as a shareable plain-text block
// @Tags References
// @Produce json
// @Param id path int true "Reference ID"
// @Success 200 {object} dto.APIResponse{data=dto.CopyReferenceResponse} "Clipboard text built"
// @Failure 403 {object} dto.APIResponse "Owned by another account"
// @Failure 404 {object} dto.APIResponse "Not found"
// @Router /api/references/{id}/copy [post]
func (h *ReferenceHandler) Copy(c fiber.Ctx) error {
	ownerID, err := h.ownerID(c)
	if err != nil {
		return err
	}
	id, err := h.referenceID(c)
	if err != nil {
		return err
	}

	result, err := h.referenceFlow.CopyReference(h.createRequestContext(c, "/api/references/:id/copy"), id, ownerID)
	if err != nil {
		return h.mapReferenceError(c, err, "Copying reference failed", "COPY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Clipboard text built", result)
}

// Analyze handles forced re-analysis of a stored reference
// @Summary Analyze Reference
// @Description Re-run AI analysis on a stored reference, replacing its tags
// @Tags References
// @Produce json
// @Param id path int true "Reference ID"
// @Success 200 {object} dto.APIResponse{data=dto.ReferenceDTO} "Reference analyzed"
// @Failure 403 {object} dto.APIResponse "Owned by another account"
// @Failure 404 {object} dto.APIResponse "Not found"
// @Failure 502 {object} dto.APIResponse "Analyzer unavailable"
// @Router /api/references/{id}/analyze [post]
func (h *ReferenceHandler) Analyze(c fiber.Ctx) error {
	ownerID, err := h.ownerID(c)
	if err != nil {
		return err
	}
	id, err := h.referenceID(c)
	if err != nil {
		return err
	}

	ctx := h.createRequestContextWithTimeout(c, "/api/references/:id/analyze", 60*time.Second)
	result, err := h.referenceFlow.AnalyzeReference(ctx, id, ownerID)
	if err != nil {
		if businessflow.IsAnalysisFailed(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Analysis failed", dto.ErrorAnalysisFailed, nil)
		}
		return h.mapReferenceError(c, err, "Analyzing reference failed", dto.ErrorAnalysisFailed)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reference analyzed", result)
}

// Export handles the xlsx export of the account's collection
// @Summary Export References
// @Description Download the account's references as an xlsx workbook
// @Tags References
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary "Workbook"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/references/export [get]
func (h *ReferenceHandler) Export(c fiber.Ctx) error {
	ownerID, err := h.ownerID(c)
	if err != nil {
		return err
	}

	raw, err := h.referenceFlow.ExportReferences(h.createRequestContext(c, "/api/references/export"), ownerID)
	if err != nil {
		log.Println("Exporting references failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Exporting references failed", "EXPORT_FAILED", nil)
	}

	filename := "references-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(raw)
}

func (h *ReferenceHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *ReferenceHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
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
