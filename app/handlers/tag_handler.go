package handlers

import (
	"context"
	"log"
	"time"

	"github.com/ayatose/refbako/app/dto"
	businessflow "github.com/ayatose/refbako/business_flow"
	"github.com/gofiber/fiber/v3"
)

// TagHandlerInterface defines the contract for tag handlers
type TagHandlerInterface interface {
	List(c fiber.Ctx) error
}

// TagHandler handles tag ledger HTTP requests
type TagHandler struct {
	tagFlow businessflow.TagFlow
}

func (h *TagHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TagHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewTagHandler creates a new tag handler
func NewTagHandler(tagFlow businessflow.TagFlow) *TagHandler {
	return &TagHandler{
		tagFlow: tagFlow,
	}
}

// List handles listing the tag ledger
// @Summary List Tags
// @Description List all known tags ordered by usage count
// @Tags Tags
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.TagDTO} "Tags listed"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/tags [get]
func (h *TagHandler) List(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tags, err := h.tagFlow.ListTags(ctx)
	if err != nil {
		log.Println("Listing tags failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Listing tags failed", "TAG_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tags listed", tags)
}
