package handlers

import (
	"errors"
	"net/http"

	"catalogue-service/internal/clients"
	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/pipeline"
	"catalogue-service/internal/repository"
	"catalogue-service/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service and repository errors to the API error envelope.
// Unknown errors become fallbackCode with a 500.
func respondError(c *gin.Context, err error, fallbackCode, fallbackMessage string) {
	status, code, message := http.StatusInternalServerError, fallbackCode, fallbackMessage
	switch {
	case errors.Is(err, filters.ErrInvalidSegment):
		status, code, message = http.StatusBadRequest, "INVALID_FILTER", err.Error()
	case errors.Is(err, pipeline.ErrShopRequired),
		errors.Is(err, pipeline.ErrInvalidMode),
		errors.Is(err, pipeline.ErrTenantRequired),
		errors.Is(err, services.ErrRubricRequired):
		status, code, message = http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, services.ErrRubricNotFound):
		status, code, message = http.StatusNotFound, "RUBRIC_NOT_FOUND", err.Error()
	case errors.Is(err, repository.ErrNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "Resource not found"
	case errors.Is(err, repository.ErrInvalidSlug):
		status, code, message = http.StatusBadRequest, "INVALID_SLUG", err.Error()
	case errors.Is(err, clients.ErrApprovalRejected):
		status, code, message = http.StatusBadGateway, fallbackCode, err.Error()
	case errors.Is(err, repository.ErrDuplicateSlug):
		status, code, message = http.StatusConflict, "DUPLICATE_SLUG", err.Error()
	}

	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

func validationError(c *gin.Context, message, field string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "VALIDATION_ERROR",
			Message: message,
			Field:   field,
		},
	})
}

func invalidID(c *gin.Context, what string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "INVALID_ID",
			Message: "Invalid " + what + " ID format",
		},
	})
}

func stringPtr(s string) *string {
	return &s
}
