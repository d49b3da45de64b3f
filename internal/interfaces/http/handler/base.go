package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// tenantParam parses the :tenant_id path parameter and tags the request
// context with it for logging.
func tenantParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), id.String()))
	return id, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, code, message string) {
	h.Error(c, http.StatusUnauthorized, code, message)
}

// HandleError classifies err and writes the matching response. Internal
// errors are logged; their text is never returned to the caller.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := dto.FromError(err)
	status := dto.GetHTTPStatus(code)
	message := err.Error()
	if status >= http.StatusInternalServerError && code != dto.ErrCodeUnavailable {
		logger.L(c.Request.Context()).Error("Request failed", zap.Error(err))
		message = "An unexpected error occurred"
	}
	h.Error(c, status, code, message)
}
