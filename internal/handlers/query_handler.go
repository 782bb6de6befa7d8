package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"neuralnexus-pipeline/internal/models"
	"neuralnexus-pipeline/internal/pkg/logger"
)

// Pipeline is the subset of the orchestrator the HTTP layer needs.
type Pipeline interface {
	Handle(ctx context.Context, role models.Role, query string) (*models.Result, error)
	HealthCheck(ctx context.Context) error
	GetStats() map[string]interface{}
}

type QueryHandler struct {
	pipeline Pipeline
	logger   *logger.Logger
}

func NewQueryHandler(pipeline Pipeline, log *logger.Logger) *QueryHandler {
	return &QueryHandler{
		pipeline: pipeline,
		logger:   log,
	}
}

func (handler *QueryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", handler.Health)
	router.GET("/stats", handler.Stats)

	api := router.Group("/api/v1")
	api.POST("/query", handler.Query)
}

type queryRequest struct {
	Role  string `json:"role" binding:"required"`
	Query string `json:"query" binding:"required"`
}

func (handler *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role and query are required"})
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := handler.pipeline.Handle(c.Request.Context(), role, req.Query)
	if err != nil {
		handler.writeError(c, role, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeError maps the pipeline's error taxonomy onto HTTP status codes. The
// response body carries only the sanitized message, never provider payloads.
func (handler *QueryHandler) writeError(c *gin.Context, role models.Role, err error) {
	status := http.StatusInternalServerError

	switch {
	case models.IsKind(err, models.ErrKindValidation):
		status = http.StatusBadRequest
	case models.IsKind(err, models.ErrKindAuthentication):
		status = http.StatusUnauthorized
	case models.IsKind(err, models.ErrKindCancelled), models.IsKind(err, models.ErrKindTimeout):
		status = http.StatusGatewayTimeout
	case models.IsKind(err, models.ErrKindModelRequest),
		models.IsKind(err, models.ErrKindSearchUnavailable),
		models.IsKind(err, models.ErrKindExternal):
		status = http.StatusBadGateway
	}

	handler.logger.WithError(err).Error("Query request failed",
		"role", role, "status", status)

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		c.JSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	c.JSON(status, gin.H{"error": "internal error"})
}

func (handler *QueryHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := handler.pipeline.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (handler *QueryHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, handler.pipeline.GetStats())
}
