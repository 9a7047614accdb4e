package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stokmanager/internal/logger"
	"stokmanager/internal/middleware"
	appErrors "stokmanager/pkg/errors"
	"stokmanager/pkg/utils"
)

// statusOf maps a use case error code onto an HTTP status.
func statusOf(err error) int {
	switch appErrors.CodeOf(err) {
	case appErrors.CodeValidation:
		return http.StatusBadRequest
	case appErrors.CodeNotFound:
		return http.StatusNotFound
	case appErrors.CodeConflict:
		return http.StatusConflict
	case appErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	utils.ErrorResponse(c, status, appErrors.MessageOf(err))
}
