package handler

import (
	"errors"
	"net/http"

	"tube-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleServiceError maps service errors onto the response envelope.
// Единственное место, где ошибки сервиса превращаются в HTTP статусы.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var message string
	var fields []string

	var vErr *models.ValidationError

	switch {
	case errors.As(err, &vErr):
		statusCode = http.StatusBadRequest
		message = vErr.Message
		fields = vErr.Fields
	case errors.Is(err, models.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
		message = "Invalid credentials"
	case errors.Is(err, models.ErrUserAlreadyExists):
		statusCode = http.StatusConflict
		message = "User with this username already exists"
	case errors.Is(err, models.ErrEmailAlreadyExists):
		statusCode = http.StatusConflict
		message = "User with this email already exists"
	case errors.Is(err, models.ErrUserNotFound):
		statusCode = http.StatusNotFound
		message = "User does not exist"
	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		message = "Token has expired"
	case errors.Is(err, models.ErrTokenMalformed):
		statusCode = http.StatusUnauthorized
		message = "Token is malformed"
	case errors.Is(err, models.ErrTokenInvalid):
		statusCode = http.StatusUnauthorized
		message = "Invalid or revoked token"
	case errors.Is(err, models.ErrUploadFailed):
		statusCode = http.StatusBadRequest
		message = "File upload failed"
	case errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = "Invalid input data"
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal error occurred"
	}

	c.AbortWithStatusJSON(statusCode, models.NewAPIErrorResponse(statusCode, message, fields))
}
