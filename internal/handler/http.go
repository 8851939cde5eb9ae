package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"tube-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// getUserIDFromContext извлекает userID, положенный AuthMiddleware.
// При ошибке сама пишет ответ и возвращает err != nil.
func getUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	userIDRaw, exists := c.Get("user_id")
	if !exists {
		zap.L().Error("user_id missing in context on protected route", zap.String("path", c.Request.URL.Path))
		err := fmt.Errorf("user_id not found in context")
		handleServiceError(c, err)
		return uuid.Nil, err
	}
	userID, ok := userIDRaw.(uuid.UUID)
	if !ok {
		zap.L().Error("Invalid user_id type in context", zap.Any("user_id_raw", userIDRaw))
		err := fmt.Errorf("invalid user_id type in context: %T", userIDRaw)
		handleServiceError(c, err)
		return uuid.Nil, err
	}
	return userID, nil
}

// saveUploadedTemp saves a multipart file into the OS temp dir and returns
// its path. Вызывающий обязан удалить файл после загрузки в хранилище.
func saveUploadedTemp(c *gin.Context, file *multipart.FileHeader) (string, error) {
	dst := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		zap.L().Error("Failed to save uploaded file to temp dir", zap.Error(err), zap.String("filename", file.Filename))
		return "", fmt.Errorf("failed to save uploaded file: %w", err)
	}
	return dst, nil
}

func removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("Failed to remove temp upload file", zap.Error(err), zap.String("path", path))
	}
}

// setAuthCookies issues the token pair as httpOnly cookies.
// Secure выставляется только в production, SameSite всегда strict.
func (h *UserHandler) setAuthCookies(c *gin.Context, td *models.TokenDetails) {
	secure := h.cfg.IsProduction()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessTokenCookie, td.AccessToken, int(h.cfg.AccessTokenTTL.Seconds()), "/", "", secure, true)
	c.SetCookie(refreshTokenCookie, td.RefreshToken, int(h.cfg.RefreshTokenTTL.Seconds()), "/", "", secure, true)
}

// clearAuthCookies expires both token cookies.
func (h *UserHandler) clearAuthCookies(c *gin.Context) {
	secure := h.cfg.IsProduction()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", secure, true)
}
