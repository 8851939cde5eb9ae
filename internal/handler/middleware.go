package handler

import (
	"strings"

	"tube-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accessTokenCookie = "accessToken"
const refreshTokenCookie = "refreshToken"

// AuthMiddleware verifies the access token taken from the Authorization
// header or, if missing, from the accessToken cookie.
func (h *UserHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				zap.L().Warn("Invalid Authorization header format", zap.String("header", authHeader))
				tokenVerificationsTotal.WithLabelValues("access", "failure").Inc()
				handleServiceError(c, models.ErrTokenInvalid)
				return
			}
			tokenString = parts[1]
		} else if cookie, err := c.Cookie(accessTokenCookie); err == nil {
			tokenString = cookie
		}

		if tokenString == "" {
			zap.L().Warn("Unauthorized request: no access token in header or cookie")
			tokenVerificationsTotal.WithLabelValues("access", "failure").Inc()
			handleServiceError(c, models.ErrTokenInvalid)
			return
		}

		claims, err := h.userService.VerifyAccessToken(c.Request.Context(), tokenString)
		if err != nil {
			zap.L().Warn("Access token verification failed", zap.Error(err))
			tokenVerificationsTotal.WithLabelValues("access", "failure").Inc()
			handleServiceError(c, err)
			return
		}

		tokenVerificationsTotal.WithLabelValues("access", "success").Inc()
		c.Set("user_id", claims.UserID)
		zap.L().Debug("Access token verified successfully", zap.String("userID", claims.UserID.String()))
		c.Next()
	}
}
