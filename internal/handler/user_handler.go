package handler

import (
	"tube-server/internal/config"
	"tube-server/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	cfg         *config.Config
}

func NewUserHandler(userService service.UserService, cfg *config.Config) *UserHandler {
	return &UserHandler{
		userService: userService,
		cfg:         cfg,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.Engine, rateLimiter gin.HandlerFunc) {
	users := router.Group("/api/v1/users")
	{
		// Анонимные эндпоинты идут под rate limiter
		users.POST("/register", rateLimiter, h.register)
		users.POST("/login", rateLimiter, h.login)
		users.POST("/refresh-token", rateLimiter, h.refreshToken)

		users.POST("/logout", h.AuthMiddleware(), h.logout)
		users.POST("/change-password", h.AuthMiddleware(), h.changePassword)
		users.GET("/current-user", h.AuthMiddleware(), h.currentUser)
		users.PATCH("/update-account", h.AuthMiddleware(), h.updateAccount)
		users.PATCH("/avatar", h.AuthMiddleware(), h.updateAvatar)
		users.PATCH("/cover-image", h.AuthMiddleware(), h.updateCoverImage)
	}
}
