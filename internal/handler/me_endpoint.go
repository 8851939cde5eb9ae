package handler

import (
	"net/http"

	"tube-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *UserHandler) currentUser(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	zap.L().Debug("Handling current-user request", zap.String("userID", userID.String()))

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewAPIResponse(
		http.StatusOK, toUserResponse(user), "User fetched successfully"))
}
