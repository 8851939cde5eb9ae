package handler

import (
	"net/http"

	"tube-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *UserHandler) changePassword(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.NewAPIErrorResponse(
			http.StatusBadRequest, "Invalid request body: "+err.Error(), nil))
		return
	}

	err = h.userService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewAPIResponse(
		http.StatusOK, gin.H{}, "Password changed successfully"))
}

func (h *UserHandler) updateAccount(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.NewAPIErrorResponse(
			http.StatusBadRequest, "Invalid request body: "+err.Error(), nil))
		return
	}

	user, err := h.userService.UpdateAccount(c.Request.Context(), userID, req.FullName, req.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewAPIResponse(
		http.StatusOK, toUserResponse(user), "Account details updated successfully"))
}

func (h *UserHandler) updateAvatar(c *gin.Context) {
	h.updateMedia(c, "avatar")
}

func (h *UserHandler) updateCoverImage(c *gin.Context) {
	h.updateMedia(c, "coverImage")
}

// updateMedia is the shared multipart flow for avatar and cover image.
// formField совпадает с именем поля формы ("avatar" или "coverImage").
func (h *UserHandler) updateMedia(c *gin.Context, formField string) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	file, err := c.FormFile(formField)
	if err != nil || file == nil {
		zap.L().Warn("Media update without file", zap.String("field", formField), zap.String("userID", userID.String()))
		c.AbortWithStatusJSON(http.StatusBadRequest, models.NewAPIErrorResponse(
			http.StatusBadRequest, "File is missing", []string{formField}))
		return
	}

	path, err := saveUploadedTemp(c, file)
	if err != nil {
		handleServiceError(c, models.ErrUploadFailed)
		return
	}
	defer removeTemp(path)

	var user *models.User
	if formField == "avatar" {
		user, err = h.userService.UpdateAvatar(c.Request.Context(), userID, path)
	} else {
		user, err = h.userService.UpdateCoverImage(c.Request.Context(), userID, path)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	mediaUpdatesTotal.WithLabelValues(formField).Inc()

	message := "Avatar image updated successfully"
	if formField != "avatar" {
		message = "Cover image updated successfully"
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, toUserResponse(user), message))
}
