package handler

import (
	"net/http"

	"tube-server/internal/models"
	"tube-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// register handles multipart registration: form fields plus avatar file
// (обязателен) и coverImage (опционален).
func (h *UserHandler) register(c *gin.Context) {
	in := service.RegisterInput{
		FullName: c.PostForm("fullName"),
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}

	avatarFile, err := c.FormFile("avatar")
	if err == nil && avatarFile != nil {
		path, saveErr := saveUploadedTemp(c, avatarFile)
		if saveErr != nil {
			handleServiceError(c, models.ErrUploadFailed)
			return
		}
		defer removeTemp(path)
		in.AvatarPath = path
	}

	coverFile, err := c.FormFile("coverImage")
	if err == nil && coverFile != nil {
		path, saveErr := saveUploadedTemp(c, coverFile)
		if saveErr == nil {
			defer removeTemp(path)
			in.CoverImagePath = path
		}
	}

	user, err := h.userService.Register(c.Request.Context(), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	registrationsTotal.Inc()

	c.JSON(http.StatusCreated, models.NewAPIResponse(
		http.StatusCreated,
		toUserResponse(user),
		"User registered successfully",
	))
}

func (h *UserHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.NewAPIErrorResponse(
			http.StatusBadRequest, "Invalid request body: "+err.Error(), nil))
		return
	}

	user, tokens, err := h.userService.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	loginsTotal.Inc()
	h.setAuthCookies(c, tokens)

	// Токены дублируются в теле для клиентов без cookie (мобильные).
	c.JSON(http.StatusOK, models.NewAPIResponse(
		http.StatusOK,
		loginResponseData{
			User:         toUserResponse(user),
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		},
		"User logged in successfully",
	))
}

func (h *UserHandler) logout(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	if err := h.userService.Logout(c.Request.Context(), userID); err != nil {
		handleServiceError(c, err)
		return
	}

	h.clearAuthCookies(c)

	c.JSON(http.StatusOK, models.NewAPIResponse(
		http.StatusOK, gin.H{}, "User logged out successfully"))
}

// refreshToken rotates the token pair. Токен берется из cookie, при его
// отсутствии из тела запроса.
func (h *UserHandler) refreshToken(c *gin.Context) {
	tokenString, _ := c.Cookie(refreshTokenCookie)
	if tokenString == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			tokenString = req.RefreshToken
		}
	}

	if tokenString == "" {
		zap.L().Warn("Refresh request without token in cookie or body")
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewAPIErrorResponse(
			http.StatusUnauthorized, "Unauthorized request: refresh token missing", nil))
		return
	}

	tokens, err := h.userService.Refresh(c.Request.Context(), tokenString)
	if err != nil {
		tokenVerificationsTotal.WithLabelValues("refresh", "failure").Inc()
		handleServiceError(c, err)
		return
	}

	refreshesTotal.Inc()
	tokenVerificationsTotal.WithLabelValues("refresh", "success").Inc()
	h.setAuthCookies(c, tokens)

	c.JSON(http.StatusOK, models.NewAPIResponse(
		http.StatusOK,
		tokenPairData{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken},
		"Access token refreshed",
	))
}
